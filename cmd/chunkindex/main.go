// Command chunkindex scans a workspace, chunks its source files, and
// ships the chunks to an embedding sink. It wires the frozen Config into
// the chunking pipeline; its only listener is the optional Prometheus
// metrics endpoint, served when metrics are enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chunkline/chunkline/internal/config"
	"github.com/chunkline/chunkline/internal/indexer"
	"github.com/chunkline/chunkline/internal/observability"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML or JSON config file")
		userID     = flag.String("user-id", "local", "identity the session is scoped under")
		deviceID   = flag.String("device-id", "cli", "device identity the session is scoped under")
		workspace  = flag.String("workspace", "", "workspace path to index (overrides config file)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chunkindex: config error: %v\n", err)
		os.Exit(1)
	}
	if *workspace != "" {
		cfg.WorkspacePath = *workspace
	}

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		Output:        os.Stdout,
		AddSource:     true,
		SentryEnabled: cfg.Observability.Sentry.Enabled,
	})

	metrics := observability.NewMetricsCollector("chunkindex")
	metrics.SetSystemStartTime(time.Now())

	tracerProvider, err := observability.NewTracerProvider(observability.TracerConfig{
		ServiceName:    "chunkindex",
		OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
		SamplingRate:   cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
		Environment:    cfg.Observability.Sentry.Environment,
		ServiceVersion: cfg.Observability.Sentry.Release,
	})
	if err != nil {
		logger.Error("tracer provider init failed", "error", err)
		os.Exit(1)
	}

	if cfg.Observability.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Observability.Metrics.Port)
		go func() {
			if serveErr := http.ListenAndServe(addr, mux); serveErr != nil && serveErr != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", serveErr)
			}
		}()
		logger.Info("metrics server listening", "addr", addr, "path", cfg.Observability.Metrics.Path)
	}

	sink := indexer.NewHTTPChunkSink(
		cfg.Sink.EndpointEmbed,
		cfg.Sink.EndpointUpsert,
		cfg.Sink.Token,
		time.Duration(cfg.Sink.TimeoutMs)*time.Millisecond,
	)

	sessionCfg := indexer.SessionConfig{
		AllowedExtensions: cfg.AllowedExtensions,
		IgnoreGlobs:       cfg.IgnoreGlobs,
		IgnoredDirs:       cfg.IgnoredDirs,
		MaxFileSize:       cfg.MaxFileSize,
		LinesPerChunk:     cfg.LinesPerChunk,
		MaxChunkBytes:     cfg.MaxChunkBytes,
		Concurrency:       cfg.Concurrency,
		CacheDBPath:       cfg.Cache.DBPath,
		CacheMaxSizeBytes: cfg.Cache.MaxSizeBytes,
		CacheMaxEntries:   cfg.Cache.MaxEntries,
		CacheTTLHours:     cfg.Cache.TTLHours,
		CacheCompression:  cfg.Cache.Compression,
		Sink:              sink,
		RouterConfig: indexer.RouterConfig{
			BatchSize:         cfg.BatchSize,
			MaxRetries:        cfg.Sink.MaxRetries,
			RetryDelay:        time.Duration(cfg.Sink.RetryDelayMs) * time.Millisecond,
			BackoffMultiplier: cfg.Sink.BackoffMultiplier,
			MaxPollAttempts:   cfg.Sink.MaxPollAttempts,
			PollInterval:      time.Duration(cfg.Sink.PollIntervalMs) * time.Millisecond,
		},
		Logger:  logger,
		Metrics: metrics,
	}

	pipeline := indexer.NewPipeline(sessionCfg, tracerProvider.Tracer())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ok, err := pipeline.ProcessWorkspace(ctx, *userID, *deviceID, cfg.WorkspacePath, cfg.Sink.Token, nil)
	if err != nil {
		logger.Error("processWorkspace failed", "error", err)
	}
	logger.Info("processWorkspace finished", "accepted", ok)

	progress := pipeline.GetFileProcessingProgress(*userID, *deviceID, cfg.WorkspacePath)
	logger.Info("final progress", "percent_complete", progress)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if shutdownErr := pipeline.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("shutdown error", "error", shutdownErr)
	}
	if tracerErr := tracerProvider.Shutdown(shutdownCtx); tracerErr != nil {
		logger.Warn("tracer shutdown error", "error", tracerErr)
	}

	if !ok {
		os.Exit(1)
	}
}
