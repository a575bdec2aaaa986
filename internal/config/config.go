// Package config provides configuration management for the chunking
// pipeline. It supports loading configuration from environment variables,
// files (YAML/JSON), and defaults, with a clear precedence order:
// env > file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chunkline/chunkline/internal/validation"
	"gopkg.in/yaml.v3"
)

// Config is the frozen configuration handed to the pipeline at
// construction. Nothing downstream of Load mutates it.
type Config struct {
	WorkspacePath     string   `json:"workspace_path" yaml:"workspace_path"`
	AllowedExtensions []string `json:"allowed_extensions" yaml:"allowed_extensions"`
	IgnoreGlobs       []string `json:"ignore_globs" yaml:"ignore_globs"`
	IgnoredDirs       []string `json:"ignored_dirs" yaml:"ignored_dirs"`
	MaxFileSize       int64    `json:"max_file_size" yaml:"max_file_size"`
	LinesPerChunk     int      `json:"lines_per_chunk" yaml:"lines_per_chunk"`
	MaxChunkBytes     int      `json:"max_chunk_bytes" yaml:"max_chunk_bytes"`
	Concurrency       int      `json:"concurrency" yaml:"concurrency"`
	BatchSize         int      `json:"batch_size" yaml:"batch_size"`

	Cache CacheConfig `json:"cache" yaml:"cache"`
	Sink  SinkConfig  `json:"sink" yaml:"sink"`

	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// CacheConfig holds ChunkCache configuration.
type CacheConfig struct {
	DBPath       string `json:"db_path" yaml:"db_path"`
	MaxSizeBytes int64  `json:"max_size_bytes" yaml:"max_size_bytes"`
	MaxEntries   int    `json:"max_entries" yaml:"max_entries"`
	TTLHours     int    `json:"ttl_hours" yaml:"ttl_hours"`
	Compression  bool   `json:"compression" yaml:"compression"`
}

// SinkConfig holds ChunkRouter/ChunkSink configuration.
type SinkConfig struct {
	EndpointEmbed      string  `json:"endpoint_embed" yaml:"endpoint_embed"`
	EndpointUpsert     string  `json:"endpoint_upsert" yaml:"endpoint_upsert"`
	Token              string  `json:"token" yaml:"token"`
	TimeoutMs          int     `json:"timeout_ms" yaml:"timeout_ms"`
	MaxRetries         int     `json:"max_retries" yaml:"max_retries"`
	RetryDelayMs       int     `json:"retry_delay_ms" yaml:"retry_delay_ms"`
	BackoffMultiplier  float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`
	PollIntervalMs     int     `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	MaxPollAttempts    int     `json:"max_poll_attempts" yaml:"max_poll_attempts"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ObservabilityConfig holds metrics/tracing/error-reporting configuration.
type ObservabilityConfig struct {
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Sentry  SentryConfig  `json:"sentry" yaml:"sentry"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Endpoint   string  `json:"endpoint" yaml:"endpoint"`
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`
}

// SentryConfig holds Sentry error-reporting configuration.
type SentryConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	DSN         string  `json:"dsn" yaml:"dsn"`
	Environment string  `json:"environment" yaml:"environment"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
	Release     string  `json:"release" yaml:"release"`
}

// Default values.
const (
	DefaultMaxFileSize        = 5 * 1024 * 1024 // 5 MiB
	DefaultLinesPerChunk      = 50
	DefaultMaxChunkBytes      = 9216 // 9 KiB
	DefaultConcurrency        = 1
	DefaultBatchSize          = 100
	DefaultCacheDBPath        = "./data/chunkcache.db"
	DefaultCacheMaxSizeBytes  = 512 * 1024 * 1024 // 512 MiB
	DefaultCacheMaxEntries    = 200_000
	DefaultCacheTTLHours      = 720 // 30 days
	DefaultSinkTimeoutMs      = 30_000
	DefaultSinkMaxRetries     = 5
	DefaultSinkRetryDelayMs   = 500
	DefaultSinkBackoffMult    = 2.0
	DefaultSinkPollIntervalMs = 1_000
	DefaultSinkMaxPollAttempt = 30
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = false
	DefaultMetricsPort        = 9091
	DefaultMetricsPath        = "/metrics"
	DefaultTracingEnabled     = false
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultSampleRate         = 0.1
	DefaultSentryEnabled      = false
	DefaultSentryEnv          = "development"
	DefaultSentrySampleRate   = 1.0
	DefaultSentryRelease      = "0.1.0"
)

// DefaultAllowedExtensions lists the extensions admitted by the scanner
// when no override is supplied: every extension claimed by a built-in
// language plugin (see internal/indexer registry).
var DefaultAllowedExtensions = []string{
	".py", ".java", ".js", ".jsx", ".ts", ".tsx", ".c", ".h",
	".cpp", ".cc", ".cxx", ".hpp", ".cs", ".go", ".rs", ".php",
}

// DefaultIgnoredDirs lists directory names skipped by the scanner
// regardless of ignoreGlobs.
var DefaultIgnoredDirs = []string{
	".git", "node_modules", "vendor", ".venv", "__pycache__",
	"dist", "build", "target", ".idea", ".vscode",
}

// Valid values for validation.
var (
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"json", "text"}
)

// Load loads configuration from an optional file plus environment
// variables. Precedence: env vars > config file > defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		validatedPath, err := validation.ValidateConfigPath(path)
		if err != nil {
			return nil, fmt.Errorf("config file path validation failed: %w", err)
		}

		fileCfg, err := loadFile(validatedPath)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		cfg = merge(cfg, fileCfg)
	}

	cfg = loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config with all default values.
func defaults() *Config {
	return &Config{
		WorkspacePath:     ".",
		AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
		IgnoreGlobs:       []string{},
		IgnoredDirs:       append([]string(nil), DefaultIgnoredDirs...),
		MaxFileSize:       DefaultMaxFileSize,
		LinesPerChunk:     DefaultLinesPerChunk,
		MaxChunkBytes:     DefaultMaxChunkBytes,
		Concurrency:       DefaultConcurrency,
		BatchSize:         DefaultBatchSize,
		Cache: CacheConfig{
			DBPath:       DefaultCacheDBPath,
			MaxSizeBytes: DefaultCacheMaxSizeBytes,
			MaxEntries:   DefaultCacheMaxEntries,
			TTLHours:     DefaultCacheTTLHours,
			Compression:  true,
		},
		Sink: SinkConfig{
			TimeoutMs:         DefaultSinkTimeoutMs,
			MaxRetries:        DefaultSinkMaxRetries,
			RetryDelayMs:      DefaultSinkRetryDelayMs,
			BackoffMultiplier: DefaultSinkBackoffMult,
			PollIntervalMs:    DefaultSinkPollIntervalMs,
			MaxPollAttempts:   DefaultSinkMaxPollAttempt,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
				Port:    DefaultMetricsPort,
				Path:    DefaultMetricsPath,
			},
			Tracing: TracingConfig{
				Enabled:    DefaultTracingEnabled,
				Endpoint:   DefaultTracingEndpoint,
				SampleRate: DefaultSampleRate,
			},
			Sentry: SentryConfig{
				Enabled:     DefaultSentryEnabled,
				Environment: DefaultSentryEnv,
				SampleRate:  DefaultSentrySampleRate,
				Release:     DefaultSentryRelease,
			},
		},
	}
}

// loadFile loads configuration from a YAML or JSON file.
func loadFile(path string) (*Config, error) {
	safePath := filepath.Clean(path)

	data, err := os.ReadFile(safePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := &Config{}
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}

	return cfg, nil
}

// loadEnv overrides cfg with any CHUNKINDEX_* environment variables set.
func loadEnv(cfg *Config) *Config {
	if v := os.Getenv("CHUNKINDEX_WORKSPACE_PATH"); v != "" {
		cfg.WorkspacePath = v
	}
	if v := os.Getenv("CHUNKINDEX_ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitCSV(v)
	}
	if v := os.Getenv("CHUNKINDEX_IGNORE_GLOBS"); v != "" {
		cfg.IgnoreGlobs = splitCSV(v)
	}
	if v := os.Getenv("CHUNKINDEX_IGNORED_DIRS"); v != "" {
		cfg.IgnoredDirs = splitCSV(v)
	}
	if v := os.Getenv("CHUNKINDEX_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxFileSize = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_LINES_PER_CHUNK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LinesPerChunk = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_MAX_CHUNK_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxChunkBytes = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}

	if v := os.Getenv("CHUNKINDEX_CACHE_DB_PATH"); v != "" {
		cfg.Cache.DBPath = v
	}
	if v := os.Getenv("CHUNKINDEX_CACHE_MAX_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Cache.MaxSizeBytes = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxEntries = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_CACHE_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLHours = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_CACHE_COMPRESSION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Compression = b
		}
	}

	if v := os.Getenv("CHUNKINDEX_SINK_ENDPOINT_EMBED"); v != "" {
		cfg.Sink.EndpointEmbed = v
	}
	if v := os.Getenv("CHUNKINDEX_SINK_ENDPOINT_UPSERT"); v != "" {
		cfg.Sink.EndpointUpsert = v
	}
	if v := os.Getenv("CHUNKINDEX_SINK_TOKEN"); v != "" {
		cfg.Sink.Token = v
	}
	if v := os.Getenv("CHUNKINDEX_SINK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sink.TimeoutMs = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_SINK_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sink.MaxRetries = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_SINK_RETRY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sink.RetryDelayMs = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_SINK_BACKOFF_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sink.BackoffMultiplier = f
		}
	}
	if v := os.Getenv("CHUNKINDEX_SINK_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sink.PollIntervalMs = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_SINK_MAX_POLL_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sink.MaxPollAttempts = n
		}
	}

	if v := os.Getenv("CHUNKINDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHUNKINDEX_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("CHUNKINDEX_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("CHUNKINDEX_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Observability.Metrics.Port = n
		}
	}
	if v := os.Getenv("CHUNKINDEX_METRICS_PATH"); v != "" {
		cfg.Observability.Metrics.Path = v
	}

	if v := os.Getenv("CHUNKINDEX_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Tracing.Enabled = b
		}
	}
	if v := os.Getenv("CHUNKINDEX_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("CHUNKINDEX_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Observability.Tracing.SampleRate = f
		}
	}

	if v := os.Getenv("CHUNKINDEX_SENTRY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Sentry.Enabled = b
		}
	}
	if v := os.Getenv("CHUNKINDEX_SENTRY_DSN"); v != "" {
		cfg.Observability.Sentry.DSN = v
	}
	if v := os.Getenv("CHUNKINDEX_SENTRY_ENVIRONMENT"); v != "" {
		cfg.Observability.Sentry.Environment = v
	}
	if v := os.Getenv("CHUNKINDEX_SENTRY_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Observability.Sentry.SampleRate = f
		}
	}
	if v := os.Getenv("CHUNKINDEX_SENTRY_RELEASE"); v != "" {
		cfg.Observability.Sentry.Release = v
	}

	return cfg
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// merge merges two configs, preferring values from 'override' when non-zero.
func merge(base, override *Config) *Config {
	result := *base

	if override.WorkspacePath != "" {
		result.WorkspacePath = override.WorkspacePath
	}
	if len(override.AllowedExtensions) > 0 {
		result.AllowedExtensions = override.AllowedExtensions
	}
	if len(override.IgnoreGlobs) > 0 {
		result.IgnoreGlobs = override.IgnoreGlobs
	}
	if len(override.IgnoredDirs) > 0 {
		result.IgnoredDirs = override.IgnoredDirs
	}
	if override.MaxFileSize != 0 {
		result.MaxFileSize = override.MaxFileSize
	}
	if override.LinesPerChunk != 0 {
		result.LinesPerChunk = override.LinesPerChunk
	}
	if override.MaxChunkBytes != 0 {
		result.MaxChunkBytes = override.MaxChunkBytes
	}
	if override.Concurrency != 0 {
		result.Concurrency = override.Concurrency
	}
	if override.BatchSize != 0 {
		result.BatchSize = override.BatchSize
	}

	if override.Cache.DBPath != "" {
		result.Cache.DBPath = override.Cache.DBPath
	}
	if override.Cache.MaxSizeBytes != 0 {
		result.Cache.MaxSizeBytes = override.Cache.MaxSizeBytes
	}
	if override.Cache.MaxEntries != 0 {
		result.Cache.MaxEntries = override.Cache.MaxEntries
	}
	if override.Cache.TTLHours != 0 {
		result.Cache.TTLHours = override.Cache.TTLHours
	}
	if override.Cache.Compression {
		result.Cache.Compression = override.Cache.Compression
	}

	if override.Sink.EndpointEmbed != "" {
		result.Sink.EndpointEmbed = override.Sink.EndpointEmbed
	}
	if override.Sink.EndpointUpsert != "" {
		result.Sink.EndpointUpsert = override.Sink.EndpointUpsert
	}
	if override.Sink.Token != "" {
		result.Sink.Token = override.Sink.Token
	}
	if override.Sink.TimeoutMs != 0 {
		result.Sink.TimeoutMs = override.Sink.TimeoutMs
	}
	if override.Sink.MaxRetries != 0 {
		result.Sink.MaxRetries = override.Sink.MaxRetries
	}
	if override.Sink.RetryDelayMs != 0 {
		result.Sink.RetryDelayMs = override.Sink.RetryDelayMs
	}
	if override.Sink.BackoffMultiplier != 0 {
		result.Sink.BackoffMultiplier = override.Sink.BackoffMultiplier
	}
	if override.Sink.PollIntervalMs != 0 {
		result.Sink.PollIntervalMs = override.Sink.PollIntervalMs
	}
	if override.Sink.MaxPollAttempts != 0 {
		result.Sink.MaxPollAttempts = override.Sink.MaxPollAttempts
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	if override.Observability.Metrics.Enabled != DefaultMetricsEnabled {
		result.Observability.Metrics.Enabled = override.Observability.Metrics.Enabled
	}
	if override.Observability.Metrics.Port != 0 {
		result.Observability.Metrics.Port = override.Observability.Metrics.Port
	}
	if override.Observability.Metrics.Path != "" {
		result.Observability.Metrics.Path = override.Observability.Metrics.Path
	}

	if override.Observability.Tracing.Enabled != DefaultTracingEnabled {
		result.Observability.Tracing.Enabled = override.Observability.Tracing.Enabled
	}
	if override.Observability.Tracing.Endpoint != "" {
		result.Observability.Tracing.Endpoint = override.Observability.Tracing.Endpoint
	}
	if override.Observability.Tracing.SampleRate != 0 {
		result.Observability.Tracing.SampleRate = override.Observability.Tracing.SampleRate
	}

	if override.Observability.Sentry.Enabled != DefaultSentryEnabled {
		result.Observability.Sentry.Enabled = override.Observability.Sentry.Enabled
	}
	if override.Observability.Sentry.DSN != "" {
		result.Observability.Sentry.DSN = override.Observability.Sentry.DSN
	}
	if override.Observability.Sentry.Environment != "" {
		result.Observability.Sentry.Environment = override.Observability.Sentry.Environment
	}
	if override.Observability.Sentry.SampleRate != 0 {
		result.Observability.Sentry.SampleRate = override.Observability.Sentry.SampleRate
	}
	if override.Observability.Sentry.Release != "" {
		result.Observability.Sentry.Release = override.Observability.Sentry.Release
	}

	return &result
}

// Validate checks that the configuration is usable. A ConfigError-shaped
// failure here is fatal at construction (see internal/indexer/errors.go).
func (c *Config) Validate() error {
	if c.WorkspacePath == "" {
		return fmt.Errorf("workspace path cannot be empty")
	}
	if info, err := os.Stat(c.WorkspacePath); err != nil || !info.IsDir() {
		return fmt.Errorf("workspace path does not exist or is not a directory: %s", c.WorkspacePath)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive: %d", c.MaxFileSize)
	}
	if c.LinesPerChunk <= 0 {
		return fmt.Errorf("lines per chunk must be positive: %d", c.LinesPerChunk)
	}
	if c.MaxChunkBytes <= 0 {
		return fmt.Errorf("max chunk bytes must be positive: %d", c.MaxChunkBytes)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive: %d", c.Concurrency)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive: %d", c.BatchSize)
	}
	if c.Cache.TTLHours == 0 {
		return fmt.Errorf("cache ttl hours cannot be zero")
	}

	if !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}

	if c.Observability.Metrics.Enabled {
		if c.Observability.Metrics.Port < 1 || c.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d (must be 1-65535)", c.Observability.Metrics.Port)
		}
		if c.Observability.Metrics.Path == "" {
			return fmt.Errorf("metrics path cannot be empty when metrics enabled")
		}
	}

	if c.Observability.Tracing.Enabled {
		if c.Observability.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing endpoint cannot be empty when tracing enabled")
		}
		if c.Observability.Tracing.SampleRate < 0 || c.Observability.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing sample rate must be between 0 and 1: %f", c.Observability.Tracing.SampleRate)
		}
	}

	if c.Observability.Sentry.Enabled {
		if c.Observability.Sentry.DSN == "" {
			return fmt.Errorf("sentry DSN cannot be empty when sentry enabled")
		}
		if c.Observability.Sentry.SampleRate < 0 || c.Observability.Sentry.SampleRate > 1 {
			return fmt.Errorf("sentry sample rate must be between 0 and 1: %f", c.Observability.Sentry.SampleRate)
		}
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Default returns a default configuration for testing and documentation.
func Default() *Config {
	return defaults()
}
