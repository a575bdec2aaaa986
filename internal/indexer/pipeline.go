package indexer

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/chunkline/chunkline/internal/observability"
)

// Pipeline wires the pipeline components behind the core's external
// surface: ProcessWorkspace, Search, GetFileProcessingProgress,
// Shutdown. Search delegates to the sink; the pipeline keeps no
// persistent embedding store of its own.
type Pipeline struct {
	sessions *SessionManager
	sink     ChunkSink
	logger   *observability.Logger
	metrics  *observability.MetricsCollector
	tracer   trace.Tracer

	mu        sync.Mutex
	lastByKey map[string]*ProgressTracker
}

// NewPipeline builds a Pipeline whose sessions are constructed lazily
// from cfg on first use, one ChunkCache/MerkleStore pair per workspace.
func NewPipeline(cfg SessionConfig, tracer trace.Tracer) *Pipeline {
	cfg.Tracer = tracer
	p := &Pipeline{
		sink:      cfg.Sink,
		lastByKey: make(map[string]*ProgressTracker),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    tracer,
	}
	p.sessions = NewSessionManager(buildSession(cfg))
	return p
}

// ProcessWorkspace is the core's single entry operation: it scans
// the workspace, diffs it against the last Merkle snapshot, serves
// unchanged files from the ChunkCache, dispatches changed/new files
// through the per-language chunkers, and routes the resulting chunks to
// the ChunkSink. Returns true iff at least one chunk was accepted by the
// sink or every file resolved to a cache hit; returns false only if the
// dispatch stage itself crashed.
func (p *Pipeline) ProcessWorkspace(ctx context.Context, userID, deviceID, workspacePath, token string, ignorePatterns []string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("dispatcher crashed: %v", r)
		}
	}()

	if ctx.Err() != nil {
		return false, newCancelledError("processWorkspace")
	}

	sess, buildErr := p.sessions.GetOrCreate(userID, deviceID, workspacePath)
	if buildErr != nil {
		return false, newConfigError("construct session", buildErr)
	}
	p.mu.Lock()
	p.lastByKey[sess.Key] = sess.Tracker
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.InfoContext(ctx, "processWorkspace starting", "workspace", workspacePath, "user_id", userID, "device_id", deviceID)
	}

	scanner := sess.Scanner
	if len(ignorePatterns) > 0 {
		scanner = NewFileScanner(
			keys(sess.Scanner.allowedExtensions),
			append(append([]string{}, sess.Scanner.ignoreGlobs...), ignorePatterns...),
			keys(sess.Scanner.ignoredDirs),
			sess.Scanner.maxFileSize,
		)
	}
	scanCtx := ctx
	var scanSpan trace.Span
	if p.tracer != nil {
		scanCtx, scanSpan = observability.InstrumentScan(ctx, p.tracer, workspacePath)
	}
	scanResult, scanErr := scanner.Scan(scanCtx, workspacePath)
	p.endSpan(scanSpan)
	if scanErr != nil {
		return false, scanErr
	}

	paths := make([]string, 0, len(scanResult.Files))
	for _, f := range scanResult.Files {
		paths = append(paths, f.Path)
		if p.metrics != nil {
			p.metrics.RecordFileScanned()
		}
	}
	sess.Tracker.RegisterFiles(paths)

	filesByPath := make(map[string]File, len(scanResult.Files))
	for _, f := range scanResult.Files {
		filesByPath[f.Path] = f
	}

	var diffSpan trace.Span
	if p.tracer != nil {
		_, diffSpan = observability.InstrumentMerkleDiff(ctx, p.tracer)
	}
	previous, _ := sess.Merkle.Load()
	current := sess.Merkle.Build(workspacePath, filesByPath)
	diff := sess.Merkle.Diff(ctx, previous, current)
	p.endSpan(diffSpan)

	for _, removedPath := range diff.Removed {
		if err := sess.Cache.InvalidateFile(removedPath); err != nil && p.logger != nil {
			p.logger.WarnContext(ctx, "cache invalidate failed", "path", removedPath, "error", err)
		}
	}

	var cacheSpan trace.Span
	if p.tracer != nil {
		_, cacheSpan = observability.InstrumentCacheCheck(ctx, p.tracer, len(scanResult.Files))
	}
	batch := sess.Cache.BatchCheck(scanResult.FileHashes)
	p.endSpan(cacheSpan)

	// freshChunks holds only chunks produced by this run's own dispatch
	// work. Cache-hit chunks were already routed to the sink on the run
	// that first produced them; routing them again here would resubmit
	// the same embeddings on every unchanged re-run.
	var freshChunks []Chunk
	var dispatchInputs []DispatchInput

	for _, path := range batch.Cached {
		f := filesByPath[path]
		set, getErr := sess.Cache.Get(path, f.Hash)
		if getErr != nil || set == nil {
			dispatchInputs = append(dispatchInputs, DispatchInput{Path: path, Bytes: f.Bytes, Hash: f.Hash, FileSize: f.Size})
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordCacheHit()
		}
		sess.Tracker.UpdateFileStatus(path, StatusCompleted)
	}
	for _, path := range append(batch.Uncached, batch.Expired...) {
		f := filesByPath[path]
		if p.metrics != nil {
			p.metrics.RecordCacheMiss()
		}
		dispatchInputs = append(dispatchInputs, DispatchInput{Path: path, Bytes: f.Bytes, Hash: f.Hash, FileSize: f.Size})
	}

	var dispatchFailed int
	var resultMu sync.Mutex
	sess.Dispatcher.Run(ctx, dispatchInputs, sess.Tracker, func(res DispatchResult) {
		resultMu.Lock()
		defer resultMu.Unlock()
		if res.Err != nil {
			dispatchFailed++
			return
		}
		freshChunks = append(freshChunks, res.Chunks...)
	})

	if saveErr := sess.Merkle.Save(current); saveErr != nil && p.logger != nil {
		p.logger.WarnContext(ctx, "merkle snapshot save failed", "error", saveErr)
	}

	allCacheHits := len(dispatchInputs) == 0
	var accepted bool
	if len(freshChunks) > 0 {
		routeCtx := ctx
		var routeSpan trace.Span
		if p.tracer != nil {
			routeCtx, routeSpan = observability.InstrumentRouterBatch(ctx, p.tracer, len(freshChunks))
		}
		routeErr := sess.Router.Route(routeCtx, freshChunks)
		p.endSpan(routeSpan)
		if routeErr != nil {
			if p.logger != nil {
				p.logger.ErrorContext(ctx, "router batch failed", "error", routeErr, "token_present", token != "")
			}
		} else {
			accepted = true
		}
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, "processWorkspace complete", "workspace", workspacePath, "files", len(paths), "chunks", len(freshChunks), "failed_files", dispatchFailed)
	}

	return accepted || allCacheHits, nil
}

// Search runs a query against the sink's vector index. The pipeline
// itself persists no embeddings, so this requires a sink that implements
// the optional Searcher capability.
func (p *Pipeline) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]SearchHit, error) {
	if ctx.Err() != nil {
		return nil, newCancelledError("search")
	}
	searcher, ok := p.sink.(Searcher)
	if !ok {
		return nil, newConfigError("configured sink does not support search", nil)
	}
	return searcher.Search(ctx, query, topK, filters)
}

// GetFileProcessingProgress returns the overall completion percentage
// (0-100) for the most recently processed session matching the given
// identity. If no matching session has run, it returns 0.
func (p *Pipeline) GetFileProcessingProgress(userID, deviceID, workspacePath string) float64 {
	key := sessionKey(userID, deviceID, workspacePath)
	p.mu.Lock()
	tracker, ok := p.lastByKey[key]
	p.mu.Unlock()
	if !ok {
		return 0
	}
	return tracker.GetOverallProgress().PercentComplete
}

// Shutdown tears down every open session. ChunkCache writes complete
// before a dispatch worker reports its result, so there is no
// outstanding write to drain here beyond closing the database handle
// itself.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p.logger != nil {
		p.logger.InfoContext(ctx, "pipeline shutting down", "open_sessions", p.sessions.Count())
	}
	return p.sessions.CloseAll()
}

func (p *Pipeline) endSpan(span trace.Span) {
	if span != nil {
		span.End()
	}
}
