package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/chunkline/chunkline/internal/observability"
)

// DispatchInput is one unit of work handed to the Dispatcher: an
// admitted file's path and bytes, already produced by the FileScanner.
type DispatchInput struct {
	Path     string
	Bytes    []byte
	Hash     string
	FileSize int64
}

// DispatchResult is what the Dispatcher reports for one file.
type DispatchResult struct {
	Path   string
	Chunks []Chunk
	Err    error
}

// Dispatcher owns a bounded-concurrency worker pool that parses and
// chunks files, writes successful results into the ChunkCache, and
// streams chunks downstream to the caller.
type Dispatcher struct {
	registry      *LanguageRegistry
	cache         *ChunkCache
	concurrency   int
	fileTimeout   time.Duration
	linesPerChunk int
	maxChunkBytes int

	logger  *observability.Logger
	metrics *observability.MetricsCollector
	tracer  trace.Tracer

	cancelled atomic.Bool
}

// NewDispatcher builds a Dispatcher with the given concurrency degree
// (clamped to at least 1) and an optional per-file timeout (0 disables
// it). linesPerChunk
// and maxChunkBytes configure the LineChunker used for files with no
// registered language plugin.
func NewDispatcher(registry *LanguageRegistry, cache *ChunkCache, concurrency int, fileTimeout time.Duration, linesPerChunk, maxChunkBytes int, logger *observability.Logger, metrics *observability.MetricsCollector, tracer trace.Tracer) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		registry:      registry,
		cache:         cache,
		concurrency:   concurrency,
		fileTimeout:   fileTimeout,
		linesPerChunk: linesPerChunk,
		maxChunkBytes: maxChunkBytes,
		logger:        logger,
		metrics:       metrics,
		tracer:        tracer,
	}
}

// Cancel trips the dispatcher's cancel token. In-flight files complete;
// queued files are dropped and reported as cancelled.
func (d *Dispatcher) Cancel() {
	d.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (d *Dispatcher) Cancelled() bool {
	return d.cancelled.Load()
}

// Run processes inputs across the worker pool and invokes onResult for
// every file, in the order results complete (not input order). Ordering
// between files is not guaranteed; within one file, chunk order is
// preserved as produced by the chunker. onResult may be called
// concurrently from multiple workers unless tracker/router-style
// goroutine-safety is provided by the callback itself.
func (d *Dispatcher) Run(ctx context.Context, inputs []DispatchInput, tracker *ProgressTracker, onResult func(DispatchResult)) {
	work := make(chan DispatchInput)
	var wg sync.WaitGroup

	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in := range work {
				onResult(d.processOne(ctx, in, tracker))
			}
		}()
	}

	if d.metrics != nil {
		d.metrics.SetDispatcherQueueDepth(len(inputs))
	}

	for _, in := range inputs {
		if d.cancelled.Load() || ctx.Err() != nil {
			if tracker != nil {
				tracker.UpdateFileStatus(in.Path, StatusCancelled)
			}
			continue
		}
		select {
		case work <- in:
		case <-ctx.Done():
			// The next loop iteration sees ctx.Err() and drains the rest
			// of the queue as cancelled.
			if tracker != nil {
				tracker.UpdateFileStatus(in.Path, StatusCancelled)
			}
		}
	}
	close(work)
	wg.Wait()

	if d.metrics != nil {
		d.metrics.SetDispatcherQueueDepth(0)
	}
}

// processOne parses and chunks a single file, writes it to the cache on
// success, and updates the tracker. A per-file timeout, if configured,
// bounds the parse/chunk step only; it never aborts other files.
func (d *Dispatcher) processOne(ctx context.Context, in DispatchInput, tracker *ProgressTracker) DispatchResult {
	if tracker != nil {
		tracker.UpdateFileStatus(in.Path, StatusProcessing)
	}

	language := "unknown"
	if plugin := d.registry.Lookup(extOf(in.Path)); plugin != nil {
		language = plugin.Name
	}

	fileCtx := ctx
	var cancel context.CancelFunc
	if d.fileTimeout > 0 {
		fileCtx, cancel = context.WithTimeout(ctx, d.fileTimeout)
		defer cancel()
	}
	var fileSpan trace.Span
	if d.tracer != nil {
		fileCtx, fileSpan = observability.InstrumentDispatchFile(fileCtx, d.tracer, in.Path, language)
	}

	start := time.Now()
	chunks, err := d.chunkFile(fileCtx, in)
	duration := time.Since(start)
	if fileSpan != nil {
		fileSpan.End()
	}

	if d.metrics != nil {
		d.metrics.RecordDispatcherFile(language, duration)
		for _, c := range chunks {
			d.metrics.RecordChunkEmitted(string(c.Type))
		}
	}
	if d.logger != nil {
		d.logger.LogFileDispatched(ctx, in.Path, language, len(chunks), duration)
	}

	if err != nil {
		if d.metrics != nil {
			d.metrics.RecordDispatcherFailure(errorTypeOf(err))
		}
		if tracker != nil {
			tracker.UpdateFileStatus(in.Path, StatusFailed)
		}
		return DispatchResult{Path: in.Path, Err: err}
	}

	if tracker != nil {
		for _, c := range chunks {
			tracker.RegisterChunk(c.ChunkID, in.Path)
			tracker.UpdateChunkStatus(c.ChunkID, StatusCompleted)
		}
		if len(chunks) == 0 {
			// An admitted but empty file produces zero chunks; nothing
			// downstream will ever transition it, so resolve it here.
			tracker.UpdateFileStatus(in.Path, StatusCompleted)
		}
	}

	if d.cache != nil {
		set := &ChunkSet{
			FilePath:   in.Path,
			FileHash:   in.Hash,
			Chunks:     chunks,
			ProducedAt: time.Now().UTC(),
		}
		if err := d.cache.Set(in.Path, in.Hash, set); err != nil {
			// Cache is best-effort: log via the caller-supplied
			// logger, never surface CacheError to the pipeline caller.
			if d.logger != nil {
				d.logger.WarnContext(ctx, "cache write failed", "path", in.Path, "error", err)
			}
		}
	}

	return DispatchResult{Path: in.Path, Chunks: chunks}
}

func (d *Dispatcher) chunkFile(ctx context.Context, in DispatchInput) (chunks []Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newParseError(in.Path, "panic", panicToErr(r))
			chunks = nil
		}
	}()

	ext := extOf(in.Path)
	plugin := d.registry.Lookup(ext)
	if plugin == nil {
		lc := NewLineChunker(d.linesPerChunk, d.maxChunkBytes)
		return lc.Chunk(in.Bytes, in.Path, "unknown", ChunkTypeLineBased), nil
	}

	chunker := plugin.NewChunker()
	result := chunker.Chunk(ctx, in.Bytes, in.Path)
	return result, nil
}

func extOf(filePath string) string {
	return path.Ext(filePath)
}

func errorTypeOf(err error) string {
	var pe *ParseError
	var ie *IoError
	switch {
	case errors.As(err, &pe):
		return "parse_error"
	case errors.As(err, &ie):
		return "io_error"
	default:
		return "unknown"
	}
}

func panicToErr(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
