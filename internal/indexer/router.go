package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/chunkline/chunkline/internal/observability"
)

// RouterConfig configures ChunkRouter batching and retry behavior,
// mirroring Config.Sink.
type RouterConfig struct {
	BatchSize         int
	MaxRetries        int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	MaxPollAttempts   int
	PollInterval      time.Duration
}

// DefaultRouterConfig returns the default batching and retry settings.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		BatchSize:         100,
		MaxRetries:        3,
		RetryDelay:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxPollAttempts:   10,
		PollInterval:      time.Second,
	}
}

// ChunkRouter partitions processed chunks by fingerprint into batches of
// up to BatchSize and streams them to a ChunkSink with retry.
type ChunkRouter struct {
	sink    ChunkSink
	cfg     RouterConfig
	tracker *ProgressTracker

	logger  *observability.Logger
	metrics *observability.MetricsCollector
}

// NewChunkRouter builds a ChunkRouter bound to sink, batching and
// retrying per cfg.
func NewChunkRouter(sink ChunkSink, cfg RouterConfig, tracker *ProgressTracker, logger *observability.Logger, metrics *observability.MetricsCollector) *ChunkRouter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &ChunkRouter{sink: sink, cfg: cfg, tracker: tracker, logger: logger, metrics: metrics}
}

// fingerprint groups a chunk for partitioning: language + type, so that
// batches are homogeneous where possible without starving small
// languages of their own batch.
func fingerprint(c Chunk) string {
	return c.Language + ":" + string(c.Type)
}

// Partition groups chunks by fingerprint and splits each group into
// batches of at most BatchSize.
func (r *ChunkRouter) Partition(chunks []Chunk) [][]Chunk {
	groups := make(map[string][]Chunk)
	var order []string
	for _, c := range chunks {
		fp := fingerprint(c)
		if _, ok := groups[fp]; !ok {
			order = append(order, fp)
		}
		groups[fp] = append(groups[fp], c)
	}

	var batches [][]Chunk
	for _, fp := range order {
		group := groups[fp]
		for i := 0; i < len(group); i += r.cfg.BatchSize {
			end := i + r.cfg.BatchSize
			if end > len(group) {
				end = len(group)
			}
			batches = append(batches, group[i:end])
		}
	}
	return batches
}

// Route partitions chunks and pushes every batch to the sink, retrying
// transient failures with exponential backoff. It never drops a chunk
// silently: a failed batch does not stop the batches after it, every
// chunk of a batch that exhausts its retries or fails permanently is
// marked failed in the tracker, and the first such failure is returned
// as a SinkError that carries the sink's error. The tracker records only the
// failed status, not the sink's error text.
func (r *ChunkRouter) Route(ctx context.Context, chunks []Chunk) error {
	var firstErr error
	for _, batch := range r.Partition(chunks) {
		if err := r.routeBatch(ctx, batch); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *ChunkRouter) routeBatch(ctx context.Context, batch []Chunk) error {
	start := time.Now()

	op := func() (EmbedResult, error) {
		result, err := r.sink.Embed(ctx, batch)
		if err != nil {
			return EmbedResult{}, r.classifyRetry(ctx, err)
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(maxInt(r.cfg.MaxRetries, 1))),
	)

	if r.metrics != nil {
		r.metrics.RecordRouterBatch(time.Since(start))
	}

	if err != nil {
		return r.failBatch(batch, err)
	}

	if result.Status == "pending" && result.JobID != "" {
		final, pollErr := r.pollUntilDone(ctx, result.JobID)
		if pollErr != nil {
			return r.failBatch(batch, pollErr)
		}
		result = final
	}

	if upErr := r.upsertBatch(ctx, batch, result); upErr != nil {
		return r.failBatch(batch, upErr)
	}

	r.markBatch(batch, StatusCompleted)
	return nil
}

// upsertBatch pairs each chunk with its embedding from the final embed
// result and pushes the vectors to the sink's store, with the same
// transient/permanent retry treatment as Embed. The chunk's own metadata
// rides along so the store can answer filtered queries.
func (r *ChunkRouter) upsertBatch(ctx context.Context, batch []Chunk, embed EmbedResult) error {
	vectors := make([]Vector, len(batch))
	for i, c := range batch {
		v := Vector{
			ID: c.ChunkID,
			Metadata: map[string]string{
				"filePath":  c.FilePath,
				"language":  c.Language,
				"type":      string(c.Type),
				"startLine": strconv.Itoa(c.StartLine),
				"endLine":   strconv.Itoa(c.EndLine),
			},
		}
		if c.Name != "" {
			v.Metadata["name"] = c.Name
		}
		if i < len(embed.IDs) && embed.IDs[i] != "" {
			v.ID = embed.IDs[i]
		}
		if i < len(embed.Embeddings) {
			v.Vector = embed.Embeddings[i]
		}
		vectors[i] = v
	}

	op := func() (UpsertResult, error) {
		result, err := r.sink.Upsert(ctx, vectors)
		if err != nil {
			return UpsertResult{}, r.classifyRetry(ctx, err)
		}
		if !result.Ack {
			return UpsertResult{}, errors.New("upsert not acknowledged")
		}
		return result, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(maxInt(r.cfg.MaxRetries, 1))),
	)
	return err
}

func (r *ChunkRouter) pollUntilDone(ctx context.Context, jobID string) (EmbedResult, error) {
	attempts := r.cfg.MaxPollAttempts
	if attempts <= 0 {
		attempts = 1
	}
	interval := r.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for i := 0; i < attempts; i++ {
		result, err := r.sink.Poll(ctx, jobID)
		if err != nil {
			return EmbedResult{}, err
		}
		switch result.Status {
		case "completed":
			return result, nil
		case "failed":
			return EmbedResult{}, fmt.Errorf("embed job %s failed", jobID)
		}

		select {
		case <-ctx.Done():
			return EmbedResult{}, ctx.Err()
		case <-time.After(interval):
		}
	}
	return EmbedResult{}, fmt.Errorf("embed job %s exceeded %d poll attempts", jobID, attempts)
}

// classifyRetry wraps a sink error for the backoff loop: permanent
// failures short-circuit, transient ones count a retry and go again.
func (r *ChunkRouter) classifyRetry(ctx context.Context, err error) error {
	if isPermanentSinkErr(err) {
		return backoff.Permanent(err)
	}
	if r.metrics != nil {
		r.metrics.RecordRouterRetry()
	}
	if r.logger != nil {
		r.logger.LogSinkRetry(ctx, 1, r.cfg.RetryDelay, err)
	}
	return err
}

func (r *ChunkRouter) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	if r.cfg.RetryDelay > 0 {
		bo.InitialInterval = r.cfg.RetryDelay
	}
	if r.cfg.BackoffMultiplier > 0 {
		bo.Multiplier = r.cfg.BackoffMultiplier
	}
	return bo
}

func (r *ChunkRouter) failBatch(batch []Chunk, err error) error {
	if r.metrics != nil {
		r.metrics.RecordRouterFailure()
	}
	r.markBatch(batch, StatusFailed)
	return newSinkError(len(batch), err)
}

func (r *ChunkRouter) markBatch(batch []Chunk, status Status) {
	if r.tracker == nil {
		return
	}
	for _, c := range batch {
		r.tracker.UpdateChunkStatus(c.ChunkID, status)
	}
}

// isPermanentSinkErr treats HTTP 4xx-shaped errors as permanent: 5xx
// and network errors retry, 4xx fails the batch. HTTPChunkSink's
// postJSON/Poll helpers format permanent failures with this literal
// substring so the router can distinguish them without a typed sentinel
// crossing the ChunkSink interface boundary.
func isPermanentSinkErr(err error) bool {
	return strings.Contains(err.Error(), "permanent failure")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
