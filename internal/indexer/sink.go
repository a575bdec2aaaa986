package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ChunkSink is the narrow interface the ChunkRouter speaks to: the
// external embedding + vector-store endpoint.
type ChunkSink interface {
	// Embed submits a batch for embedding. The returned status is
	// "completed" for synchronous sinks or "pending" for async ones that
	// require polling via Poll.
	Embed(ctx context.Context, batch []Chunk) (EmbedResult, error)
	// Upsert writes embedded vectors to the remote vector store.
	Upsert(ctx context.Context, vectors []Vector) (UpsertResult, error)
	// Poll checks the status of an async embed job.
	Poll(ctx context.Context, jobID string) (EmbedResult, error)
}

// Searcher is an optional ChunkSink capability: sinks that maintain a
// queryable vector index can answer Search calls. The pipeline itself
// stores no embeddings, so Pipeline.Search delegates here.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, filters map[string]string) ([]SearchHit, error)
}

// SearchHit is one result returned by a Searcher.
type SearchHit struct {
	ChunkID  string            `json:"chunkId"`
	FilePath string            `json:"filePath"`
	Score    float64           `json:"score"`
	Content  string            `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EmbedResult is the response to a ChunkSink.Embed call. IDs and
// Embeddings are positional with the submitted batch; either may be
// empty when the service assigns them server-side.
type EmbedResult struct {
	Status     string      `json:"status"` // "completed", "pending", "failed"
	JobID      string      `json:"jobId,omitempty"`
	IDs        []string    `json:"ids,omitempty"`
	Embeddings [][]float32 `json:"embeddings,omitempty"`
}

// Vector is a single embedded chunk ready for upsert.
type Vector struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UpsertResult is the response to a ChunkSink.Upsert call.
type UpsertResult struct {
	Ack bool `json:"ack"`
}

// HTTPChunkSink is the production ChunkSink: a narrow JSON/bearer-token
// client over the embed/upsert endpoints named in Config.Sink. The
// remote embedding service itself is an external collaborator; this
// type is the thin transport the Router is allowed to depend on.
type HTTPChunkSink struct {
	client         *http.Client
	endpointEmbed  string
	endpointUpsert string
	token          string
}

// NewHTTPChunkSink builds a ChunkSink bound to the given endpoints.
func NewHTTPChunkSink(endpointEmbed, endpointUpsert, token string, timeout time.Duration) *HTTPChunkSink {
	return &HTTPChunkSink{
		client:         &http.Client{Timeout: timeout},
		endpointEmbed:  endpointEmbed,
		endpointUpsert: endpointUpsert,
		token:          token,
	}
}

func (s *HTTPChunkSink) Embed(ctx context.Context, batch []Chunk) (EmbedResult, error) {
	var result EmbedResult
	if err := s.postJSON(ctx, s.endpointEmbed, map[string]any{"chunks": batch}, &result); err != nil {
		return EmbedResult{}, err
	}
	return result, nil
}

func (s *HTTPChunkSink) Upsert(ctx context.Context, vectors []Vector) (UpsertResult, error) {
	var result UpsertResult
	if err := s.postJSON(ctx, s.endpointUpsert, map[string]any{"vectors": vectors}, &result); err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

func (s *HTTPChunkSink) Poll(ctx context.Context, jobID string) (EmbedResult, error) {
	var result EmbedResult
	url := s.endpointEmbed + "/" + jobID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return EmbedResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return EmbedResult{}, fmt.Errorf("poll transient failure: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return EmbedResult{}, fmt.Errorf("poll permanent failure: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return EmbedResult{}, fmt.Errorf("decode poll response: %w", err)
	}
	return result, nil
}

func (s *HTTPChunkSink) postJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("transient failure: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("permanent failure: status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
