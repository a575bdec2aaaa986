package indexer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, concurrency int) *Dispatcher {
	t.Helper()
	registry := NewLanguageRegistry(50, MaxChunkBytes)
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	cache, err := NewChunkCache(cachePath, 0, 0, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return NewDispatcher(registry, cache, concurrency, 0, 50, MaxChunkBytes, nil, nil, nil)
}

func TestDispatcher_RunProducesChunksPerFile(t *testing.T) {
	d := newTestDispatcher(t, 2)
	tracker := NewProgressTracker()

	inputs := []DispatchInput{
		{Path: "a.go", Bytes: []byte("package main\n\nfunc A() {}\n"), Hash: "h1"},
		{Path: "b.go", Bytes: []byte("package main\n\nfunc B() {}\n"), Hash: "h2"},
	}
	tracker.RegisterFiles([]string{"a.go", "b.go"})

	var mu sync.Mutex
	results := make(map[string]DispatchResult)
	d.Run(context.Background(), inputs, tracker, func(res DispatchResult) {
		mu.Lock()
		defer mu.Unlock()
		results[res.Path] = res
	})

	require.Len(t, results, 2)
	for _, path := range []string{"a.go", "b.go"} {
		res := results[path]
		require.NoError(t, res.Err)
		assert.NotEmpty(t, res.Chunks)
	}
}

func TestDispatcher_WritesThroughToCache(t *testing.T) {
	d := newTestDispatcher(t, 1)
	tracker := NewProgressTracker()
	tracker.RegisterFiles([]string{"a.go"})

	d.Run(context.Background(), []DispatchInput{
		{Path: "a.go", Bytes: []byte("package main\n\nfunc A() {}\n"), Hash: "h1"},
	}, tracker, func(DispatchResult) {})

	set, err := d.cache.Get("a.go", "h1")
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.NotEmpty(t, set.Chunks)
}

func TestDispatcher_EmptyFileResolvesCompleted(t *testing.T) {
	d := newTestDispatcher(t, 1)
	tracker := NewProgressTracker()
	tracker.RegisterFiles([]string{"empty.go"})

	var got DispatchResult
	d.Run(context.Background(), []DispatchInput{
		{Path: "empty.go", Bytes: nil, Hash: "h1"},
	}, tracker, func(res DispatchResult) { got = res })

	require.NoError(t, got.Err)
	assert.Empty(t, got.Chunks)
	assert.Equal(t, StatusCompleted, tracker.GetFileProgress()["empty.go"])
}

func TestDispatcher_CancelSkipsQueuedFiles(t *testing.T) {
	d := newTestDispatcher(t, 1)
	d.Cancel()
	assert.True(t, d.Cancelled())

	tracker := NewProgressTracker()
	tracker.RegisterFiles([]string{"a.go"})

	var calls int
	d.Run(context.Background(), []DispatchInput{
		{Path: "a.go", Bytes: []byte("package main\n"), Hash: "h1"},
	}, tracker, func(DispatchResult) { calls++ })

	assert.Zero(t, calls, "a cancelled dispatcher should not invoke onResult for queued files")
	assert.Equal(t, StatusCancelled, tracker.GetFileProgress()["a.go"])
}

func TestDispatcher_ContextCancellationStopsFeed(t *testing.T) {
	d := newTestDispatcher(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tracker := NewProgressTracker()
	tracker.RegisterFiles([]string{"a.go"})

	var calls int
	d.Run(ctx, []DispatchInput{
		{Path: "a.go", Bytes: []byte("package main\n"), Hash: "h1"},
	}, tracker, func(DispatchResult) { calls++ })

	assert.Zero(t, calls)
}

func TestDispatcher_UnknownExtensionUsesLineChunker(t *testing.T) {
	d := newTestDispatcher(t, 1)
	tracker := NewProgressTracker()
	tracker.RegisterFiles([]string{"data.txt"})

	var got DispatchResult
	d.Run(context.Background(), []DispatchInput{
		{Path: "data.txt", Bytes: []byte("line one\nline two\n"), Hash: "h1"},
	}, tracker, func(res DispatchResult) { got = res })

	require.NoError(t, got.Err)
	require.NotEmpty(t, got.Chunks)
	assert.Equal(t, "line_chunker", got.Chunks[0].Parser)
}

func TestDispatcher_FileTimeoutBoundsParseStep(t *testing.T) {
	d := newTestDispatcher(t, 1)
	d.fileTimeout = time.Nanosecond

	tracker := NewProgressTracker()
	tracker.RegisterFiles([]string{"a.go"})

	// A timeout this small should not crash the dispatcher even if the
	// parse step races past it; the contract is "doesn't hang", not a
	// specific outcome for this particular input.
	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), []DispatchInput{
			{Path: "a.go", Bytes: []byte("package main\n\nfunc A() {}\n"), Hash: "h1"},
		}, tracker, func(DispatchResult) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not return within the timeout window")
	}
}

func TestErrorTypeOf(t *testing.T) {
	assert.Equal(t, "parse_error", errorTypeOf(newParseError("a.go", "initial", nil)))
	assert.Equal(t, "io_error", errorTypeOf(newIoError("a.go", nil)))
	assert.Equal(t, "unknown", errorTypeOf(assert.AnError))
}

func TestExtOf(t *testing.T) {
	assert.Equal(t, ".go", extOf("main.go"))
	assert.Equal(t, ".go", extOf("dir/sub/main.go"))
	assert.Equal(t, "", extOf("Makefile"))
	assert.Equal(t, "", extOf("dir.with.dots/file"))
}
