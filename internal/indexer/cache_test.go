package indexer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunkline/chunkline/internal/observability"
)

func newTestCache(t *testing.T, maxEntries int, maxSizeBytes int64, ttlHours int) *ChunkCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	cache, err := NewChunkCache(path, maxSizeBytes, maxEntries, ttlHours, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func sampleChunkSet(path string) *ChunkSet {
	return &ChunkSet{
		FilePath: path,
		FileHash: "deadbeef",
		Chunks: []Chunk{
			{ChunkID: "c1", FilePath: path, Content: "func f() {}", Type: ChunkTypeFunction},
		},
		ProducedAt: time.Now().UTC(),
	}
}

func TestChunkCache_SetAndGet(t *testing.T) {
	cache := newTestCache(t, 0, 0, 0)

	set := sampleChunkSet("a.go")
	require.NoError(t, cache.Set("a.go", "deadbeef", set))

	got, err := cache.Get("a.go", "deadbeef")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, set.Chunks[0].ChunkID, got.Chunks[0].ChunkID)
}

func TestChunkCache_GetMiss(t *testing.T) {
	cache := newTestCache(t, 0, 0, 0)
	got, err := cache.Get("missing.go", "whatever")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChunkCache_ReRunCacheHitSkipsDispatch(t *testing.T) {
	// Models the "modified-file re-run" seed scenario: an unmodified file's
	// hash is unchanged across runs, so BatchCheck routes it to Cached and
	// the second run never needs to dispatch it again.
	cache := newTestCache(t, 0, 0, 0)
	require.NoError(t, cache.Set("a.go", "hash-1", sampleChunkSet("a.go")))

	first := cache.BatchCheck(map[string]string{"a.go": "hash-1"})
	assert.Contains(t, first.Cached, "a.go")
	assert.Empty(t, first.Uncached)

	// Simulate content drift: same path, new hash.
	second := cache.BatchCheck(map[string]string{"a.go": "hash-2"})
	assert.Contains(t, second.Uncached, "a.go")
	assert.Empty(t, second.Cached)
}

func TestChunkCache_TTLExpiry(t *testing.T) {
	cache := newTestCache(t, 0, 0, 0)
	cache.ttl = time.Millisecond

	require.NoError(t, cache.Set("a.go", "h1", sampleChunkSet("a.go")))
	time.Sleep(10 * time.Millisecond)

	got, err := cache.Get("a.go", "h1")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry should be treated as absent")
}

func TestChunkCache_InvalidateFile(t *testing.T) {
	cache := newTestCache(t, 0, 0, 0)
	require.NoError(t, cache.Set("a.go", "h1", sampleChunkSet("a.go")))

	require.NoError(t, cache.InvalidateFile("a.go"))

	got, err := cache.Get("a.go", "h1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChunkCache_LRUEvictionAtEntryCeiling(t *testing.T) {
	// Seed scenario: "LRU eviction at a 3-entry ceiling".
	cache := newTestCache(t, 3, 0, 0)

	require.NoError(t, cache.Set("a.go", "h1", sampleChunkSet("a.go")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, cache.Set("b.go", "h2", sampleChunkSet("b.go")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, cache.Set("c.go", "h3", sampleChunkSet("c.go")))
	time.Sleep(2 * time.Millisecond)

	// Touch a.go so it is no longer the least recently used.
	_, err := cache.Get("a.go", "h1")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	// Adding a fourth entry should evict b.go, the least recently accessed.
	require.NoError(t, cache.Set("d.go", "h4", sampleChunkSet("d.go")))

	gotA, _ := cache.Get("a.go", "h1")
	gotB, _ := cache.Get("b.go", "h2")
	gotD, _ := cache.Get("d.go", "h4")

	assert.NotNil(t, gotA, "recently accessed entry should survive eviction")
	assert.Nil(t, gotB, "least recently used entry should be evicted")
	assert.NotNil(t, gotD)
}

func TestChunkCache_EvictionIncrementsMetric(t *testing.T) {
	metrics := observability.NewMetricsCollectorWithRegistry("test_"+t.Name(), nil)
	path := filepath.Join(t.TempDir(), "cache.db")
	cache, err := NewChunkCache(path, 0, 2, 0, metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	require.NoError(t, cache.Set("a.go", "h1", sampleChunkSet("a.go")))
	require.NoError(t, cache.Set("b.go", "h2", sampleChunkSet("b.go")))
	require.NoError(t, cache.Set("c.go", "h3", sampleChunkSet("c.go")))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheEvictionsTotal))
}

func TestChunkCache_CompressesLargePayloads(t *testing.T) {
	large := make([]Chunk, 0, 50)
	for i := 0; i < 50; i++ {
		large = append(large, Chunk{ChunkID: "c", Content: "some reasonably long chunk body padding out the payload"})
	}
	set := &ChunkSet{FilePath: "big.go", FileHash: "h", Chunks: large, ProducedAt: time.Now().UTC()}

	encoded, err := encodeChunkSet(set)
	require.NoError(t, err)
	assert.True(t, len(encoded) > 0)

	decoded, err := decodeChunkSet(encoded)
	require.NoError(t, err)
	assert.Len(t, decoded.Chunks, 50)
}

func TestChunkCache_CleanExpired(t *testing.T) {
	cache := newTestCache(t, 0, 0, 0)
	cache.ttl = time.Millisecond
	require.NoError(t, cache.Set("a.go", "h1", sampleChunkSet("a.go")))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, cache.CleanExpired())

	var count int
	row := cache.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`)
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)
}
