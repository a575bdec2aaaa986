package indexer

import (
	"bytes"
	"compress/gzip"
	"crypto/md5" //nolint:gosec // used only as a cache key derivation, not for security
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chunkline/chunkline/internal/observability"
	"github.com/chunkline/chunkline/internal/security"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key     TEXT PRIMARY KEY,
	file_path     TEXT NOT NULL,
	file_hash     TEXT NOT NULL,
	data          BLOB NOT NULL,
	data_size     INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	last_accessed TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_file_path ON cache_entries(file_path);
CREATE INDEX IF NOT EXISTS idx_cache_entries_file_hash ON cache_entries(file_hash);
CREATE INDEX IF NOT EXISTS idx_cache_entries_created_at ON cache_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_cache_entries_last_accessed ON cache_entries(last_accessed);
CREATE INDEX IF NOT EXISTS idx_cache_entries_data_size ON cache_entries(data_size);
`

// gzipThreshold is the serialized-payload size above which ChunkCache
// gzips the stored blob.
const gzipThreshold = 1024

// timeLayout is ISO-8601 with a fixed-width fractional second, so the
// lexicographic ordering of stored timestamps matches chronological
// ordering (the LRU eviction query sorts the TEXT column directly).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ChunkCache is a content-addressed, durable store of ChunkSets keyed by
// (filePath, fileHash), backed by a single sqlite table.
type ChunkCache struct {
	db           *sql.DB
	maxSizeBytes int64
	maxEntries   int
	ttl          time.Duration
	metrics      *observability.MetricsCollector
}

// NewChunkCache opens (creating if necessary) the sqlite database at
// dbPath and applies the cache_entries schema. metrics may be nil.
func NewChunkCache(dbPath string, maxSizeBytes int64, maxEntries int, ttlHours int, metrics *observability.MetricsCollector) (*ChunkCache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newIoError(dbPath, err)
	}
	safePath, err := security.ValidatePathWithinBase(dbPath, dir)
	if err != nil {
		return nil, newCacheError("validate db path", err)
	}

	db, err := sql.Open("sqlite", safePath)
	if err != nil {
		return nil, newCacheError("open", err)
	}
	db.SetMaxOpenConns(1) // one writer at a time

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, newCacheError("apply schema", err)
	}

	return &ChunkCache{
		db:           db,
		maxSizeBytes: maxSizeBytes,
		maxEntries:   maxEntries,
		ttl:          time.Duration(ttlHours) * time.Hour,
		metrics:      metrics,
	}, nil
}

// Close releases the underlying database handle.
func (c *ChunkCache) Close() error {
	return c.db.Close()
}

func cacheKey(path, hash string) string {
	sum := md5.Sum([]byte(path + ":" + hash)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Get returns the cached ChunkSet for (path, hash), or nil if absent or
// expired. Updates last_accessed on hit.
func (c *ChunkCache) Get(path, hash string) (*ChunkSet, error) {
	key := cacheKey(path, hash)

	var data []byte
	var createdAt string
	row := c.db.QueryRow(`SELECT data, created_at FROM cache_entries WHERE cache_key = ?`, key)
	if err := row.Scan(&data, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, newCacheError("get", err)
	}

	created, _ := time.Parse(time.RFC3339Nano, createdAt)
	if c.ttl > 0 && time.Since(created) > c.ttl {
		_, _ = c.db.Exec(`DELETE FROM cache_entries WHERE cache_key = ?`, key)
		return nil, nil
	}

	set, err := decodeChunkSet(data)
	if err != nil {
		return nil, newCacheError("decode", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	_, _ = c.db.Exec(`UPDATE cache_entries SET last_accessed = ? WHERE cache_key = ?`, now, key)

	return set, nil
}

// Set upserts the ChunkSet for (path, hash) and enforces cache limits.
func (c *ChunkCache) Set(path, hash string, set *ChunkSet) error {
	data, err := encodeChunkSet(set)
	if err != nil {
		return newCacheError("encode", err)
	}

	key := cacheKey(path, hash)
	now := time.Now().UTC().Format(timeLayout)

	tx, err := c.db.Begin()
	if err != nil {
		return newCacheError("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO cache_entries (cache_key, file_path, file_hash, data, data_size, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			data = excluded.data,
			data_size = excluded.data_size,
			created_at = excluded.created_at,
			last_accessed = excluded.last_accessed
	`, key, path, hash, data, len(data), now, now)
	if err != nil {
		return newCacheError("upsert", err)
	}

	if err := tx.Commit(); err != nil {
		return newCacheError("commit", err)
	}

	return c.enforceLimits()
}

// Has reports whether a non-expired entry exists for (path, hash). An
// expired entry is treated as absent and deleted lazily.
func (c *ChunkCache) Has(path, hash string) bool {
	set, err := c.Get(path, hash)
	return err == nil && set != nil
}

// BatchCheck partitions files into cached/uncached/expired based on
// current cache state. files maps workspace-relative path to content hash.
func (c *ChunkCache) BatchCheck(files map[string]string) BatchCheckResult {
	var result BatchCheckResult
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		hash := files[p]
		key := cacheKey(p, hash)
		var createdAt string
		row := c.db.QueryRow(`SELECT created_at FROM cache_entries WHERE cache_key = ?`, key)
		if err := row.Scan(&createdAt); err != nil {
			result.Uncached = append(result.Uncached, p)
			continue
		}
		created, _ := time.Parse(time.RFC3339Nano, createdAt)
		if c.ttl > 0 && time.Since(created) > c.ttl {
			result.Expired = append(result.Expired, p)
			continue
		}
		result.Cached = append(result.Cached, p)
	}

	return result
}

// InvalidateFile deletes all cache rows for path.
func (c *ChunkCache) InvalidateFile(path string) error {
	_, err := c.db.Exec(`DELETE FROM cache_entries WHERE file_path = ?`, path)
	if err != nil {
		return newCacheError("invalidate", err)
	}
	return nil
}

// CleanExpired deletes every row older than the configured TTL.
func (c *ChunkCache) CleanExpired() error {
	if c.ttl <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-c.ttl).UTC().Format(timeLayout)
	_, err := c.db.Exec(`DELETE FROM cache_entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return newCacheError("clean expired", err)
	}
	return nil
}

// enforceLimits evicts entries in LRU order (by last_accessed ascending)
// until entryCount <= maxEntries AND totalBytes <= 0.8 * maxSizeBytes.
func (c *ChunkCache) enforceLimits() error {
	evicted := 0
	defer func() {
		if evicted > 0 && c.metrics != nil {
			c.metrics.RecordCacheEviction(evicted)
		}
	}()

	for {
		var count int
		var total sql.NullInt64
		if err := c.db.QueryRow(`SELECT COUNT(*), SUM(data_size) FROM cache_entries`).Scan(&count, &total); err != nil {
			return newCacheError("enforce limits: count", err)
		}

		overCount := c.maxEntries > 0 && count > c.maxEntries
		overSize := c.maxSizeBytes > 0 && total.Valid && total.Int64 > int64(0.8*float64(c.maxSizeBytes))

		if !overCount && !overSize {
			return nil
		}

		var key string
		row := c.db.QueryRow(`SELECT cache_key FROM cache_entries ORDER BY last_accessed ASC LIMIT 1`)
		if err := row.Scan(&key); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return newCacheError("enforce limits: select lru", err)
		}

		if _, err := c.db.Exec(`DELETE FROM cache_entries WHERE cache_key = ?`, key); err != nil {
			return newCacheError("enforce limits: evict", err)
		}
		evicted++
	}
}

func encodeChunkSet(set *ChunkSet) ([]byte, error) {
	data, err := json.Marshal(set)
	if err != nil {
		return nil, err
	}
	if len(data) <= gzipThreshold {
		return data, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return append([]byte("gzip:"), buf.Bytes()...), nil
}

func decodeChunkSet(data []byte) (*ChunkSet, error) {
	if bytes.HasPrefix(data, []byte("gzip:")) {
		gz, err := gzip.NewReader(bytes.NewReader(data[len("gzip:"):]))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		raw, err := io.ReadAll(gz)
		if err != nil {
			return nil, err
		}
		data = raw
	}

	var set ChunkSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("unmarshal chunk set: %w", err)
	}
	return &set, nil
}
