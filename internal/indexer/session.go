package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/chunkline/chunkline/internal/observability"
)

// sessionKey identifies one workspace's pipeline state by user, device,
// and workspace path. A SessionManager owns the map; there is no
// package-level mutable state.
func sessionKey(userID, deviceID, workspacePath string) string {
	return userID + "\x00" + deviceID + "\x00" + filepath.Clean(workspacePath)
}

// Session owns one workspace's pipeline components: its lifecycle is
// init-on-first-use, teardown on explicit Close. Components are never
// shared across sessions.
type Session struct {
	Key           string
	WorkspacePath string

	Scanner    *FileScanner
	Merkle     *MerkleStore
	Cache      *ChunkCache
	Registry   *LanguageRegistry
	Dispatcher *Dispatcher
	Router     *ChunkRouter
	Tracker    *ProgressTracker

	mu     sync.Mutex
	closed bool
}

// Close releases the session's durable resources (currently just the
// ChunkCache's database handle). Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.Cache != nil {
		return s.Cache.Close()
	}
	return nil
}

// SessionManager owns all named sessions for the running process. It is
// the only process-wide mutable state besides the frozen Config.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	build    func(key, workspacePath string) (*Session, error)
}

// NewSessionManager builds a SessionManager that constructs sessions
// on demand via build.
func NewSessionManager(build func(key, workspacePath string) (*Session, error)) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		build:    build,
	}
}

// GetOrCreate returns the existing session for (userID, deviceID,
// workspacePath), constructing one on first use.
func (m *SessionManager) GetOrCreate(userID, deviceID, workspacePath string) (*Session, error) {
	key := sessionKey(userID, deviceID, workspacePath)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s, nil
	}

	s, err := m.build(key, workspacePath)
	if err != nil {
		return nil, err
	}
	m.sessions[key] = s
	return s, nil
}

// Close tears down and removes one session.
func (m *SessionManager) Close(userID, deviceID, workspacePath string) error {
	key := sessionKey(userID, deviceID, workspacePath)

	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// CloseAll tears down every open session, collecting (not
// short-circuiting on) individual close errors.
func (m *SessionManager) CloseAll() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for k, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, k)
	}
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count returns the number of currently open sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// buildSession is the default session factory a Pipeline wires into its
// SessionManager: one ChunkCache/MerkleStore pair per workspace, sharing
// the pipeline's stateless LanguageRegistry and observability handles.
// Every ChunkCache opens the configured database file; each workspace's
// Merkle snapshot lives in its own directory under the cache directory,
// named by the SHA-256 of the cleaned workspace path.
func buildSession(cfg SessionConfig) func(key, workspacePath string) (*Session, error) {
	return func(key, workspacePath string) (*Session, error) {
		cacheDir := filepath.Dir(cfg.CacheDBPath)
		dbPath := cfg.CacheDBPath
		if dbPath == "" {
			dbPath = filepath.Join(cacheDir, "chunkcache.db")
		}

		cache, err := NewChunkCache(dbPath, cfg.CacheMaxSizeBytes, cfg.CacheMaxEntries, cfg.CacheTTLHours, cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("build session %s: %w", key, err)
		}

		scanner := NewFileScanner(cfg.AllowedExtensions, cfg.IgnoreGlobs, cfg.IgnoredDirs, cfg.MaxFileSize)
		wsSum := sha256.Sum256([]byte(filepath.Clean(workspacePath)))
		merkle := NewMerkleStore(filepath.Join(cacheDir, "merkle", hex.EncodeToString(wsSum[:])), cfg.CacheCompression)
		registry := NewLanguageRegistry(cfg.LinesPerChunk, cfg.MaxChunkBytes)
		tracker := NewProgressTracker()
		fileTimeout := time.Duration(cfg.FileTimeoutMs) * time.Millisecond
		dispatcher := NewDispatcher(registry, cache, cfg.Concurrency, fileTimeout, cfg.LinesPerChunk, cfg.MaxChunkBytes, cfg.Logger, cfg.Metrics, cfg.Tracer)
		router := NewChunkRouter(cfg.Sink, cfg.RouterConfig, tracker, cfg.Logger, cfg.Metrics)

		return &Session{
			Key:           key,
			WorkspacePath: workspacePath,
			Scanner:       scanner,
			Merkle:        merkle,
			Cache:         cache,
			Registry:      registry,
			Dispatcher:    dispatcher,
			Router:        router,
			Tracker:       tracker,
		}, nil
	}
}

// SessionConfig carries the frozen Config fields a session factory needs
// plus the ambient observability handles, so buildSession never reaches
// for package-level state.
type SessionConfig struct {
	AllowedExtensions []string
	IgnoreGlobs       []string
	IgnoredDirs       []string
	MaxFileSize       int64
	LinesPerChunk     int
	MaxChunkBytes     int
	Concurrency       int
	FileTimeoutMs     int64 // 0 disables

	CacheDBPath       string
	CacheMaxSizeBytes int64
	CacheMaxEntries   int
	CacheTTLHours     int
	CacheCompression  bool

	Sink         ChunkSink
	RouterConfig RouterConfig

	Logger  *observability.Logger
	Metrics *observability.MetricsCollector
	Tracer  trace.Tracer
}
