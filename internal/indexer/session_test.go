package indexer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionConfig(t *testing.T) SessionConfig {
	t.Helper()
	dir := t.TempDir()
	return SessionConfig{
		AllowedExtensions: []string{".go"},
		MaxFileSize:       1 << 20,
		LinesPerChunk:     50,
		MaxChunkBytes:     MaxChunkBytes,
		Concurrency:       1,
		CacheDBPath:       filepath.Join(dir, "cache.db"),
		Sink:              &fakeSink{},
		RouterConfig:      DefaultRouterConfig(),
	}
}

func TestSessionManager_GetOrCreateReturnsSameSession(t *testing.T) {
	mgr := NewSessionManager(buildSession(testSessionConfig(t)))
	defer mgr.CloseAll()

	s1, err := mgr.GetOrCreate("user", "device", "/ws")
	require.NoError(t, err)
	s2, err := mgr.GetOrCreate("user", "device", "/ws")
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, mgr.Count())
}

func TestSessionManager_DifferentWorkspacesGetDifferentSessions(t *testing.T) {
	mgr := NewSessionManager(buildSession(testSessionConfig(t)))
	defer mgr.CloseAll()

	s1, err := mgr.GetOrCreate("user", "device", "/ws/one")
	require.NoError(t, err)
	s2, err := mgr.GetOrCreate("user", "device", "/ws/two")
	require.NoError(t, err)

	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, mgr.Count())
}

func TestSessionManager_CloseRemovesSession(t *testing.T) {
	mgr := NewSessionManager(buildSession(testSessionConfig(t)))

	_, err := mgr.GetOrCreate("user", "device", "/ws")
	require.NoError(t, err)
	require.NoError(t, mgr.Close("user", "device", "/ws"))

	assert.Equal(t, 0, mgr.Count())
}

func TestSessionManager_CloseAllTearsDownEverySession(t *testing.T) {
	mgr := NewSessionManager(buildSession(testSessionConfig(t)))

	_, err := mgr.GetOrCreate("user", "device", "/ws/one")
	require.NoError(t, err)
	_, err = mgr.GetOrCreate("user", "device", "/ws/two")
	require.NoError(t, err)

	require.NoError(t, mgr.CloseAll())
	assert.Equal(t, 0, mgr.Count())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	mgr := NewSessionManager(buildSession(testSessionConfig(t)))
	s, err := mgr.GetOrCreate("user", "device", "/ws")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSessionKey_ScopesByIdentityAndWorkspace(t *testing.T) {
	a := sessionKey("u1", "d1", "/ws")
	b := sessionKey("u1", "d1", "/ws/")
	c := sessionKey("u2", "d1", "/ws")

	assert.Equal(t, a, b, "trailing slash should be cleaned away")
	assert.NotEqual(t, a, c)
}

func TestBuildSession_ConfigPropagatesIntoComponents(t *testing.T) {
	cfg := testSessionConfig(t)
	cfg.LinesPerChunk = 7
	cfg.MaxChunkBytes = 256

	session, err := buildSession(cfg)("key", "/ws")
	require.NoError(t, err)
	defer session.Close()

	plugin := session.Registry.Lookup(".go")
	require.NotNil(t, plugin)
	chunker := plugin.NewChunker()
	assert.Equal(t, 256, chunker.maxChunkBytes)
}
