package indexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineChunker_Chunk(t *testing.T) {
	lines := make([]string, 120)
	for i := range lines {
		lines[i] = "line content"
	}
	content := []byte(strings.Join(lines, "\n"))

	lc := NewLineChunker(50, MaxChunkBytes)
	chunks := lc.Chunk(content, "foo.txt", "unknown", ChunkTypeLineBased)

	require.NotEmpty(t, chunks)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 50, chunks[0].EndLine)
	assert.Equal(t, ChunkTypeLineBased, chunks[0].Type)
	assert.Equal(t, "line_chunker", chunks[0].Parser)

	// chunks should tile the file without gaps or overlaps
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine+1, chunks[i].StartLine)
	}
	assert.Equal(t, 120, chunks[len(chunks)-1].EndLine)
}

func TestLineChunker_RespectsByteCap(t *testing.T) {
	longLine := strings.Repeat("x", 100)
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = longLine
	}
	content := []byte(strings.Join(lines, "\n"))

	lc := NewLineChunker(50, 250)
	chunks := lc.Chunk(content, "foo.txt", "unknown", ChunkTypeLineBased)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 250+len(longLine))
	}
	require.Greater(t, len(chunks), 1)
}

func TestLineChunker_EmptyContent(t *testing.T) {
	lc := NewLineChunker(50, MaxChunkBytes)
	chunks := lc.Chunk(nil, "empty.txt", "unknown", ChunkTypeLineBased)
	assert.Nil(t, chunks)
}

func TestLineChunker_OversizedSingleLine(t *testing.T) {
	content := []byte(strings.Repeat("y", 500))
	lc := NewLineChunker(50, 100)
	chunks := lc.Chunk(content, "oversized.txt", "unknown", ChunkTypeLineBased)

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
}

func TestLineChunker_DefaultsOnInvalidConfig(t *testing.T) {
	lc := NewLineChunker(0, 0)
	assert.Equal(t, 50, lc.linesPerChunk)
	assert.Equal(t, MaxChunkBytes, lc.maxChunkBytes)
}

func TestChunkID_Deterministic(t *testing.T) {
	a := chunkID("path.go", 1, 10)
	b := chunkID("path.go", 1, 10)
	c := chunkID("path.go", 1, 11)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
