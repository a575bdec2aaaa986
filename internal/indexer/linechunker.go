package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// LineChunker is the fallback chunker: it segments a file by line count
// and byte cap, with no language awareness.
type LineChunker struct {
	linesPerChunk int
	maxChunkBytes int
}

// NewLineChunker builds a LineChunker from the pipeline's config.
func NewLineChunker(linesPerChunk, maxChunkBytes int) *LineChunker {
	if linesPerChunk <= 0 {
		linesPerChunk = 50
	}
	if maxChunkBytes <= 0 {
		maxChunkBytes = MaxChunkBytes
	}
	return &LineChunker{linesPerChunk: linesPerChunk, maxChunkBytes: maxChunkBytes}
}

// Chunk walks content line by line, starting a new chunk whenever the
// current chunk's line count reaches linesPerChunk or the next line would
// push the byte length past the cap. chunkType overrides the emitted
// Chunk.Type: callers pass ChunkTypeLineBased for direct invocation and
// ChunkTypeFallback when invoked as an AstChunker escape hatch.
func (l *LineChunker) Chunk(content []byte, path, language string, chunkType ChunkType) []Chunk {
	if len(content) == 0 {
		return nil
	}

	lines := splitLines(string(content))

	var chunks []Chunk
	start := 0
	for start < len(lines) {
		end := start
		size := 0
		for end < len(lines) {
			lineLen := len(lines[end]) + 1 // +1 for the joining newline
			if end > start && (end-start >= l.linesPerChunk || size+lineLen > l.maxChunkBytes) {
				break
			}
			size += lineLen
			end++
		}
		if end == start {
			end = start + 1 // always make progress on an oversized single line
		}

		chunkContent := strings.Join(lines[start:end], "\n")
		chunks = append(chunks, Chunk{
			FilePath:  path,
			Language:  language,
			StartLine: start + 1,
			EndLine:   end,
			Content:   chunkContent,
			Type:      chunkType,
			Parser:    "line_chunker",
			ChunkID:   chunkID(path, start+1, end),
		})

		start = end
	}

	return chunks
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

func chunkID(path string, startLine, endLine int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:%d", path, startLine, endLine)
	return hex.EncodeToString(h.Sum(nil))
}
