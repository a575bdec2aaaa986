// Package indexer implements the chunking pipeline: scanning a workspace,
// detecting changes via a Merkle tree, parsing files into bounded semantic
// chunks, caching the results, and routing them to a remote sink.
package indexer

import "time"

// ChunkType categorizes the semantic role of a Chunk.
type ChunkType string

const (
	ChunkTypeModule        ChunkType = "module"
	ChunkTypeClass         ChunkType = "class"
	ChunkTypeInterface     ChunkType = "interface"
	ChunkTypeFunction      ChunkType = "function"
	ChunkTypeMethod        ChunkType = "method"
	ChunkTypeField         ChunkType = "field"
	ChunkTypeVariable      ChunkType = "variable"
	ChunkTypeConstant      ChunkType = "constant"
	ChunkTypeType          ChunkType = "type"
	ChunkTypeMacro         ChunkType = "macro"
	ChunkTypeInclude       ChunkType = "include"
	ChunkTypeUsing         ChunkType = "using"
	ChunkTypeNamespace     ChunkType = "namespace"
	ChunkTypeImport        ChunkType = "import"
	ChunkTypeExport        ChunkType = "export"
	ChunkTypeComment       ChunkType = "comment"
	ChunkTypePreprocessor  ChunkType = "preprocessor"
	ChunkTypeOther         ChunkType = "other"
	ChunkTypeLineBased     ChunkType = "line_based"
	ChunkTypeFallback      ChunkType = "fallback"
)

// MaxChunkBytes is the hard cap on a chunk's content length, enforced
// after AST extraction/merge and by the LineChunker directly.
const MaxChunkBytes = 9216

// Chunk is the atomic unit shipped to the sink.
type Chunk struct {
	ChunkID   string    `json:"chunkId"`
	FilePath  string    `json:"filePath"`
	Language  string    `json:"language"`
	StartLine int       `json:"startLine"`
	EndLine   int       `json:"endLine"`
	Content   string    `json:"content"`
	Type      ChunkType `json:"type"`
	Parser    string    `json:"parser"`
	Name      string    `json:"name,omitempty"`

	// parentID links a split part back to the chunk it was carved from,
	// for ProgressTracker aggregation. Empty for non-split chunks. Not
	// serialized to the sink.
	parentID string
}

// Status is the lifecycle state of a File or Chunk.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// File is a single scanned source file.
type File struct {
	Path      string // workspace-relative
	AbsPath   string
	Bytes     []byte
	Hash      string // sha256, hex-lowercase
	Extension string
	Language  string
	Size      int64
}

// ChunkSet is the ChunkCache's value type.
type ChunkSet struct {
	FilePath   string    `json:"filePath"`
	FileHash   string    `json:"fileHash"`
	Chunks     []Chunk   `json:"chunks"`
	ProducedAt time.Time `json:"producedAt"`
}

// FileHashEntry records the size alongside the hash in a MerkleSnapshot,
// matching the snapshot file's wire schema.
type FileHashEntry struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// MerkleSnapshot is the persisted state a MerkleStore diffs against.
type MerkleSnapshot struct {
	SchemaVersion string                   `json:"schemaVersion"`
	RootHash      string                   `json:"rootHash"`
	Timestamp     int64                    `json:"timestamp"`
	WorkspacePath string                   `json:"workspacePath"`
	FileHashMap   map[string]FileHashEntry `json:"fileHashMap"`

	// orderedPaths is derived, not persisted: the lexicographically
	// sorted path list Build used for the leaves.
	orderedPaths []string
}

// MerkleSibling is one step of a Merkle proof: the sibling hash combined
// at that level, and which side of the running hash it sits on.
type MerkleSibling struct {
	Hash []byte
	Left bool
}

// MerkleProof is the sibling-hash path from one leaf to the root. A
// verifier replays the path with VerifyProof to confirm the leaf is
// part of the snapshot identified by RootHash.
type MerkleProof struct {
	Path     string
	LeafHash []byte
	Siblings []MerkleSibling
}

// MerkleDiff is the result of comparing two snapshots.
type MerkleDiff struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether the diff carries no changes.
func (d MerkleDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// CacheEntry is one row of the ChunkCache's relational store.
type CacheEntry struct {
	CacheKey     string
	FilePath     string
	FileHash     string
	Data         []byte
	DataSize     int64
	CreatedAt    time.Time
	LastAccessed time.Time
}

// BatchCheckResult partitions a file list by cache status.
type BatchCheckResult struct {
	Cached   []string
	Uncached []string
	Expired  []string
}

// ProgressSnapshot is a point-in-time readout of pipeline progress.
type ProgressSnapshot struct {
	TotalFiles      int
	CompletedFiles  int
	FailedFiles     int
	TotalChunks     int
	CompletedChunks int
	FailedChunks    int
	PercentComplete float64
}
