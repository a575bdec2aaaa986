package indexer

import (
	"strconv"
	"strings"
	"sync"
)

// chunkMeta is what the ProgressTracker remembers about a registered
// chunk besides its status: the file it belongs to, so file-level
// aggregation can walk back from chunk to file.
type chunkMeta struct {
	filePath string
	status   Status
	parentID string // "" unless this is a split part
}

// fileEntry is what the ProgressTracker remembers about a registered
// file: its own explicit status (used by cache hits, which skip
// per-chunk transitions) and the set of chunk IDs registered under it.
type fileEntry struct {
	explicit Status // "" if the file's status should be derived from its chunks
	chunkIDs map[string]struct{}
}

// ProgressTracker holds a keyed map of all files and chunks registered
// during a run, their current status, and aggregate counters.
// Guarded by a single lock; methods are O(1) except the aggregation
// reads (getOverallProgress/getFileProgress), which are O(N).
type ProgressTracker struct {
	mu     sync.Mutex
	files  map[string]*fileEntry
	chunks map[string]*chunkMeta
}

// NewProgressTracker returns an empty tracker. Entries accumulate for
// the tracker's lifetime and are not deleted until the owning pipeline
// run shuts down.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		files:  make(map[string]*fileEntry),
		chunks: make(map[string]*chunkMeta),
	}
}

// RegisterFiles adds paths to the tracker in the pending state. Already
// registered paths are left untouched.
func (p *ProgressTracker) RegisterFiles(paths []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, path := range paths {
		if _, ok := p.files[path]; ok {
			continue
		}
		p.files[path] = &fileEntry{chunkIDs: make(map[string]struct{})}
	}
}

// RegisterChunk records a chunk under its owning file, in the pending
// state. Split parts (chunkId carrying a "_part_<n>" suffix) register
// under the same file as their parent and additionally remember the
// parent's chunkId for propagation.
func (p *ProgressTracker) RegisterChunk(chunkID, filePath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registerChunkLocked(chunkID, filePath)
}

func (p *ProgressTracker) registerChunkLocked(chunkID, filePath string) {
	fe, ok := p.files[filePath]
	if !ok {
		fe = &fileEntry{chunkIDs: make(map[string]struct{})}
		p.files[filePath] = fe
	}
	fe.chunkIDs[chunkID] = struct{}{}

	parentID := ""
	if base, ok := splitPartID(chunkID); ok {
		parentID = base
		if _, exists := p.chunks[base]; !exists {
			// Ensure the parent entry exists so aggregation finds it,
			// even if the producer never registered it directly.
			p.chunks[base] = &chunkMeta{filePath: filePath, status: StatusPending}
			fe.chunkIDs[base] = struct{}{}
		}
	}

	if _, exists := p.chunks[chunkID]; !exists {
		p.chunks[chunkID] = &chunkMeta{filePath: filePath, status: StatusPending, parentID: parentID}
	}
}

// splitPartID reports whether chunkID carries a "_part_<n>" suffix and,
// if so, returns the prefix chunkId it was split from.
func splitPartID(chunkID string) (string, bool) {
	idx := strings.LastIndex(chunkID, "_part_")
	if idx <= 0 {
		return "", false
	}
	suffix := chunkID[idx+len("_part_"):]
	if _, err := strconv.Atoi(suffix); err != nil {
		return "", false
	}
	return chunkID[:idx], true
}

// UpdateFileStatus sets an explicit file status. The explicit status is
// authoritative only while no chunks are registered under the file:
// cache hits mark a file completed without any per-chunk transitions,
// and the dispatcher marks a file processing before its chunks exist.
// Once chunks are registered, the file's status is derived from them.
func (p *ProgressTracker) UpdateFileStatus(path string, status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fe, ok := p.files[path]
	if !ok {
		fe = &fileEntry{chunkIDs: make(map[string]struct{})}
		p.files[path] = fe
	}
	fe.explicit = status
}

// UpdateChunkStatus transitions a chunk's status. If chunkID is a split
// part, the update also re-aggregates its parent: the
// parent completes only once every known part is completed, and fails
// once all parts are terminal and at least one failed.
func (p *ProgressTracker) UpdateChunkStatus(chunkID string, status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	meta, ok := p.chunks[chunkID]
	if !ok {
		// Updating a chunk nobody registered: treat as a late
		// registration under an unknown file bucket.
		meta = &chunkMeta{status: status}
		p.chunks[chunkID] = meta
	}
	meta.status = status

	if meta.parentID != "" {
		p.reaggregateParentLocked(meta.parentID)
	}
}

// reaggregateParentLocked recomputes a split-chunk parent's status from
// the statuses of its registered parts.
func (p *ProgressTracker) reaggregateParentLocked(parentID string) {
	parent, ok := p.chunks[parentID]
	if !ok {
		return
	}

	allCompleted := true
	anyFailed := false
	anyNonTerminal := false
	sawPart := false

	for id, c := range p.chunks {
		if id == parentID {
			continue
		}
		if c.parentID != parentID {
			continue
		}
		sawPart = true
		switch c.status {
		case StatusCompleted:
		case StatusFailed:
			anyFailed = true
			allCompleted = false
		default:
			allCompleted = false
			anyNonTerminal = true
		}
	}

	if !sawPart {
		return
	}

	switch {
	case allCompleted:
		parent.status = StatusCompleted
	case anyFailed && !anyNonTerminal:
		parent.status = StatusFailed
	default:
		parent.status = StatusProcessing
	}
}

// fileStatusLocked derives a file's status from its chunks. Files with
// no registered chunks report their explicit status
// (cache hit, dispatch-in-progress, cancellation) or pending.
func (p *ProgressTracker) fileStatusLocked(path string) Status {
	fe, ok := p.files[path]
	if !ok {
		return StatusPending
	}
	if len(fe.chunkIDs) == 0 {
		if fe.explicit != "" {
			return fe.explicit
		}
		return StatusPending
	}

	anyProcessing := false
	anyFailed := false
	allCompleted := true

	for id := range fe.chunkIDs {
		c, ok := p.chunks[id]
		if !ok {
			allCompleted = false
			continue
		}
		// A split parent's own entry is counted like any other chunk
		// of the file; its status is re-aggregated from its parts.
		switch c.status {
		case StatusProcessing:
			anyProcessing = true
			allCompleted = false
		case StatusFailed:
			anyFailed = true
			allCompleted = false
		case StatusCompleted:
		default:
			allCompleted = false
		}
	}

	switch {
	case anyProcessing:
		return StatusProcessing
	case allCompleted:
		return StatusCompleted
	case anyFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// GetOverallProgress aggregates completion across every registered file
// and chunk.
func (p *ProgressTracker) GetOverallProgress() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var snap ProgressSnapshot
	snap.TotalFiles = len(p.files)
	for path := range p.files {
		switch p.fileStatusLocked(path) {
		case StatusCompleted:
			snap.CompletedFiles++
		case StatusFailed:
			snap.FailedFiles++
		}
	}

	snap.TotalChunks = len(p.chunks)
	for _, c := range p.chunks {
		switch c.status {
		case StatusCompleted:
			snap.CompletedChunks++
		case StatusFailed:
			snap.FailedChunks++
		}
	}

	if snap.TotalFiles > 0 {
		snap.PercentComplete = 100 * float64(snap.CompletedFiles+snap.FailedFiles) / float64(snap.TotalFiles)
	}

	return snap
}

// GetFileProgress returns the current derived status of every registered
// file, keyed by workspace-relative path.
func (p *ProgressTracker) GetFileProgress() map[string]Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Status, len(p.files))
	for path := range p.files {
		out[path] = p.fileStatusLocked(path)
	}
	return out
}
