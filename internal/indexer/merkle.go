package indexer

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/chunkline/chunkline/internal/security"
)

const merkleSchemaVersion = "2.0"

// MerkleStore builds a Merkle tree over a workspace's file hashes,
// persists it, and diffs successive snapshots.
type MerkleStore struct {
	snapshotPath string
	compress     bool
}

// NewMerkleStore builds a MerkleStore persisting to
// <cacheDir>/merkle-state.json (optionally gzip+base64-wrapped).
func NewMerkleStore(cacheDir string, compress bool) *MerkleStore {
	return &MerkleStore{
		snapshotPath: filepath.Join(cacheDir, "merkle-state.json"),
		compress:     compress,
	}
}

// Build constructs a MerkleSnapshot over files, keyed by workspace-
// relative path. Build sorts the paths lexicographically itself, so leaf
// order does not depend on the caller's iteration order. The snapshot's
// Timestamp is the build time in Unix milliseconds.
func (m *MerkleStore) Build(workspacePath string, files map[string]File) *MerkleSnapshot {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	leaves := make([][]byte, len(paths))
	fileMap := make(map[string]FileHashEntry, len(paths))
	for i, p := range paths {
		f := files[p]
		leaves[i] = leafHash(p, f.Hash)
		fileMap[p] = FileHashEntry{Hash: f.Hash, Size: f.Size}
	}

	root := merkleRoot(leaves)

	return &MerkleSnapshot{
		SchemaVersion: merkleSchemaVersion,
		RootHash:      hex.EncodeToString(root),
		Timestamp:     time.Now().UnixMilli(),
		WorkspacePath: workspacePath,
		FileHashMap:   fileMap,
		orderedPaths:  paths,
	}
}

// leafHash hashes a leaf as sha256(path ":" hash) so the tree shape
// depends on file identity, not just content.
func leafHash(path, hash string) []byte {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte(":"))
	h.Write([]byte(hash))
	return h.Sum(nil)
}

// buildLayers constructs every tree layer bottom-up, leaves first: each
// internal node hashes the concatenation of its children; the last node
// of an odd layer is duplicated.
func buildLayers(leaves [][]byte) [][][]byte {
	layers := [][][]byte{leaves}
	layer := leaves
	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left // duplicate last node on odd layers
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			h := sha256.New()
			h.Write(left)
			h.Write(right)
			next = append(next, h.Sum(nil))
		}
		layers = append(layers, next)
		layer = next
	}
	return layers
}

func merkleRoot(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		return sha256.New().Sum(nil)
	}
	layers := buildLayers(leaves)
	return layers[len(layers)-1][0]
}

// snapshotLeaves rebuilds the ordered leaf list from a snapshot's file
// hash map. Leaf order is deterministic (paths sorted lexicographically),
// so proofs computed later always line up with the tree Build produced.
func snapshotLeaves(snapshot *MerkleSnapshot) ([]string, [][]byte) {
	paths := make([]string, 0, len(snapshot.FileHashMap))
	for p := range snapshot.FileHashMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	leaves := make([][]byte, len(paths))
	for i, p := range paths {
		leaves[i] = leafHash(p, snapshot.FileHashMap[p].Hash)
	}
	return paths, leaves
}

// Proofs returns the Merkle proof for every leaf in the snapshot, keyed
// by workspace-relative path.
func (m *MerkleStore) Proofs(snapshot *MerkleSnapshot) map[string]*MerkleProof {
	paths, leaves := snapshotLeaves(snapshot)
	if len(leaves) == 0 {
		return map[string]*MerkleProof{}
	}
	layers := buildLayers(leaves)

	out := make(map[string]*MerkleProof, len(paths))
	for i, p := range paths {
		proof := &MerkleProof{Path: p, LeafHash: leaves[i]}
		idx := i
		for _, layer := range layers[:len(layers)-1] {
			sib := idx ^ 1
			if sib >= len(layer) {
				sib = idx // odd layer: the node is paired with itself
			}
			proof.Siblings = append(proof.Siblings, MerkleSibling{
				Hash: layer[sib],
				Left: sib < idx,
			})
			idx /= 2
		}
		out[p] = proof
	}
	return out
}

// Proof returns the Merkle proof for a single path in the snapshot, or
// ok=false when the path is not a leaf of the tree.
func (m *MerkleStore) Proof(snapshot *MerkleSnapshot, path string) (*MerkleProof, bool) {
	if _, exists := snapshot.FileHashMap[path]; !exists {
		return nil, false
	}
	return m.Proofs(snapshot)[path], true
}

// VerifyProof replays proof against a hex root hash: it folds the leaf
// hash through each sibling step and compares the result to rootHash.
func VerifyProof(proof *MerkleProof, rootHash string) bool {
	h := proof.LeafHash
	for _, s := range proof.Siblings {
		hash := sha256.New()
		if s.Left {
			hash.Write(s.Hash)
			hash.Write(h)
		} else {
			hash.Write(h)
			hash.Write(s.Hash)
		}
		h = hash.Sum(nil)
	}
	return hex.EncodeToString(h) == rootHash
}

// Save persists snapshot to the store's configured path.
func (m *MerkleStore) Save(snapshot *MerkleSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return newCacheError("marshal merkle snapshot", err)
	}

	if m.compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return newCacheError("gzip merkle snapshot", err)
		}
		if err := gz.Close(); err != nil {
			return newCacheError("gzip merkle snapshot", err)
		}
		data = []byte(base64.StdEncoding.EncodeToString(buf.Bytes()))
	}

	dir := filepath.Dir(m.snapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newIoError(m.snapshotPath, err)
	}

	safePath, err := security.ValidatePathWithinBase(m.snapshotPath, dir)
	if err != nil {
		return newIoError(m.snapshotPath, err)
	}

	return os.WriteFile(safePath, data, 0o644)
}

// Load reads the persisted snapshot. A missing file is not an error: it
// returns (nil, nil) so the caller treats it as an initial build. A
// corrupt or schema-mismatched snapshot is discarded with a nil result;
// callers should log a warning and proceed with an "initial build" diff.
func (m *MerkleStore) Load() (*MerkleSnapshot, error) {
	raw, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newIoError(m.snapshotPath, err)
	}

	data := raw
	if m.compress {
		decoded, decErr := base64.StdEncoding.DecodeString(string(raw))
		if decErr != nil {
			return nil, nil // corrupt: treat as absent
		}
		gz, gzErr := gzip.NewReader(bytes.NewReader(decoded))
		if gzErr != nil {
			return nil, nil
		}
		defer gz.Close()
		unzipped, readErr := io.ReadAll(gz)
		if readErr != nil {
			return nil, nil
		}
		data = unzipped
	}

	var snap MerkleSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil // corrupt: treat as absent
	}
	if snap.SchemaVersion != merkleSchemaVersion {
		return nil, nil
	}

	return &snap, nil
}

// Diff compares previous against current and returns the set of changed
// paths. Short-circuits to an empty diff when both root hashes match.
func (m *MerkleStore) Diff(ctx context.Context, previous, current *MerkleSnapshot) MerkleDiff {
	if previous == nil {
		diff := MerkleDiff{}
		for p := range current.FileHashMap {
			diff.Added = append(diff.Added, p)
		}
		sort.Strings(diff.Added)
		return diff
	}

	if previous.RootHash == current.RootHash {
		return MerkleDiff{}
	}

	var diff MerkleDiff
	for p, cur := range current.FileHashMap {
		prev, existed := previous.FileHashMap[p]
		if !existed {
			diff.Added = append(diff.Added, p)
		} else if prev.Hash != cur.Hash {
			diff.Modified = append(diff.Modified, p)
		}
	}
	for p := range previous.FileHashMap {
		if _, stillExists := current.FileHashMap[p]; !stillExists {
			diff.Removed = append(diff.Removed, p)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Modified)
	sort.Strings(diff.Removed)

	return diff
}
