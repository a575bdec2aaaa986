package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// filesOf builds a path->File map from path/hash pairs for Merkle tests,
// stamping a distinct size per entry so Size-threading bugs show up as
// mismatched snapshots rather than silently passing on zero values.
func filesOf(hashes map[string]string) map[string]File {
	out := make(map[string]File, len(hashes))
	for path, hash := range hashes {
		out[path] = File{Path: path, Hash: hash, Size: int64(len(hash) + len(path))}
	}
	return out
}

func TestMerkleStore_BuildIsDeterministic(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)
	hashes := map[string]string{
		"a.go": "hash-a",
		"b.go": "hash-b",
		"c.go": "hash-c",
	}

	snap1 := store.Build("/ws", filesOf(hashes))
	snap2 := store.Build("/ws", filesOf(hashes))
	assert.Equal(t, snap1.RootHash, snap2.RootHash)
	assert.NotEmpty(t, snap1.RootHash)
}

func TestMerkleStore_BuildPopulatesFileSize(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)
	snap := store.Build("/ws", map[string]File{
		"a.go": {Path: "a.go", Hash: "hash-a", Size: 1234},
	})

	entry, ok := snap.FileHashMap["a.go"]
	require.True(t, ok)
	assert.Equal(t, "hash-a", entry.Hash)
	assert.Equal(t, int64(1234), entry.Size)
}

func TestMerkleStore_BuildChangesOnContentDrift(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)
	snap1 := store.Build("/ws", filesOf(map[string]string{"a.go": "hash-a"}))
	snap2 := store.Build("/ws", filesOf(map[string]string{"a.go": "hash-a-modified"}))
	assert.NotEqual(t, snap1.RootHash, snap2.RootHash)
}

func TestMerkleStore_SaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, compress := range []bool{false, true} {
		store := NewMerkleStore(dir, compress)
		snap := store.Build("/ws", map[string]File{
			"a.go": {Path: "a.go", Hash: "hash-a", Size: 100},
			"b.go": {Path: "b.go", Hash: "hash-b", Size: 200},
		})

		require.NoError(t, store.Save(snap))

		loaded, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, snap.RootHash, loaded.RootHash)
		assert.Equal(t, snap.FileHashMap, loaded.FileHashMap)
		assert.Equal(t, int64(100), loaded.FileHashMap["a.go"].Size)
	}
}

func TestMerkleStore_LoadMissingIsNilNotError(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestMerkleStore_Diff(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)

	t.Run("initial build reports everything added", func(t *testing.T) {
		current := store.Build("/ws", filesOf(map[string]string{"a.go": "h1", "b.go": "h2"}))
		diff := store.Diff(context.Background(), nil, current)
		assert.ElementsMatch(t, []string{"a.go", "b.go"}, diff.Added)
		assert.Empty(t, diff.Modified)
		assert.Empty(t, diff.Removed)
	})

	t.Run("unchanged snapshot yields empty diff", func(t *testing.T) {
		snap := store.Build("/ws", filesOf(map[string]string{"a.go": "h1"}))
		diff := store.Diff(context.Background(), snap, snap)
		assert.True(t, diff.Empty())
	})

	t.Run("modified and removed files detected", func(t *testing.T) {
		previous := store.Build("/ws", filesOf(map[string]string{"a.go": "h1", "b.go": "h2", "c.go": "h3"}))
		current := store.Build("/ws", filesOf(map[string]string{"a.go": "h1", "b.go": "h2-changed", "d.go": "h4"}))

		diff := store.Diff(context.Background(), previous, current)
		assert.Equal(t, []string{"d.go"}, diff.Added)
		assert.Equal(t, []string{"b.go"}, diff.Modified)
		assert.Equal(t, []string{"c.go"}, diff.Removed)
	})
}

func TestMerkleStore_ProofsVerifyAgainstRoot(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)
	// Five leaves force an odd layer, exercising the duplicate-last-node
	// pairing in the proof path.
	snap := store.Build("/ws", filesOf(map[string]string{
		"a.go": "h1", "b.go": "h2", "c.go": "h3", "d.go": "h4", "e.go": "h5",
	}))

	proofs := store.Proofs(snap)
	require.Len(t, proofs, 5)
	for path, proof := range proofs {
		assert.Equal(t, path, proof.Path)
		assert.True(t, VerifyProof(proof, snap.RootHash), "proof for %s must verify", path)
	}
}

func TestMerkleStore_ProofRejectsWrongRoot(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)
	snap := store.Build("/ws", filesOf(map[string]string{"a.go": "h1", "b.go": "h2"}))
	drifted := store.Build("/ws", filesOf(map[string]string{"a.go": "h1-changed", "b.go": "h2"}))

	proof, ok := store.Proof(snap, "a.go")
	require.True(t, ok)
	assert.True(t, VerifyProof(proof, snap.RootHash))
	assert.False(t, VerifyProof(proof, drifted.RootHash))
}

func TestMerkleStore_ProofMissingPath(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)
	snap := store.Build("/ws", filesOf(map[string]string{"a.go": "h1"}))

	_, ok := store.Proof(snap, "nope.go")
	assert.False(t, ok)
}

func TestMerkleStore_ProofSingleLeaf(t *testing.T) {
	store := NewMerkleStore(t.TempDir(), false)
	snap := store.Build("/ws", filesOf(map[string]string{"a.go": "h1"}))

	proof, ok := store.Proof(snap, "a.go")
	require.True(t, ok)
	assert.Empty(t, proof.Siblings)
	assert.True(t, VerifyProof(proof, snap.RootHash))
}

func TestMerkleRoot_EmptyTreeIsStable(t *testing.T) {
	assert.Equal(t, merkleRoot(nil), merkleRoot(nil))
}

func TestMerkleRoot_SingleLeafIsItsOwnRoot(t *testing.T) {
	leaf := leafHash("a", "1")
	assert.Equal(t, leaf, merkleRoot([][]byte{leaf}))
}
