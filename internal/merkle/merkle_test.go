package merkle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHashes() map[string]string {
	return map[string]string{
		"a.py":     "1111111111111111111111111111111111111111111111111111111111111111",
		"b.go":     "2222222222222222222222222222222222222222222222222222222222222222",
		"sub/c.ts": "3333333333333333333333333333333333333333333333333333333333333333",
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t1 := Build(sampleHashes())
	t2 := Build(sampleHashes())
	assert.Equal(t, t1.RootHash(), t2.RootHash())
	assert.Equal(t, 3, t1.LeafCount())
}

func TestBuild_RootChangesWithContent(t *testing.T) {
	base := Build(sampleHashes())

	changed := sampleHashes()
	changed["a.py"] = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	assert.NotEqual(t, base.RootHash(), Build(changed).RootHash())

	grown := sampleHashes()
	grown["d.rs"] = "4444444444444444444444444444444444444444444444444444444444444444"
	assert.NotEqual(t, base.RootHash(), Build(grown).RootHash())
}

func TestBuild_EmptyWorkspace(t *testing.T) {
	tree := Build(nil)
	assert.NotEmpty(t, tree.RootHash())
	assert.Equal(t, 0, tree.LeafCount())
}

func TestProof_VerifiesAgainstRoot(t *testing.T) {
	hashes := sampleHashes()
	tree := Build(hashes)

	for path, hash := range hashes {
		proof, ok := tree.Proof(path)
		require.True(t, ok, path)
		assert.True(t, Verify(path, hash, proof, tree.RootHash()), path)
		// Tampered leaf must fail.
		assert.False(t, Verify(path, "beef"+hash[4:], proof, tree.RootHash()))
	}
}

func TestProof_UnknownPath(t *testing.T) {
	_, ok := Build(sampleHashes()).Proof("nope.py")
	assert.False(t, ok)
}

func TestProof_OddLeafCountDuplicatesLast(t *testing.T) {
	// Three leaves: the last node is its own sibling on the first layer.
	hashes := sampleHashes()
	tree := Build(hashes)
	proof, ok := tree.Proof("sub/c.ts")
	require.True(t, ok)
	assert.True(t, Verify("sub/c.ts", hashes["sub/c.ts"], proof, tree.RootHash()))
}

func TestCompare_ShortCircuitOnEqualRoot(t *testing.T) {
	hashes := sampleHashes()
	store := NewStore(t.TempDir(), false)
	snap := store.Snapshot("/ws", hashes, nil)

	d := Compare(snap, hashes)
	assert.True(t, d.Empty())
}

func TestCompare_InitialBuild(t *testing.T) {
	d := Compare(nil, sampleHashes())
	assert.Equal(t, []string{"a.py", "b.go", "sub/c.ts"}, d.Added)
	assert.Empty(t, d.Modified)
	assert.Empty(t, d.Removed)
}

func TestCompare_AddedModifiedRemoved(t *testing.T) {
	prev := sampleHashes()
	store := NewStore(t.TempDir(), false)
	snap := store.Snapshot("/ws", prev, nil)

	current := map[string]string{
		"a.py":   "9999999999999999999999999999999999999999999999999999999999999999", // modified
		"b.go":   prev["b.go"],                                                       // unchanged
		"new.rs": "5555555555555555555555555555555555555555555555555555555555555555", // added
		// sub/c.ts removed
	}

	d := Compare(snap, current)
	assert.Equal(t, []string{"new.rs"}, d.Added)
	assert.Equal(t, []string{"a.py"}, d.Modified)
	assert.Equal(t, []string{"sub/c.ts"}, d.Removed)
}

func TestSnapshot_SaveLoadRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			store := NewStore(dir, compress)
			snap := store.Snapshot("/ws", sampleHashes(), map[string]int64{"a.py": 12})
			require.NoError(t, store.Save(snap))

			loaded, err := store.Load()
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, snap.RootHash, loaded.RootHash)
			assert.Equal(t, SchemaVersion, loaded.SchemaVersion)
			assert.Equal(t, snap.FileHashMap, loaded.FileHashMap)
			assert.Equal(t, int64(12), loaded.FileHashMap["a.py"].Size)
		})
	}
}

func TestSnapshot_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir(), false)
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSnapshot_CorruptYieldsInitialBuild(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotFileName), []byte("{not json"), 0o644))

	store := NewStore(dir, false)
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	d := Compare(snap, sampleHashes())
	assert.Len(t, d.Added, 3)
}

func TestSnapshot_SchemaMismatchDiscarded(t *testing.T) {
	dir := t.TempDir()
	body := `{"schemaVersion":"1.0","rootHash":"aa","timestamp":0,"workspacePath":"/ws","fileHashMap":{}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, SnapshotFileName), []byte(body), 0o644))

	store := NewStore(dir, false)
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}
