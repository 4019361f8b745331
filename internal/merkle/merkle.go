package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Tree is a Merkle tree over a workspace's ordered file-hash list. Each leaf
// is sha256(path ":" fileHash), taken in scanner emission order (sorted by
// workspace-relative path); internal nodes are sha256(left || right) with the
// last node duplicated on odd layers.
type Tree struct {
	// layers[0] is the leaf layer; layers[len-1] has exactly one node.
	layers [][][]byte
	paths  []string
}

// ProofStep is one sibling hash on a leaf's path to the root.
type ProofStep struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"` // sibling sits to the left of the running hash
}

// Build constructs the tree from a path→hash map. The leaf order is the
// lexicographic order of the paths; an empty map yields a tree whose root is
// the hash of zero bytes.
func Build(fileHashes map[string]string) *Tree {
	paths := make([]string, 0, len(fileHashes))
	for p := range fileHashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	leaves := make([][]byte, 0, len(paths))
	for _, p := range paths {
		leaves = append(leaves, leafHash(p, fileHashes[p]))
	}

	t := &Tree{paths: paths}
	if len(leaves) == 0 {
		empty := sha256.Sum256(nil)
		t.layers = [][][]byte{{empty[:]}}
		return t
	}

	t.layers = append(t.layers, leaves)
	for layer := leaves; len(layer) > 1; {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left // odd layer: duplicate the last node
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			h := sha256.Sum256(append(append([]byte{}, left...), right...))
			next = append(next, h[:])
		}
		t.layers = append(t.layers, next)
		layer = next
	}
	return t
}

// RootHash returns the lowercase hex root of the tree.
func (t *Tree) RootHash() string {
	top := t.layers[len(t.layers)-1]
	return hex.EncodeToString(top[0])
}

// LeafCount returns the number of files covered by the tree.
func (t *Tree) LeafCount() int {
	if len(t.paths) == 0 {
		return 0
	}
	return len(t.layers[0])
}

// Proof returns the Merkle proof for the given workspace-relative path, or
// (nil, false) when the path is not a leaf.
func (t *Tree) Proof(path string) ([]ProofStep, bool) {
	idx := sort.SearchStrings(t.paths, path)
	if idx >= len(t.paths) || t.paths[idx] != path {
		return nil, false
	}

	proof := make([]ProofStep, 0, len(t.layers)-1)
	for level := 0; level < len(t.layers)-1; level++ {
		layer := t.layers[level]
		sibling := idx ^ 1
		if sibling >= len(layer) {
			sibling = idx // duplicated last node
		}
		proof = append(proof, ProofStep{
			Hash: hex.EncodeToString(layer[sibling]),
			Left: sibling < idx,
		})
		idx /= 2
	}
	return proof, true
}

// Verify recomputes the root from a leaf and its proof.
func Verify(path, fileHash string, proof []ProofStep, rootHash string) bool {
	running := leafHash(path, fileHash)
	for _, step := range proof {
		sibling, err := hex.DecodeString(step.Hash)
		if err != nil {
			return false
		}
		var h [32]byte
		if step.Left {
			h = sha256.Sum256(append(append([]byte{}, sibling...), running...))
		} else {
			h = sha256.Sum256(append(append([]byte{}, running...), sibling...))
		}
		running = h[:]
	}
	return hex.EncodeToString(running) == rootHash
}

func leafHash(path, fileHash string) []byte {
	h := sha256.Sum256([]byte(path + ":" + fileHash))
	return h[:]
}

// Diff is the change set between two snapshots.
type Diff struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether the diff carries no changes.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// Compare diffs a previous snapshot against the current file-hash map.
// When the previous root equals the root of current, it short-circuits to an
// empty diff without touching the per-file maps. A nil previous snapshot
// yields an initial-build diff: everything added.
func Compare(previous *Snapshot, current map[string]string) *Diff {
	d := &Diff{}
	if previous == nil {
		for p := range current {
			d.Added = append(d.Added, p)
		}
		sort.Strings(d.Added)
		return d
	}

	if previous.RootHash == Build(current).RootHash() {
		return d
	}

	for p, h := range current {
		prev, ok := previous.FileHashMap[p]
		switch {
		case !ok:
			d.Added = append(d.Added, p)
		case prev.Hash != h:
			d.Modified = append(d.Modified, p)
		}
	}
	for p := range previous.FileHashMap {
		if _, ok := current[p]; !ok {
			d.Removed = append(d.Removed, p)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Modified)
	sort.Strings(d.Removed)
	return d
}
