// Package zswap implements the shielded note-commitment Merkle tree,
// nullifier set, and collapsed-update derivation described as the L2
// Zswap Engine. It tracks structure only; balance enforcement is the
// transaction layer's job.
package zswap

import (
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/crypto"
)

// Depth is the fixed Merkle tree depth.
const Depth = 32

type Digest = crypto.Digest

var emptyNode [Depth + 1]Digest

func init() {
	emptyNode[0] = crypto.Hash("midnight/zswap/empty-leaf")
	for i := 1; i <= Depth; i++ {
		emptyNode[i] = crypto.Hash("midnight/zswap/empty-node", emptyNode[i-1][:], emptyNode[i-1][:])
	}
}

// Tree is an append-only sparse Merkle tree of coin commitments. Leaves
// are assigned sequentially; FirstFree always equals the number of
// committed notes.
type Tree struct {
	FirstFree uint64
	// leaves maps leaf index to commitment for all committed notes; the
	// zero value for any index beyond FirstFree is the empty-leaf digest.
	leaves map[uint64]Digest
	// nodes caches interior hashes by (level, index) so Root() is O(log n)
	// amortized rather than O(n) per call.
	nodes map[nodeKey]Digest
}

type nodeKey struct {
	level uint8
	index uint64
}

func New() *Tree {
	return &Tree{
		leaves: make(map[uint64]Digest),
		nodes:  make(map[nodeKey]Digest),
	}
}

// Append inserts commitment at the next free leaf index and returns that
// index.
func (t *Tree) Append(commitment Digest) uint64 {
	idx := t.FirstFree
	t.leaves[idx] = commitment
	t.invalidateUp(0, idx)
	t.FirstFree++
	return idx
}

func (t *Tree) invalidateUp(level uint8, index uint64) {
	for l := level; l <= Depth; l++ {
		delete(t.nodes, nodeKey{l, index})
		index /= 2
	}
}

func (t *Tree) nodeAt(level uint8, index uint64) Digest {
	if level == 0 {
		if d, ok := t.leaves[index]; ok {
			return d
		}
		return emptyNode[0]
	}
	if d, ok := t.nodes[nodeKey{level, index}]; ok {
		return d
	}
	left := t.nodeAt(level-1, index*2)
	right := t.nodeAt(level-1, index*2+1)
	d := crypto.Hash("midnight/zswap/node", left[:], right[:])
	t.nodes[nodeKey{level, index}] = d
	return d
}

// Root returns the current tree digest.
func (t *Tree) Root() Digest {
	return t.nodeAt(Depth, 0)
}

// Clone deep-copies the tree so a ledger-state snapshot is fully
// independent of the live instance.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		FirstFree: t.FirstFree,
		leaves:    make(map[uint64]Digest, len(t.leaves)),
		nodes:     make(map[nodeKey]Digest, len(t.nodes)),
	}
	for k, v := range t.leaves {
		c.leaves[k] = v
	}
	for k, v := range t.nodes {
		c.nodes[k] = v
	}
	return c
}

// Leaf returns the commitment at index, and whether it has been set.
func (t *Tree) Leaf(index uint64) (Digest, bool) {
	d, ok := t.leaves[index]
	return d, ok
}
