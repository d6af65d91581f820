package zswap

import "github.com/cockroachdb/errors"

// ErrDoubleSpend/ErrInvalidUpdate are the two zswap-specific failure
// kinds named in the component design; the ledger package maps them onto
// the shared ErrorKind taxonomy.
var (
	ErrDoubleSpend   = errors.New("nullifier already present")
	ErrInvalidUpdate = errors.New("invalid collapsed-update range")
)

// State bundles the Merkle tree with the nullifier set and the bounded
// history of recent roots used as transaction-reference anchors.
type State struct {
	Tree        *Tree
	Nullifiers  map[Digest]struct{}
	rootHistory []Digest
}

// maxRootHistory bounds how far back a transaction may anchor its
// membership proofs.
const maxRootHistory = 256

func NewState() *State {
	s := &State{
		Tree:       New(),
		Nullifiers: make(map[Digest]struct{}),
	}
	s.rootHistory = append(s.rootHistory, s.Tree.Root())
	return s
}

// ApplyOutput appends a commitment and records the new root in history.
func (s *State) ApplyOutput(commitment Digest) uint64 {
	idx := s.Tree.Append(commitment)
	s.pushRoot(s.Tree.Root())
	return idx
}

func (s *State) pushRoot(r Digest) {
	s.rootHistory = append(s.rootHistory, r)
	if len(s.rootHistory) > maxRootHistory {
		s.rootHistory = s.rootHistory[len(s.rootHistory)-maxRootHistory:]
	}
}

// ApplyNullifier records a spend; fails if already present.
func (s *State) ApplyNullifier(n Digest) error {
	if _, exists := s.Nullifiers[n]; exists {
		return ErrDoubleSpend
	}
	s.Nullifiers[n] = struct{}{}
	return nil
}

// HasNullifier reports whether n has already been spent.
func (s *State) HasNullifier(n Digest) bool {
	_, ok := s.Nullifiers[n]
	return ok
}

// IsRecentAnchor reports whether root is within the bounded recent-root
// history transactions may anchor membership proofs to.
func (s *State) IsRecentAnchor(root Digest) bool {
	for _, r := range s.rootHistory {
		if r == root {
			return true
		}
	}
	return false
}

// Root returns the tree's current digest.
func (s *State) Root() Digest { return s.Tree.Root() }

// Clone deep-copies state for snapshotting.
func (s *State) Clone() *State {
	c := &State{
		Tree:        s.Tree.Clone(),
		Nullifiers:  make(map[Digest]struct{}, len(s.Nullifiers)),
		rootHistory: append([]Digest(nil), s.rootHistory...),
	}
	for k := range s.Nullifiers {
		c.Nullifiers[k] = struct{}{}
	}
	return c
}

// CollapsedUpdate is an authenticated, forward-only update proof letting
// a wallet holding a root at index `from` derive the root at index `to`
// without learning intervening notes.
type CollapsedUpdate struct {
	From uint64
	To   uint64
	// Leaves is the ordered list of commitments at indices from through
	// to-1. No sibling hashes or other authentication-path nodes are
	// carried.
	Leaves []Digest
}

// CollapsedUpdateFor produces the update proof for the half-open range
// [from, to): the leaves at indices from through to-1. to must be at
// least from and at most FirstFree; from == to yields an empty update.
func (s *State) CollapsedUpdateFor(from, to uint64) (CollapsedUpdate, error) {
	if to < from || to > s.Tree.FirstFree {
		return CollapsedUpdate{}, ErrInvalidUpdate
	}
	leaves := make([]Digest, 0, to-from)
	for i := from; i < to; i++ {
		d, ok := s.Tree.Leaf(i)
		if !ok {
			return CollapsedUpdate{}, ErrInvalidUpdate
		}
		leaves = append(leaves, d)
	}
	return CollapsedUpdate{From: from, To: to, Leaves: leaves}, nil
}

// Compose chains two adjacent updates [a,b) and [b,c) into [a,c); callers
// rely on this for the testable property that composition matches a
// direct (a,c] derivation.
func Compose(ab, bc CollapsedUpdate) (CollapsedUpdate, error) {
	if ab.To != bc.From {
		return CollapsedUpdate{}, ErrInvalidUpdate
	}
	leaves := make([]Digest, 0, len(ab.Leaves)+len(bc.Leaves))
	leaves = append(leaves, ab.Leaves...)
	leaves = append(leaves, bc.Leaves...)
	return CollapsedUpdate{From: ab.From, To: bc.To, Leaves: leaves}, nil
}

// Filter returns a sparse tree containing only the commitments whose
// index is in the given set, used to build a per-contract chain_state
// slice. Since this implementation's leaves are stored in full, "sparse"
// here means every other leaf reads as the empty-leaf digest, so the
// filtered tree's root differs from the full tree's whenever an
// unselected index holds a commitment.
func (s *State) Filter(indices map[uint64]struct{}) *Tree {
	filtered := New()
	maxIdx := uint64(0)
	for idx := range indices {
		if idx+1 > maxIdx {
			maxIdx = idx + 1
		}
	}
	filtered.FirstFree = maxIdx
	for idx := range indices {
		if d, ok := s.Tree.Leaf(idx); ok {
			filtered.leaves[idx] = d
		}
	}
	return filtered
}
