package zswap

import "testing"

func digestN(b byte) Digest {
	var d Digest
	d[0] = b
	return d
}

func TestAppendOutputAdvancesFirstFree(t *testing.T) {
	s := NewState()
	if s.Tree.FirstFree != 0 {
		t.Fatalf("expected empty tree, got first_free=%d", s.Tree.FirstFree)
	}
	idx := s.ApplyOutput(digestN(1))
	if idx != 0 {
		t.Fatalf("expected first leaf index 0, got %d", idx)
	}
	idx = s.ApplyOutput(digestN(2))
	if idx != 1 {
		t.Fatalf("expected second leaf index 1, got %d", idx)
	}
	if s.Tree.FirstFree != 2 {
		t.Fatalf("first_free = %d, want 2", s.Tree.FirstFree)
	}
}

func TestApplyNullifierRejectsDoubleSpend(t *testing.T) {
	s := NewState()
	n := digestN(9)
	if err := s.ApplyNullifier(n); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := s.ApplyNullifier(n); err != ErrDoubleSpend {
		t.Fatalf("expected ErrDoubleSpend, got %v", err)
	}
	if !s.HasNullifier(n) {
		t.Fatal("expected nullifier to be recorded")
	}
}

func TestRootChangesOnAppend(t *testing.T) {
	s := NewState()
	before := s.Root()
	s.ApplyOutput(digestN(5))
	after := s.Root()
	if before == after {
		t.Fatal("root did not change after appending a commitment")
	}
}

func TestIsRecentAnchorTracksHistory(t *testing.T) {
	s := NewState()
	genesisRoot := s.Root()
	if !s.IsRecentAnchor(genesisRoot) {
		t.Fatal("genesis root should be a recent anchor")
	}
	s.ApplyOutput(digestN(3))
	if !s.IsRecentAnchor(s.Root()) {
		t.Fatal("current root should be a recent anchor")
	}
	if s.IsRecentAnchor(digestN(200)) {
		t.Fatal("unrelated digest should not be a recent anchor")
	}
}

func TestCollapsedUpdateForRejectsInvalidRange(t *testing.T) {
	s := NewState()
	for i := 0; i < 5; i++ {
		s.ApplyOutput(digestN(byte(i)))
	}
	if _, err := s.CollapsedUpdateFor(3, 1); err != ErrInvalidUpdate {
		t.Fatalf("expected ErrInvalidUpdate for from>to, got %v", err)
	}
	if _, err := s.CollapsedUpdateFor(0, 6); err != ErrInvalidUpdate {
		t.Fatalf("expected ErrInvalidUpdate for to>first_free, got %v", err)
	}
	u, err := s.CollapsedUpdateFor(1, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u.Leaves) != 3 {
		t.Fatalf("expected 3 leaves, got %d", len(u.Leaves))
	}
}

func TestComposeMatchesDirectDerivation(t *testing.T) {
	s := NewState()
	for i := 0; i < 6; i++ {
		s.ApplyOutput(digestN(byte(i + 1)))
	}
	ab, err := s.CollapsedUpdateFor(0, 3)
	if err != nil {
		t.Fatalf("CollapsedUpdateFor(0,3): %v", err)
	}
	bc, err := s.CollapsedUpdateFor(3, 6)
	if err != nil {
		t.Fatalf("CollapsedUpdateFor(3,6): %v", err)
	}
	composed, err := Compose(ab, bc)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	direct, err := s.CollapsedUpdateFor(0, 6)
	if err != nil {
		t.Fatalf("CollapsedUpdateFor(0,6): %v", err)
	}
	if len(composed.Leaves) != len(direct.Leaves) {
		t.Fatalf("composed leaf count = %d, direct = %d", len(composed.Leaves), len(direct.Leaves))
	}
	for i := range composed.Leaves {
		if composed.Leaves[i] != direct.Leaves[i] {
			t.Fatalf("leaf %d mismatch between composed and direct derivation", i)
		}
	}
}

func TestComposeRejectsNonAdjacentRanges(t *testing.T) {
	ab := CollapsedUpdate{From: 0, To: 3}
	bc := CollapsedUpdate{From: 4, To: 6}
	if _, err := Compose(ab, bc); err != ErrInvalidUpdate {
		t.Fatalf("expected ErrInvalidUpdate for non-adjacent ranges, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewState()
	s.ApplyOutput(digestN(1))
	clone := s.Clone()
	s.ApplyOutput(digestN(2))
	if clone.Tree.FirstFree == s.Tree.FirstFree {
		t.Fatal("clone should not observe mutations made after cloning")
	}
	if clone.Root() == s.Root() {
		t.Fatal("clone root should differ from mutated original")
	}
}

func TestFilterPreservesSelectedLeaves(t *testing.T) {
	s := NewState()
	var leaves []Digest
	for i := 0; i < 4; i++ {
		d := digestN(byte(i + 10))
		leaves = append(leaves, d)
		s.ApplyOutput(d)
	}
	filtered := s.Filter(map[uint64]struct{}{1: {}, 3: {}})
	if got, ok := filtered.Leaf(1); !ok || got != leaves[1] {
		t.Fatalf("filtered leaf 1 = %x, ok=%v, want %x", got, ok, leaves[1])
	}
	if got, ok := filtered.Leaf(3); !ok || got != leaves[3] {
		t.Fatalf("filtered leaf 3 = %x, ok=%v, want %x", got, ok, leaves[3])
	}
	if _, ok := filtered.Leaf(0); ok {
		t.Fatal("index 0 was not in the filter set and should be absent")
	}
}
