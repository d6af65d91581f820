package utxo

import "testing"

func key(owner, tok, intent byte, idx uint32, value uint64) Key {
	k := Key{OutputIndex: idx, Value: U128{Lo: value}}
	k.Owner[0] = owner
	k.TokenType[0] = tok
	k.IntentHash[0] = intent
	return k
}

func TestCreateThenSpend(t *testing.T) {
	s := NewSet()
	k := key(1, 2, 3, 0, 100)
	s.Create(k)
	if !s.Has(k) {
		t.Fatal("expected created key to be present")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if err := s.Spend(k); err != nil {
		t.Fatalf("Spend: %v", err)
	}
	if s.Has(k) {
		t.Fatal("expected key to be removed after spend")
	}
}

func TestSpendUnknownKeyFails(t *testing.T) {
	s := NewSet()
	if err := s.Spend(key(9, 9, 9, 0, 1)); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSpendTwiceFails(t *testing.T) {
	s := NewSet()
	k := key(1, 1, 1, 0, 5)
	s.Create(k)
	if err := s.Spend(k); err != nil {
		t.Fatalf("first spend: %v", err)
	}
	if err := s.Spend(k); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second spend, got %v", err)
	}
}

func TestLookupByRef(t *testing.T) {
	s := NewSet()
	k := key(1, 2, 3, 4, 50)
	s.Create(k)
	got, ok := s.Lookup(Ref{IntentHash: k.IntentHash, OutputIndex: 4})
	if !ok {
		t.Fatal("expected Lookup to find the created output")
	}
	if got != k {
		t.Fatalf("Lookup returned %+v, want %+v", got, k)
	}
	if _, ok := s.Lookup(Ref{OutputIndex: 99}); ok {
		t.Fatal("expected Lookup to miss for an unknown ref")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSet()
	k1 := key(1, 1, 1, 0, 1)
	s.Create(k1)
	clone := s.Clone()
	k2 := key(2, 2, 2, 0, 2)
	s.Create(k2)
	if clone.Has(k2) {
		t.Fatal("clone should not see mutations made after cloning")
	}
	if !clone.Has(k1) {
		t.Fatal("clone should retain state captured at clone time")
	}
	if err := s.Spend(k1); err != nil {
		t.Fatalf("Spend on original: %v", err)
	}
	if !clone.Has(k1) {
		t.Fatal("spending in the original must not affect the clone")
	}
}

func TestKeysEnumeratesAll(t *testing.T) {
	s := NewSet()
	s.Create(key(1, 1, 1, 0, 1))
	s.Create(key(2, 2, 2, 0, 2))
	if len(s.Keys()) != 2 {
		t.Fatalf("Keys() returned %d entries, want 2", len(s.Keys()))
	}
}
