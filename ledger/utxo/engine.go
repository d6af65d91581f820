// Package utxo implements the unshielded UTXO set: set semantics keyed by
// the full (owner, token type, intent hash, output index, value) tuple,
// described as the L3 UTXO Engine.
package utxo

import (
	"github.com/cockroachdb/errors"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/crypto"
)

type Digest = crypto.Digest

var ErrNotFound = errors.New("referenced unshielded utxo does not exist")

// Key is the full tuple identifying one unspent output.
type Key struct {
	Owner       Digest
	TokenType   Digest
	IntentHash  Digest
	OutputIndex uint32
	Value       U128
}

// U128 mirrors ledger.U128 without importing the parent package, to keep
// this engine free of a dependency cycle; ledger/state.go converts at the
// boundary.
type U128 struct {
	Hi, Lo uint64
}

// Ref is the (intent_hash, output_index) pair an UnshieldedInput carries;
// it is not enough on its own to identify a Key (it lacks owner, token
// type, and value), so the set maintains a secondary index from Ref to
// the full Key that produced it.
type Ref struct {
	IntentHash  Digest
	OutputIndex uint32
}

// Set is the ledger's live UTXO set: present in the map means unspent.
type Set struct {
	m   map[Key]struct{}
	byRef map[Ref]Key
}

func NewSet() *Set { return &Set{m: make(map[Key]struct{}), byRef: make(map[Ref]Key)} }

// Create adds a new unspent output. Outputs are created by UTXO outputs
// and are idempotent at the set level (re-creating an existing key is a
// no-op) since the key already encodes full provenance.
func (s *Set) Create(k Key) {
	s.m[k] = struct{}{}
	s.byRef[Ref{IntentHash: k.IntentHash, OutputIndex: k.OutputIndex}] = k
}

// Lookup resolves an UnshieldedInput's (intent_hash, output_index) to the
// full Key of the output it references, if that output was ever created.
// It returns ok=false for a reference that never existed; callers must
// still check Has before spending, since Lookup does not reflect removal
// from the secondary index on Spend (kept for diagnostics/double-spend
// error messages).
func (s *Set) Lookup(ref Ref) (Key, bool) {
	k, ok := s.byRef[ref]
	return k, ok
}

// Spend removes k, asserting prior membership. Ordering within a phase is
// the caller's responsibility: spends must be processed before outputs so
// an intent cannot spend its own newly-created outputs in the guaranteed
// phase.
func (s *Set) Spend(k Key) error {
	if _, ok := s.m[k]; !ok {
		return ErrNotFound
	}
	delete(s.m, k)
	return nil
}

// Has reports membership without mutating the set.
func (s *Set) Has(k Key) bool {
	_, ok := s.m[k]
	return ok
}

// Clone deep-copies the set for snapshotting.
func (s *Set) Clone() *Set {
	c := &Set{m: make(map[Key]struct{}, len(s.m)), byRef: make(map[Ref]Key, len(s.byRef))}
	for k := range s.m {
		c.m[k] = struct{}{}
	}
	for r, k := range s.byRef {
		c.byRef[r] = k
	}
	return c
}

// Keys returns all unspent keys; used by state-root hashing, which needs
// a deterministic enumeration, and by the indexer replica when diffing
// the set across an apply.
func (s *Set) Keys() []Key {
	out := make([]Key, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	return out
}

func (s *Set) Len() int { return len(s.m) }
