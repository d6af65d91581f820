// Package dust implements the time-decaying, address-bound reward
// accounting described as the L4 Dust Engine: registrations, generation
// info, spend nullifiers, and time-advance bookkeeping.
package dust

import (
	"github.com/cockroachdb/errors"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/crypto"
)

type Digest = crypto.Digest

var ErrDoubleClaim = errors.New("dust nullifier already present")

// GenerationInfo describes one registration's accrual: an initial nonce,
// a start time, and an accrual rate in dust-units per second.
type GenerationInfo struct {
	Nonce     Digest
	StartTime int64 // unix seconds
	RatePerSec uint64
	// ExpiresAt is when this generation slot stops accruing, 0 meaning
	// unbounded until explicitly expired by post-block processing.
	ExpiresAt int64
}

// Registration maps a Cardano address to a chain dust-address with its
// generation info.
type Registration struct {
	CardanoAddress Digest
	DustAddress    Digest
	Generation     GenerationInfo
}

// Parameters bound how much dust a single generation slot may accrue.
type Parameters struct {
	MaxValue uint64
}

// ActionKind discriminates the Action sum type an intent may carry: a
// spend claims accrued dust by nullifier, a registration binds a new
// Cardano address to a dust address and starts its accrual clock.
type ActionKind uint8

const (
	ActionSpend ActionKind = iota
	ActionRegister
	ActionDeregister
)

// Action is one dust-related operation carried in an intent.
type Action struct {
	Kind ActionKind

	// Spend
	Nullifier Digest
	Value     uint64

	// Register / Deregister
	Registration Registration
}

// State is the dust engine's full accounting surface.
type State struct {
	Registrations map[Digest]Registration // keyed by DustAddress
	Nullifiers    map[Digest]struct{}
	Unclaimed     map[Digest]uint64 // per-address unclaimed rewards
	now           int64
}

func NewState() *State {
	return &State{
		Registrations: make(map[Digest]Registration),
		Nullifiers:    make(map[Digest]struct{}),
		Unclaimed:     make(map[Digest]uint64),
	}
}

// Register installs or replaces a registration for its dust address.
func (s *State) Register(r Registration) {
	s.Registrations[r.DustAddress] = r
}

// ValueAt computes the accrued dust value for a registration at time t,
// the deterministic function of elapsed time capped by parameters.
func ValueAt(g GenerationInfo, t int64, p Parameters) uint64 {
	if t <= g.StartTime {
		return 0
	}
	elapsed := t - g.StartTime
	if g.ExpiresAt != 0 && t > g.ExpiresAt {
		elapsed = g.ExpiresAt - g.StartTime
	}
	if elapsed < 0 {
		return 0
	}
	v := uint64(elapsed) * g.RatePerSec
	if v > p.MaxValue {
		return p.MaxValue
	}
	return v
}

// ApplyNullifier records a dust claim, preventing double-claims.
func (s *State) ApplyNullifier(n Digest) error {
	if _, exists := s.Nullifiers[n]; exists {
		return ErrDoubleClaim
	}
	s.Nullifiers[n] = struct{}{}
	return nil
}

// AddUnclaimed credits a user address with a block reward not yet
// claimed by a dust-generating spend.
func (s *State) AddUnclaimed(addr Digest, amount uint64) {
	s.Unclaimed[addr] += amount
}

// AdvanceTime moves the engine's clock forward and expires any
// generation slot whose ExpiresAt has passed, called from
// post_block_update.
func (s *State) AdvanceTime(tblock int64) {
	s.now = tblock
	for addr, reg := range s.Registrations {
		if reg.Generation.ExpiresAt != 0 && tblock > reg.Generation.ExpiresAt {
			delete(s.Registrations, addr)
		}
	}
}

func (s *State) Clone() *State {
	c := &State{
		Registrations: make(map[Digest]Registration, len(s.Registrations)),
		Nullifiers:    make(map[Digest]struct{}, len(s.Nullifiers)),
		Unclaimed:     make(map[Digest]uint64, len(s.Unclaimed)),
		now:           s.now,
	}
	for k, v := range s.Registrations {
		c.Registrations[k] = v
	}
	for k := range s.Nullifiers {
		c.Nullifiers[k] = struct{}{}
	}
	for k, v := range s.Unclaimed {
		c.Unclaimed[k] = v
	}
	return c
}
