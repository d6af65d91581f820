// Package contract implements the L5 Contract VM Interface: the core does
// not execute contracts, it verifies that a submitted transcript of
// runtime operations is consistent with the committed contract state and
// applies the transcript's state delta atomically.
package contract

import (
	"github.com/cockroachdb/errors"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/crypto"
)

type Digest = crypto.Digest

var (
	ErrAlreadyDeployed      = errors.New("contract already deployed at address")
	ErrUnknownEntryPoint    = errors.New("no verifier key for entry point")
	ErrProofVerification    = errors.New("transcript proof failed verification")
	ErrReplayProtection     = errors.New("maintenance counter did not advance")
	ErrThresholdNotMet      = errors.New("maintenance signature threshold not met")
)

// Phase discriminates which half of a transaction an operation belongs
// to, mirroring the guaranteed/fallible split at the transaction layer.
type Phase uint8

const (
	PhaseGuaranteed Phase = iota
	PhaseFallible
)

// Operation is one recorded runtime call in a transcript.
type Operation struct {
	Phase      Phase
	Name       string
	PublicInputs []byte
	StateDelta []byte // opaque delta applied to ChargedState.Data on success
}

// Transcript is the full recorded sequence of operations for one Call
// action. Each operation carries its own Phase; the ledger's apply step
// filters a transcript down to one phase's operations before it reaches
// Map.Call.
type Transcript struct {
	Operations []Operation
	Proof      []byte
}

// ChargedState is the contract's opaque state blob plus the storage fee
// charged against it.
type ChargedState struct {
	Data    []byte
	Charged uint64
}

// Contract is one entry in the ledger's contracts map.
type Contract struct {
	State               ChargedState
	Operations          map[string][]byte // entry point -> verifier key bytes
	MaintenanceAuthority MaintenanceAuthority
	Balance             map[Digest]uint64 // token type -> balance
}

type MaintenanceAuthority struct {
	Keys      [][]byte
	Threshold uint32
	Counter   uint64
}

// Verifier is the crypto collaborator boundary: given a verifier key, a
// transcript's public inputs, and its proof, report whether it verifies.
// Production wiring plugs in ledger/crypto.VerifyProof; tests can supply
// a stub.
type Verifier interface {
	Verify(verifierKey []byte, publicInputs []byte, proof []byte) (bool, error)
}

// SignatureChecker verifies a maintenance-authority signature threshold
// over a monotonically increasing counter, the contract layer's replay
// protection.
type SignatureChecker interface {
	VerifyThreshold(keys [][]byte, threshold uint32, msg []byte, sigs [][]byte) bool
}

// Map is the ledger's contracts: address -> Contract.
type Map struct {
	m map[Digest]*Contract
}

func NewMap() *Map { return &Map{m: make(map[Digest]*Contract)} }

func (m *Map) Get(addr Digest) (*Contract, bool) {
	c, ok := m.m[addr]
	return c, ok
}

// Deploy derives the contract address from the initial state's hash and
// installs it, failing if one is already present there (addresses are
// derived, never chosen, so a collision means a true duplicate deploy).
func (m *Map) Deploy(initialState ChargedState, ops map[string][]byte, authority MaintenanceAuthority) (Digest, error) {
	addr := crypto.Hash("midnight/contract/address", initialState.Data)
	if _, exists := m.m[addr]; exists {
		return Digest{}, ErrAlreadyDeployed
	}
	m.m[addr] = &Contract{
		State:                initialState,
		Operations:           ops,
		MaintenanceAuthority: authority,
		Balance:              make(map[Digest]uint64),
	}
	return addr, nil
}

// Call verifies transcript against the contract's committed verifier key
// for entryPoint and, if it verifies, applies the transcript's state
// delta(s) in transcript order. It never partially applies: on any
// verification failure the contract is left untouched.
func (m *Map) Call(addr Digest, entryPoint string, transcript Transcript, v Verifier) error {
	c, ok := m.m[addr]
	if !ok {
		return ErrUnknownEntryPoint
	}
	vk, ok := c.Operations[entryPoint]
	if !ok {
		return ErrUnknownEntryPoint
	}

	var publicInputs []byte
	for _, op := range transcript.Operations {
		publicInputs = append(publicInputs, op.PublicInputs...)
	}
	ok, err := v.Verify(vk, publicInputs, transcript.Proof)
	if err != nil {
		return errors.Wrap(err, "verify transcript")
	}
	if !ok {
		return ErrProofVerification
	}

	newState := append([]byte(nil), c.State.Data...)
	for _, op := range transcript.Operations {
		newState = append(newState, op.StateDelta...)
	}
	c.State.Data = newState
	return nil
}

// Maintain applies verifier-key/authority updates gated by a signature
// threshold over the monotonically increasing maintenance counter.
func (m *Map) Maintain(addr Digest, newOps map[string][]byte, newAuthority *MaintenanceAuthority, counter uint64, msg []byte, sigs [][]byte, sc SignatureChecker) error {
	c, ok := m.m[addr]
	if !ok {
		return ErrUnknownEntryPoint
	}
	if counter <= c.MaintenanceAuthority.Counter {
		return ErrReplayProtection
	}
	if !sc.VerifyThreshold(c.MaintenanceAuthority.Keys, c.MaintenanceAuthority.Threshold, msg, sigs) {
		return ErrThresholdNotMet
	}
	for ep, vk := range newOps {
		c.Operations[ep] = vk
	}
	if newAuthority != nil {
		c.MaintenanceAuthority = *newAuthority
	} else {
		c.MaintenanceAuthority.Counter = counter
	}
	return nil
}

func (m *Map) Clone() *Map {
	c := &Map{m: make(map[Digest]*Contract, len(m.m))}
	for addr, ct := range m.m {
		ops := make(map[string][]byte, len(ct.Operations))
		for k, v := range ct.Operations {
			ops[k] = v
		}
		bal := make(map[Digest]uint64, len(ct.Balance))
		for k, v := range ct.Balance {
			bal[k] = v
		}
		keys := append([][]byte(nil), ct.MaintenanceAuthority.Keys...)
		c.m[addr] = &Contract{
			State:      ChargedState{Data: append([]byte(nil), ct.State.Data...), Charged: ct.State.Charged},
			Operations: ops,
			MaintenanceAuthority: MaintenanceAuthority{
				Keys:      keys,
				Threshold: ct.MaintenanceAuthority.Threshold,
				Counter:   ct.MaintenanceAuthority.Counter,
			},
			Balance: bal,
		}
	}
	return c
}

// Addresses returns all deployed contract addresses, used for state-root
// hashing and for building per-contract chain_state filters.
func (m *Map) Addresses() []Digest {
	out := make([]Digest, 0, len(m.m))
	for addr := range m.m {
		out = append(out, addr)
	}
	return out
}
