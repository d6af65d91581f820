package ledger

import (
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/contract"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/crypto"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/dust"
)

// Digest is the 32-byte content hash used for commitments, nullifiers,
// contract addresses, and the state root.
type Digest = crypto.Digest

// Transcript is the recorded sequence of VM operations a Call action
// submits for verification; see ledger/contract for the dispatch and
// verification logic that consumes it.
type Transcript = contract.Transcript

// DustAction is one dust-spend, registration, or deregistration carried
// in an intent; see ledger/dust for accrual and nullifier bookkeeping.
type DustAction = dust.Action

// SegmentID scopes a part of a transaction: segment 0 is the mandatory
// "guaranteed" phase, segments >= 1 are independently-failable "fallible"
// phases.
type SegmentID uint16

const GuaranteedSegment SegmentID = 0

// TokenType identifies a fungible asset class within a single shielded or
// unshielded offer.
type TokenType = Digest

// ContractAddress is derived from a contract's initial state at deploy
// time; it is never chosen by the caller.
type ContractAddress = Digest

// Nullifier marks a shielded note as spent.
type Nullifier = Digest

// CoinCommitment is a Pedersen-committed note appended to the zswap
// Merkle tree.
type CoinCommitment = Digest

// Signature is an opaque Schnorr signature over a canonical intent
// digest; verified via ledger/crypto.VerifySchnorr.
type Signature []byte

// PublicKey is an x-only secp256k1 public key.
type PublicKey []byte

// ShieldedOffer is the shielded counterpart of UnshieldedOffer: spent
// notes (by nullifier), new note commitments, and a commitment to the
// offer's net value delta. A transaction carries one guaranteed offer
// plus at most one fallible offer per segment.
type ShieldedOffer struct {
	Inputs  []ShieldedInput
	Outputs []ShieldedOutput
	// DeltaCommitment binds the declared per-token value delta of this
	// offer (inputs+mints-outputs-fees) without revealing amounts.
	DeltaCommitment []byte
}

type ShieldedInput struct {
	Nullifier Nullifier
	// Anchor is the Merkle root this input's membership proof is relative
	// to; it must be one of the bounded recent roots in ZswapState.
	Anchor Digest
}

type ShieldedOutput struct {
	Commitment CoinCommitment
	// Ciphertext is the encrypted note detail; wallets attempt to decrypt
	// it with their viewing key to determine relevance.
	Ciphertext []byte
}

// UnshieldedInput references the (intent_hash, output_index) of the
// producing intent's output.
type UnshieldedInput struct {
	IntentHash  Digest
	OutputIndex uint32
}

// UnshieldedOutput creates one entry in the ledger's UTXO set, keyed by
// the full tuple once applied.
type UnshieldedOutput struct {
	Owner     Digest
	TokenType TokenType
	Value     U128
}

type UnshieldedOffer struct {
	Inputs  []UnshieldedInput
	Outputs []UnshieldedOutput
	// Mints and Fees are per-token-type deltas applied at balance-check
	// time; nil/zero means none.
	Mints map[TokenType]U128
	Fees  map[TokenType]U128
}

// U128 is a 128-bit unsigned integer represented as big-endian halves so
// it round-trips through the codec without heap allocation on the hot
// path; arithmetic goes through the helpers in amount.go.
type U128 struct {
	Hi uint64
	Lo uint64
}

// ContractActionKind discriminates the ContractAction sum type.
type ContractActionKind uint8

const (
	ActionDeploy ContractActionKind = iota
	ActionCall
	ActionMaintain
)

// ContractAction is one of Deploy/Call/Maintain, always carrying the
// transcript of runtime operations the VM interface will verify and
// apply (see ledger/contract).
type ContractAction struct {
	Kind    ContractActionKind
	Address ContractAddress // zero for Deploy until address is derived

	// Deploy
	InitialState ChargedState

	// Call
	EntryPoint  string
	Transcript  Transcript

	// Maintain
	MaintenanceUpdates []MaintenanceUpdate
}

// ChargedState is the opaque, content-addressed contract state blob plus
// the storage-fee accounting charged against it; the VM interface never
// interprets its contents beyond what the transcript's deltas describe.
type ChargedState struct {
	Data    []byte
	Charged U128
}

// MaintenanceUpdate is one verifier-key or maintenance-authority change,
// gated by a signature threshold over MaintenanceCounter.
type MaintenanceUpdate struct {
	EntryPoint  string          // empty when updating the maintenance authority itself
	VerifierKey []byte          // nil when this update only changes the authority
	NewAuthority *MaintenanceAuthority
}

type MaintenanceAuthority struct {
	Keys      []PublicKey
	Threshold uint32
	Counter   uint64
}

// Intent is a segment-tagged, atomically-signed bundle of unshielded
// offers, contract actions, and dust actions.
type Intent struct {
	Segment                 SegmentID
	GuaranteedUnshieldedOffer *UnshieldedOffer
	FallibleUnshieldedOffer   *UnshieldedOffer
	Actions                   []ContractAction
	DustActions               []DustAction
	TTL                       int64 // unix seconds
	BindingCommitment         []byte
	Signature                 Signature
	SignerKey                 PublicKey
}

// Transaction is the Standard variant: a map of intents keyed by segment
// plus the guaranteed and per-segment-fallible shielded offers.
type Transaction struct {
	Intents        map[SegmentID]*Intent
	GuaranteedCoins *ShieldedOffer
	FallibleCoins   map[SegmentID]*ShieldedOffer
}

// SystemTransactionKind discriminates privileged, non-fee-bearing
// transitions authorized by the block-producer role.
type SystemTransactionKind uint8

const (
	SysMint SystemTransactionKind = iota
	SysDistributeRewards
	SysReplayProtection
)

type SystemTransaction struct {
	Kind       SystemTransactionKind
	Recipient  Digest
	TokenType  TokenType
	Amount     U128
	Commitment Digest // for SysReplayProtection bookkeeping
}

// TransactionResult is the sum type callers switch on; never an
// exception. Consumers must treat a missing segment id in PartialSuccess
// as "not attempted".
type TransactionResult struct {
	Kind              ResultKind
	Partial           []SegmentOutcome  // one entry per segment whose fallible phase was attempted; set for Success and PartialSuccess
	Reason            string            // only set when Kind == ResultFailure
	DeployedContracts []ContractAddress // addresses Deploy actions derived during the guaranteed phase
}

type ResultKind uint8

const (
	ResultSuccess ResultKind = iota
	ResultPartialSuccess
	ResultFailure
)

type SegmentOutcome struct {
	Segment   SegmentID
	Succeeded bool
}
