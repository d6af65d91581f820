package ledger

import (
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/contract"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/dust"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/utxo"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/zswap"
)

// LedgerParameters are the network's tunable constants, set at genesis;
// no transaction or system transaction kind changes them.
type LedgerParameters struct {
	MaxBlockSize      uint64
	MaxSegments       uint16
	DustParameters    dust.Parameters
}

// BlockFullness holds the current block's consumed size and segment
// counts; it is hashed into the state root and reset to zero by
// PostBlockUpdate. Apply and ApplySystemTx do not add to it, so it stays
// zero unless a caller sets it.
type BlockFullness struct {
	BytesUsed    uint64
	SegmentsUsed uint16
}

// LedgerState is the full content-addressable state machine: the L2-L5
// engines composed together plus the treasury and bookkeeping a
// transaction's apply phase reads and mutates.
type LedgerState struct {
	Zswap     *zswap.State
	UTXO      *utxo.Set
	Contracts *contract.Map
	Dust      *dust.State

	UnclaimedBlockRewards U128
	Parameters            LedgerParameters
	Fullness              BlockFullness

	// Treasury holds the block-producer-authorized mint/reward pool per
	// token type, debited by SysDistributeRewards and credited by SysMint.
	Treasury map[TokenType]U128
	// ReplayCommitments records every SysReplayProtection commitment seen
	// so far; a repeat is rejected with ErrCommitmentAlreadyPresent.
	ReplayCommitments map[Digest]struct{}
}

// NewLedgerState constructs an empty ledger state at genesis parameters.
func NewLedgerState(params LedgerParameters) *LedgerState {
	return &LedgerState{
		Zswap:             zswap.NewState(),
		UTXO:              utxo.NewSet(),
		Contracts:         contract.NewMap(),
		Dust:              dust.NewState(),
		Parameters:        params,
		Treasury:          make(map[TokenType]U128),
		ReplayCommitments: make(map[Digest]struct{}),
	}
}

// Clone deep-copies state for snapshotting before a speculative apply.
func (s *LedgerState) Clone() *LedgerState {
	treasury := make(map[TokenType]U128, len(s.Treasury))
	for k, v := range s.Treasury {
		treasury[k] = v
	}
	commitments := make(map[Digest]struct{}, len(s.ReplayCommitments))
	for k := range s.ReplayCommitments {
		commitments[k] = struct{}{}
	}
	return &LedgerState{
		Zswap:                 s.Zswap.Clone(),
		UTXO:                  s.UTXO.Clone(),
		Contracts:             s.Contracts.Clone(),
		Dust:                  s.Dust.Clone(),
		UnclaimedBlockRewards: s.UnclaimedBlockRewards,
		Parameters:            s.Parameters,
		Fullness:              s.Fullness,
		Treasury:              treasury,
		ReplayCommitments:     commitments,
	}
}

// toUTXOKey converts the ledger-level tuple identifying an unshielded
// output into the utxo package's key type, the one boundary conversion
// the utxo engine avoids importing the parent package to perform itself.
func toUTXOKey(owner, tokenType, intentHash Digest, outputIndex uint32, value U128) utxo.Key {
	return utxo.Key{
		Owner:       owner,
		TokenType:   tokenType,
		IntentHash:  intentHash,
		OutputIndex: outputIndex,
		Value:       utxo.U128{Hi: value.Hi, Lo: value.Lo},
	}
}

// fromUTXOKey is the inverse conversion. The replica and the state-root
// hasher read utxo.Key fields directly and do not call it.
func fromUTXOKey(k utxo.Key) (owner, tokenType, intentHash Digest, outputIndex uint32, value U128) {
	return k.Owner, k.TokenType, k.IntentHash, k.OutputIndex, U128{Hi: k.Value.Hi, Lo: k.Value.Lo}
}
