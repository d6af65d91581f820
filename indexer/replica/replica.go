// Package replica re-applies the blocks a node follower streams in to an
// in-memory ledger.LedgerState, deriving the facts (transaction results,
// created and spent unshielded outputs, deployed contracts, contract
// actions, applied system transactions) the rest of the indexer serves.
// Zswap nullifiers and shielded outputs are not emitted as facts.
package replica

import (
	"fmt"
	"sort"
	"sync"

	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/node"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/zswap"
)

// Fact is one effect a block's application produced, the unit the event
// bus and SQL persistence layer both consume.
type Fact struct {
	Height   uint64
	TxIndex  int
	Kind     FactKind
	Data     any
}

type FactKind uint8

const (
	FactZswapOutput FactKind = iota
	FactZswapNullifier
	FactUTXOCreated
	FactUTXOSpent
	FactContractDeployed
	FactTransactionResult
	FactSystemTransactionApplied
	FactContractAction
)

// ContractActionFact is the Data payload of a FactContractAction,
// carrying the state the contract_actions table persists: which contract,
// which kind of action, and the chain_state the action left the contract
// in once applied.
type ContractActionFact struct {
	Address    [32]byte
	Kind       ledger.ContractActionKind
	EntryPoint string
	ChainState []byte
}

// UTXOFact is the Data payload of a FactUTXOCreated/FactUTXOSpent fact,
// carrying the full key fields the storage layer needs to populate or
// retire a row in its utxos table.
type UTXOFact struct {
	Owner       [32]byte
	TokenType   [32]byte
	IntentHash  [32]byte
	OutputIndex uint32
	ValueHi     uint64
	ValueLo     uint64
}

// Replica holds the live ledger state plus the last applied block
// height, the watermark persistence checkpoints against.
type Replica struct {
	mu      sync.RWMutex
	state   *ledger.LedgerState
	height  uint64
	strict  ledger.WellFormedStrictness
}

func New(params ledger.LedgerParameters) *Replica {
	return &Replica{state: ledger.NewLedgerState(params)}
}

// Height reports the last applied block height.
func (r *Replica) Height() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.height
}

// StateRoot returns the current content-addressed root, used to
// cross-check against the node's own root for the block just applied.
func (r *Replica) StateRoot() ledger.Digest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ledger.StateRoot(r.state)
}

// CollapsedUpdate derives the zswap collapsed update covering [from, to)
// against the live tree, the same derivation a cache miss in
// indexer/statecache falls back to.
func (r *Replica) CollapsedUpdate(from, to uint64) (zswap.CollapsedUpdate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Zswap.CollapsedUpdateFor(from, to)
}

// ApplyBlock decodes and applies every transaction in order, returning
// the facts produced. A malformed transaction inside an already-accepted
// node block indicates a bug in well-formedness rather than an
// adversarial input, so ApplyBlock returns an error rather than skipping
// it; callers should treat this as fatal for the affected block.
func (r *Replica) ApplyBlock(b node.Block) ([]Fact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Height != r.height+1 && r.height != 0 {
		return nil, fmt.Errorf("replica: out-of-order block %d, expected %d", b.Height, r.height+1)
	}

	var facts []Fact
	ctx := ledger.TransactionContext{State: r.state, BlockTime: b.Timestamp}

	for i, raw := range b.RawTxs {
		if len(raw) > 0 && ledger.Tag(raw[0]) == ledger.TagSystemTransaction {
			sysTx, err := ledger.DecodeSystemTransaction(raw)
			if err != nil {
				return nil, fmt.Errorf("block %d tx %d: decode system tx: %w", b.Height, i, err)
			}
			newState, err := ledger.ApplySystemTx(sysTx, r.state)
			if err != nil {
				return nil, fmt.Errorf("block %d tx %d: apply system tx: %w", b.Height, i, err)
			}
			r.state = newState
			facts = append(facts, Fact{Height: b.Height, TxIndex: i, Kind: FactSystemTransactionApplied, Data: sysTx.Kind})
			continue
		}

		tx, err := decodeTransaction(raw)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %d: decode: %w", b.Height, i, err)
		}
		vtx, err := ledger.WellFormed(tx, ctx, r.strict)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %d: well-formedness: %w", b.Height, i, err)
		}

		before := snapshotUTXOKeys(r.state)
		newState, result := ledger.Apply(vtx, r.state)
		r.state = newState
		after := snapshotUTXOKeys(r.state)
		facts = append(facts, diffFacts(b.Height, i, before, after, result)...)
		facts = append(facts, contractActionFacts(b.Height, i, tx, newState, result)...)
	}

	newState, err := ledger.PostBlockUpdate(r.state, b.Timestamp, uint64(len(b.RawTxs)))
	if err != nil {
		return nil, fmt.Errorf("block %d: post-block update: %w", b.Height, err)
	}
	r.state = newState

	r.height = b.Height
	return facts, nil
}

func decodeTransaction(raw []byte) (*ledger.Transaction, error) {
	return ledger.DecodeTransaction(raw)
}

func diffFacts(height uint64, txIndex int, before, after map[string]UTXOFact, result ledger.TransactionResult) []Fact {
	facts := []Fact{{Height: height, TxIndex: txIndex, Kind: FactTransactionResult, Data: result}}
	for _, addr := range result.DeployedContracts {
		facts = append(facts, Fact{Height: height, TxIndex: txIndex, Kind: FactContractDeployed, Data: addr})
	}
	for k, f := range after {
		if _, existed := before[k]; !existed {
			facts = append(facts, Fact{Height: height, TxIndex: txIndex, Kind: FactUTXOCreated, Data: f})
		}
	}
	for k, f := range before {
		if _, still := after[k]; !still {
			facts = append(facts, Fact{Height: height, TxIndex: txIndex, Kind: FactUTXOSpent, Data: f})
		}
	}
	return facts
}

// contractActionFacts derives one FactContractAction per contract action
// in the transaction's intents, in the same segment/action order the
// ledger's guaranteed phase applies them in, so Deploy actions line up
// with result.DeployedContracts positionally. A transaction that failed
// outright never reaches here with any effect to report; a segment whose
// fallible phase failed still reports its guaranteed-phase actions
// (Deploy, Maintain, and any Call operations scoped to the guaranteed
// phase), since those already committed before the fallible attempt ran.
func contractActionFacts(height uint64, txIndex int, tx *ledger.Transaction, state *ledger.LedgerState, result ledger.TransactionResult) []Fact {
	if result.Kind == ledger.ResultFailure {
		return nil
	}

	succeeded := make(map[ledger.SegmentID]bool, len(result.Partial))
	for _, o := range result.Partial {
		succeeded[o.Segment] = o.Succeeded
	}

	segments := make([]ledger.SegmentID, 0, len(tx.Intents))
	for seg := range tx.Intents {
		segments = append(segments, seg)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i] < segments[j] })

	var facts []Fact
	deployIdx := 0
	for _, seg := range segments {
		intent := tx.Intents[seg]
		segmentOK, attempted := succeeded[seg]
		for _, action := range intent.Actions {
			switch action.Kind {
			case ledger.ActionDeploy:
				if deployIdx >= len(result.DeployedContracts) {
					continue
				}
				addr := result.DeployedContracts[deployIdx]
				deployIdx++
				facts = append(facts, contractActionFact(height, txIndex, addr, action, stateDataFor(state, addr)))
			case ledger.ActionMaintain:
				facts = append(facts, contractActionFact(height, txIndex, action.Address, action, stateDataFor(state, action.Address)))
			case ledger.ActionCall:
				if attempted && !segmentOK && !hasGuaranteedOperation(action) {
					continue
				}
				facts = append(facts, contractActionFact(height, txIndex, action.Address, action, stateDataFor(state, action.Address)))
			}
		}
	}
	return facts
}

func contractActionFact(height uint64, txIndex int, addr ledger.ContractAddress, action ledger.ContractAction, chainState []byte) Fact {
	return Fact{
		Height:  height,
		TxIndex: txIndex,
		Kind:    FactContractAction,
		Data: ContractActionFact{
			Address:    addr,
			Kind:       action.Kind,
			EntryPoint: action.EntryPoint,
			ChainState: chainState,
		},
	}
}

func hasGuaranteedOperation(action ledger.ContractAction) bool {
	for _, op := range action.Transcript.Operations {
		if op.Phase == 0 { // contract.PhaseGuaranteed
			return true
		}
	}
	return false
}

func stateDataFor(state *ledger.LedgerState, addr ledger.ContractAddress) []byte {
	c, ok := state.Contracts.Get(addr)
	if !ok {
		return nil
	}
	return append([]byte(nil), c.State.Data...)
}

// snapshotUTXOKeys indexes the live set by a composite string key so
// before/after sets can be diffed by plain map membership, while keeping
// the full field data on hand to build a UTXOFact for whichever side of
// the diff a key falls on.
func snapshotUTXOKeys(state *ledger.LedgerState) map[string]UTXOFact {
	keys := state.UTXO.Keys()
	out := make(map[string]UTXOFact, len(keys))
	for _, k := range keys {
		id := fmt.Sprintf("%x:%x:%x:%d", k.Owner, k.TokenType, k.IntentHash, k.OutputIndex)
		out[id] = UTXOFact{
			Owner:       k.Owner,
			TokenType:   k.TokenType,
			IntentHash:  k.IntentHash,
			OutputIndex: k.OutputIndex,
			ValueHi:     k.Value.Hi,
			ValueLo:     k.Value.Lo,
		}
	}
	return out
}
