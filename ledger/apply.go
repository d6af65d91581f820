package ledger

import (
	"sort"

	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/utxo"
)

// Apply runs a verified transaction's guaranteed phase against state
// unconditionally, then each segment's fallible phase independently
// against the post-guaranteed state, so one segment's failure never
// rolls back another segment or the guaranteed phase. It returns the
// resulting state (the input state pointer itself when the guaranteed
// phase fails, otherwise a new clone) and a result recording which
// segments succeeded.
func Apply(vtx *VerifiedTransaction, state *LedgerState) (*LedgerState, TransactionResult) {
	tx := vtx.tx
	working := state.Clone()

	deployed, err := applyGuaranteedPhase(tx, working)
	if err != nil {
		return state, TransactionResult{Kind: ResultFailure, Reason: err.Error()}
	}

	segments := make([]SegmentID, 0, len(tx.Intents))
	for seg := range tx.Intents {
		segments = append(segments, seg)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i] < segments[j] })

	outcomes := make([]SegmentOutcome, 0, len(segments))
	anyFailed := false
	for _, seg := range segments {
		intent := tx.Intents[seg]
		if !hasFallibleWork(tx, intent) {
			continue
		}
		attempt := working.Clone()
		if err := applyFalliblePhase(tx, intent, seg, attempt); err != nil {
			outcomes = append(outcomes, SegmentOutcome{Segment: seg, Succeeded: false})
			anyFailed = true
			continue
		}
		working = attempt
		outcomes = append(outcomes, SegmentOutcome{Segment: seg, Succeeded: true})
	}

	kind := ResultSuccess
	if anyFailed {
		kind = ResultPartialSuccess
	}
	return working, TransactionResult{Kind: kind, Partial: outcomes, DeployedContracts: deployed}
}

func hasFallibleWork(tx *Transaction, intent *Intent) bool {
	if intent.FallibleUnshieldedOffer != nil {
		return true
	}
	if _, ok := tx.FallibleCoins[intent.Segment]; ok {
		return true
	}
	for _, a := range intent.Actions {
		for _, op := range a.Transcript.Operations {
			if op.Phase == 1 { // contract.PhaseFallible
				return true
			}
		}
	}
	return false
}

// applyGuaranteedPhase applies the mandatory segment-0 material: the
// transaction-wide guaranteed shielded offer, every intent's guaranteed
// unshielded offer, every intent's guaranteed-phase contract operations,
// and dust actions, always last since dust claims are defined in terms of
// the block's other effects. Order within: UTXO spends before UTXO
// outputs, zswap nullifiers before zswap outputs.
func applyGuaranteedPhase(tx *Transaction, state *LedgerState) ([]ContractAddress, error) {
	if err := applyShieldedOffer(tx.GuaranteedCoins, state); err != nil {
		return nil, err
	}

	segments := make([]SegmentID, 0, len(tx.Intents))
	for seg := range tx.Intents {
		segments = append(segments, seg)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i] < segments[j] })

	var deployed []ContractAddress
	for _, seg := range segments {
		intent := tx.Intents[seg]
		if err := applyUnshieldedOffer(intent.GuaranteedUnshieldedOffer, intent, state); err != nil {
			return nil, err
		}
		addrs, err := applyContractActions(intent.Actions, contractPhaseGuaranteed, state)
		if err != nil {
			return nil, err
		}
		deployed = append(deployed, addrs...)
	}
	for _, seg := range segments {
		intent := tx.Intents[seg]
		if err := applyDustActions(intent.DustActions, state); err != nil {
			return nil, err
		}
	}
	return deployed, nil
}

// applyFalliblePhase applies one segment's fallible material in
// isolation; a failure here must not mutate state, which is why Apply
// always passes a fresh clone.
func applyFalliblePhase(tx *Transaction, intent *Intent, seg SegmentID, state *LedgerState) error {
	if err := applyUnshieldedOffer(intent.FallibleUnshieldedOffer, intent, state); err != nil {
		return err
	}
	if offer, ok := tx.FallibleCoins[seg]; ok {
		if err := applyShieldedOffer(offer, state); err != nil {
			return err
		}
	}
	if _, err := applyContractActions(intent.Actions, contractPhaseFallible, state); err != nil {
		return err
	}
	return nil
}

const (
	contractPhaseGuaranteed = 0
	contractPhaseFallible   = 1
)

func applyShieldedOffer(offer *ShieldedOffer, state *LedgerState) error {
	if offer == nil {
		return nil
	}
	for _, in := range offer.Inputs {
		if err := state.Zswap.ApplyNullifier(in.Nullifier); err != nil {
			return err
		}
	}
	for _, out := range offer.Outputs {
		state.Zswap.ApplyOutput(out.Commitment)
	}
	return nil
}

// applyUnshieldedOffer spends each referenced input after resolving it
// against the UTXO set's secondary index, then creates each declared
// output, then checks that per-token inputs+mints balance
// outputs+fees — the resolution this check needs only becomes possible
// once the referenced inputs' values are known, which is why it happens
// here rather than in well-formedness.
func applyUnshieldedOffer(offer *UnshieldedOffer, intent *Intent, state *LedgerState) error {
	if offer == nil {
		return nil
	}
	inputTotals := make(map[TokenType]U128)
	for _, in := range offer.Inputs {
		key, ok := state.UTXO.Lookup(utxo.Ref{IntentHash: in.IntentHash, OutputIndex: in.OutputIndex})
		if !ok || !state.UTXO.Has(key) {
			return ErrUTXONotFound
		}
		if err := state.UTXO.Spend(key); err != nil {
			return err
		}
		value := U128{Hi: key.Value.Hi, Lo: key.Value.Lo}
		sum, overflow := inputTotals[key.TokenType].Add(value)
		if overflow {
			return ErrBalanceMismatch
		}
		inputTotals[key.TokenType] = sum
	}
	for token, mint := range offer.Mints {
		sum, overflow := inputTotals[token].Add(mint)
		if overflow {
			return ErrBalanceMismatch
		}
		inputTotals[token] = sum
	}

	outputTotals := make(map[TokenType]U128)
	intentHash := intentDigest(intent)
	for idx, out := range offer.Outputs {
		sum, overflow := outputTotals[out.TokenType].Add(out.Value)
		if overflow {
			return ErrBalanceMismatch
		}
		outputTotals[out.TokenType] = sum
		state.UTXO.Create(toUTXOKey(out.Owner, out.TokenType, intentHash, uint32(idx), out.Value))
	}
	for token, fee := range offer.Fees {
		sum, overflow := outputTotals[token].Add(fee)
		if overflow {
			return ErrBalanceMismatch
		}
		outputTotals[token] = sum
	}

	for token, required := range outputTotals {
		if inputTotals[token].Cmp(required) != 0 {
			return ErrBalanceMismatch
		}
	}
	for token, available := range inputTotals {
		if _, consumed := outputTotals[token]; !consumed && !available.IsZero() {
			return ErrBalanceMismatch
		}
	}
	return nil
}

// applyContractActions dispatches Deploy/Call/Maintain in order, only
// executing the operations belonging to phase (the ledger partitions a
// single Transcript's operations by phase, so a Call action may
// contribute to both the guaranteed and fallible passes).
func applyContractActions(actions []ContractAction, phase uint8, state *LedgerState) ([]ContractAddress, error) {
	verifier := snarkVerifier{}
	var deployed []ContractAddress
	for _, action := range actions {
		switch action.Kind {
		case ActionDeploy:
			if phase != contractPhaseGuaranteed {
				continue
			}
			addr, err := state.Contracts.Deploy(toContractChargedState(action.InitialState), map[string][]byte{}, toContractMaintenanceAuthority(nil))
			if err != nil {
				return nil, err
			}
			deployed = append(deployed, ContractAddress(addr))
		case ActionCall:
			filtered := filterTranscriptPhase(action.Transcript, phase)
			if len(filtered.Operations) == 0 {
				continue
			}
			if err := state.Contracts.Call(action.Address, action.EntryPoint, filtered, verifier); err != nil {
				return nil, err
			}
		case ActionMaintain:
			if phase != contractPhaseGuaranteed {
				continue
			}
			for _, upd := range action.MaintenanceUpdates {
				if err := applyMaintenanceUpdate(action.Address, upd, state); err != nil {
					return nil, err
				}
			}
		}
	}
	return deployed, nil
}

func applyDustActions(actions []DustAction, state *LedgerState) error {
	for _, a := range actions {
		switch a.Kind {
		case 0: // dust.ActionSpend
			if err := state.Dust.ApplyNullifier(a.Nullifier); err != nil {
				return err
			}
		case 1: // dust.ActionRegister
			state.Dust.Register(a.Registration)
		case 2: // dust.ActionDeregister
			delete(state.Dust.Registrations, a.Registration.DustAddress)
		}
	}
	return nil
}
