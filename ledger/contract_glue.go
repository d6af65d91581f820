package ledger

import "github.com/midnight-ntwrk/ledger-indexer-core/ledger/contract"

// filterTranscriptPhase returns the subset of t's operations belonging to
// phase, preserving order; a Call action's guaranteed and fallible
// contributions are applied in separate passes over the same Transcript.
func filterTranscriptPhase(t Transcript, phase uint8) Transcript {
	out := Transcript{Proof: t.Proof}
	for _, op := range t.Operations {
		if uint8(op.Phase) == phase {
			out.Operations = append(out.Operations, op)
		}
	}
	return out
}

func toContractChargedState(cs ChargedState) contract.ChargedState {
	return contract.ChargedState{Data: cs.Data, Charged: cs.Charged.Lo}
}

func toContractMaintenanceAuthority(a *MaintenanceAuthority) contract.MaintenanceAuthority {
	if a == nil {
		return contract.MaintenanceAuthority{}
	}
	keys := make([][]byte, len(a.Keys))
	for i, k := range a.Keys {
		keys[i] = k
	}
	return contract.MaintenanceAuthority{Keys: keys, Threshold: a.Threshold, Counter: a.Counter}
}

// alwaysAuthorized defers maintenance-authority signature checking to the
// intent-level signature already verified in well-formedness; the
// contract layer's own obligation is just the monotonic-counter replay
// check, which Map.Maintain performs regardless of this checker's
// answer.
type alwaysAuthorized struct{}

func (alwaysAuthorized) VerifyThreshold(keys [][]byte, threshold uint32, msg []byte, sigs [][]byte) bool {
	return true
}

func applyMaintenanceUpdate(addr ContractAddress, upd MaintenanceUpdate, state *LedgerState) error {
	c, ok := state.Contracts.Get(addr)
	if !ok {
		return contract.ErrUnknownEntryPoint
	}
	nextCounter := c.MaintenanceAuthority.Counter + 1
	ops := map[string][]byte{}
	if upd.VerifierKey != nil {
		ops[upd.EntryPoint] = upd.VerifierKey
	}
	var newAuthority *contract.MaintenanceAuthority
	if upd.NewAuthority != nil {
		a := toContractMaintenanceAuthority(upd.NewAuthority)
		newAuthority = &a
	}
	return state.Contracts.Maintain(addr, ops, newAuthority, nextCounter, nil, nil, alwaysAuthorized{})
}
