package ledger

import "testing"

func seededState() (*LedgerState, Digest, Digest) {
	state := NewLedgerState(LedgerParameters{})
	var owner, token, seedIntent Digest
	owner[0], token[0], seedIntent[0] = 1, 2, 3
	state.UTXO.Create(toUTXOKey(owner, token, seedIntent, 0, U128{Lo: 100}))
	return state, owner, token
}

func TestApplyBalancedGuaranteedSegmentSucceeds(t *testing.T) {
	state, owner, token := seededState()
	var seedIntent Digest
	seedIntent[0] = 3

	intent := &Intent{
		Segment: GuaranteedSegment,
		GuaranteedUnshieldedOffer: &UnshieldedOffer{
			Inputs:  []UnshieldedInput{{IntentHash: seedIntent, OutputIndex: 0}},
			Outputs: []UnshieldedOutput{{Owner: owner, TokenType: token, Value: U128{Lo: 90}}},
			Fees:    map[TokenType]U128{token: {Lo: 10}},
		},
	}
	tx := &Transaction{Intents: map[SegmentID]*Intent{0: intent}}
	vtx, err := WellFormed(tx, TransactionContext{State: state}, WellFormedStrictness{SkipSignatureVerification: true})
	if err != nil {
		t.Fatalf("WellFormed: %v", err)
	}

	next, result := Apply(vtx, state)
	if result.Kind != ResultSuccess {
		t.Fatalf("result kind = %v, want Success (reason=%q)", result.Kind, result.Reason)
	}
	if next.UTXO.Len() != 1 {
		t.Fatalf("expected exactly one unspent output after apply, got %d", next.UTXO.Len())
	}
}

func TestApplyGuaranteedFailureLeavesStateUnchanged(t *testing.T) {
	state := NewLedgerState(LedgerParameters{})
	beforeRoot := StateRoot(state)

	var bogusIntentHash Digest
	bogusIntentHash[0] = 0xFF
	intent := &Intent{
		Segment: GuaranteedSegment,
		GuaranteedUnshieldedOffer: &UnshieldedOffer{
			Inputs: []UnshieldedInput{{IntentHash: bogusIntentHash, OutputIndex: 0}},
		},
	}
	tx := &Transaction{Intents: map[SegmentID]*Intent{0: intent}}
	vtx, err := WellFormed(tx, TransactionContext{State: state}, WellFormedStrictness{SkipSignatureVerification: true, SkipBalanceCheck: true})
	if err != nil {
		t.Fatalf("WellFormed: %v", err)
	}

	next, result := Apply(vtx, state)
	if result.Kind != ResultFailure {
		t.Fatalf("result kind = %v, want Failure", result.Kind)
	}
	if next != state {
		t.Fatal("guaranteed-phase failure must return the original state, not a mutated clone")
	}
	if StateRoot(state) != beforeRoot {
		t.Fatal("guaranteed-phase failure must not mutate the ledger state")
	}
}

func TestApplyPartialSuccessIsolatesFailedSegment(t *testing.T) {
	state, owner, token := seededState()
	var seedIntent, bogusIntentHash Digest
	seedIntent[0] = 3
	bogusIntentHash[0] = 0xAB

	good := &Intent{
		Segment: GuaranteedSegment,
		GuaranteedUnshieldedOffer: &UnshieldedOffer{
			Inputs:  []UnshieldedInput{{IntentHash: seedIntent, OutputIndex: 0}},
			Outputs: []UnshieldedOutput{{Owner: owner, TokenType: token, Value: U128{Lo: 100}}},
		},
	}
	failing := &Intent{
		Segment: 1,
		FallibleUnshieldedOffer: &UnshieldedOffer{
			Inputs: []UnshieldedInput{{IntentHash: bogusIntentHash, OutputIndex: 0}},
		},
	}
	tx := &Transaction{Intents: map[SegmentID]*Intent{0: good, 1: failing}}
	vtx, err := WellFormed(tx, TransactionContext{State: state}, WellFormedStrictness{SkipSignatureVerification: true, SkipBalanceCheck: true})
	if err != nil {
		t.Fatalf("WellFormed: %v", err)
	}

	next, result := Apply(vtx, state)
	if result.Kind != ResultPartialSuccess {
		t.Fatalf("result kind = %v, want PartialSuccess", result.Kind)
	}
	if len(result.Partial) != 1 || result.Partial[0].Segment != 1 || result.Partial[0].Succeeded {
		t.Fatalf("unexpected partial outcome list: %+v", result.Partial)
	}
	if next.UTXO.Len() != 1 {
		t.Fatalf("guaranteed segment's output should be committed, got utxo set len %d", next.UTXO.Len())
	}
}

func TestApplyRejectsDoubleSpendWithinSameTransaction(t *testing.T) {
	state := NewLedgerState(LedgerParameters{})
	var n Digest
	n[0] = 42
	intent := &Intent{
		Segment:                   GuaranteedSegment,
		GuaranteedUnshieldedOffer: &UnshieldedOffer{},
	}
	tx := &Transaction{
		Intents:         map[SegmentID]*Intent{0: intent},
		GuaranteedCoins: &ShieldedOffer{Inputs: []ShieldedInput{{Nullifier: n}, {Nullifier: n}}},
	}
	_, err := WellFormed(tx, TransactionContext{State: state}, WellFormedStrictness{SkipSignatureVerification: true, SkipProofVerification: true})
	if err == nil {
		t.Fatal("expected rejection for a transaction that spends the same nullifier twice")
	}
}

func TestWellFormedRejectsEmptyIntent(t *testing.T) {
	state := NewLedgerState(LedgerParameters{})
	tx := &Transaction{Intents: map[SegmentID]*Intent{0: {Segment: 0}}}
	_, err := WellFormed(tx, TransactionContext{State: state}, WellFormedStrictness{})
	if err == nil {
		t.Fatal("expected rejection of an intent with no offers or actions")
	}
}

func TestWellFormedRejectsNoIntents(t *testing.T) {
	state := NewLedgerState(LedgerParameters{})
	tx := &Transaction{}
	_, err := WellFormed(tx, TransactionContext{State: state}, WellFormedStrictness{})
	if err == nil {
		t.Fatal("expected rejection of a transaction with zero intents")
	}
}

func TestWellFormedRejectsExpiredTTL(t *testing.T) {
	state := NewLedgerState(LedgerParameters{})
	intent := &Intent{
		Segment:                   GuaranteedSegment,
		GuaranteedUnshieldedOffer: &UnshieldedOffer{},
		TTL:                       100,
	}
	tx := &Transaction{Intents: map[SegmentID]*Intent{0: intent}}
	_, err := WellFormed(tx, TransactionContext{State: state, BlockTime: 200}, WellFormedStrictness{SkipSignatureVerification: true})
	if err == nil {
		t.Fatal("expected rejection of a transaction whose intent ttl has passed")
	}
}

func TestStateRootReflectsZswapAppends(t *testing.T) {
	state := NewLedgerState(LedgerParameters{})
	before := StateRoot(state)
	var c Digest
	c[0] = 9
	state.Zswap.ApplyOutput(c)
	after := StateRoot(state)
	if before == after {
		t.Fatal("state root should change after a shielded output is committed")
	}
}
