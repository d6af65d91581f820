package ledger

import (
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/contract"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/dust"
)

// EncodeTransaction produces the tagged, versioned wire encoding of a
// Standard transaction. Decoding is the strict inverse: any length,
// tag, or version mismatch fails with a deserialization-kind error
// rather than silently truncating.
func EncodeTransaction(tx *Transaction) []byte {
	w := NewWriter()
	w.WriteTag(TagTransaction)
	w.WriteVersion(CurrentProtocolVersion)
	encodeShieldedOffer(w, tx.GuaranteedCoins)

	w.WriteU32(uint32(len(tx.Intents)))
	segments := sortedSegments(tx.Intents)
	for _, seg := range segments {
		encodeIntent(w, tx.Intents[seg])
	}

	w.WriteU32(uint32(len(tx.FallibleCoins)))
	for _, seg := range segments {
		offer, ok := tx.FallibleCoins[seg]
		if !ok {
			continue
		}
		w.WriteU16(uint16(seg))
		encodeShieldedOffer(w, offer)
	}
	return w.Bytes()
}

// DecodeTransaction is the inverse of EncodeTransaction.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	r := NewReader(raw)
	if err := r.ExpectTag(TagTransaction); err != nil {
		return nil, err
	}
	if err := r.ExpectVersion(CurrentProtocolVersion); err != nil {
		return nil, err
	}

	guaranteed, err := decodeShieldedOffer(r)
	if err != nil {
		return nil, err
	}

	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	intents := make(map[SegmentID]*Intent, n)
	for i := uint32(0); i < n; i++ {
		intent, err := decodeIntent(r)
		if err != nil {
			return nil, err
		}
		intents[intent.Segment] = intent
	}

	fn, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	fallible := make(map[SegmentID]*ShieldedOffer, fn)
	for i := uint32(0); i < fn; i++ {
		seg, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		offer, err := decodeShieldedOffer(r)
		if err != nil {
			return nil, err
		}
		fallible[SegmentID(seg)] = offer
	}

	return &Transaction{Intents: intents, GuaranteedCoins: guaranteed, FallibleCoins: fallible}, nil
}

// EncodeSystemTransaction produces the tagged, versioned wire encoding
// of a privileged system transaction.
func EncodeSystemTransaction(sysTx *SystemTransaction) []byte {
	w := NewWriter()
	w.WriteTag(TagSystemTransaction)
	w.WriteVersion(CurrentProtocolVersion)
	w.WriteU8(byte(sysTx.Kind))
	w.WriteDigest(sysTx.Recipient)
	w.WriteDigest(sysTx.TokenType)
	w.WriteU128(sysTx.Amount.Hi, sysTx.Amount.Lo)
	w.WriteDigest(sysTx.Commitment)
	return w.Bytes()
}

// DecodeSystemTransaction is the inverse of EncodeSystemTransaction.
func DecodeSystemTransaction(raw []byte) (*SystemTransaction, error) {
	r := NewReader(raw)
	if err := r.ExpectTag(TagSystemTransaction); err != nil {
		return nil, err
	}
	if err := r.ExpectVersion(CurrentProtocolVersion); err != nil {
		return nil, err
	}
	kind, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	recipient, err := r.ReadDigest()
	if err != nil {
		return nil, err
	}
	token, err := r.ReadDigest()
	if err != nil {
		return nil, err
	}
	hi, lo, err := r.ReadU128()
	if err != nil {
		return nil, err
	}
	commitment, err := r.ReadDigest()
	if err != nil {
		return nil, err
	}
	return &SystemTransaction{
		Kind:       SystemTransactionKind(kind),
		Recipient:  recipient,
		TokenType:  token,
		Amount:     U128{Hi: hi, Lo: lo},
		Commitment: commitment,
	}, nil
}

func sortedSegments(intents map[SegmentID]*Intent) []SegmentID {
	out := make([]SegmentID, 0, len(intents))
	for seg := range intents {
		out = append(out, seg)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func encodeShieldedOffer(w *Writer, offer *ShieldedOffer) {
	w.WriteBool(offer != nil)
	if offer == nil {
		return
	}
	w.WriteU32(uint32(len(offer.Inputs)))
	for _, in := range offer.Inputs {
		w.WriteDigest(in.Nullifier)
		w.WriteDigest(in.Anchor)
	}
	w.WriteU32(uint32(len(offer.Outputs)))
	for _, out := range offer.Outputs {
		w.WriteDigest(out.Commitment)
		w.WriteBytes(out.Ciphertext)
	}
	w.WriteBytes(offer.DeltaCommitment)
}

func decodeShieldedOffer(r *Reader) (*ShieldedOffer, error) {
	present, err := r.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	offer := &ShieldedOffer{}
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		nullifier, err := r.ReadDigest()
		if err != nil {
			return nil, err
		}
		anchor, err := r.ReadDigest()
		if err != nil {
			return nil, err
		}
		offer.Inputs = append(offer.Inputs, ShieldedInput{Nullifier: nullifier, Anchor: anchor})
	}
	on, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < on; i++ {
		commitment, err := r.ReadDigest()
		if err != nil {
			return nil, err
		}
		ciphertext, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		offer.Outputs = append(offer.Outputs, ShieldedOutput{Commitment: commitment, Ciphertext: ciphertext})
	}
	delta, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	offer.DeltaCommitment = delta
	return offer, nil
}

func encodeIntent(w *Writer, intent *Intent) {
	w.WriteU16(uint16(intent.Segment))
	w.WriteU64(uint64(intent.TTL))
	w.WriteBytes(intent.BindingCommitment)
	w.WriteBytes(intent.Signature)
	w.WriteBytes(intent.SignerKey)
	encodeUnshieldedOffer(w, intent.GuaranteedUnshieldedOffer)
	encodeUnshieldedOffer(w, intent.FallibleUnshieldedOffer)
	w.WriteU32(uint32(len(intent.Actions)))
	for _, a := range intent.Actions {
		encodeContractAction(w, a)
	}
	w.WriteU32(uint32(len(intent.DustActions)))
	for _, a := range intent.DustActions {
		encodeDustAction(w, a)
	}
}

func decodeIntent(r *Reader) (*Intent, error) {
	seg, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	ttl, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	binding, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	sig, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	signer, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	guaranteed, err := decodeUnshieldedOffer(r)
	if err != nil {
		return nil, err
	}
	fallible, err := decodeUnshieldedOffer(r)
	if err != nil {
		return nil, err
	}
	an, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	var actions []ContractAction
	for i := uint32(0); i < an; i++ {
		a, err := decodeContractAction(r)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	dn, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	var dustActions []DustAction
	for i := uint32(0); i < dn; i++ {
		a, err := decodeDustAction(r)
		if err != nil {
			return nil, err
		}
		dustActions = append(dustActions, a)
	}
	return &Intent{
		Segment:                   SegmentID(seg),
		TTL:                       int64(ttl),
		BindingCommitment:         binding,
		Signature:                 Signature(sig),
		SignerKey:                 PublicKey(signer),
		GuaranteedUnshieldedOffer: guaranteed,
		FallibleUnshieldedOffer:   fallible,
		Actions:                   actions,
		DustActions:               dustActions,
	}, nil
}

func encodeContractAction(w *Writer, a ContractAction) {
	w.WriteU8(byte(a.Kind))
	w.WriteDigest(a.Address)
	w.WriteBytes(a.InitialState.Data)
	w.WriteU128(a.InitialState.Charged.Hi, a.InitialState.Charged.Lo)
	w.WriteBytes([]byte(a.EntryPoint))
	encodeTranscript(w, a.Transcript)
	w.WriteU32(uint32(len(a.MaintenanceUpdates)))
	for _, u := range a.MaintenanceUpdates {
		encodeMaintenanceUpdate(w, u)
	}
}

func decodeContractAction(r *Reader) (ContractAction, error) {
	kind, err := r.ReadU8()
	if err != nil {
		return ContractAction{}, err
	}
	addr, err := r.ReadDigest()
	if err != nil {
		return ContractAction{}, err
	}
	data, err := r.ReadBytes()
	if err != nil {
		return ContractAction{}, err
	}
	hi, lo, err := r.ReadU128()
	if err != nil {
		return ContractAction{}, err
	}
	entryPoint, err := r.ReadBytes()
	if err != nil {
		return ContractAction{}, err
	}
	transcript, err := decodeTranscript(r)
	if err != nil {
		return ContractAction{}, err
	}
	un, err := r.ReadU32()
	if err != nil {
		return ContractAction{}, err
	}
	var updates []MaintenanceUpdate
	for i := uint32(0); i < un; i++ {
		u, err := decodeMaintenanceUpdate(r)
		if err != nil {
			return ContractAction{}, err
		}
		updates = append(updates, u)
	}
	return ContractAction{
		Kind:               ContractActionKind(kind),
		Address:            addr,
		InitialState:       ChargedState{Data: data, Charged: U128{Hi: hi, Lo: lo}},
		EntryPoint:         string(entryPoint),
		Transcript:         transcript,
		MaintenanceUpdates: updates,
	}, nil
}

func encodeTranscript(w *Writer, t Transcript) {
	w.WriteU32(uint32(len(t.Operations)))
	for _, op := range t.Operations {
		w.WriteU8(byte(op.Phase))
		w.WriteBytes([]byte(op.Name))
		w.WriteBytes(op.PublicInputs)
		w.WriteBytes(op.StateDelta)
	}
	w.WriteBytes(t.Proof)
}

func decodeTranscript(r *Reader) (Transcript, error) {
	n, err := r.ReadU32()
	if err != nil {
		return Transcript{}, err
	}
	var ops []contract.Operation
	for i := uint32(0); i < n; i++ {
		phase, err := r.ReadU8()
		if err != nil {
			return Transcript{}, err
		}
		name, err := r.ReadBytes()
		if err != nil {
			return Transcript{}, err
		}
		publicInputs, err := r.ReadBytes()
		if err != nil {
			return Transcript{}, err
		}
		stateDelta, err := r.ReadBytes()
		if err != nil {
			return Transcript{}, err
		}
		ops = append(ops, contract.Operation{
			Phase:        contract.Phase(phase),
			Name:         string(name),
			PublicInputs: publicInputs,
			StateDelta:   stateDelta,
		})
	}
	proof, err := r.ReadBytes()
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{Operations: ops, Proof: proof}, nil
}

func encodeMaintenanceUpdate(w *Writer, u MaintenanceUpdate) {
	w.WriteBytes([]byte(u.EntryPoint))
	w.WriteBytes(u.VerifierKey)
	w.WriteBool(u.NewAuthority != nil)
	if u.NewAuthority == nil {
		return
	}
	w.WriteU32(uint32(len(u.NewAuthority.Keys)))
	for _, k := range u.NewAuthority.Keys {
		w.WriteBytes(k)
	}
	w.WriteU32(u.NewAuthority.Threshold)
	w.WriteU64(u.NewAuthority.Counter)
}

func decodeMaintenanceUpdate(r *Reader) (MaintenanceUpdate, error) {
	entryPoint, err := r.ReadBytes()
	if err != nil {
		return MaintenanceUpdate{}, err
	}
	verifierKey, err := r.ReadBytes()
	if err != nil {
		return MaintenanceUpdate{}, err
	}
	present, err := r.ReadBool()
	if err != nil {
		return MaintenanceUpdate{}, err
	}
	update := MaintenanceUpdate{EntryPoint: string(entryPoint), VerifierKey: verifierKey}
	if !present {
		return update, nil
	}
	kn, err := r.ReadU32()
	if err != nil {
		return MaintenanceUpdate{}, err
	}
	var keys []PublicKey
	for i := uint32(0); i < kn; i++ {
		k, err := r.ReadBytes()
		if err != nil {
			return MaintenanceUpdate{}, err
		}
		keys = append(keys, PublicKey(k))
	}
	threshold, err := r.ReadU32()
	if err != nil {
		return MaintenanceUpdate{}, err
	}
	counter, err := r.ReadU64()
	if err != nil {
		return MaintenanceUpdate{}, err
	}
	update.NewAuthority = &MaintenanceAuthority{Keys: keys, Threshold: threshold, Counter: counter}
	return update, nil
}

func encodeDustAction(w *Writer, a DustAction) {
	w.WriteU8(byte(a.Kind))
	w.WriteDigest(a.Nullifier)
	w.WriteU64(a.Value)
	encodeDustRegistration(w, a.Registration)
}

func decodeDustAction(r *Reader) (DustAction, error) {
	kind, err := r.ReadU8()
	if err != nil {
		return DustAction{}, err
	}
	nullifier, err := r.ReadDigest()
	if err != nil {
		return DustAction{}, err
	}
	value, err := r.ReadU64()
	if err != nil {
		return DustAction{}, err
	}
	reg, err := decodeDustRegistration(r)
	if err != nil {
		return DustAction{}, err
	}
	return DustAction{
		Kind:         dust.ActionKind(kind),
		Nullifier:    nullifier,
		Value:        value,
		Registration: reg,
	}, nil
}

func encodeDustRegistration(w *Writer, reg dust.Registration) {
	w.WriteDigest(reg.CardanoAddress)
	w.WriteDigest(reg.DustAddress)
	w.WriteDigest(reg.Generation.Nonce)
	w.WriteU64(uint64(reg.Generation.StartTime))
	w.WriteU64(reg.Generation.RatePerSec)
	w.WriteU64(uint64(reg.Generation.ExpiresAt))
}

func decodeDustRegistration(r *Reader) (dust.Registration, error) {
	cardanoAddr, err := r.ReadDigest()
	if err != nil {
		return dust.Registration{}, err
	}
	dustAddr, err := r.ReadDigest()
	if err != nil {
		return dust.Registration{}, err
	}
	nonce, err := r.ReadDigest()
	if err != nil {
		return dust.Registration{}, err
	}
	startTime, err := r.ReadU64()
	if err != nil {
		return dust.Registration{}, err
	}
	ratePerSec, err := r.ReadU64()
	if err != nil {
		return dust.Registration{}, err
	}
	expiresAt, err := r.ReadU64()
	if err != nil {
		return dust.Registration{}, err
	}
	return dust.Registration{
		CardanoAddress: cardanoAddr,
		DustAddress:    dustAddr,
		Generation: dust.GenerationInfo{
			Nonce:      nonce,
			StartTime:  int64(startTime),
			RatePerSec: ratePerSec,
			ExpiresAt:  int64(expiresAt),
		},
	}, nil
}

func encodeUnshieldedOffer(w *Writer, offer *UnshieldedOffer) {
	w.WriteBool(offer != nil)
	if offer == nil {
		return
	}
	w.WriteU32(uint32(len(offer.Inputs)))
	for _, in := range offer.Inputs {
		w.WriteDigest(in.IntentHash)
		w.WriteU32(in.OutputIndex)
	}
	w.WriteU32(uint32(len(offer.Outputs)))
	for _, out := range offer.Outputs {
		w.WriteDigest(out.Owner)
		w.WriteDigest(out.TokenType)
		w.WriteU128(out.Value.Hi, out.Value.Lo)
	}
	w.WriteU32(uint32(len(offer.Mints)))
	for token, v := range offer.Mints {
		w.WriteDigest(token)
		w.WriteU128(v.Hi, v.Lo)
	}
	w.WriteU32(uint32(len(offer.Fees)))
	for token, v := range offer.Fees {
		w.WriteDigest(token)
		w.WriteU128(v.Hi, v.Lo)
	}
}

func decodeUnshieldedOffer(r *Reader) (*UnshieldedOffer, error) {
	present, err := r.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	offer := &UnshieldedOffer{Mints: map[TokenType]U128{}, Fees: map[TokenType]U128{}}
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		hash, err := r.ReadDigest()
		if err != nil {
			return nil, err
		}
		idx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		offer.Inputs = append(offer.Inputs, UnshieldedInput{IntentHash: hash, OutputIndex: idx})
	}
	on, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < on; i++ {
		owner, err := r.ReadDigest()
		if err != nil {
			return nil, err
		}
		token, err := r.ReadDigest()
		if err != nil {
			return nil, err
		}
		hi, lo, err := r.ReadU128()
		if err != nil {
			return nil, err
		}
		offer.Outputs = append(offer.Outputs, UnshieldedOutput{Owner: owner, TokenType: token, Value: U128{Hi: hi, Lo: lo}})
	}
	mn, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < mn; i++ {
		token, err := r.ReadDigest()
		if err != nil {
			return nil, err
		}
		hi, lo, err := r.ReadU128()
		if err != nil {
			return nil, err
		}
		offer.Mints[token] = U128{Hi: hi, Lo: lo}
	}
	fn, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < fn; i++ {
		token, err := r.ReadDigest()
		if err != nil {
			return nil, err
		}
		hi, lo, err := r.ReadU128()
		if err != nil {
			return nil, err
		}
		offer.Fees[token] = U128{Hi: hi, Lo: lo}
	}
	return offer, nil
}
