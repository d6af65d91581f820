package ledger

import (
	"sort"

	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/contract"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/crypto"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger/utxo"
)

// StateRoot computes a content-addressed digest over the zswap tree root,
// the UTXO set, the contract map, unclaimed block rewards, block fullness
// and the treasury. The zswap nullifier set, the dust state, the
// replay-protection commitments and the ledger parameters are not
// included. It is used by the indexer replica to cross-check its
// re-derived state against the node's own root without re-implementing
// the node's consensus rules. Enumeration order within each sub-engine is
// sorted so the root is reproducible regardless of map iteration order.
func StateRoot(state *LedgerState) Digest {
	w := NewWriter()
	w.WriteDigest(state.Zswap.Root())
	writeUTXORoot(w, state.UTXO)
	writeContractsRoot(w, state.Contracts)
	w.WriteU64(state.UnclaimedBlockRewards.Hi)
	w.WriteU64(state.UnclaimedBlockRewards.Lo)
	w.WriteU64(state.Fullness.BytesUsed)
	w.WriteU16(state.Fullness.SegmentsUsed)
	writeTreasuryRoot(w, state.Treasury)
	return crypto.Hash("midnight/ledger/state-root", w.Bytes())
}

func writeTreasuryRoot(w *Writer, treasury map[TokenType]U128) {
	tokens := make([]TokenType, 0, len(treasury))
	for t := range treasury {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return lessDigest(tokens[i], tokens[j]) })
	w.WriteU32(uint32(len(tokens)))
	for _, t := range tokens {
		bal := treasury[t]
		w.WriteDigest(t)
		w.WriteU128(bal.Hi, bal.Lo)
	}
}

func writeUTXORoot(w *Writer, set *utxo.Set) {
	keys := set.Keys()
	sort.Slice(keys, func(i, j int) bool { return utxoKeyLess(keys[i], keys[j]) })
	w.WriteU32(uint32(len(keys)))
	for _, k := range keys {
		w.WriteDigest(k.Owner)
		w.WriteDigest(k.TokenType)
		w.WriteDigest(k.IntentHash)
		w.WriteU32(k.OutputIndex)
		w.WriteU128(k.Value.Hi, k.Value.Lo)
	}
}

func utxoKeyLess(a, b utxo.Key) bool {
	if a.Owner != b.Owner {
		return lessDigest(a.Owner, b.Owner)
	}
	if a.TokenType != b.TokenType {
		return lessDigest(a.TokenType, b.TokenType)
	}
	if a.IntentHash != b.IntentHash {
		return lessDigest(a.IntentHash, b.IntentHash)
	}
	return a.OutputIndex < b.OutputIndex
}

func lessDigest(a, b Digest) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func writeContractsRoot(w *Writer, contracts *contract.Map) {
	addrs := contracts.Addresses()
	sort.Slice(addrs, func(i, j int) bool { return lessDigest(addrs[i], addrs[j]) })
	w.WriteU32(uint32(len(addrs)))
	for _, addr := range addrs {
		c, _ := contracts.Get(addr)
		w.WriteDigest(addr)
		w.WriteBytes(c.State.Data)
		w.WriteU64(c.State.Charged)
	}
}
