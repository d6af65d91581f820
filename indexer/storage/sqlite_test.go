package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/replica"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger"
)

func TestSaveFactsPersistsWatermarkAndUTXOs(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "indexer.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	owner := [32]byte{1}
	facts := []replica.Fact{
		{Height: 5, Kind: replica.FactUTXOCreated, Data: replica.UTXOFact{Owner: owner, ValueLo: 10, OutputIndex: 0}},
	}
	if err := store.SaveFacts(ctx, 5, 1000, [32]byte{9}, facts); err != nil {
		t.Fatalf("SaveFacts: %v", err)
	}

	wm, err := store.Watermark(ctx)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if wm != 5 {
		t.Fatalf("Watermark = %d, want 5", wm)
	}

	recs, err := store.UTXOsByOwner(ctx, owner, 0, 10)
	if err != nil {
		t.Fatalf("UTXOsByOwner: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 unspent output, got %d", len(recs))
	}
	if recs[0].Spent {
		t.Fatal("newly created output should not be marked spent")
	}
	if recs[0].ValueLo != 10 {
		t.Fatalf("ValueLo = %d, want 10", recs[0].ValueLo)
	}
}

func TestSaveFactsMarksSpentUTXO(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "indexer.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	owner := [32]byte{2}
	u := replica.UTXOFact{Owner: owner, ValueLo: 50, OutputIndex: 1}
	if err := store.SaveFacts(ctx, 1, 100, [32]byte{}, []replica.Fact{{Height: 1, Kind: replica.FactUTXOCreated, Data: u}}); err != nil {
		t.Fatalf("SaveFacts create: %v", err)
	}
	if err := store.SaveFacts(ctx, 2, 200, [32]byte{}, []replica.Fact{{Height: 2, Kind: replica.FactUTXOSpent, Data: u}}); err != nil {
		t.Fatalf("SaveFacts spend: %v", err)
	}

	recs, err := store.UTXOsByOwner(ctx, owner, 0, 10)
	if err != nil {
		t.Fatalf("UTXOsByOwner: %v", err)
	}
	if len(recs) != 1 || !recs[0].Spent {
		t.Fatalf("expected the matching output to be marked spent, got %+v", recs)
	}
}

func TestSaveFactsPersistsTransactionResult(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "indexer.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	result := ledger.TransactionResult{
		Kind:    ledger.ResultPartialSuccess,
		Partial: []ledger.SegmentOutcome{{Segment: 1, Succeeded: false}},
	}
	facts := []replica.Fact{{Height: 3, TxIndex: 2, Kind: replica.FactTransactionResult, Data: result}}
	if err := store.SaveFacts(ctx, 3, 300, [32]byte{}, facts); err != nil {
		t.Fatalf("SaveFacts: %v", err)
	}

	rec, err := store.TransactionByHeightAndIndex(ctx, 3, 2)
	if err != nil {
		t.Fatalf("TransactionByHeightAndIndex: %v", err)
	}
	if rec.Kind != "partial_success" {
		t.Fatalf("Kind = %q, want partial_success", rec.Kind)
	}
	if len(rec.Partial) != 1 || rec.Partial[0].Segment != 1 || rec.Partial[0].Succeeded {
		t.Fatalf("unexpected Partial: %+v", rec.Partial)
	}
}

func TestSaveFactsPersistsBlockHeader(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "indexer.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	root := [32]byte{7}
	if err := store.SaveFacts(ctx, 9, 12345, root, nil); err != nil {
		t.Fatalf("SaveFacts: %v", err)
	}

	rec, err := store.BlockByHeight(ctx, 9)
	if err != nil {
		t.Fatalf("BlockByHeight: %v", err)
	}
	if rec.Timestamp != 12345 || rec.StateRoot != root {
		t.Fatalf("unexpected block record: %+v", rec)
	}
}

func TestSaveFactsPersistsContractActionsAndLatestLookup(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "indexer.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	addr := [32]byte{3}
	deploy := replica.ContractActionFact{Address: addr, Kind: ledger.ActionDeploy, ChainState: []byte("genesis")}
	call := replica.ContractActionFact{Address: addr, Kind: ledger.ActionCall, EntryPoint: "increment", ChainState: []byte("genesis+1")}

	facts := []replica.Fact{
		{Height: 1, TxIndex: 0, Kind: replica.FactContractAction, Data: deploy},
	}
	if err := store.SaveFacts(ctx, 1, 100, [32]byte{}, facts); err != nil {
		t.Fatalf("SaveFacts (deploy): %v", err)
	}
	if err := store.SaveFacts(ctx, 2, 200, [32]byte{}, []replica.Fact{{Height: 2, TxIndex: 0, Kind: replica.FactContractAction, Data: call}}); err != nil {
		t.Fatalf("SaveFacts (call): %v", err)
	}

	all, err := store.ContractActionsByAddress(ctx, addr)
	if err != nil {
		t.Fatalf("ContractActionsByAddress: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 contract action rows, got %d", len(all))
	}
	if all[0].Kind != "deploy" || all[1].Kind != "call" {
		t.Fatalf("unexpected action ordering: %+v", all)
	}

	latest, err := store.LatestContractActionByAddress(ctx, addr)
	if err != nil {
		t.Fatalf("LatestContractActionByAddress: %v", err)
	}
	if latest.Kind != "call" || string(latest.ChainState) != "genesis+1" {
		t.Fatalf("unexpected latest contract action: %+v", latest)
	}
}

func TestWatermarkDefaultsToZero(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "indexer.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer store.Close()

	wm, err := store.Watermark(context.Background())
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if wm != 0 {
		t.Fatalf("Watermark on fresh store = %d, want 0", wm)
	}
}
