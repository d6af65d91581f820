package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/midnight-ntwrk/ledger-indexer-core/indexer/replica"
	"github.com/midnight-ntwrk/ledger-indexer-core/ledger"
)

// SQLiteStore is the standalone-deployment persistence backend: a single
// file, one writer at a time, watermark and UTXO projection tables kept
// in the same database so SaveFacts commits both atomically.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver: single writer, avoid SQLITE_BUSY under concurrent access
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS watermark (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	height INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS utxos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	height INTEGER NOT NULL,
	owner BLOB NOT NULL,
	token_type BLOB NOT NULL,
	intent_hash BLOB NOT NULL,
	output_index INTEGER NOT NULL,
	value_hi INTEGER NOT NULL,
	value_lo INTEGER NOT NULL,
	spent INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_utxos_owner ON utxos(owner, id);
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	height INTEGER NOT NULL,
	tx_index INTEGER NOT NULL,
	kind TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	partial TEXT NOT NULL DEFAULT '[]'
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_height_index ON transactions(height, tx_index);
CREATE TABLE IF NOT EXISTS blocks (
	height INTEGER PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	state_root BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS contract_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	height INTEGER NOT NULL,
	tx_index INTEGER NOT NULL,
	address BLOB NOT NULL,
	kind TEXT NOT NULL,
	entry_point TEXT NOT NULL DEFAULT '',
	chain_state BLOB NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_contract_actions_address ON contract_actions(address, id);
`)
	return err
}

func contractActionKindString(k ledger.ContractActionKind) string {
	switch k {
	case ledger.ActionDeploy:
		return "deploy"
	case ledger.ActionCall:
		return "call"
	default:
		return "maintain"
	}
}

func resultKindString(k ledger.ResultKind) string {
	switch k {
	case ledger.ResultSuccess:
		return "success"
	case ledger.ResultPartialSuccess:
		return "partial_success"
	default:
		return "failure"
	}
}

func (s *SQLiteStore) SaveFacts(ctx context.Context, height uint64, timestamp int64, stateRoot [32]byte, facts []replica.Fact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO blocks (height, timestamp, state_root) VALUES (?, ?, ?)
ON CONFLICT(height) DO UPDATE SET timestamp = excluded.timestamp, state_root = excluded.state_root`,
		height, timestamp, stateRoot[:]); err != nil {
		return err
	}

	for _, f := range facts {
		switch f.Kind {
		case replica.FactContractAction:
			a, ok := f.Data.(replica.ContractActionFact)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO contract_actions (height, tx_index, address, kind, entry_point, chain_state)
VALUES (?, ?, ?, ?, ?, ?)`,
				f.Height, f.TxIndex, a.Address[:], contractActionKindString(a.Kind), a.EntryPoint, a.ChainState); err != nil {
				return err
			}
		case replica.FactUTXOCreated:
			u, ok := f.Data.(replica.UTXOFact)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO utxos (height, owner, token_type, intent_hash, output_index, value_hi, value_lo, spent)
VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
				f.Height, u.Owner[:], u.TokenType[:], u.IntentHash[:], u.OutputIndex, u.ValueHi, u.ValueLo); err != nil {
				return err
			}
		case replica.FactUTXOSpent:
			u, ok := f.Data.(replica.UTXOFact)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
UPDATE utxos SET spent = 1
WHERE owner = ? AND token_type = ? AND intent_hash = ? AND output_index = ? AND spent = 0`,
				u.Owner[:], u.TokenType[:], u.IntentHash[:], u.OutputIndex); err != nil {
				return err
			}
		case replica.FactTransactionResult:
			res, ok := f.Data.(ledger.TransactionResult)
			if !ok {
				continue
			}
			partial := make([]PartialSegment, len(res.Partial))
			for i, p := range res.Partial {
				partial[i] = PartialSegment{Segment: uint16(p.Segment), Succeeded: p.Succeeded}
			}
			partialJSON, err := json.Marshal(partial)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO transactions (height, tx_index, kind, reason, partial)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(height, tx_index) DO UPDATE SET kind = excluded.kind, reason = excluded.reason, partial = excluded.partial`,
				f.Height, f.TxIndex, resultKindString(res.Kind), res.Reason, string(partialJSON)); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO watermark (id, height) VALUES (0, ?)
ON CONFLICT(id) DO UPDATE SET height = excluded.height`, height); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Watermark(ctx context.Context) (uint64, error) {
	var h uint64
	err := s.db.QueryRowContext(ctx, `SELECT height FROM watermark WHERE id = 0`).Scan(&h)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return h, err
}

func (s *SQLiteStore) UTXOsByOwner(ctx context.Context, owner [32]byte, cursor int64, limit int) ([]UTXORecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, height, owner, token_type, intent_hash, output_index, value_hi, value_lo, spent
FROM utxos WHERE owner = ? AND id >= ? ORDER BY id LIMIT ?`, owner[:], cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UTXORecord
	for rows.Next() {
		var rec UTXORecord
		var ownerB, tokenB, intentB []byte
		var spent int
		if err := rows.Scan(&rec.ID, &rec.Height, &ownerB, &tokenB, &intentB, &rec.OutputIndex, &rec.ValueHi, &rec.ValueLo, &spent); err != nil {
			return nil, err
		}
		copy(rec.Owner[:], ownerB)
		copy(rec.TokenType[:], tokenB)
		copy(rec.IntentHash[:], intentB)
		rec.Spent = spent != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) TransactionByHeightAndIndex(ctx context.Context, height uint64, txIndex int) (TransactionRecord, error) {
	var rec TransactionRecord
	var partialJSON string
	err := s.db.QueryRowContext(ctx, `
SELECT id, height, tx_index, kind, reason, partial FROM transactions
WHERE height = ? AND tx_index = ?`, height, txIndex).
		Scan(&rec.ID, &rec.Height, &rec.TxIndex, &rec.Kind, &rec.Reason, &partialJSON)
	if err != nil {
		return TransactionRecord{}, err
	}
	if err := json.Unmarshal([]byte(partialJSON), &rec.Partial); err != nil {
		return TransactionRecord{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) BlockByHeight(ctx context.Context, height uint64) (BlockRecord, error) {
	var rec BlockRecord
	var rootB []byte
	err := s.db.QueryRowContext(ctx, `
SELECT height, timestamp, state_root FROM blocks WHERE height = ?`, height).
		Scan(&rec.Height, &rec.Timestamp, &rootB)
	if err != nil {
		return BlockRecord{}, err
	}
	copy(rec.StateRoot[:], rootB)
	return rec, nil
}

func (s *SQLiteStore) ContractActionsByAddress(ctx context.Context, addr [32]byte) ([]ContractActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, height, tx_index, address, kind, entry_point, chain_state
FROM contract_actions WHERE address = ? ORDER BY id`, addr[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ContractActionRecord
	for rows.Next() {
		rec, err := scanContractAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LatestContractActionByAddress(ctx context.Context, addr [32]byte) (ContractActionRecord, error) {
	rows := s.db.QueryRowContext(ctx, `
SELECT id, height, tx_index, address, kind, entry_point, chain_state
FROM contract_actions WHERE address = ? ORDER BY id DESC LIMIT 1`, addr[:])
	return scanContractAction(rows)
}

// rowScanner is satisfied by both *sql.Rows (ContractActionsByAddress'
// multi-row walk) and *sql.Row (LatestContractActionByAddress' single
// lookup), so both callers share one column-scanning routine.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContractAction(row rowScanner) (ContractActionRecord, error) {
	var rec ContractActionRecord
	var addrB []byte
	if err := row.Scan(&rec.ID, &rec.Height, &rec.TxIndex, &addrB, &rec.Kind, &rec.EntryPoint, &rec.ChainState); err != nil {
		return ContractActionRecord{}, err
	}
	copy(rec.Address[:], addrB)
	return rec, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
