package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/lazypower/vigil/internal/liveness"
)

// DefaultEventLimit is used when RecentEvents is asked for a non-positive
// number of events.
const DefaultEventLimit = 50

// RecordEvent appends e to the audit log.
func (db *DB) RecordEvent(e liveness.Event) error {
	ids, err := json.Marshal(e.Identities)
	if err != nil {
		return fmt.Errorf("encode identities: %w", err)
	}

	var txHash sql.NullString
	if e.TxHash != (common.Hash{}) {
		txHash = sql.NullString{String: e.TxHash.Hex(), Valid: true}
	}

	_, err = db.Exec(`
		INSERT INTO events (id, kind, tx_hash, identities, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID.String(), string(e.Kind), txHash, string(ids), e.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// RecentEvents returns the most recent events, newest first.
func (db *DB) RecentEvents(limit int) ([]liveness.Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	rows, err := db.Query(`
		SELECT id, kind, tx_hash, identities, created_at
		FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}
	defer rows.Close()

	var events []liveness.Event
	for rows.Next() {
		var (
			id, kind, ids string
			txHash        sql.NullString
			created       int64
		)
		if err := rows.Scan(&id, &kind, &txHash, &ids, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e := liveness.Event{Kind: liveness.EventKind(kind), At: time.UnixMilli(created)}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse event id %q: %w", id, err)
		}
		if txHash.Valid {
			e.TxHash = common.HexToHash(txHash.String)
		}
		if err := json.Unmarshal([]byte(ids), &e.Identities); err != nil {
			return nil, fmt.Errorf("decode identities: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
