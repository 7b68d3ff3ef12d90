package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/vigil/internal/liveness"
)

// LastActive returns the last-active time of id, or the zero time when no
// record exists.
func (db *DB) LastActive(id common.Address) (time.Time, error) {
	db.recordMu.Lock()
	defer db.recordMu.Unlock()

	if ns, ok := db.lastActive.Get(id); ok {
		return fromNanos(ns), nil
	}

	var ns int64
	err := db.QueryRow(`SELECT last_active FROM liveness_records WHERE identity = ?`, id.Hex()).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		ns = 0
	} else if err != nil {
		return time.Time{}, fmt.Errorf("get last active: %w", err)
	}

	db.lastActive.Add(id, ns)
	return fromNanos(ns), nil
}

// Record applies b in a single transaction. Touched identities never move
// backwards; forgotten identities are deleted.
func (db *DB) Record(b liveness.Batch) error {
	db.recordMu.Lock()
	defer db.recordMu.Unlock()

	now := time.Now().UnixMilli()
	at := toNanos(b.At)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	for _, id := range b.Touch {
		if _, err := tx.Exec(`
			INSERT INTO liveness_records (identity, last_active, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(identity) DO UPDATE SET
				last_active = MAX(last_active, excluded.last_active),
				updated_at  = excluded.updated_at
		`, id.Hex(), at, now); err != nil {
			return fmt.Errorf("touch %s: %w", id.Hex(), err)
		}
	}
	for _, id := range b.Forget {
		if _, err := tx.Exec(`DELETE FROM liveness_records WHERE identity = ?`, id.Hex()); err != nil {
			return fmt.Errorf("forget %s: %w", id.Hex(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}

	for _, id := range b.Touch {
		db.lastActive.Remove(id)
	}
	for _, id := range b.Forget {
		db.lastActive.Remove(id)
	}
	return nil
}

// CountRecords returns the number of identities with a liveness record.
func (db *DB) CountRecords() (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM liveness_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// last_active is stored in nanoseconds so a record reads back exactly as
// written; the liveness boundary is compared at full clock precision.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
