package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "liveness_records: last-active time per identity",
		SQL: `
CREATE TABLE liveness_records (
    identity     TEXT PRIMARY KEY CHECK (length(identity) = 42),
    last_active  INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "events: audit log of liveness writes",
		SQL: `
CREATE TABLE events (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL CHECK (kind IN ('liveness_refreshed', 'participants_recorded', 'owner_added', 'owner_forgotten')),
    tx_hash      TEXT,
    identities   TEXT NOT NULL,
    created_at   INTEGER NOT NULL
);

CREATE INDEX idx_events_created ON events(created_at DESC);
CREATE INDEX idx_events_kind    ON events(kind);
`,
	},
	{
		Version:     3,
		Description: "liveness_records: last_active in nanoseconds",
		SQL: `
UPDATE liveness_records SET last_active = last_active * 1000000;
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
