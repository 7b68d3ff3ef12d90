package store

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vigil.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestSchemaVersion(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	tables := []string{"schema_versions", "liveness_records", "events"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestEventsConstraints(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		INSERT INTO events (id, kind, identities, created_at)
		VALUES ('a', 'liveness_refreshed', '[]', 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO events (id, kind, identities, created_at)
		VALUES ('b', 'invalid', '[]', 1000)
	`)
	if err == nil {
		t.Error("expected error for invalid kind, got nil")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion after re-migrate = %d, want %d", v, len(migrations))
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO liveness_records (identity, last_active, updated_at) VALUES (?, 5, 5)`,
		"0x0000000000000000000000000000000000000001"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	n, err := db.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if n != 1 {
		t.Errorf("CountRecords = %d, want 1", n)
	}
}

func TestMigrationRescalesLastActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	// A row written before last_active moved to nanoseconds.
	if _, err := db.Exec(`INSERT INTO liveness_records (identity, last_active, updated_at) VALUES (?, 1700000000123, 0)`,
		alice.Hex()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM schema_versions WHERE version = 3`); err != nil {
		t.Fatalf("unapply migration: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	want := time.UnixMilli(1_700_000_000_123)
	if got := lastActive(t, db, alice); !got.Equal(want) {
		t.Errorf("LastActive = %v, want %v", got, want)
	}
}
