package ledger

import (
	"context"
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
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.RecordPanelAction("state_toggle", "staff-1"); err != nil {
		t.Fatalf("RecordPanelAction: %v", err)
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
	if v != 2 {
		t.Errorf("SchemaVersion = %d, want 2", v)
	}
}

func TestTablesExist(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	tables := []string{"goose_db_version", "outreach_attempts", "panel_actions"}
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

func TestOutreachDecisionConstraint(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.RecordOutreach("c1", "u1", "retention", true, "ok"); err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}
	if err := db.RecordOutreach("c1", "u2", "none", false, ""); err == nil {
		t.Error("expected error for decision none, got nil")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	// Running migrate again should be a no-op
	if err := db.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion after re-migrate = %d, want 2", v)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	var fk int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.RecordOutreach("c1", "u1", "retention", true, "sent"); err != nil {
		t.Fatalf("RecordOutreach: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	got, err := db.ListOutreach("u1", 10)
	if err != nil {
		t.Fatalf("ListOutreach: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d attempts after reopen, want 1", len(got))
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db, err := OpenMemory(WithRetention(24*time.Hour), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.RecordOutreach("old", "u1", "retention", true, ""); err != nil {
		t.Fatalf("RecordOutreach: %v", err)
	}
	if err := db.RecordPanelAction("state_toggle", "staff-1"); err != nil {
		t.Fatalf("RecordPanelAction: %v", err)
	}

	now = now.Add(48 * time.Hour)
	if err := db.RecordOutreach("new", "u2", "encouragement", false, ""); err != nil {
		t.Fatalf("RecordOutreach: %v", err)
	}

	n, err := db.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d rows, want 2", n)
	}
	got, _ := db.ListOutreach("", 10)
	if len(got) != 1 || got[0].CycleID != "new" {
		t.Errorf("remaining = %+v, want only cycle new", got)
	}
}

func TestPruneDisabled(t *testing.T) {
	db, err := OpenMemory(WithRetention(0), WithClock(func() time.Time { return time.Unix(0, 0) }))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.RecordOutreach("c", "u1", "retention", true, ""); err != nil {
		t.Fatalf("RecordOutreach: %v", err)
	}
	if n, err := db.Prune(); err != nil || n != 0 {
		t.Errorf("Prune = %d, %v; want 0, nil", n, err)
	}
}
