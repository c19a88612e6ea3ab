package ledger

import (
	"strings"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndListOutreach(t *testing.T) {
	db := testDB(t)

	if err := db.RecordOutreach("cycle-1", "u1", "retention", true, "Engagement DM Sent"); err != nil {
		t.Fatalf("RecordOutreach: %v", err)
	}
	if err := db.RecordOutreach("cycle-1", "u2", "encouragement", false, "not delivered"); err != nil {
		t.Fatalf("RecordOutreach: %v", err)
	}

	all, err := db.ListOutreach("", 10)
	if err != nil {
		t.Fatalf("ListOutreach: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d attempts, want 2", len(all))
	}
	if all[0].MemberID != "u2" {
		t.Errorf("newest first: got %q, want u2", all[0].MemberID)
	}

	mine, err := db.ListOutreach("u1", 10)
	if err != nil {
		t.Fatalf("ListOutreach(u1): %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("got %d attempts for u1, want 1", len(mine))
	}
	if !mine[0].Delivered || mine[0].Decision != "retention" || mine[0].CycleID != "cycle-1" {
		t.Errorf("unexpected attempt: %+v", mine[0])
	}
}

func TestRecordOutreachTruncatesNote(t *testing.T) {
	db := testDB(t)

	if err := db.RecordOutreach("c", "u1", "retention", false, strings.Repeat("x", 5000)); err != nil {
		t.Fatalf("RecordOutreach: %v", err)
	}
	got, err := db.ListOutreach("u1", 1)
	if err != nil {
		t.Fatalf("ListOutreach: %v", err)
	}
	if len(got[0].Note) != DefaultNoteSize {
		t.Errorf("note length = %d, want %d", len(got[0].Note), DefaultNoteSize)
	}
}

func TestRecordOutreachConfiguredNoteSize(t *testing.T) {
	db, err := OpenMemory(WithNoteSize(10))
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.RecordOutreach("c", "u1", "retention", false, strings.Repeat("x", 50)); err != nil {
		t.Fatalf("RecordOutreach: %v", err)
	}
	got, err := db.ListOutreach("u1", 1)
	if err != nil {
		t.Fatalf("ListOutreach: %v", err)
	}
	if len(got[0].Note) != 10 {
		t.Errorf("note length = %d, want 10", len(got[0].Note))
	}
}

func TestCountOutreach(t *testing.T) {
	db := testDB(t)

	delivered, failed, err := db.CountOutreach()
	if err != nil {
		t.Fatalf("CountOutreach: %v", err)
	}
	if delivered != 0 || failed != 0 {
		t.Errorf("empty counts = %d/%d, want 0/0", delivered, failed)
	}

	db.RecordOutreach("c", "u1", "retention", true, "")
	db.RecordOutreach("c", "u2", "retention", false, "")
	db.RecordOutreach("c", "u3", "encouragement", true, "")

	delivered, failed, err = db.CountOutreach()
	if err != nil {
		t.Fatalf("CountOutreach: %v", err)
	}
	if delivered != 2 || failed != 1 {
		t.Errorf("counts = %d/%d, want 2/1", delivered, failed)
	}
}

func TestPanelActions(t *testing.T) {
	db := testDB(t)

	for _, a := range []string{"state_toggle", "mode_cycle"} {
		if err := db.RecordPanelAction(a, "staff-1"); err != nil {
			t.Fatalf("RecordPanelAction(%s): %v", a, err)
		}
	}

	actions, err := db.ListPanelActions(0)
	if err != nil {
		t.Fatalf("ListPanelActions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	if actions[0].Action != "mode_cycle" {
		t.Errorf("newest first: got %q", actions[0].Action)
	}
	if actions[1].Executor != "staff-1" {
		t.Errorf("Executor = %q, want staff-1", actions[1].Executor)
	}
}
