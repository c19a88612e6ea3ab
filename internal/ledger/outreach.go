package ledger

import (
	"fmt"
)

// OutreachAttempt is one journaled delivery attempt made by the scheduler.
type OutreachAttempt struct {
	ID        int64  `json:"id"`
	CycleID   string `json:"cycle_id"`
	MemberID  string `json:"member_id"`
	Decision  string `json:"decision"`
	Delivered bool   `json:"delivered"`
	Note      string `json:"note"`
	CreatedAt int64  `json:"created_at"`
}

// RecordOutreach journals a delivery attempt.
func (db *DB) RecordOutreach(cycleID, memberID, decision string, delivered bool, note string) error {
	if len(note) > db.noteSize {
		note = note[:db.noteSize]
	}

	now := db.now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outreach_attempts (cycle_id, member_id, decision, delivered, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cycleID, memberID, decision, delivered, note, now)
	if err != nil {
		return fmt.Errorf("record outreach: %w", err)
	}
	return nil
}

// ListOutreach returns the most recent attempts, newest first. An empty
// memberID lists attempts for every member.
func (db *DB) ListOutreach(memberID string, limit int) ([]OutreachAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, cycle_id, member_id, decision, delivered, COALESCE(note, ''), created_at
		FROM outreach_attempts
		WHERE (? = '' OR member_id = ?)
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, memberID, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list outreach: %w", err)
	}
	defer rows.Close()

	var out []OutreachAttempt
	for rows.Next() {
		var a OutreachAttempt
		if err := rows.Scan(&a.ID, &a.CycleID, &a.MemberID, &a.Decision, &a.Delivered, &a.Note, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outreach: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountOutreach returns delivered and failed attempt totals.
func (db *DB) CountOutreach() (delivered, failed int, err error) {
	err = db.QueryRow(`
		SELECT COALESCE(SUM(delivered), 0), COALESCE(SUM(1 - delivered), 0) FROM outreach_attempts
	`).Scan(&delivered, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("count outreach: %w", err)
	}
	return delivered, failed, nil
}
