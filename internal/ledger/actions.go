package ledger

import (
	"fmt"
)

// PanelAction is one operator command applied to the panel.
type PanelAction struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	Executor  string `json:"executor"`
	CreatedAt int64  `json:"created_at"`
}

// RecordPanelAction appends an operator command to the audit trail.
func (db *DB) RecordPanelAction(action, executor string) error {
	_, err := db.Exec(`
		INSERT INTO panel_actions (action, executor, created_at) VALUES (?, ?, ?)
	`, action, executor, db.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record panel action: %w", err)
	}
	return nil
}

// ListPanelActions returns the most recent operator commands, newest first.
func (db *DB) ListPanelActions(limit int) ([]PanelAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, action, executor, created_at
		FROM panel_actions ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list panel actions: %w", err)
	}
	defer rows.Close()

	var out []PanelAction
	for rows.Next() {
		var a PanelAction
		if err := rows.Scan(&a.ID, &a.Action, &a.Executor, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan panel action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
