package store

import (
	"fmt"
	"time"

	"github.com/aventura-app/aventura/internal/story"
)

// AppendTurn adds a turn at the end of the branch transcript and fills in its
// absolute index.
func (db *DB) AppendTurn(t *story.Turn) error {
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		"SELECT COALESCE(MAX(turn_index) + 1, 0) FROM turns WHERE branch_id = ?",
		t.BranchID,
	).Scan(&next); err != nil {
		return fmt.Errorf("next turn index: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO turns (branch_id, turn_index, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.BranchID, next, t.Role, t.Content, now); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turn: %w", err)
	}
	t.Index = next
	t.CreatedAt = now
	return nil
}

// ListTurns returns all turns of a branch in order.
func (db *DB) ListTurns(branchID string) ([]story.Turn, error) {
	return db.TurnsInRange(branchID, 0, -1)
}

// TurnsAfter returns turns with index strictly greater than after, in order.
func (db *DB) TurnsAfter(branchID string, after int) ([]story.Turn, error) {
	return db.TurnsInRange(branchID, after+1, -1)
}

// TurnsInRange returns turns with from <= index <= to, in order. A negative
// to means no upper bound.
func (db *DB) TurnsInRange(branchID string, from, to int) ([]story.Turn, error) {
	q := `
		SELECT branch_id, turn_index, role, content, created_at
		FROM turns WHERE branch_id = ? AND turn_index >= ?`
	args := []any{branchID, from}
	if to >= 0 {
		q += " AND turn_index <= ?"
		args = append(args, to)
	}
	q += " ORDER BY turn_index"

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var out []story.Turn
	for rows.Next() {
		var t story.Turn
		if err := rows.Scan(&t.BranchID, &t.Index, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
