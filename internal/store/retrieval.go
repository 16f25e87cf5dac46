package store

import (
	"fmt"
	"time"
)

// Activation is one row of the retrieval log: an entry surfaced by Tier 2 or
// Tier 3 at a given turn.
type Activation struct {
	EntryID   string
	TurnIndex int
	Tier      int
}

// LogActivations appends retrieval-pass activations for a branch. The log
// exists so the in-memory activation tracker can be rebuilt after a restart;
// it is never consulted on the hot path.
func (db *DB) LogActivations(branchID string, acts []Activation) error {
	if len(acts) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin log activations: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, a := range acts {
		if _, err := tx.Exec(`
			INSERT INTO retrieval_log (branch_id, entry_id, turn_index, tier, recorded_at)
			VALUES (?, ?, ?, ?, ?)
		`, branchID, a.EntryID, a.TurnIndex, a.Tier, now); err != nil {
			return fmt.Errorf("log activation %s: %w", a.EntryID, err)
		}
	}
	return tx.Commit()
}

// LastActivations returns each entry's most recent activation turn for a
// branch, the seed for a rebuilt activation tracker.
func (db *DB) LastActivations(branchID string) (map[string]int, error) {
	rows, err := db.Query(`
		SELECT entry_id, MAX(turn_index) FROM retrieval_log
		WHERE branch_id = ? GROUP BY entry_id
	`, branchID)
	if err != nil {
		return nil, fmt.Errorf("last activations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var turn int
		if err := rows.Scan(&id, &turn); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		out[id] = turn
	}
	return out, rows.Err()
}

// PruneRetrievalLog deletes log rows older than the given turn. Keeps the
// table bounded for long stories.
func (db *DB) PruneRetrievalLog(branchID string, beforeTurn int) (int64, error) {
	res, err := db.Exec(`
		DELETE FROM retrieval_log WHERE branch_id = ? AND turn_index < ?
	`, branchID, beforeTurn)
	if err != nil {
		return 0, fmt.Errorf("prune retrieval log: %w", err)
	}
	return res.RowsAffected()
}
