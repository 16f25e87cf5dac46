package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aventura-app/aventura/internal/story"
)

// CreateBranch inserts a new branch. Assigns an ID when none is set.
func (db *DB) CreateBranch(b *story.Branch) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()

	_, err := db.Exec(`
		INSERT INTO branches (id, story_id, name, parent_branch_id, forked_at_turn, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), ?, ?)
	`, b.ID, b.StoryID, b.Name, b.ParentBranchID, b.ForkedAtTurn, now)
	if err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	b.CreatedAt = now
	return nil
}

// GetBranch returns a branch by ID, or ErrBranchNotFound.
func (db *DB) GetBranch(id string) (*story.Branch, error) {
	var b story.Branch
	err := db.QueryRow(`
		SELECT id, story_id, name, COALESCE(parent_branch_id, ''), forked_at_turn, created_at
		FROM branches WHERE id = ?
	`, id).Scan(&b.ID, &b.StoryID, &b.Name, &b.ParentBranchID, &b.ForkedAtTurn, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("branch %s: %w", id, ErrBranchNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return &b, nil
}

// ListBranches returns all branches of a story, oldest first.
func (db *DB) ListBranches(storyID string) ([]story.Branch, error) {
	rows, err := db.Query(`
		SELECT id, story_id, name, COALESCE(parent_branch_id, ''), forked_at_turn, created_at
		FROM branches WHERE story_id = ? ORDER BY created_at
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var out []story.Branch
	for rows.Next() {
		var b story.Branch
		if err := rows.Scan(&b.ID, &b.StoryID, &b.Name, &b.ParentBranchID, &b.ForkedAtTurn, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBranch removes a branch and, via cascade, its entries, turns,
// chapters, and retrieval log. This is the only way chapters are ever
// deleted.
func (db *DB) DeleteBranch(id string) error {
	res, err := db.Exec("DELETE FROM branches WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("branch %s: %w", id, ErrBranchNotFound)
	}
	return nil
}

// ForkBranch creates a new branch forked from parent at the given turn:
// entries are copied with fresh IDs, and turns and chapters up to the fork
// point are carried over. The fork owns an independent copy of world state
// from that moment on.
func (db *DB) ForkBranch(parentID, name string, atTurn int) (*story.Branch, error) {
	parent, err := db.GetBranch(parentID)
	if err != nil {
		return nil, err
	}

	fork := &story.Branch{
		ID:             uuid.NewString(),
		StoryID:        parent.StoryID,
		Name:           name,
		ParentBranchID: parent.ID,
		ForkedAtTurn:   atTurn,
	}
	if err := db.CreateBranch(fork); err != nil {
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin fork: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()

	rows, err := tx.Query("SELECT id FROM entries WHERE branch_id = ?", parent.ID)
	if err != nil {
		return nil, fmt.Errorf("fork entries: %w", err)
	}
	var entryIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan entry id: %w", err)
		}
		entryIDs = append(entryIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fork entries: %w", err)
	}

	for _, id := range entryIDs {
		if _, err := tx.Exec(`
			INSERT INTO entries (id, branch_id, type, name, aliases, description, hidden_info, state,
				injection_mode, injection_keywords, injection_priority,
				first_mentioned, last_mentioned, mention_count, created_by, created_at, updated_at)
			SELECT ?, ?, type, name, aliases, description, hidden_info, state,
				injection_mode, injection_keywords, injection_priority,
				first_mentioned, last_mentioned, mention_count, created_by, ?, ?
			FROM entries WHERE id = ?
		`, uuid.NewString(), fork.ID, now, now, id); err != nil {
			return nil, fmt.Errorf("copy entry %s: %w", id, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO turns (branch_id, turn_index, role, content, created_at)
		SELECT ?, turn_index, role, content, created_at
		FROM turns WHERE branch_id = ? AND turn_index <= ?
	`, fork.ID, parent.ID, atTurn); err != nil {
		return nil, fmt.Errorf("copy turns: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO chapters (id, branch_id, seq, title, start_index, end_index, entry_count,
			summary, time_start, time_end, keywords, characters, locations, plot_threads,
			emotional_tone, created_at, updated_at)
		SELECT lower(hex(randomblob(16))), ?, seq, title, start_index, end_index, entry_count,
			summary, time_start, time_end, keywords, characters, locations, plot_threads,
			emotional_tone, ?, ?
		FROM chapters WHERE branch_id = ? AND end_index <= ?
	`, fork.ID, now, now, parent.ID, atTurn); err != nil {
		return nil, fmt.Errorf("copy chapters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit fork: %w", err)
	}
	return fork, nil
}
