package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aventura-app/aventura/internal/story"
)

// CreateEntry inserts a lorebook entry. Assigns an ID when none is set and
// defaults the injection mode to keyword.
func (db *DB) CreateEntry(e *story.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Injection.Mode == "" {
		e.Injection.Mode = story.ModeKeyword
	}
	if !e.Type.Valid() {
		return fmt.Errorf("create entry: invalid type %q", e.Type)
	}

	aliases, keywords, state, err := marshalEntryFields(e)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO entries (id, branch_id, type, name, aliases, description, hidden_info, state,
			injection_mode, injection_keywords, injection_priority,
			first_mentioned, last_mentioned, mention_count, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, 0), NULLIF(?, 0), ?, ?, ?, ?)
	`, e.ID, e.BranchID, e.Type, e.Name, aliases, e.Description, e.HiddenInfo, state,
		e.Injection.Mode, keywords, e.Injection.Priority,
		e.FirstMentioned, e.LastMentioned, e.MentionCount, e.CreatedBy, now, now)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// GetEntry returns an entry by ID, or ErrEntryNotFound.
func (db *DB) GetEntry(id string) (*story.Entry, error) {
	row := db.QueryRow(entrySelect+" WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns all entries of a branch, by name.
func (db *DB) ListEntries(branchID string) ([]story.Entry, error) {
	rows, err := db.Query(entrySelect+" WHERE branch_id = ? ORDER BY name", branchID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []story.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpdateEntry overwrites an entry's mutable fields.
func (db *DB) UpdateEntry(e *story.Entry) error {
	aliases, keywords, state, err := marshalEntryFields(e)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		UPDATE entries SET name = ?, aliases = ?, description = ?, hidden_info = ?, state = ?,
			injection_mode = ?, injection_keywords = ?, injection_priority = ?,
			first_mentioned = NULLIF(?, 0), last_mentioned = NULLIF(?, 0), mention_count = ?,
			updated_at = ?
		WHERE id = ?
	`, e.Name, aliases, e.Description, e.HiddenInfo, state,
		e.Injection.Mode, keywords, e.Injection.Priority,
		e.FirstMentioned, e.LastMentioned, e.MentionCount, now, e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", e.ID, ErrEntryNotFound)
	}
	e.UpdatedAt = now
	return nil
}

// DeleteEntry removes an entry.
func (db *DB) DeleteEntry(id string) error {
	res, err := db.Exec("DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrEntryNotFound)
	}
	return nil
}

// RecordMention bumps an entry's mention bookkeeping at the given turn.
func (db *DB) RecordMention(id string, turn int) error {
	res, err := db.Exec(`
		UPDATE entries SET
			first_mentioned = COALESCE(first_mentioned, ?),
			last_mentioned = ?,
			mention_count = mention_count + 1,
			updated_at = ?
		WHERE id = ?
	`, turn, turn, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("record mention: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrEntryNotFound)
	}
	return nil
}

const entrySelect = `
	SELECT id, branch_id, type, name, aliases, description, hidden_info, COALESCE(state, ''),
		injection_mode, injection_keywords, injection_priority,
		COALESCE(first_mentioned, 0), COALESCE(last_mentioned, 0), mention_count,
		created_by, created_at, updated_at
	FROM entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*story.Entry, error) {
	var e story.Entry
	var aliases, keywords, state string
	err := row.Scan(&e.ID, &e.BranchID, &e.Type, &e.Name, &aliases, &e.Description,
		&e.HiddenInfo, &state, &e.Injection.Mode, &keywords, &e.Injection.Priority,
		&e.FirstMentioned, &e.LastMentioned, &e.MentionCount,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if aliases != "" && aliases != "[]" {
		if err := json.Unmarshal([]byte(aliases), &e.Aliases); err != nil {
			return nil, fmt.Errorf("entry %s: corrupt aliases: %w", e.ID, err)
		}
	}
	if keywords != "" && keywords != "[]" {
		if err := json.Unmarshal([]byte(keywords), &e.Injection.Keywords); err != nil {
			return nil, fmt.Errorf("entry %s: corrupt keywords: %w", e.ID, err)
		}
	}
	if state != "" {
		e.State = &story.EntryState{}
		if err := json.Unmarshal([]byte(state), e.State); err != nil {
			return nil, fmt.Errorf("entry %s: corrupt state: %w", e.ID, err)
		}
	}
	return &e, nil
}

func marshalEntryFields(e *story.Entry) (aliases, keywords, state string, err error) {
	a, err := json.Marshal(orEmpty(e.Aliases))
	if err != nil {
		return "", "", "", fmt.Errorf("marshal aliases: %w", err)
	}
	k, err := json.Marshal(orEmpty(e.Injection.Keywords))
	if err != nil {
		return "", "", "", fmt.Errorf("marshal keywords: %w", err)
	}
	s := ""
	if e.State != nil {
		raw, err := json.Marshal(e.State)
		if err != nil {
			return "", "", "", fmt.Errorf("marshal state: %w", err)
		}
		s = string(raw)
	}
	return string(a), string(k), s, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
