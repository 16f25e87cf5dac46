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

// InsertChapter appends a chapter to the branch. Enforces the append-only
// boundary invariant: the new chapter's sequence must follow the last one and
// its span must start where the previous chapter ended. Violations are
// integrity failures.
func (db *DB) InsertChapter(c *story.Chapter) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.EndIndex < c.StartIndex {
		return fmt.Errorf("insert chapter: end index %d before start %d", c.EndIndex, c.StartIndex)
	}

	var lastSeq, lastEnd int
	err := db.QueryRow(`
		SELECT seq, end_index FROM chapters WHERE branch_id = ? ORDER BY seq DESC LIMIT 1
	`, c.BranchID).Scan(&lastSeq, &lastEnd)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		lastSeq, lastEnd = 0, -1
	case err != nil:
		return fmt.Errorf("last chapter: %w", err)
	}

	if c.Seq == 0 {
		c.Seq = lastSeq + 1
	}
	if c.Seq != lastSeq+1 {
		return fmt.Errorf("insert chapter: seq %d does not follow %d", c.Seq, lastSeq)
	}
	if c.StartIndex != lastEnd+1 {
		return fmt.Errorf("insert chapter: start index %d does not follow previous end %d", c.StartIndex, lastEnd)
	}

	keywords, characters, locations, threads, err := marshalChapterLists(c)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO chapters (id, branch_id, seq, title, start_index, end_index, entry_count,
			summary, time_start, time_end, keywords, characters, locations, plot_threads,
			emotional_tone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.BranchID, c.Seq, c.Title, c.StartIndex, c.EndIndex, c.EntryCount,
		c.Summary, c.TimeStart, c.TimeEnd, keywords, characters, locations, threads,
		c.EmotionalTone, now, now)
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetChapter returns a chapter by branch and sequence, or ErrChapterNotFound.
func (db *DB) GetChapter(branchID string, seq int) (*story.Chapter, error) {
	row := db.QueryRow(chapterSelect+" WHERE branch_id = ? AND seq = ?", branchID, seq)
	c, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chapter %d of branch %s: %w", seq, branchID, ErrChapterNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return c, nil
}

// ListChapters returns all chapters of a branch in sequence order.
func (db *DB) ListChapters(branchID string) ([]story.Chapter, error) {
	rows, err := db.Query(chapterSelect+" WHERE branch_id = ? ORDER BY seq", branchID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var out []story.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// LastChapterEnd returns the end index of the branch's newest chapter, or -1
// when the branch has no chapters. This is the cursor the boundary analyzer
// advances from; it only ever grows.
func (db *DB) LastChapterEnd(branchID string) (int, error) {
	var end int
	err := db.QueryRow(`
		SELECT end_index FROM chapters WHERE branch_id = ? ORDER BY seq DESC LIMIT 1
	`, branchID).Scan(&end)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("last chapter end: %w", err)
	}
	return end, nil
}

// UpdateChapterSummary overwrites a chapter's summary and retrieval metadata.
// Boundary markers are immutable: chapters are never re-cut, only re-described.
func (db *DB) UpdateChapterSummary(c *story.Chapter) error {
	keywords, characters, locations, threads, err := marshalChapterLists(c)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		UPDATE chapters SET title = ?, summary = ?, keywords = ?, characters = ?,
			locations = ?, plot_threads = ?, emotional_tone = ?, updated_at = ?
		WHERE id = ?
	`, c.Title, c.Summary, keywords, characters, locations, threads, c.EmotionalTone, now, c.ID)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chapter %s: %w", c.ID, ErrChapterNotFound)
	}
	c.UpdatedAt = now
	return nil
}

const chapterSelect = `
	SELECT id, branch_id, seq, title, start_index, end_index, entry_count,
		summary, time_start, time_end, keywords, characters, locations, plot_threads,
		emotional_tone, created_at, updated_at
	FROM chapters`

func scanChapter(row rowScanner) (*story.Chapter, error) {
	var c story.Chapter
	var keywords, characters, locations, threads string
	err := row.Scan(&c.ID, &c.BranchID, &c.Seq, &c.Title, &c.StartIndex, &c.EndIndex,
		&c.EntryCount, &c.Summary, &c.TimeStart, &c.TimeEnd,
		&keywords, &characters, &locations, &threads,
		&c.EmotionalTone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw  string
		dest *[]string
	}{
		{keywords, &c.Keywords},
		{characters, &c.Characters},
		{locations, &c.Locations},
		{threads, &c.PlotThreads},
	} {
		if f.raw == "" || f.raw == "[]" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return nil, fmt.Errorf("chapter %s: corrupt metadata: %w", c.ID, err)
		}
	}
	return &c, nil
}

func marshalChapterLists(c *story.Chapter) (keywords, characters, locations, threads string, err error) {
	enc := func(s []string) (string, error) {
		raw, err := json.Marshal(orEmpty(s))
		return string(raw), err
	}
	if keywords, err = enc(c.Keywords); err != nil {
		return "", "", "", "", fmt.Errorf("marshal keywords: %w", err)
	}
	if characters, err = enc(c.Characters); err != nil {
		return "", "", "", "", fmt.Errorf("marshal characters: %w", err)
	}
	if locations, err = enc(c.Locations); err != nil {
		return "", "", "", "", fmt.Errorf("marshal locations: %w", err)
	}
	if threads, err = enc(c.PlotThreads); err != nil {
		return "", "", "", "", fmt.Errorf("marshal plot threads: %w", err)
	}
	return keywords, characters, locations, threads, nil
}
