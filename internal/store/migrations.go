package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "branches: story timeline forks",
		SQL: `
CREATE TABLE branches (
    id               TEXT PRIMARY KEY,
    story_id         TEXT NOT NULL,
    name             TEXT NOT NULL,
    parent_branch_id TEXT,
    forked_at_turn   INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL
);

CREATE INDEX idx_branches_story ON branches(story_id);
`,
	},
	{
		Version:     2,
		Description: "entries: lorebook and tracked-entity records",
		SQL: `
CREATE TABLE entries (
    id                 TEXT PRIMARY KEY,
    branch_id          TEXT NOT NULL,
    type               TEXT NOT NULL CHECK (type IN ('character', 'location', 'item', 'faction', 'concept', 'event')),
    name               TEXT NOT NULL,
    aliases            TEXT NOT NULL DEFAULT '[]',
    description        TEXT NOT NULL DEFAULT '',
    hidden_info        TEXT NOT NULL DEFAULT '',
    state              TEXT,
    injection_mode     TEXT NOT NULL DEFAULT 'keyword' CHECK (injection_mode IN ('always', 'keyword', 'relevant', 'never')),
    injection_keywords TEXT NOT NULL DEFAULT '[]',
    injection_priority INTEGER NOT NULL DEFAULT 0,
    first_mentioned    INTEGER,
    last_mentioned     INTEGER,
    mention_count      INTEGER NOT NULL DEFAULT 0,
    created_by         TEXT NOT NULL DEFAULT 'author',
    created_at         INTEGER NOT NULL,
    updated_at         INTEGER NOT NULL,

    FOREIGN KEY (branch_id) REFERENCES branches(id) ON DELETE CASCADE
);

CREATE INDEX idx_entries_branch ON entries(branch_id);
CREATE INDEX idx_entries_type   ON entries(branch_id, type);
`,
	},
	{
		Version:     3,
		Description: "turns: ordered story transcript per branch",
		SQL: `
CREATE TABLE turns (
    branch_id  TEXT NOT NULL,
    turn_index INTEGER NOT NULL,
    role       TEXT NOT NULL CHECK (role IN ('user', 'narrator')),
    content    TEXT NOT NULL,
    created_at INTEGER NOT NULL,

    PRIMARY KEY (branch_id, turn_index),
    FOREIGN KEY (branch_id) REFERENCES branches(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     4,
		Description: "chapters: summarized spans of past turns",
		SQL: `
CREATE TABLE chapters (
    id             TEXT PRIMARY KEY,
    branch_id      TEXT NOT NULL,
    seq            INTEGER NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    start_index    INTEGER NOT NULL,
    end_index      INTEGER NOT NULL,
    entry_count    INTEGER NOT NULL,
    summary        TEXT NOT NULL DEFAULT '',
    time_start     TEXT NOT NULL DEFAULT '',
    time_end       TEXT NOT NULL DEFAULT '',
    keywords       TEXT NOT NULL DEFAULT '[]',
    characters     TEXT NOT NULL DEFAULT '[]',
    locations      TEXT NOT NULL DEFAULT '[]',
    plot_threads   TEXT NOT NULL DEFAULT '[]',
    emotional_tone TEXT NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL,

    UNIQUE (branch_id, seq),
    FOREIGN KEY (branch_id) REFERENCES branches(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     5,
		Description: "retrieval_log: activation history for stickiness rebuild",
		SQL: `
CREATE TABLE retrieval_log (
    id          INTEGER PRIMARY KEY,
    branch_id   TEXT NOT NULL,
    entry_id    TEXT NOT NULL,
    turn_index  INTEGER NOT NULL,
    tier        INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL,

    FOREIGN KEY (branch_id) REFERENCES branches(id) ON DELETE CASCADE
);

CREATE INDEX idx_retrieval_branch ON retrieval_log(branch_id, turn_index DESC);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
