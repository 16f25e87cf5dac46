package story

// Chapter is a contiguous, summarized span of past turns. Chapters are
// append-only per branch: Seq increases monotonically and boundary indices
// never overlap a sibling chapter's.
type Chapter struct {
	ID       string `json:"id"`
	BranchID string `json:"branch_id"`
	Seq      int    `json:"seq"`
	Title    string `json:"title,omitempty"`

	// Boundary markers in absolute turn indices, inclusive.
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
	EntryCount int `json:"entry_count"`

	Summary   string `json:"summary"`
	TimeStart string `json:"time_start,omitempty"` // in-fiction clock, free-form
	TimeEnd   string `json:"time_end,omitempty"`

	// Retrieval metadata, derived by the summarizer. Used only to aid
	// future retrieval, never authoritative.
	Keywords      []string `json:"keywords,omitempty"`
	Characters    []string `json:"characters,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	PlotThreads   []string `json:"plot_threads,omitempty"`
	EmotionalTone string   `json:"emotional_tone,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Branch is an independent fork of a story timeline. Each branch owns its own
// copy of entries, chapters, and turns.
type Branch struct {
	ID             string `json:"id"`
	StoryID        string `json:"story_id"`
	Name           string `json:"name"`
	ParentBranchID string `json:"parent_branch_id,omitempty"`
	ForkedAtTurn   int    `json:"forked_at_turn,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}
