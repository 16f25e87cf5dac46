package story

// TurnRole distinguishes user actions from narration in the transcript.
type TurnRole string

const (
	RoleUser     TurnRole = "user"
	RoleNarrator TurnRole = "narrator"
)

// Turn is one transcript entry: a user action or a narration beat.
// Index is the absolute position within the branch and never changes.
type Turn struct {
	Index     int      `json:"index"`
	BranchID  string   `json:"branch_id,omitempty"`
	Role      TurnRole `json:"role"`
	Content   string   `json:"content"`
	CreatedAt int64    `json:"created_at,omitempty"`
}

// LiveCharacter is a tracked character currently active in the scene.
type LiveCharacter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Note string `json:"note,omitempty"` // disposition or one-line status
}

// LiveLocation is the tracked current location.
type LiveLocation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

// LiveItem is a tracked inventory item.
type LiveItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

// LiveState is the authoritative tracked world state for the current turn:
// who is in the scene, where it takes place, and what the protagonist
// carries. It is re-derived every turn, not accumulated.
type LiveState struct {
	ActiveCharacters []LiveCharacter `json:"active_characters,omitempty"`
	CurrentLocation  *LiveLocation   `json:"current_location,omitempty"`
	Inventory        []LiveItem      `json:"inventory,omitempty"`
}
