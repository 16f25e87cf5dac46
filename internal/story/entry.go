package story

import "strings"

// EntryType categorizes a lorebook entry.
type EntryType string

const (
	TypeCharacter EntryType = "character"
	TypeLocation  EntryType = "location"
	TypeItem      EntryType = "item"
	TypeFaction   EntryType = "faction"
	TypeConcept   EntryType = "concept"
	TypeEvent     EntryType = "event"
)

// EntryTypes lists all valid entry types in presentation order.
var EntryTypes = []EntryType{
	TypeCharacter, TypeLocation, TypeItem, TypeFaction, TypeConcept, TypeEvent,
}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case TypeCharacter, TypeLocation, TypeItem, TypeFaction, TypeConcept, TypeEvent:
		return true
	}
	return false
}

// InjectionMode controls when an entry may be injected into the prompt.
type InjectionMode string

const (
	ModeAlways   InjectionMode = "always"
	ModeKeyword  InjectionMode = "keyword"
	ModeRelevant InjectionMode = "relevant"
	ModeNever    InjectionMode = "never"
)

// Injection is the author-defined injection policy for an entry.
type Injection struct {
	Mode     InjectionMode `json:"mode"`
	Keywords []string      `json:"keywords,omitempty"`
	Priority int           `json:"priority"` // tie-break within a tier
}

// CharacterState tracks what the story currently knows about a character.
type CharacterState struct {
	Present      bool     `json:"present"`
	Disposition  string   `json:"disposition,omitempty"`
	Relationship int      `json:"relationship"`
	KnownFacts   []string `json:"known_facts,omitempty"`
}

// LocationState tracks visitation of a location.
type LocationState struct {
	Current bool `json:"current"`
	Visits  int  `json:"visits"`
}

// ItemState tracks possession of an item.
type ItemState struct {
	InInventory bool   `json:"in_inventory"`
	Holder      string `json:"holder,omitempty"`
}

// FactionState tracks the protagonist's standing with a faction.
type FactionState struct {
	Standing int  `json:"standing"`
	Known    bool `json:"known"`
}

// ConceptState tracks whether a concept has been revealed to the reader.
type ConceptState struct {
	Revealed bool `json:"revealed"`
}

// EventState tracks whether an event has occurred in the fiction.
type EventState struct {
	Occurred  bool `json:"occurred"`
	TurnIndex int  `json:"turn_index,omitempty"`
}

// EntryState holds the type-specific state of an entry. Exactly one field is
// populated, matching Entry.Type; the others stay nil.
type EntryState struct {
	Character *CharacterState `json:"character,omitempty"`
	Location  *LocationState  `json:"location,omitempty"`
	Item      *ItemState      `json:"item,omitempty"`
	Faction   *FactionState   `json:"faction,omitempty"`
	Concept   *ConceptState   `json:"concept,omitempty"`
	Event     *EventState     `json:"event,omitempty"`
}

// Entry is a persisted lorebook record: a character, location, item, faction,
// concept, or event, with an injection policy and per-branch state.
type Entry struct {
	ID          string      `json:"id"`
	BranchID    string      `json:"branch_id"`
	Type        EntryType   `json:"type"`
	Name        string      `json:"name"`
	Aliases     []string    `json:"aliases,omitempty"`
	Description string      `json:"description"`
	HiddenInfo  string      `json:"hidden_info,omitempty"`
	State       *EntryState `json:"state,omitempty"`
	Injection   Injection   `json:"injection"`

	FirstMentioned int `json:"first_mentioned,omitempty"`
	LastMentioned  int `json:"last_mentioned,omitempty"`
	MentionCount   int `json:"mention_count"`

	CreatedBy string `json:"created_by,omitempty"` // "author", "extraction", "import"
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// MatchTerms returns the lowercase terms this entry can be matched on:
// its name, aliases, and configured keywords, in that order.
func (e *Entry) MatchTerms() []string {
	terms := make([]string, 0, 1+len(e.Aliases)+len(e.Injection.Keywords))
	if n := strings.TrimSpace(e.Name); n != "" {
		terms = append(terms, strings.ToLower(n))
	}
	for _, a := range e.Aliases {
		if a = strings.TrimSpace(a); a != "" {
			terms = append(terms, strings.ToLower(a))
		}
	}
	for _, k := range e.Injection.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			terms = append(terms, strings.ToLower(k))
		}
	}
	return terms
}
