package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aventura-app/aventura/internal/config"
	"github.com/aventura-app/aventura/internal/llm"
	"github.com/aventura-app/aventura/internal/story"
	"github.com/aventura-app/aventura/internal/transcript"
)

// Origin distinguishes synthesized live-state pseudo-entries from persisted
// lorebook entries in retrieval output.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginLorebook Origin = "lorebook"
)

// Fixed Tier 1 priorities. Live world state always outranks static lore;
// within lore, state flags follow a per-type table and the highest qualifying
// condition wins.
const (
	prioCurrentLocation = 100
	prioActiveCharacter = 95
	prioModeAlways      = 90
	prioInventoryItem   = 80
	prioFactionKnown    = 75
	prioEventOccurred   = 70
	prioConceptRevealed = 70
)

// Stickiness priority decays linearly from 80 toward a floor of 60 as the
// window closes; past the window the entry drops out of Tier 1 entirely.
const (
	stickyFloor = 60
	stickySpan  = 20
)

// RetrievedEntry is one selected entry with its tier, effective priority, and
// a human-readable reason. Transient: never persisted.
type RetrievedEntry struct {
	Entry       story.Entry `json:"entry"`
	Tier        int         `json:"tier"`
	Priority    int         `json:"priority"`
	MatchReason string      `json:"match_reason"`
	Origin      Origin      `json:"origin"`
}

// RetrievalResult is the per-tier breakdown plus the unioned, deduplicated,
// priority-sorted selection and its rendered context block.
type RetrievalResult struct {
	Tier1        []RetrievedEntry `json:"tier1"`
	Tier2        []RetrievedEntry `json:"tier2"`
	Tier3        []RetrievedEntry `json:"tier3"`
	All          []RetrievedEntry `json:"all"`
	ContextBlock string           `json:"context_block"`
}

// RetrieveInput carries everything a single retrieval pass needs. The engine
// is stateless with respect to "now": CurrentTurn is supplied by the caller
// and counts story-entry positions.
type RetrieveInput struct {
	Entries     []story.Entry
	UserInput   string
	Recent      []story.Turn
	Live        story.LiveState
	Tracker     *ActivationTracker
	CurrentTurn int
}

// Retriever runs the three-tier entry selection. Construct with New; it holds
// only configuration and an optional judge client, so a single instance is
// safe to share across stories.
type Retriever struct {
	cfg   config.RetrievalConfig
	judge llm.Client
	jp    JudgeParams
}

// JudgeParams are the LLM parameters used for judge calls.
type JudgeParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewRetriever creates a Retriever. judge may be nil; Tier 3 is then skipped.
func NewRetriever(cfg config.RetrievalConfig, jp JudgeParams, judge llm.Client) *Retriever {
	return &Retriever{cfg: cfg, judge: judge, jp: jp}
}

// Retrieve runs a full retrieval pass: Tier 1 (live state, always-inject,
// sticky), Tier 2 (keyword), Tier 3 (judge), then dedupes, records
// activations, sorts, and renders the context block.
//
// Judge failures degrade to an empty Tier 3 and are logged, never returned.
// The only errors returned are integrity failures in the input entries.
func (r *Retriever) Retrieve(ctx context.Context, in RetrieveInput) (*RetrievalResult, error) {
	for i := range in.Entries {
		if !in.Entries[i].Type.Valid() {
			return nil, fmt.Errorf("entry %s has unknown type %q", in.Entries[i].ID, in.Entries[i].Type)
		}
	}

	selected := make(map[string]bool)

	tier1 := r.selectTier1(in, selected)
	tier2 := r.selectTier2(in, selected)
	tier3 := r.selectTier3(ctx, in, selected)

	// Feed future stickiness: every lorebook entry newly surfaced by Tier 2
	// or Tier 3 is activated at the current turn. Synthesized live entries
	// are re-derived each turn and never tracked.
	if in.Tracker != nil {
		for _, re := range tier2 {
			in.Tracker.RecordActivation(re.Entry.ID, in.CurrentTurn)
		}
		for _, re := range tier3 {
			in.Tracker.RecordActivation(re.Entry.ID, in.CurrentTurn)
		}
	}

	all := make([]RetrievedEntry, 0, len(tier1)+len(tier2)+len(tier3))
	all = append(all, tier1...)
	all = append(all, tier2...)
	all = append(all, tier3...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority > all[j].Priority
		}
		return all[i].Entry.Name < all[j].Entry.Name
	})

	return &RetrievalResult{
		Tier1:        tier1,
		Tier2:        tier2,
		Tier3:        tier3,
		All:          all,
		ContextBlock: FormatContextBlock(all),
	}, nil
}

// selectTier1 gathers live pseudo-entries, always-inject and state-flagged
// lorebook entries, and entries still inside their stickiness window.
func (r *Retriever) selectTier1(in RetrieveInput, selected map[string]bool) []RetrievedEntry {
	var out []RetrievedEntry

	add := func(re RetrievedEntry) {
		if selected[re.Entry.ID] {
			return
		}
		selected[re.Entry.ID] = true
		out = append(out, re)
	}

	// (a) Live world state, synthesized fresh every turn.
	if loc := in.Live.CurrentLocation; loc != nil {
		add(RetrievedEntry{
			Entry:       liveEntry(loc.ID, loc.Name, loc.Note, story.TypeLocation),
			Tier:        1,
			Priority:    prioCurrentLocation,
			MatchReason: "current location",
			Origin:      OriginLive,
		})
	}
	for _, c := range in.Live.ActiveCharacters {
		add(RetrievedEntry{
			Entry:       liveEntry(c.ID, c.Name, c.Note, story.TypeCharacter),
			Tier:        1,
			Priority:    prioActiveCharacter,
			MatchReason: "active character",
			Origin:      OriginLive,
		})
	}
	for _, it := range in.Live.Inventory {
		add(RetrievedEntry{
			Entry:       liveEntry(it.ID, it.Name, it.Note, story.TypeItem),
			Tier:        1,
			Priority:    prioInventoryItem,
			MatchReason: "inventory item",
			Origin:      OriginLive,
		})
	}

	// (b) Always-inject and state-flagged lorebook entries. Multiple
	// conditions may apply; the highest priority wins.
	for i := range in.Entries {
		e := &in.Entries[i]
		if e.Injection.Mode == story.ModeNever || selected[e.ID] {
			continue
		}

		prio := 0
		reason := ""
		if e.Injection.Mode == story.ModeAlways {
			prio = prioModeAlways
			reason = "always inject"
		}
		if p, why := statePriority(e); p > prio {
			prio, reason = p, why
		}
		if prio > 0 {
			add(RetrievedEntry{
				Entry:       *e,
				Tier:        1,
				Priority:    prio,
				MatchReason: reason,
				Origin:      OriginLorebook,
			})
		}
	}

	// (c) Sticky entries: activated by Tier 2/3 within their per-type window.
	if in.Tracker != nil {
		for i := range in.Entries {
			e := &in.Entries[i]
			if e.Injection.Mode == story.ModeNever || selected[e.ID] {
				continue
			}
			last, ok := in.Tracker.LastActivation(e.ID)
			if !ok {
				continue
			}
			since := in.CurrentTurn - last
			window := r.stickiness(e.Type)
			if since < 0 || since > window {
				continue
			}
			prio := stickyPriority(since, window)
			add(RetrievedEntry{
				Entry:       *e,
				Tier:        1,
				Priority:    prio,
				MatchReason: fmt.Sprintf("sticky (activated turn %d, window %d)", last, window),
				Origin:      OriginLorebook,
			})
		}
	}

	return out
}

// selectTier2 matches remaining entries against the keyword corpus built from
// the user input and recent transcript.
func (r *Retriever) selectTier2(in RetrieveInput, selected map[string]bool) []RetrievedEntry {
	corpus := transcript.Corpus(in.UserInput, in.Recent, r.recentWindow())

	var out []RetrievedEntry
	for i := range in.Entries {
		e := &in.Entries[i]
		if e.Injection.Mode == story.ModeNever || selected[e.ID] {
			continue
		}
		matched := matchTerms(e, corpus)
		if len(matched) == 0 {
			continue
		}
		selected[e.ID] = true
		out = append(out, RetrievedEntry{
			Entry:       *e,
			Tier:        2,
			Priority:    70 + e.Injection.Priority,
			MatchReason: "matched: " + strings.Join(matched, ", "),
			Origin:      OriginLorebook,
		})
	}
	return out
}

// matchTerms returns the entry terms (name, aliases, keywords) found in the
// lowercase corpus, either as substrings or at word boundaries.
func matchTerms(e *story.Entry, corpus string) []string {
	var matched []string
	for _, term := range e.MatchTerms() {
		if strings.Contains(corpus, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

// statePriority returns the Tier 1 priority an entry's legacy state flags
// earn, with the per-type precedence table, or 0 if none apply.
func statePriority(e *story.Entry) (int, string) {
	s := e.State
	if s == nil {
		return 0, ""
	}
	switch e.Type {
	case story.TypeLocation:
		if s.Location != nil && s.Location.Current {
			return prioCurrentLocation, "state: current location"
		}
	case story.TypeCharacter:
		if s.Character != nil && s.Character.Present {
			return prioActiveCharacter, "state: present in scene"
		}
	case story.TypeItem:
		if s.Item != nil && s.Item.InInventory {
			return prioInventoryItem, "state: in inventory"
		}
	case story.TypeFaction:
		if s.Faction != nil && s.Faction.Known {
			return prioFactionKnown, "state: known faction"
		}
	case story.TypeEvent:
		if s.Event != nil && s.Event.Occurred {
			return prioEventOccurred, "state: occurred"
		}
	case story.TypeConcept:
		if s.Concept != nil && s.Concept.Revealed {
			return prioConceptRevealed, "state: revealed"
		}
	}
	return 0, ""
}

// stickyPriority computes the decayed Tier 1 priority for an entry activated
// `since` turns ago with the given window:
//
//	round(60 + (1 - since/(window+1)) * 20)
func stickyPriority(since, window int) int {
	fade := 1 - float64(since)/float64(window+1)
	return int(math.Round(stickyFloor + fade*stickySpan))
}

// stickiness returns the per-type stickiness window in turns.
func (r *Retriever) stickiness(t story.EntryType) int {
	if w, ok := r.cfg.Stickiness[string(t)]; ok {
		return w
	}
	return 3
}

func (r *Retriever) recentWindow() int {
	if r.cfg.RecentWindow <= 0 {
		return 4
	}
	return r.cfg.RecentWindow
}

// liveEntry synthesizes a pseudo-entry from a tracked live-state reference.
func liveEntry(id, name, note string, t story.EntryType) story.Entry {
	return story.Entry{
		ID:          id,
		Type:        t,
		Name:        name,
		Description: note,
	}
}
