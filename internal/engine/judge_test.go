package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aventura-app/aventura/internal/config"
	"github.com/aventura-app/aventura/internal/llm"
	"github.com/aventura-app/aventura/internal/story"
)

func tier3Retriever(client llm.Client, tierCap int) *Retriever {
	cfg := config.Default().Retrieval
	cfg.JudgeEnabled = true
	cfg.Tier3Cap = tierCap
	return NewRetriever(cfg, JudgeParams{Model: "judge"}, client)
}

func tier3Entries() []story.Entry {
	dock := keywordEntry("dock", "The Dock")
	dock.Type = story.TypeLocation
	return []story.Entry{
		keywordEntry("rook", "Captain Rook"),
		keywordEntry("mira", "Mira"),
		dock,
	}
}

func TestTier3JudgeSelection(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "[1, 3]"}}
	r := tier3Retriever(mock, 0)

	res, err := r.Retrieve(context.Background(), RetrieveInput{
		Entries:     tier3Entries(),
		UserInput:   "something oblique",
		Tracker:     NewActivationTracker(),
		CurrentTurn: 2,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(res.Tier3) != 2 {
		t.Fatalf("tier 3 = %d entries, want 2", len(res.Tier3))
	}
	got := map[string]RetrievedEntry{}
	for _, re := range res.Tier3 {
		got[re.Entry.ID] = re
	}
	if _, ok := got["rook"]; !ok {
		t.Error("candidate 1 (rook) not selected")
	}
	if _, ok := got["dock"]; !ok {
		t.Error("candidate 3 (dock) not selected")
	}
	if got["rook"].Priority != 50 {
		t.Errorf("priority = %d, want 50", got["rook"].Priority)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("judge called %d times, want 1", len(mock.Calls))
	}
	if !strings.Contains(mock.Calls[0].Prompt, "1. [character] Captain Rook") {
		t.Errorf("candidate list missing from prompt:\n%s", mock.Calls[0].Prompt)
	}
}

func TestTier3AuthorPriority(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "[1]"}}
	r := tier3Retriever(mock, 0)

	e := keywordEntry("rook", "Captain Rook")
	e.Injection.Priority = 12

	res, err := r.Retrieve(context.Background(), RetrieveInput{
		Entries: []story.Entry{e},
		Tracker: NewActivationTracker(),
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Tier3) != 1 || res.Tier3[0].Priority != 62 {
		t.Fatalf("tier 3 = %+v, want one entry at priority 62", res.Tier3)
	}
}

func TestTier3SkipsAlreadySelected(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "[1, 2, 3]"}}
	r := tier3Retriever(mock, 0)

	entries := tier3Entries()
	entries[0].Injection.Keywords = []string{"captain"}

	res, err := r.Retrieve(context.Background(), RetrieveInput{
		Entries:   entries,
		UserInput: "I ask the captain",
		Tracker:   NewActivationTracker(),
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// rook went to Tier 2; the judge saw only mira and dock.
	if len(res.Tier2) != 1 || res.Tier2[0].Entry.ID != "rook" {
		t.Fatalf("tier 2 = %+v", res.Tier2)
	}
	prompt := mock.Calls[0].Prompt
	if strings.Contains(prompt, "Captain Rook") {
		t.Error("already-selected entry offered to the judge")
	}
	if len(res.Tier3) != 2 {
		t.Fatalf("tier 3 = %d entries, want 2", len(res.Tier3))
	}
	if len(res.All) != 3 {
		t.Fatalf("union = %d entries, want 3", len(res.All))
	}
}

func TestTier3Cap(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "[1, 2, 3]"}}
	r := tier3Retriever(mock, 2)

	res, err := r.Retrieve(context.Background(), RetrieveInput{
		Entries: tier3Entries(),
		Tracker: NewActivationTracker(),
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Tier3) != 2 {
		t.Fatalf("tier 3 = %d entries, want cap of 2", len(res.Tier3))
	}
}

func TestTier3Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		mock *llm.MockClient
	}{
		{"judge error", &llm.MockClient{Err: errors.New("timeout")}},
		{"garbage response", &llm.MockClient{Response: &llm.Response{Content: "they all seem nice"}}},
		{"empty array", &llm.MockClient{Response: &llm.Response{Content: "[]"}}},
		{"out of range only", &llm.MockClient{Response: &llm.Response{Content: "[7, 8]"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tier3Retriever(tt.mock, 0)
			res, err := r.Retrieve(context.Background(), RetrieveInput{
				Entries: tier3Entries(),
				Tracker: NewActivationTracker(),
			})
			if err != nil {
				t.Fatalf("Retrieve must not fail on judge trouble: %v", err)
			}
			if len(res.Tier3) != 0 {
				t.Errorf("tier 3 = %+v, want empty", res.Tier3)
			}
		})
	}
}

func TestTier3DisabledSkipsJudge(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "[1]"}}
	cfg := config.Default().Retrieval
	cfg.JudgeEnabled = false
	r := NewRetriever(cfg, JudgeParams{}, mock)

	res, err := r.Retrieve(context.Background(), RetrieveInput{
		Entries: tier3Entries(),
		Tracker: NewActivationTracker(),
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("judge called %d times with tier 3 disabled", len(mock.Calls))
	}
	if len(res.Tier3) != 0 {
		t.Errorf("tier 3 = %+v, want empty", res.Tier3)
	}
}

func TestTier3RecordsActivations(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: "[2]"}}
	r := tier3Retriever(mock, 0)
	tracker := NewActivationTracker()

	_, err := r.Retrieve(context.Background(), RetrieveInput{
		Entries:     tier3Entries(),
		Tracker:     tracker,
		CurrentTurn: 6,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if turn, ok := tracker.LastActivation("mira"); !ok || turn != 6 {
		t.Errorf("activation = (%d, %v), want (6, true)", turn, ok)
	}
}
