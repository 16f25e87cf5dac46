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

// makeTurns builds n turns starting at index start, each with content of
// charsEach characters (charsEach/4 estimated tokens).
func makeTurns(start, n, charsEach int) []story.Turn {
	turns := make([]story.Turn, n)
	for i := range turns {
		role := story.RoleNarrator
		if i%2 == 0 {
			role = story.RoleUser
		}
		turns[i] = story.Turn{
			Index:   start + i,
			Role:    role,
			Content: strings.Repeat("a", charsEach),
		}
	}
	return turns
}

func testChapterEngine(client llm.Client) *ChapterEngine {
	return NewChapterEngine(config.ChaptersConfig{
		TokenThreshold: 100,
		RecentBuffer:   2,
		MaxRecalled:    2,
	}, JudgeParams{Model: "judge"}, client)
}

func TestAnalyzeBoundaryBelowThreshold(t *testing.T) {
	e := testChapterEngine(nil)

	// 6 turns minus 2 protected leaves 4 analyzed turns of 99 chars each:
	// 4*24 = 96 tokens, under the threshold of 100.
	turns := makeTurns(0, 6, 99)
	d := e.AnalyzeBoundary(context.Background(), turns, -1)
	if d.ShouldCreate {
		t.Fatalf("ShouldCreate = true below threshold, decision %+v", d)
	}
}

func TestAnalyzeBoundaryOneTokenShort(t *testing.T) {
	e := testChapterEngine(nil)

	// 4 analyzed turns: three of 100 chars (25 tokens each) and one of 96
	// chars (24 tokens) = 99 tokens, exactly one under the threshold.
	turns := makeTurns(0, 3, 100)
	turns = append(turns, makeTurns(3, 1, 96)...)
	turns = append(turns, makeTurns(4, 2, 100)...)

	d := e.AnalyzeBoundary(context.Background(), turns, -1)
	if d.ShouldCreate {
		t.Fatalf("ShouldCreate = true at threshold-1, decision %+v", d)
	}
}

func TestAnalyzeBoundaryProtectsRecentBuffer(t *testing.T) {
	e := testChapterEngine(nil)

	// Only 2 turns past the boundary; all inside the protected buffer.
	turns := makeTurns(0, 2, 4000)
	d := e.AnalyzeBoundary(context.Background(), turns, -1)
	if d.ShouldCreate {
		t.Fatalf("protected turns should never be summarized, decision %+v", d)
	}
}

func TestAnalyzeBoundaryNilJudgeFallsBack(t *testing.T) {
	e := testChapterEngine(nil)

	turns := makeTurns(0, 8, 100) // 6 analyzed turns, 150 tokens
	d := e.AnalyzeBoundary(context.Background(), turns, -1)
	if !d.ShouldCreate {
		t.Fatal("ShouldCreate = false above threshold")
	}
	if d.EndIndex != 5 {
		t.Errorf("EndIndex = %d, want 5 (end of analyzed window)", d.EndIndex)
	}
}

func TestAnalyzeBoundaryJudgeCutPoint(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantEnd  int
	}{
		{"absolute end_id", `{"end_id": 13, "title": "The Storm"}`, 13},
		{"fenced end_id", "```json\n{\"end_id\": 12}\n```", 12},
		{"bare absolute int", "13", 13},
		{"relative legacy position", "3", 12}, // window starts at 10; position 3 = index 12
		{"clamped above window", `{"end_id": 99}`, 15},
		{"garbage falls back to window end", "the chapter should end somewhere nice", 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &llm.MockClient{Response: &llm.Response{Content: tt.response}}
			e := testChapterEngine(mock)

			// Boundary at 9: analyzed window is indices 10..15, buffer 16..17.
			turns := makeTurns(10, 8, 100)
			d := e.AnalyzeBoundary(context.Background(), turns, 9)
			if !d.ShouldCreate {
				t.Fatal("ShouldCreate = false")
			}
			if d.EndIndex != tt.wantEnd {
				t.Errorf("EndIndex = %d, want %d", d.EndIndex, tt.wantEnd)
			}
		})
	}
}

func TestAnalyzeBoundaryJudgeErrorFallsBack(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("judge down")}
	e := testChapterEngine(mock)

	turns := makeTurns(0, 8, 100)
	d := e.AnalyzeBoundary(context.Background(), turns, -1)
	if !d.ShouldCreate || d.EndIndex != 5 {
		t.Fatalf("decision = %+v, want create at end of window", d)
	}
}

func TestAnalyzeBoundaryMonotonic(t *testing.T) {
	e := testChapterEngine(nil)

	turns := makeTurns(0, 20, 100)
	d := e.AnalyzeBoundary(context.Background(), turns, 7)
	if !d.ShouldCreate {
		t.Fatal("ShouldCreate = false")
	}
	if d.EndIndex <= 7 {
		t.Errorf("EndIndex = %d, must be past the previous boundary", d.EndIndex)
	}
}

func TestSummarize(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: `{
		"summary": "The crew survives the storm and limps into harbor.",
		"title": "Landfall",
		"keywords": ["storm", "harbor"],
		"characters": ["Rook"],
		"locations": ["The Dock"],
		"plot_threads": ["the missing cargo"],
		"emotional_tone": "weary relief"
	}`}}
	e := testChapterEngine(mock)

	s := e.Summarize(context.Background(), makeTurns(0, 4, 50), []string{"Earlier, a cargo vanished."})
	if s.Title != "Landfall" {
		t.Errorf("Title = %q", s.Title)
	}
	if s.EmotionalTone != "weary relief" {
		t.Errorf("EmotionalTone = %q", s.EmotionalTone)
	}
	if len(s.Keywords) != 2 {
		t.Errorf("Keywords = %v", s.Keywords)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("judge called %d times, want 1", len(mock.Calls))
	}
	if !strings.Contains(mock.Calls[0].Prompt, "Earlier, a cargo vanished.") {
		t.Error("previous summaries missing from prompt")
	}
}

func TestSummarizeFallbacks(t *testing.T) {
	tests := []struct {
		name string
		mock *llm.MockClient
	}{
		{"judge error", &llm.MockClient{Err: errors.New("boom")}},
		{"no JSON", &llm.MockClient{Response: &llm.Response{Content: "a lovely chapter"}}},
		{"broken JSON", &llm.MockClient{Response: &llm.Response{Content: `{"summary": `}}},
		{"empty summary", &llm.MockClient{Response: &llm.Response{Content: `{"summary": "  "}`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testChapterEngine(tt.mock)
			s := e.Summarize(context.Background(), makeTurns(0, 4, 50), nil)
			if s.Summary == "" || s.Title == "" || s.EmotionalTone == "" {
				t.Errorf("placeholder incomplete: %+v", s)
			}
		})
	}
}

func TestSummarizeDefaultsMissingFields(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: `{"summary": "Things happened."}`}}
	e := testChapterEngine(mock)

	s := e.Summarize(context.Background(), makeTurns(0, 4, 50), nil)
	if s.Title != "Untitled Chapter" {
		t.Errorf("Title = %q, want default", s.Title)
	}
	if s.EmotionalTone != "neutral" {
		t.Errorf("EmotionalTone = %q, want neutral", s.EmotionalTone)
	}
}

func TestResummarizeUsesOnlyEarlierChapters(t *testing.T) {
	mock := &llm.MockClient{Response: &llm.Response{Content: `{"summary": "Redone."}`}}
	e := testChapterEngine(mock)

	siblings := []story.Chapter{
		{BranchID: "b", Seq: 4, Summary: "fourth"},
		{BranchID: "b", Seq: 1, Summary: "first"},
		{BranchID: "b", Seq: 3, Summary: "third"},
		{BranchID: "b", Seq: 2, Summary: "second"},
		{BranchID: "other", Seq: 1, Summary: "foreign"},
	}
	target := story.Chapter{BranchID: "b", Seq: 3, Summary: "third"}

	e.Resummarize(context.Background(), target, siblings, makeTurns(0, 4, 50))

	if len(mock.Calls) != 1 {
		t.Fatalf("judge called %d times, want 1", len(mock.Calls))
	}
	prompt := mock.Calls[0].Prompt
	for _, want := range []string{"first", "second"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing earlier summary %q", want)
		}
	}
	for _, banned := range []string{"third", "fourth", "foreign"} {
		if strings.Contains(prompt, banned) {
			t.Errorf("prompt leaked summary %q", banned)
		}
	}
}

func TestDecideRetrieval(t *testing.T) {
	chapters := []story.Chapter{
		{ID: "c1", BranchID: "b", Seq: 1, Title: "One", Summary: "s1"},
		{ID: "c2", BranchID: "b", Seq: 2, Title: "Two", Summary: "s2"},
		{ID: "c3", BranchID: "b", Seq: 3, Title: "Three", Summary: "s3"},
	}

	mock := &llm.MockClient{Response: &llm.Response{Content: `{
		"chapters": [2, 2, 9, 1, 3],
		"questions": [
			{"chapter": 2, "question": "What did Rook promise?"},
			{"chapter": 3, "question": "unselected"},
			{"chapter": 1, "question": "  "}
		]
	}`}}
	e := testChapterEngine(mock)

	d := e.DecideRetrieval(context.Background(), "I return to the harbor", nil, chapters)

	// Dedupe, discard 9, cap at MaxRecalled=2.
	if len(d.ChapterIDs) != 2 || d.ChapterIDs[0] != "c2" || d.ChapterIDs[1] != "c1" {
		t.Fatalf("ChapterIDs = %v, want [c2 c1]", d.ChapterIDs)
	}
	if len(d.SubQuestions) != 1 || d.SubQuestions[0].ChapterID != "c2" {
		t.Fatalf("SubQuestions = %+v, want one question against c2", d.SubQuestions)
	}
}

func TestDecideRetrievalFallbacks(t *testing.T) {
	chapters := []story.Chapter{{ID: "c1", BranchID: "b", Seq: 1, Summary: "s1"}}

	tests := []struct {
		name   string
		engine *ChapterEngine
		input  []story.Chapter
	}{
		{"nil judge", testChapterEngine(nil), chapters},
		{"no chapters", testChapterEngine(&llm.MockClient{Response: &llm.Response{Content: `{"chapters":[1]}`}}), nil},
		{"judge error", testChapterEngine(&llm.MockClient{Err: errors.New("boom")}), chapters},
		{"garbage response", testChapterEngine(&llm.MockClient{Response: &llm.Response{Content: "chapter one, probably"}}), chapters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.engine.DecideRetrieval(context.Background(), "input", nil, tt.input)
			if len(d.ChapterIDs) != 0 || len(d.SubQuestions) != 0 {
				t.Errorf("decision = %+v, want empty", d)
			}
		})
	}
}
