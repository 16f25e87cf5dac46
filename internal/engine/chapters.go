package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/aventura-app/aventura/internal/config"
	"github.com/aventura-app/aventura/internal/llm"
	"github.com/aventura-app/aventura/internal/story"
	"github.com/aventura-app/aventura/internal/transcript"
)

// ChapterEngine decides when accumulated history must be compressed into a
// chapter, produces chapter summaries, and selects past chapters worth
// recalling. Every judge-backed operation has a conservative fallback;
// chapter creation must always make forward progress, never stall on a
// failing judge.
type ChapterEngine struct {
	cfg   config.ChaptersConfig
	judge llm.Client
	jp    JudgeParams
}

// NewChapterEngine creates a ChapterEngine. judge may be nil; all operations
// then take their fallback path.
func NewChapterEngine(cfg config.ChaptersConfig, jp JudgeParams, judge llm.Client) *ChapterEngine {
	return &ChapterEngine{cfg: cfg, judge: judge, jp: jp}
}

// BoundaryDecision is the outcome of boundary analysis. EndIndex is the
// absolute index of the last turn to fold into the new chapter, inclusive;
// it is meaningful only when ShouldCreate is true.
type BoundaryDecision struct {
	ShouldCreate   bool   `json:"should_create"`
	EndIndex       int    `json:"end_index"`
	SuggestedTitle string `json:"suggested_title,omitempty"`
}

// ChapterSummary is the structured metadata the summarizer produces.
type ChapterSummary struct {
	Summary       string   `json:"summary"`
	Title         string   `json:"title"`
	Keywords      []string `json:"keywords"`
	Characters    []string `json:"characters"`
	Locations     []string `json:"locations"`
	PlotThreads   []string `json:"plot_threads"`
	EmotionalTone string   `json:"emotional_tone"`
}

// SubQuestion is a focused question the judge posed against one chapter.
type SubQuestion struct {
	ChapterID string `json:"chapter_id"`
	Question  string `json:"question"`
}

// RecallDecision names which past chapters are worth re-injecting.
type RecallDecision struct {
	ChapterIDs   []string      `json:"chapter_ids"`
	SubQuestions []SubQuestion `json:"sub_questions,omitempty"`
}

// AnalyzeBoundary decides whether the un-summarized turns past lastBoundary
// warrant a new chapter, and where to cut. turns must be ordered by index;
// lastBoundary is the end index of the previous chapter (or -1 / the index
// before the first turn when none exists).
//
// The trailing RecentBuffer turns are protected: the generation loop is still
// using them as literal context. If the remaining slice is empty or its
// estimated token count is under TokenThreshold, no chapter is created.
func (e *ChapterEngine) AnalyzeBoundary(ctx context.Context, turns []story.Turn, lastBoundary int) BoundaryDecision {
	var eligible []story.Turn
	for _, t := range turns {
		if t.Index > lastBoundary {
			eligible = append(eligible, t)
		}
	}

	cut := len(eligible) - e.recentBuffer()
	if cut <= 0 {
		return BoundaryDecision{}
	}
	analyzed := eligible[:cut]

	tokens := transcript.EstimateTurnTokens(analyzed)
	if tokens < e.tokenThreshold() {
		return BoundaryDecision{}
	}

	first := analyzed[0].Index
	last := analyzed[len(analyzed)-1].Index

	if e.judge == nil {
		return BoundaryDecision{ShouldCreate: true, EndIndex: last}
	}

	resp, err := e.judge.Complete(ctx, llm.Request{
		Prompt:      llm.BoundaryPrompt(transcript.Numbered(analyzed)),
		Model:       e.jp.Model,
		Temperature: e.jp.Temperature,
		MaxTokens:   e.jp.MaxTokens,
	})
	if err != nil {
		log.Printf("chapters: boundary judge failed, cutting at end of window: %v", err)
		return BoundaryDecision{ShouldCreate: true, EndIndex: last}
	}

	end, title := parseBoundary(resp.Content, first, last, len(analyzed))
	return BoundaryDecision{ShouldCreate: true, EndIndex: end, SuggestedTitle: title}
}

// parseBoundary extracts the cut point from a judge response. The preferred
// shape is {"end_id": N, "title": "..."} with an absolute message ID. For
// backward compatibility a bare integer is also accepted, read as absolute
// when it falls in [first, last], otherwise as a 1-based position relative to
// the window start. The result is clamped inside the analyzed range; anything
// unparseable falls back to the end of the window.
func parseBoundary(content string, first, last, windowLen int) (int, string) {
	var decoded struct {
		EndID *int   `json:"end_id"`
		Title string `json:"title"`
	}
	title := ""
	var raw *int

	if obj, ok := extractJSONObject(content); ok {
		if err := json.Unmarshal([]byte(obj), &decoded); err == nil && decoded.EndID != nil {
			raw = decoded.EndID
			title = strings.TrimSpace(decoded.Title)
		}
	}
	if raw == nil {
		if n, ok := firstInt(content); ok {
			raw = &n
		}
	}
	if raw == nil {
		return last, ""
	}

	end := *raw
	if end < first || end > last {
		// Legacy shape: position relative to the window start.
		if end >= 1 && end <= windowLen {
			end = first + end - 1
		}
	}
	if end < first {
		end = first
	}
	if end > last {
		end = last
	}
	return end, title
}

// Summarize produces chapter metadata for the given turns. previousSummaries
// are the summaries of earlier chapters in ascending order, passed for
// continuity only. A judge failure yields a conservative placeholder; a weak
// summary is preferred over a missing boundary, since the boundary itself is
// what frees the live transcript buffer.
func (e *ChapterEngine) Summarize(ctx context.Context, turns []story.Turn, previousSummaries []string) ChapterSummary {
	if e.judge == nil {
		return placeholderSummary()
	}

	resp, err := e.judge.Complete(ctx, llm.Request{
		Prompt:      llm.SummaryPrompt(transcript.Condense(turns), strings.Join(previousSummaries, "\n\n")),
		Model:       e.jp.Model,
		Temperature: e.jp.Temperature,
		MaxTokens:   e.jp.MaxTokens,
	})
	if err != nil {
		log.Printf("chapters: summary judge failed, using placeholder: %v", err)
		return placeholderSummary()
	}

	obj, ok := extractJSONObject(resp.Content)
	if !ok {
		log.Printf("chapters: no JSON object in summary response, using placeholder")
		return placeholderSummary()
	}

	var s ChapterSummary
	if err := json.Unmarshal([]byte(obj), &s); err != nil {
		log.Printf("chapters: unparseable summary response, using placeholder: %v", err)
		return placeholderSummary()
	}
	if strings.TrimSpace(s.Summary) == "" {
		return placeholderSummary()
	}
	if strings.TrimSpace(s.Title) == "" {
		s.Title = "Untitled Chapter"
	}
	if s.EmotionalTone == "" {
		s.EmotionalTone = "neutral"
	}
	return s
}

// Resummarize regenerates a chapter's summary. Only chapters strictly earlier
// in sequence feed the continuity context: the chapter's own prior summary
// and anything chronologically after it are excluded, so a chapter's
// description can never leak information from its own future.
func (e *ChapterEngine) Resummarize(ctx context.Context, target story.Chapter, siblings []story.Chapter, turns []story.Turn) ChapterSummary {
	var previous []string
	for _, c := range sortedBySeq(siblings) {
		if c.BranchID == target.BranchID && c.Seq < target.Seq && c.Summary != "" {
			previous = append(previous, c.Summary)
		}
	}
	return e.Summarize(ctx, turns, previous)
}

// DecideRetrieval asks the judge which past chapters bear on the present
// moment. Operates on summaries only, never full chapter text. Failures and
// garbage degrade to "nothing relevant" — memory recall is strictly additive
// enrichment.
func (e *ChapterEngine) DecideRetrieval(ctx context.Context, userInput string, recent []story.Turn, chapters []story.Chapter) RecallDecision {
	if e.judge == nil || len(chapters) == 0 {
		return RecallDecision{}
	}

	ordered := sortedBySeq(chapters)
	resp, err := e.judge.Complete(ctx, llm.Request{
		Prompt: llm.ChapterRecallPrompt(
			chapterList(ordered),
			transcript.Condense(recent),
			userInput,
			fmt.Sprintf("%d", e.maxRecalled()),
		),
		Model:       e.jp.Model,
		Temperature: e.jp.Temperature,
		MaxTokens:   e.jp.MaxTokens,
	})
	if err != nil {
		log.Printf("chapters: recall judge failed, recalling nothing: %v", err)
		return RecallDecision{}
	}

	return parseRecall(resp.Content, ordered, e.maxRecalled())
}

// parseRecall maps the judge's chapter numbers back to chapter IDs,
// discarding out-of-range references and capping the result.
func parseRecall(content string, ordered []story.Chapter, maxChapters int) RecallDecision {
	obj, ok := extractJSONObject(content)
	if !ok {
		return RecallDecision{}
	}

	var decoded struct {
		Chapters  []int `json:"chapters"`
		Questions []struct {
			Chapter  int    `json:"chapter"`
			Question string `json:"question"`
		} `json:"questions"`
	}
	if err := json.Unmarshal([]byte(obj), &decoded); err != nil {
		log.Printf("chapters: unparseable recall response, recalling nothing: %v", err)
		return RecallDecision{}
	}

	var out RecallDecision
	seen := make(map[int]bool)
	for _, n := range decoded.Chapters {
		if n < 1 || n > len(ordered) || seen[n] {
			continue
		}
		seen[n] = true
		out.ChapterIDs = append(out.ChapterIDs, ordered[n-1].ID)
		if len(out.ChapterIDs) >= maxChapters {
			break
		}
	}
	for _, q := range decoded.Questions {
		if q.Chapter < 1 || q.Chapter > len(ordered) || strings.TrimSpace(q.Question) == "" {
			continue
		}
		if !seen[q.Chapter] {
			continue
		}
		out.SubQuestions = append(out.SubQuestions, SubQuestion{
			ChapterID: ordered[q.Chapter-1].ID,
			Question:  strings.TrimSpace(q.Question),
		})
	}
	return out
}

// chapterList renders chapters as a numbered list of summaries for the judge.
func chapterList(ordered []story.Chapter) string {
	var b strings.Builder
	for i, c := range ordered {
		title := c.Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", c.Seq)
		}
		fmt.Fprintf(&b, "%d. %s — %s", i+1, title, c.Summary)
		if len(c.Keywords) > 0 {
			fmt.Fprintf(&b, " (keywords: %s)", strings.Join(c.Keywords, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func sortedBySeq(chapters []story.Chapter) []story.Chapter {
	out := make([]story.Chapter, len(chapters))
	copy(out, chapters)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func placeholderSummary() ChapterSummary {
	return ChapterSummary{
		Summary:       "A span of the story that could not be summarized automatically.",
		Title:         "Untitled Chapter",
		Keywords:      []string{},
		Characters:    []string{},
		Locations:     []string{},
		PlotThreads:   []string{},
		EmotionalTone: "neutral",
	}
}

func (e *ChapterEngine) recentBuffer() int {
	if e.cfg.RecentBuffer <= 0 {
		return 10
	}
	return e.cfg.RecentBuffer
}

func (e *ChapterEngine) tokenThreshold() int {
	if e.cfg.TokenThreshold <= 0 {
		return 24000
	}
	return e.cfg.TokenThreshold
}

func (e *ChapterEngine) maxRecalled() int {
	if e.cfg.MaxRecalled <= 0 {
		return 3
	}
	return e.cfg.MaxRecalled
}
