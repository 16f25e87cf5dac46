package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/aventura-app/aventura/internal/config"
	"github.com/aventura-app/aventura/internal/llm"
	"github.com/aventura-app/aventura/internal/story"
	"github.com/aventura-app/aventura/internal/store"
)

// Service wires the retrieval and chapter engines to the persistence layer.
// It owns one activation tracker per branch, rebuilt lazily from the
// retrieval log. Retrieval passes for a single branch are expected to run one
// at a time (single-flight per story); the tracker itself tolerates
// concurrent readers.
type Service struct {
	DB        *store.DB
	Retriever *Retriever
	Chapters  *ChapterEngine

	mu       sync.Mutex
	trackers map[string]*ActivationTracker
}

// NewService creates a Service from configuration. client may be nil; all
// judge-backed behavior then takes its deterministic fallback.
func NewService(db *store.DB, cfg config.Config, client llm.Client) *Service {
	jp := JudgeParams{
		Model:       cfg.LLM.JudgeModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	return &Service{
		DB:        db,
		Retriever: NewRetriever(cfg.Retrieval, jp, client),
		Chapters:  NewChapterEngine(cfg.Chapters, jp, client),
		trackers:  make(map[string]*ActivationTracker),
	}
}

// tracker returns the branch's activation tracker, rebuilding it from the
// retrieval log on first use.
func (s *Service) tracker(branchID string) *ActivationTracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trackers[branchID]; ok {
		return t
	}

	seed, err := s.DB.LastActivations(branchID)
	if err != nil {
		log.Printf("retrieval: rebuild tracker for %s: %v", branchID, err)
		seed = nil
	}
	t := NewActivationTrackerFrom(seed)
	s.trackers[branchID] = t
	return t
}

// RetrieveForBranch runs a retrieval pass against the branch's persisted
// state. Tracked-entity liveness is carried on the entries' state flags, so
// the live-state input stays empty here; callers that track live world state
// separately use Retriever.Retrieve directly.
func (s *Service) RetrieveForBranch(ctx context.Context, branchID, userInput string) (*RetrievalResult, error) {
	if _, err := s.DB.GetBranch(branchID); err != nil {
		return nil, err
	}
	entries, err := s.DB.ListEntries(branchID)
	if err != nil {
		return nil, err
	}
	turns, err := s.DB.ListTurns(branchID)
	if err != nil {
		return nil, err
	}

	currentTurn := 0
	if len(turns) > 0 {
		currentTurn = turns[len(turns)-1].Index + 1
	}

	res, err := s.Retriever.Retrieve(ctx, RetrieveInput{
		Entries:     entries,
		UserInput:   userInput,
		Recent:      turns,
		Tracker:     s.tracker(branchID),
		CurrentTurn: currentTurn,
	})
	if err != nil {
		return nil, err
	}

	var acts []store.Activation
	for _, re := range res.Tier2 {
		acts = append(acts, store.Activation{EntryID: re.Entry.ID, TurnIndex: currentTurn, Tier: 2})
	}
	for _, re := range res.Tier3 {
		acts = append(acts, store.Activation{EntryID: re.Entry.ID, TurnIndex: currentTurn, Tier: 3})
	}
	if err := s.DB.LogActivations(branchID, acts); err != nil {
		// The pass already succeeded; a lost log row only weakens a future
		// tracker rebuild.
		log.Printf("retrieval: log activations for %s: %v", branchID, err)
	}

	return res, nil
}

// MaybeCreateChapter checks token pressure on the branch's un-summarized
// turns and, when warranted, cuts and summarizes a new chapter. Returns nil
// when no chapter was due.
func (s *Service) MaybeCreateChapter(ctx context.Context, branchID string) (*story.Chapter, error) {
	if _, err := s.DB.GetBranch(branchID); err != nil {
		return nil, err
	}
	lastEnd, err := s.DB.LastChapterEnd(branchID)
	if err != nil {
		return nil, err
	}
	turns, err := s.DB.ListTurns(branchID)
	if err != nil {
		return nil, err
	}

	decision := s.Chapters.AnalyzeBoundary(ctx, turns, lastEnd)
	if !decision.ShouldCreate {
		return nil, nil
	}

	span, err := s.DB.TurnsInRange(branchID, lastEnd+1, decision.EndIndex)
	if err != nil {
		return nil, err
	}
	if len(span) == 0 {
		return nil, fmt.Errorf("chapter span (%d, %d] of branch %s is empty", lastEnd, decision.EndIndex, branchID)
	}

	existing, err := s.DB.ListChapters(branchID)
	if err != nil {
		return nil, err
	}
	var previous []string
	for _, c := range existing {
		if c.Summary != "" {
			previous = append(previous, c.Summary)
		}
	}

	summary := s.Chapters.Summarize(ctx, span, previous)
	title := summary.Title
	if decision.SuggestedTitle != "" {
		title = decision.SuggestedTitle
	}

	chapter := &story.Chapter{
		BranchID:      branchID,
		Title:         title,
		StartIndex:    lastEnd + 1,
		EndIndex:      decision.EndIndex,
		EntryCount:    len(span),
		Summary:       summary.Summary,
		Keywords:      summary.Keywords,
		Characters:    summary.Characters,
		Locations:     summary.Locations,
		PlotThreads:   summary.PlotThreads,
		EmotionalTone: summary.EmotionalTone,
	}
	if err := s.DB.InsertChapter(chapter); err != nil {
		return nil, err
	}
	log.Printf("chapters: created chapter %d (%d turns) on branch %s", chapter.Seq, chapter.EntryCount, branchID)
	return chapter, nil
}

// ResummarizeChapter regenerates one chapter's summary from its own turns and
// the summaries of strictly earlier chapters.
func (s *Service) ResummarizeChapter(ctx context.Context, branchID string, seq int) (*story.Chapter, error) {
	chapter, err := s.DB.GetChapter(branchID, seq)
	if err != nil {
		return nil, err
	}
	siblings, err := s.DB.ListChapters(branchID)
	if err != nil {
		return nil, err
	}
	span, err := s.DB.TurnsInRange(branchID, chapter.StartIndex, chapter.EndIndex)
	if err != nil {
		return nil, err
	}
	if len(span) == 0 {
		return nil, fmt.Errorf("chapter %d of branch %s references missing turns [%d, %d]",
			seq, branchID, chapter.StartIndex, chapter.EndIndex)
	}

	summary := s.Chapters.Resummarize(ctx, *chapter, siblings, span)
	chapter.Title = summary.Title
	chapter.Summary = summary.Summary
	chapter.Keywords = summary.Keywords
	chapter.Characters = summary.Characters
	chapter.Locations = summary.Locations
	chapter.PlotThreads = summary.PlotThreads
	chapter.EmotionalTone = summary.EmotionalTone

	if err := s.DB.UpdateChapterSummary(chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// RecallChapters decides which past chapters of the branch are worth
// re-injecting for the player's next action.
func (s *Service) RecallChapters(ctx context.Context, branchID, userInput string) (RecallDecision, error) {
	chapters, err := s.DB.ListChapters(branchID)
	if err != nil {
		return RecallDecision{}, err
	}
	turns, err := s.DB.ListTurns(branchID)
	if err != nil {
		return RecallDecision{}, err
	}
	recent := turns
	if k := s.Retriever.recentWindow(); len(recent) > k {
		recent = recent[len(recent)-k:]
	}
	return s.Chapters.DecideRetrieval(ctx, userInput, recent, chapters), nil
}
