package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aventura-app/aventura/internal/llm"
	"github.com/aventura-app/aventura/internal/story"
	"github.com/aventura-app/aventura/internal/transcript"
)

// candidateDescMax truncates descriptions in the judge's candidate list.
const candidateDescMax = 200

// selectTier3 asks the judge which remaining entries are relevant to the next
// beat. Disabled judge, empty candidate set, network failure, and garbage
// responses all degrade to an empty result; retrieval never fails on Tier 3.
func (r *Retriever) selectTier3(ctx context.Context, in RetrieveInput, selected map[string]bool) []RetrievedEntry {
	if !r.cfg.JudgeEnabled || r.judge == nil {
		return nil
	}

	var candidates []*story.Entry
	for i := range in.Entries {
		e := &in.Entries[i]
		if e.Injection.Mode == story.ModeNever || selected[e.ID] {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return nil
	}

	prompt := llm.RelevancePrompt(
		candidateList(candidates),
		transcript.Condense(transcript.Recent(in.Recent, r.recentWindow())),
		in.UserInput,
	)

	resp, err := r.judge.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Model:       r.jp.Model,
		Temperature: r.jp.Temperature,
		MaxTokens:   r.jp.MaxTokens,
	})
	if err != nil {
		log.Printf("retrieval: judge call failed, skipping tier 3: %v", err)
		return nil
	}

	indices := parseIndexList(resp.Content, len(candidates))
	if len(indices) == 0 {
		return nil
	}

	var out []RetrievedEntry
	for _, idx := range indices {
		e := candidates[idx-1]
		selected[e.ID] = true
		out = append(out, RetrievedEntry{
			Entry:       *e,
			Tier:        3,
			Priority:    50 + e.Injection.Priority,
			MatchReason: "judged relevant",
			Origin:      OriginLorebook,
		})
	}

	if r.cfg.Tier3Cap > 0 && len(out) > r.cfg.Tier3Cap {
		log.Printf("retrieval: capping tier 3 from %d to %d entries", len(out), r.cfg.Tier3Cap)
		out = out[:r.cfg.Tier3Cap]
	}
	return out
}

// candidateList renders candidates as a numbered list for the judge.
func candidateList(candidates []*story.Entry) string {
	var b strings.Builder
	for i, e := range candidates {
		desc := e.Description
		if len(desc) > candidateDescMax {
			desc = desc[:candidateDescMax] + "..."
		}
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, e.Type, e.Name, desc)
	}
	return strings.TrimSpace(b.String())
}
