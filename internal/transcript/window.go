// Package transcript prepares turn windows for the retrieval and chapter
// engines: keyword corpora, condensed judge input, and token estimates.
package transcript

import (
	"fmt"
	"strings"

	"github.com/aventura-app/aventura/internal/story"
)

const (
	// Approximate token → char conversion: 1 token ≈ 4 chars.
	charsPerToken = 4

	// Condensed narration beyond this length is truncated for judge prompts.
	condensedTurnMax = 600
)

// EstimateTokens returns a cheap token estimate for s. Real token counting is
// the caller's tokenizer's job; this only has to be stable and monotonic.
func EstimateTokens(s string) int {
	return len(s) / charsPerToken
}

// EstimateTurnTokens sums token estimates over a slice of turns.
func EstimateTurnTokens(turns []story.Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTokens(t.Content)
	}
	return total
}

// Recent returns the last k turns, or all of them if fewer.
func Recent(turns []story.Turn, k int) []story.Turn {
	if k <= 0 || len(turns) <= k {
		return turns
	}
	return turns[len(turns)-k:]
}

// Corpus builds the lowercase search corpus for keyword matching: the user's
// current input concatenated with the last k transcript turns.
func Corpus(userInput string, turns []story.Turn, k int) string {
	var b strings.Builder
	b.WriteString(userInput)
	for _, t := range Recent(turns, k) {
		b.WriteString("\n")
		b.WriteString(t.Content)
	}
	return strings.ToLower(b.String())
}

// Condense renders turns as labeled lines for judge prompts. Long narration
// is truncated; user actions are kept whole since they carry the intent.
func Condense(turns []story.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		label := "[NARRATOR]"
		text := t.Content
		if t.Role == story.RoleUser {
			label = "[PLAYER]"
		} else if len(text) > condensedTurnMax {
			text = text[:condensedTurnMax] + "..."
		}
		b.WriteString(label)
		b.WriteString(" ")
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// Numbered renders turns one per line, prefixed with their absolute index.
// Used by the chapter boundary prompt so the judge can name a cut point.
func Numbered(turns []story.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		text := t.Content
		if len(text) > condensedTurnMax {
			text = text[:condensedTurnMax] + "..."
		}
		role := "narrator"
		if t.Role == story.RoleUser {
			role = "player"
		}
		fmt.Fprintf(&b, "[%d] (%s) %s\n", t.Index, role, text)
	}
	return strings.TrimSpace(b.String())
}

// CountUserTurns returns the number of user-action turns.
func CountUserTurns(turns []story.Turn) int {
	n := 0
	for _, t := range turns {
		if t.Role == story.RoleUser {
			n++
		}
	}
	return n
}
