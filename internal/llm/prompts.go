package llm

import "fmt"

// RelevancePrompt asks the judge to pick which candidate lorebook entries are
// relevant to the next beat of the story. candidates is a numbered list
// (1-based) of "type — name: description" lines.
func RelevancePrompt(candidates, recentTranscript, userInput string) string {
	return fmt.Sprintf(`You are a relevance filter for an interactive fiction engine. Given the recent story and the player's next action, select which background entries are worth injecting into the narrator's context.

RECENT STORY:
%s

PLAYER'S NEXT ACTION:
%s

CANDIDATE ENTRIES:
%s

Rules:
- Select ONLY entries that would plausibly inform the next narration
- Prefer fewer, highly relevant entries over many marginal ones
- It is fine to select nothing
- Return ONLY a JSON array of the selected entry numbers, no other text

Return a JSON array of integers, e.g. [2, 5]
If nothing is relevant, return: []`, recentTranscript, userInput, candidates)
}

// BoundaryPrompt asks the judge to choose a chapter cut point. numbered is
// the eligible transcript span with absolute message IDs, one per line.
func BoundaryPrompt(numbered string) string {
	return fmt.Sprintf(`You are a story editor. The transcript below has grown too long and must be split: everything up to and including a cut point will be summarized into a chapter.

Each message is prefixed with its ID:

%s

Choose the single best cut point: a natural scene or act break (scene change, time skip, resolution of a tension, arrival/departure). Avoid cutting mid-conversation or mid-action.

Return ONLY a JSON object, no other text:
{"end_id": <message ID of the last message in the chapter>, "title": "short chapter title"}`, numbered)
}

// SummaryPrompt asks the judge to summarize a chapter's turns. previous is
// the concatenated summaries of earlier chapters (may be empty) and is
// context for continuity only.
func SummaryPrompt(chapterText, previous string) string {
	continuity := ""
	if previous != "" {
		continuity = fmt.Sprintf("EARLIER CHAPTERS (for continuity only, do not re-summarize):\n%s\n\n", previous)
	}

	return fmt.Sprintf(`You are a story archivist. Summarize the chapter below into structured metadata used later to recall it.

%sCHAPTER:
%s

Rules:
- summary: 2-3 sentences covering what happened and what changed
- title: short and evocative, no spoilers beyond this chapter
- keywords: search terms a reader might use to find this chapter
- characters / locations: names that actually appear in this chapter
- plot_threads: tensions opened or advanced here, short phrases
- emotional_tone: one or two words
- Return ONLY a JSON object, no other text

Return a JSON object:
{
  "summary": "...",
  "title": "...",
  "keywords": ["..."],
  "characters": ["..."],
  "locations": ["..."],
  "plot_threads": ["..."],
  "emotional_tone": "..."
}`, continuity, chapterText)
}

// ChapterRecallPrompt asks the judge which past chapters matter for the
// present moment. chapterList is a numbered list of chapter summaries.
func ChapterRecallPrompt(chapterList, recentTranscript, userInput, maxChapters string) string {
	return fmt.Sprintf(`You are the long-term memory of an interactive fiction engine. Decide which past chapters are relevant to the player's next action.

PAST CHAPTERS:
%s

RECENT STORY:
%s

PLAYER'S NEXT ACTION:
%s

Rules:
- Select at most %s chapters
- Only select a chapter if its events plausibly bear on what happens next
- Optionally pose a focused question against a selected chapter when a specific detail should be recalled
- It is fine to select nothing
- Return ONLY a JSON object, no other text

Return a JSON object:
{"chapters": [<chapter numbers>], "questions": [{"chapter": <number>, "question": "..."}]}
If nothing is relevant, return: {"chapters": [], "questions": []}`, chapterList, recentTranscript, userInput, maxChapters)
}
