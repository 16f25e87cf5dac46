package engine

import (
	"strings"

	"github.com/aventura-app/aventura/internal/story"
)

// blockDisclaimer tells the consuming model how to treat the listed facts.
const blockDisclaimer = "The following established facts are canon. Do not contradict them; " +
	"you may elaborate on them where the story calls for it."

var typeHeadings = map[story.EntryType]string{
	story.TypeCharacter: "Characters",
	story.TypeLocation:  "Locations",
	story.TypeItem:      "Items",
	story.TypeFaction:   "Factions",
	story.TypeConcept:   "Concepts",
	story.TypeEvent:     "Events",
}

// FormatContextBlock renders the selected entries as the text block injected
// into the narrative prompt: a canonicity disclaimer followed by per-type
// sections of name-description bullets. Hidden info is never rendered.
// Within a section, entries keep their priority order.
func FormatContextBlock(entries []RetrievedEntry) string {
	if len(entries) == 0 {
		return ""
	}

	byType := make(map[story.EntryType][]RetrievedEntry)
	for _, re := range entries {
		byType[re.Entry.Type] = append(byType[re.Entry.Type], re)
	}

	var b strings.Builder
	b.WriteString(blockDisclaimer)
	b.WriteString("\n")

	for _, t := range story.EntryTypes {
		group := byType[t]
		if len(group) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(typeHeadings[t])
		b.WriteString(":\n")
		for _, re := range group {
			b.WriteString("- ")
			b.WriteString(re.Entry.Name)
			if desc := strings.TrimSpace(re.Entry.Description); desc != "" {
				b.WriteString(": ")
				b.WriteString(desc)
			}
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String())
}
