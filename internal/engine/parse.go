package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Judge responses are free text that should contain JSON. Parsing is
// defensive: strip markdown fences, extract the first JSON array/object,
// and fall back to bare pattern matching before giving up.

var intRe = regexp.MustCompile(`-?\d+`)

// stripFences removes a markdown code fence wrapper if present.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		// Remove first and last lines (```json and ```)
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return strings.TrimSpace(content)
}

// extractJSONArray returns the outermost JSON array embedded in content.
func extractJSONArray(content string) (string, bool) {
	content = stripFences(content)
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// extractJSONObject returns the outermost JSON object embedded in content.
func extractJSONObject(content string) (string, bool) {
	content = stripFences(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// parseIndexList extracts a list of 1-based indices from a judge response.
// First attempt: a JSON array of integers. Fallback: any integers found in
// the text. Indices outside [1, max] are discarded; duplicates collapse to
// their first occurrence.
func parseIndexList(content string, max int) []int {
	var raw []int

	if arr, ok := extractJSONArray(content); ok {
		if err := json.Unmarshal([]byte(arr), &raw); err != nil {
			raw = nil
		}
	}
	if raw == nil {
		for _, m := range intRe.FindAllString(stripFences(content), -1) {
			n, err := strconv.Atoi(m)
			if err != nil {
				continue
			}
			raw = append(raw, n)
		}
	}

	seen := make(map[int]bool, len(raw))
	var out []int
	for _, n := range raw {
		if n < 1 || n > max || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// firstInt returns the first integer in content, if any.
func firstInt(content string) (int, bool) {
	m := intRe.FindString(stripFences(content))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
