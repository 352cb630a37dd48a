package pipeline

import (
	"strings"
	"unicode/utf8"
)

var markupReplacer = strings.NewReplacer("**", "", "__", "", "`", "", "~~", "")

// spokenText renders a reply for synthesis. Markdown markup is dropped and
// replies longer than maxChars are cut at the last sentence end that fits.
func spokenText(reply string, maxChars int) string {
	lines := strings.Split(markupReplacer.Replace(reply), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#>"))
		if line != "" {
			kept = append(kept, line)
		}
	}
	text := strings.Join(kept, "\n")
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	cut := string([]rune(text)[:maxChars])
	if i := strings.LastIndexAny(cut, ".!?"); i > 0 {
		return cut[:i+1]
	}
	return strings.TrimSpace(cut)
}
