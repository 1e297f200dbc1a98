package subtitles

import (
	"regexp"
	"strings"
)

var markupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<[^>]+>`),     // html-style tags: <i>, <font ...>
	regexp.MustCompile(`\{\\[^}]*\}`), // ass override blocks: {\an8}
}

// CleanStats reports the effects of subtitle cleanup.
type CleanStats struct {
	RemovedEmpty      int
	RemovedDuplicates int
}

// Clean normalizes cue text for atomization: strips markup, collapses
// whitespace, and drops cues that end up empty or repeat the previous cue's
// text verbatim (a common artifact of re-timed subtitle releases).
func Clean(utterances []Utterance) ([]Utterance, CleanStats) {
	var stats CleanStats
	cleaned := make([]Utterance, 0, len(utterances))
	previousText := ""
	for _, utt := range utterances {
		text := normalizeText(utt.Text)
		if text == "" {
			stats.RemovedEmpty++
			continue
		}
		if text == previousText {
			stats.RemovedDuplicates++
			continue
		}
		utt.Text = text
		cleaned = append(cleaned, utt)
		previousText = text
	}
	return cleaned, stats
}

func normalizeText(text string) string {
	for _, pattern := range markupPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.Join(strings.Fields(text), " ")
}
