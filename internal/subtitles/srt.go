package subtitles

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed indicates SRT input that cannot be parsed.
var ErrMalformed = errors.New("malformed srt")

// Utterance is one timestamped subtitle cue.
type Utterance struct {
	ID         int    `json:"id"`
	StartMS    int64  `json:"start_ms"`
	EndMS      int64  `json:"end_ms"`
	DurationMS int64  `json:"duration_ms"`
	Text       string `json:"text"`
}

// ParseFile parses an SRT file into ordered utterances.
func ParseFile(path string) ([]Utterance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	utterances, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return utterances, nil
}

// Parse converts raw SRT content into utterances, preserving the file's cue
// indices as utterance ids.
func Parse(raw []byte) ([]Utterance, error) {
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")
	normalized = strings.TrimPrefix(normalized, "\uFEFF")
	blocks := splitBlocks(normalized)

	utterances := make([]Utterance, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("%w: cue block %q too short", ErrMalformed, strings.TrimSpace(block))
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: expected cue index, got %q", ErrMalformed, lines[0])
		}
		start, end, err := parseTimingLine(lines[1])
		if err != nil {
			return nil, fmt.Errorf("%w: cue %d: %v", ErrMalformed, index, err)
		}
		utterances = append(utterances, Utterance{
			ID:         index,
			StartMS:    start,
			EndMS:      end,
			DurationMS: end - start,
			Text:       strings.Join(lines[2:], "\n"),
		})
	}
	return utterances, nil
}

func splitBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	var blocks []string
	for _, block := range strings.Split(trimmed, "\n\n") {
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func parseTimingLine(line string) (int64, int64, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad timing line %q", line)
	}
	start, err := parseTimestampMS(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestampMS(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("cue ends at %dms, before its start %dms", end, start)
	}
	return start, end, nil
}

func parseTimestampMS(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// SRT standard uses a comma before milliseconds; tolerate a period.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return int64(hours)*3600000 + int64(minutes)*60000 + int64(seconds)*1000 + int64(millis), nil
}
