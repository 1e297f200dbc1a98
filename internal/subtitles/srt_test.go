package subtitles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
大家好，欢迎收看。

2
00:00:03,500 --> 00:00:06,000
<i>今天我们聊聊金三角的历史。</i>

3
00:00:06,000 --> 00:00:08,000

4
00:00:08,000 --> 00:00:10,000
今天我们聊聊金三角的历史。
`

func TestParse(t *testing.T) {
	utterances, err := Parse([]byte(sampleSRT))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(utterances) != 4 {
		t.Fatalf("parsed %d utterances, want 4", len(utterances))
	}

	first := utterances[0]
	if first.ID != 1 {
		t.Errorf("first cue id = %d, want 1", first.ID)
	}
	if first.StartMS != 1000 || first.EndMS != 3500 {
		t.Errorf("first cue timing = [%d, %d], want [1000, 3500]", first.StartMS, first.EndMS)
	}
	if first.DurationMS != 2500 {
		t.Errorf("first cue duration = %d, want 2500", first.DurationMS)
	}
	if first.Text != "大家好，欢迎收看。" {
		t.Errorf("first cue text = %q", first.Text)
	}
}

func TestParseTimingVariants(t *testing.T) {
	// Period separator instead of comma.
	srt := "1\n00:00:01.000 --> 00:00:02.000\ntext\n"
	utterances, err := Parse([]byte(srt))
	if err != nil {
		t.Fatalf("Parse failed on period separator: %v", err)
	}
	if utterances[0].StartMS != 1000 || utterances[0].EndMS != 2000 {
		t.Errorf("timing = [%d, %d]", utterances[0].StartMS, utterances[0].EndMS)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		srt  string
	}{
		{"missing timing", "1\njust text\n"},
		{"bad index", "one\n00:00:01,000 --> 00:00:02,000\ntext\n"},
		{"inverted timing", "1\n00:00:05,000 --> 00:00:02,000\ntext\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.srt)); !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseStripsByteOrderMark(t *testing.T) {
	srt := "\uFEFF1\n00:00:01,000 --> 00:00:02,000\ntext\n"
	utterances, err := Parse([]byte(srt))
	if err != nil {
		t.Fatalf("Parse failed on BOM-prefixed input: %v", err)
	}
	if len(utterances) != 1 || utterances[0].ID != 1 {
		t.Errorf("utterances = %+v, want one cue with id 1", utterances)
	}
}

func TestParseEmptyInput(t *testing.T) {
	utterances, err := Parse([]byte("  \n\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(utterances) != 0 {
		t.Errorf("parsed %d utterances from empty input", len(utterances))
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episode.srt")
	if err := os.WriteFile(path, []byte(sampleSRT), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	utterances, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(utterances) != 4 {
		t.Errorf("parsed %d utterances, want 4", len(utterances))
	}
}

func TestClean(t *testing.T) {
	utterances, err := Parse([]byte(sampleSRT))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cleaned, stats := Clean(utterances)
	if len(cleaned) != 2 {
		t.Fatalf("cleaned to %d utterances, want 2", len(cleaned))
	}
	if stats.RemovedEmpty != 1 {
		t.Errorf("removed empty = %d, want 1", stats.RemovedEmpty)
	}
	if stats.RemovedDuplicates != 1 {
		t.Errorf("removed duplicates = %d, want 1", stats.RemovedDuplicates)
	}
	// Markup stripped, content kept.
	if cleaned[1].Text != "今天我们聊聊金三角的历史。" {
		t.Errorf("cleaned text = %q", cleaned[1].Text)
	}
}

func TestCleanStripsMarkupAndWhitespace(t *testing.T) {
	utterances := []Utterance{
		{ID: 1, StartMS: 0, EndMS: 1000, DurationMS: 1000, Text: "{\\an8}<font color=\"red\">  two   words </font>"},
	}
	cleaned, _ := Clean(utterances)
	if len(cleaned) != 1 {
		t.Fatalf("cleaned to %d utterances, want 1", len(cleaned))
	}
	if cleaned[0].Text != "two words" {
		t.Errorf("cleaned text = %q, want %q", cleaned[0].Text, "two words")
	}
}
