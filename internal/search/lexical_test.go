package search_test

import (
	"testing"

	"loom/internal/search"
)

func TestLexicalRanksByOverlap(t *testing.T) {
	texts := map[string]string{
		"A001": "坤沙在金三角起家，控制了鸦片贸易",
		"A002": "缅甸政府军发动了新一轮进攻",
		"A003": "坤沙最终向缅甸政府投降",
	}
	matches := search.Lexical(texts, "坤沙投降", 10)
	if len(matches) == 0 {
		t.Fatal("expected matches")
	}
	if matches[0].ID != "A003" {
		t.Fatalf("top match = %s, want A003 (%+v)", matches[0].ID, matches)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatalf("matches not sorted: %+v", matches)
		}
	}
}

func TestLexicalLimit(t *testing.T) {
	texts := map[string]string{
		"A001": "金三角地区",
		"A002": "金三角军阀",
		"A003": "金三角历史",
	}
	matches := search.Lexical(texts, "金三角", 2)
	if len(matches) != 2 {
		t.Fatalf("len = %d, want 2", len(matches))
	}
}

func TestLexicalEmptyQuery(t *testing.T) {
	if matches := search.Lexical(map[string]string{"A001": "text"}, "", 5); matches != nil {
		t.Fatalf("expected nil, got %+v", matches)
	}
}
