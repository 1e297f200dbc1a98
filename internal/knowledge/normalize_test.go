package knowledge

import "testing"

func TestCanonicalAliases(t *testing.T) {
	norm := DefaultNormalizer()

	tests := []struct {
		raw  string
		want string
	}{
		{"坤沙", "坤沙"},
		{"昆沙", "坤沙"},
		{"张奇夫", "坤沙"},
		{"张奇夫(昆沙)", "坤沙"},
		{"坤沙(张奇夫)", "坤沙"},
		{"毛主席", "毛泽东"},
		{"毛泽东", "毛泽东"},
		{"罗兴汉投降", "罗星汉"},
		{"罗星汉", "罗星汉"},
		{"缅甸", "缅甸"},
	}
	for _, tc := range tests {
		if got := norm.Canonical(tc.raw); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestCountOccurrencesProbesVariants(t *testing.T) {
	norm := DefaultNormalizer()

	// 星 and 兴 are interchangeable in the transcript spelling of this
	// name; both spellings must count toward the same canonical record.
	text := "罗星汉当时控制了金三角，后来罗兴汉向政府投降。"
	if got := norm.CountOccurrences(text, "罗星汉"); got != 2 {
		t.Errorf("CountOccurrences(罗星汉) = %d, want 2 (both spellings)", got)
	}
	if got := norm.CountOccurrences(text, "罗兴汉"); got != 2 {
		t.Errorf("CountOccurrences(罗兴汉) = %d, want 2 (both spellings)", got)
	}
}

func TestCountOccurrencesProbesAliases(t *testing.T) {
	norm := DefaultNormalizer()

	text := "张奇夫后来改名坤沙，人们也写作昆沙。"
	if got := norm.CountOccurrences(text, "坤沙"); got != 3 {
		t.Errorf("CountOccurrences(坤沙) = %d, want 3 (all alias spellings)", got)
	}
}

func TestFoldWidthForms(t *testing.T) {
	norm := DefaultNormalizer()

	// Full-width parentheses and half-width text must match the same way.
	if got := norm.Canonical("张奇夫（昆沙）"); got != "坤沙" {
		t.Errorf("Canonical with full-width parens = %q, want 坤沙", got)
	}
	if !norm.Matches("ＣＩＡ的档案提到了坤沙", "坤沙") {
		t.Error("Matches failed on full-width text")
	}
}

func TestCoreNameSuffixStripping(t *testing.T) {
	norm := DefaultNormalizer()

	tests := []struct {
		raw  string
		want string
	}{
		{"罗兴汉投降", "罗兴汉"},
		{"坤沙被捕", "坤沙"},
		{"政府", "政府"},
	}
	for _, tc := range tests {
		if got := norm.CoreName(tc.raw); got != tc.want {
			t.Errorf("CoreName(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
