package knowledge

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalizer resolves entity surface strings to canonical names and finds
// their occurrences in source text. Subtitle transcripts mix full- and
// half-width forms and LLM output is not consistent about which spelling of
// a name it emits, so every comparison goes through width folding and NFC
// normalization first.
type Normalizer struct {
	// aliases maps a folded surface form to its canonical name.
	aliases map[string]string
	// variants are single-character substitution pairs probed in both
	// directions during matching (subtitle OCR and homophone drift).
	variants [][2]string
	// suffixes are action words the LLM appends to names in compound
	// entities; they are stripped to recover the core entity string.
	suffixes []string
}

// NewNormalizer builds a Normalizer from explicit tables. Alias keys and
// values are folded on construction so lookups are fold-insensitive.
func NewNormalizer(aliases map[string]string, variants [][2]string, suffixes []string) *Normalizer {
	folded := make(map[string]string, len(aliases))
	for surface, canonical := range aliases {
		folded[fold(surface)] = fold(canonical)
	}
	// Longer suffixes strip first so "投降了" wins over "投降".
	ordered := append([]string(nil), suffixes...)
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	return &Normalizer{aliases: folded, variants: variants, suffixes: ordered}
}

// DefaultNormalizer returns the tables observed in real transcript runs:
// the drug-trade documentary aliases (张奇夫 and 昆沙 are both 坤沙), the
// title/name equivalence 毛主席 → 毛泽东, and the 星/兴 spelling drift.
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(
		map[string]string{
			"张奇夫": "坤沙",
			"昆沙":  "坤沙",
			"毛主席": "毛泽东",
			"罗兴汉": "罗星汉",
		},
		[][2]string{
			{"星", "兴"},
		},
		[]string{"投降", "叛逃", "出逃", "被捕", "去世", "倒台"},
	)
}

func fold(s string) string {
	return norm.NFC.String(width.Fold.String(strings.TrimSpace(s)))
}

// CoreName strips a parenthesized alternate name and any trailing compound
// suffix from a raw surface string: "张奇夫(昆沙)" → "张奇夫",
// "罗兴汉投降" → "罗兴汉".
func (n *Normalizer) CoreName(raw string) string {
	name := fold(raw)
	for _, open := range []string{"(", "（"} {
		if idx := strings.Index(name, open); idx > 0 {
			name = name[:idx]
		}
	}
	for _, suffix := range n.suffixes {
		if trimmed := strings.TrimSuffix(name, suffix); trimmed != name && trimmed != "" {
			name = trimmed
			break
		}
	}
	return strings.TrimSpace(name)
}

// Canonical resolves a raw surface string to its canonical entity name.
// Unknown names canonicalize to their own folded core form.
func (n *Normalizer) Canonical(raw string) string {
	core := n.CoreName(raw)
	if canonical, ok := n.aliases[core]; ok {
		return canonical
	}
	// Reverse direction: a variant spelling of a known alias key still
	// resolves, whichever form the model emitted.
	for _, probe := range n.substitutions(core) {
		if canonical, ok := n.aliases[probe]; ok {
			return canonical
		}
	}
	return core
}

// Probes returns every surface form that counts as an occurrence of the
// canonical name: the name itself, every alias that resolves to it, and the
// single-character variants of each, deduplicated.
func (n *Normalizer) Probes(canonical string) []string {
	canonical = fold(canonical)
	seen := map[string]struct{}{canonical: {}}
	add := func(form string) {
		if form != "" {
			seen[form] = struct{}{}
		}
	}
	for surface, target := range n.aliases {
		if target == canonical {
			add(surface)
		}
	}
	for form := range seen {
		for _, variant := range n.substitutions(form) {
			add(variant)
		}
	}
	probes := make([]string, 0, len(seen))
	for form := range seen {
		probes = append(probes, form)
	}
	sort.Strings(probes)
	return probes
}

// CountOccurrences counts how many times the canonical name, in any of its
// known forms, appears in text.
func (n *Normalizer) CountOccurrences(text, canonical string) int {
	folded := fold(text)
	total := 0
	for _, probe := range n.Probes(canonical) {
		total += strings.Count(folded, probe)
	}
	return total
}

// Matches reports whether any form of the canonical name occurs in text.
func (n *Normalizer) Matches(text, canonical string) bool {
	return n.CountOccurrences(text, canonical) > 0
}

// substitutions applies each variant pair to the form in both directions.
func (n *Normalizer) substitutions(form string) []string {
	var out []string
	for _, pair := range n.variants {
		if strings.Contains(form, pair[0]) {
			out = append(out, strings.ReplaceAll(form, pair[0], pair[1]))
		}
		if strings.Contains(form, pair[1]) {
			out = append(out, strings.ReplaceAll(form, pair[1], pair[0]))
		}
	}
	return out
}
