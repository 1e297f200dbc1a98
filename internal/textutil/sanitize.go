package textutil

import "strings"

// tokenReplacer replaces filesystem-unsafe characters with safe alternatives.
var tokenReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeProjectID converts a display name into a directory-safe project
// identifier. Slashes, backslashes, colons, and asterisks become dashes;
// other unsafe characters are removed, whitespace collapses to underscores.
// Returns "project" for input that sanitizes to nothing.
func SanitizeProjectID(name string) string {
	name = strings.TrimSpace(tokenReplacer.Replace(strings.TrimSpace(name)))
	if name == "" {
		return "project"
	}
	return strings.Join(strings.Fields(name), "_")
}
