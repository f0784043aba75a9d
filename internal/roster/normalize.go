package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics removes diacritical marks from a string
// (e.g., "Jiří" -> "Jiri").
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName folds a student name for comparison: lowercase, no
// diacritics, dashes treated as spaces, collapsed whitespace.
func NormalizeName(name string) string {
	name = stripDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// MatchesName reports whether the query occurs in the name under
// normalization. Used by roster search, not by face matching.
func MatchesName(name, query string) bool {
	q := NormalizeName(query)
	if q == "" {
		return false
	}
	return strings.Contains(NormalizeName(name), q)
}
