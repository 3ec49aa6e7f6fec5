package filters

import (
	"strings"
	"unicode"
)

const (
	// Terms whose alphanumeric form is this short match everything and are
	// rejected outright.
	MinTermLength = 3
	// Only the leading window of an article body is scanned for terms.
	ScanWindow = 1000
)

// Normalize lowercases s and strips every non-alphanumeric rune. All term
// matching, and all dictionary loading, goes through this one function so
// that stored and scanned forms can never drift apart.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// DoesMatch reports whether term occurs in the leading window of haystack.
// Both sides are normalized first, so "Advil PM" matches "advilpm". Matching
// is substring containment with no word boundary detection: deliberately
// coarse, as short terms are screened out by MinTermLength.
func DoesMatch(haystack string, term string) bool {
	normTerm := Normalize(term)
	if len(normTerm) <= MinTermLength {
		return false
	}
	return strings.Contains(normalizeWindow(haystack), normTerm)
}

// normalizeWindow normalizes the first ScanWindow characters of haystack.
// Scans that test many terms against one article normalize the haystack once
// through this function instead of once per term.
func normalizeWindow(haystack string) string {
	runes := []rune(haystack)
	if len(runes) > ScanWindow {
		runes = runes[:ScanWindow]
	}
	return Normalize(string(runes))
}

// containsTerm is the inner test shared by the scans: haystack must already
// be in normalized form.
func containsTerm(normHaystack string, term string) bool {
	normTerm := Normalize(term)
	if len(normTerm) <= MinTermLength {
		return false
	}
	return strings.Contains(normHaystack, normTerm)
}
