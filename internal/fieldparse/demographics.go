package fieldparse

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Locale categories.
const (
	LocaleUrban    = "urban"
	LocaleSuburban = "suburban"
	LocaleRural    = "rural"
)

// MaxMajorLength bounds the intended-major field.
const MaxMajorLength = 100

var placeholderRe = regexp.MustCompile(`(?i)^\s*(?:n/?a|none|x|-+|prefer not to (?:say|answer)|\?+)?\s*$`)

// isPlaceholder reports whether a field value carries no information.
func isPlaceholder(s string) bool {
	return placeholderRe.MatchString(s)
}

// Gender classifies a gender field.
func Gender(s string) *string {
	lower := strings.ToLower(strings.TrimSpace(s))
	if isPlaceholder(lower) {
		return nil
	}
	switch {
	case strings.Contains(lower, "non-binary"), strings.Contains(lower, "nonbinary"),
		lower == "nb", lower == "enby", strings.Contains(lower, "genderqueer"):
		return stringPtr("non_binary")
	case strings.Contains(lower, "female"), strings.Contains(lower, "woman"), strings.Contains(lower, "girl"),
		lower == "f":
		return stringPtr("female")
	case strings.Contains(lower, "male"), strings.Contains(lower, "man"), strings.Contains(lower, "boy"),
		lower == "m":
		return stringPtr("male")
	}
	return stringPtr("other")
}

// RaceEthnicity returns the trimmed free-text race/ethnicity field.
func RaceEthnicity(s string) *string {
	s = strings.TrimSpace(s)
	if isPlaceholder(s) {
		return nil
	}
	return stringPtr(TruncateRunes(s, 100))
}

var (
	yesRe = regexp.MustCompile(`(?i)^\s*(?:y|yes|yeah|yep|true|1)\b`)
	noRe  = regexp.MustCompile(`(?i)^\s*(?:n|no|nope|false|0|none)\b`)
)

// Flag parses a yes/no field.
func Flag(s string) *bool {
	switch {
	case yesRe.MatchString(s):
		return boolPtr(true)
	case noRe.MatchString(s):
		return boolPtr(false)
	}
	return nil
}

var (
	firstGenRe = regexp.MustCompile(`(?i)\bfirst[\s-]*gen(?:eration)?\b|\bfgli\b|\bfirst in (?:my )?family\b`)
	legacyRe   = regexp.MustCompile(`(?i)\blegacy\b`)
)

// MentionsFirstGen reports whether a hooks field claims first-generation status.
func MentionsFirstGen(s string) bool { return firstGenRe.MatchString(s) }

// MentionsLegacy reports whether a hooks field claims legacy status.
func MentionsLegacy(s string) bool { return legacyRe.MatchString(s) }

// Locale classifies urban/suburban/rural wording. "suburban" is checked
// before "urban" because it contains it.
func Locale(s string) *string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "suburb"):
		return stringPtr(LocaleSuburban)
	case strings.Contains(lower, "urban"), strings.Contains(lower, "big city"), strings.Contains(lower, "inner city"):
		return stringPtr(LocaleUrban)
	case strings.Contains(lower, "rural"), strings.Contains(lower, "small town"), strings.Contains(lower, "farm"):
		return stringPtr(LocaleRural)
	}
	return nil
}

// Major returns the intended major, truncated to MaxMajorLength runes.
func Major(s string) *string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_:-"))
	if isPlaceholder(s) {
		return nil
	}
	return stringPtr(TruncateRunes(s, MaxMajorLength))
}

// TruncateRunes shortens s to at most n runes.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
