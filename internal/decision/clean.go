package decision

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/admissions-ingest/internal/model"
)

const (
	minNameLen    = 3
	maxNameLen    = 100
	maxNameTokens = 8
	maxCleanPass  = 4
)

var (
	bulletRe  = regexp.MustCompile(`^\s*(?:[-*+•·>]+|\d{1,2}[.)]|\[[ xX]?\])\s+`)
	spoilerRe = regexp.MustCompile(`(?:>|&gt;)!|!(?:<|&lt;)|[»«]`)

	parenRe    = regexp.MustCompile(`\s*\([^()]*\)`)
	bracketRe  = regexp.MustCompile(`\s*(?:\[[^\[\]]*\]|\{[^{}]*\})`)
	unclosedRe = regexp.MustCompile(`\s*[(\[][^)\]]*$`)
	emphasisRe = regexp.MustCompile("[*_~`]+")
)

// roundPattern is one application round and the tokens that name it.
type roundPattern struct {
	round model.Round
	re    *regexp.Regexp
}

// roundPatterns are checked in order; the first that matches decides the round.
// Abbreviations are case-sensitive so that "ed" inside words is left alone.
var roundPatterns = []roundPattern{
	{model.RoundEarlyDecision, regexp.MustCompile(`\b(?:ED\s?(?:I{1,2}|[12])|ED)\b|(?i:\bearly[\s-]+decision(?:\s+(?:I{1,2}|[12]))?\b)`)},
	{model.RoundEarlyAction, regexp.MustCompile(`\b(?:RSCEA|SCEA|REA|EA\s?(?:I{1,2}|[12])|EA)\b|(?i:\b(?:(?:restrictive|single[\s-]choice)\s+)?early[\s-]+action\b)`)},
	{model.RoundRegular, regexp.MustCompile(`\bRD\b|(?i:\bregular[\s-]+decision\b)`)},
	{model.RoundRolling, regexp.MustCompile(`(?i)\brolling(?:\s+admissions?)?\b`)},
}

var suffixRes = []*regexp.Regexp{
	regexp.MustCompile(`\s*(?:<-+|<=+|←|-+>|=+>|→).*$`),
	regexp.MustCompile(`(?i)\s*[-–—:|]+\s*(?:withdr[ae]w[n]?|committed|commit|attending|enrolled|enrolling|going|deposited)\b.*$`),
	regexp.MustCompile(`(?i)\s+(?:withdr[ae]w[n]?|committed|attending|deposited)\b.*$`),
	regexp.MustCompile(`(?i)\s+(?:w/|with\s+\$).*$`),
	regexp.MustCompile(`\s*[-–—:]?\s*\$\s*\d.*$`),
	regexp.MustCompile(`(?i)\s*[-–—:]?\s*(?:full[\s-]+ride|full[\s-]+tuition|merit\s+aid|scholarships?)\b.*$`),
	regexp.MustCompile(`\s+(?:ED|EA)\s?(?:I{1,2}|[12])$`),
}

// stopwords are openers that mark a line as commentary rather than a school.
var stopwords = map[string]bool{
	"list": true, "none": true, "n/a": true, "na": true, "pending": true,
	"tldr": true, "tl;dr": true, "tl": true, "edit": true, "update": true,
	"updates": true, "note": true, "notes": true, "waiting": true, "still": true,
	"i": true, "i'm": true, "im": true, "i’m": true, "my": true, "me": true,
	"also": true, "overall": true, "total": true, "results": true,
	"decisions": true, "acceptances": true, "rejections": true, "waitlists": true,
	"accepted": true, "rejected": true, "waitlisted": true, "deferred": true,
	"applied": true, "reflection": true, "reflections": true, "thanks": true,
	"thank": true, "idk": true, "lol": true, "currently": true, "hopefully": true,
	"unknown": true, "tbd": true, "and": true, "but": true, "so": true,
	"if": true, "in": true, "will": true, "didn't": true, "withdrew": true,
}

const trimCutset = " \t-–—:;,|/\\\"'“”‘’"

// Clean runs a raw school mention through the name cleanup pipeline and
// returns the cleaned name with any round indicator it carried. Clean is
// idempotent on the name: Clean(Clean(s).name) yields the same name.
func Clean(raw string) (string, model.Round) {
	name, round := cleanPass(raw)
	for range maxCleanPass {
		next, r := cleanPass(name)
		if round == model.RoundNone {
			round = r
		}
		if next == name {
			break
		}
		name = next
	}
	return name, round
}

func cleanPass(s string) (string, model.Round) {
	s = stripBullets(s)
	s = spoilerRe.ReplaceAllString(s, "")
	s, round := extractRound(s)
	s = stripAsides(s)
	s = emphasisRe.ReplaceAllString(s, "")
	s = decodeEntities(s)
	s = stripSuffixes(s)
	s = decodeEntities(s)
	return tidy(s), round
}

func stripBullets(s string) string {
	for {
		next := bulletRe.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

// extractRound picks the first matching round and removes every round token.
func extractRound(s string) (string, model.Round) {
	round := model.RoundNone
	for _, p := range roundPatterns {
		if round == model.RoundNone && p.re.MatchString(s) {
			round = p.round
		}
	}
	for _, p := range roundPatterns {
		s = p.re.ReplaceAllString(s, "")
	}
	return s, round
}

// RoundOf reports the round named in s without modifying it.
func RoundOf(s string) model.Round {
	for _, p := range roundPatterns {
		if p.re.MatchString(s) {
			return p.round
		}
	}
	return model.RoundNone
}

func stripAsides(s string) string {
	for {
		next := bracketRe.ReplaceAllString(parenRe.ReplaceAllString(s, ""), "")
		if next == s {
			break
		}
		s = next
	}
	return unclosedRe.ReplaceAllString(s, "")
}

func decodeEntities(s string) string {
	for range 5 {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func stripSuffixes(s string) string {
	for {
		next := s
		for _, re := range suffixRes {
			next = re.ReplaceAllString(next, "")
		}
		if next == s {
			return s
		}
		s = next
	}
}

func tidy(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, trimCutset)
}

// IsSchoolName reports whether a cleaned name plausibly names a school rather
// than commentary.
func IsSchoolName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return false
	}
	tokens := strings.Fields(name)
	if len(tokens) > maxNameTokens {
		return false
	}
	first := strings.ToLower(strings.Trim(tokens[0], ",.:!?"))
	if stopwords[first] {
		return false
	}
	switch name[len(name)-1] {
	case '.', '!', '?':
		return false
	}
	return true
}
