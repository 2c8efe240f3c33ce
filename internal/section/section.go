// Package section splits a templated post body into its bolded sections.
package section

import (
	"regexp"
	"strings"
)

// Label names a template section. Each label matches one or more heading
// spellings seen in posts.
type Label string

const (
	Demographics     Label = "Demographics"
	IntendedMajor    Label = "Intended Major"
	Academics        Label = "Academics"
	Testing          Label = "Testing"
	Extracurriculars Label = "Extracurriculars"
	Awards           Label = "Awards"
	Decisions        Label = "Decisions"
)

// labelPatterns holds the heading-text alternatives for each label.
var labelPatterns = map[Label]string{
	Demographics:     `demographics?`,
	IntendedMajor:    `intended\s+majors?`,
	Academics:        `academics?`,
	Testing:          `(?:standardized\s+)?test(?:ing|\s+scores?)`,
	Extracurriculars: `extracurriculars?(?:\s*/\s*activities)?|activities`,
	Awards:           `awards?(?:\s*/\s*honors)?|honors\s*/\s*awards?`,
	Decisions:        `decisions?`,
}

// headingRe matches any bolded heading that starts with a capital letter at
// the start of a line. Group 1 is the heading text.
var headingRe = regexp.MustCompile(`(?m)^[ \t>#]*\*\*[ \t]*([A-Z][^*\n]*)\*\*`)

var compiled = func() map[Label]*regexp.Regexp {
	m := make(map[Label]*regexp.Regexp, len(labelPatterns))
	for l, p := range labelPatterns {
		m[l] = compileHeading(p)
	}
	return m
}()

// compileHeading builds the matcher for one label. The heading may carry a
// parenthesised qualifier, e.g. "(s)" or "(UW/W)", and inline content either
// inside the bold markers after a colon or after them on the same line.
// Group 1 is inline content inside the markers; the match ends where the
// section text begins.
func compileHeading(alt string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t>#]*\*\*[ \t]*(?:` + alt + `)[ \t]*(?:\([^)\n]*\))?[ \t]*(?::[ \t]*([^*\n]*))?\*\*[ \t]*:?`)
}

// Extract returns the text of the section headed by label, up to the next
// bolded capitalized heading or the end of body. Headings whose text begins
// with one of the nested strings (case-insensitive) are treated as part of the
// section rather than as its end. ok is false when the heading is absent.
func Extract(body string, label Label, nested ...string) (string, bool) {
	re, found := compiled[label]
	if !found {
		re = compileHeading(regexp.QuoteMeta(string(label)))
	}
	loc := re.FindStringSubmatchIndex(body)
	if loc == nil {
		return "", false
	}

	var inline string
	if loc[2] >= 0 {
		inline = strings.TrimSpace(body[loc[2]:loc[3]])
	}
	rest := body[loc[1]:]
	end := nextHeading(rest, nested)

	text := strings.TrimSpace(rest[:end])
	if inline != "" {
		text = strings.TrimSpace(inline + "\n" + text)
	}
	return text, true
}

// nextHeading returns the offset of the first terminating heading in s, or len(s).
func nextHeading(s string, nested []string) int {
	for _, m := range headingRe.FindAllStringSubmatchIndex(s, -1) {
		if isNested(s[m[2]:m[3]], nested) {
			continue
		}
		return m[0]
	}
	return len(s)
}

func isNested(heading string, nested []string) bool {
	h := strings.ToLower(strings.TrimSpace(heading))
	for _, n := range nested {
		if strings.HasPrefix(h, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

var fieldLineRe = regexp.MustCompile(`^[ \t]*(?:[-*+•]|\d+[.)])?[ \t]*(?:\*\*|__)?([^:\n]{1,80}?)(?:\*\*|__)?[ \t]*:[ \t]*(.*)$`)

// Field finds a "Key: value" line within section text whose key contains one
// of keys (case-insensitive) and returns the value with emphasis stripped.
func Field(text string, keys ...string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		m := fieldLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.Trim(m[1], " *_"))
		for _, k := range keys {
			if strings.Contains(key, strings.ToLower(k)) {
				return strings.TrimSpace(strings.Trim(strings.TrimSpace(m[2]), "*_")), true
			}
		}
	}
	return "", false
}
