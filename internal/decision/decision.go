// Package decision extracts (school, outcome, round) triples from a post body.
//
// Posts are free text, so extraction is an ordered chain of strategies, one
// per authoring style. The first strategy that yields any decision wins and
// its result is used as-is; results are never merged across strategies.
package decision

import (
	"regexp"
	"strings"

	"github.com/sells-group/admissions-ingest/internal/model"
	"github.com/sells-group/admissions-ingest/internal/section"
)

// Strategy finds decisions written in one authoring style.
type Strategy struct {
	Name string
	Find func(body string) []model.Decision
}

// Strategies returns the extraction chain in priority order.
func Strategies() []Strategy {
	return []Strategy{
		{Name: "inline_spoiler", Find: InlineSpoiler},
		{Name: "decisions_section", Find: LabeledSection},
		{Name: "loose_subsections", Find: LooseSubsections},
		{Name: "hash_header", Find: HashHeader},
	}
}

// Parse runs the default chain and returns the decisions along with the name
// of the strategy that produced them. Both are empty when nothing matched.
func Parse(body string) ([]model.Decision, string) {
	return ParseWith(body, Strategies())
}

// ParseWith runs strategies in order and returns the first non-empty result.
func ParseWith(body string, strategies []Strategy) ([]model.Decision, string) {
	for _, s := range strategies {
		if ds := s.Find(body); len(ds) > 0 {
			return ds, s.Name
		}
	}
	return nil, ""
}

var spoilerLineRe = regexp.MustCompile(`(?m)^[ \t>]*(?:[-*+•]|\d{1,2}[.)])?[ \t]*([^\n:>»]+?)[ \t]*(?::|[-–—])[ \t]*(?:(?:>|&gt;)!([^\n]+?)!(?:<|&lt;)|»([^\n«]+)«)`)

// InlineSpoiler matches lines like "School: >!Outcome!<" or "School: »Outcome«"
// anywhere in the post, ignoring section boundaries.
func InlineSpoiler(body string) []model.Decision {
	var c collector
	for _, m := range spoilerLineRe.FindAllStringSubmatch(body, -1) {
		text := m[2]
		if text == "" {
			text = m[3]
		}
		outcome, ok := model.ParseOutcome(stripOutcomeDecor(text))
		if !ok {
			continue
		}
		c.add(m[1], outcome, RoundOf(text))
	}
	return c.out
}

// LabeledSection parses the bolded Decisions section.
func LabeledSection(body string) []model.Decision {
	text, ok := section.Extract(body, section.Decisions, nestedHeadings...)
	if !ok {
		return nil
	}
	return parseRegion(text)
}

// LooseSubsections handles posts with outcome sub-headings but no Decisions
// heading. The region runs from the first Acceptances, Rejections or
// Waitlist(ed) sub-heading to the end of the post.
func LooseSubsections(body string) []model.Decision {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		h, ok := matchSubHeading(line)
		if !ok || h.outcome == model.OutcomeDeferred {
			continue
		}
		return parseRegion(strings.Join(lines[i:], "\n"))
	}
	return nil
}

var (
	resultsHeaderRe = regexp.MustCompile(`(?im)^[ \t]*(#{1,2})[ \t]+[^\n]*\b(?:results?|decisions?)\b[^\n]*$`)

	// headingEndRes[n] matches a heading of level n or higher.
	headingEndRes = map[int]*regexp.Regexp{
		1: regexp.MustCompile(`(?m)^[ \t]*#[ \t]`),
		2: regexp.MustCompile(`(?m)^[ \t]*#{1,2}[ \t]`),
	}
)

// HashHeader handles a "# Results" or "## Decisions" markdown heading. The
// region ends at the next heading of the same or higher level.
func HashHeader(body string) []model.Decision {
	loc := resultsHeaderRe.FindStringSubmatchIndex(body)
	if loc == nil {
		return nil
	}
	level := loc[3] - loc[2]
	rest := body[loc[1]:]
	if end := headingEndRes[level].FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return parseRegion(rest)
}
