package decision

import (
	"regexp"
	"strings"

	"github.com/sells-group/admissions-ingest/internal/model"
)

// subHeading is a recognised outcome sub-heading such as "Acceptances:".
type subHeading struct {
	outcome model.Outcome
	round   model.Round
	inline  string
}

var (
	headingDecorRe = regexp.MustCompile("[*_~`]+")
	headingLeadRe  = regexp.MustCompile(`^[ \t>#]*(?:[-+•][ \t]+)?`)

	subHeadingRe = regexp.MustCompile(`(?i)^(acceptances?|accepted|admitted|admits|waitlist(?:ed|s)?|wait[\s-]listed|rejections?|rejected|denied|denials|deferrals?|deferred|deferments?)\s*(\([^)]*\))?\s*(?::\s*(.*))?$`)

	hashHeadingRe = regexp.MustCompile(`^\s*#{1,6}\s+\S`)
	boldLineRe    = regexp.MustCompile(`^[ \t>]*\*\*\s*[A-Z][^*\n]*\*\*\s*:?\s*$`)

	inlineSplitRe = regexp.MustCompile(`\s*[,;]\s*`)
	pairRe        = regexp.MustCompile(`^(.+?)\s*(?::|\s[-–—]+\s)\s*(.+)$`)
)

var subHeadingOutcomes = map[string]model.Outcome{
	"accept": model.OutcomeAccepted,
	"admit":  model.OutcomeAccepted,
	"wait":   model.OutcomeWaitlisted,
	"reject": model.OutcomeRejected,
	"deni":   model.OutcomeRejected,
	"defer":  model.OutcomeDeferred,
}

// nestedHeadings are bold headings that sit inside a Decisions section.
var nestedHeadings = []string{
	"Accept", "Admit", "Wait", "Reject", "Denied", "Denials", "Defer",
	"Early", "Regular", "Rolling",
}

// matchSubHeading reports whether line is an outcome sub-heading.
func matchSubHeading(line string) (subHeading, bool) {
	plain := headingDecorRe.ReplaceAllString(line, "")
	plain = strings.TrimSpace(headingLeadRe.ReplaceAllString(plain, ""))
	m := subHeadingRe.FindStringSubmatch(plain)
	if m == nil {
		return subHeading{}, false
	}
	word := strings.ToLower(m[1])
	var h subHeading
	for prefix, o := range subHeadingOutcomes {
		if strings.HasPrefix(word, prefix) {
			h.outcome = o
			break
		}
	}
	if h.outcome == "" {
		return subHeading{}, false
	}
	h.round = RoundOf(m[2])
	h.inline = strings.TrimSpace(m[3])
	return h, true
}

func isOtherHeading(line string) bool {
	return hashHeadingRe.MatchString(line) || boldLineRe.MatchString(line)
}

// collector accumulates decisions, dropping noise and repeated pairs.
type collector struct {
	out  []model.Decision
	seen map[string]bool
}

func (c *collector) add(raw string, outcome model.Outcome, fallback model.Round) {
	name, round := Clean(raw)
	if !IsSchoolName(name) {
		return
	}
	if round == model.RoundNone {
		round = fallback
	}
	key := strings.ToLower(name) + "\x00" + string(outcome)
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.out = append(c.out, model.Decision{
		SchoolNameText: strings.TrimSpace(raw),
		SchoolName:     name,
		Outcome:        outcome,
		Round:          round,
	})
}

// parseRegion extracts decisions from a decisions region. Lines belong to the
// most recent outcome sub-heading until another heading closes it. A region
// with no sub-headings falls back to "School: Outcome" lines.
func parseRegion(region string) []model.Decision {
	var c collector
	var cur *subHeading
	sawHeading := false

	for _, line := range strings.Split(region, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if h, ok := matchSubHeading(line); ok {
			sawHeading = true
			cur = &h
			if h.inline != "" {
				for _, part := range inlineSplitRe.Split(h.inline, -1) {
					c.add(part, h.outcome, h.round)
				}
			}
			continue
		}
		if isOtherHeading(line) {
			cur = nil
			continue
		}
		if cur != nil {
			c.add(line, cur.outcome, cur.round)
		}
	}

	if !sawHeading {
		return parsePairs(region)
	}
	return c.out
}

// parsePairs reads "School: Outcome" and "School - Outcome" lines.
func parsePairs(region string) []model.Decision {
	var c collector
	for _, line := range strings.Split(region, "\n") {
		m := pairRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		outcome, ok := model.ParseOutcome(stripOutcomeDecor(m[2]))
		if !ok {
			continue
		}
		c.add(m[1], outcome, RoundOf(m[2]))
	}
	return c.out
}

func stripOutcomeDecor(s string) string {
	s = spoilerRe.ReplaceAllString(s, "")
	return strings.TrimSpace(headingDecorRe.ReplaceAllString(s, ""))
}
