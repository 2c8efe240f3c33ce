package fieldparse

import (
	"regexp"
	"strconv"
	"strings"
)

// instrument describes a standardized test and its legal score range.
type instrument struct {
	before *regexp.Regexp // label then value
	after  *regexp.Regexp // value then label
	skip   *regexp.Regexp // text past this point is not the composite
	min    int
	max    int
}

var (
	satInstrument = instrument{
		before: regexp.MustCompile(`\bSAT(?:\s*I)?\b[^0-9\n]{0,20}?(\d{1,2},?\d{3}|\d{3,4})\b`),
		after:  regexp.MustCompile(`\b(\d{1,2},?\d{3}|\d{3,4})\s*(?:on\s+(?:the\s+)?)?(?:\(?\s*)SAT\b`),
		skip:   regexp.MustCompile(`(?i)\bSAT\s*(?:II|2)\b|subject`),
		min:    400,
		max:    1600,
	}
	actInstrument = instrument{
		before: regexp.MustCompile(`\bACT\b[^0-9\n]{0,20}?(\d{1,2})\b`),
		after:  regexp.MustCompile(`\b(\d{1,2})\s*(?:on\s+(?:the\s+)?)?(?:\(?\s*)ACT\b`),
		min:    1,
		max:    36,
	}
)

// SAT returns the composite SAT score mentioned in s, if it is in 400–1600.
func SAT(s string) *int { return satInstrument.parse(s) }

// ACT returns the composite ACT score mentioned in s, if it is in 1–36.
func ACT(s string) *int { return actInstrument.parse(s) }

func (in instrument) parse(s string) *int {
	for _, line := range strings.Split(s, "\n") {
		if in.skip != nil {
			if loc := in.skip.FindStringIndex(line); loc != nil {
				line = line[:loc[0]]
			}
		}
		for _, re := range []*regexp.Regexp{in.before, in.after} {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			f := Number(m[1])
			if f == nil {
				continue
			}
			v := int(*f)
			if v < in.min || v > in.max {
				// Out of range is a discard, not a clamp.
				return nil
			}
			return &v
		}
	}
	return nil
}

// Courses holds advanced course counts.
type Courses struct {
	AP     *int
	IB     *int
	Honors *int
}

var (
	apCountRe     = regexp.MustCompile(`\b(\d{1,2})\s*(?:AP|APs|AP's)\b`)
	ibCountRe     = regexp.MustCompile(`\b(\d{1,2})\s*(?:IB|IBs|IB's)\b`)
	honorsCountRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:honors|hon)\b`)
)

// ParseCourses extracts the first AP, IB and Honors course counts from the
// combined academics and testing text.
func ParseCourses(s string) Courses {
	return Courses{
		AP:     firstInt(apCountRe, s),
		IB:     firstInt(ibCountRe, s),
		Honors: firstInt(honorsCountRe, s),
	}
}

func firstInt(re *regexp.Regexp, s string) *int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &v
}
