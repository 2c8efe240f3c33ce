package fieldparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Sanity bounds; values outside are treated as misparses.
const (
	maxUnweightedGPA = 4.5
	maxWeightedGPA   = 6.0
	// unweightedCeiling separates unweighted from weighted when no tag is present.
	unweightedCeiling = 4.01
)

// GPA is a parsed GPA field.
type GPA struct {
	Unweighted *float64
	Weighted   *float64
}

// gpaTokenRe splits a field into whole numbers and letter runs. Numbers are
// matched whole so "93 UW" never reads as 3.
var gpaTokenRe = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+|[A-Za-z]+`)

var (
	valueTagGap = regexp.MustCompile(`^[\s(]*$`)      // "3.9 UW", "3.9(UW)"
	tagValueGap = regexp.MustCompile(`^\s*[:=]?\s*$`) // "UW: 3.9", "W 4.4"
)

type gpaTag int

const (
	tagNone gpaTag = iota
	tagUnweighted
	tagWeighted
)

func tagOf(word string) gpaTag {
	switch strings.ToLower(word) {
	case "uw", "unw", "u", "unweighted":
		return tagUnweighted
	case "w", "weighted":
		return tagWeighted
	}
	return tagNone
}

// gpaToken is a number (tag == tagNone) or a UW/W tag.
type gpaToken struct {
	start, end int
	tag        gpaTag
	value      float64
	used       bool
}

// ParseGPA extracts unweighted and weighted GPA from a field value. It tries
// explicit UW/W tags first, then a pair of numbers, then a single number.
func ParseGPA(s string) GPA {
	if g, ok := taggedGPA(s); ok {
		return g.bounded()
	}

	nums := numbers(s)
	switch {
	case len(nums) >= 2:
		lo, hi := nums[0], nums[1]
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo <= unweightedCeiling && hi > lo {
			return GPA{Unweighted: floatPtr(lo), Weighted: floatPtr(hi)}.bounded()
		}
		return single(nums[0]).bounded()
	case len(nums) == 1:
		return single(nums[0]).bounded()
	}
	return GPA{}
}

// taggedGPA pairs numbers with adjacent UW/W tags. Text that opens with a
// tag ("UW 3.9 W 4.4") is read label-first; text that opens with a number
// ("3.95 UW / 4.3 W") is read value-first. Numbers the preferred reading
// leaves unassigned get the other reading.
func taggedGPA(s string) (GPA, bool) {
	var toks []gpaToken
	for _, loc := range gpaTokenRe.FindAllStringIndex(s, -1) {
		word := s[loc[0]:loc[1]]
		if tag := tagOf(word); tag != tagNone {
			toks = append(toks, gpaToken{start: loc[0], end: loc[1], tag: tag})
			continue
		}
		if v, err := strconv.ParseFloat(word, 64); err == nil {
			toks = append(toks, gpaToken{start: loc[0], end: loc[1], value: v})
		}
	}
	if len(toks) == 0 {
		return GPA{}, false
	}

	var g GPA
	assign := func(tag gpaTag, v float64) bool {
		switch {
		case tag == tagUnweighted && g.Unweighted == nil:
			g.Unweighted = floatPtr(v)
		case tag == tagWeighted && g.Weighted == nil:
			g.Weighted = floatPtr(v)
		default:
			return false
		}
		return true
	}
	// claim gives number i to the tag at j when the gap between them fits.
	claim := func(i, j int, gap *regexp.Regexp) bool {
		if j < 0 || j >= len(toks) || toks[j].tag == tagNone || toks[j].used {
			return false
		}
		lo, hi := toks[i].end, toks[j].start
		if j < i {
			lo, hi = toks[j].end, toks[i].start
		}
		if !gap.MatchString(s[lo:hi]) || !assign(toks[j].tag, toks[i].value) {
			return false
		}
		toks[i].used, toks[j].used = true, true
		return true
	}

	labelFirst := toks[0].tag != tagNone
	for _, preferBefore := range []bool{labelFirst, !labelFirst} {
		for i := range toks {
			if toks[i].tag != tagNone || toks[i].used {
				continue
			}
			if preferBefore {
				claim(i, i-1, tagValueGap)
			} else {
				claim(i, i+1, valueTagGap)
			}
		}
	}
	return g, g.Unweighted != nil || g.Weighted != nil
}

func single(v float64) GPA {
	if v <= unweightedCeiling {
		return GPA{Unweighted: floatPtr(v)}
	}
	return GPA{Weighted: floatPtr(v)}
}

func (g GPA) bounded() GPA {
	if g.Unweighted != nil && (*g.Unweighted < 0 || *g.Unweighted > maxUnweightedGPA) {
		g.Unweighted = nil
	}
	if g.Weighted != nil && (*g.Weighted < 0 || *g.Weighted > maxWeightedGPA) {
		g.Weighted = nil
	}
	return g
}
