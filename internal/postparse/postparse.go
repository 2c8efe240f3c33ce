// Package postparse turns a RawPost into a ParsedPost by combining the section
// extractor, field parsers and decision list parser.
package postparse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/admissions-ingest/internal/decision"
	"github.com/sells-group/admissions-ingest/internal/fieldparse"
	"github.com/sells-group/admissions-ingest/internal/model"
	"github.com/sells-group/admissions-ingest/internal/section"
)

const (
	// MaxExtracurriculars caps the activities kept per post.
	MaxExtracurriculars = 10
	// MaxActivityLength caps each activity in runes.
	MaxActivityLength = 200

	// cycleStartMonth is the month in which a new admission cycle opens.
	cycleStartMonth = time.August
)

var (
	activityBulletRe = regexp.MustCompile(`^\s*(?:[-*+•]+|\d{1,2}[.)]|#\d{1,2}[.):]?)\s*`)
	removedBodies    = map[string]bool{"[removed]": true, "[deleted]": true}
)

// Parse returns the structured form of raw, or nil when the post carries no
// usable decisions.
func Parse(raw model.RawPost) *model.ParsedPost {
	body := normalizeBody(raw.Body)
	if body == "" || removedBodies[body] {
		return nil
	}

	decisions, strategy := decision.Parse(body)
	if len(decisions) == 0 {
		return nil
	}
	zap.L().Debug("postparse: decisions found",
		zap.String("post_id", raw.ID),
		zap.String("strategy", strategy),
		zap.Int("count", len(decisions)),
	)

	p := &model.ParsedPost{
		PostID:         raw.ID,
		Permalink:      raw.Permalink,
		Decisions:      decisions,
		AdmissionCycle: AdmissionCycle(raw.CreatedAt.Time()),
	}

	demo, _ := section.Extract(body, section.Demographics)
	p.Demographics = parseDemographics(demo)

	acad, _ := section.Extract(body, section.Academics)
	testing, _ := section.Extract(body, section.Testing)
	p.Academics = parseAcademics(acad, testing)

	p.IntendedMajor = parseMajor(body, demo)

	if ec, ok := section.Extract(body, section.Extracurriculars); ok {
		p.Extracurriculars = parseActivities(ec)
	}
	return p
}

// AdmissionCycle labels the cycle a post belongs to. Posts from August onward
// belong to the cycle starting that year; earlier posts to the one before.
func AdmissionCycle(t time.Time) string {
	t = t.UTC()
	start := t.Year()
	if t.Month() < cycleStartMonth {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

func normalizeBody(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}

func parseDemographics(text string) model.Demographics {
	var d model.Demographics
	if text == "" {
		return d
	}
	if v, ok := section.Field(text, "gender", "sex"); ok {
		d.Gender = fieldparse.Gender(v)
	}
	if v, ok := section.Field(text, "race", "ethnicity"); ok {
		d.RaceEthnicity = fieldparse.RaceEthnicity(v)
	}
	if v, ok := section.Field(text, "residence", "location", "state"); ok {
		d.StateCode = fieldparse.State(v)
		d.Locale = fieldparse.Locale(v)
	}
	if v, ok := section.Field(text, "type of school", "school type", "high school"); ok {
		d.HighSchoolType = fieldparse.SchoolType(v)
	}

	if v, ok := section.Field(text, "first gen", "first-gen", "first generation"); ok {
		d.FirstGeneration = fieldparse.Flag(v)
	}
	if v, ok := section.Field(text, "legacy"); ok {
		d.Legacy = fieldparse.Flag(v)
	}
	if hooks, ok := section.Field(text, "hook"); ok {
		yes := true
		if d.FirstGeneration == nil && fieldparse.MentionsFirstGen(hooks) {
			d.FirstGeneration = &yes
		}
		if d.Legacy == nil && fieldparse.MentionsLegacy(hooks) {
			d.Legacy = &yes
		}
	}
	return d
}

func parseAcademics(acad, testing string) model.Academics {
	var a model.Academics
	if v, ok := section.Field(acad, "gpa"); ok {
		g := fieldparse.ParseGPA(v)
		a.GPAUnweighted, a.GPAWeighted = g.Unweighted, g.Weighted
	}

	a.SAT = fieldparse.SAT(testing)
	if a.SAT == nil {
		a.SAT = fieldparse.SAT(acad)
	}
	a.ACT = fieldparse.ACT(testing)
	if a.ACT == nil {
		a.ACT = fieldparse.ACT(acad)
	}

	c := fieldparse.ParseCourses(acad + "\n" + testing)
	a.APCount, a.IBCount, a.HonorsCount = c.AP, c.IB, c.Honors
	return a
}

func parseMajor(body, demo string) *string {
	if text, ok := section.Extract(body, section.IntendedMajor); ok {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(activityBulletRe.ReplaceAllString(line, ""))
			if line != "" {
				return fieldparse.Major(line)
			}
		}
	}
	if v, ok := section.Field(demo, "major"); ok {
		return fieldparse.Major(v)
	}
	return nil
}

func parseActivities(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(activityBulletRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out = append(out, fieldparse.TruncateRunes(line, MaxActivityLength))
		if len(out) == MaxExtracurriculars {
			break
		}
	}
	return out
}
