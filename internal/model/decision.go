package model

import (
	"regexp"
	"strings"
)

// Outcome is the admissions decision a school returned.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeRejected   Outcome = "rejected"
	OutcomeWaitlisted Outcome = "waitlisted"
	OutcomeDeferred   Outcome = "deferred"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAccepted, OutcomeRejected, OutcomeWaitlisted, OutcomeDeferred:
		return true
	}
	return false
}

// Round is the application round. The zero value means unknown.
type Round string

const (
	RoundNone          Round = ""
	RoundEarlyDecision Round = "early_decision"
	RoundEarlyAction   Round = "early_action"
	RoundRegular       Round = "regular"
	RoundRolling       Round = "rolling"
)

// Decision is one (school mention, outcome) pair from a post.
type Decision struct {
	SchoolNameText string  `json:"school_name_text"`
	SchoolName     string  `json:"school_name"`
	Outcome        Outcome `json:"outcome"`
	Round          Round   `json:"application_round,omitempty"`
}

// outcomeTransitionRe splits "Deferred -> Accepted" style progressions.
var outcomeTransitionRe = regexp.MustCompile(`(?i)->|=>|→|>|\bthen\b`)

// ParseOutcome classifies free text such as "Accepted!", "WL" or "denied".
// For a progression like "Deferred -> Accepted" or "waitlisted then rejected"
// the latest outcome wins. It returns false when the text names no known
// outcome.
func ParseOutcome(s string) (Outcome, bool) {
	steps := outcomeTransitionRe.Split(s, -1)
	for i := len(steps) - 1; i >= 0; i-- {
		if o, ok := classifyOutcome(steps[i]); ok {
			return o, true
		}
	}
	return "", false
}

func classifyOutcome(s string) (Outcome, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return "", false
	case strings.Contains(s, "off the waitlist"), strings.Contains(s, "off waitlist"), strings.Contains(s, "off the wl"):
		return OutcomeAccepted, true
	case strings.Contains(s, "waitlist"), strings.Contains(s, "wait list"), strings.Contains(s, "wait-list"),
		s == "wl", strings.HasPrefix(s, "wl "), strings.HasPrefix(s, "wl!"):
		return OutcomeWaitlisted, true
	case strings.Contains(s, "defer"):
		return OutcomeDeferred, true
	case strings.Contains(s, "reject"), strings.Contains(s, "denied"), strings.Contains(s, "deny"),
		strings.Contains(s, "denial"), s == "rej", s == "no":
		return OutcomeRejected, true
	case strings.Contains(s, "accept"), strings.Contains(s, "admit"), strings.Contains(s, "likely letter"),
		s == "in", strings.HasPrefix(s, "in!"), s == "yes":
		return OutcomeAccepted, true
	}
	return "", false
}
