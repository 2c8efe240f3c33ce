package model

import (
	"bytes"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// EpochSeconds is a Unix timestamp as delivered by the archive API. The API
// is inconsistent about the JSON type, so integers, floats and numeric
// strings are all accepted.
type EpochSeconds int64

// UnmarshalJSON implements json.Unmarshaler.
func (e *EpochSeconds) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		*e = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return eris.Wrapf(err, "model: parse epoch seconds %q", string(b))
	}
	*e = EpochSeconds(int64(f))
	return nil
}

// Time converts the epoch value to a UTC time.
func (e EpochSeconds) Time() time.Time {
	return time.Unix(int64(e), 0).UTC()
}

// RawPost is a post exactly as fetched from the archive. It is never mutated.
type RawPost struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Body      string       `json:"selftext"`
	Flair     string       `json:"link_flair_text"`
	CreatedAt EpochSeconds `json:"created_utc"`
	Permalink string       `json:"permalink"`
	Score     int          `json:"score"`
}

// Demographics holds the applicant fields from the Demographics section.
// Every field is optional.
type Demographics struct {
	Gender          *string `json:"gender,omitempty"`
	RaceEthnicity   *string `json:"race_ethnicity,omitempty"`
	StateCode       *string `json:"state_code,omitempty"`
	HighSchoolType  *string `json:"high_school_type,omitempty"`
	FirstGeneration *bool   `json:"first_generation,omitempty"`
	Legacy          *bool   `json:"legacy,omitempty"`
	Locale          *string `json:"locale,omitempty"`
}

// Academics holds GPA, test scores and course counts.
type Academics struct {
	GPAUnweighted *float64 `json:"gpa_unweighted,omitempty"`
	GPAWeighted   *float64 `json:"gpa_weighted,omitempty"`
	SAT           *int     `json:"sat,omitempty"`
	ACT           *int     `json:"act,omitempty"`
	APCount       *int     `json:"ap_count,omitempty"`
	IBCount       *int     `json:"ib_count,omitempty"`
	HonorsCount   *int     `json:"honors_count,omitempty"`
}

// ParsedPost is the structured form of one RawPost. Decisions is never empty.
type ParsedPost struct {
	PostID           string       `json:"post_id"`
	Permalink        string       `json:"permalink,omitempty"`
	Demographics     Demographics `json:"demographics"`
	Academics        Academics    `json:"academics"`
	IntendedMajor    *string      `json:"intended_major,omitempty"`
	Extracurriculars []string     `json:"extracurriculars,omitempty"`
	Decisions        []Decision   `json:"decisions"`
	AdmissionCycle   string       `json:"admission_cycle"`
}
