// Package store persists canonical schools, outcome rows, the crawl cursor
// and the ingest run log.
package store

import (
	"context"
	"time"

	"github.com/sells-group/admissions-ingest/internal/model"
)

// DefaultCursorName keys the crawl cursor row when no name is configured.
const DefaultCursorName = "archive"

// Store defines the persistence interface for the ingest pipeline.
type Store interface {
	// Schools
	ListSchools(ctx context.Context) ([]model.CanonicalSchool, error)
	ImportSchools(ctx context.Context, schools []model.CanonicalSchool) (int64, error)

	// Outcomes. InsertOutcome reports false when (post, school) already exists.
	InsertOutcome(ctx context.Context, rec model.OutcomeRecord) (bool, error)
	CountOutcomes(ctx context.Context) (int64, error)

	// Cursor. AdvanceCursor never moves a cursor backwards; SetCursor does.
	GetCursor(ctx context.Context, name string) (time.Time, bool, error)
	AdvanceCursor(ctx context.Context, name string, ts time.Time) error
	SetCursor(ctx context.Context, name string, ts time.Time) error

	// Runs
	StartRun(ctx context.Context, cursorStart time.Time) (*model.IngestRun, error)
	FinishRun(ctx context.Context, run *model.IngestRun) error
	ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// outcomeColumns is the insert column order shared by both drivers.
var outcomeColumns = []string{
	"source_post_id", "source_permalink", "school_id", "decision",
	"application_round", "admission_cycle",
	"gpa_unweighted", "gpa_weighted", "sat", "act", "ap_count", "ib_count", "honors_count",
	"gender", "race_ethnicity", "state_code", "high_school_type",
	"first_generation", "legacy", "locale",
	"intended_major", "data_source", "verification_tier",
}

var outcomeKey = []string{"source_post_id", "school_id"}

// outcomeValues returns rec's values in outcomeColumns order. Nil pointers
// and empty optional strings become untyped nil so either driver binds NULL.
func outcomeValues(rec model.OutcomeRecord) []any {
	a, d := rec.Academics, rec.Demographics
	return []any{
		rec.SourcePostID, nullString(rec.SourcePermalink), rec.SchoolID, string(rec.Decision),
		nullString(string(rec.ApplicationRound)), rec.AdmissionCycle,
		deref(a.GPAUnweighted), deref(a.GPAWeighted), deref(a.SAT), deref(a.ACT),
		deref(a.APCount), deref(a.IBCount), deref(a.HonorsCount),
		deref(d.Gender), deref(d.RaceEthnicity), deref(d.StateCode), deref(d.HighSchoolType),
		deref(d.FirstGeneration), deref(d.Legacy), deref(d.Locale),
		deref(rec.IntendedMajor), rec.DataSource, rec.VerificationTier,
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func runLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
