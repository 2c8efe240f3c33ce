package ingest

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sells-group/admissions-ingest/internal/resolve"
)

// StopReason says why a crawl ended.
type StopReason string

const (
	StopExhausted     StopReason = "exhausted"
	StopBudget        StopReason = "budget"
	StopCancelled     StopReason = "cancelled"
	StopFetchFailures StopReason = "fetch_failures"
)

// Stats are the crawl counters.
type Stats struct {
	Pages             int `json:"pages"`
	PostsFetched      int `json:"posts_fetched"`
	PostsParsed       int `json:"posts_parsed"`
	Unparsable        int `json:"posts_unparsable"`
	OutcomesInserted  int `json:"outcomes_inserted"`
	DuplicateOutcomes int `json:"duplicate_outcomes"`
	SkippedNoSchool   int `json:"posts_skipped_no_school"`
	SkippedDuplicate  int `json:"posts_skipped_duplicate"`
	WriteFailures     int `json:"write_failures"`
	FetchErrors       int `json:"fetch_errors"`
}

// Report is the result of one crawl.
type Report struct {
	Stats
	RunID      string               `json:"run_id,omitempty"`
	Start      time.Time            `json:"start"`
	Cursor     time.Time            `json:"cursor"`
	Stop       StopReason           `json:"stop"`
	Unresolved []resolve.Unresolved `json:"top_unresolved,omitempty"`
}

// StatsMap flattens the counters for the run log.
func (r *Report) StatsMap() map[string]any {
	return map[string]any{
		"pages":                   r.Pages,
		"posts_fetched":           r.PostsFetched,
		"posts_parsed":            r.PostsParsed,
		"posts_unparsable":        r.Unparsable,
		"outcomes_inserted":       r.OutcomesInserted,
		"duplicate_outcomes":      r.DuplicateOutcomes,
		"posts_skipped_no_school": r.SkippedNoSchool,
		"posts_skipped_duplicate": r.SkippedDuplicate,
		"write_failures":          r.WriteFailures,
		"fetch_errors":            r.FetchErrors,
		"stop":                    string(r.Stop),
	}
}

// Print writes the operator summary.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value int
	}{
		{"Posts fetched", r.PostsFetched},
		{"Posts with parseable decisions", r.PostsParsed},
		{"Outcomes inserted", r.OutcomesInserted},
		{"Posts skipped (no resolvable school)", r.SkippedNoSchool},
		{"Posts skipped (duplicate)", r.SkippedDuplicate},
		{"Write failures", r.WriteFailures},
		{"Fetch errors", r.FetchErrors},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%d\n", row.label, row.value)
	}
	fmt.Fprintf(tw, "Stopped:\t%s\n", r.Stop)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Unresolved) > 0 {
		fmt.Fprintf(w, "\nTop %d unresolved school names:\n", len(r.Unresolved))
		for _, u := range r.Unresolved {
			fmt.Fprintf(w, "  %5d  %s\n", u.Count, u.Name)
		}
	}

	_, err := fmt.Fprintf(w, "\nResume cursor: %s\n", r.Cursor.UTC().Format(time.RFC3339))
	return err
}
