package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/admissions-ingest/internal/model"
)

// RunSnapshot summarizes the ingest run log over a lookback window.
type RunSnapshot struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`
	Inserted int64   `json:"outcomes_inserted"`

	// LastCursor is the furthest end cursor any run in the window reached.
	LastCursor *time.Time `json:"last_cursor,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error)
}

// Collector builds run snapshots from the run log.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new run-log collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// maxSnapshotRuns bounds how many recent runs a snapshot reads.
const maxSnapshotRuns = 1000

// Collect summarizes runs started within the last lookbackHours.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*RunSnapshot, error) {
	now := c.now().UTC()
	snap := &RunSnapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, maxSnapshotRuns)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.Total++
		snap.Inserted += r.Inserted
		switch r.Status {
		case model.IngestRunComplete:
			snap.Complete++
		case model.IngestRunFailed:
			snap.Failed++
		case model.IngestRunRunning:
			snap.Running++
		}
		if r.CursorEnd != nil && (snap.LastCursor == nil || r.CursorEnd.After(*snap.LastCursor)) {
			end := *r.CursorEnd
			snap.LastCursor = &end
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	return snap, nil
}
