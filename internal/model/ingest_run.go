package model

import "time"

// IngestRunStatus is the lifecycle state of a crawl invocation.
type IngestRunStatus string

const (
	IngestRunRunning  IngestRunStatus = "running"
	IngestRunComplete IngestRunStatus = "complete"
	IngestRunFailed   IngestRunStatus = "failed"
)

// IngestRun records one crawl invocation in the ingest_runs table.
type IngestRun struct {
	ID          string          `json:"id"`
	Status      IngestRunStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CursorStart time.Time       `json:"cursor_start"`
	CursorEnd   *time.Time      `json:"cursor_end,omitempty"`
	Inserted    int64           `json:"outcomes_inserted"`
	Error       string          `json:"error,omitempty"`
	Stats       map[string]any  `json:"stats,omitempty"`
}
