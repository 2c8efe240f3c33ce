// Package monitoring exposes crawl metrics over HTTP and summarizes the
// ingest run log.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "admissions_ingest"

// Metrics holds the crawl's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	PostsFetched     prometheus.Counter
	PostsParsed      prometheus.Counter
	PostsSkipped     *prometheus.CounterVec
	OutcomesInserted prometheus.Counter
	Unresolved       prometheus.Counter
	WriteFailures    prometheus.Counter
	FetchErrors      prometheus.Counter
	PageDuration     prometheus.Histogram
	Cursor           prometheus.Gauge
}

// NewMetrics creates and registers the crawl collectors plus the standard
// Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		PostsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "posts_fetched_total",
			Help: "Posts returned by the archive.",
		}),
		PostsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "posts_parsed_total",
			Help: "Posts that yielded at least one decision.",
		}),
		PostsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "posts_skipped_total",
			Help: "Parsed posts that produced no new outcome, by reason.",
		}, []string{"reason"}),
		OutcomesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outcomes_inserted_total",
			Help: "Outcome rows written.",
		}),
		Unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "school_resolution_misses_total",
			Help: "Decision school names that matched no canonical school.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outcome_write_failures_total",
			Help: "Outcome inserts that failed after retries.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_errors_total",
			Help: "Archive page fetches that failed.",
		}),
		PageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "page_fetch_duration_seconds",
			Help:    "Archive page fetch latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cursor_timestamp_seconds",
			Help: "Created-at of the last fully processed post.",
		}),
	}
	reg.MustRegister(
		m.PostsFetched, m.PostsParsed, m.PostsSkipped, m.OutcomesInserted,
		m.Unresolved, m.WriteFailures, m.FetchErrors, m.PageDuration, m.Cursor,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// The methods below satisfy ingest.Observer.

func (m *Metrics) PageFetched(posts int, d time.Duration) {
	m.PostsFetched.Add(float64(posts))
	m.PageDuration.Observe(d.Seconds())
}

func (m *Metrics) FetchFailed(error) { m.FetchErrors.Inc() }

func (m *Metrics) PostParsed() { m.PostsParsed.Inc() }

func (m *Metrics) PostSkipped(reason string) { m.PostsSkipped.WithLabelValues(reason).Inc() }

func (m *Metrics) OutcomeInserted() { m.OutcomesInserted.Inc() }

func (m *Metrics) SchoolUnresolved(string) { m.Unresolved.Inc() }

func (m *Metrics) WriteFailed(error) { m.WriteFailures.Inc() }

func (m *Metrics) CursorAdvanced(ts time.Time) { m.Cursor.Set(float64(ts.Unix())) }
