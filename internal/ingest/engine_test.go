package ingest

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/admissions-ingest/internal/cursor"
	"github.com/sells-group/admissions-ingest/internal/model"
	"github.com/sells-group/admissions-ingest/internal/resilience"
	"github.com/sells-group/admissions-ingest/internal/resolve"
	"github.com/sells-group/admissions-ingest/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const resultsBody = `**Decisions**
**Acceptances:**
- MIT
- Hogwarts
**Rejections:**
- Cornell
`

const onlyUnknownBody = `**Decisions**
**Acceptances:**
- Hogwarts
`

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func post(id string, minutes int, body string) model.RawPost {
	return model.RawPost{ID: id, Body: body, CreatedAt: model.EpochSeconds(base.Add(time.Duration(minutes) * time.Minute).Unix())}
}

type fetchCall struct {
	after time.Time
	limit int
}

type fakeArchive struct {
	posts   []model.RawPost
	fail    int
	failErr error
	calls   []fetchCall
}

func (f *fakeArchive) FetchPage(_ context.Context, after time.Time, limit int) ([]model.RawPost, error) {
	f.calls = append(f.calls, fetchCall{after: after, limit: limit})
	if f.fail != 0 {
		if f.fail > 0 {
			f.fail--
		}
		return nil, f.failErr
	}
	var out []model.RawPost
	for _, p := range f.posts {
		if p.CreatedAt.Time().After(after) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// failingWriter rejects inserts for one school with a permanent error.
type failingWriter struct {
	Writer
	schoolID int64
}

func (w failingWriter) InsertOutcome(ctx context.Context, rec model.OutcomeRecord) (bool, error) {
	if rec.SchoolID == w.schoolID {
		return false, errors.New("violates check constraint")
	}
	return w.Writer.InsertOutcome(ctx, rec)
}

type harness struct {
	st     store.Store
	cur    cursor.Cursor
	res    *resolve.Resolver
	sleeps []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	schools := []model.CanonicalSchool{
		{ID: 1, Name: "Massachusetts Institute of Technology", Aliases: []string{"MIT"}},
		{ID: 2, Name: "Cornell University"},
	}
	_, err = st.ImportSchools(context.Background(), schools)
	require.NoError(t, err)

	res, err := resolve.New(schools, resolve.DefaultOptions())
	require.NoError(t, err)

	return &harness{st: st, cur: cursor.NewStoreCursor(st, store.DefaultCursorName), res: res}
}

func (h *harness) engine(a Archive, w Writer, opts Options) *Engine {
	if w == nil {
		w = h.st
	}
	if opts.WriteRetry.MaxAttempts == 0 {
		opts.WriteRetry = resilience.RetryConfig{MaxAttempts: 1}
	}
	e := New(a, w, h.res, h.cur, h.st, opts)
	e.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return e
}

func testOptions() Options {
	return Options{PageSize: 2, PageDelay: time.Second, ErrorBackoff: time.Minute, TopUnresolved: 5}
}

func TestRun_FullCrawl(t *testing.T) {
	h := newHarness(t)
	archive := &fakeArchive{posts: []model.RawPost{
		post("p1", 1, resultsBody),
		post("p2", 2, "just venting, no results yet"),
		post("p3", 3, onlyUnknownBody),
		post("p4", 4, "[removed]"),
		post("p5", 5, resultsBody),
	}}

	rep, err := h.engine(archive, nil, testOptions()).Run(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, StopExhausted, rep.Stop)
	assert.Equal(t, 3, rep.Pages)
	assert.Equal(t, 5, rep.PostsFetched)
	assert.Equal(t, 3, rep.PostsParsed)
	assert.Equal(t, 2, rep.Unparsable)
	assert.Equal(t, 4, rep.OutcomesInserted)
	assert.Equal(t, 1, rep.SkippedNoSchool)
	assert.Equal(t, 0, rep.SkippedDuplicate)
	assert.True(t, rep.Cursor.Equal(base.Add(5*time.Minute)))

	require.NotEmpty(t, rep.Unresolved)
	assert.Equal(t, "Hogwarts", rep.Unresolved[0].Name)
	assert.Equal(t, 3, rep.Unresolved[0].Count)

	// First call omits the cursor; later calls resume strictly after the
	// last processed post.
	require.Len(t, archive.calls, 4)
	assert.True(t, archive.calls[0].after.IsZero())
	assert.True(t, archive.calls[1].after.Equal(base.Add(2*time.Minute)))
	assert.True(t, archive.calls[3].after.Equal(base.Add(5*time.Minute)))

	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, h.sleeps)

	stored, ok, err := h.cur.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, stored.Equal(rep.Cursor))

	n, err := h.st.CountOutcomes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	runs, err := h.st.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].ID)
	assert.Equal(t, model.IngestRunComplete, runs[0].Status)
	assert.Equal(t, int64(4), runs[0].Inserted)
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	archive := &fakeArchive{posts: []model.RawPost{post("p1", 1, resultsBody), post("p2", 2, resultsBody)}}

	first, err := h.engine(archive, nil, testOptions()).Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, first.OutcomesInserted)

	second, err := h.engine(archive, nil, testOptions()).Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.OutcomesInserted)
	assert.Equal(t, 4, second.DuplicateOutcomes)
	assert.Equal(t, 2, second.SkippedDuplicate)

	n, err := h.st.CountOutcomes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestRun_FetchErrorRetriesSameCursor(t *testing.T) {
	h := newHarness(t)
	archive := &fakeArchive{
		posts:   []model.RawPost{post("p1", 1, resultsBody)},
		fail:    2,
		failErr: resilience.NewTransientError(errors.New("503 Service Unavailable"), 503),
	}
	start := base.Add(-time.Hour)

	rep, err := h.engine(archive, nil, testOptions()).Run(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.FetchErrors)
	assert.Equal(t, 2, rep.OutcomesInserted)

	require.Len(t, archive.calls, 4)
	for _, c := range archive.calls[:3] {
		assert.True(t, c.after.Equal(start), "retry must reuse the cursor")
	}
	assert.Equal(t, []time.Duration{time.Minute, time.Minute, time.Second}, h.sleeps)
}

func TestRun_FetchFailureBound(t *testing.T) {
	h := newHarness(t)
	archive := &fakeArchive{fail: -1, failErr: errors.New("connection refused")}
	opts := testOptions()
	opts.MaxConsecutiveFailures = 3
	start := base

	rep, err := h.engine(archive, nil, opts).Run(context.Background(), start)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, StopFetchFailures, rep.Stop)
	assert.Equal(t, 3, rep.FetchErrors)
	assert.True(t, rep.Cursor.Equal(start))
	assert.Len(t, archive.calls, 3)

	runs, err := h.st.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.IngestRunFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestRun_PostBudget(t *testing.T) {
	h := newHarness(t)
	archive := &fakeArchive{posts: []model.RawPost{
		post("p1", 1, resultsBody),
		post("p2", 2, resultsBody),
		post("p3", 3, resultsBody),
		post("p4", 4, resultsBody),
	}}
	opts := testOptions()
	opts.MaxPosts = 3

	rep, err := h.engine(archive, nil, opts).Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, StopBudget, rep.Stop)
	assert.Equal(t, 3, rep.PostsFetched)
	assert.True(t, rep.Cursor.Equal(base.Add(3*time.Minute)))

	require.Len(t, archive.calls, 2)
	assert.Equal(t, 2, archive.calls[0].limit)
	assert.Equal(t, 1, archive.calls[1].limit, "last page is trimmed to the remaining budget")
}

func TestRun_CancelledKeepsSafeCursor(t *testing.T) {
	h := newHarness(t)
	archive := &fakeArchive{posts: []model.RawPost{
		post("p1", 1, resultsBody),
		post("p2", 2, resultsBody),
		post("p3", 3, resultsBody),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := h.engine(archive, nil, testOptions())
	e.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	rep, err := e.Run(ctx, time.Time{})
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Equal(t, StopCancelled, rep.Stop)
	assert.True(t, rep.Cursor.Equal(base.Add(2*time.Minute)))
	assert.Len(t, archive.calls, 1)
}

func TestRun_WriteFailureSkipsDecision(t *testing.T) {
	h := newHarness(t)
	archive := &fakeArchive{posts: []model.RawPost{post("p1", 1, resultsBody)}}

	rep, err := h.engine(archive, failingWriter{Writer: h.st, schoolID: 2}, testOptions()).Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.WriteFailures)
	assert.Equal(t, 1, rep.OutcomesInserted)
	assert.True(t, rep.Cursor.Equal(base.Add(time.Minute)))
}

type countingObserver struct {
	nopObserver
	inserted, skipped, unresolved int
	cursor                        time.Time
}

func (o *countingObserver) OutcomeInserted()            { o.inserted++ }
func (o *countingObserver) PostSkipped(string)          { o.skipped++ }
func (o *countingObserver) SchoolUnresolved(string)     { o.unresolved++ }
func (o *countingObserver) CursorAdvanced(ts time.Time) { o.cursor = ts }

func TestRun_Observer(t *testing.T) {
	h := newHarness(t)
	archive := &fakeArchive{posts: []model.RawPost{post("p1", 1, resultsBody), post("p2", 2, "no template")}}
	obs := &countingObserver{}

	_, err := h.engine(archive, nil, testOptions()).WithObserver(obs).Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, obs.inserted)
	assert.Equal(t, 1, obs.skipped)
	assert.Equal(t, 1, obs.unresolved)
	assert.True(t, obs.cursor.Equal(base.Add(2*time.Minute)))
}

func TestReport_Print(t *testing.T) {
	rep := &Report{
		Stats:      Stats{PostsFetched: 10, PostsParsed: 7, OutcomesInserted: 15, SkippedNoSchool: 2, SkippedDuplicate: 1},
		Cursor:     base,
		Stop:       StopExhausted,
		Unresolved: []resolve.Unresolved{{Name: "UChi", Count: 4}},
	}
	var buf bytes.Buffer
	require.NoError(t, rep.Print(&buf))

	out := buf.String()
	assert.Contains(t, out, "Posts fetched:")
	assert.Contains(t, out, "Posts skipped (no resolvable school):")
	assert.Contains(t, out, "UChi")
	assert.Contains(t, out, "Resume cursor: 2024-03-01T00:00:00Z")
}
