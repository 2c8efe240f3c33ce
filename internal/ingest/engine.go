// Package ingest runs the resumable crawl: fetch a page after the cursor,
// parse and resolve each post, insert outcomes idempotently, advance.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/admissions-ingest/internal/cursor"
	"github.com/sells-group/admissions-ingest/internal/model"
	"github.com/sells-group/admissions-ingest/internal/postparse"
	"github.com/sells-group/admissions-ingest/internal/resilience"
	"github.com/sells-group/admissions-ingest/internal/resolve"
)

// Archive fetches ascending pages of posts created after a cursor.
type Archive interface {
	FetchPage(ctx context.Context, after time.Time, limit int) ([]model.RawPost, error)
}

// Writer persists outcome rows. InsertOutcome reports false for a duplicate.
type Writer interface {
	InsertOutcome(ctx context.Context, rec model.OutcomeRecord) (bool, error)
}

// Resolver maps cleaned school names to canonical schools.
type Resolver interface {
	Resolve(name string) (resolve.Match, bool)
	TopUnresolved(n int) []resolve.Unresolved
}

// RunLog records one row per crawl invocation. It is optional.
type RunLog interface {
	StartRun(ctx context.Context, cursorStart time.Time) (*model.IngestRun, error)
	FinishRun(ctx context.Context, run *model.IngestRun) error
}

// Skip reasons reported to the Observer.
const (
	SkipNoSchool   = "no_school"
	SkipDuplicate  = "duplicate"
	SkipUnparsable = "unparsable"
)

// Observer receives crawl events. monitoring.Metrics implements it.
type Observer interface {
	PageFetched(posts int, d time.Duration)
	FetchFailed(err error)
	PostParsed()
	PostSkipped(reason string)
	OutcomeInserted()
	SchoolUnresolved(name string)
	WriteFailed(err error)
	CursorAdvanced(ts time.Time)
}

// Unlimited is the default post budget.
const Unlimited = 0

// Options tunes the crawl loop.
type Options struct {
	PageSize               int
	MaxPosts               int // 0 = no budget
	PageDelay              time.Duration
	ErrorBackoff           time.Duration
	MaxConsecutiveFailures int // 0 = retry fetches forever
	TopUnresolved          int
	WriteRetry             resilience.RetryConfig
}

// Engine is the single sequential crawl worker.
type Engine struct {
	archive  Archive
	writer   Writer
	resolver Resolver
	cursor   cursor.Cursor
	runs     RunLog
	obs      Observer
	opts     Options

	parse func(model.RawPost) *model.ParsedPost
	sleep func(ctx context.Context, d time.Duration) error
	log   *zap.Logger
}

// New creates an Engine. runs may be nil.
func New(a Archive, w Writer, r Resolver, c cursor.Cursor, runs RunLog, opts Options) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.TopUnresolved <= 0 {
		opts.TopUnresolved = 20
	}
	return &Engine{
		archive:  a,
		writer:   w,
		resolver: r,
		cursor:   c,
		runs:     runs,
		obs:      nopObserver{},
		opts:     opts,
		parse:    postparse.Parse,
		sleep:    sleepCtx,
		log:      zap.L().With(zap.String("component", "ingest")),
	}
}

// WithObserver attaches an event observer.
func (e *Engine) WithObserver(o Observer) *Engine {
	if o != nil {
		e.obs = o
	}
	return e
}

// Run crawls from start until the archive is exhausted, the post budget is
// spent, the fetch failure bound trips, or ctx is cancelled. The report is
// always returned; its Cursor is the position a restart should resume from.
func (e *Engine) Run(ctx context.Context, start time.Time) (*Report, error) {
	rep := &Report{Start: start.UTC(), Cursor: start.UTC()}
	e.log.Info("ingest: starting crawl",
		zap.Time("after", rep.Start),
		zap.Int("page_size", e.opts.PageSize),
		zap.Int("max_posts", e.opts.MaxPosts),
	)

	run := e.startRun(ctx, rep.Start)
	err := e.loop(ctx, rep)
	rep.Unresolved = e.resolver.TopUnresolved(e.opts.TopUnresolved)
	e.finishRun(run, rep, err)

	fields := []zap.Field{
		zap.String("stop", string(rep.Stop)),
		zap.Time("cursor", rep.Cursor),
		zap.Int("posts_fetched", rep.PostsFetched),
		zap.Int("outcomes_inserted", rep.OutcomesInserted),
	}
	if err != nil {
		e.log.Error("ingest: crawl stopped", append(fields, zap.Error(err))...)
		return rep, err
	}
	e.log.Info("ingest: crawl complete", fields...)
	return rep, nil
}

func (e *Engine) loop(ctx context.Context, rep *Report) error {
	breaker := resilience.NewCircuitBreaker(e.opts.MaxConsecutiveFailures, func(n int) {
		e.log.Error("ingest: fetch failure bound reached", zap.Int("consecutive_failures", n))
	})

	for {
		if err := ctx.Err(); err != nil {
			rep.Stop = StopCancelled
			return eris.Wrap(err, "ingest: cancelled")
		}

		limit := e.opts.PageSize
		if e.opts.MaxPosts > 0 {
			remaining := e.opts.MaxPosts - rep.PostsFetched
			if remaining <= 0 {
				rep.Stop = StopBudget
				return nil
			}
			limit = min(limit, remaining)
		}

		began := time.Now()
		posts, err := e.archive.FetchPage(ctx, rep.Cursor, limit)
		if err != nil {
			if ctx.Err() != nil {
				rep.Stop = StopCancelled
				return eris.Wrap(ctx.Err(), "ingest: cancelled")
			}
			rep.FetchErrors++
			e.obs.FetchFailed(err)
			if openErr := breaker.Record(err); openErr != nil {
				rep.Stop = StopFetchFailures
				return eris.Wrap(openErr, "ingest: fetch page")
			}
			e.log.Warn("ingest: fetch failed, backing off",
				zap.Time("after", rep.Cursor),
				zap.Duration("backoff", e.opts.ErrorBackoff),
				zap.String("class", resilience.ClassifyError(err)),
				zap.Error(err),
			)
			if err := e.sleep(ctx, e.opts.ErrorBackoff); err != nil {
				rep.Stop = StopCancelled
				return eris.Wrap(err, "ingest: cancelled")
			}
			continue
		}
		_ = breaker.Record(nil)
		e.obs.PageFetched(len(posts), time.Since(began))

		if len(posts) == 0 {
			rep.Stop = StopExhausted
			return nil
		}
		rep.Pages++

		var last time.Time
		for _, p := range posts {
			rep.PostsFetched++
			e.processPost(ctx, p, rep)
			if ts := p.CreatedAt.Time(); ts.After(last) {
				last = ts
			}
		}

		// A page interrupted by cancellation is not fully processed; leave
		// the cursor before it so a restart replays it.
		if err := ctx.Err(); err != nil {
			rep.Stop = StopCancelled
			return eris.Wrap(err, "ingest: cancelled")
		}
		if last.After(rep.Cursor) {
			rep.Cursor = last
		}
		if err := e.cursor.Save(ctx, rep.Cursor); err != nil {
			e.log.Warn("ingest: persist cursor failed", zap.Time("cursor", rep.Cursor), zap.Error(err))
		}
		e.obs.CursorAdvanced(rep.Cursor)
		e.log.Debug("ingest: page processed",
			zap.Int("page", rep.Pages),
			zap.Int("posts", len(posts)),
			zap.Time("cursor", rep.Cursor),
		)

		if e.opts.MaxPosts > 0 && rep.PostsFetched >= e.opts.MaxPosts {
			rep.Stop = StopBudget
			return nil
		}
		if err := e.sleep(ctx, e.opts.PageDelay); err != nil {
			rep.Stop = StopCancelled
			return eris.Wrap(err, "ingest: cancelled")
		}
	}
}

// processPost parses one post and writes an outcome for every resolvable
// decision. Nothing here fails the crawl.
func (e *Engine) processPost(ctx context.Context, raw model.RawPost, rep *Report) {
	parsed := e.parse(raw)
	if parsed == nil {
		rep.Unparsable++
		e.obs.PostSkipped(SkipUnparsable)
		return
	}
	rep.PostsParsed++
	e.obs.PostParsed()

	var resolved, inserted, duplicates int
	for _, d := range parsed.Decisions {
		m, ok := e.resolver.Resolve(d.SchoolName)
		if !ok {
			e.obs.SchoolUnresolved(d.SchoolName)
			continue
		}
		resolved++

		rec := model.NewOutcomeRecord(parsed, d, m.School.ID)
		isNew, err := resilience.DoVal(ctx, e.writeRetry(), func(ctx context.Context) (bool, error) {
			return e.writer.InsertOutcome(ctx, rec)
		})
		switch {
		case err != nil:
			rep.WriteFailures++
			e.obs.WriteFailed(err)
			e.log.Warn("ingest: write failed, skipping decision",
				zap.String("post_id", raw.ID),
				zap.Int64("school_id", m.School.ID),
				zap.Error(err),
			)
		case isNew:
			inserted++
			rep.OutcomesInserted++
			e.obs.OutcomeInserted()
		default:
			duplicates++
			rep.DuplicateOutcomes++
		}
	}

	switch {
	case resolved == 0:
		rep.SkippedNoSchool++
		e.obs.PostSkipped(SkipNoSchool)
	case inserted == 0 && duplicates > 0:
		rep.SkippedDuplicate++
		e.obs.PostSkipped(SkipDuplicate)
	}
}

func (e *Engine) writeRetry() resilience.RetryConfig {
	cfg := e.opts.WriteRetry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("ingest", "insert_outcome")
	}
	return cfg
}

func (e *Engine) startRun(ctx context.Context, start time.Time) *model.IngestRun {
	if e.runs == nil {
		return nil
	}
	run, err := e.runs.StartRun(ctx, start)
	if err != nil {
		e.log.Warn("ingest: record run start failed", zap.Error(err))
		return nil
	}
	return run
}

func (e *Engine) finishRun(run *model.IngestRun, rep *Report, runErr error) {
	if run == nil {
		return
	}
	rep.RunID = run.ID
	run.Status = model.IngestRunComplete
	if runErr != nil {
		run.Status = model.IngestRunFailed
		run.Error = runErr.Error()
	}
	end := rep.Cursor
	run.CursorEnd = &end
	run.Inserted = int64(rep.OutcomesInserted)
	run.Stats = rep.StatsMap()

	// The crawl context may already be cancelled; the run row still needs
	// its final state.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.runs.FinishRun(ctx, run); err != nil {
		e.log.Warn("ingest: record run finish failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCancelled reports whether err came from context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type nopObserver struct{}

func (nopObserver) PageFetched(int, time.Duration) {}
func (nopObserver) FetchFailed(error)              {}
func (nopObserver) PostParsed()                    {}
func (nopObserver) PostSkipped(string)             {}
func (nopObserver) OutcomeInserted()               {}
func (nopObserver) SchoolUnresolved(string)        {}
func (nopObserver) WriteFailed(error)              {}
func (nopObserver) CursorAdvanced(time.Time)       {}
