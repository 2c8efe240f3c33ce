package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/admissions-ingest/internal/archive"
	"github.com/sells-group/admissions-ingest/internal/config"
	"github.com/sells-group/admissions-ingest/internal/cursor"
	"github.com/sells-group/admissions-ingest/internal/fetcher"
	"github.com/sells-group/admissions-ingest/internal/ingest"
	"github.com/sells-group/admissions-ingest/internal/model"
	"github.com/sells-group/admissions-ingest/internal/monitoring"
	"github.com/sells-group/admissions-ingest/internal/resilience"
)

var (
	crawlMaxPosts    int
	crawlAfter       string
	crawlMetricsAddr string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the archive and ingest admissions outcomes",
	Long:  "Fetches pages of posts after the stored cursor, parses and resolves each post, inserts one outcome per (post, school) and advances the cursor. Interrupting the crawl keeps the last safe cursor.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		applyCrawlFlags(cmd, cfg)
		if err := cfg.Validate("crawl"); err != nil {
			return err
		}
		override, err := config.ParseTimestamp(crawlAfter)
		if err != nil {
			return eris.Wrap(err, "crawl: --after")
		}
		fallback, err := cfg.Archive.StartAfterTime()
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cur, closeCursor, err := openCursor(cfg, st)
		if err != nil {
			return err
		}
		defer closeCursor()

		// Load schools and the resume position concurrently.
		var (
			schools []model.CanonicalSchool
			start   time.Time
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			schools, err = st.ListSchools(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			start, err = cursor.Resume(gctx, cur, override, fallback)
			return err
		})
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "crawl: start-up")
		}
		if len(schools) == 0 {
			zap.L().Warn("crawl: no canonical schools loaded, every decision will be unresolved")
		}

		resolver, err := newResolver(cfg, schools)
		if err != nil {
			return err
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:         cfg.Archive.UserAgent,
			Timeout:           cfg.Archive.Timeout(),
			RequestsPerSecond: cfg.Archive.RequestsPerSecond,
		})
		arch, err := archive.New(f, archive.Options{
			BaseURL:   cfg.Archive.BaseURL,
			Subreddit: cfg.Archive.Subreddit,
			PageSize:  cfg.Archive.PageSize,
		})
		if err != nil {
			return err
		}

		engine := ingest.New(arch, st, resolver, cur, st, crawlOptions(cfg))

		if cfg.Metrics.Addr != "" {
			m := monitoring.NewMetrics()
			engine.WithObserver(m)
			srv := monitoring.NewServer(cfg.Metrics.Addr, m.Registry, st.Ping)
			go func() {
				if err := srv.Run(ctx); err != nil {
					zap.L().Error("crawl: metrics server", zap.Error(err))
				}
			}()
		}

		rep, runErr := engine.Run(ctx, start)
		if err := rep.Print(os.Stdout); err != nil {
			return err
		}
		if ingest.IsCancelled(runErr) {
			zap.L().Info("crawl: interrupted, cursor saved", zap.Time("cursor", rep.Cursor))
			return nil
		}
		return runErr
	},
}

// applyCrawlFlags lets explicitly set flags override loaded config.
func applyCrawlFlags(cmd *cobra.Command, c *config.Config) {
	if cmd.Flags().Changed("max-posts") {
		c.Ingest.MaxPosts = crawlMaxPosts
	}
	if cmd.Flags().Changed("metrics-addr") {
		c.Metrics.Addr = crawlMetricsAddr
	}
}

// crawlOptions maps config onto engine options.
func crawlOptions(c *config.Config) ingest.Options {
	return ingest.Options{
		PageSize:               c.Archive.PageSize,
		MaxPosts:               c.Ingest.MaxPosts,
		PageDelay:              c.Archive.PageDelay(),
		ErrorBackoff:           c.Archive.ErrorBackoff(),
		MaxConsecutiveFailures: c.Archive.MaxConsecutiveFailures,
		TopUnresolved:          c.Ingest.TopUnresolved,
		WriteRetry: resilience.FromRetryConfig(
			c.Ingest.WriteMaxAttempts,
			c.Ingest.WriteInitialBackoffMs,
			c.Ingest.WriteMaxBackoffMs,
		),
	}
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxPosts, "max-posts", 0, "stop after this many posts (0 = no limit)")
	crawlCmd.Flags().StringVar(&crawlAfter, "after", "", "start after this timestamp instead of the stored cursor (RFC3339, date or epoch seconds)")
	crawlCmd.Flags().StringVar(&crawlMetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address during the crawl")
	rootCmd.AddCommand(crawlCmd)
}
