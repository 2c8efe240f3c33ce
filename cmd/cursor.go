package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/admissions-ingest/internal/config"
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect or override the crawl cursor",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored crawl cursor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

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

		ts, ok, err := cur.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "cursor show")
		}
		fallback, err := cfg.Archive.StartAfterTime()
		if err != nil {
			return err
		}
		formatCursor(os.Stdout, ts, ok, fallback)
		return nil
	},
}

var cursorSetCmd = &cobra.Command{
	Use:   "set <timestamp>",
	Short: "Overwrite the stored crawl cursor",
	Long:  "Sets the cursor to an RFC3339 timestamp, a date or epoch seconds. Unlike a crawl, this may move the cursor backwards to force a re-scan; re-scanned outcomes are deduplicated on insert.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ts, err := config.ParseTimestamp(args[0])
		if err != nil {
			return err
		}
		if ts.IsZero() {
			return eris.New("cursor set: timestamp is required")
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

		if err := cur.Reset(ctx, ts); err != nil {
			return eris.Wrap(err, "cursor set")
		}
		zap.L().Info("cursor updated", zap.Time("cursor", ts), zap.String("backend", cfg.Cursor.Backend))
		return nil
	},
}

func init() {
	cursorCmd.AddCommand(cursorShowCmd)
	cursorCmd.AddCommand(cursorSetCmd)
	rootCmd.AddCommand(cursorCmd)
}

// formatCursor writes the stored cursor, or the configured starting point
// when none is stored.
func formatCursor(w io.Writer, ts time.Time, ok bool, fallback time.Time) {
	if ok {
		_, _ = fmt.Fprintf(w, "%s (%d)\n", ts.UTC().Format(time.RFC3339), ts.Unix())
		return
	}
	if fallback.IsZero() {
		_, _ = fmt.Fprintln(w, "no cursor stored; the next crawl starts from the oldest post")
		return
	}
	_, _ = fmt.Fprintf(w, "no cursor stored; the next crawl starts after %s\n", fallback.UTC().Format(time.RFC3339))
}
