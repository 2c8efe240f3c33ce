package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/admissions-ingest/internal/decision"
	"github.com/sells-group/admissions-ingest/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>...",
	Short: "Show how school mentions resolve against the stored schools",
	Long:  "Cleans each mention the way the crawler does and reports the canonical school and lookup step, or that it is unresolved.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		schools, err := st.ListSchools(ctx)
		if err != nil {
			return eris.Wrap(err, "resolve: list schools")
		}
		r, err := newResolver(cfg, schools)
		if err != nil {
			return err
		}

		formatResolutions(os.Stdout, r, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

// formatResolutions resolves each mention and writes one row per mention.
func formatResolutions(out io.Writer, r *resolve.Resolver, mentions []string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MENTION\tCLEANED\tROUND\tSCHOOL_ID\tSCHOOL\tSTEP")
	for _, m := range mentions {
		cleaned, round := decision.Clean(m)
		if round == "" {
			round = "-"
		}
		match, ok := r.Resolve(cleaned)
		if !ok {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t-\t(unresolved)\t-\n", m, cleaned, round)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			m, cleaned, round, match.School.ID, match.School.Name, match.Step)
	}
	_ = w.Flush()
}
