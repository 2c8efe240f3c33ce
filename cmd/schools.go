package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/admissions-ingest/internal/model"
)

var schoolsCmd = &cobra.Command{
	Use:   "schools",
	Short: "Manage the canonical school reference table",
}

var schoolsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Upsert canonical schools from a YAML file",
	Long:  "Reads a YAML list of {id, name, aliases} entries and upserts them by id. Intended for local and development databases; production schools are maintained outside this tool.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		schools, err := decodeSchools(data)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportSchools(ctx, schools)
		if err != nil {
			return eris.Wrap(err, "schools import")
		}
		zap.L().Info("schools imported", zap.Int64("rows", n), zap.String("file", args[0]))
		return nil
	},
}

var schoolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List canonical schools",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		schools, err := st.ListSchools(ctx)
		if err != nil {
			return eris.Wrap(err, "schools list")
		}
		for _, s := range schools {
			fmt.Fprintf(os.Stdout, "%d\t%s\n", s.ID, s.Name)
		}
		return nil
	},
}

func init() {
	schoolsCmd.AddCommand(schoolsImportCmd)
	schoolsCmd.AddCommand(schoolsListCmd)
	rootCmd.AddCommand(schoolsCmd)
}

// decodeSchools parses and checks a YAML school list.
func decodeSchools(data []byte) ([]model.CanonicalSchool, error) {
	var schools []model.CanonicalSchool
	if err := yaml.Unmarshal(data, &schools); err != nil {
		return nil, eris.Wrap(err, "schools: parse yaml")
	}
	if len(schools) == 0 {
		return nil, eris.New("schools: file contains no schools")
	}
	seen := make(map[int64]bool, len(schools))
	for i, s := range schools {
		if s.ID <= 0 {
			return nil, eris.Errorf("schools: entry %d: id must be > 0", i)
		}
		if s.Name == "" {
			return nil, eris.Errorf("schools: entry %d: name is required", i)
		}
		if seen[s.ID] {
			return nil, eris.Errorf("schools: duplicate id %d", s.ID)
		}
		seen[s.ID] = true
	}
	return schools, nil
}
