package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvclean/internal/ingest"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

func newSportsCmd(a *app) *cobra.Command {
	var (
		column  string
		outPath string
		fold    bool
	)

	cmd := &cobra.Command{
		Use:   "sports [files...]",
		Short: "Build the raw federation label to sport name map as JSON",
		Long: `Sports reads one column of each file and maps every distinct raw label,
lowercased, to its canonical sport name: "FF de Tennis" becomes "tennis".
Files are read with their configured header and renames, so the column is
named by its canonical key.`,
		Example: `  csvclean sports data/sports_light.csv
  csvclean sports --fold -o standardized_sports.json data/sports_light.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := a.loadRules()
			if err != nil {
				return err
			}

			var labels []string
			for _, path := range args {
				got, err := readColumn(path, column, rs)
				if err != nil {
					return err
				}
				labels = append(labels, got...)
			}

			normalize := rules.NormalizeFederation
			if fold {
				normalize = rules.FoldedFederation
			}
			mapping, _ := rules.SportNameMap(labels, normalize)
			a.logger.Debug("sport names mapped", "labels", len(labels), "distinct", len(mapping))

			data, err := json.MarshalIndent(mapping, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&column, "column", "federation", "canonical column holding the federation labels")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the map to this file instead of stdout")
	cmd.Flags().BoolVar(&fold, "fold", false, "also strip accents from the canonical names")
	return cmd
}

// readColumn returns the values of column in every row of path.
func readColumn(path, column string, rs schema.RulesByCsv) ([]string, error) {
	cfg, configured := schema.Get(rs, path)
	if !configured {
		cfg = schema.Identity()
	}

	rows, err := ingest.Open(path, cfg, ingest.Options{PassThrough: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := false
	for _, key := range rows.Header() {
		if key == column {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%s: no column %q in header %v", path, column, rows.Header())
	}

	var out []string
	for rows.Next() {
		out = append(out, rows.Row().Fields[column])
	}
	return out, rows.Err()
}
