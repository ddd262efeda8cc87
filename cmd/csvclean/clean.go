package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/report"
)

func newCleanCmd(a *app) *cobra.Command {
	var (
		mode, policy   string
		outDir, format string
		workers        int
		maxFiles       int
	)

	cmd := &cobra.Command{
		Use:   "clean [files or directories...]",
		Short: "Clean CSV files and write <name>.clean.csv and <name>.errors.<ext>",
		Long: `Clean runs every file through the rules configured for its base name.
Files without a configuration are passed through unchanged. A directory
contributes the *.csv files directly inside it.

A file that cannot be processed does not stop the others; the command
exits non-zero when any file failed.`,
		Example: `  csvclean clean data/sports_light.csv
  csvclean clean --rules rules.yaml --mode lenient --out cleaned/ data/
  csvclean clean --error-format csv exports/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := a.loadRules()
			if err != nil {
				return err
			}
			opts, err := a.runOptions(mode, policy, workers)
			if err != nil {
				return err
			}
			if format == "" {
				format = a.cfg.Output.ErrorFormat
			}
			errFormat, err := report.ParseErrorFormat(format)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = a.cfg.Output.Dir
			}
			if maxFiles == 0 {
				maxFiles = a.cfg.Run.MaxFiles
			}

			paths, err := core.ExpandInputs(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no CSV files found in %v", args)
			}

			runner := &core.Runner{Rules: rs, Options: opts, MaxFiles: maxFiles}
			results, runErr := runner.RunFiles(cmd.Context(), paths)

			errs := []error{runErr}
			var summaries []report.WriteSummary
			for _, res := range results {
				if res == nil || res.Incomplete {
					continue
				}
				sum, err := report.WriteFiles(res, outDir, report.Options{ErrorFormat: errFormat})
				if err != nil {
					errs = append(errs, &core.FileError{Path: res.File, Err: err})
					continue
				}
				summaries = append(summaries, sum)
			}

			if err := report.PrintSummary(cmd.OutOrStdout(), summaries); err != nil {
				return err
			}
			a.logger.Info("clean finished", "files", len(paths), "written", len(summaries), "out", outDir)
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "strict drops rows with errors, lenient keeps their passing columns (default RUN_MODE)")
	cmd.Flags().StringVar(&policy, "policy", "", "after a failed standardisation: validate_raw or skip_validation (default RUN_FAILURE_POLICY)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default OUTPUT_DIR)")
	cmd.Flags().StringVar(&format, "error-format", "", "jsonl or csv (default OUTPUT_ERROR_FORMAT)")
	cmd.Flags().IntVar(&workers, "workers", 0, "row evaluation workers per file (default RUN_WORKERS, 0 = all CPUs)")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "files processed at once (default RUN_MAX_FILES)")
	return cmd
}
