package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvclean/internal/schema"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [rules-file]",
		Short: "Validate a rules document without processing any file",
		Long: `Check loads a rules document and reports every reference problem in it:
rules that do not exist, and rules on columns that no rename or source
column can produce. Without an argument the active rules are checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.rulesPath = args[0]
			}
			rs, err := a.loadRules()
			if err != nil {
				return err
			}
			if err := schema.Check(rs); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, file := range rs.Files() {
				cfg := rs[file]
				fmt.Fprintf(out, "%s: %d columns with rules\n", file, len(cfg.Columns()))
			}
			fmt.Fprintf(out, "ok: %d file(s) configured\n", len(rs))
			return nil
		},
	}
}
