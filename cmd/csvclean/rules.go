package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the rule vocabulary and the active rules",
	}
	cmd.AddCommand(newRulesListCmd(a), newRulesDumpCmd(a))
	return cmd
}

func newRulesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every standardisation and validation rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tNAME\tHISTORY")
			for _, name := range rules.StandardisationNames() {
				fmt.Fprintf(tw, "%s\t%s\t-\n", rules.KindStandardisation, name)
			}
			for _, name := range rules.ValidationNames() {
				history := "-"
				if a.registry.NeedsHistory(name) {
					history = "per column"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", rules.KindValidation, name, history)
			}
			return tw.Flush()
		},
	}
}

func newRulesDumpCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the active rules as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, err := a.loadRules()
			if err != nil {
				return err
			}
			return schema.Encode(cmd.OutOrStdout(), rs, schema.Format(format))
		},
	}
	cmd.Flags().StringVar(&format, "format", string(schema.FormatYAML), "json or yaml")
	return cmd
}
