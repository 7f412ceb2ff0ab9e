package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/balaji-balu/nerve-cli/internal/journal"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "history",
		Short: "Show the changes recorded by previous commands, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Journal.Enabled {
				a.printer.Println("The action journal is disabled.")
				return nil
			}
			if a.journal == nil {
				j, err := journal.Open(a.cfg.Journal.Path)
				if err != nil {
					return err
				}
				a.journal = j
			}
			entries, err := a.journal.List(limit)
			if err != nil {
				return err
			}
			a.printer.History(entries)
			return nil
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries, 0 for all")
	return c
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
