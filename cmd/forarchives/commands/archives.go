package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var archivesFormat string

func init() {
	archivesCmd.Flags().StringVarP(&archivesFormat, "format", "f", formatTable, "Output format: table or json.")
	rootCmd.AddCommand(archivesCmd)
}

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "Lists the configured archives and their indexes.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list := engine.Orchestrator.Registry().List()
		if archivesFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), list)
		}
		if err := checkFormat(archivesFormat, formatTable, formatJSON); err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"#", "Name", "URL", "Family"})
		for i, d := range list {
			t.AppendRow(table.Row{i, d.Name, d.BaseURL, d.Family})
		}
		t.Render()
		return nil
	},
}
