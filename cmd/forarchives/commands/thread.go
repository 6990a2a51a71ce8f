package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var threadFormat string

func init() {
	threadCmd.Flags().StringVarP(&threadFormat, "format", "f", formatText, "Output format: json or text.")
	rootCmd.AddCommand(threadCmd)
}

var threadCmd = &cobra.Command{
	Use:   "thread <archive> <board> <num>",
	Short: "Prints a whole thread.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(threadFormat, formatJSON, formatText); err != nil {
			return err
		}
		num, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid thread number %q: %w", args[2], err)
		}
		_, adapter, err := engine.Orchestrator.Adapter(args[0])
		if err != nil {
			return err
		}
		thread, err := adapter.Thread(cmd.Context(), args[1], num)
		if err != nil {
			return err
		}
		return writeThread(cmd.OutOrStdout(), threadFormat, thread)
	},
}
