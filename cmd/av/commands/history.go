package commands

import (
	"assetvault/pkg/printer"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded migration runs",
	Long:  `Show previous migrations, newest first. Requires meta.driver to be configured.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		runs, err := AV.History(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		printer.History(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}
