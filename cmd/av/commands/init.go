package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty object store",
	Long:  `Create objects/ under the configured root. Existing content is left alone.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		if err := AV.Store.EnsureRoot(cmd.Context()); err != nil {
			return fmt.Errorf("failed to create object store: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized object store in %s\n", AV.Root)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
