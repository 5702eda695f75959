package commands

import (
	"fmt"

	"assetvault/pkg/printer"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import legacy assets into the object store",
	Long: `Walk the legacy assets directory, move every file into
objects/<hh>/<hash> and delete the old folders afterwards.
indexes/, objects/ and virtual/ are never touched. Safe to run again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		res, err := AV.Migrate(cmd.Context())
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		printer.Result(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
