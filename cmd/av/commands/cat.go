package commands

import (
	"errors"
	"fmt"
	"io"

	"assetvault/pkg/storage"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <hash>",
	Short: "Show object content by hash",
	Long: `Retrieve an object from the store and write it to stdout.
Binary assets can be redirected: av cat <hash> > icon.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		hash, err := parseHash(args[0])
		if err != nil {
			return err
		}
		reader, err := AV.Store.Get(cmd.Context(), hash)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("object %s not found", hash)
		}
		if err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		defer reader.Close()

		if _, err := io.Copy(cmd.OutOrStdout(), reader); err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
