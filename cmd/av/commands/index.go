package commands

import (
	"errors"
	"fmt"

	"assetvault/pkg/app"
	"assetvault/pkg/index"
	"assetvault/pkg/meta"
	"assetvault/pkg/printer"
	"assetvault/pkg/storage"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	showObjects bool
	showCached  bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect asset index manifests",
}

var indexShowCmd = &cobra.Command{
	Use:   "show <file|id>...",
	Short: "Parse manifests and print a summary",
	Long: `Parse one or more asset index manifests. An argument that is not an
existing file is looked up under indexes/ (e.g. "1.20" -> indexes/1.20.json).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		if showCached {
			return showCachedIndexes(cmd, args)
		}

		// 1. 并发解析；单个失败不影响其它文件
		paths := make([]string, len(args))
		indexes := make([]*index.AssetIndex, len(args))
		errs := make([]error, len(args))

		var g errgroup.Group
		g.SetLimit(4)
		for i, name := range args {
			g.Go(func() error {
				paths[i], indexes[i], errs[i] = AV.ParseIndex(name)
				return nil
			})
		}
		_ = g.Wait()

		// 2. 账本写入串行进行，SQLite 不支持并发写
		for i := range args {
			if errs[i] == nil {
				AV.RecordIndex(cmd.Context(), paths[i], indexes[i])
			}
		}

		// 3. 按参数顺序输出
		out := cmd.OutOrStdout()
		failed := 0
		for i, name := range args {
			if err := errs[i]; err != nil {
				failed++
				if isUnusable(err) {
					fmt.Fprintf(out, "%s: index unusable: %v\n", name, err)
				} else {
					fmt.Fprintf(out, "%s: %v\n", name, err)
				}
				continue
			}

			printer.IndexSummary(out, name, indexes[i])
			if showObjects {
				printer.IndexObjects(out, indexes[i])
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d index files unusable", failed, len(args))
		}
		return nil
	},
}

// showCachedIndexes 从账本读取上次加载时的摘要，不重新解析文件
func showCachedIndexes(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	missing := 0
	for _, name := range args {
		rec, err := AV.CachedIndex(cmd.Context(), name)
		switch {
		case errors.Is(err, app.ErrLedgerDisabled):
			return err
		case errors.Is(err, meta.ErrIndexNotFound):
			missing++
			fmt.Fprintf(out, "%s: not loaded yet\n", name)
		case err != nil:
			return fmt.Errorf("lookup %s: %w", name, err)
		default:
			printer.CachedIndex(out, name, rec)
		}
	}

	if missing > 0 {
		return fmt.Errorf("%d of %d index files never loaded", missing, len(args))
	}
	return nil
}

var indexBucketCmd = &cobra.Command{
	Use:   "bucket <hash>",
	Short: "Print where an object lives in the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		hash, err := parseHash(args[0])
		if err != nil {
			return err
		}

		exists, err := AV.Store.HasObject(cmd.Context(), hash)
		if err != nil {
			return err
		}

		state := "missing"
		if exists {
			state = "present"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "bucket: %s\n", AV.Store.BucketPathFor(hash))
		fmt.Fprintf(out, "path:   %s\n", storage.ObjectKey(hash))
		fmt.Fprintf(out, "state:  %s\n", state)
		return nil
	},
}

// isUnusable 判断错误是否来自 manifest 本身
func isUnusable(err error) bool {
	return errors.Is(err, index.ErrSourceUnreadable) ||
		errors.Is(err, index.ErrMalformed) ||
		errors.Is(err, index.ErrInvalidRoot)
}

func init() {
	indexShowCmd.Flags().BoolVar(&showObjects, "objects", false, "list every object with its store path")
	indexShowCmd.Flags().BoolVar(&showCached, "cached", false, "print the summary recorded by the last load instead of parsing")
	indexCmd.AddCommand(indexShowCmd, indexBucketCmd)
	rootCmd.AddCommand(indexCmd)
}
