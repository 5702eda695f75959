// Package printer 负责命令行输出的格式化 (结果写 stdout，日志另走 logrus)
package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"assetvault/pkg/index"
	"assetvault/pkg/meta"
	"assetvault/pkg/migrate"
)

// Result 打印一次迁移的统计
func Result(w io.Writer, res migrate.Result) {
	if res.Processed()+res.Duplicates+res.Discarded == 0 {
		fmt.Fprintln(w, "Nothing to migrate.")
		return
	}

	fmt.Fprintf(w, "Imported:   %d\n", res.Successes)
	fmt.Fprintf(w, "Failed:     %d\n", res.Failures)
	fmt.Fprintf(w, "Duplicates: %d\n", res.Duplicates)
	if res.Discarded > 0 {
		fmt.Fprintf(w, "Discarded:  %d\n", res.Discarded)
	}
	if len(res.Cleaned) > 0 {
		fmt.Fprintf(w, "Cleaned:    %s\n", strings.Join(res.Cleaned, ", "))
	}
	fmt.Fprintf(w, "Took:       %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
}

// IndexSummary 打印 manifest 的一行摘要
func IndexSummary(w io.Writer, name string, idx *index.AssetIndex) {
	fmt.Fprintf(w, "%s: virtual=%t objects=%d unique=%d size=%s\n",
		name, idx.IsVirtual, len(idx.Objects), idx.UniqueHashes(), FormatSize(idx.TotalSize()))
}

// CachedIndex 打印账本里记录的 manifest 摘要
func CachedIndex(w io.Writer, name string, rec *meta.IndexRecord) {
	fmt.Fprintf(w, "%s: virtual=%t objects=%d unique=%d size=%s loaded=%s\n",
		name, rec.IsVirtual, rec.ObjectCount, rec.UniqueHashes, FormatSize(rec.TotalSize),
		rec.LoadedAt.Format(time.DateTime))
}

// IndexObjects 按名字排序列出所有对象及其在仓库中的路径
func IndexObjects(w io.Writer, idx *index.AssetIndex) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "NAME\tSIZE\tPATH\n")
	for _, name := range idx.Names() {
		obj := idx.Objects[name]
		path := "-"
		if !obj.Hash.IsZero() {
			path = obj.RelativePath()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, FormatSize(obj.Size), path)
	}
	tw.Flush()
}

// History 打印迁移记录表格
func History(w io.Writer, runs []meta.MigrationRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No migrations recorded yet.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "ID\tSTARTED\tIMPORTED\tFAILED\tDUPLICATES\tDISCARDED\tTOOK\tROOT\n")
	for _, run := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Successes, run.Failures, run.Duplicates, run.Discarded,
			run.Duration().Round(time.Millisecond),
			run.Root,
		)
	}
	tw.Flush()
}

// FormatSize 把字节数转成便于阅读的形式
func FormatSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	} else if s < 1024*1024*1024 {
		return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
	}
	return fmt.Sprintf("%.2fGB", float64(s)/1024/1024/1024)
}
