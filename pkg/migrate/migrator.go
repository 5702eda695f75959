// Package migrate 把旧版按路径存放的资源缓存迁移到内容寻址的对象仓库。
//
// 迁移前:
//
//	assets/
//	  icons/icon_16x16.png
//	  sounds/step/grass1.ogg
//
// 迁移后:
//
//	assets/
//	  objects/bd/bdf48ef6b5d0d23bbb02e17d04865216179f510a
//	  objects/5c/5c97...
//
// indexes/、objects/、virtual/ 是保留目录，永远不会被移动或删除。
// 迁移是幂等的：对已经迁移过的目录再跑一次不会做任何搬移。
package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assetvault/pkg/digest"
	"assetvault/pkg/ignore"
	"assetvault/pkg/logging"
	"assetvault/pkg/storage"
	"assetvault/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ReservedNames 是旧缓存根目录下的保留区域
var ReservedNames = []string{"indexes", "objects", "virtual"}

// IsReserved 判断相对路径是否落在保留区域
// 注意：这里是字符串前缀匹配，"indexes_old" 也会被视为保留
func IsReserved(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, name := range ReservedNames {
		if strings.HasPrefix(rel, name) {
			return true
		}
	}
	return false
}

// Result 是一次迁移的统计
type Result struct {
	Successes  int      // 移入对象仓库的文件数
	Failures   int      // 读取/搬移失败的文件数
	Duplicates int      // 内容已存在，直接删除的文件数
	Discarded  int      // 命中丢弃规则，直接删除的文件数
	Cleaned    []string // 清理掉的旧目录 (相对路径)

	StartedAt  time.Time
	FinishedAt time.Time
}

// Processed 返回参与计数的文件数 (决定是否清理旧目录)
func (r Result) Processed() int {
	return r.Successes + r.Failures
}

type outcome int

const (
	imported outcome = iota
	duplicate
	discarded
	failed
)

// Migrator 负责一次性的旧缓存迁移
type Migrator struct {
	fs      afero.Fs
	root    string
	store   storage.ObjectStore
	algo    digest.Algorithm
	discard *ignore.Matcher
	log     logrus.FieldLogger
}

type Option func(*Migrator)

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Migrator) { m.log = logging.OrDiscard(l) }
}

func WithAlgorithm(a digest.Algorithm) Option {
	return func(m *Migrator) { m.algo = a }
}

// WithDiscard 设置垃圾文件规则 (nil 表示不丢弃任何文件)
func WithDiscard(matcher *ignore.Matcher) Option {
	return func(m *Migrator) { m.discard = matcher }
}

// New 创建迁移器
// root: 旧缓存根目录 (同时也是对象仓库的根)，显式注入，不读全局状态
func New(fs afero.Fs, root string, store storage.ObjectStore, opts ...Option) *Migrator {
	m := &Migrator{
		fs:    fs,
		root:  filepath.Clean(root),
		store: store,
		algo:  digest.Default,
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run 执行迁移
// 单个文件失败不会中断迁移，只会计入 Failures。
// 只有根目录无法访问、对象仓库无法创建、或 ctx 被取消时才返回 error；
// 此时已经完成的搬移依然有效，重跑即可继续。
func (m *Migrator) Run(ctx context.Context) (res Result, err error) {
	res.StartedAt = time.Now()
	defer func() { res.FinishedAt = time.Now() }()

	// 1. 根目录不存在：什么都不做
	info, statErr := m.fs.Stat(m.root)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			m.log.WithField("root", m.root).Debug("No legacy assets directory, nothing to migrate.")
			return res, nil
		}
		return res, &storage.StorageError{Op: "stat", Path: m.root, Err: statErr}
	}
	if !info.IsDir() {
		m.log.WithField("root", m.root).Debug("Legacy assets path is not a directory, nothing to migrate.")
		return res, nil
	}

	// 2. 确保 objects/ 存在
	if rootErr := m.store.EnsureRoot(ctx); rootErr != nil {
		return res, fmt.Errorf("failed to prepare object store: %w", rootErr)
	}

	// 3. 遍历旧目录
	walkFn := func(path string, fi os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(m.root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)

		// 保留区域：整棵子树跳过
		if IsReserved(rel) {
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if err != nil {
			// 读不了的目录：记录下来，继续处理其它条目
			m.log.WithError(err).WithField("path", rel).Warn("Failed to read legacy assets entry")
			return nil
		}

		if fi.IsDir() {
			return nil
		}

		switch m.migrateFile(ctx, path, rel, fi.Size()) {
		case imported:
			res.Successes++
		case duplicate:
			res.Duplicates++
		case discarded:
			res.Discarded++
		case failed:
			res.Failures++
		}
		return nil
	}

	// afero.Walk 用 Lstat 查看 root；root 是指向目录的符号链接时不会进入。
	// 末尾带上分隔符，Lstat 就会跟随链接
	walkRoot := m.root
	if !strings.HasSuffix(walkRoot, string(filepath.Separator)) {
		walkRoot += string(filepath.Separator)
	}
	if walkErr := afero.Walk(m.fs, walkRoot, walkFn); walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			m.log.WithFields(summaryFields(res)).Warn("Legacy asset migration interrupted")
			return res, walkErr
		}
		return res, fmt.Errorf("walk failed: %w", walkErr)
	}

	// 4. 没有处理任何文件：跳过清理
	if res.Processed() == 0 {
		m.log.Debug("No legacy assets needed importing.")
		return res, nil
	}

	m.log.WithFields(summaryFields(res)).Info("Finished importing legacy assets")
	res.Cleaned = m.cleanup()
	return res, nil
}

// migrateFile 处理单个旧文件：计算摘要 -> 去重 -> 移入对象仓库
func (m *Migrator) migrateFile(ctx context.Context, path, rel string, size int64) outcome {
	log := m.log.WithField("object", rel)

	if m.discard.Matches(rel) {
		if err := m.fs.Remove(path); err != nil {
			log.WithError(err).Error("Failed to delete discarded legacy asset")
			return failed
		}
		log.Debug("Discarded legacy asset")
		return discarded
	}

	hash, err := m.hashFile(path)
	if err != nil {
		log.WithError(err).Error("Failed to hash legacy asset")
		return failed
	}
	log = log.WithFields(logrus.Fields{"hash": hash.String(), "size": size})
	log.Debug("Processing legacy asset")

	exists, err := m.store.HasObject(ctx, hash)
	if err != nil {
		log.WithError(err).Error("Failed to check object store")
		return failed
	}

	// 内容已经在仓库里：删除旧文件，不计入成功
	if exists {
		if err := m.fs.Remove(path); err != nil {
			log.WithError(err).Error("Failed to delete duplicate legacy asset")
			return failed
		}
		log.Debug("Already exists, deleting original and not copying.")
		return duplicate
	}

	if err := m.store.EnsureBucket(ctx, hash); err != nil {
		log.WithError(err).Error("Failed to create object bucket")
		return failed
	}

	target := storage.ObjectKey(hash)
	if err := m.store.PlaceObject(ctx, hash, path); err != nil {
		log.WithError(err).WithField("target", target).Error("Failed to move legacy asset into object store")
		return failed
	}
	log.WithField("target", target).Debug("Moved legacy asset into object store")
	return imported
}

// hashFile 流式计算摘要；文件在 Rename 之前关闭
func (m *Migrator) hashFile(path string) (types.Hash, error) {
	f, err := m.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash, _, err := m.algo.SumReader(f)
	return hash, err
}

// cleanup 删除根目录下所有非保留的子目录
// 根目录下的普通文件不在这里处理
func (m *Migrator) cleanup() []string {
	entries, err := afero.ReadDir(m.fs, m.root)
	if err != nil {
		m.log.WithError(err).Error("Failed to list legacy assets directory for cleanup")
		return nil
	}

	var cleaned []string
	for _, entry := range entries {
		if !entry.IsDir() || IsReserved(entry.Name()) {
			continue
		}

		path := filepath.Join(m.root, entry.Name())
		m.log.WithField("path", path).Debug("Cleaning up legacy assets folder")
		if err := m.fs.RemoveAll(path); err != nil {
			m.log.WithError(err).WithField("path", path).Error("Failed to remove legacy assets folder")
			continue
		}
		cleaned = append(cleaned, entry.Name())
	}
	return cleaned
}

func summaryFields(res Result) logrus.Fields {
	return logrus.Fields{
		"successes":  res.Successes,
		"failures":   res.Failures,
		"duplicates": res.Duplicates,
		"discarded":  res.Discarded,
	}
}
