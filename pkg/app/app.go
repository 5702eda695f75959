// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"assetvault/pkg/digest"
	"assetvault/pkg/ignore"
	"assetvault/pkg/index"
	"assetvault/pkg/logging"
	"assetvault/pkg/meta"
	"assetvault/pkg/migrate"
	"assetvault/pkg/storage"
	"assetvault/pkg/storage/cache"
	"assetvault/pkg/storage/disk"
	"assetvault/pkg/storage/s3"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// IndexesDir 是 manifest 文件所在的保留目录
const IndexesDir = "indexes"

var ErrLedgerDisabled = errors.New("metadata ledger is disabled (set meta.driver)")

// App 是整个应用程序的依赖容器 (Dependency Container)
// 只有这里和 pkg/config 读取 viper，其余包一律显式注入
type App struct {
	Fs        afero.Fs
	Root      string
	Algorithm digest.Algorithm
	Store     storage.ObjectStore
	Migrator  *migrate.Migrator
	Ledger    *meta.Repository // nil 表示未启用
	IndexOpts []index.Option
	Log       logrus.FieldLogger

	closers []func() error
}

// NewApp 是工厂函数，按 viper 配置组装所有组件
func NewApp(ctx context.Context, log logrus.FieldLogger) (*App, error) {
	log = logging.OrDiscard(log)

	// 1. 旧缓存根目录 (同时也是对象仓库根目录)
	root := viper.GetString("storage.root")
	if root == "" {
		return nil, fmt.Errorf("storage root not set")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid storage root: %w", err)
	}

	// 2. 摘要算法
	algo, err := digest.ParseAlgorithm(viper.GetString("digest.algorithm"))
	if err != nil {
		return nil, err
	}

	fs := afero.NewOsFs()
	a := &App{
		Fs:        fs,
		Root:      root,
		Algorithm: algo,
		Log:       log,
		IndexOpts: []index.Option{
			index.WithComments(viper.GetBool("index.allow_comments")),
			index.WithLogger(log),
		},
	}

	// 3. 对象仓库 (disk / s3，可选 redis 缓存)
	store, err := a.initStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.Store = store

	// 4. 迁移器 (丢弃规则 = 规则文件 + 配置里的列表)
	discard, err := ignore.LoadMatcher(fs, viper.GetString("migrate.discard_file"), viper.GetStringSlice("migrate.discard")...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Migrator = migrate.New(fs, root, store,
		migrate.WithLogger(log),
		migrate.WithAlgorithm(algo),
		migrate.WithDiscard(discard),
	)

	// 5. 迁移记录 (可选)
	metaCfg := meta.Config{
		Driver: viper.GetString("meta.driver"),
		DSN:    viper.GetString("meta.dsn"),
	}
	if metaCfg.Enabled() {
		db, err := meta.Open(ctx, metaCfg, log)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to open metadata: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Ledger = meta.NewRepository(db)
	}

	return a, nil
}

// initStore 根据 storage.type 选择后端
func (a *App) initStore(ctx context.Context) (storage.ObjectStore, error) {
	var (
		store     storage.ObjectStore
		namespace string
	)

	storeType := viper.GetString("storage.type")
	switch storeType {
	case "", "disk":
		store = disk.NewAdapter(a.Fs, a.Root, a.Log)
		namespace = a.Root

	case "s3":
		cfg := s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
			Prefix:          viper.GetString("storage.s3.prefix"),
		}
		s3Store, err := s3.NewAdapter(ctx, cfg, a.Fs, a.Log)
		if err != nil {
			return nil, err
		}
		store = s3Store
		namespace = strings.TrimSuffix(cfg.Bucket+"/"+strings.Trim(cfg.Prefix, "/"), "/")

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storeType)
	}

	redisURL := viper.GetString("cache.redis_url")
	if redisURL == "" {
		return store, nil
	}

	cached, err := cache.NewCachedStore(store, cache.Config{
		RedisURL:  redisURL,
		TTL:       viper.GetDuration("cache.ttl"),
		Namespace: namespace,
	}, a.Log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cached.Close)
	return cached, nil
}

// Migrate 执行迁移并 (如果启用) 记录结果
// 记录失败只告警：迁移本身已经完成
func (a *App) Migrate(ctx context.Context) (migrate.Result, error) {
	res, err := a.Migrator.Run(ctx)
	if err != nil {
		return res, err
	}

	if a.Ledger != nil && res.Processed()+res.Duplicates+res.Discarded > 0 {
		run, recErr := meta.NewMigrationRun(a.Root, a.Algorithm, res)
		if recErr == nil {
			recErr = a.Ledger.RecordRun(ctx, run)
		}
		if recErr != nil {
			a.Log.WithError(recErr).Warn("Failed to record migration run")
		}
	}
	return res, nil
}

// ResolveIndexPath 把命令行参数解析成 manifest 路径
// 参数本身存在时原样使用；否则视为 indexes/ 下的 id ("1.20" -> indexes/1.20.json)
func (a *App) ResolveIndexPath(name string) string {
	if ok, _ := afero.Exists(a.Fs, name); ok {
		return name
	}
	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		return name
	}
	if filepath.Ext(name) != ".json" && filepath.Ext(name) != ".cbor" {
		name += ".json"
	}
	return filepath.Join(a.Root, IndexesDir, name)
}

// ParseIndex 解析 manifest，不写账本；可以并发调用
func (a *App) ParseIndex(name string) (string, *index.AssetIndex, error) {
	path := a.ResolveIndexPath(name)
	idx, err := index.Load(a.Fs, path, a.IndexOpts...)
	if err != nil {
		return path, nil, err
	}
	return path, idx, nil
}

// RecordIndex 把解析结果写入账本；账本未启用时什么都不做
// 写失败只记日志，不影响调用方
func (a *App) RecordIndex(ctx context.Context, path string, idx *index.AssetIndex) {
	if a.Ledger == nil || idx == nil {
		return
	}
	if err := a.Ledger.RecordIndex(ctx, meta.NewIndexRecord(path, idx)); err != nil {
		a.Log.WithError(err).WithField("path", path).Warn("Failed to record assets index")
	}
}

// LoadIndex 加载 manifest 并 (如果启用) 记录摘要
func (a *App) LoadIndex(ctx context.Context, name string) (*index.AssetIndex, error) {
	path, idx, err := a.ParseIndex(name)
	if err != nil {
		return nil, err
	}
	a.RecordIndex(ctx, path, idx)
	return idx, nil
}

// CachedIndex 返回账本里上一次加载该 manifest 时的摘要，不重新解析
func (a *App) CachedIndex(ctx context.Context, name string) (*meta.IndexRecord, error) {
	if a.Ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return a.Ledger.GetIndex(ctx, a.ResolveIndexPath(name))
}

// History 列出最近的迁移记录
func (a *App) History(ctx context.Context, limit int) ([]meta.MigrationRun, error) {
	if a.Ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return a.Ledger.ListRuns(ctx, limit)
}

// Close 释放数据库 / Redis 连接
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
