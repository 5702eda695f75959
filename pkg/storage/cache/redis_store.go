package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"assetvault/pkg/logging"
	"assetvault/pkg/storage"
	"assetvault/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var _ storage.ObjectStore = (*CachedStore)(nil)

// CachedStore 是一个装饰器，为底层的 storage.ObjectStore 添加 Redis 存在性缓存
// 只缓存"存在"：对象一旦进入仓库就不会被删除，所以正向结果永远不会过期失效
type CachedStore struct {
	backend   storage.ObjectStore // 被装饰的底层存储 (如 S3)
	client    *redis.Client
	ttl       time.Duration
	namespace string
	log       logrus.FieldLogger
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
	// Namespace 区分不同的仓库 (比如本地根目录或 bucket)，避免共用 Redis 时串号
	Namespace string
}

func NewCachedStore(backend storage.ObjectStore, cfg Config, log logrus.FieldLogger) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newCachedStore(backend, client, cfg, log), nil
}

func newCachedStore(backend storage.ObjectStore, client *redis.Client, cfg Config, log logrus.FieldLogger) *CachedStore {
	return &CachedStore{
		backend:   backend,
		client:    client,
		ttl:       cfg.TTL,
		namespace: cfg.Namespace,
		log:       logging.OrDiscard(log),
	}
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(hash types.Hash) string {
	if s.namespace == "" {
		return "av:obj:" + string(hash)
	}
	return "av:obj:" + s.namespace + ":" + string(hash)
}

func (s *CachedStore) EnsureRoot(ctx context.Context) error {
	return s.backend.EnsureRoot(ctx)
}

func (s *CachedStore) BucketPathFor(hash types.Hash) string {
	return s.backend.BucketPathFor(hash)
}

// HasObject 优先查 Redis
func (s *CachedStore) HasObject(ctx context.Context, hash types.Hash) (bool, error) {
	key := s.cacheKey(hash)

	// 1. 查 Redis
	// Redis 故障时退化为无缓存模式，直接查底层
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.log.WithError(err).Warn("Redis unavailable, falling back to object store")
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.HasObject(ctx, hash)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填 (同步：迁移是单线程的，不留后台 goroutine)
	if found {
		s.remember(ctx, key)
	}
	return found, nil
}

func (s *CachedStore) EnsureBucket(ctx context.Context, hash types.Hash) error {
	return s.backend.EnsureBucket(ctx, hash)
}

// PlaceObject 穿透到底层存储，成功后写入缓存
func (s *CachedStore) PlaceObject(ctx context.Context, hash types.Hash, sourcePath string) error {
	if err := s.backend.PlaceObject(ctx, hash, sourcePath); err != nil {
		return err
	}
	s.remember(ctx, s.cacheKey(hash))
	return nil
}

// Get 透传，不缓存内容
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	return s.backend.Get(ctx, hash)
}

func (s *CachedStore) Close() error {
	return s.client.Close()
}

// remember 写入缓存；失败只记日志，不影响主流程
func (s *CachedStore) remember(ctx context.Context, key string) {
	if err := s.client.Set(ctx, key, "1", s.ttl).Err(); err != nil {
		s.log.WithError(err).WithField("key", key).Debug("Failed to fill existence cache")
	}
}
