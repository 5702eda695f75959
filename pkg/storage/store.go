package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"assetvault/pkg/types"
)

// ObjectsDir 是对象仓库在 store root 下的固定子目录
const ObjectsDir = "objects"

var (
	ErrNotFound     = errors.New("object not found")
	ErrObjectExists = errors.New("object already exists")
	ErrInvalidHash  = errors.New("invalid object hash")
)

// ObjectStore defines the content-addressed layout: objects/<hh>/<hash>.
// Implementations can be local disk or remote object storage.
type ObjectStore interface {
	// EnsureRoot 创建 objects/ (已存在则什么都不做)
	EnsureRoot(ctx context.Context) error

	// BucketPathFor 返回分桶目录名，不访问存储
	BucketPathFor(hash types.Hash) string

	// HasObject 检查对象是否存在 (用于去重逻辑)
	HasObject(ctx context.Context, hash types.Hash) (bool, error)

	// EnsureBucket 创建分桶目录
	EnsureBucket(ctx context.Context, hash types.Hash) error

	// PlaceObject 把 sourcePath 移动到对象路径
	// 前置条件：调用方已经用 HasObject 确认对象不存在。这里不再重复检查。
	PlaceObject(ctx context.Context, hash types.Hash, sourcePath string) error

	// Get 根据 Hash 读取原始数据
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)
}

// ObjectKey 返回对象相对于 store root 的路径 (斜杠分隔)
// Example: "aabbcc..." -> "objects/aa/aabbcc..."
func ObjectKey(hash types.Hash) string {
	return path.Join(ObjectsDir, hash.Bucket(), string(hash))
}

// StorageError 表示无法创建/访问仓库目录或无法搬移文件
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
