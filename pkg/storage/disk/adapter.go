package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"assetvault/pkg/logging"
	"assetvault/pkg/storage"
	"assetvault/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var _ storage.ObjectStore = (*Adapter)(nil)

// Adapter 实现了 storage.ObjectStore 接口
// 所有文件操作都经过 afero.Fs，测试可以换成内存文件系统
type Adapter struct {
	fs       afero.Fs
	rootPath string // 比如: ./assets (objects/ 位于其下)
	log      logrus.FieldLogger
}

// NewAdapter 创建一个新的磁盘存储适配器
// 与 EnsureRoot 分开：构造本身不访问文件系统
func NewAdapter(fs afero.Fs, root string, log logrus.FieldLogger) *Adapter {
	return &Adapter{
		fs:       fs,
		rootPath: filepath.Clean(root),
		log:      logging.OrDiscard(log),
	}
}

func (s *Adapter) Root() string { return s.rootPath }

// ObjectsPath 返回 objects/ 的物理路径
func (s *Adapter) ObjectsPath() string {
	return filepath.Join(s.rootPath, storage.ObjectsDir)
}

// layout 返回哈希对应的物理路径
// 策略：前 2 个字符作为子目录 (Sharding)，文件名是完整的 hash
// Example: hash "aabbcc..." -> root/objects/aa/aabbcc...
func (s *Adapter) layout(hash types.Hash) string {
	return filepath.Join(s.ObjectsPath(), hash.Bucket(), string(hash))
}

// ObjectPath 返回对象的物理路径 (不检查是否存在)
func (s *Adapter) ObjectPath(hash types.Hash) string {
	return s.layout(hash)
}

func (s *Adapter) EnsureRoot(ctx context.Context) error {
	return s.ensureDir(s.ObjectsPath())
}

func (s *Adapter) BucketPathFor(hash types.Hash) string {
	return hash.Bucket()
}

func (s *Adapter) HasObject(ctx context.Context, hash types.Hash) (bool, error) {
	targetPath := s.layout(hash)
	info, err := s.fs.Stat(targetPath)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &storage.StorageError{Op: "stat", Path: targetPath, Err: err}
}

func (s *Adapter) EnsureBucket(ctx context.Context, hash types.Hash) error {
	return s.ensureDir(filepath.Join(s.ObjectsPath(), s.BucketPathFor(hash)))
}

// PlaceObject 通过 Rename 移动文件 (不是复制)
// 同一文件系统内 Rename 是原子的：要么还在原处，要么已经在对象路径上
func (s *Adapter) PlaceObject(ctx context.Context, hash types.Hash, sourcePath string) error {
	targetPath := s.layout(hash)
	if err := s.fs.Rename(sourcePath, targetPath); err != nil {
		return &storage.StorageError{Op: "rename", Path: targetPath, Err: err}
	}
	return nil
}

// Get 只接受合法的摘要，路径永远落在 objects/ 之内
func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	if !hash.IsValid() {
		return nil, storage.ErrInvalidHash
	}
	targetPath := s.layout(hash)

	f, err := s.fs.Open(targetPath)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, &storage.StorageError{Op: "open", Path: targetPath, Err: err}
	}
	return f, nil
}

// ensureDir checks if a directory exists at the given path, and if not, creates it.
func (s *Adapter) ensureDir(path string) error {
	info, err := s.fs.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return &storage.StorageError{Op: "mkdir", Path: path, Err: os.ErrExist}
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return &storage.StorageError{Op: "stat", Path: path, Err: err}
	}

	if err := s.fs.MkdirAll(path, 0755); err != nil {
		return &storage.StorageError{Op: "mkdir", Path: path, Err: err}
	}
	s.log.WithField("path", path).Debug("created object store directory")
	return nil
}
