package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"assetvault/pkg/logging"
	"assetvault/pkg/storage"
	"assetvault/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var _ storage.ObjectStore = (*Adapter)(nil)

// Adapter 实现了 storage.ObjectStore 接口
// 对象 Key 与磁盘布局一致：<prefix>/objects/<hh>/<hash>
// 旧文件仍然在本地，通过 afero 读取后上传
type Adapter struct {
	client *s3.Client
	bucket string
	region string
	prefix string
	fs     afero.Fs
	log    logrus.FieldLogger
}

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // 可选，多个缓存共用一个 bucket 时使用
}

// NewAdapter 初始化 S3 客户端
// 不在这里访问网络；bucket 的创建放在 EnsureRoot
func NewAdapter(ctx context.Context, cfg Config, fs afero.Fs, log logrus.FieldLogger) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	// 1. 加载基础配置 (Region + Credentials)
	// 没有显式给 AccessKey 时走默认凭证链 (环境变量、~/.aws 等)
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// 2. 创建 S3 客户端时注入 Endpoint
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO 必须使用 Path Style: http://host:9000/bucket/key
		o.UsePathStyle = true
	})

	return &Adapter{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
		fs:     fs,
		log:    logging.OrDiscard(log),
	}, nil
}

// objectKey 返回对象在 bucket 中的 Key
// Example: prefix "mc", hash "aabbcc..." -> "mc/objects/aa/aabbcc..."
func (s *Adapter) objectKey(hash types.Hash) string {
	return path.Join(s.prefix, storage.ObjectKey(hash))
}

// EnsureRoot 确保 bucket 存在
// S3 没有目录，objects/ 前缀不需要创建
func (s *Adapter) EnsureRoot(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return &storage.StorageError{Op: "head bucket", Path: s.bucket, Err: err}
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 不接受 LocationConstraint
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		// 并发创建：别人已经建好了
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return &storage.StorageError{Op: "create bucket", Path: s.bucket, Err: err}
	}
	s.log.WithField("bucket", s.bucket).Info("Created object store bucket")
	return nil
}

func (s *Adapter) BucketPathFor(hash types.Hash) string {
	return hash.Bucket()
}

// HasObject 使用 HEAD 请求检查对象是否存在
func (s *Adapter) HasObject(ctx context.Context, hash types.Hash) (bool, error) {
	key := s.objectKey(hash)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, &storage.StorageError{Op: "head", Path: key, Err: err}
}

// EnsureBucket 对 S3 是空操作 (Key 前缀无需创建)
func (s *Adapter) EnsureBucket(ctx context.Context, hash types.Hash) error {
	return nil
}

// PlaceObject 上传本地文件，成功后删除源文件 (等价于"移动")
// IfNoneMatch: "*" 保证永远不会覆盖已有对象
func (s *Adapter) PlaceObject(ctx context.Context, hash types.Hash, sourcePath string) error {
	key := s.objectKey(hash)

	// 1. 打开并上传
	if err := s.upload(ctx, key, sourcePath); err != nil {
		return err
	}

	// 2. 上传成功后才删除源文件
	if err := s.fs.Remove(sourcePath); err != nil {
		return &storage.StorageError{Op: "remove", Path: sourcePath, Err: err}
	}
	return nil
}

func (s *Adapter) upload(ctx context.Context, key, sourcePath string) error {
	f, err := s.fs.Open(sourcePath)
	if err != nil {
		return &storage.StorageError{Op: "open", Path: sourcePath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &storage.StorageError{Op: "stat", Path: sourcePath, Err: err}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		IfNoneMatch:   aws.String("*"),
	})
	if err == nil {
		return nil
	}
	if isPreconditionFailed(err) {
		return &storage.StorageError{Op: "put", Path: key, Err: storage.ErrObjectExists}
	}
	return &storage.StorageError{Op: "put", Path: key, Err: err}
}

// Get 下载对象
func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	if !hash.IsValid() {
		return nil, storage.ErrInvalidHash
	}
	key := s.objectKey(hash)

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// 将 AWS 的 NoSuchKey 映射为我们自己的 ErrNotFound
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, &storage.StorageError{Op: "get", Path: key, Err: err}
	}
	return resp.Body, nil
}

// isNotFound 兼容 AWS 与 MinIO 的各种 404 形态
func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket", http.StatusText(http.StatusNotFound):
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
