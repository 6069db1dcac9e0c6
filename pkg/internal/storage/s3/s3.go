package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/propvault/pkg/configs"
	nlog "github.com/yeisme/propvault/pkg/log"
)

// Client 包装 MinIO 客户端，对象写入单个 bucket.
type Client struct {
	*minio.Client

	cfg configs.S3Config
}

var _ Store = (*Client)(nil)

// NewMinIO 初始化 MinIO 客户端，若 bucket 不存在则尝试创建.
func NewMinIO(ctx context.Context, cfg *configs.S3Config) (Store, error) {
	c := *cfg
	endpoint := c.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		c.Endpoint = u.Host

		if u.Scheme == "https" {
			c.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo(configs.AppName, configs.AppVersion)

	exists, err := cli.BucketExists(ctx, c.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", c.BucketName, err)
	}

	if !exists {
		if err := cli.MakeBucket(ctx, c.BucketName, minio.MakeBucketOptions{Region: c.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", c.BucketName, err)
		}

		nlog.Logger().Info().Str("bucket", c.BucketName).Msg("bucket created")
	}

	nlog.Logger().Info().Str("endpoint", c.Endpoint).Str("bucket", c.BucketName).Msg("s3 connected")

	return &Client{Client: cli, cfg: c}, nil
}

// Put 写入对象.
func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := c.PutObject(ctx, c.cfg.BucketName, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	return nil
}

// Remove 批量删除对象.
func (c *Client) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}

	close(objects)

	var errs []error

	for e := range c.RemoveObjects(ctx, c.cfg.BucketName, objects, minio.RemoveObjectsOptions{}) {
		if isNoSuchKey(e.Err) {
			continue
		}

		errs = append(errs, fmt.Errorf("remove object %s: %w", e.ObjectName, e.Err))
	}

	return errors.Join(errs...)
}

// Exists 通过 StatObject 判断对象是否存在.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.StatObject(ctx, c.cfg.BucketName, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	if isNoSuchKey(err) {
		return false, nil
	}

	return false, fmt.Errorf("stat object %s: %w", key, err)
}

// URL 返回对象的持久访问地址.
func (c *Client) URL(key string) string {
	return c.cfg.ObjectURL(key)
}

// HealthCheck 检查 bucket 是否可访问.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.BucketExists(ctx, c.cfg.BucketName)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s not found", c.cfg.BucketName)
	}

	return nil
}

// Close 关闭 S3 客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func init() {
	RegisterStoreFactory(configs.S3TypeMinIO, NewMinIO)
}
