// Package s3 保存记录附件的二进制内容. 默认实现基于 MinIO（任意 S3 兼容服务），
// 另有进程内实现用于开发与测试.
package s3

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/yeisme/propvault/pkg/configs"
)

// Store 附件对象存储.
type Store interface {
	// Put 写入对象，同名对象被覆盖.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Remove 删除对象，不存在的 key 不视为错误.
	Remove(ctx context.Context, keys ...string) error
	// Exists 检查对象是否存在.
	Exists(ctx context.Context, key string) (bool, error)
	// URL 返回对象的持久访问地址.
	URL(key string) string
	// HealthCheck 检查存储可用性.
	HealthCheck(ctx context.Context) error
	// Close 释放连接.
	Close() error
}

// StoreFactory 按配置创建 Store.
type StoreFactory func(ctx context.Context, cfg *configs.S3Config) (Store, error)

var storeFactories = map[configs.S3Type]StoreFactory{}

// RegisterStoreFactory 注册对象存储工厂.
func RegisterStoreFactory(t configs.S3Type, f StoreFactory) {
	storeFactories[t] = f
}

// GetRegisteredStoreTypes 返回已注册的对象存储类型（已排序）.
func GetRegisteredStoreTypes() []configs.S3Type {
	out := make([]configs.S3Type, 0, len(storeFactories))
	for t := range storeFactories {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// New 按配置创建对象存储，未配置类型时使用 MinIO.
func New(ctx context.Context, cfg *configs.S3Config) (Store, error) {
	t := cfg.Type
	if t == "" {
		t = configs.S3TypeMinIO
	}

	f, ok := storeFactories[t]
	if !ok {
		return nil, fmt.Errorf("unsupported s3 type: %s", t)
	}

	return f(ctx, cfg)
}
