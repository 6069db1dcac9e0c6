// Package cache 提供基于键值存储的泛型缓存实现，服务端用它缓存记录列表查询.
//
// 基本用法:
//
//	c := cache.NewCache(kvStore)
//
//	page, err := cache.GetOrSet(ctx, c, "records:list:"+hash, func() (Page, error) {
//	    return queryDB(ctx)
//	}, 30*time.Second)
//
//	// 记录变更后按前缀失效
//	_, err = c.DeletePrefix(ctx, "records:list:")
//
// 值使用 JSON（sonic）编码. 未命中与编解码失败都会回退到 getter，缓存写入失败不影响返回值.
// 同一进程内对同一 key 的并发 GetOrSet 只会调用一次 getter.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/propvault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/propvault/pkg/log"
)

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore kv.KVStore
	group   singleflight.Group
}

// NewCache 创建一个新的缓存实例.
func NewCache(kvStore kv.KVStore) *Cache {
	return &Cache{kvStore: kvStore}
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var value T

	data, err := c.kvStore.Get(ctx, key)
	if err != nil {
		return value, err
	}

	if err := sonic.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, key, data, ttl)
}

// GetOrSet 获取缓存值，未命中时调用 getter 并写回缓存.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := getter()
		if err != nil {
			return value, err
		}

		if setErr := Set(ctx, c, key, value, ttl); setErr != nil {
			nlog.Logger().Debug().Err(setErr).Str("key", key).Msg("cache set failed")
		}

		return value, nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return v.(T), nil
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, key)
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, key)
}

// DeletePrefix 删除以 prefix 开头的全部键，返回删除数量.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := c.kvStore.Keys(ctx, prefix+"*")
	if err != nil {
		return 0, err
	}

	for i, key := range keys {
		if err := c.kvStore.Delete(ctx, key); err != nil {
			return i, err
		}
	}

	return len(keys), nil
}

// Clear 清空缓存.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.DeletePrefix(ctx, "")

	return err
}
