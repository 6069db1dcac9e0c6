package kv_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/storage/kv"
)

func TestMemoryKVBasic(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV(nil)

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	// 返回值是副本
	got[0] = 'x'
	again, _ := store.Get(ctx, "a")
	assert.Equal(t, []byte("1"), again)

	ok, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "a"))
	ok, _ = store.Exists(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryKVTTL(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := kv.NewMemoryKV(clock)

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "forever", []byte("v"), 0))

	clock.Advance(59 * time.Second)
	_, err := store.Get(ctx, "short")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = store.Get(ctx, "short")
	require.ErrorIs(t, err, kv.ErrNotFound)

	keys, err := store.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"forever"}, keys)
}

func TestMemoryKVExpiredKeysEvicted(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := kv.NewMemoryKV(clock)

	require.NoError(t, store.Set(ctx, "records:list:1", []byte("v1"), time.Second))
	require.NoError(t, store.Set(ctx, "records:list:2", []byte("v2"), time.Second))

	clock.Advance(2 * time.Second)

	_, err := store.Get(ctx, "records:list:1")
	require.ErrorIs(t, err, kv.ErrNotFound)

	ok, err := store.Exists(ctx, "records:list:1")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.Keys(ctx, "records:list:*")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// 过期后重新写入的值可正常读取
	require.NoError(t, store.Set(ctx, "records:list:1", []byte("fresh"), time.Minute))

	got, err := store.Get(ctx, "records:list:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got)

	keys, err = store.Keys(ctx, "records:list:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"records:list:1"}, keys)
}

func TestMemoryKVKeysPattern(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryKV(nil)

	for _, k := range []string{"records:list:1", "records:list:2", "records:get:1", "other"} {
		require.NoError(t, store.Set(ctx, k, []byte("v"), 0))
	}

	keys, err := store.Keys(ctx, "records:list:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"records:list:1", "records:list:2"}, keys)

	all, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = store.Keys(ctx, "[")
	assert.Error(t, err)
}

func TestNewKVStoreRegistry(t *testing.T) {
	assert.Contains(t, kv.GetRegisteredKVTypes(), configs.KVTypeMemory)

	client, err := kv.New(context.Background(), &configs.KVConfig{Type: configs.KVTypeMemory})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = kv.New(context.Background(), &configs.KVConfig{Type: "etcd"})
	assert.Error(t, err)
}

func BenchmarkMemoryKV(b *testing.B) {
	benchKV(b, "memory", kv.NewMemoryKV(nil))
}

// Optional: enable with ENABLE_REDIS_BENCH=1 and REDIS_ADDR set (default 127.0.0.1:6379).
func BenchmarkRedisKV(b *testing.B) {
	if os.Getenv("ENABLE_REDIS_BENCH") == "" {
		b.Skip("set ENABLE_REDIS_BENCH=1 to enable")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	cfg := &configs.KVConfig{Type: configs.KVTypeRedis, Redis: configs.RedisKVConfig{Addr: addr, Prefix: "bench:"}}

	store, err := kv.NewKVStore(context.Background(), cfg)
	if err != nil {
		b.Skipf("redis not available: %v", err)
	}

	benchKV(b, "redis", store)
	_ = store.Close()
}

// benchKV 执行基本的 Set/Get/Delete 基准测试.
func benchKV(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()
	payload := make([]byte, 1024)

	for _, ttl := range []time.Duration{0, 5 * time.Second} {
		b.Run(fmt.Sprintf("%s/ttl=%s", name, ttl), func(b *testing.B) {
			b.ReportAllocs()

			for i := 0; b.Loop(); i++ {
				key := fmt.Sprintf("bench-%s-%d", name, i)
				if err := store.Set(ctx, key, payload, ttl); err != nil {
					b.Fatalf("set failed: %v", err)
				}

				if _, err := store.Get(ctx, key); err != nil {
					b.Fatalf("get failed: %v", err)
				}

				if err := store.Delete(ctx, key); err != nil {
					b.Fatalf("delete failed: %v", err)
				}
			}
		})
	}
}
