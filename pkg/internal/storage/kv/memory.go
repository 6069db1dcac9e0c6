package kv

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yeisme/propvault/pkg/configs"
)

// memoryEntry 以指针形式存入 sync.Map，过期删除时按指针比较.
type memoryEntry struct {
	raw []byte
}

// MemoryKV 基于 sync.Map 的内存 KV 实现，过期键在读取时惰性删除.
type MemoryKV struct {
	data  sync.Map
	clock clockwork.Clock
}

// NewMemoryKV 创建内存 KV 实例，clock 为 nil 时使用真实时钟.
func NewMemoryKV(clock clockwork.Clock) *MemoryKV {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &MemoryKV{clock: clock}
}

func newMemoryKV(context.Context, *configs.KVConfig) (KVStore, error) {
	return NewMemoryKV(nil), nil
}

// Get 获取键的值.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.load(key)
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	wrapped, err := encodeWithTTL(data, ttl, m.clock.Now())
	if err != nil {
		return err
	}

	m.data.Store(key, &memoryEntry{raw: wrapped})

	return nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)

	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.load(key)

	return ok, nil
}

// Keys 获取匹配模式的键（已排序）.
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	var keys []string

	m.data.Range(func(k, _ any) bool {
		key, ok := k.(string)
		if !ok {
			return true
		}

		if matched, _ := path.Match(pattern, key); !matched {
			return true
		}

		if _, live := m.load(key); live {
			keys = append(keys, key)
		}

		return true
	})

	sort.Strings(keys)

	return keys, nil
}

// Close 关闭存储（内存实现无需操作）.
func (m *MemoryKV) Close() error {
	return nil
}

func (m *MemoryKV) load(key string) ([]byte, bool) {
	raw, ok := m.data.Load(key)
	if !ok {
		return nil, false
	}

	e, ok := raw.(*memoryEntry)
	if !ok {
		m.data.Delete(key)

		return nil, false
	}

	v, expired, err := decodeWithTTL(e.raw, m.clock.Now())
	if err != nil || expired {
		m.data.CompareAndDelete(key, e)

		return nil, false
	}

	return v, true
}

func init() {
	RegisterKVFactory(configs.KVTypeMemory, newMemoryKV)
}
