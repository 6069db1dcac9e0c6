package s3

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/yeisme/propvault/pkg/configs"
)

// Object 内存存储中的对象.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore 进程内对象存储.
type MemoryStore struct {
	mu      sync.RWMutex
	cfg     configs.S3Config
	objects map[string]Object
}

var _ Store = (*MemoryStore)(nil)

// NewMemory 创建内存对象存储，URL 规则与 MinIO 实现一致.
func NewMemory(cfg configs.S3Config) *MemoryStore {
	return &MemoryStore{cfg: cfg, objects: make(map[string]Object)}
}

func newMemoryStore(_ context.Context, cfg *configs.S3Config) (Store, error) {
	return NewMemory(*cfg), nil
}

// Put 读取全部内容后保存.
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	m.mu.Lock()
	m.objects[key] = Object{Data: data, ContentType: contentType}
	m.mu.Unlock()

	return nil
}

// Remove 删除对象.
func (m *MemoryStore) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.objects, k)
	}
	m.mu.Unlock()

	return nil
}

// Exists 检查对象是否存在.
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()

	return ok, nil
}

// Get 返回对象副本.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return Object{}, false
	}

	obj.Data = append([]byte(nil), obj.Data...)

	return obj, true
}

// Keys 返回全部 key（已排序）.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.objects))

	for k := range m.objects {
		out = append(out, k)
	}
	m.mu.RUnlock()

	sort.Strings(out)

	return out
}

// URL 返回对象的持久访问地址.
func (m *MemoryStore) URL(key string) string {
	return m.cfg.ObjectURL(key)
}

// HealthCheck 内存实现始终可用.
func (m *MemoryStore) HealthCheck(context.Context) error { return nil }

// Close 无操作.
func (m *MemoryStore) Close() error { return nil }

func init() {
	RegisterStoreFactory(configs.S3TypeMemory, newMemoryStore)
}
