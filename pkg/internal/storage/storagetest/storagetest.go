// Package storagetest 为测试创建完全在进程内运行的存储：内存 SQLite、内存对象存储、
// 内存 KV 与 gochannel 消息队列.
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/yeisme/propvault/pkg/cache"
	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/storage"
	kvc "github.com/yeisme/propvault/pkg/internal/storage/kv"
	s3c "github.com/yeisme/propvault/pkg/internal/storage/s3"
)

var seq atomic.Int64

// Config 返回默认配置并把所有存储切换到进程内实现，同时设置为全局配置.
func Config(t testing.TB) *configs.AppConfig {
	t.Helper()

	if err := configs.InitConfig(t.TempDir()); err != nil {
		t.Fatalf("init config: %v", err)
	}

	cfg := configs.GetConfig()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg.DB.Type = configs.SQLite
	cfg.DB.Database = fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	cfg.DB.MaxOpenConns = 1
	cfg.DB.MaxIdleConns = 1
	cfg.S3.Type = configs.S3TypeMemory
	cfg.KV.Type = configs.KVTypeMemory
	cfg.MQ.Type = configs.MQTypeGoChannel
	cfg.MQ.EnableMetrics = false
	cfg.Metrics.Enabled = false

	configs.SetConfig(*cfg)

	return cfg
}

// New 按 cfg 创建 Manager，测试结束时关闭. cfg 为 nil 时使用 Config(t).
func New(t testing.TB, cfg *configs.AppConfig) *storage.Manager {
	t.Helper()

	if cfg == nil {
		cfg = Config(t)
	}

	mgr, err := storage.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("init storage: %v", err)
	}

	t.Cleanup(func() { _ = mgr.Close() })

	return mgr
}

// Objects 返回内存对象存储，Manager 未使用内存实现时测试失败.
func Objects(t testing.TB, mgr *storage.Manager) *s3c.MemoryStore {
	t.Helper()

	mem, ok := mgr.S3.(*s3c.MemoryStore)
	if !ok {
		t.Fatalf("object store is %T, not in-memory", mgr.S3)
	}

	return mem
}

// UseClock 把 Manager 的 KV 与列表缓存替换为使用 clock 的内存实现，用于推进缓存过期.
// 需在创建 RecordService 之前调用.
func UseClock(t testing.TB, mgr *storage.Manager, clock clockwork.Clock) {
	t.Helper()

	if mgr.KV != nil {
		_ = mgr.KV.Close()
	}

	mgr.KV = &kvc.Client{KVStore: kvc.NewMemoryKV(clock)}
	mgr.Cache = cache.NewCache(mgr.KV)
}
