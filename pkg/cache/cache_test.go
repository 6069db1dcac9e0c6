package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yeisme/propvault/pkg/cache"
	"github.com/yeisme/propvault/pkg/internal/storage/kv"
)

// testPage 测试用的列表页结构体.
type testPage struct {
	IDs   []string `json:"ids"`
	Total int64    `json:"total"`
}

func newCache() (*cache.Cache, *kv.MemoryKV) {
	store := kv.NewMemoryKV(nil)

	return cache.NewCache(store), store
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newCache()
	ctx := context.Background()

	if _, err := cache.Get[testPage](ctx, c, "nonexistent"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected kv.ErrNotFound, got %v", err)
	}

	page := testPage{IDs: []string{"a", "b"}, Total: 2}
	if err := cache.Set(ctx, c, "records:list:1", page, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := cache.Get[testPage](ctx, c, "records:list:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Total != 2 || len(got.IDs) != 2 || got.IDs[1] != "b" {
		t.Errorf("unexpected page %+v", got)
	}
}

func TestCache_DeleteExists(t *testing.T) {
	c, _ := newCache()
	ctx := context.Background()

	if err := cache.Set(ctx, c, "k", 1, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	if ok, _ := c.Exists(ctx, "k"); !ok {
		t.Fatal("key should exist")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Error("key should not exist after deletion")
	}
}

func TestGetOrSet(t *testing.T) {
	c, _ := newCache()
	ctx := context.Background()

	calls := 0
	getter := func() (testPage, error) {
		calls++

		return testPage{IDs: []string{"x"}, Total: 1}, nil
	}

	for range 3 {
		p, err := cache.GetOrSet(ctx, c, "records:list:x", getter, time.Minute)
		if err != nil {
			t.Fatalf("get or set: %v", err)
		}

		if p.Total != 1 {
			t.Errorf("unexpected page %+v", p)
		}
	}

	if calls != 1 {
		t.Errorf("expected getter to be called once, got %d", calls)
	}
}

func TestGetOrSet_GetterError(t *testing.T) {
	c, store := newCache()
	ctx := context.Background()

	_, err := cache.GetOrSet(ctx, c, "bad", func() (testPage, error) {
		return testPage{}, errors.New("getter error")
	}, 0)
	if err == nil || err.Error() != "getter error" {
		t.Fatalf("expected getter error, got %v", err)
	}

	if ok, _ := store.Exists(ctx, "bad"); ok {
		t.Error("failed getter result must not be cached")
	}
}

// TestGetOrSet_SingleFlight 并发未命中只调用一次 getter.
func TestGetOrSet_SingleFlight(t *testing.T) {
	c, _ := newCache()
	ctx := context.Background()

	var calls atomic.Int32

	release := make(chan struct{})
	getter := func() (int, error) {
		calls.Add(1)
		<-release

		return 7, nil
	}

	var wg sync.WaitGroup

	results := make([]int, 8)
	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i], _ = cache.GetOrSet(ctx, c, "hot", getter, 0)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 getter call, got %d", n)
	}

	for i, v := range results {
		if v != 7 {
			t.Errorf("result %d = %d", i, v)
		}
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	c, store := newCache()
	ctx := context.Background()

	for i := range 3 {
		if err := cache.Set(ctx, c, fmt.Sprintf("records:list:%d", i), i, 0); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	if err := cache.Set(ctx, c, "other", 1, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	n, err := c.DeletePrefix(ctx, "records:list:")
	if err != nil {
		t.Fatalf("delete prefix: %v", err)
	}

	if n != 3 {
		t.Errorf("expected 3 deletions, got %d", n)
	}

	keys, _ := store.Keys(ctx, "")
	if len(keys) != 1 || keys[0] != "other" {
		t.Errorf("unexpected remaining keys %v", keys)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if keys, _ := store.Keys(ctx, ""); len(keys) != 0 {
		t.Errorf("expected empty store, got %v", keys)
	}
}
