// Package storage 聚合服务端使用的存储资源：记录元数据数据库、附件对象存储、列表缓存 KV
// 与记录事件消息队列.
//
// Example:
//
//	mgr, err := storage.New(ctx, configs.GetConfig())
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	dbClient := mgr.GetDBClient()
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yeisme/propvault/pkg/cache"
	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/model"
	dbc "github.com/yeisme/propvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/propvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/propvault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/propvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/propvault/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB *dbc.Client
	S3 s3c.Store
	KV *kvc.Client
	MQ *mqc.Client

	// Cache 基于 KV 的列表缓存，进程内共享以合并并发回源.
	Cache *cache.Cache
}

var (
	mgr     *Manager
	mgrErr  error
	mgrOnce sync.Once
)

// Init 使用全局配置初始化默认存储，重复调用只返回已初始化实例.
func Init(ctx context.Context) (*Manager, error) {
	mgrOnce.Do(func() {
		mgr, mgrErr = New(ctx, configs.GetConfig())
	})

	return mgr, mgrErr
}

// New 按配置创建全部存储资源并迁移数据库，任一资源失败时关闭已创建的资源.
func New(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	m := &Manager{}

	var err error

	fail := func(what string, e error) (*Manager, error) {
		_ = m.Close()

		return nil, fmt.Errorf("init %s: %w", what, e)
	}

	if m.DB, err = dbc.New(ctx, &cfg.DB); err != nil {
		return fail("db", err)
	}

	if err = m.DB.Migrate(ctx, model.All()...); err != nil {
		return fail("db", err)
	}

	if m.S3, err = s3c.New(ctx, &cfg.S3); err != nil {
		return fail("s3", err)
	}

	if m.KV, err = kvc.New(ctx, &cfg.KV); err != nil {
		return fail("kv", err)
	}

	m.Cache = cache.NewCache(m.KV)

	if m.MQ, err = mqc.New(ctx, &cfg.MQ); err != nil {
		return fail("mq", err)
	}

	nlog.Logger().Info().
		Str("db", cfg.DB.GetDBType()).
		Str("kv", string(cfg.KV.Type)).
		Str("mq", string(cfg.MQ.Type)).
		Msg("storage manager initialized")

	return m, nil
}

// GetS3Client 获取对象存储.
func (m *Manager) GetS3Client() s3c.Store {
	return m.S3
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// GetCache 获取列表缓存.
func (m *Manager) GetCache() *cache.Cache {
	return m.Cache
}

// Close 关闭全部已创建的资源.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.S3 != nil {
		errs = append(errs, m.S3.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
