// Package jobs 负责注册与实现业务定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/yeisme/propvault/pkg/configs"
	ctxPkg "github.com/yeisme/propvault/pkg/context"
	"github.com/yeisme/propvault/pkg/internal/service"
	"github.com/yeisme/propvault/pkg/internal/storage"
	"github.com/yeisme/propvault/pkg/log"
	"github.com/yeisme/propvault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - trash.cron（默认每天 03:00）永久删除移入回收站超过 trash.retention_days 的记录，trash.auto_purge 关闭时不注册
//   - 每 5 分钟探测一次数据库、对象存储与消息队列
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager, trash configs.TrashConfig) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if mgr == nil {
		return errors.New("storage manager is nil")
	}

	// 将 storage manager 注入到 context，便于 service 使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	if trash.AutoPurge {
		retention := trash.Retention()

		err := sched.AddCron(JobTrashAutoPurge, trash.Cron, func(ctx context.Context) {
			RunTrashAutoPurge(ctx, time.Now().Add(-retention))
		}, baseCtx)
		if err != nil {
			return err
		}
	}

	return sched.AddCron(JobStorageHealth, CronStorageHealth, func(ctx context.Context) {
		runStorageHealth(ctx, mgr)
	}, baseCtx)
}

// RunTrashAutoPurge 删除 before 之前移入回收站的记录. ctx 需携带 storage manager.
func RunTrashAutoPurge(ctx context.Context, before time.Time) int {
	l := log.Component("jobs").With().Str("job", JobTrashAutoPurge).Logger()

	n, err := service.NewRecordService(ctx).PurgeExpired(ctx, before)
	if err != nil {
		l.Error().Err(err).Int("purged", n).Msg("auto purge failed")
		return n
	}

	if n > 0 {
		l.Info().Int("purged", n).Time("before", before).Msg("auto purged recycle bin")
	}

	return n
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// runStorageHealth 依次探测各存储组件，失败只记录日志.
func runStorageHealth(ctx context.Context, mgr *storage.Manager) {
	l := log.Component("jobs").With().Str("job", JobStorageHealth).Logger()

	components := map[string]healthChecker{}
	if c := mgr.GetDBClient(); c != nil {
		components["db"] = c
	}

	if c := mgr.GetS3Client(); c != nil {
		components["s3"] = c
	}

	if c := mgr.GetMQClient(); c != nil {
		components["mq"] = c
	}

	for name, c := range components {
		probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
		err := c.HealthCheck(probeCtx)

		cancel()

		if err != nil {
			l.Warn().Err(err).Str("component", name).Msg("storage unhealthy")
			continue
		}

		l.Debug().Str("component", name).Msg("storage healthy")
	}
}
