package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxPkg "github.com/yeisme/propvault/pkg/context"
	"github.com/yeisme/propvault/pkg/internal/jobs"
	"github.com/yeisme/propvault/pkg/internal/model"
	"github.com/yeisme/propvault/pkg/internal/service"
	"github.com/yeisme/propvault/pkg/internal/storage/storagetest"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/scheduler"
)

func TestRegisterCronJobs(t *testing.T) {
	cfg := storagetest.Config(t)
	mgr := storagetest.New(t, cfg)

	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	require.NoError(t, jobs.RegisterCronJobs(sched, mgr, cfg.Trash))

	info, err := sched.GetJobInfoByName(jobs.JobTrashAutoPurge)
	require.NoError(t, err)
	assert.Equal(t, cfg.Trash.Cron, info.CronExpr)

	_, err = sched.GetJobInfoByName(jobs.JobStorageHealth)
	require.NoError(t, err)

	assert.Error(t, jobs.RegisterCronJobs(nil, mgr, cfg.Trash))
	assert.Error(t, jobs.RegisterCronJobs(sched, nil, cfg.Trash))
}

func TestAutoPurgeDisabled(t *testing.T) {
	cfg := storagetest.Config(t)
	mgr := storagetest.New(t, cfg)

	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	trash := cfg.Trash
	trash.AutoPurge = false

	require.NoError(t, jobs.RegisterCronJobs(sched, mgr, trash))

	_, err = sched.GetJobInfoByName(jobs.JobTrashAutoPurge)
	assert.Error(t, err)
}

func TestRunTrashAutoPurge(t *testing.T) {
	mgr := storagetest.New(t, nil)
	ctx := ctxPkg.WithStorageManager(context.Background(), mgr)
	svc := service.NewRecordService(ctx)

	rec, err := svc.Create(ctx, service.CreateInput{
		Category: types.CategoryWallet,
		Fields: types.Fields{
			SharerName:    "Old",
			SharerContact: "9876543210",
			Village:       "Sanand",
			FileType:      "Title Clear Lands",
			LandType:      "Agriculture",
			Tenure:        "New Tenure",
		},
	})
	require.NoError(t, err)

	_, err = svc.SetRecycleBin(ctx, rec.ID, true)
	require.NoError(t, err)

	longAgo := time.Now().UTC().AddDate(0, 0, -45)
	require.NoError(t, mgr.DB.Model(&model.Record{}).Where("id = ?", rec.ID).Update("recycled_at", longAgo).Error)

	assert.Equal(t, 1, jobs.RunTrashAutoPurge(ctx, time.Now().AddDate(0, 0, -30)))
	assert.Equal(t, 0, jobs.RunTrashAutoPurge(ctx, time.Now().AddDate(0, 0, -30)))

	_, err = svc.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRunTrashAutoPurgeWithoutStorage(t *testing.T) {
	storagetest.Config(t)

	assert.Equal(t, 0, jobs.RunTrashAutoPurge(context.Background(), time.Now()))
}
