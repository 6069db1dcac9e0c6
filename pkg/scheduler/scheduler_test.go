package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/scheduler"
)

func TestAddCronAndRunNow(t *testing.T) {
	s, err := scheduler.NewScheduler()
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	var runs atomic.Int32

	require.NoError(t, s.AddCron("purge", "0 3 * * *", func(context.Context) { runs.Add(1) }, context.Background()))
	require.Error(t, s.AddCron("purge", "0 3 * * *", func(context.Context) {}, context.Background()))

	info, err := s.GetJobInfoByName("purge")
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * *", info.CronExpr)
	assert.Equal(t, scheduler.StatusScheduled, info.Status)

	require.NoError(t, s.RunJobByName("purge"))

	assert.Eventually(t, func() bool {
		info, err := s.GetJobInfoByName("purge")

		return err == nil && runs.Load() == 1 && !info.LastSuccess.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPanickingJobReportsError(t *testing.T) {
	s, err := scheduler.NewScheduler()
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.AddCron("boom", "0 3 * * *", func(context.Context) { panic("boom") }, context.Background()))
	require.NoError(t, s.RunJobByName("boom"))

	assert.Eventually(t, func() bool {
		info, err := s.GetJobInfoByName("boom")

		return err == nil && info.Status == scheduler.StatusError && info.Error != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRemoveJobByName(t *testing.T) {
	s, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.AddCron("b", "0 3 * * *", func(context.Context) {}, context.Background()))
	require.NoError(t, s.AddCron("a", "0 4 * * *", func(context.Context) {}, context.Background()))

	infos := s.GetJobInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)

	require.NoError(t, s.RemoveJobByName("a"))
	assert.Error(t, s.RemoveJobByName("a"))
	assert.Len(t, s.GetJobInfos(), 1)
	assert.Error(t, s.RunJobByName("a"))
}
