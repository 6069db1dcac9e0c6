package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/middleware"
	"github.com/yeisme/propvault/pkg/scheduler"
)

func getScheduler(c *gin.Context) *scheduler.Scheduler {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Message: "scheduler not running"})
	}

	return sched
}

// SchedulerJobs 返回所有调度器任务信息.
func SchedulerJobs(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}

// SchedulerStopJobs 停止所有任务.
func SchedulerStopJobs(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	if err := sched.StopJobs(); err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, types.MessageResponse{Message: "jobs stopped"})
}

// SchedulerRunJob 立即执行指定名称的任务.
func SchedulerRunJob(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	if err := sched.RunJobByName(c.Param("name")); err != nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, types.MessageResponse{Message: "job triggered"})
}

// SchedulerRemoveJob 删除任务，参数可以是任务名或任务 ID.
func SchedulerRemoveJob(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	ref := c.Param("name")

	var err error
	if id, perr := uuid.Parse(ref); perr == nil {
		err = sched.RemoveJob(id)
	} else {
		err = sched.RemoveJobByName(ref)
	}

	if err != nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, types.MessageResponse{Message: "job removed"})
}

// SchedulerQueueWaiting 返回队列中等待的任务数.
func SchedulerQueueWaiting(c *gin.Context) {
	sched := getScheduler(c)
	if sched == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"waiting": sched.JobsWaitingInQueue()})
}
