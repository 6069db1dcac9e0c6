package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/internal/handle"
	"github.com/yeisme/propvault/pkg/middleware"
)

// RegisterSchedulerRoutes 注册调度器相关路由，仅 admin 可访问.
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	sched := g.Group("/scheduler", middleware.RequireMinRole(middleware.RoleAdmin))
	{
		sched.GET("/jobs", handle.SchedulerJobs)

		sched.POST("/jobs/stop", handle.SchedulerStopJobs)

		sched.POST("/jobs/:name/run", handle.SchedulerRunJob)

		sched.DELETE("/jobs/:name", handle.SchedulerRemoveJob)

		sched.GET("/queue/waiting", handle.SchedulerQueueWaiting)
	}
}
