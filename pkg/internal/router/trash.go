package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/internal/handle"
	"github.com/yeisme/propvault/pkg/middleware"
)

// RegisterTrashRoutes 注册回收站管理路由，仅 admin 可访问.
func RegisterTrashRoutes(g *gin.RouterGroup) {
	trashRoutes := g.Group("/trash", middleware.RequireMinRole(middleware.RoleAdmin))
	{
		trashRoutes.POST("/purge", handle.PurgeTrash) // 立即清理过期记录
	}
}
