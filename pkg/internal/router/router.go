// Package router 管理路由配置，把请求路径绑定到 handle 包中的处理器.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/handle"
	"github.com/yeisme/propvault/pkg/middleware"
)

// Register 在 engine 上注册全部 API 路由，前缀为 server.base_path.
func Register(engine *gin.Engine, cfg *configs.ServerConfig) *gin.RouterGroup {
	engine.UseRawPath = true
	engine.UnescapePathValues = true
	engine.NoRoute(handle.NotFound)

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = configs.DefaultBasePath
	}

	collection := cfg.Collection
	if collection == "" {
		collection = configs.DefaultCollection
	}

	api := engine.Group(basePath)

	RegisterHealthCheckRoute(api)
	RegisterRecordRoutes(api, collection)
	RegisterTrashRoutes(api)
	RegisterSchedulerRoutes(api)

	return api
}

// RegisterRecordRoutes 注册记录路由. 绑定的路径（collection 默认为 properties）：
//
//	POST   /{collection}                                      -> CreateRecord
//	GET    /{collection}                                      -> ListRecords
//	GET    /{collection}/:id                                  -> GetRecord
//	PUT    /{collection}/:id                                  -> UpdateRecord
//	DELETE /{collection}/:id                                  -> DeleteRecord
//	DELETE /{collection}/:id/files/:fileType/:remoteId        -> DeleteRecordFile
//	PATCH  /{collection}/:id/onboard                          -> SetRecordOnBoard
//	PATCH  /{collection}/:id/recycleBin                       -> SetRecordRecycleBin
//
// remoteId 中的 "/" 以 %2F 传输，需要引擎开启 UseRawPath 与 UnescapePathValues.
// 读操作对所有已认证角色开放，写操作要求 editor.
func RegisterRecordRoutes(g *gin.RouterGroup, collection string) {
	edit := middleware.RequireMinRole(middleware.RoleEditor)

	records := g.Group("/" + collection)
	{
		records.POST("", edit, handle.CreateRecord)
		records.GET("", handle.ListRecords)

		recordGroup := records.Group("/:id")
		{
			recordGroup.GET("", handle.GetRecord)
			recordGroup.PUT("", edit, handle.UpdateRecord)
			recordGroup.DELETE("", edit, handle.DeleteRecord)
			recordGroup.DELETE("/files/:fileType/:remoteId", edit, handle.DeleteRecordFile)
			recordGroup.PATCH("/onboard", edit, handle.SetRecordOnBoard)
			recordGroup.PATCH("/recycleBin", edit, handle.SetRecordRecycleBin)
		}
	}
}
