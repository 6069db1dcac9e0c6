package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/context"
	"github.com/yeisme/propvault/pkg/internal/storage"
)

// StorageMiddleware 把存储 Manager 注入 request context，服务层据此取用数据库、对象存储与缓存.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
