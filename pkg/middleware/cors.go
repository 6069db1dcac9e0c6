package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/configs"
)

// CORSMiddleware CORS中间件. 客户端以 Bearer 令牌认证，不依赖 cookie，因此允许任意来源.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = append(config.AllowMethods, "PATCH")
	config.AllowHeaders = append(config.AllowHeaders, "Authorization", "traceparent")
	config.ExposeHeaders = []string{"Content-Length"}

	if cfg.Debug {
		config.AllowWebSockets = true
	}

	return cors.New(config)
}
