package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/configs"
)

// Common 返回服务端通用中间件链，顺序固定：恢复、日志、CORS、压缩、追踪、指标、限流、熔断、认证.
// 资源注入（StorageMiddleware、SchedulerMiddleware）由调用方在其后追加.
func Common(cfg *configs.AppConfig) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		gin.Recovery(),
		GinLoggerMiddleware(),
		CORSMiddleware(cfg.Server),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{metricsPath(cfg.Metrics)})),
	}

	if cfg.Tracing.Enabled {
		chain = append(chain, TracingMiddleware())
	}

	if cfg.Metrics.Enabled {
		chain = append(chain, PrometheusMiddleware())
	}

	return append(chain,
		RateLimitMiddleware(cfg.RateLimit),
		CircuitBreakerMiddleware(cfg.CircuitBreaker),
		AuthMiddleware(cfg.Auth),
	)
}

func metricsPath(cfg configs.MetricsConfig) string {
	if cfg.Path == "" {
		return "/metrics"
	}

	return cfg.Path
}
