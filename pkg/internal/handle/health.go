package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/propvault/pkg/context"
)

const timeout = 2 * time.Second

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthDB 数据库健康检查.
func HealthDB(c *gin.Context) {
	var hc healthChecker
	if dbc := ctxPkg.GetDBClient(c.Request.Context()); dbc != nil && dbc.DB != nil {
		hc = dbc
	}

	health(c, "db", hc)
}

// HealthS3 对象存储健康检查.
func HealthS3(c *gin.Context) {
	var hc healthChecker
	if s3c := ctxPkg.GetS3Client(c.Request.Context()); s3c != nil {
		hc = s3c
	}

	health(c, "s3", hc)
}

// HealthMQ 消息队列健康检查.
func HealthMQ(c *gin.Context) {
	var hc healthChecker
	if mqc := ctxPkg.GetMQClient(c.Request.Context()); mqc != nil {
		hc = mqc
	}

	health(c, "mq", hc)
}

func health(c *gin.Context, component string, hc healthChecker) {
	if hc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "message": component + " client not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := hc.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": component, "status": "ok"})
}
