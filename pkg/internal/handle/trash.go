package handle

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/service"
	"github.com/yeisme/propvault/pkg/log"
)

// PurgeTrash 立即清理回收站中超过保留期的记录.
//
//	@Summary	清理回收站
//	@Tags		回收站
//	@Produce	json
//	@Param		days	query		int	false	"保留天数(默认 trash.retention_days)"
//	@Success	200		{object}	map[string]any
//	@Router		/api/v1/trash/purge [post]
func PurgeTrash(c *gin.Context) {
	cfg := configs.GetConfig().Trash
	retention := cfg.Retention()

	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			writeError(c, &service.ValidationError{Fields: map[string]string{"days": "must be a non-negative integer"}})
			return
		}

		retention = time.Duration(days) * 24 * time.Hour
	}

	before := time.Now().Add(-retention)

	n, err := service.NewRecordService(c.Request.Context()).PurgeExpired(c.Request.Context(), before)
	if err != nil {
		writeError(c, err)
		return
	}

	l := log.Logger()
	l.Info().Int("purged", n).Time("before", before).Msg("recycle bin purged")

	c.JSON(http.StatusOK, gin.H{"purged": n, "before": before.UTC()})
}
