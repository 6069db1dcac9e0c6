// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/internal/service"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/log"
	"github.com/yeisme/propvault/pkg/rule"
)

// NotFound 未注册的路由.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, types.ErrorResponse{Message: "route not found"})
}

// errorBody 错误响应，fields 仅在校验失败时出现.
type errorBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError 把服务层错误映射为状态码与 {message} 响应体.
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorBody{Message: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrFileNotFound):
		c.JSON(http.StatusNotFound, errorBody{Message: err.Error()})
	case errors.Is(err, service.ErrNotRecycled):
		c.JSON(http.StatusConflict, errorBody{Message: err.Error()})
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorBody{Message: err.Error()})
	default:
		l := log.Logger()
		l.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")

		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody{Message: "internal server error"})
	}
}

// bindError 把绑定或校验错误转换为 ValidationError.
func bindError(err error) error {
	if fields := rule.Errors(err); fields != nil {
		return &service.ValidationError{Fields: fields}
	}

	return &service.ValidationError{Fields: map[string]string{"body": err.Error()}}
}

// validate 按 rule 标签校验请求体.
func validate(v any) error {
	if err := rule.ValidateStruct(v); err != nil {
		return bindError(err)
	}

	return nil
}
