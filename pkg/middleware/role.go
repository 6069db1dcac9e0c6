// Package middleware 提供 gin 中间件：认证与角色、日志、指标、追踪、限流、熔断以及资源注入.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/internal/types"
)

// Role 表示请求方的角色（使用 iota 实现的枚举，数值越大权限越高）.
type Role int

const (
	RoleViewer Role = iota + 1 // 只读
	RoleEditor                 // 可新建、修改、移入回收站、永久删除
	RoleAdmin                  // 另可手动清理回收站、管理定时任务
)

// String 返回角色的字符串表示.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleEditor:
		return "editor"
	case RoleViewer:
		fallthrough
	default:
		return "viewer"
	}
}

type roleKey struct{}

// ParseRole 从字符串解析角色，未知值降级为 viewer.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "editor":
		return RoleEditor
	case "viewer":
		fallthrough
	default:
		return RoleViewer
	}
}

// withRole 把角色写入 gin.Context 与 request.Context.
func withRole(c *gin.Context, r Role) {
	c.Set("role", r)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), roleKey{}, r))
}

// GetRole 从 gin.Context 获取当前请求角色，缺省为 viewer.
func GetRole(c *gin.Context) Role {
	if v, ok := c.Get("role"); ok {
		if r, ok2 := v.(Role); ok2 {
			return r
		}
	}
	// 回退到 request context
	if r, ok := c.Request.Context().Value(roleKey{}).(Role); ok {
		return r
	}

	return RoleViewer
}

// RequireMinRole 要求最小角色，不满足则返回 403.
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) < minRole {
			c.AbortWithStatusJSON(http.StatusForbidden, types.ErrorResponse{Message: "forbidden: requires " + minRole.String()})
			return
		}

		c.Next()
	}
}
