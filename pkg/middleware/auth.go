package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yeisme/propvault/pkg/configs"
	ctxPkg "github.com/yeisme/propvault/pkg/context"
	"github.com/yeisme/propvault/pkg/internal/types"
)

var (
	// ErrMissingToken 请求未携带 Bearer 令牌.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken 令牌签名、签发者或有效期校验失败.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken 令牌已过期.
	ErrExpiredToken = errors.New("token expired")
)

// Claims 令牌声明，subject 为操作者.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken 使用 auth.secret 签发 HS256 令牌. ttl 为 0 时使用 auth.token_ttl.
func IssueToken(conf configs.AuthConfig, subject string, role Role, ttl time.Duration) (string, time.Time, error) {
	if conf.Secret == "" {
		return "", time.Time{}, errors.New("auth secret is empty")
	}

	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("subject required")
	}

	if ttl <= 0 {
		ttl = conf.GetTokenTTL()
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(conf.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// ParseToken 校验令牌签名与有效期，issuer 非空时同时校验 iss.
func ParseToken(conf configs.AuthConfig, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if conf.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(conf.Issuer))
	}

	claims := &Claims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(conf.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}

		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// bearerToken 提取 Authorization: Bearer <token>.
func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))

	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// AuthMiddleware 校验 Bearer JWT，并把 subject 与角色注入上下文.
//   - 未启用时所有请求按 admin 放行
//   - skip_paths 中的路径前缀（如 /metrics、/api/v1/health）不做校验
func AuthMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !conf.Enabled {
			withRole(c, RoleAdmin)
			c.Next()

			return
		}

		if isSkippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{Message: ErrMissingToken.Error()})
			return
		}

		claims, err := ParseToken(conf, raw)
		if err != nil {
			msg := ErrInvalidToken.Error()
			if errors.Is(err, ErrExpiredToken) {
				msg = ErrExpiredToken.Error()
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{Message: msg})

			return
		}

		c.Request = c.Request.WithContext(ctxPkg.WithActor(c.Request.Context(), claims.Subject))
		withRole(c, ParseRole(claims.Role))

		c.Next()
	}
}

func isSkippedPath(path string, skips []string) bool {
	if path == "" || len(skips) == 0 {
		return false
	}

	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
