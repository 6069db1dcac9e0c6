package configs

import (
	"time"

	"github.com/spf13/viper"
)

// AuthConfig 控制 Bearer JWT 校验.
type AuthConfig struct {
	Enabled   bool     `mapstructure:"enabled"`    // 开启认证校验
	Secret    string   `mapstructure:"secret"`     // HS256 签名密钥
	Issuer    string   `mapstructure:"issuer"`     // 签发者，非空时校验 iss
	TokenTTL  int      `mapstructure:"token_ttl"`  // 签发令牌有效期（分钟）
	SkipPaths []string `mapstructure:"skip_paths"` // 跳过认证的路径前缀（如 /metrics、/api/v1/health）
}

// GetTokenTTL 返回令牌有效期.
func (c *AuthConfig) GetTokenTTL() time.Duration {
	return time.Duration(c.TokenTTL) * time.Minute
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "change-me")
	v.SetDefault("auth.issuer", AppName)
	v.SetDefault("auth.token_ttl", 24*60)
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/api/v1/health",
	})
}
