package configs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultClientBaseURL        = "http://localhost:8080/api/v1"
	DefaultClientCategory       = "wallet"
	DefaultClientPageLimit      = 10
	DefaultClientRequestTimeout = 30  // 秒
	DefaultClientDebounceMS     = 500 // 搜索防抖窗口（毫秒）
	DefaultClientBannerSeconds  = 5   // 错误横幅自动消失（秒）
	DefaultClientSessionTTL     = 24 * 60
)

// ClientConfig 客户端（记录维护终端）配置.
type ClientConfig struct {
	BaseURL        string               `mapstructure:"base_url"        rule:"required,url"`
	Collection     string               `mapstructure:"collection"      rule:"required"`
	Category       string               `mapstructure:"category"`
	PageLimit      int                  `mapstructure:"page_limit"      rule:"min=1,max=100"`
	RequestTimeout int                  `mapstructure:"request_timeout" rule:"min=1"`
	DebounceMS     int                  `mapstructure:"debounce_ms"     rule:"min=0"`
	BannerSeconds  int                  `mapstructure:"banner_seconds"  rule:"min=1"`
	SessionFile    string               `mapstructure:"session_file"`
	SessionTTL     int                  `mapstructure:"session_ttl"     rule:"min=1"` // 会话有效期（分钟）
	PreviewDir     string               `mapstructure:"preview_dir"`                  // 预览临时文件目录，空为系统临时目录
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// GetRequestTimeout 返回单次请求超时.
func (c *ClientConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetSearchDebounce 返回搜索防抖窗口.
func (c *ClientConfig) GetSearchDebounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// GetBannerTimeout 返回错误横幅的展示时长.
func (c *ClientConfig) GetBannerTimeout() time.Duration {
	return time.Duration(c.BannerSeconds) * time.Second
}

// GetSessionTTL 返回会话有效期.
func (c *ClientConfig) GetSessionTTL() time.Duration {
	return time.Duration(c.SessionTTL) * time.Minute
}

// GetSessionFile 返回会话文件路径，未配置时位于用户配置目录.
func (c *ClientConfig) GetSessionFile() string {
	if c.SessionFile != "" {
		return c.SessionFile
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}

	return filepath.Join(dir, AppName, "session.json")
}

func (c *ClientConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("client.base_url", DefaultClientBaseURL)
	v.SetDefault("client.collection", DefaultCollection)
	v.SetDefault("client.category", DefaultClientCategory)
	v.SetDefault("client.page_limit", DefaultClientPageLimit)
	v.SetDefault("client.request_timeout", DefaultClientRequestTimeout)
	v.SetDefault("client.debounce_ms", DefaultClientDebounceMS)
	v.SetDefault("client.banner_seconds", DefaultClientBannerSeconds)
	v.SetDefault("client.session_file", "")
	v.SetDefault("client.session_ttl", DefaultClientSessionTTL)
	v.SetDefault("client.preview_dir", "")
}
