// Package configs 管理 propvault 的配置，覆盖服务端（数据库、对象存储、KV、消息队列）
// 与客户端（网关地址、会话、搜索防抖、错误横幅）两部分.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv），环境变量覆盖并可启用热重载.
//
// Example:
//
//	if err := configs.InitConfig("./"); err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing Client config:
//
//	c := configs.GetConfig().Client
//	fmt.Println(c.BaseURL, c.GetSearchDebounce())
//
// 环境变量使用 PROPVAULT_ 前缀，层级以下划线分隔，例如 PROPVAULT_DB_TYPE=sqlite.
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/propvault/pkg/rule"
)

// EnvPrefix 环境变量前缀.
const EnvPrefix = "PROPVAULT"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		DB             DBConfig             `mapstructure:"db"`              // 数据库配置
		S3             S3Config             `mapstructure:"s3"`              // 对象存储配置
		KV             KVConfig             `mapstructure:"kv"`              // 键值存储配置
		MQ             MQConfig             `mapstructure:"mq"`              // 消息队列配置
		Server         ServerConfig         `mapstructure:"server"`          // 服务器配置
		Log            LogConfig            `mapstructure:"log"`             // 日志配置
		Auth           AuthConfig           `mapstructure:"auth"`            // 鉴权配置
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // 指标配置
		Tracing        TracingConfig        `mapstructure:"tracing"`         // 链路追踪配置
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // 限流配置
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // 熔断配置
		Events         EventsConfig         `mapstructure:"events"`          // 事件配置
		Trash          TrashConfig          `mapstructure:"trash"`           // 回收站配置
		Client         ClientConfig         `mapstructure:"client"`          // 客户端配置
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
	// configMu 保护热重载期间的配置替换.
	configMu sync.RWMutex
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// 找不到配置文件时使用默认值与环境变量.
func InitConfig(path string) error {
	v := viper.New()
	setAllDefaults(v)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	configMu.Lock()
	globalConfig = cfg
	appViper = v
	configMu.Unlock()

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var c AppConfig

	c.Server.setDefaults(v)
	c.DB.setDefaults(v)
	c.S3.setDefaults(v)
	c.KV.setDefaults(v)
	c.MQ.setDefaults(v)
	c.Log.setDefaults(v)
	c.Auth.setDefaults(v)
	c.Metrics.setDefaults(v)
	c.Tracing.setDefaults(v)
	c.RateLimit.setDefaults(v)
	c.CircuitBreaker.setDefaults(v)
	c.Events.setDefaults(v)
	c.Trash.setDefaults(v)
	c.Client.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Fprintln(os.Stderr, "Config file changed:", e.Name)

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error reloading config: %v\n", err)

			return
		}

		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	configMu.RLock()
	defer configMu.RUnlock()

	c := globalConfig

	return &c
}

// SetConfig 替换全局配置，供测试与嵌入场景使用.
func SetConfig(c AppConfig) {
	configMu.Lock()
	globalConfig = c
	configMu.Unlock()
}

// Validate 按 rule 标签校验整个配置.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// GetViper 返回加载配置使用的 viper 实例，未初始化时为 nil.
func GetViper() *viper.Viper {
	configMu.RLock()
	defer configMu.RUnlock()

	return appViper
}
