package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Metrics相关配置.
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`         // 是否启用Metrics
	Path           string            `mapstructure:"path"`            // HTTP 暴露路径
	Endpoint       string            `mapstructure:"endpoint"`        // MQ 指标独立监听地址
	RuntimeMetrics bool              `mapstructure:"runtime_metrics"` // 是否收集运行时指标
	DBRefresh      uint32            `mapstructure:"db_refresh"`      // gorm 连接池指标刷新间隔（秒）
	Labels         map[string]string `mapstructure:"labels"`          // 默认标签
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.endpoint", ":9092")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.db_refresh", 15)
	v.SetDefault("metrics.labels", map[string]string{
		"service": AppName,
	})
}
