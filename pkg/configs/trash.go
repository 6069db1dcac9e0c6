package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultTrashAutoPurge     = true
	DefaultTrashRetentionDays = 30
	DefaultTrashPurgeCron     = "0 3 * * *" // 每天 03:00
)

// TrashConfig 回收站配置.
type TrashConfig struct {
	AutoPurge     bool   `mapstructure:"auto_purge"`     // 是否定时永久删除过期记录
	RetentionDays int    `mapstructure:"retention_days" rule:"min=1"`
	Cron          string `mapstructure:"cron"           rule:"required"`
}

// Retention 返回回收站保留时长.
func (c *TrashConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *TrashConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("trash.auto_purge", DefaultTrashAutoPurge)
	v.SetDefault("trash.retention_days", DefaultTrashRetentionDays)
	v.SetDefault("trash.cron", DefaultTrashPurgeCron)
}
