package configs

import "github.com/spf13/viper"

// EventsConfig 控制记录事件发布的开关（全局与分事件）.
type EventsConfig struct {
	Enabled bool               `mapstructure:"enabled"` // 总开关
	Record  RecordEventsConfig `mapstructure:"record"`
}

// RecordEventsConfig 针对房产记录的事件开关.
type RecordEventsConfig struct {
	Created     bool `mapstructure:"created"`
	Updated     bool `mapstructure:"updated"`
	Deleted     bool `mapstructure:"deleted"`
	FileDeleted bool `mapstructure:"file_deleted"`
	Flagged     bool `mapstructure:"flagged"`
	Purged      bool `mapstructure:"purged"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.record.created", true)
	v.SetDefault("events.record.updated", true)
	v.SetDefault("events.record.deleted", true)
	v.SetDefault("events.record.file_deleted", true)
	v.SetDefault("events.record.flagged", true)
	v.SetDefault("events.record.purged", true)
}
