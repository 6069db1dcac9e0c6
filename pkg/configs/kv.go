package configs

import (
	"time"

	"github.com/spf13/viper"
)

// KVType 键值存储类型.
type KVType string

const (
	KVTypeMemory KVType = "memory"
	KVTypeRedis  KVType = "redis"

	DefaultKVListTTL = 30 // 列表缓存过期时间（秒）
)

// KVConfig 键值存储配置.
type KVConfig struct {
	Type    KVType        `mapstructure:"type"     rule:"oneof=memory redis"`
	ListTTL int           `mapstructure:"list_ttl" rule:"min=0"` // 0 表示不缓存列表
	Redis   RedisKVConfig `mapstructure:"redis"`
}

// RedisKVConfig Redis KV 配置.
type RedisKVConfig struct {
	Addr     string `mapstructure:"addr"     rule:"hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
	Prefix   string `mapstructure:"prefix"`
}

// GetKVType 返回当前配置的 KV 类型.
func (c *KVConfig) GetKVType() KVType {
	return c.Type
}

// GetListTTL 返回列表缓存过期时间.
func (c *KVConfig) GetListTTL() time.Duration {
	return time.Duration(c.ListTTL) * time.Second
}

// setDefaults 设置 KV 配置的默认值.
func (c *KVConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("kv.type", KVTypeMemory)
	v.SetDefault("kv.list_ttl", DefaultKVListTTL)

	v.SetDefault("kv.redis.addr", "localhost:6379")
	v.SetDefault("kv.redis.password", "")
	v.SetDefault("kv.redis.db", 0)
	v.SetDefault("kv.redis.prefix", AppName+":")
}
