package configs

import (
	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeGoChannel MQType = "gochannel"
	MQTypeNATS      MQType = "nats"
	MQTypeRedis     MQType = "redis"

	DefaultMQURL         = "nats://localhost:4222"
	DefaultMaxReconnects = 5                 // 默认最大重连次数.
	DefaultReconnectWait = 5                 // 默认重连等待时间（秒）.
	DefaultPingInterval  = 20                // 默认ping间隔 (秒)
	DefaultBufferSize    = 32768             // 默认重连缓冲区大小 (32KB)
	DefaultMQClientID    = AppName + "-app"  // 默认客户端ID
	DefaultChannelBuffer = 64                // gochannel 每个订阅者的缓冲
	DefaultDurablePrefix = AppName + "-dur"  // JetStream 持久化前缀
	DefaultSubjectPrefix = ""                // 主题前缀
	DefaultMQRedisAddr   = "localhost:6379"  // Redis Pub/Sub 地址
)

// MQConfig 消息队列配置.
type MQConfig struct {
	Type          MQType          `mapstructure:"type"           rule:"oneof=gochannel nats redis"`
	URL           string          `mapstructure:"url"`
	User          string          `mapstructure:"user"`
	Password      string          `mapstructure:"password"`
	ClientID      string          `mapstructure:"client_id"`
	MaxReconnects int             `mapstructure:"max_reconnects" rule:"min=-1,max=100"`
	ReconnectWait int             `mapstructure:"reconnect_wait" rule:"min=1,max=300"`
	PingInterval  int             `mapstructure:"ping_interval"  rule:"min=1,max=300"`
	BufferSize    int             `mapstructure:"buffer_size"    rule:"min=1024,max=1048576"`
	EnableMetrics bool            `mapstructure:"enable_metrics"`
	NATS          MQNATSConfig    `mapstructure:"nats"`
	GoChannel     GoChannelConfig `mapstructure:"gochannel"`
	Redis         MQRedisConfig   `mapstructure:"redis"`
}

// MQNATSConfig NATS MQ 配置.
type MQNATSConfig struct {
	JetStreamEnabled bool     `mapstructure:"jetstream_enabled"`
	AutoProvision    bool     `mapstructure:"auto_provision"`
	TrackMsgID       bool     `mapstructure:"track_msg_id"`
	AckAsync         bool     `mapstructure:"ack_async"`
	DurablePrefix    string   `mapstructure:"durable_prefix"`
	SubjectPrefix    string   `mapstructure:"subject_prefix"`
	JWT              string   `mapstructure:"jwt"`
	NKey             string   `mapstructure:"nkey"`
	ClusterURLs      []string `mapstructure:"cluster_urls"`
}

// GoChannelConfig 进程内 gochannel 配置，单实例部署使用.
type GoChannelConfig struct {
	BufferSize int64 `mapstructure:"buffer_size" rule:"min=0"`
	Persistent bool  `mapstructure:"persistent"`
}

// MQRedisConfig Redis Pub/Sub 配置. 消息不落盘，订阅者离线期间的事件会丢失.
type MQRedisConfig struct {
	Addr     string `mapstructure:"addr"     rule:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
}

// GetMQType 返回当前配置的消息队列类型.
func (c *MQConfig) GetMQType() MQType {
	return c.Type
}

// setDefaults 设置MQ配置的默认值.
func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeGoChannel)

	v.SetDefault("mq.url", DefaultMQURL)
	v.SetDefault("mq.user", "")
	v.SetDefault("mq.password", "")
	v.SetDefault("mq.client_id", DefaultMQClientID)
	v.SetDefault("mq.max_reconnects", DefaultMaxReconnects)
	v.SetDefault("mq.reconnect_wait", DefaultReconnectWait)
	v.SetDefault("mq.ping_interval", DefaultPingInterval)
	v.SetDefault("mq.buffer_size", DefaultBufferSize)
	v.SetDefault("mq.enable_metrics", false)

	v.SetDefault("mq.nats.jetstream_enabled", false)
	v.SetDefault("mq.nats.auto_provision", true)
	v.SetDefault("mq.nats.track_msg_id", true)
	v.SetDefault("mq.nats.ack_async", false)
	v.SetDefault("mq.nats.durable_prefix", DefaultDurablePrefix)
	v.SetDefault("mq.nats.subject_prefix", DefaultSubjectPrefix)
	v.SetDefault("mq.nats.cluster_urls", []string{})

	v.SetDefault("mq.gochannel.buffer_size", DefaultChannelBuffer)
	v.SetDefault("mq.gochannel.persistent", false)

	v.SetDefault("mq.redis.addr", DefaultMQRedisAddr)
	v.SetDefault("mq.redis.db", 0)
}
