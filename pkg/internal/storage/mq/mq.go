// Package mq 提供基于 Watermill 的统一消息队列操作接口，承载记录事件的发布与订阅.
//
// 支持的 MQ 类型：
//   - gochannel（进程内，单实例部署的默认值）
//   - NATS（可选 JetStream，多实例部署时用于跨实例失效缓存）
//   - Redis Pub/Sub（已部署 Redis 缓存时复用，不保证离线期间的消息）
//
// 使用示例：
//
//	client, err := mq.New(ctx, &cfg.MQ)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	msg := message.NewMessage(watermill.NewUUID(), []byte("hello"))
//	err = client.Publish(ctx, "pv.record.created", msg)
//
//	client.Consume(ctx, "pv.record.created", func(msg *message.Message) error {
//		fmt.Println(string(msg.Payload))
//		return nil
//	})
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/propvault/pkg/configs"
	nlog "github.com/yeisme/propvault/pkg/log"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型（已排序）.
func GetRegisteredMQTypes() []configs.MQType {
	out := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	kind       configs.MQType
	prefix     string
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	closeFunc  func() // 用于关闭metrics服务器
}

// New 按配置创建消息队列客户端.
func New(ctx context.Context, cfg *configs.MQConfig) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := NewLoggerAdapter(nlog.Component("mq"))

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	c := &Client{kind: cfg.Type, publisher: pub, subscriber: sub}
	if cfg.Type == configs.MQTypeNATS {
		c.prefix = cfg.NATS.SubjectPrefix
	}

	if cfg.EnableMetrics && configs.GetConfig().Metrics.Enabled {
		if err := c.enableMetrics(ctx, logger); err != nil {
			_ = c.Close()

			return nil, err
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("mq client initialized")

	return c, nil
}

// enableMetrics 启动独立的指标端点并装饰 publisher/subscriber.
func (c *Client) enableMetrics(ctx context.Context, logger watermill.LoggerAdapter) error {
	metricsCfg := configs.GetConfig().Metrics
	registry, closeServer := metrics.CreateRegistryAndServeHTTP(metricsCfg.Endpoint)
	c.closeFunc = closeServer

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	c.router = router

	go func() {
		if runErr := router.Run(ctx); runErr != nil {
			nlog.Logger().Error().Err(runErr).Msg("router run error")
		}
	}()

	builder := metrics.NewPrometheusMetricsBuilder(registry, configs.AppName, "mq")
	builder.AddPrometheusRouterMetrics(router)

	if c.publisher, err = builder.DecoratePublisher(c.publisher); err != nil {
		return fmt.Errorf("decorate publisher with metrics: %w", err)
	}

	if c.subscriber, err = builder.DecorateSubscriber(c.subscriber); err != nil {
		return fmt.Errorf("decorate subscriber with metrics: %w", err)
	}

	nlog.Logger().Info().Str("endpoint", metricsCfg.Endpoint).Msg("mq metrics enabled")

	return nil
}

// Type 返回底层 MQ 类型.
func (c *Client) Type() configs.MQType {
	return c.kind
}

// Publish 便捷发布.
func (c *Client) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return errors.New("mq publisher not initialized")
	}

	for _, m := range msgs {
		m.SetContext(ctx)
	}

	return c.publisher.Publish(c.prefix+topic, msgs...)
}

// Subscribe 订阅主题，消息需由调用方 Ack/Nack.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, errors.New("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, c.prefix+topic)
}

// Consume 在后台协程中处理主题消息直到 ctx 结束. handler 返回错误时 Nack，否则 Ack.
func (c *Client) Consume(ctx context.Context, topic string, handler func(*message.Message) error) error {
	ch, err := c.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		l := nlog.Component("mq")

		for msg := range ch {
			if err := handler(msg); err != nil {
				l.Warn().Err(err).Str("topic", topic).Str("uuid", msg.UUID).Msg("message handler failed")
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

// HealthCheck 检查客户端是否可用.
func (c *Client) HealthCheck(context.Context) error {
	if c == nil || c.publisher == nil || c.subscriber == nil {
		return errors.New("mq client not initialized")
	}

	return nil
}

// Close 关闭资源.
func (c *Client) Close() error {
	var errs []error

	if c.router != nil {
		errs = append(errs, c.router.Close())
	}

	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	if c.subscriber != nil {
		errs = append(errs, c.subscriber.Close())
	}

	if c.closeFunc != nil {
		c.closeFunc()
	}

	return errors.Join(errs...)
}
