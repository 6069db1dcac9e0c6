package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/propvault/pkg/configs"
)

// redisEnvelope Redis 频道中传输的消息，保留 watermill 的 UUID 与元数据.
type redisEnvelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// redisPublisher 基于 Redis PUBLISH 的 Publisher.
type redisPublisher struct {
	client *redis.Client
}

// redisSubscriber 基于 Redis SUBSCRIBE 的 Subscriber，每个主题一个 PubSub 连接.
type redisSubscriber struct {
	client *redis.Client
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

// redisFactory 创建共用同一 Redis 连接池的 Publisher 与 Subscriber.
func redisFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter,
) (message.Publisher, message.Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}

	sub := &redisSubscriber{
		client:  rdb,
		logger:  logger,
		closing: make(chan struct{}),
	}

	return &redisPublisher{client: rdb}, sub, nil
}

// Publish 编码后逐条 PUBLISH.
func (p *redisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		data, err := sonic.Marshal(redisEnvelope{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return fmt.Errorf("encode message %s: %w", msg.UUID, err)
		}

		if err := p.client.Publish(msg.Context(), topic, data).Err(); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}
	}

	return nil
}

// Close 连接由 subscriber 关闭.
func (p *redisPublisher) Close() error {
	return nil
}

// Subscribe 订阅主题并等待 Redis 确认，随后在后台投递消息.
func (s *redisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("redis subscriber closed")
	}

	ps := s.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()

		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s.subs = append(s.subs, ps)

	out := make(chan *message.Message)

	s.wg.Add(1)

	go s.deliver(ctx, topic, ps, out)

	return out, nil
}

func (s *redisSubscriber) deliver(ctx context.Context, topic string, ps *redis.PubSub, out chan<- *message.Message) {
	defer s.wg.Done()
	defer close(out)

	in := ps.Channel()

	for {
		select {
		case <-s.closing:
			return
		case <-ctx.Done():
			return
		case raw, ok := <-in:
			if !ok {
				return
			}

			var env redisEnvelope
			if err := sonic.UnmarshalString(raw.Payload, &env); err != nil {
				s.logger.Error("decode redis message", err, watermill.LogFields{"topic": topic})
				continue
			}

			if !s.send(ctx, out, env) {
				return
			}
		}
	}
}

// send 投递一条消息并等待 Ack，Nack 时重新投递. 订阅结束时返回 false.
func (s *redisSubscriber) send(ctx context.Context, out chan<- *message.Message, env redisEnvelope) bool {
	if env.UUID == "" {
		env.UUID = watermill.NewUUID()
	}

	for {
		msg := message.NewMessage(env.UUID, env.Payload)
		for k, v := range env.Metadata {
			msg.Metadata.Set(k, v)
		}

		msgCtx, cancel := context.WithCancel(ctx)
		msg.SetContext(msgCtx)

		select {
		case out <- msg:
		case <-s.closing:
			cancel()
			return false
		case <-ctx.Done():
			cancel()
			return false
		}

		select {
		case <-msg.Acked():
			cancel()
			return true
		case <-msg.Nacked():
			cancel()
		case <-s.closing:
			cancel()
			return false
		case <-ctx.Done():
			cancel()
			return false
		}
	}
}

// Close 关闭全部订阅并释放连接池.
func (s *redisSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	close(s.closing)
	subs := s.subs
	s.mu.Unlock()

	var errs []error
	for _, ps := range subs {
		errs = append(errs, ps.Close())
	}

	s.wg.Wait()

	errs = append(errs, s.client.Close())

	return errors.Join(errs...)
}
