// Package queue 定义记录事件的主题、负载与消息封装.
//
// 统一的消息封装：Message[Payload] = Header + Payload，默认 JSON 编解码（bytedance/sonic）.
// 主题常量见 topics.go，负载结构体见 payloads.go.
//
// 消息信封 JSON 结构
//
//	{
//	  "header": {
//	    "topic": "pv.record.created",
//	    "trace_id": "optional-trace-id",
//	    "producer": "propvault",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": {"record_id": "01J...", "category": "rd"}
//	}
//
// 发布与订阅
//
//	_ = queue.PublishRecordEvent(ctx, mqClient, queue.TopicRecordCreated,
//	  queue.RecordEventPayload{RecordID: id, Category: "rd"},
//	  queue.WithProducer("propvault"),
//	)
//
//	_ = mqClient.Consume(ctx, queue.TopicRecordCreated, func(m *message.Message) error {
//	  env, err := queue.ParseRecordEvent(m)
//	  if err != nil {
//	    return err
//	  }
//	  fmt.Println(env.Payload.RecordID)
//	  return nil
//	})
//
// occurred_at 为 UTC；消费者应忽略未知字段.
package queue

import (
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/bytedance/sonic"

	"github.com/yeisme/propvault/pkg/configs"
)

// PayloadVersionV1 当前负载版本.
const PayloadVersionV1 = "v1"

// NewEventHeader 创建事件头，Producer 默认为应用名.
func NewEventHeader(topic string, opts ...func(*EventHeader)) EventHeader {
	hdr := EventHeader{
		Topic:      topic,
		Producer:   configs.AppName,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithTraceID 设置 TraceID.
func WithTraceID(id string) func(*EventHeader) { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) func(*EventHeader) { return func(h *EventHeader) { h.Producer = p } }

// Encode 将消息封装为 JSON.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 解码消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造 watermill 消息. TraceID 同时写入 correlation_id 元数据.
func NewWatermillMessage[T any](topic string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)

	data, err := Encode(Message[T]{Header: header, Payload: payload})
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewULID(), data)
	msg.Metadata.Set("topic", topic)
	msg.Metadata.Set("version", header.Version)

	if header.TraceID != "" {
		middleware.SetCorrelationID(header.TraceID, msg)
	}

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}
