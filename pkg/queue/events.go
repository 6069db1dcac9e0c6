package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher 事件发布接口，由 mq.Client 实现.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// PublishRecordEvent 发布记录变更事件，topic 取自 RecordTopics.
func PublishRecordEvent(ctx context.Context, pub Publisher, topic string, payload RecordEventPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(ctx, topic, msg)
}

// PublishPurged 发布回收站清理事件.
func PublishPurged(ctx context.Context, pub Publisher, payload PurgedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicRecordPurged, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(ctx, TopicRecordPurged, msg)
}

// ParseRecordEvent 解析记录变更事件.
func ParseRecordEvent(msg *message.Message) (Message[RecordEventPayload], error) {
	return ParseWatermillMessage[RecordEventPayload](msg)
}

// ParsePurged 解析回收站清理事件.
func ParsePurged(msg *message.Message) (Message[PurgedPayload], error) {
	return ParseWatermillMessage[PurgedPayload](msg)
}
