package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cespare/xxhash/v2"

	"github.com/yeisme/propvault/pkg/cache"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/log"
	"github.com/yeisme/propvault/pkg/metrics"
	"github.com/yeisme/propvault/pkg/queue"
)

// ListCachePrefix 列表缓存键前缀.
const ListCachePrefix = "records:list:"

// ListCacheKey 返回规范化查询对应的缓存键.
func ListCacheKey(q types.ListQuery) string {
	q = NormalizeListQuery(q)

	h := xxhash.New()
	_, _ = fmt.Fprintf(h, "%d|%d|%s|%t|%s", q.Page, q.Limit, q.Category, q.RecycleBin, q.Search)

	return ListCachePrefix + strconv.FormatUint(h.Sum64(), 16)
}

// InvalidateLists 删除全部列表缓存.
func InvalidateLists(ctx context.Context, c *cache.Cache) (int, error) {
	if c == nil {
		return 0, nil
	}

	return c.DeletePrefix(ctx, ListCachePrefix)
}

// afterChange 同步失效本实例的列表缓存并发布事件.
func (s *RecordService) afterChange(ctx context.Context, topic string, payload queue.RecordEventPayload) {
	l := log.Component("service")

	metrics.RecordOperations.WithLabelValues(strings.TrimPrefix(topic, "pv.record.")).Inc()

	if _, err := InvalidateLists(ctx, s.cache); err != nil {
		l.Warn().Err(err).Str("topic", topic).Msg("invalidate list cache failed")
	}

	if s.pub == nil || !s.eventEnabled(topic) {
		return
	}

	if err := queue.PublishRecordEvent(ctx, s.pub, topic, payload); err != nil {
		l.Warn().Err(err).Str("topic", topic).Str("record_id", payload.RecordID).Msg("publish record event failed")
	}
}

func (s *RecordService) eventEnabled(topic string) bool {
	if !s.events.Enabled {
		return false
	}

	r := s.events.Record

	switch topic {
	case queue.TopicRecordCreated:
		return r.Created
	case queue.TopicRecordUpdated:
		return r.Updated
	case queue.TopicRecordDeleted:
		return r.Deleted
	case queue.TopicRecordFileDeleted:
		return r.FileDeleted
	case queue.TopicRecordFlagged:
		return r.Flagged
	case queue.TopicRecordPurged:
		return r.Purged
	default:
		return false
	}
}

// Consumer 订阅主题的接口，由 mq.Client 实现.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler func(*message.Message) error) error
}

// StartCacheInvalidator 订阅全部记录主题，收到事件即失效列表缓存.
// 多实例部署时其他实例的变更经由此路径到达. ctx 结束时停止.
func StartCacheInvalidator(ctx context.Context, consumer Consumer, c *cache.Cache) error {
	if consumer == nil || c == nil {
		return nil
	}

	l := log.Component("cache-invalidator")

	for _, topic := range queue.RecordTopics {
		err := consumer.Consume(ctx, topic, func(msg *message.Message) error {
			n, err := InvalidateLists(ctx, c)
			if err != nil {
				// 不重投，缓存仍会按 TTL 过期
				l.Warn().Err(err).Str("topic", topic).Msg("invalidate list cache failed")

				return nil
			}

			l.Debug().Str("topic", topic).Str("uuid", msg.UUID).Int("keys", n).Msg("list cache invalidated")

			return nil
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	return nil
}
