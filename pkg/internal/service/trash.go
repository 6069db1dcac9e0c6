package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeisme/propvault/pkg/internal/model"
	"github.com/yeisme/propvault/pkg/log"
	"github.com/yeisme/propvault/pkg/metrics"
	"github.com/yeisme/propvault/pkg/queue"
	"github.com/yeisme/propvault/pkg/tracing"
)

// purgeBatchSize 每批清理的记录数.
const purgeBatchSize = 100

// PurgeExpired 永久删除在 before 之前移入回收站的记录，返回删除数量.
func (s *RecordService) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "record.purge_expired")
	defer span.End()

	if err := s.ready(); err != nil {
		return 0, err
	}

	if before.IsZero() {
		return 0, errors.New("before required")
	}

	before = before.UTC()
	l := log.Component("trash")

	var purged []string

	for {
		var rows []model.Record

		err := s.dbClient.WithContext(ctx).
			Preload("Files").
			Where("recycle_bin = ? AND recycled_at IS NOT NULL AND recycled_at < ?", true, before).
			Order("recycled_at ASC").
			Limit(purgeBatchSize).
			Find(&rows).Error
		if err != nil {
			return len(purged), fmt.Errorf("find expired records: %w", err)
		}

		if len(rows) == 0 {
			break
		}

		if err := s.deleteRecords(ctx, rows); err != nil {
			return len(purged), err
		}

		for _, r := range rows {
			purged = append(purged, r.ID)
		}

		l.Debug().Int("batch", len(rows)).Time("before", before).Msg("purged recycle bin batch")

		if len(rows) < purgeBatchSize {
			break
		}
	}

	if len(purged) == 0 {
		return 0, nil
	}

	metrics.RecordOperations.WithLabelValues("purged").Add(float64(len(purged)))

	if _, err := InvalidateLists(ctx, s.cache); err != nil {
		l.Warn().Err(err).Msg("invalidate list cache failed")
	}

	if s.pub != nil && s.eventEnabled(queue.TopicRecordPurged) {
		payload := queue.PurgedPayload{RecordIDs: purged, Before: before}
		if err := queue.PublishPurged(ctx, s.pub, payload); err != nil {
			l.Warn().Err(err).Int("records", len(purged)).Msg("publish purged event failed")
		}
	}

	return len(purged), nil
}
