// Package service 实现记录的业务逻辑：元数据写入数据库，附件写入对象存储，
// 列表结果缓存在 KV 中，变更通过消息队列广播.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yeisme/propvault/pkg/cache"
	"github.com/yeisme/propvault/pkg/configs"
	ctxPkg "github.com/yeisme/propvault/pkg/context"
	"github.com/yeisme/propvault/pkg/internal/model"
	dbc "github.com/yeisme/propvault/pkg/internal/storage/db"
	s3c "github.com/yeisme/propvault/pkg/internal/storage/s3"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/log"
	"github.com/yeisme/propvault/pkg/metrics"
	"github.com/yeisme/propvault/pkg/queue"
	"github.com/yeisme/propvault/pkg/rule"
	"github.com/yeisme/propvault/pkg/tracing"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	uploadConcurrency = 4
)

// Upload 一个待上传的附件.
type Upload struct {
	Kind        types.AttachmentKind
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// CreateInput 新建记录的输入.
type CreateInput struct {
	Category types.Category
	Fields   types.Fields
	Uploads  []Upload
}

// UpdateInput 更新记录的输入. 只应用非空字段，附件追加到已有列表末尾.
type UpdateInput struct {
	Category *types.Category
	Fields   types.Fields
	Uploads  []Upload
}

// RecordService 记录服务.
type RecordService struct {
	dbClient   *dbc.Client
	store      s3c.Store
	cache      *cache.Cache
	pub        queue.Publisher
	collection string
	listTTL    time.Duration
	events     configs.EventsConfig
}

// NewRecordService 从 context 中的存储资源与全局配置创建服务.
func NewRecordService(c context.Context) *RecordService {
	cfg := configs.GetConfig()

	s := &RecordService{
		dbClient:   ctxPkg.GetDBClient(c),
		store:      ctxPkg.GetS3Client(c),
		cache:      ctxPkg.GetCache(c),
		collection: cfg.Server.Collection,
		listTTL:    cfg.KV.GetListTTL(),
		events:     cfg.Events,
	}

	if mq := ctxPkg.GetMQClient(c); mq != nil {
		s.pub = mq
	}

	if s.collection == "" {
		s.collection = configs.DefaultCollection
	}

	return s
}

func (s *RecordService) ready() error {
	if s.dbClient == nil || s.dbClient.DB == nil || s.store == nil {
		return ErrUnavailable
	}

	return nil
}

// Create 校验后并发上传全部附件，再在一个事务中写入记录与附件行. 任一步失败都会删除已上传的对象.
func (s *RecordService) Create(ctx context.Context, in CreateInput) (*types.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "record.create")
	defer span.End()

	if err := s.ready(); err != nil {
		return nil, err
	}

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &model.Record{
		ID:        NewRecordID(now),
		Category:  in.Category.String(),
		Fields:    in.Fields,
		CreatedBy: ctxPkg.GetActor(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	}

	files, err := s.upload(ctx, rec, in.Uploads)
	if err != nil {
		return nil, err
	}

	err = s.dbClient.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Files").Create(rec).Error; err != nil {
			return err
		}

		if len(files) > 0 {
			return tx.Create(&files).Error
		}

		return nil
	})
	if err != nil {
		s.removeObjects(ctx, files)

		return nil, fmt.Errorf("create record: %w", err)
	}

	rec.Files = files

	s.afterChange(ctx, queue.TopicRecordCreated, queue.RecordEventPayload{
		RecordID: rec.ID,
		Category: rec.Category,
		Actor:    rec.CreatedBy,
		Files:    fileRefs(files),
	})

	out := rec.ToType(s.store.URL)

	return &out, nil
}

func validateCreate(in CreateInput) error {
	if !in.Category.Valid() {
		return invalid("category", "unknown category")
	}

	if err := rule.ValidateStruct(&in.Fields); err != nil {
		if fields := rule.Errors(err); fields != nil {
			return &ValidationError{Fields: fields}
		}

		return err
	}

	return validateUploads(in.Uploads)
}

func validateUploads(uploads []Upload) error {
	for _, u := range uploads {
		if u.Kind != types.KindImage && u.Kind != types.KindPDF {
			return invalid("files", fmt.Sprintf("unknown attachment kind %q", u.Kind))
		}

		if u.Open == nil {
			return invalid(u.Kind.FormField(), "file has no content")
		}
	}

	return nil
}

// List 按分类、回收站标记与关键字分页查询，结果按更新时间倒序.
func (s *RecordService) List(ctx context.Context, q types.ListQuery) (*types.ListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "record.list")
	defer span.End()

	if err := s.ready(); err != nil {
		return nil, err
	}

	q = NormalizeListQuery(q)

	if q.Category != "" {
		if _, err := types.ParseCategory(q.Category); err != nil {
			return nil, invalid("category", "unknown category")
		}
	}

	if s.cache == nil || s.listTTL <= 0 {
		return s.list(ctx, q)
	}

	resp, err := cache.GetOrSet(ctx, s.cache, ListCacheKey(q), func() (*types.ListResponse, error) {
		return s.list(ctx, q)
	}, s.listTTL)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// searchColumns 参与关键字搜索的列.
var searchColumns = []string{
	"sharer_name", "sharer_contact", "village", "taluka", "district",
	"old_survey_no", "new_survey_no", "block_no", "landmark", "notes",
}

func (s *RecordService) list(ctx context.Context, q types.ListQuery) (*types.ListResponse, error) {
	dbx := s.dbClient.WithContext(ctx).Model(&model.Record{}).Where("recycle_bin = ?", q.RecycleBin)

	if q.Category != "" {
		cat, _ := types.ParseCategory(q.Category)
		dbx = dbx.Where("category = ?", cat.String())
	}

	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"

		conds := make([]string, 0, len(searchColumns))
		args := make([]any, 0, len(searchColumns))

		for _, col := range searchColumns {
			conds = append(conds, "LOWER("+col+") LIKE ?")
			args = append(args, like)
		}

		dbx = dbx.Where(strings.Join(conds, " OR "), args...)
	}

	var total int64
	if err := dbx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	var rows []model.Record

	err := dbx.Preload("Files").
		Order("updated_at DESC").
		Order("id DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	data := make([]types.Record, 0, len(rows))
	for i := range rows {
		data = append(data, rows[i].ToType(s.store.URL))
	}

	return &types.ListResponse{
		Data:       data,
		Pagination: types.NewPagination(q.Page, q.Limit, total),
	}, nil
}

// NormalizeListQuery 补齐分页默认值并限制每页数量.
func NormalizeListQuery(q types.ListQuery) types.ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}

	switch {
	case q.Limit < 1:
		q.Limit = DefaultPageLimit
	case q.Limit > MaxPageLimit:
		q.Limit = MaxPageLimit
	}

	q.Category = strings.ToLower(strings.TrimSpace(q.Category))
	q.Search = strings.TrimSpace(q.Search)

	return q
}

// Get 返回单条记录.
func (s *RecordService) Get(ctx context.Context, id string) (*types.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rec, err := s.load(ctx, s.dbClient.DB, id)
	if err != nil {
		return nil, err
	}

	out := rec.ToType(s.store.URL)

	return &out, nil
}

// Update 合并非空字段并追加新附件，已有附件保持不变.
func (s *RecordService) Update(ctx context.Context, id string, in UpdateInput) (*types.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if in.Category != nil && !in.Category.Valid() {
		return nil, invalid("category", "unknown category")
	}

	if err := validateUploads(in.Uploads); err != nil {
		return nil, err
	}

	rec, err := s.load(ctx, s.dbClient.DB, id)
	if err != nil {
		return nil, err
	}

	changed := rec.Fields.Merge(in.Fields)

	names := make([]string, 0, len(changed)+1)
	for _, n := range changed {
		names = append(names, string(n))
	}

	if in.Category != nil && in.Category.String() != rec.Category {
		rec.Category = in.Category.String()
		names = append(names, "category")
	}

	files, err := s.upload(ctx, rec, in.Uploads)
	if err != nil {
		return nil, err
	}

	rec.UpdatedAt = time.Now().UTC()

	err = s.dbClient.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Files").Save(rec).Error; err != nil {
			return err
		}

		if len(files) > 0 {
			return tx.Create(&files).Error
		}

		return nil
	})
	if err != nil {
		s.removeObjects(ctx, files)

		return nil, fmt.Errorf("update record %s: %w", id, err)
	}

	rec.Files = append(rec.Files, files...)

	s.afterChange(ctx, queue.TopicRecordUpdated, queue.RecordEventPayload{
		RecordID: rec.ID,
		Category: rec.Category,
		Actor:    ctxPkg.GetActor(ctx),
		Files:    fileRefs(files),
		Changed:  names,
	})

	out := rec.ToType(s.store.URL)

	return &out, nil
}

// Delete 永久删除回收站中的记录及其全部附件.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}

	rec, err := s.load(ctx, s.dbClient.DB, id)
	if err != nil {
		return err
	}

	if !rec.RecycleBin {
		return ErrNotRecycled
	}

	if err := s.deleteRecords(ctx, []model.Record{*rec}); err != nil {
		return err
	}

	s.afterChange(ctx, queue.TopicRecordDeleted, queue.RecordEventPayload{
		RecordID: rec.ID,
		Category: rec.Category,
		Actor:    ctxPkg.GetActor(ctx),
		Files:    fileRefs(rec.Files),
	})

	return nil
}

// DeleteFile 删除记录下的单个附件，remoteID 即对象 key.
func (s *RecordService) DeleteFile(ctx context.Context, id string, kind types.AttachmentKind, remoteID string) (*types.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var removed model.RecordFile

	rec := &model.Record{}

	err := s.dbClient.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		rec = found

		idx := -1

		for i, f := range rec.Files {
			if f.Kind == string(kind) && f.ObjectKey == remoteID {
				idx = i

				break
			}
		}

		if idx < 0 {
			return ErrFileNotFound
		}

		removed = rec.Files[idx]
		rec.Files = append(rec.Files[:idx:idx], rec.Files[idx+1:]...)
		rec.UpdatedAt = time.Now().UTC()

		if err := tx.Delete(&model.RecordFile{}, "id = ?", removed.ID).Error; err != nil {
			return err
		}

		return tx.Model(&model.Record{}).Where("id = ?", id).Update("updated_at", rec.UpdatedAt).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrFileNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("delete file of record %s: %w", id, err)
	}

	s.removeObjects(ctx, []model.RecordFile{removed})

	s.afterChange(ctx, queue.TopicRecordFileDeleted, queue.RecordEventPayload{
		RecordID: rec.ID,
		Category: rec.Category,
		Actor:    ctxPkg.GetActor(ctx),
		Files:    fileRefs([]model.RecordFile{removed}),
	})

	out := rec.ToType(s.store.URL)

	return &out, nil
}

// SetOnBoard 设置上架标记.
func (s *RecordService) SetOnBoard(ctx context.Context, id string, onBoard bool) (*types.Record, error) {
	return s.setFlag(ctx, id, queue.FlagOnBoard, onBoard, func(rec *model.Record, now time.Time) map[string]any {
		rec.OnBoard = onBoard

		return map[string]any{"on_board": onBoard, "updated_at": now}
	})
}

// SetRecycleBin 移入或移出回收站，移入时记录时间供自动清理使用.
func (s *RecordService) SetRecycleBin(ctx context.Context, id string, recycled bool) (*types.Record, error) {
	return s.setFlag(ctx, id, queue.FlagRecycleBin, recycled, func(rec *model.Record, now time.Time) map[string]any {
		rec.RecycleBin = recycled
		rec.RecycledAt = nil

		if recycled {
			rec.RecycledAt = &now
		}

		return map[string]any{"recycle_bin": recycled, "recycled_at": rec.RecycledAt, "updated_at": now}
	})
}

func (s *RecordService) setFlag(ctx context.Context, id string, flag queue.Flag, value bool,
	apply func(rec *model.Record, now time.Time) map[string]any,
) (*types.Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rec, err := s.load(ctx, s.dbClient.DB, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec.UpdatedAt = now

	if err := s.dbClient.WithContext(ctx).Model(&model.Record{}).Where("id = ?", id).Updates(apply(rec, now)).Error; err != nil {
		return nil, fmt.Errorf("set %s on record %s: %w", flag, id, err)
	}

	s.afterChange(ctx, queue.TopicRecordFlagged, queue.RecordEventPayload{
		RecordID: rec.ID,
		Category: rec.Category,
		Actor:    ctxPkg.GetActor(ctx),
		Flag:     flag,
		Value:    value,
	})

	out := rec.ToType(s.store.URL)

	return &out, nil
}

// load 读取记录及其附件.
func (s *RecordService) load(ctx context.Context, dbx *gorm.DB, id string) (*model.Record, error) {
	var rec model.Record

	err := dbx.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("load record %s: %w", id, err)
	}

	return &rec, nil
}

// deleteRecords 在一个事务中删除记录与附件行，之后尽力删除对象.
func (s *RecordService) deleteRecords(ctx context.Context, recs []model.Record) error {
	if len(recs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(recs))

	var files []model.RecordFile

	for _, r := range recs {
		ids = append(ids, r.ID)
		files = append(files, r.Files...)
	}

	err := s.dbClient.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id IN ?", ids).Delete(&model.RecordFile{}).Error; err != nil {
			return err
		}

		return tx.Where("id IN ?", ids).Delete(&model.Record{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete records: %w", err)
	}

	s.removeObjects(ctx, files)

	return nil
}

// upload 并发上传附件，返回待写入的附件行. 任一失败时删除本批次全部对象.
func (s *RecordService) upload(ctx context.Context, rec *model.Record, uploads []Upload) ([]model.RecordFile, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	next := map[types.AttachmentKind]int{
		types.KindImage: rec.NextPosition(types.KindImage),
		types.KindPDF:   rec.NextPosition(types.KindPDF),
	}

	now := time.Now().UTC()
	files := make([]model.RecordFile, len(uploads))

	for i, u := range uploads {
		files[i] = model.RecordFile{
			ID:           uuid.NewString(),
			RecordID:     rec.ID,
			Kind:         string(u.Kind),
			ObjectKey:    ObjectKey(s.collection, rec.ID, u.Kind, u.Name),
			OriginalName: u.Name,
			ContentType:  u.ContentType,
			Size:         u.Size,
			Position:     next[u.Kind],
			CreatedAt:    now,
		}
		next[u.Kind]++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	for i, u := range uploads {
		f := &files[i]

		g.Go(func() error {
			r, err := u.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", u.Name, err)
			}
			defer r.Close()

			if err := s.store.Put(gctx, f.ObjectKey, r, f.Size, f.ContentType); err != nil {
				return fmt.Errorf("upload %s: %w", u.Name, err)
			}

			metrics.UploadedBytes.WithLabelValues(f.Kind).Add(float64(f.Size))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.removeObjects(ctx, files)

		return nil, err
	}

	return files, nil
}

func (s *RecordService) removeObjects(ctx context.Context, files []model.RecordFile) {
	if len(files) == 0 {
		return
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.ObjectKey)
	}

	// 请求已取消时仍需清理
	if err := s.store.Remove(context.WithoutCancel(ctx), keys...); err != nil {
		l := log.Logger()
		l.Warn().Err(err).Strs("keys", keys).Msg("remove objects failed")
	}
}

// NewRecordID 生成按时间有序的记录 ID.
func NewRecordID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// ObjectKey 生成附件对象 key：{collection}/{recordID}/{kind}/{uuid}_{name}.
func ObjectKey(collection, recordID string, kind types.AttachmentKind, name string) string {
	return path.Join(collection, recordID, string(kind), uuid.NewString()+"_"+sanitizeName(name))
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}

	return name
}

func fileRefs(files []model.RecordFile) []queue.FileRef {
	if len(files) == 0 {
		return nil
	}

	out := make([]queue.FileRef, 0, len(files))
	for _, f := range files {
		out = append(out, queue.FileRef{Kind: f.Kind, ObjectKey: f.ObjectKey, Size: f.Size})
	}

	return out
}
