// Package model 定义记录元数据的数据库模型.
package model

import (
	"sort"
	"time"

	"github.com/yeisme/propvault/pkg/internal/types"
)

// Record 房产记录. 标量字段按字段名展开为列.
type Record struct {
	ID           string `gorm:"primaryKey;size:26"`
	Category     string `gorm:"size:16;index"`
	types.Fields `gorm:"embedded"`

	OnBoard    bool       `gorm:"index;not null;default:false"`
	RecycleBin bool       `gorm:"index;not null;default:false"`
	RecycledAt *time.Time `gorm:"index"`
	CreatedBy  string     `gorm:"size:255"`
	CreatedAt  time.Time
	UpdatedAt  time.Time `gorm:"index"`

	Files []RecordFile `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
}

// RecordFile 记录的单个附件，ObjectKey 同时作为附件的远端 ID.
type RecordFile struct {
	ID           string `gorm:"primaryKey;size:36"`
	RecordID     string `gorm:"size:26;index:idx_record_file_kind"`
	Kind         string `gorm:"size:8;index:idx_record_file_kind"`
	ObjectKey    string `gorm:"size:512;uniqueIndex"`
	OriginalName string `gorm:"size:255"`
	ContentType  string `gorm:"size:127"`
	Size         int64
	Position     int
	CreatedAt    time.Time
}

// All 返回需要迁移的全部模型.
func All() []any {
	return []any{&Record{}, &RecordFile{}}
}

// ToType 转换为传输结构，urlFn 根据对象 key 生成访问地址.
func (r *Record) ToType(urlFn func(key string) string) types.Record {
	cat, _ := types.ParseCategory(r.Category)

	out := types.Record{
		ID:         r.ID,
		Category:   cat,
		Fields:     r.Fields,
		Images:     []types.FileRef{},
		PDFs:       []types.FileRef{},
		OnBoard:    r.OnBoard,
		RecycleBin: r.RecycleBin,
		RecycledAt: r.RecycledAt,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}

	files := make([]RecordFile, len(r.Files))
	copy(files, r.Files)
	sort.SliceStable(files, func(i, j int) bool { return files[i].Position < files[j].Position })

	for _, f := range files {
		ref := f.Ref(urlFn)
		if types.AttachmentKind(f.Kind) == types.KindPDF {
			out.PDFs = append(out.PDFs, ref)
		} else {
			out.Images = append(out.Images, ref)
		}
	}

	return out
}

// Ref 转换为附件引用.
func (f *RecordFile) Ref(urlFn func(key string) string) types.FileRef {
	return types.FileRef{
		ID:           f.ObjectKey,
		URL:          urlFn(f.ObjectKey),
		OriginalName: f.OriginalName,
		ContentType:  f.ContentType,
		Size:         f.Size,
	}
}

// NextPosition 返回某种附件的下一个排序位置.
func (r *Record) NextPosition(kind types.AttachmentKind) int {
	next := 0

	for _, f := range r.Files {
		if f.Kind == string(kind) && f.Position >= next {
			next = f.Position + 1
		}
	}

	return next
}
