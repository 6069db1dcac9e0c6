// Package gateway 定义远端记录存储的边界接口，并提供基于 REST/JSON 的 HTTP 实现.
package gateway

import (
	"context"

	"github.com/yeisme/propvault/pkg/internal/types"
)

// Gateway 远端记录存储.
type Gateway interface {
	Create(ctx context.Context, p Payload) (*types.Record, error)
	Update(ctx context.Context, id string, p Payload) (*types.Record, error)
	Get(ctx context.Context, id string) (*types.Record, error)
	List(ctx context.Context, q Query) (*Page, error)
	Delete(ctx context.Context, id string) error
	DeleteFile(ctx context.Context, id string, kind types.AttachmentKind, remoteID string) error
	SetOnBoard(ctx context.Context, id string, onBoard bool) error
	SetRecycleBin(ctx context.Context, id string, recycled bool) error
}

// FieldValue 单个标量字段.
type FieldValue struct {
	Name  types.FieldName
	Value string
}

// Upload 待上传的单个文件.
type Upload struct {
	Kind        types.AttachmentKind
	Name        string
	ContentType string
	Data        []byte
}

// Payload 新建或更新请求的内容.
type Payload struct {
	Category types.Category
	Fields   []FieldValue
	Uploads  []Upload
}

// Field 返回指定字段的值.
func (p *Payload) Field(name types.FieldName) (string, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}

	return "", false
}

// Query 列表查询条件.
type Query struct {
	Page       int
	Limit      int
	Search     string
	Category   types.Category
	RecycleBin bool
}

// Page 列表结果.
type Page struct {
	Items      []types.Record
	Page       int
	TotalPages int
	TotalItems int64
	HasPrev    bool
	HasNext    bool
}

// TokenSource 提供 Bearer 令牌，返回空串表示匿名.
type TokenSource interface {
	Token() string
}

// TokenFunc 把函数适配为 TokenSource.
type TokenFunc func() string

// Token 实现 TokenSource.
func (f TokenFunc) Token() string { return f() }
