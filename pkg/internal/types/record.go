package types

import "time"

// Record 房产记录的传输形态.
type Record struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Fields
	Images     []FileRef  `json:"images"`
	PDFs       []FileRef  `json:"pdfs"`
	OnBoard    bool       `json:"onBoard"`
	RecycleBin bool       `json:"recycleBin"`
	RecycledAt *time.Time `json:"recycledAt,omitempty"`
	CreatedBy  string     `json:"createdBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Files 按种类返回附件列表.
func (r *Record) Files(kind AttachmentKind) []FileRef {
	if kind == KindPDF {
		return r.PDFs
	}

	return r.Images
}

// Pagination 分页元数据，totalProperties 与 totalItems 同值以兼容旧客户端.
type Pagination struct {
	CurrentPage     int   `json:"currentPage"`
	TotalPages      int   `json:"totalPages"`
	TotalItems      int64 `json:"totalItems"`
	TotalProperties int64 `json:"totalProperties,omitempty"`
	HasPrev         bool  `json:"hasPrev"`
	HasNext         bool  `json:"hasNext"`
}

// NewPagination 根据总数计算分页信息.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}

	return Pagination{
		CurrentPage:     page,
		TotalPages:      pages,
		TotalItems:      total,
		TotalProperties: total,
		HasPrev:         page > 1,
		HasNext:         page < pages,
	}
}

// ListResponse 列表接口响应.
type ListResponse struct {
	Data       []Record   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ListQuery 列表查询参数.
type ListQuery struct {
	Page       int    `form:"page"       json:"page"       rule:"omitempty,min=1"`
	Limit      int    `form:"limit"      json:"limit"      rule:"omitempty,min=1"`
	Category   string `form:"category"   json:"category"   rule:"omitempty,oneof=wallet rd shared"`
	Search     string `form:"search"     json:"search"     rule:"max=200"`
	RecycleBin bool   `form:"recycleBin" json:"recycleBin"`
}

// OnBoardRequest 切换上架标记.
type OnBoardRequest struct {
	OnBoard *bool `json:"onBoard" rule:"required"`
}

// RecycleBinRequest 移入/移出回收站.
type RecycleBinRequest struct {
	RecycleBin *bool `json:"recycleBin" rule:"required"`
}

// ErrorResponse 错误响应，message 是唯一保证存在的字段.
type ErrorResponse struct {
	Message string `json:"message"`
}

// MessageResponse 通用成功响应.
type MessageResponse struct {
	Message string `json:"message"`
}
