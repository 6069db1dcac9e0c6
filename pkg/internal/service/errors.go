package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/yeisme/propvault/pkg/rule"
)

var (
	// ErrNotFound 记录不存在.
	ErrNotFound = errors.New("record not found")
	// ErrNotRecycled 记录不在回收站中，不能永久删除.
	ErrNotRecycled = errors.New("record must be in the recycle bin before it can be deleted")
	// ErrFileNotFound 记录下不存在该附件.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnavailable 存储资源未初始化.
	ErrUnavailable = errors.New("storage not initialized")
)

// ValidationError 请求内容校验失败，Fields 以线上字段名为键.
type ValidationError struct {
	Fields rule.ValidationErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: rule.ValidationErrors{field: msg}}
}
