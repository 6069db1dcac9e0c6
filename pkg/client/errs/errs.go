// Package errs 定义客户端的错误分类：本地校验错误、传输错误与服务端错误.
// 三类错误都不会被自动重试，由用户重新触发.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSubmitInFlight 已有提交尚未完成.
	ErrSubmitInFlight = errors.New("a submit is already in progress")
	// ErrDeleteInFlight 同一附件的删除请求尚未完成.
	ErrDeleteInFlight = errors.New("attachment deletion already in progress")
	// ErrSuperseded 请求结果已被更新的请求取代，不会被应用.
	ErrSuperseded = errors.New("result superseded by a newer request")
	// ErrCanceled 用户取消了需要确认的操作.
	ErrCanceled = errors.New("operation canceled")
	// ErrNotEditing 草稿不处于编辑已有记录的状态.
	ErrNotEditing = errors.New("draft is not editing an existing record")
	// ErrNotRecycled 只有回收站中的记录可以永久删除.
	ErrNotRecycled = errors.New("record must be in the recycle bin before permanent deletion")
)

// ValidationError 本地校验失败，不会发出任何网络请求.
type ValidationError struct {
	Fields map[string]string // 字段名 -> 原因
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}

	return "validation failed: " + strings.Join(parts, ", ")
}

// NetworkError 传输层失败，例如超时或连接被拒绝.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError 服务端返回失败，Message 为服务端给出的可展示信息.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote error (%d): %s", e.Op, e.Status, e.Message)
}

// UserMessage 返回适合直接展示给用户的错误信息.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var remote *RemoteError
	if errors.As(err, &remote) && remote.Message != "" {
		return remote.Message
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "network error: " + netErr.Err.Error()
	}

	return err.Error()
}

// IsValidation 报告 err 是否为本地校验错误.
func IsValidation(err error) bool {
	var v *ValidationError

	return errors.As(err, &v)
}
