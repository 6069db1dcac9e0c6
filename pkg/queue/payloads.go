package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// FileRef 事件中的附件引用.
type FileRef struct {
	Kind      string `json:"kind"`
	ObjectKey string `json:"object_key"`
	Size      int64  `json:"size,omitempty"`
}

// Flag 记录标记名称.
type Flag string

const (
	FlagOnBoard    Flag = "onBoard"
	FlagRecycleBin Flag = "recycleBin"
)

// RecordEventPayload 记录变更事件负载，各主题按需填充字段.
type RecordEventPayload struct {
	RecordID string    `json:"record_id"`
	Category string    `json:"category,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	Files    []FileRef `json:"files,omitempty"`
	// Changed 更新事件中被修改的字段名.
	Changed []string `json:"changed,omitempty"`
	// Flag/Value 标记事件的标记名与新值.
	Flag  Flag `json:"flag,omitempty"`
	Value bool `json:"value,omitempty"`
}

// PurgedPayload 回收站清理事件负载.
type PurgedPayload struct {
	RecordIDs []string  `json:"record_ids"`
	Before    time.Time `json:"before"`
}
