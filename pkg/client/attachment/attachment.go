// Package attachment 表示草稿中的单个附件（图片或 PDF）.
//
// 附件有两种来源：Staged 为本次会话本地选择、尚未上传的文件，持有原始字节与本地预览引用；
// Persisted 为服务端已存储的文件，只持有远端 ID 与持久 URL. 两者互斥，任何附件都恰好满足其一.
//
// 本地预览引用是稀缺资源，由 Stager 创建并负责释放：谁暂存，谁释放，且每个引用只释放一次.
package attachment

import (
	"github.com/yeisme/propvault/pkg/internal/types"
)

// Origin 附件来源.
type Origin uint8

const (
	Staged    Origin = iota + 1 // 本地暂存，待上传
	Persisted                   // 已持久化到远端
)

func (o Origin) String() string {
	switch o {
	case Staged:
		return "staged"
	case Persisted:
		return "persisted"
	default:
		return "unknown"
	}
}

// Payload 暂存附件待上传的内容.
type Payload struct {
	Data        []byte
	ContentType string
}

// Attachment 单个附件，创建后不可变.
type Attachment struct {
	kind         types.AttachmentKind
	origin       Origin
	displayURL   string
	remoteID     string
	originalName string
	payload      *Payload
	previewOwned bool // displayURL 由 PreviewRegistry 创建，释放时需要撤销
}

// Kind 返回附件种类.
func (a *Attachment) Kind() types.AttachmentKind { return a.kind }

// Origin 返回附件来源.
func (a *Attachment) Origin() Origin { return a.origin }

// DisplayURL 对 Staged 为本地预览引用，对 Persisted 为远端持久 URL.
func (a *Attachment) DisplayURL() string { return a.displayURL }

// RemoteID 返回远端 ID，仅 Persisted 非空.
func (a *Attachment) RemoteID() string { return a.remoteID }

// OriginalName 返回原始文件名.
func (a *Attachment) OriginalName() string { return a.originalName }

// Payload 返回待上传内容，仅 Staged 存在.
func (a *Attachment) Payload() (Payload, bool) {
	if a.payload == nil {
		return Payload{}, false
	}

	return *a.payload, true
}

// IsStaged 报告附件是否为本地暂存.
func (a *Attachment) IsStaged() bool { return a.origin == Staged }

// Valid 检查来源与内容的一致性：Staged 有 payload 无远端 ID，Persisted 反之.
func (a *Attachment) Valid() bool {
	switch a.origin {
	case Staged:
		return a.payload != nil && a.remoteID == ""
	case Persisted:
		return a.payload == nil && a.remoteID != ""
	default:
		return false
	}
}

// Hydrate 根据服务端附件元数据构造 Persisted 附件，不发起网络请求.
func Hydrate(kind types.AttachmentKind, ref types.FileRef) *Attachment {
	return &Attachment{
		kind:         kind,
		origin:       Persisted,
		displayURL:   ref.URL,
		remoteID:     ref.ID,
		originalName: ref.OriginalName,
	}
}

// HydrateAll 批量构造 Persisted 附件，保持服务端顺序.
func HydrateAll(kind types.AttachmentKind, refs []types.FileRef) []*Attachment {
	out := make([]*Attachment, 0, len(refs))
	for _, ref := range refs {
		out = append(out, Hydrate(kind, ref))
	}

	return out
}
