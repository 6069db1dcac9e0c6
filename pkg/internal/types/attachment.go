package types

import "fmt"

// AttachmentKind 附件种类.
type AttachmentKind string

const (
	KindImage AttachmentKind = "image"
	KindPDF   AttachmentKind = "pdf"
)

// FileType 返回删除接口路径中的 fileType 片段（images / pdfs）.
func (k AttachmentKind) FileType() string {
	if k == KindPDF {
		return "pdfs"
	}

	return "images"
}

// FormField 返回 multipart 上传使用的字段名.
func (k AttachmentKind) FormField() string {
	return k.FileType() + "[]"
}

// ParseFileType 解析路径中的 fileType，同时接受 image/pdf 单数写法.
func ParseFileType(s string) (AttachmentKind, error) {
	switch s {
	case "images", "image":
		return KindImage, nil
	case "pdfs", "pdf":
		return KindPDF, nil
	default:
		return "", fmt.Errorf("unknown file type %q", s)
	}
}

// FileRef 已持久化附件的元数据，ID 即对象存储中的 key，可能包含 "/".
type FileRef struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
}
