package attachment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yeisme/propvault/pkg/internal/types"
)

// File 用户选择的本地文件.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadFile 读取本地文件并探测内容类型.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

// DetectKind 按内容判断附件种类：image/* 为图片，application/pdf 为文档.
func DetectKind(f File) (types.AttachmentKind, error) {
	mt := mimetype.Detect(f.Data)

	switch {
	case mt.Is("application/pdf"):
		return types.KindPDF, nil
	case strings.HasPrefix(mt.String(), "image/"):
		return types.KindImage, nil
	default:
		return "", fmt.Errorf("%s: unsupported content type %s", f.Name, mt.String())
	}
}

func (f File) contentType() string {
	if f.ContentType != "" {
		return f.ContentType
	}

	return mimetype.Detect(f.Data).String()
}
