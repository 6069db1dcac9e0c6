package attachment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileScheme = "file://"

// TempPreviews 把预览内容写入临时文件，引用形如 file:///tmp/propvault-preview-123-a.jpg.
type TempPreviews struct {
	dir string
}

// NewTempPreviews 创建 TempPreviews，dir 为空时使用 os.TempDir().
func NewTempPreviews(dir string) *TempPreviews {
	return &TempPreviews{dir: dir}
}

// Create 写入临时文件并返回引用.
func (p *TempPreviews) Create(f File) (string, error) {
	if p.dir != "" {
		if err := os.MkdirAll(p.dir, 0o700); err != nil {
			return "", fmt.Errorf("create preview dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(p.dir, "propvault-preview-*-"+sanitize(f.Name))
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}

	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return "", fmt.Errorf("write preview: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return "", fmt.Errorf("close preview: %w", err)
	}

	return fileScheme + filepath.ToSlash(tmp.Name()), nil
}

// Revoke 删除预览文件.
func (p *TempPreviews) Revoke(ref string) error {
	path, ok := strings.CutPrefix(ref, fileScheme)
	if !ok {
		return fmt.Errorf("not a preview reference: %s", ref)
	}

	if err := os.Remove(filepath.FromSlash(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove preview: %w", err)
	}

	return nil
}

func sanitize(name string) string {
	name = filepath.Base(name)

	return strings.Map(func(r rune) rune {
		if r == '*' || r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}

		return r
	}, name)
}
