package attachment

import (
	"sync"

	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/log"
)

// PreviewRegistry 创建与撤销本地预览引用.
type PreviewRegistry interface {
	Create(f File) (string, error)
	Revoke(ref string) error
}

// Stager 暂存本地文件并跟踪尚未释放的预览引用.
type Stager struct {
	previews PreviewRegistry

	mu   sync.Mutex
	live map[*Attachment]struct{}
}

// NewStager 创建 Stager，previews 为 nil 时使用系统临时目录.
func NewStager(previews PreviewRegistry) *Stager {
	if previews == nil {
		previews = NewTempPreviews("")
	}

	return &Stager{previews: previews, live: make(map[*Attachment]struct{})}
}

// Stage 为每个文件创建一个 Staged 附件，保持到达顺序. 不会失败：
// 预览创建失败时附件仍可上传，只是没有本地预览.
func (s *Stager) Stage(kind types.AttachmentKind, files ...File) []*Attachment {
	out := make([]*Attachment, 0, len(files))

	for _, f := range files {
		a := &Attachment{
			kind:         kind,
			origin:       Staged,
			originalName: f.Name,
			payload:      &Payload{Data: f.Data, ContentType: f.contentType()},
		}

		ref, err := s.previews.Create(f)
		if err != nil {
			l := log.Component("attachment")
			l.Warn().Err(err).Str("file", f.Name).Msg("preview unavailable")
		} else {
			a.displayURL = ref
			a.previewOwned = true
		}

		s.mu.Lock()
		s.live[a] = struct{}{}
		s.mu.Unlock()

		out = append(out, a)
	}

	return out
}

// Release 释放 Staged 附件的本地预览引用. 每个附件只会真正释放一次，
// 重复调用与 Persisted 附件均为空操作. 撤销失败只记录日志.
func (s *Stager) Release(a *Attachment) {
	if a == nil || a.origin != Staged {
		return
	}

	s.mu.Lock()
	_, ok := s.live[a]
	delete(s.live, a)
	s.mu.Unlock()

	if !ok || !a.previewOwned {
		return
	}

	if err := s.previews.Revoke(a.displayURL); err != nil {
		l := log.Component("attachment")
		l.Warn().Err(err).Str("preview", a.displayURL).Msg("revoke preview failed")
	}
}

// Outstanding 返回尚未释放的暂存附件数.
func (s *Stager) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.live)
}
