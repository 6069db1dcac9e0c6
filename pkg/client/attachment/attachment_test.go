package attachment_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/client/attachment"
	"github.com/yeisme/propvault/pkg/internal/types"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pdfBytes = []byte("%PDF-1.4\n%fake\n")
)

// countingPreviews 记录每个预览引用被撤销的次数.
type countingPreviews struct {
	mu      sync.Mutex
	next    int
	revoked map[string]int
	failOn  string
}

func newCountingPreviews() *countingPreviews {
	return &countingPreviews{revoked: map[string]int{}}
}

func (p *countingPreviews) Create(f attachment.File) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f.Name == p.failOn {
		return "", errors.New("no preview")
	}

	p.next++

	return "blob:" + f.Name + ":" + string(rune('0'+p.next)), nil
}

func (p *countingPreviews) Revoke(ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.revoked[ref]++

	return nil
}

func TestStageZeroFiles(t *testing.T) {
	s := attachment.NewStager(newCountingPreviews())
	assert.Empty(t, s.Stage(types.KindImage))
	assert.Zero(t, s.Outstanding())
}

func TestStageInvariants(t *testing.T) {
	p := newCountingPreviews()
	s := attachment.NewStager(p)

	got := s.Stage(types.KindImage,
		attachment.File{Name: "a.png", Data: pngBytes},
		attachment.File{Name: "b.png", Data: pngBytes},
	)
	require.Len(t, got, 2)
	assert.Equal(t, "a.png", got[0].OriginalName())
	assert.Equal(t, "b.png", got[1].OriginalName())

	for _, a := range got {
		assert.True(t, a.Valid())
		assert.Equal(t, attachment.Staged, a.Origin())
		assert.Empty(t, a.RemoteID())
		assert.True(t, strings.HasPrefix(a.DisplayURL(), "blob:"))

		payload, ok := a.Payload()
		require.True(t, ok)
		assert.Equal(t, "image/png", payload.ContentType)
	}

	assert.Equal(t, 2, s.Outstanding())
}

func TestReleaseExactlyOnce(t *testing.T) {
	p := newCountingPreviews()
	s := attachment.NewStager(p)
	a := s.Stage(types.KindPDF, attachment.File{Name: "deed.pdf", Data: pdfBytes})[0]

	s.Release(a)
	s.Release(a)
	s.Release(a)

	assert.Equal(t, 1, p.revoked[a.DisplayURL()])
	assert.Zero(t, s.Outstanding())
}

func TestReleaseWithoutPreview(t *testing.T) {
	p := newCountingPreviews()
	p.failOn = "broken.png"
	s := attachment.NewStager(p)

	a := s.Stage(types.KindImage, attachment.File{Name: "broken.png", Data: pngBytes})[0]
	assert.Empty(t, a.DisplayURL())
	assert.True(t, a.Valid())

	s.Release(a)
	assert.Empty(t, p.revoked)
	assert.Zero(t, s.Outstanding())
}

func TestHydrate(t *testing.T) {
	ref := types.FileRef{ID: "properties/01H/image/x_a.jpg", URL: "http://cdn/a.jpg", OriginalName: "a.jpg"}
	a := attachment.Hydrate(types.KindImage, ref)

	assert.Equal(t, attachment.Persisted, a.Origin())
	assert.Equal(t, ref.ID, a.RemoteID())
	assert.Equal(t, ref.URL, a.DisplayURL())
	assert.True(t, a.Valid())

	_, ok := a.Payload()
	assert.False(t, ok)

	// 释放 Persisted 附件是空操作
	p := newCountingPreviews()
	attachment.NewStager(p).Release(a)
	assert.Empty(t, p.revoked)

	all := attachment.HydrateAll(types.KindPDF, []types.FileRef{{ID: "1"}, {ID: "2"}})
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[1].RemoteID())
}

func TestTempPreviews(t *testing.T) {
	dir := t.TempDir()
	s := attachment.NewStager(attachment.NewTempPreviews(dir))

	a := s.Stage(types.KindImage, attachment.File{Name: "site*plan.png", Data: pngBytes})[0]
	path := strings.TrimPrefix(a.DisplayURL(), "file://")

	data, err := os.ReadFile(filepath.FromSlash(path))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	s.Release(a)

	_, err = os.Stat(filepath.FromSlash(path))
	assert.True(t, os.IsNotExist(err))
}

func TestDetectKindAndReadFile(t *testing.T) {
	k, err := attachment.DetectKind(attachment.File{Name: "a.png", Data: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, types.KindImage, k)

	k, err = attachment.DetectKind(attachment.File{Name: "a.pdf", Data: pdfBytes})
	require.NoError(t, err)
	assert.Equal(t, types.KindPDF, k)

	_, err = attachment.DetectKind(attachment.File{Name: "a.txt", Data: []byte("hello")})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "deed.pdf")
	require.NoError(t, os.WriteFile(path, pdfBytes, 0o600))

	f, err := attachment.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "deed.pdf", f.Name)
	assert.Equal(t, "application/pdf", f.ContentType)
}
