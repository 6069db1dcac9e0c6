package form_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/client/attachment"
	"github.com/yeisme/propvault/pkg/client/errs"
	"github.com/yeisme/propvault/pkg/client/form"
	"github.com/yeisme/propvault/pkg/internal/types"
)

type nopPreviews struct {
	mu      sync.Mutex
	revoked int
}

func (p *nopPreviews) Create(f attachment.File) (string, error) { return "blob:" + f.Name, nil }

func (p *nopPreviews) Revoke(string) error {
	p.mu.Lock()
	p.revoked++
	p.mu.Unlock()

	return nil
}

// blockingDeleter 记录删除调用，release 关闭前阻塞.
type blockingDeleter struct {
	mu      sync.Mutex
	calls   []string
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingDeleter() *blockingDeleter {
	return &blockingDeleter{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (d *blockingDeleter) DeleteFile(_ context.Context, id string, kind types.AttachmentKind, remoteID string) error {
	d.mu.Lock()
	d.calls = append(d.calls, id+"|"+string(kind)+"|"+remoteID)
	d.mu.Unlock()

	d.started <- struct{}{}
	<-d.release

	return d.err
}

func (d *blockingDeleter) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.calls...)
}

type recordingReporter struct{ errs []error }

func (r *recordingReporter) Show(err error) { r.errs = append(r.errs, err) }

func sampleRecord() *types.Record {
	rec := &types.Record{ID: "rec-1", Category: types.CategoryRD}
	rec.SharerName = "Ramesh"
	rec.SharerContact = "9876543210"
	rec.FileType = "Title Clear Lands"
	rec.LandType = "Agriculture"
	rec.Tenure = "Old Tenure"
	rec.Images = []types.FileRef{
		{ID: "properties/rec-1/image/a.jpg", URL: "http://s3/a.jpg", OriginalName: "a.jpg"},
		{ID: "properties/rec-1/image/b.jpg", URL: "http://s3/b.jpg", OriginalName: "b.jpg"},
	}
	rec.PDFs = []types.FileRef{{ID: "properties/rec-1/pdf/deed.pdf", URL: "http://s3/deed.pdf", OriginalName: "deed.pdf"}}

	return rec
}

func TestStartEditHydratesPersisted(t *testing.T) {
	s := form.New(attachment.NewStager(&nopPreviews{}), newBlockingDeleter())
	s.StartEdit(sampleRecord())

	d := s.Snapshot()
	assert.Equal(t, "rec-1", d.EditingTargetID)
	assert.Equal(t, "Ramesh", d.Fields.SharerName)
	require.Len(t, d.Images, 2)
	require.Len(t, d.Documents, 1)

	for _, a := range append(d.Images, d.Documents...) {
		assert.Equal(t, attachment.Persisted, a.Origin())
		assert.True(t, a.Valid())
	}

	assert.Empty(t, d.Staged())
}

func TestAddAndRemoveStaged(t *testing.T) {
	previews := &nopPreviews{}
	stager := attachment.NewStager(previews)
	deleter := newBlockingDeleter()
	s := form.New(stager, deleter)

	s.AddImages(attachment.File{Name: "1.png", Data: []byte("1")}, attachment.File{Name: "2.png", Data: []byte("2")})
	s.AddImages()
	s.AddDocuments(attachment.File{Name: "deed.pdf", Data: []byte("%PDF")})

	d := s.Snapshot()
	require.Len(t, d.Images, 2)
	assert.Equal(t, "2.png", d.Images[1].OriginalName())
	assert.Equal(t, 3, stager.Outstanding())

	require.NoError(t, s.RemoveAttachment(context.Background(), types.KindImage, 0))

	d = s.Snapshot()
	require.Len(t, d.Images, 1)
	assert.Equal(t, "2.png", d.Images[0].OriginalName())
	assert.Equal(t, 1, previews.revoked)
	assert.Equal(t, 2, stager.Outstanding())
	assert.Empty(t, deleter.Calls())

	assert.Error(t, s.RemoveAttachment(context.Background(), types.KindImage, 5))
}

func TestStartNewReleasesStaged(t *testing.T) {
	stager := attachment.NewStager(&nopPreviews{})
	s := form.New(stager, newBlockingDeleter(), form.WithDefaultCategory(types.CategoryShared))

	s.AddImages(attachment.File{Name: "1.png", Data: []byte("1")})
	s.AddDocuments(attachment.File{Name: "d.pdf", Data: []byte("2")})
	s.StartNew()

	assert.Zero(t, stager.Outstanding())

	d := s.Snapshot()
	assert.Empty(t, d.Images)
	assert.Equal(t, types.CategoryShared, d.Category)
	assert.False(t, d.Editing())
}

func TestRemovePersistedRequiresEditing(t *testing.T) {
	s := form.New(attachment.NewStager(&nopPreviews{}), newBlockingDeleter())
	s.StartEdit(sampleRecord())
	s.StartNew()

	assert.Error(t, s.RemoveAttachment(context.Background(), types.KindImage, 0))
}

func TestRemovePersistedSingleFlight(t *testing.T) {
	deleter := newBlockingDeleter()
	s := form.New(attachment.NewStager(&nopPreviews{}), deleter)
	s.StartEdit(sampleRecord())

	done := make(chan error, 1)

	go func() { done <- s.RemoveAttachment(context.Background(), types.KindImage, 1) }()

	<-deleter.started
	assert.True(t, s.DeleteInFlight(types.KindImage, "properties/rec-1/image/b.jpg"))

	// 第二次点击同一附件：不发请求
	err := s.RemoveAttachment(context.Background(), types.KindImage, 1)
	assert.ErrorIs(t, err, errs.ErrDeleteInFlight)

	close(deleter.release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"rec-1|image|properties/rec-1/image/b.jpg"}, deleter.Calls())
	assert.False(t, s.DeleteInFlight(types.KindImage, "properties/rec-1/image/b.jpg"))

	d := s.Snapshot()
	require.Len(t, d.Images, 1)
	assert.Equal(t, "a.jpg", d.Images[0].OriginalName())
}

func TestRemovePersistedConcurrentDifferentAttachments(t *testing.T) {
	deleter := newBlockingDeleter()
	s := form.New(attachment.NewStager(&nopPreviews{}), deleter)
	s.StartEdit(sampleRecord())

	var wg sync.WaitGroup

	wg.Add(2)

	go func() { defer wg.Done(); assert.NoError(t, s.RemoveAttachment(context.Background(), types.KindImage, 0)) }()
	<-deleter.started

	// 第一个删除进行中时索引未变，第二张仍在位置 1
	go func() { defer wg.Done(); assert.NoError(t, s.RemoveAttachment(context.Background(), types.KindImage, 1)) }()
	<-deleter.started

	assert.Equal(t, 2, s.PendingDeletes())
	close(deleter.release)
	wg.Wait()

	assert.Empty(t, s.Snapshot().Images)
	assert.Len(t, deleter.Calls(), 2)
}

func TestRemovePersistedFailureKeepsAttachment(t *testing.T) {
	deleter := newBlockingDeleter()
	deleter.err = &errs.RemoteError{Op: "delete file", Status: 500, Message: "s3 unavailable"}
	close(deleter.release)

	reporter := &recordingReporter{}
	s := form.New(attachment.NewStager(&nopPreviews{}), deleter, form.WithReporter(reporter))
	s.StartEdit(sampleRecord())

	err := s.RemoveAttachment(context.Background(), types.KindPDF, 0)
	require.Error(t, err)
	assert.Len(t, s.Snapshot().Documents, 1)
	assert.False(t, s.DeleteInFlight(types.KindPDF, "properties/rec-1/pdf/deed.pdf"))
	require.Len(t, reporter.errs, 1)
	assert.Equal(t, "s3 unavailable", errs.UserMessage(reporter.errs[0]))
}

func TestRemovePersistedCanceled(t *testing.T) {
	deleter := newBlockingDeleter()
	deny := form.ConfirmFunc(func(context.Context, string) bool { return false })
	s := form.New(attachment.NewStager(&nopPreviews{}), deleter, form.WithConfirmer(deny))
	s.StartEdit(sampleRecord())

	err := s.RemoveAttachment(context.Background(), types.KindImage, 0)
	assert.True(t, errors.Is(err, errs.ErrCanceled))
	assert.Empty(t, deleter.Calls())
	assert.Len(t, s.Snapshot().Images, 2)
	assert.Zero(t, s.PendingDeletes())
}

func TestValidateForCreate(t *testing.T) {
	s := form.New(attachment.NewStager(&nopPreviews{}), newBlockingDeleter())

	// 除三个选择项外全部填写：不通过
	for _, spec := range types.FieldTable {
		switch spec.Name {
		case types.FieldFileType, types.FieldLandType, types.FieldTenure:
			continue
		default:
			require.NoError(t, s.SetField(spec.Name, "x"))
		}
	}

	assert.False(t, s.ValidateForCreate())

	err := s.Validate()
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "file_type")
	assert.Contains(t, ve.Fields, "land_type")
	assert.Contains(t, ve.Fields, "tenure")

	// 只填三个选择项与前两个字段：通过
	s.StartNew()
	require.NoError(t, s.SetField(types.FieldSharerName, "Ramesh"))
	require.NoError(t, s.SetField(types.FieldSharerContact, "9876543210"))
	require.NoError(t, s.SetField(types.FieldFileType, "Title Clear Lands"))
	require.NoError(t, s.SetField(types.FieldLandType, "Agriculture"))
	require.NoError(t, s.SetField(types.FieldTenure, "Old Tenure"))
	assert.True(t, s.ValidateForCreate())

	assert.Error(t, s.SetField("nonexistent", "x"))
}

func TestFinishSubmitResetsUnchangedDraft(t *testing.T) {
	stager := attachment.NewStager(&nopPreviews{})
	s := form.New(stager, newBlockingDeleter(), form.WithDefaultCategory(types.CategoryWallet))
	s.StartEdit(sampleRecord())
	s.AddImages(attachment.File{Name: "c.jpg", Data: []byte("c")})

	snap := s.Snapshot()
	assert.True(t, s.FinishSubmit(snap, sampleRecord(), snap.Staged()))

	d := s.Snapshot()
	assert.False(t, d.Editing())
	assert.Equal(t, types.CategoryWallet, d.Category)
	assert.Empty(t, d.Images)
	assert.Zero(t, stager.Outstanding())
}

// TestFinishSubmitKeepsConcurrentDelete 提交期间删除的已持久化附件不会因远端返回旧列表而恢复.
func TestFinishSubmitKeepsConcurrentDelete(t *testing.T) {
	deleter := newBlockingDeleter()
	close(deleter.release)

	s := form.New(attachment.NewStager(&nopPreviews{}), deleter)
	s.StartEdit(sampleRecord())

	snap := s.Snapshot()

	require.NoError(t, s.RemoveAttachment(context.Background(), types.KindImage, 0))
	require.NoError(t, s.SetField(types.FieldVillage, "Bopal"))

	assert.False(t, s.FinishSubmit(snap, sampleRecord(), nil))

	d := s.Snapshot()
	assert.Equal(t, "rec-1", d.EditingTargetID)
	assert.Equal(t, "Bopal", d.Fields.Village)
	require.Len(t, d.Images, 1)
	assert.Equal(t, "b.jpg", d.Images[0].OriginalName())
	require.Len(t, d.Documents, 1)
}
