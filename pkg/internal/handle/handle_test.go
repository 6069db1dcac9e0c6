package handle_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/app"
	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/storage"
	"github.com/yeisme/propvault/pkg/internal/storage/storagetest"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/middleware"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type server struct {
	t      *testing.T
	engine *gin.Engine
	mgr    *storage.Manager
	token  string
}

func newServer(t *testing.T, mutate ...func(*configs.AppConfig)) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := storagetest.Config(t)
	for _, m := range mutate {
		m(cfg)
	}

	configs.SetConfig(*cfg)

	mgr := storagetest.New(t, cfg)

	return &server{t: t, engine: app.NewEngine(cfg, mgr, nil), mgr: mgr}
}

type filePart struct {
	field string
	name  string
	data  []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return buf, w.FormDataContentType()
}

func (s *server) do(method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	s.t.Helper()

	if body == nil {
		body = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	return rec
}

func (s *server) json(method, target, body string) *httptest.ResponseRecorder {
	s.t.Helper()

	return s.do(method, target, bytes.NewBufferString(body), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func validFields(name string) map[string]string {
	return map[string]string{
		"category":       "rd",
		"sharer_name":    name,
		"sharer_contact": "9876543210",
		"village":        "Bopal",
		"file_type":      "Title Clear Lands",
		"land_type":      "Agriculture",
		"tenure":         "Old Tenure",
	}
}

func (s *server) create(name string, files ...filePart) types.Record {
	s.t.Helper()

	body, ct := multipartBody(s.t, validFields(name), files...)
	rec := s.do(http.MethodPost, "/api/v1/properties", body, ct)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	return decode[types.Record](s.t, rec)
}

func TestCreateRecord(t *testing.T) {
	s := newServer(t)

	rec := s.create("Ramesh",
		filePart{"images[]", "front.png", pngHeader},
		filePart{"images[]", "back.png", pngHeader},
		filePart{"pdfs[]", "deed.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")},
	)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, types.CategoryRD, rec.Category)
	assert.Equal(t, "Ramesh", rec.SharerName)
	require.Len(t, rec.Images, 2)
	require.Len(t, rec.PDFs, 1)
	assert.Equal(t, "front.png", rec.Images[0].OriginalName)
	assert.Equal(t, "back.png", rec.Images[1].OriginalName)
	assert.Equal(t, "image/png", rec.Images[0].ContentType)
	assert.True(t, strings.HasPrefix(rec.Images[0].ID, "properties/"+rec.ID+"/image/"), rec.Images[0].ID)

	assert.Len(t, storagetest.Objects(t, s.mgr).Keys(), 3)
}

func TestCreateRecordValidation(t *testing.T) {
	s := newServer(t)

	fields := validFields("")
	body, ct := multipartBody(t, fields)
	rec := s.do(http.MethodPost, "/api/v1/properties", body, ct)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.NotEmpty(t, got["message"])
	assert.Contains(t, got["fields"], "sharer_name")

	fields = validFields("Ramesh")
	fields["category"] = "villa"
	body, ct = multipartBody(t, fields)
	rec = s.do(http.MethodPost, "/api/v1/properties", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.json(http.MethodPost, "/api/v1/properties", `{"sharer_name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRecordBodyLimit(t *testing.T) {
	s := newServer(t, func(c *configs.AppConfig) { c.Server.MaxUploadMB = 1 })

	body, ct := multipartBody(t, validFields("Big"), filePart{"images[]", "big.png", bytes.Repeat([]byte{1}, 2<<20)})
	rec := s.do(http.MethodPost, "/api/v1/properties", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, storagetest.Objects(t, s.mgr).Keys())
}

func TestListRecords(t *testing.T) {
	s := newServer(t)

	for i := range 12 {
		s.create(fmt.Sprintf("Sharer %02d", i))
	}

	rec := s.do(http.MethodGet, "/api/v1/properties?limit=5&page=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	page := decode[types.ListResponse](t, rec)
	assert.Len(t, page.Data, 5)
	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.EqualValues(t, 12, page.Pagination.TotalItems)
	assert.EqualValues(t, 12, page.Pagination.TotalProperties)
	assert.True(t, page.Pagination.HasPrev)
	assert.True(t, page.Pagination.HasNext)

	rec = s.do(http.MethodGet, "/api/v1/properties?search="+url.QueryEscape("sharer 07"), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[types.ListResponse](t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Sharer 07", page.Data[0].SharerName)

	rec = s.do(http.MethodGet, "/api/v1/properties?limit=500", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[types.ListResponse](t, rec).Data, 12)

	rec = s.do(http.MethodGet, "/api/v1/properties?category=villa", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/properties?recycleBin=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[types.ListResponse](t, rec).Data)
}

func TestGetRecordNotFound(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/api/v1/properties/01ARZ3NDEKTSV4RRFFQ69G5FAV", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[types.ErrorResponse](t, rec).Message)

	rec = s.do(http.MethodGet, "/api/v1/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode[types.ErrorResponse](t, rec).Message)
}

func TestUpdateRecordMergesAndAppends(t *testing.T) {
	s := newServer(t)

	created := s.create("Ramesh", filePart{"images[]", "front.png", pngHeader})

	body, ct := multipartBody(t, map[string]string{"village": "Sanand", "sharer_name": ""},
		filePart{"images[]", "side.png", pngHeader})
	rec := s.do(http.MethodPut, "/api/v1/properties/"+created.ID, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[types.Record](t, rec)
	assert.Equal(t, "Sanand", updated.Village)
	assert.Equal(t, "Ramesh", updated.SharerName)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, created.Images[0].ID, updated.Images[0].ID)
	assert.Equal(t, "side.png", updated.Images[1].OriginalName)

	body, ct = multipartBody(t, map[string]string{"village": "X"})
	rec = s.do(http.MethodPut, "/api/v1/properties/01ARZ3NDEKTSV4RRFFQ69G5FAV", body, ct)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRecordFileWithEncodedRemoteID(t *testing.T) {
	s := newServer(t)

	created := s.create("Ramesh",
		filePart{"images[]", "front.png", pngHeader},
		filePart{"images[]", "back.png", pngHeader},
	)

	remoteID := created.Images[0].ID
	require.Contains(t, remoteID, "/")

	target := "/api/v1/properties/" + created.ID + "/files/images/" + url.PathEscape(remoteID)

	rec := s.do(http.MethodDelete, target, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	after := decode[types.Record](t, rec)
	require.Len(t, after.Images, 1)
	assert.Equal(t, created.Images[1].ID, after.Images[0].ID)
	assert.Len(t, storagetest.Objects(t, s.mgr).Keys(), 1)

	rec = s.do(http.MethodDelete, target, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/properties/"+created.ID+"/files/videos/x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRequiresRecycleBin(t *testing.T) {
	s := newServer(t)

	created := s.create("Ramesh", filePart{"pdfs[]", "deed.pdf", []byte("%PDF-1.4\n")})
	path := "/api/v1/properties/" + created.ID

	rec := s.do(http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.json(http.MethodPatch, path+"/recycleBin", `{"recycleBin":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	recycled := decode[types.Record](t, rec)
	assert.True(t, recycled.RecycleBin)
	assert.NotNil(t, recycled.RecycledAt)

	rec = s.do(http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "record deleted", decode[types.MessageResponse](t, rec).Message)

	assert.Empty(t, storagetest.Objects(t, s.mgr).Keys())

	rec = s.do(http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlags(t *testing.T) {
	s := newServer(t)

	created := s.create("Ramesh")
	path := "/api/v1/properties/" + created.ID

	rec := s.json(http.MethodPatch, path+"/onboard", `{"onBoard":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[types.Record](t, rec).OnBoard)

	rec = s.json(http.MethodPatch, path+"/onboard", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.json(http.MethodPatch, path+"/onboard", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.json(http.MethodPatch, path+"/recycleBin", `{"recycleBin":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.json(http.MethodPatch, path+"/recycleBin", `{"recycleBin":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	restored := decode[types.Record](t, rec)
	assert.False(t, restored.RecycleBin)
	assert.Nil(t, restored.RecycledAt)
	assert.True(t, restored.OnBoard)
}

func TestPurgeTrash(t *testing.T) {
	s := newServer(t)

	created := s.create("Ramesh")
	rec := s.json(http.MethodPatch, "/api/v1/properties/"+created.ID+"/recycleBin", `{"recycleBin":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/trash/purge", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["purged"])

	time.Sleep(10 * time.Millisecond)

	rec = s.do(http.MethodPost, "/api/v1/trash/purge?days=0", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["purged"])

	rec = s.do(http.MethodPost, "/api/v1/trash/purge?days=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	for _, component := range []string{"db", "s3", "mq"} {
		rec := s.do(http.MethodGet, "/api/v1/health/"+component, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, component)
	}
}

func TestSchedulerUnavailableWithoutScheduler(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/api/v1/scheduler/jobs", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBearerAuthAndRoles(t *testing.T) {
	s := newServer(t, func(c *configs.AppConfig) {
		c.Auth.Enabled = true
		c.Auth.Secret = "test-secret"
	})

	auth := configs.GetConfig().Auth

	rec := s.do(http.MethodGet, "/api/v1/properties", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/health/db", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	viewer, _, err := middleware.IssueToken(auth, "viewer-1", middleware.RoleViewer, time.Hour)
	require.NoError(t, err)

	s.token = viewer
	rec = s.do(http.MethodGet, "/api/v1/properties", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	body, ct := multipartBody(t, validFields("Ramesh"))
	rec = s.do(http.MethodPost, "/api/v1/properties", body, ct)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	editor, _, err := middleware.IssueToken(auth, "agent-7", middleware.RoleEditor, time.Hour)
	require.NoError(t, err)

	s.token = editor
	created := s.create("Ramesh")
	assert.Equal(t, "agent-7", created.CreatedBy)

	rec = s.do(http.MethodPost, "/api/v1/trash/purge", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	other := auth
	other.Secret = "another-secret"
	forged, _, err := middleware.IssueToken(other, "mallory", middleware.RoleAdmin, time.Hour)
	require.NoError(t, err)

	s.token = forged
	rec = s.do(http.MethodGet, "/api/v1/properties", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
