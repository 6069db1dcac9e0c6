package handle

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/service"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/log"
)

const mb = 1 << 20

// CreateRecord 新建记录.
//
//	@Summary	新建记录
//	@Tags		记录
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		category	formData	string	true	"wallet | rd | shared"
//	@Param		images[]	formData	file	false	"图片"
//	@Param		pdfs[]		formData	file	false	"PDF 文档"
//	@Success	201			{object}	types.Record
//	@Failure	400			{object}	types.ErrorResponse
//	@Router		/api/v1/{collection} [post]
func CreateRecord(c *gin.Context) {
	form, err := parseMultipart(c)
	if err != nil {
		writeError(c, err)
		return
	}

	category, err := types.ParseCategory(formValue(form, "category"))
	if err != nil {
		writeError(c, &service.ValidationError{Fields: map[string]string{"category": "unknown category"}})
		return
	}

	in := service.CreateInput{
		Category: category,
		Fields:   formFields(form),
		Uploads:  formUploads(form),
	}

	svc := service.NewRecordService(c.Request.Context())

	rec, err := svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	l := log.Logger()
	l.Info().Str("id", rec.ID).Str("category", rec.Category.String()).Int("files", len(in.Uploads)).Msg("record created")

	c.JSON(http.StatusCreated, rec)
}

// ListRecords 分页查询记录.
//
//	@Summary	记录列表
//	@Tags		记录
//	@Produce	json
//	@Param		page		query		int		false	"页码(默认1)"
//	@Param		limit		query		int		false	"每页条数(默认10, 最大100)"
//	@Param		category	query		string	false	"分类"
//	@Param		search		query		string	false	"关键字"
//	@Param		recycleBin	query		bool	false	"回收站"
//	@Success	200			{object}	types.ListResponse
//	@Router		/api/v1/{collection} [get]
func ListRecords(c *gin.Context) {
	var q types.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, bindError(err))
		return
	}

	if err := validate(&q); err != nil {
		writeError(c, err)
		return
	}

	resp, err := service.NewRecordService(c.Request.Context()).List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetRecord 获取单条记录.
func GetRecord(c *gin.Context) {
	rec, err := service.NewRecordService(c.Request.Context()).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// UpdateRecord 更新记录：只应用非空字段，新附件追加在已有附件之后.
//
//	@Summary	更新记录
//	@Tags		记录
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		id	path		string	true	"记录 ID"
//	@Success	200	{object}	types.Record
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/v1/{collection}/{id} [put]
func UpdateRecord(c *gin.Context) {
	form, err := parseMultipart(c)
	if err != nil {
		writeError(c, err)
		return
	}

	in := service.UpdateInput{
		Fields:  formFields(form),
		Uploads: formUploads(form),
	}

	if raw := formValue(form, "category"); raw != "" {
		category, err := types.ParseCategory(raw)
		if err != nil {
			writeError(c, &service.ValidationError{Fields: map[string]string{"category": "unknown category"}})
			return
		}

		in.Category = &category
	}

	rec, err := service.NewRecordService(c.Request.Context()).Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// DeleteRecord 永久删除回收站中的记录.
//
//	@Summary	永久删除记录
//	@Tags		记录
//	@Param		id	path		string	true	"记录 ID"
//	@Success	200	{object}	types.MessageResponse
//	@Failure	409	{object}	types.ErrorResponse	"记录不在回收站中"
//	@Router		/api/v1/{collection}/{id} [delete]
func DeleteRecord(c *gin.Context) {
	id := c.Param("id")

	if err := service.NewRecordService(c.Request.Context()).Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	l := log.Logger()
	l.Info().Str("id", id).Msg("record deleted")

	c.JSON(http.StatusOK, types.MessageResponse{Message: "record deleted"})
}

// DeleteRecordFile 删除记录下的单个附件. remoteId 经过百分号编码，可包含 "/".
//
//	@Summary	删除附件
//	@Tags		记录
//	@Param		id			path		string	true	"记录 ID"
//	@Param		fileType	path		string	true	"images | pdfs"
//	@Param		remoteId	path		string	true	"附件 ID（编码后）"
//	@Success	200			{object}	types.Record
//	@Router		/api/v1/{collection}/{id}/files/{fileType}/{remoteId} [delete]
func DeleteRecordFile(c *gin.Context) {
	kind, err := types.ParseFileType(c.Param("fileType"))
	if err != nil {
		writeError(c, &service.ValidationError{Fields: map[string]string{"fileType": "must be one of [images pdfs]"}})
		return
	}

	remoteID := strings.TrimPrefix(c.Param("remoteId"), "/")
	if remoteID == "" {
		writeError(c, &service.ValidationError{Fields: map[string]string{"remoteId": "is required"}})
		return
	}

	rec, err := service.NewRecordService(c.Request.Context()).DeleteFile(c.Request.Context(), c.Param("id"), kind, remoteID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// SetRecordOnBoard 切换上架标记.
func SetRecordOnBoard(c *gin.Context) {
	var req types.OnBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	if err := validate(&req); err != nil {
		writeError(c, err)
		return
	}

	rec, err := service.NewRecordService(c.Request.Context()).SetOnBoard(c.Request.Context(), c.Param("id"), *req.OnBoard)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// SetRecordRecycleBin 移入或移出回收站.
func SetRecordRecycleBin(c *gin.Context) {
	var req types.RecycleBinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	if err := validate(&req); err != nil {
		writeError(c, err)
		return
	}

	rec, err := service.NewRecordService(c.Request.Context()).SetRecycleBin(c.Request.Context(), c.Param("id"), *req.RecycleBin)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// parseMultipart 解析 multipart 请求体，大小受 server.max_upload_mb 限制.
func parseMultipart(c *gin.Context) (*multipart.Form, error) {
	limit := configs.GetConfig().Server.MaxUploadMB
	if limit <= 0 {
		limit = configs.DefaultMaxUploadMB
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit*mb)

	if err := c.Request.ParseMultipartForm(32 * mb); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &service.ValidationError{Fields: map[string]string{"body": "request body too large"}}
		}

		return nil, &service.ValidationError{Fields: map[string]string{"body": "invalid multipart form"}}
	}

	return c.Request.MultipartForm, nil
}

func formValue(form *multipart.Form, name string) string {
	if vs := form.Value[name]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}

	return ""
}

// formFields 按字段表读取标量字段，未知字段忽略.
func formFields(form *multipart.Form) types.Fields {
	var f types.Fields

	for _, spec := range types.FieldTable {
		if v := formValue(form, string(spec.Name)); v != "" {
			_ = f.Set(spec.Name, v)
		}
	}

	return f
}

// formUploads 收集附件，images[] 在前、pdfs[] 在后，同时接受不带 [] 的字段名.
func formUploads(form *multipart.Form) []service.Upload {
	var out []service.Upload

	for _, kind := range []types.AttachmentKind{types.KindImage, types.KindPDF} {
		for _, name := range []string{kind.FormField(), kind.FileType()} {
			for _, fh := range form.File[name] {
				out = append(out, toUpload(kind, fh))
			}
		}
	}

	return out
}

func toUpload(kind types.AttachmentKind, fh *multipart.FileHeader) service.Upload {
	return service.Upload{
		Kind:        kind,
		Name:        fh.Filename,
		ContentType: contentType(fh),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// contentType 优先使用客户端声明的类型，缺失或为通用二进制类型时按内容识别.
func contentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}

	f, err := fh.Open()
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	m, err := mimetype.DetectReader(f)
	if err != nil {
		return "application/octet-stream"
	}

	return m.String()
}
