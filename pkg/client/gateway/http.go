package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"

	"github.com/yeisme/propvault/pkg/client/errs"
	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/log"
)

const maxErrorBody = 4 << 10

// Options HTTPGateway 配置.
type Options struct {
	BaseURL    string
	Collection string
	Timeout    time.Duration
	Client     *http.Client
	Tokens     TokenSource
	Breaker    configs.CircuitBreakerConfig
}

// OptionsFromConfig 根据客户端配置构造 Options.
func OptionsFromConfig(c configs.ClientConfig, tokens TokenSource) Options {
	return Options{
		BaseURL:    c.BaseURL,
		Collection: c.Collection,
		Timeout:    c.GetRequestTimeout(),
		Tokens:     tokens,
		Breaker:    c.CircuitBreaker,
	}
}

// HTTPGateway 通过 REST/JSON 访问远端记录存储.
type HTTPGateway struct {
	base    *url.URL
	client  *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker
}

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTP 创建 HTTPGateway.
func NewHTTP(opts Options) (*HTTPGateway, error) {
	if opts.Collection == "" {
		opts.Collection = configs.DefaultCollection
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/" + url.PathEscape(opts.Collection))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	g := &HTTPGateway{base: base, client: client, tokens: opts.Tokens}

	if opts.Breaker.Enabled {
		g.breaker = newBreaker(opts.Breaker)
	}

	return g, nil
}

func newBreaker(cfg configs.CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gateway",
		MaxRequests: cfg.MaxRequestsInHalf,
		Interval:    cfg.Interval(),
		Timeout:     cfg.Timeout(),
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}

			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l := log.Component("gateway")
			l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

// Create 新建记录.
func (g *HTTPGateway) Create(ctx context.Context, p Payload) (*types.Record, error) {
	body, ct, err := encodeMultipart(p)
	if err != nil {
		return nil, err
	}

	var rec types.Record
	if err := g.do(ctx, "create", http.MethodPost, "", nil, body, ct, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

// Update 更新记录，只追加新文件，不删除已有附件.
func (g *HTTPGateway) Update(ctx context.Context, id string, p Payload) (*types.Record, error) {
	body, ct, err := encodeMultipart(p)
	if err != nil {
		return nil, err
	}

	var rec types.Record
	if err := g.do(ctx, "update", http.MethodPut, recordPath(id), nil, body, ct, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

// Get 获取单条记录.
func (g *HTTPGateway) Get(ctx context.Context, id string) (*types.Record, error) {
	var rec types.Record
	if err := g.do(ctx, "get", http.MethodGet, recordPath(id), nil, nil, "", &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

// List 分页查询.
func (g *HTTPGateway) List(ctx context.Context, q Query) (*Page, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}

	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	if q.Category.Valid() {
		params.Set("category", q.Category.String())
	}

	if q.Search != "" {
		params.Set("search", q.Search)
	}

	if q.RecycleBin {
		params.Set("recycleBin", "true")
	}

	var resp types.ListResponse
	if err := g.do(ctx, "list", http.MethodGet, "", params, nil, "", &resp); err != nil {
		return nil, err
	}

	total := resp.Pagination.TotalItems
	if total == 0 {
		total = resp.Pagination.TotalProperties
	}

	return &Page{
		Items:      resp.Data,
		Page:       resp.Pagination.CurrentPage,
		TotalPages: resp.Pagination.TotalPages,
		TotalItems: total,
		HasPrev:    resp.Pagination.HasPrev,
		HasNext:    resp.Pagination.HasNext,
	}, nil
}

// Delete 永久删除记录.
func (g *HTTPGateway) Delete(ctx context.Context, id string) error {
	return g.do(ctx, "delete", http.MethodDelete, recordPath(id), nil, nil, "", nil)
}

// DeleteFile 删除单个附件，remoteID 会被百分号编码（其中的 "/" 编码为 %2F）.
func (g *HTTPGateway) DeleteFile(ctx context.Context, id string, kind types.AttachmentKind, remoteID string) error {
	path := recordPath(id) + "/files/" + kind.FileType() + "/" + url.PathEscape(remoteID)

	return g.do(ctx, "delete file", http.MethodDelete, path, nil, nil, "", nil)
}

// SetOnBoard 切换上架标记.
func (g *HTTPGateway) SetOnBoard(ctx context.Context, id string, onBoard bool) error {
	body, err := sonic.Marshal(types.OnBoardRequest{OnBoard: &onBoard})
	if err != nil {
		return err
	}

	return g.do(ctx, "onboard", http.MethodPatch, recordPath(id)+"/onboard", nil, body, "application/json", nil)
}

// SetRecycleBin 移入或移出回收站.
func (g *HTTPGateway) SetRecycleBin(ctx context.Context, id string, recycled bool) error {
	body, err := sonic.Marshal(types.RecycleBinRequest{RecycleBin: &recycled})
	if err != nil {
		return err
	}

	return g.do(ctx, "recycle bin", http.MethodPatch, recordPath(id)+"/recycleBin", nil, body, "application/json", nil)
}

func recordPath(id string) string {
	return "/" + url.PathEscape(id)
}

// do 发送请求；传输失败返回 NetworkError，非 2xx 返回 RemoteError.
func (g *HTTPGateway) do(
	ctx context.Context,
	op, method, path string,
	params url.Values,
	body []byte,
	contentType string,
	out any,
) error {
	call := func() (any, error) {
		return nil, g.roundTrip(ctx, op, method, path, params, body, contentType, out)
	}

	if g.breaker == nil {
		_, err := call()

		return err
	}

	var remote *errs.RemoteError

	_, err := g.breaker.Execute(func() (any, error) {
		_, err := call()
		// 4xx 属于调用方问题，不计入熔断统计
		if errors.As(err, &remote) && remote.Status < http.StatusInternalServerError {
			return nil, nil
		}

		return nil, err
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &errs.NetworkError{Op: op, Err: err}
	case err != nil:
		return err
	case remote != nil:
		return remote
	default:
		return nil
	}
}

func (g *HTTPGateway) roundTrip(
	ctx context.Context,
	op, method, path string,
	params url.Values,
	body []byte,
	contentType string,
	out any,
) error {
	raw := g.base.String() + path
	if len(params) > 0 {
		raw += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, raw, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if g.tokens != nil {
		if tok := g.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &errs.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.NetworkError{Op: op, Err: err}
	}

	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}

	return nil
}

func decodeError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body types.ErrorResponse
	if err := sonic.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}

	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}

	return &errs.RemoteError{Op: op, Status: resp.StatusCode, Message: body.Message}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart 编码标量字段、分类与文件.
func encodeMultipart(p Payload) ([]byte, string, error) {
	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	if p.Category.Valid() {
		if err := mw.WriteField("category", p.Category.String()); err != nil {
			return nil, "", err
		}
	}

	for _, f := range p.Fields {
		if err := mw.WriteField(string(f.Name), f.Value); err != nil {
			return nil, "", err
		}
	}

	for _, u := range p.Uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(u.Kind.FormField()), quoteEscaper.Replace(u.Name)))

		ct := u.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}

		h.Set("Content-Type", ct)

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}

		if _, err := part.Write(u.Data); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}
