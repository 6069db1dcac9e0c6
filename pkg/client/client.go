// Package client 组装单个分类的记录维护工作区：会话、远端网关、错误横幅、附件暂存、
// 草稿、列表控制器与提交引擎.
//
// Example:
//
//	ws, err := client.New(configs.GetConfig().Client)
//	if err != nil {
//		return err
//	}
//	defer ws.Close()
//
//	_ = ws.Form.SetField(types.FieldSharerName, "Ramesh")
//	rec, err := ws.Engine.Submit(ctx)
package client

import (
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/yeisme/propvault/pkg/client/attachment"
	"github.com/yeisme/propvault/pkg/client/banner"
	"github.com/yeisme/propvault/pkg/client/form"
	"github.com/yeisme/propvault/pkg/client/gateway"
	"github.com/yeisme/propvault/pkg/client/listing"
	"github.com/yeisme/propvault/pkg/client/reconcile"
	"github.com/yeisme/propvault/pkg/client/session"
	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/internal/types"
)

// Workspace 单个分类的工作区. 字段在 New 之后不再变化.
type Workspace struct {
	Category types.Category
	Session  *session.Session
	Gateway  gateway.Gateway
	Banner   *banner.Banner
	Stager   *attachment.Stager
	Form     *form.State
	Listing  *listing.Controller
	Engine   *reconcile.Engine

	ownsSession bool
}

type options struct {
	clock    clockwork.Clock
	gateway  gateway.Gateway
	session  *session.Session
	previews attachment.PreviewRegistry
	confirm  form.Confirmer
}

// Option 配置 Workspace.
type Option func(*options)

// WithClock 设置防抖、横幅与会话使用的时钟.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithGateway 使用给定网关代替 HTTP 网关.
func WithGateway(g gateway.Gateway) Option {
	return func(o *options) { o.gateway = g }
}

// WithSession 使用已打开的会话，Close 不会关闭它.
func WithSession(s *session.Session) Option {
	return func(o *options) { o.session = s }
}

// WithPreviews 设置本地预览实现.
func WithPreviews(p attachment.PreviewRegistry) Option {
	return func(o *options) { o.previews = p }
}

// WithConfirmer 设置破坏性操作的确认方式.
func WithConfirmer(c form.Confirmer) Option {
	return func(o *options) { o.confirm = c }
}

// New 按客户端配置创建工作区.
func New(cfg configs.ClientConfig, opts ...Option) (*Workspace, error) {
	o := options{clock: clockwork.NewRealClock(), confirm: form.AlwaysConfirm}
	for _, opt := range opts {
		opt(&o)
	}

	category, err := types.ParseCategory(cfg.Category)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{Category: category, Session: o.session}

	if ws.Session == nil {
		ws.Session, err = session.Open(cfg.GetSessionFile(), cfg.GetSessionTTL(), o.clock)
		if err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}

		ws.ownsSession = true
	}

	ws.Gateway = o.gateway
	if ws.Gateway == nil {
		ws.Gateway, err = gateway.NewHTTP(gateway.OptionsFromConfig(cfg, ws.Session))
		if err != nil {
			ws.closeSession()

			return nil, err
		}
	}

	previews := o.previews
	if previews == nil {
		previews = attachment.NewTempPreviews(cfg.PreviewDir)
	}

	ws.Banner = banner.New(o.clock, cfg.GetBannerTimeout())
	ws.Stager = attachment.NewStager(previews)
	ws.Form = form.New(ws.Stager, ws.Gateway,
		form.WithConfirmer(o.confirm),
		form.WithReporter(ws.Banner),
		form.WithDefaultCategory(category),
	)
	ws.Listing = listing.New(ws.Gateway,
		gateway.Query{Page: 1, Limit: cfg.PageLimit, Category: category},
		listing.WithClock(o.clock),
		listing.WithDebounce(cfg.GetSearchDebounce()),
		listing.WithReporter(ws.Banner),
		listing.WithConfirmer(o.confirm),
	)
	ws.Engine = reconcile.New(ws.Form, ws.Gateway,
		reconcile.WithRefresher(ws.Listing),
		reconcile.WithReporter(ws.Banner),
	)

	return ws, nil
}

// Discard 放弃当前草稿并释放其中所有暂存附件.
func (w *Workspace) Discard() {
	w.Form.StartNew()
}

// Close 放弃草稿并停止所有计时器.
func (w *Workspace) Close() {
	w.Discard()
	w.Listing.Close()
	w.Banner.Close()
	w.closeSession()
}

func (w *Workspace) closeSession() {
	if w.ownsSession {
		w.Session.Close()
	}
}
