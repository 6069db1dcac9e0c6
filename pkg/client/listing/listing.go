// Package listing 管理记录列表的查询、翻页、搜索防抖与记录标记操作.
//
// 每次请求在发出时分配序号，只有最新发出的请求结果会被应用；被取代的结果返回
// errs.ErrSuperseded. 失败时保留上一次成功的页面并通过 Reporter 展示错误.
package listing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yeisme/propvault/pkg/client/errs"
	"github.com/yeisme/propvault/pkg/client/form"
	"github.com/yeisme/propvault/pkg/client/gateway"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/log"
)

// DefaultDebounce 搜索输入的默认防抖窗口.
const DefaultDebounce = 500 * time.Millisecond

// Remote 列表控制器使用的远端接口.
type Remote interface {
	List(ctx context.Context, q gateway.Query) (*gateway.Page, error)
	Delete(ctx context.Context, id string) error
	SetOnBoard(ctx context.Context, id string, onBoard bool) error
	SetRecycleBin(ctx context.Context, id string, recycled bool) error
}

// Status 列表状态.
type Status int

const (
	// Idle 尚未发起查询.
	Idle Status = iota
	// Loading 查询进行中.
	Loading
	// Loaded 最近一次查询成功.
	Loaded
	// Failed 最近一次查询失败，页面保留上一次成功的结果.
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// View 渲染所需的列表快照.
type View struct {
	Status Status
	Query  gateway.Query
	Page   gateway.Page
	Err    error
}

// Controller 列表控制器，可并发使用.
type Controller struct {
	remote   Remote
	clock    clockwork.Clock
	debounce time.Duration
	reporter form.Reporter
	confirm  form.Confirmer

	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	status    Status
	query     gateway.Query
	loaded    gateway.Query // 当前页面对应的查询
	page      gateway.Page
	lastErr   error
	seq       uint64
	inflight  context.CancelFunc
	search    string
	searchGen uint64
	timer     clockwork.Timer
	subs      map[int]func(View)
	nextSub   int
}

// Option 配置 Controller.
type Option func(*Controller)

// WithClock 设置时钟，测试中使用 clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithDebounce 设置搜索防抖窗口.
func WithDebounce(d time.Duration) Option {
	return func(ctl *Controller) { ctl.debounce = d }
}

// WithReporter 设置错误展示.
func WithReporter(r form.Reporter) Option {
	return func(ctl *Controller) { ctl.reporter = r }
}

// WithConfirmer 设置破坏性操作的确认方式.
func WithConfirmer(c form.Confirmer) Option {
	return func(ctl *Controller) { ctl.confirm = c }
}

// New 创建列表控制器，initial 为初始查询条件，不会立即发起请求.
func New(remote Remote, initial gateway.Query, opts ...Option) *Controller {
	if initial.Page < 1 {
		initial.Page = 1
	}

	c := &Controller{
		remote:   remote,
		clock:    clockwork.NewRealClock(),
		debounce: DefaultDebounce,
		confirm:  form.AlwaysConfirm,
		query:    initial,
		search:   initial.Search,
		subs:     make(map[int]func(View)),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.base, c.cancel = context.WithCancel(context.Background())

	return c
}

// Subscribe 注册状态变化回调，返回取消注册函数.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// View 返回当前快照.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.viewLocked()
}

// Query 返回当前查询条件.
func (c *Controller) Query() gateway.Query {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.query
}

// Fetch 按 q 查询并整体替换当前页面.
// 发出新请求会取消仍在进行的旧请求；旧请求的结果无论何时返回都不会被应用.
func (c *Controller) Fetch(ctx context.Context, q gateway.Query) (*gateway.Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.seq++
	seq := c.seq

	if c.inflight != nil {
		c.inflight()
	}

	c.inflight = cancel
	c.query = q
	c.status = Loading
	c.mu.Unlock()

	c.notify()

	page, err := c.remote.List(reqCtx, q)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()

		return nil, errs.ErrSuperseded
	}

	c.inflight = nil

	if err != nil {
		c.status = Failed
		c.lastErr = err
		c.mu.Unlock()

		l := log.Component("listing")
		l.Warn().Err(err).Int("page", q.Page).Str("search", q.Search).Msg("list failed")

		c.report(err)
		c.notify()

		return nil, err
	}

	c.status = Loaded
	c.lastErr = nil
	c.loaded = q
	c.page = *page
	c.mu.Unlock()

	c.notify()

	return page, nil
}

// Refresh 重新查询当前条件.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err := c.Fetch(ctx, c.Query())

	return err
}

// SetSearch 更新搜索文本. 窗口内只有最后一次输入会触发查询，查询从第一页开始.
func (c *Controller) SetSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.search = text
	c.searchGen++
	gen := c.searchGen

	if c.timer != nil {
		c.timer.Stop()
	}

	c.timer = c.clock.AfterFunc(c.debounce, func() { c.fireSearch(gen) })
}

func (c *Controller) fireSearch(gen uint64) {
	c.mu.Lock()
	if gen != c.searchGen {
		c.mu.Unlock()

		return
	}

	c.timer = nil
	q := c.query
	q.Search = c.search
	q.Page = 1
	c.mu.Unlock()

	if _, err := c.Fetch(c.base, q); err != nil && !errors.Is(err, errs.ErrSuperseded) {
		l := log.Component("listing")
		l.Debug().Err(err).Msg("debounced search failed")
	}
}

// SetCategory 切换分类并查询第一页.
func (c *Controller) SetCategory(ctx context.Context, cat types.Category) error {
	if !cat.Valid() {
		return &errs.ValidationError{Fields: map[string]string{"category": "unknown category"}}
	}

	q := c.Query()
	q.Category = cat
	q.Page = 1

	_, err := c.Fetch(ctx, q)

	return err
}

// SetRecycleView 在正常列表与回收站之间切换并查询第一页.
func (c *Controller) SetRecycleView(ctx context.Context, recycled bool) error {
	q := c.Query()
	q.RecycleBin = recycled
	q.Page = 1

	_, err := c.Fetch(ctx, q)

	return err
}

// ChangePage 以已加载的页面为基准按 delta 翻页. 目标页超出 [1, totalPages]，
// 或分类、搜索、回收站条件的新查询尚未成功加载时，不做任何事并返回 false.
func (c *Controller) ChangePage(ctx context.Context, delta int) (bool, error) {
	c.mu.Lock()
	q := c.loaded
	pending := c.query
	total := c.page.TotalPages
	c.mu.Unlock()

	if !sameFilter(q, pending) {
		return false, nil
	}

	target := q.Page + delta
	if target < 1 || target > total {
		return false, nil
	}

	q.Page = target

	_, err := c.Fetch(ctx, q)

	return true, err
}

// sameFilter 比较除页码外的查询条件.
func sameFilter(a, b gateway.Query) bool {
	a.Page, b.Page = 0, 0

	return a == b
}

// SetOnBoard 设置上架标记，成功后刷新当前页.
func (c *Controller) SetOnBoard(ctx context.Context, id string, onBoard bool) error {
	if err := c.remote.SetOnBoard(ctx, id, onBoard); err != nil {
		c.report(err)

		return err
	}

	return c.refreshAfter(ctx)
}

// MoveToRecycleBin 确认后把记录移入回收站.
func (c *Controller) MoveToRecycleBin(ctx context.Context, id string) error {
	if !c.confirm.Confirm(ctx, "Move this record to the recycle bin?") {
		return errs.ErrCanceled
	}

	if err := c.remote.SetRecycleBin(ctx, id, true); err != nil {
		c.report(err)

		return err
	}

	c.removeLocal(id)

	return c.refreshAfter(ctx)
}

// Restore 把记录移出回收站.
func (c *Controller) Restore(ctx context.Context, id string) error {
	if err := c.remote.SetRecycleBin(ctx, id, false); err != nil {
		c.report(err)

		return err
	}

	c.removeLocal(id)

	return c.refreshAfter(ctx)
}

// PermanentDelete 确认后永久删除记录. 记录必须出现在当前页且已在回收站中.
func (c *Controller) PermanentDelete(ctx context.Context, id string) error {
	rec, ok := c.find(id)
	if !ok || !rec.RecycleBin {
		return errs.ErrNotRecycled
	}

	if !c.confirm.Confirm(ctx, "Permanently delete this record? This cannot be undone.") {
		return errs.ErrCanceled
	}

	if err := c.remote.Delete(ctx, id); err != nil {
		c.report(err)

		return err
	}

	c.removeLocal(id)

	return c.refreshAfter(ctx)
}

// Close 停止防抖计时器并取消进行中的请求.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	c.searchGen++
	c.mu.Unlock()

	c.cancel()
}

func (c *Controller) refreshAfter(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil && !errors.Is(err, errs.ErrSuperseded) {
		return err
	}

	return nil
}

func (c *Controller) find(id string) (types.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.page.Items {
		if r.ID == id {
			return r, true
		}
	}

	return types.Record{}, false
}

// removeLocal 用去掉 id 的副本替换当前页面，不修改原切片.
func (c *Controller) removeLocal(id string) {
	c.mu.Lock()

	items := make([]types.Record, 0, len(c.page.Items))
	removed := false

	for _, r := range c.page.Items {
		if r.ID == id {
			removed = true

			continue
		}

		items = append(items, r)
	}

	if !removed {
		c.mu.Unlock()

		return
	}

	page := c.page
	page.Items = items

	if page.TotalItems > 0 {
		page.TotalItems--
	}

	c.page = page
	c.mu.Unlock()

	c.notify()
}

func (c *Controller) report(err error) {
	if c.reporter != nil {
		c.reporter.Show(err)
	}
}

func (c *Controller) viewLocked() View {
	return View{Status: c.status, Query: c.query, Page: c.page, Err: c.lastErr}
}

func (c *Controller) notify() {
	c.mu.Lock()
	v := c.viewLocked()

	subs := make([]func(View), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}
