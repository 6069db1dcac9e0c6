// Package reconcile 把草稿提交到远端：决定上传哪些文件、发送哪些字段，并在成功后重置草稿.
//
// 只有暂存附件会被上传；已持久化附件既不重传也不会因缺席而被删除，删除只走单文件删除接口.
// 一次提交只发出一个 create 或 update 请求，失败时草稿保持原样.
package reconcile

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/yeisme/propvault/pkg/client/attachment"
	"github.com/yeisme/propvault/pkg/client/errs"
	"github.com/yeisme/propvault/pkg/client/form"
	"github.com/yeisme/propvault/pkg/client/gateway"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/log"
)

// Submitter 远端的新建与更新接口.
type Submitter interface {
	Create(ctx context.Context, p gateway.Payload) (*types.Record, error)
	Update(ctx context.Context, id string, p gateway.Payload) (*types.Record, error)
}

// Refresher 提交成功后刷新列表.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Engine 提交引擎. 同一时间只允许一个提交.
type Engine struct {
	form      *form.State
	remote    Submitter
	refresher Refresher
	reporter  form.Reporter

	submitting atomic.Bool
}

// Option 配置 Engine.
type Option func(*Engine)

// WithRefresher 设置提交成功后的刷新目标.
func WithRefresher(r Refresher) Option {
	return func(e *Engine) { e.refresher = r }
}

// WithReporter 设置错误展示.
func WithReporter(r form.Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// New 创建 Engine.
func New(state *form.State, remote Submitter, opts ...Option) *Engine {
	e := &Engine{form: state, remote: remote}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Submitting 报告是否有提交进行中，界面据此禁用提交按钮.
func (e *Engine) Submitting() bool {
	return e.submitting.Load()
}

// Submit 校验并提交草稿.
//
// 校验失败返回 *errs.ValidationError 且不发请求；已有提交进行中返回 errs.ErrSubmitInFlight；
// 草稿中仍有附件删除未完成时返回 errs.ErrDeleteInFlight. 成功后释放已上传附件的预览并刷新列表；
// 提交期间草稿未被修改时重置草稿，否则保留修改并转为编辑新记录. 失败时草稿不变.
func (e *Engine) Submit(ctx context.Context) (*types.Record, error) {
	if !e.submitting.CompareAndSwap(false, true) {
		return nil, errs.ErrSubmitInFlight
	}
	defer e.submitting.Store(false)

	if e.form.PendingDeletes() > 0 {
		return nil, errs.ErrDeleteInFlight
	}

	draft := e.form.Snapshot()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	payload, uploaded := BuildPayload(&draft)

	var (
		rec *types.Record
		err error
	)

	l := log.Component("reconcile")

	if draft.Editing() {
		rec, err = e.remote.Update(ctx, draft.EditingTargetID, payload)
	} else {
		rec, err = e.remote.Create(ctx, payload)
	}

	if err != nil {
		l.Warn().Err(err).Str("target", draft.EditingTargetID).Msg("submit failed")

		if e.reporter != nil {
			e.reporter.Show(err)
		}

		return nil, err
	}

	l.Info().Str("id", rec.ID).Int("uploads", len(uploaded)).Bool("update", draft.Editing()).Msg("record submitted")

	e.form.Release(uploaded...)

	if !e.form.FinishSubmit(draft, rec, uploaded) {
		l.Info().Str("id", rec.ID).Msg("draft changed while submitting, kept for editing")
	}

	if e.refresher != nil {
		if err := e.refresher.Refresh(ctx); err != nil && !errors.Is(err, errs.ErrSuperseded) {
			l.Warn().Err(err).Msg("refresh after submit failed")
		}
	}

	return rec, nil
}

// BuildPayload 根据草稿构造请求内容，并返回参与上传的暂存附件.
// 新建时发送全部字段；更新时只发送非空字段. 上传顺序为图片在前、文档在后，各自保持列表顺序.
func BuildPayload(d *form.Draft) (gateway.Payload, []*attachment.Attachment) {
	p := gateway.Payload{Category: d.Category}

	d.Fields.Each(func(spec types.FieldSpec, value string) {
		if d.Editing() && value == "" {
			return
		}

		p.Fields = append(p.Fields, gateway.FieldValue{Name: spec.Name, Value: value})
	})

	staged := d.Staged()
	for _, a := range staged {
		payload, _ := a.Payload()
		p.Uploads = append(p.Uploads, gateway.Upload{
			Kind:        a.Kind(),
			Name:        a.OriginalName(),
			ContentType: payload.ContentType,
			Data:        payload.Data,
		})
	}

	return p, staged
}
