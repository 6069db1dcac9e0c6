// Package form 维护单条房产记录的可编辑草稿：标量字段、图片与文档附件列表以及正在编辑的目标记录.
//
// 草稿与持久化方式无关. 删除已持久化附件是一次远端删除：先征得确认，成功后才从列表移除；
// 同一附件的删除在完成前只会发出一次请求.
package form

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/yeisme/propvault/pkg/client/attachment"
	"github.com/yeisme/propvault/pkg/client/errs"
	"github.com/yeisme/propvault/pkg/internal/types"
	"github.com/yeisme/propvault/pkg/rule"
)

// FileDeleter 删除远端单个附件.
type FileDeleter interface {
	DeleteFile(ctx context.Context, id string, kind types.AttachmentKind, remoteID string) error
}

// Confirmer 在破坏性操作前征求用户确认.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc 把函数适配为 Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm 实现 Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysConfirm 不询问直接确认，用于非交互场景.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })

// Reporter 展示错误，通常是错误横幅.
type Reporter interface {
	Show(err error)
}

// Draft 草稿快照. 附件本身不可变，快照之间共享.
type Draft struct {
	Category        types.Category
	Fields          types.Fields
	Images          []*attachment.Attachment
	Documents       []*attachment.Attachment
	EditingTargetID string
	// Revision 快照时草稿的修改计数.
	Revision        uint64
}

// Editing 报告草稿是否对应已有记录.
func (d *Draft) Editing() bool { return d.EditingTargetID != "" }

// Attachments 按种类返回附件列表.
func (d *Draft) Attachments(kind types.AttachmentKind) []*attachment.Attachment {
	if kind == types.KindPDF {
		return d.Documents
	}

	return d.Images
}

// Staged 返回所有暂存附件，图片在前，各自保持列表顺序.
func (d *Draft) Staged() []*attachment.Attachment {
	var out []*attachment.Attachment

	for _, a := range slices.Concat(d.Images, d.Documents) {
		if a.IsStaged() {
			out = append(out, a)
		}
	}

	return out
}

// State 草稿状态，可并发使用.
type State struct {
	stager          *attachment.Stager
	files           FileDeleter
	confirm         Confirmer
	reporter        Reporter
	defaultCategory types.Category

	mu       sync.Mutex
	draft    Draft
	rev      uint64
	inFlight map[string]struct{}
}

// Option 配置 State.
type Option func(*State)

// WithConfirmer 设置确认方式，默认直接确认.
func WithConfirmer(c Confirmer) Option {
	return func(s *State) { s.confirm = c }
}

// WithReporter 设置错误展示.
func WithReporter(r Reporter) Option {
	return func(s *State) { s.reporter = r }
}

// WithDefaultCategory 设置新草稿的分类.
func WithDefaultCategory(c types.Category) Option {
	return func(s *State) { s.defaultCategory = c }
}

// New 创建空草稿.
func New(stager *attachment.Stager, files FileDeleter, opts ...Option) *State {
	s := &State{
		stager:   stager,
		files:    files,
		confirm:  AlwaysConfirm,
		inFlight: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.draft = Draft{Category: s.defaultCategory}

	return s
}

// StartNew 重置为空草稿，并释放旧草稿中所有暂存附件.
func (s *State) StartNew() {
	s.mu.Lock()
	old := s.draft.Staged()
	s.draft = Draft{Category: s.defaultCategory}
	s.rev++
	s.mu.Unlock()

	s.releaseAll(old)
}

// StartEdit 从记录加载草稿：字段原样复制，附件转为 Persisted.
func (s *State) StartEdit(rec *types.Record) {
	s.mu.Lock()
	old := s.draft.Staged()
	s.draft = Draft{
		Category:        rec.Category,
		Fields:          rec.Fields,
		Images:          attachment.HydrateAll(types.KindImage, rec.Images),
		Documents:       attachment.HydrateAll(types.KindPDF, rec.PDFs),
		EditingTargetID: rec.ID,
	}
	s.rev++
	s.mu.Unlock()

	s.releaseAll(old)
}

// SetField 设置单个标量字段，不做跨字段校验.
func (s *State) SetField(name types.FieldName, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.draft.Fields.Set(name, value); err != nil {
		return err
	}

	s.rev++

	return nil
}

// SetCategory 设置草稿分类.
func (s *State) SetCategory(c types.Category) error {
	if !c.Valid() {
		return fmt.Errorf("invalid category %d", c)
	}

	s.mu.Lock()
	s.draft.Category = c
	s.rev++
	s.mu.Unlock()

	return nil
}

// AddImages 暂存图片并追加到列表末尾.
func (s *State) AddImages(files ...attachment.File) {
	s.add(types.KindImage, files)
}

// AddDocuments 暂存文档并追加到列表末尾.
func (s *State) AddDocuments(files ...attachment.File) {
	s.add(types.KindPDF, files)
}

func (s *State) add(kind types.AttachmentKind, files []attachment.File) {
	staged := s.stager.Stage(kind, files...)
	if len(staged) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == types.KindPDF {
		s.draft.Documents = append(s.draft.Documents, staged...)
	} else {
		s.draft.Images = append(s.draft.Images, staged...)
	}

	s.rev++
}

// RemoveAttachment 移除指定位置的附件.
// 暂存附件直接移除并释放预览；已持久化附件在确认后请求远端删除，成功后按远端 ID 移除.
// 同一附件删除进行中时再次调用返回 errs.ErrDeleteInFlight 且不发请求.
func (s *State) RemoveAttachment(ctx context.Context, kind types.AttachmentKind, index int) error {
	s.mu.Lock()

	list := s.draft.Attachments(kind)
	if index < 0 || index >= len(list) {
		s.mu.Unlock()

		return fmt.Errorf("%s index %d out of range [0,%d)", kind, index, len(list))
	}

	a := list[index]
	if a.IsStaged() {
		s.setListLocked(kind, slices.Delete(slices.Clone(list), index, index+1))
		s.mu.Unlock()
		s.stager.Release(a)

		return nil
	}

	id := s.draft.EditingTargetID
	if id == "" {
		s.mu.Unlock()

		return errs.ErrNotEditing
	}

	key := inFlightKey(kind, a.RemoteID())
	if _, busy := s.inFlight[key]; busy {
		s.mu.Unlock()

		return errs.ErrDeleteInFlight
	}

	s.inFlight[key] = struct{}{}
	s.mu.Unlock()

	if !s.confirm.Confirm(ctx, fmt.Sprintf("Delete %s %q from the record permanently?", kind, a.OriginalName())) {
		s.finish(key)

		return errs.ErrCanceled
	}

	if err := s.files.DeleteFile(ctx, id, kind, a.RemoteID()); err != nil {
		s.finish(key)

		if s.reporter != nil {
			s.reporter.Show(err)
		}

		return err
	}

	s.mu.Lock()
	delete(s.inFlight, key)

	if s.draft.EditingTargetID == id {
		s.setListLocked(kind, slices.DeleteFunc(slices.Clone(s.draft.Attachments(kind)), func(x *attachment.Attachment) bool {
			return !x.IsStaged() && x.RemoteID() == a.RemoteID()
		}))
	}
	s.mu.Unlock()

	return nil
}

// DeleteInFlight 报告附件是否正在删除，用于禁用界面上的删除按钮与提交按钮.
func (s *State) DeleteInFlight(kind types.AttachmentKind, remoteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.inFlight[inFlightKey(kind, remoteID)]

	return ok
}

// PendingDeletes 返回进行中的删除数量.
func (s *State) PendingDeletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.inFlight)
}

// Validate 校验草稿是否满足提交条件：三个分类选择项与共享人、联系方式必须非空.
func (s *State) Validate() error {
	s.mu.Lock()
	d := s.draft
	s.mu.Unlock()

	return d.Validate()
}

// ValidateForCreate 同 Validate，只返回是否通过.
func (s *State) ValidateForCreate() bool {
	return s.Validate() == nil
}

// Validate 校验快照是否满足提交条件.
func (d *Draft) Validate() error {
	fields := map[string]string{}

	if err := rule.ValidateStruct(d.Fields); err != nil {
		fe := rule.Errors(err)
		if fe == nil {
			return fmt.Errorf("validate draft: %w", err)
		}

		for k, v := range fe {
			fields[k] = v
		}
	}

	if !d.Category.Valid() {
		fields["category"] = "is invalid"
	}

	if len(fields) > 0 {
		return &errs.ValidationError{Fields: fields}
	}

	return nil
}

// Snapshot 返回草稿的副本.
func (s *State) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.draft
	d.Images = slices.Clone(d.Images)
	d.Documents = slices.Clone(d.Documents)
	d.Revision = s.rev

	return d
}

// FinishSubmit 在 snap 提交成功、远端返回 rec 后调用.
// 草稿自快照以来没有变化时重置为新草稿并返回 true. 否则保留提交期间的修改并返回 false：
// 草稿转为编辑 rec，附件换成 rec 的已持久化附件（去掉提交期间已删除的），
// 再追加未随本次提交上传的暂存附件.
func (s *State) FinishSubmit(snap Draft, rec *types.Record, submitted []*attachment.Attachment) bool {
	s.mu.Lock()

	if s.rev == snap.Revision {
		old := s.draft.Staged()
		s.draft = Draft{Category: s.defaultCategory}
		s.rev++
		s.mu.Unlock()

		s.releaseAll(old)

		return true
	}

	sent := make(map[*attachment.Attachment]struct{}, len(submitted))
	for _, a := range submitted {
		sent[a] = struct{}{}
	}

	for _, kind := range []types.AttachmentKind{types.KindImage, types.KindPDF} {
		remote := attachment.HydrateAll(kind, rec.Files(kind))
		s.setListLocked(kind, rebaseList(snap.Attachments(kind), s.draft.Attachments(kind), remote, sent))
	}

	s.draft.EditingTargetID = rec.ID
	s.mu.Unlock()

	return false
}

// rebaseList 以 remote 为基础，去掉快照之后已删除的持久化附件，再追加仍在草稿中且未提交的暂存附件.
func rebaseList(before, current, remote []*attachment.Attachment, sent map[*attachment.Attachment]struct{}) []*attachment.Attachment {
	kept := make(map[string]struct{})

	for _, a := range current {
		if !a.IsStaged() {
			kept[a.RemoteID()] = struct{}{}
		}
	}

	removed := make(map[string]struct{})

	for _, a := range before {
		if a.IsStaged() {
			continue
		}

		if _, ok := kept[a.RemoteID()]; !ok {
			removed[a.RemoteID()] = struct{}{}
		}
	}

	out := slices.DeleteFunc(remote, func(a *attachment.Attachment) bool {
		_, gone := removed[a.RemoteID()]
		return gone
	})

	for _, a := range current {
		if _, ok := sent[a]; a.IsStaged() && !ok {
			out = append(out, a)
		}
	}

	return out
}

// Release 释放给定附件的本地预览，供提交成功后使用.
func (s *State) Release(atts ...*attachment.Attachment) {
	s.releaseAll(atts)
}

func (s *State) releaseAll(atts []*attachment.Attachment) {
	for _, a := range atts {
		s.stager.Release(a)
	}
}

func (s *State) finish(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

func (s *State) setListLocked(kind types.AttachmentKind, list []*attachment.Attachment) {
	if kind == types.KindPDF {
		s.draft.Documents = list
	} else {
		s.draft.Images = list
	}

	s.rev++
}

func inFlightKey(kind types.AttachmentKind, remoteID string) string {
	return string(kind) + "\x00" + remoteID
}
