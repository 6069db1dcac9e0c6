package listing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/client/errs"
	"github.com/yeisme/propvault/pkg/client/form"
	"github.com/yeisme/propvault/pkg/client/gateway"
	"github.com/yeisme/propvault/pkg/client/listing"
	"github.com/yeisme/propvault/pkg/internal/types"
)

type reply struct {
	page *gateway.Page
	err  error
}

// fakeRemote 记录所有请求. hold 为 true 时 List 阻塞直到测试给出应答.
type fakeRemote struct {
	mu       sync.Mutex
	queries  []gateway.Query
	pending  []chan reply
	hold     bool
	listErr  error
	records  []types.Record
	deletes  []string
	onboard  map[string]bool
	recycled map[string]bool
	flagErr  error
}

func newFakeRemote(records ...types.Record) *fakeRemote {
	return &fakeRemote{records: records, onboard: map[string]bool{}, recycled: map[string]bool{}}
}

func (f *fakeRemote) List(_ context.Context, q gateway.Query) (*gateway.Page, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)

	if f.hold {
		ch := make(chan reply, 1)
		f.pending = append(f.pending, ch)
		f.mu.Unlock()

		r := <-ch

		return r.page, r.err
	}

	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	var items []types.Record

	for _, r := range f.records {
		if r.RecycleBin == q.RecycleBin {
			items = append(items, r)
		}
	}

	return &gateway.Page{Items: items, Page: q.Page, TotalPages: 3, TotalItems: int64(len(items))}, nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.flagErr != nil {
		return f.flagErr
	}

	f.deletes = append(f.deletes, id)
	f.records = without(f.records, id)

	return nil
}

func (f *fakeRemote) SetOnBoard(_ context.Context, id string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.flagErr != nil {
		return f.flagErr
	}

	f.onboard[id] = on

	return nil
}

func (f *fakeRemote) SetRecycleBin(_ context.Context, id string, recycled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.flagErr != nil {
		return f.flagErr
	}

	f.recycled[id] = recycled

	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].RecycleBin = recycled
		}
	}

	return nil
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.queries)
}

func (f *fakeRemote) query(i int) gateway.Query {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.queries[i]
}

func (f *fakeRemote) answer(i int, r reply) {
	f.mu.Lock()
	ch := f.pending[i]
	f.mu.Unlock()

	ch <- r
}

func without(in []types.Record, id string) []types.Record {
	var out []types.Record

	for _, r := range in {
		if r.ID != id {
			out = append(out, r)
		}
	}

	return out
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Show(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.errs)
}

func rdQuery() gateway.Query {
	return gateway.Query{Page: 1, Limit: 10, Category: types.CategoryRD}
}

func TestStatusTransitions(t *testing.T) {
	remote := newFakeRemote(types.Record{ID: "1"})
	c := listing.New(remote, rdQuery())
	defer c.Close()

	var (
		mu       sync.Mutex
		statuses []listing.Status
	)

	c.Subscribe(func(v listing.View) {
		mu.Lock()
		statuses = append(statuses, v.Status)
		mu.Unlock()
	})

	assert.Equal(t, listing.Idle, c.View().Status)

	_, err := c.Fetch(context.Background(), rdQuery())
	require.NoError(t, err)

	assert.Equal(t, []listing.Status{listing.Loading, listing.Loaded}, statuses)
	assert.Len(t, c.View().Page.Items, 1)
	assert.Equal(t, "loaded", listing.Loaded.String())
}

func TestFailureKeepsLastGoodPage(t *testing.T) {
	remote := newFakeRemote(types.Record{ID: "1"}, types.Record{ID: "2"})
	reporter := &recordingReporter{}
	c := listing.New(remote, rdQuery(), listing.WithReporter(reporter))
	defer c.Close()

	_, err := c.Fetch(context.Background(), rdQuery())
	require.NoError(t, err)

	remote.listErr = &errs.RemoteError{Op: "list", Status: 500, Message: "database unavailable"}

	_, err = c.Fetch(context.Background(), rdQuery())
	require.Error(t, err)

	v := c.View()
	assert.Equal(t, listing.Failed, v.Status)
	assert.Len(t, v.Page.Items, 2)
	assert.Equal(t, "database unavailable", errs.UserMessage(v.Err))
	assert.Equal(t, 1, reporter.count())
}

// TestNewerFetchWins page=2 的应答晚于 page=1 返回时不得覆盖 page=1 的结果.
func TestNewerFetchWins(t *testing.T) {
	remote := newFakeRemote()
	remote.hold = true
	c := listing.New(remote, rdQuery())
	defer c.Close()

	ctx := context.Background()
	first := make(chan error, 1)
	second := make(chan error, 1)

	go func() {
		_, err := c.Fetch(ctx, gateway.Query{Page: 2, Category: types.CategoryRD})
		first <- err
	}()

	require.Eventually(t, func() bool { return remote.calls() == 1 }, time.Second, time.Millisecond)

	go func() {
		_, err := c.Fetch(ctx, gateway.Query{Page: 1, Search: "x", Category: types.CategoryRD})
		second <- err
	}()

	require.Eventually(t, func() bool { return remote.calls() == 2 }, time.Second, time.Millisecond)

	page1 := &gateway.Page{Items: []types.Record{{ID: "x-match"}}, Page: 1, TotalPages: 1, TotalItems: 1}
	page2 := &gateway.Page{Items: []types.Record{{ID: "stale"}}, Page: 2, TotalPages: 3, TotalItems: 30}

	remote.answer(1, reply{page: page1})
	require.NoError(t, <-second)

	remote.answer(0, reply{page: page2})
	assert.ErrorIs(t, <-first, errs.ErrSuperseded)

	v := c.View()
	assert.Equal(t, listing.Loaded, v.Status)
	assert.Equal(t, 1, v.Page.Page)
	require.Len(t, v.Page.Items, 1)
	assert.Equal(t, "x-match", v.Page.Items[0].ID)
	assert.Equal(t, "x", v.Query.Search)
}

// TestSearchDebounce 窗口内先输入 "a" 再输入 "ab"，只会发出 "ab" 的查询.
func TestSearchDebounce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	remote := newFakeRemote()
	c := listing.New(remote, gateway.Query{Page: 3, Category: types.CategoryRD},
		listing.WithClock(clock), listing.WithDebounce(500*time.Millisecond))
	defer c.Close()

	c.SetSearch("a")
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(200 * time.Millisecond)

	c.SetSearch("ab")
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(499 * time.Millisecond)
	assert.Zero(t, remote.calls())

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return c.View().Status == listing.Loaded }, time.Second, time.Millisecond)

	clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)

	require.Equal(t, 1, remote.calls())
	q := remote.query(0)
	assert.Equal(t, "ab", q.Search)
	assert.Equal(t, 1, q.Page)
}

// TestStaleSearchResponseDropped "a" 的应答晚于 "ab" 返回时，页面保持 "ab" 的结果.
func TestStaleSearchResponseDropped(t *testing.T) {
	remote := newFakeRemote()
	remote.hold = true
	c := listing.New(remote, rdQuery())
	defer c.Close()

	ctx := context.Background()
	done := make(chan error, 2)

	go func() {
		_, err := c.Fetch(ctx, gateway.Query{Page: 1, Search: "a"})
		done <- err
	}()

	require.Eventually(t, func() bool { return remote.calls() == 1 }, time.Second, time.Millisecond)

	go func() {
		_, err := c.Fetch(ctx, gateway.Query{Page: 1, Search: "ab"})
		done <- err
	}()

	require.Eventually(t, func() bool { return remote.calls() == 2 }, time.Second, time.Millisecond)

	remote.answer(1, reply{page: &gateway.Page{Items: []types.Record{{ID: "ab"}}, Page: 1, TotalPages: 1}})
	remote.answer(0, reply{page: &gateway.Page{Items: []types.Record{{ID: "a"}}, Page: 1, TotalPages: 1}})

	<-done
	<-done

	v := c.View()
	require.Len(t, v.Page.Items, 1)
	assert.Equal(t, "ab", v.Page.Items[0].ID)
}

func TestChangePageBounds(t *testing.T) {
	remote := newFakeRemote(types.Record{ID: "1"})
	c := listing.New(remote, rdQuery())
	defer c.Close()

	ctx := context.Background()

	moved, err := c.ChangePage(ctx, 1)
	require.NoError(t, err)
	assert.False(t, moved, "no page loaded yet")

	_, err = c.Fetch(ctx, rdQuery())
	require.NoError(t, err)

	moved, err = c.ChangePage(ctx, -1)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = c.ChangePage(ctx, 2)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 3, c.Query().Page)

	moved, err = c.ChangePage(ctx, 1)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, 2, remote.calls())
}

// TestChangePageUsesLoadedPage 新分类加载完成前翻页不使用旧页面的总页数.
func TestChangePageUsesLoadedPage(t *testing.T) {
	remote := newFakeRemote()
	remote.hold = true
	c := listing.New(remote, rdQuery())
	defer c.Close()

	ctx := context.Background()

	loaded := make(chan error, 1)

	go func() {
		_, err := c.Fetch(ctx, rdQuery())
		loaded <- err
	}()

	require.Eventually(t, func() bool { return remote.calls() == 1 }, time.Second, time.Millisecond)
	remote.answer(0, reply{page: &gateway.Page{Page: 1, TotalPages: 3, TotalItems: 30}})
	require.NoError(t, <-loaded)

	switched := make(chan error, 1)

	go func() { switched <- c.SetCategory(ctx, types.CategoryShared) }()

	require.Eventually(t, func() bool { return remote.calls() == 2 }, time.Second, time.Millisecond)

	moved, err := c.ChangePage(ctx, 1)
	require.NoError(t, err)
	assert.False(t, moved, "new category still loading")
	assert.Equal(t, 2, remote.calls())

	remote.answer(1, reply{page: &gateway.Page{Page: 1, TotalPages: 1, TotalItems: 4}})
	require.NoError(t, <-switched)

	moved, err = c.ChangePage(ctx, 1)
	require.NoError(t, err)
	assert.False(t, moved, "shared has a single page")
	assert.Equal(t, 2, remote.calls())
}

func TestSetCategoryResetsPage(t *testing.T) {
	remote := newFakeRemote()
	c := listing.New(remote, gateway.Query{Page: 2, Category: types.CategoryRD})
	defer c.Close()

	require.NoError(t, c.SetCategory(context.Background(), types.CategoryShared))
	assert.Equal(t, gateway.Query{Page: 1, Category: types.CategoryShared}, remote.query(0))

	err := c.SetCategory(context.Background(), types.Category(99))
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, 1, remote.calls())

	require.NoError(t, c.SetRecycleView(context.Background(), true))
	assert.True(t, remote.query(1).RecycleBin)
}

func TestMoveToRecycleBinRemovesOptimistically(t *testing.T) {
	remote := newFakeRemote(types.Record{ID: "1"}, types.Record{ID: "2"})
	c := listing.New(remote, rdQuery())
	defer c.Close()

	ctx := context.Background()
	_, err := c.Fetch(ctx, rdQuery())
	require.NoError(t, err)

	before := c.View().Page.Items

	var views []listing.View

	c.Subscribe(func(v listing.View) { views = append(views, v) })

	require.NoError(t, c.MoveToRecycleBin(ctx, "1"))

	require.NotEmpty(t, views)
	assert.Equal(t, listing.Loaded, views[0].Status)
	require.Len(t, views[0].Page.Items, 1)
	assert.Equal(t, "2", views[0].Page.Items[0].ID)
	assert.Len(t, before, 2, "previous page slice is not mutated")

	assert.True(t, remote.recycled["1"])
	assert.Equal(t, 2, remote.calls())
	assert.Len(t, c.View().Page.Items, 1)
}

func TestDestructiveOperationsConfirm(t *testing.T) {
	remote := newFakeRemote(types.Record{ID: "1", RecycleBin: true})
	deny := form.ConfirmFunc(func(context.Context, string) bool { return false })
	c := listing.New(remote, gateway.Query{Page: 1, RecycleBin: true}, listing.WithConfirmer(deny))
	defer c.Close()

	ctx := context.Background()
	_, err := c.Fetch(ctx, c.Query())
	require.NoError(t, err)

	assert.ErrorIs(t, c.MoveToRecycleBin(ctx, "1"), errs.ErrCanceled)
	assert.ErrorIs(t, c.PermanentDelete(ctx, "1"), errs.ErrCanceled)
	assert.Empty(t, remote.deletes)
	assert.Empty(t, remote.recycled)
}

func TestPermanentDeleteRequiresRecycleBin(t *testing.T) {
	remote := newFakeRemote(types.Record{ID: "live"}, types.Record{ID: "gone", RecycleBin: true})
	c := listing.New(remote, rdQuery())
	defer c.Close()

	ctx := context.Background()
	_, err := c.Fetch(ctx, rdQuery())
	require.NoError(t, err)

	assert.ErrorIs(t, c.PermanentDelete(ctx, "live"), errs.ErrNotRecycled)
	assert.Empty(t, remote.deletes)

	require.NoError(t, c.SetRecycleView(ctx, true))
	require.NoError(t, c.PermanentDelete(ctx, "gone"))
	assert.Equal(t, []string{"gone"}, remote.deletes)
	assert.Empty(t, c.View().Page.Items)
}

func TestRestoreAndOnBoard(t *testing.T) {
	remote := newFakeRemote(types.Record{ID: "1", RecycleBin: true}, types.Record{ID: "2"})
	c := listing.New(remote, gateway.Query{Page: 1, RecycleBin: true})
	defer c.Close()

	ctx := context.Background()
	_, err := c.Fetch(ctx, c.Query())
	require.NoError(t, err)

	require.NoError(t, c.Restore(ctx, "1"))
	assert.False(t, remote.recycled["1"])
	assert.Empty(t, c.View().Page.Items)

	require.NoError(t, c.SetOnBoard(ctx, "2", true))
	assert.True(t, remote.onboard["2"])
	assert.Equal(t, 3, remote.calls())
}

func TestFlagFailureReported(t *testing.T) {
	remote := newFakeRemote(types.Record{ID: "1"})
	reporter := &recordingReporter{}
	c := listing.New(remote, rdQuery(), listing.WithReporter(reporter))
	defer c.Close()

	remote.flagErr = &errs.NetworkError{Op: "onboard", Err: errors.New("connection refused")}

	err := c.SetOnBoard(context.Background(), "1", true)
	require.Error(t, err)
	assert.Equal(t, 1, reporter.count())
	assert.Zero(t, remote.calls())
}
