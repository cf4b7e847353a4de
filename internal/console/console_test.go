package console

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triageterm/internal/api"
	"triageterm/internal/composer"
	"triageterm/internal/debounce"
	"triageterm/internal/model"
	"triageterm/internal/store"
	"triageterm/internal/stub"
)

// fakeService keeps submissions in memory and logs every call in order.
type fakeService struct {
	mu        sync.Mutex
	subs      []model.Submission // newest first
	events    []string
	deleteErr error
	createErr error
	statsErr  error
	gone      map[int64]bool // ids reported as not found
}

func newFakeService(n int) *fakeService {
	f := &fakeService{gone: map[int64]bool{}}
	for i := n; i >= 1; i-- {
		f.subs = append(f.subs, model.Submission{ID: int64(i), Title: fmt.Sprintf("sub %d", i)})
	}
	return f
}

func (f *fakeService) log(e string) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *fakeService) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeService) count(prefix string) int {
	n := 0
	for _, e := range f.Events() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeService) window(skip, limit int) model.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := model.Page{Total: len(f.subs)}
	for i := skip; i < skip+limit && i < len(f.subs); i++ {
		out.Submissions = append(out.Submissions, f.subs[i])
	}
	return out
}

func (f *fakeService) List(_ context.Context, skip, limit int) (model.Page, error) {
	f.log(fmt.Sprintf("list %d %d", skip, limit))
	return f.window(skip, limit), nil
}

func (f *fakeService) Search(_ context.Context, skip, limit int, title string) (model.Page, error) {
	f.log(fmt.Sprintf("search %d %d %s", skip, limit, title))
	return f.window(skip, limit), nil
}

func (f *fakeService) Delete(_ context.Context, ids []int64) (model.DeleteResult, error) {
	f.log("delete start")
	defer f.log("delete end")
	if f.deleteErr != nil {
		return model.DeleteResult{}, f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	res := model.DeleteResult{DeletedIDs: []int64{}}
	want := map[int64]bool{}
	for _, id := range ids {
		if f.gone[id] {
			res.NotFoundIDs = append(res.NotFoundIDs, id)
			continue
		}
		want[id] = true
	}
	kept := f.subs[:0]
	for _, s := range f.subs {
		if want[s.ID] {
			res.DeletedIDs = append(res.DeletedIDs, s.ID)
			continue
		}
		kept = append(kept, s)
	}
	f.subs = kept
	res.DeletedCount = len(res.DeletedIDs)
	return res, nil
}

func (f *fakeService) CreateText(_ context.Context, title, content string) (model.Submission, error) {
	f.log("create")
	if f.createErr != nil {
		return model.Submission{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := model.Submission{ID: int64(len(f.subs) + 100), Title: title, Body: content}
	f.subs = append([]model.Submission{s}, f.subs...)
	return s, nil
}

func (f *fakeService) CreateFile(ctx context.Context, title string, file model.Upload) (model.Submission, error) {
	return f.CreateText(ctx, title, file.Name)
}

func (f *fakeService) Stats(context.Context) (model.Stats, error) {
	f.log("stats")
	if f.statsErr != nil {
		return model.Stats{}, f.statsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.Stats{Total: len(f.subs)}, nil
}

type noticeLog struct {
	mu  sync.Mutex
	all []Notice
}

func (n *noticeLog) add(x Notice) {
	n.mu.Lock()
	n.all = append(n.all, x)
	n.mu.Unlock()
}

func (n *noticeLog) byLevel(l Level) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notice
	for _, x := range n.all {
		if x.Level == l {
			out = append(out, x)
		}
	}
	return out
}

type memJournal struct {
	mu      sync.Mutex
	entries []store.Activity
	prefs   map[string]string
}

func (j *memJournal) Record(_ context.Context, a store.Activity) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, a)
	return nil
}

func (j *memJournal) SetPref(_ context.Context, k, v string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.prefs == nil {
		j.prefs = map[string]string{}
	}
	j.prefs[k] = v
	return nil
}

func newConsole(t *testing.T, svc Service, opts ...Option) (*Console, *noticeLog) {
	t.Helper()
	notes := &noticeLog{}
	c := New(svc, DefaultOptions(), append([]Option{WithNotifier(notes.add)}, opts...)...)
	t.Cleanup(c.Close)
	return c, notes
}

func TestPartialDeleteNoticesAndSingleReload(t *testing.T) {
	svc := newFakeService(12)
	svc.gone[9] = true
	c, notes := newConsole(t, svc)
	ctx := context.Background()

	_, err := c.Load(ctx, 1, 5)
	require.NoError(t, err)
	c.Tracker().Toggle(12)
	c.Tracker().Toggle(9)
	listsBefore := svc.count("list")

	out, err := c.DeleteSelected(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Result.DeletedCount)
	assert.Equal(t, []int64{9}, out.Result.NotFoundIDs)

	assert.Len(t, notes.byLevel(LevelSuccess), 1)
	assert.Equal(t, "Deleted 1 submission", notes.byLevel(LevelSuccess)[0].Text)
	require.Len(t, notes.byLevel(LevelWarning), 1)
	assert.Contains(t, notes.byLevel(LevelWarning)[0].Text, "#9")
	assert.Equal(t, 1, svc.count("list")-listsBefore)
	assert.Zero(t, c.Tracker().Len())
	assert.Equal(t, 11, out.View.Total)
}

func TestReloadStartsAfterDeleteResponse(t *testing.T) {
	svc := newFakeService(6)
	c, _ := newConsole(t, svc)
	ctx := context.Background()
	_, err := c.Load(ctx, 1, 5)
	require.NoError(t, err)
	c.Tracker().Toggle(6)

	_, err = c.DeleteSelected(ctx)
	require.NoError(t, err)

	ev := svc.Events()
	end := indexOf(ev, "delete end")
	require.GreaterOrEqual(t, end, 0)
	reload := -1
	for i := end + 1; i < len(ev); i++ {
		if ev[i] == "list 0 5" {
			reload = i
		}
	}
	assert.Greater(t, reload, end)
	assert.Less(t, indexOf(ev, "delete start"), end)
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

func TestDeleteFailureKeepsSelectionAndSkipsReload(t *testing.T) {
	svc := newFakeService(6)
	svc.deleteErr = &api.Error{Op: "delete", Status: 500}
	c, notes := newConsole(t, svc)
	ctx := context.Background()
	_, err := c.Load(ctx, 1, 5)
	require.NoError(t, err)
	c.Tracker().Toggle(5)
	lists := svc.count("list")

	_, err = c.DeleteSelected(ctx)
	require.Error(t, err)
	assert.Equal(t, []int64{5}, c.Tracker().Snapshot())
	assert.Equal(t, lists, svc.count("list"))
	require.Len(t, notes.byLevel(LevelError), 1)
	assert.Contains(t, notes.byLevel(LevelError)[0].Text, "HTTP error: 500")
}

func TestDeleteWithEmptySelectionIsNoop(t *testing.T) {
	svc := newFakeService(3)
	c, notes := newConsole(t, svc)
	_, err := c.DeleteSelected(context.Background())
	require.NoError(t, err)
	assert.Empty(t, svc.Events())
	assert.Empty(t, notes.all)
}

func TestDeleteStepsBackFromEmptiedPage(t *testing.T) {
	svc := newFakeService(11)
	c, _ := newConsole(t, svc)
	ctx := context.Background()

	st, err := c.Load(ctx, 3, 5)
	require.NoError(t, err)
	require.Len(t, st.Rows, 1)
	c.Tracker().SetAll(model.SubmissionIDs(st.Rows))

	out, err := c.DeleteSelected(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, out.View.Page)
	assert.Len(t, out.View.Rows, 5)
	assert.Equal(t, 10, out.View.Total)
}

func TestDeleteStepBackDisabled(t *testing.T) {
	svc := newFakeService(11)
	opts := DefaultOptions()
	opts.StepBackOnEmptyPage = false
	c := New(svc, opts)
	t.Cleanup(c.Close)
	ctx := context.Background()

	st, err := c.Load(ctx, 3, 5)
	require.NoError(t, err)
	c.Tracker().SetAll(model.SubmissionIDs(st.Rows))
	out, err := c.DeleteSelected(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, out.View.Page)
	assert.Empty(t, out.View.Rows)
}

func TestCreateReloadsAndRefreshesStatsAfterResponse(t *testing.T) {
	svc := newFakeService(2)
	c, notes := newConsole(t, svc)
	ctx := context.Background()
	_, err := c.Load(ctx, 1, 5)
	require.NoError(t, err)

	out, err := c.SubmitText(ctx, "Invoice Q1", "Please send the invoice status.")
	require.NoError(t, err)
	assert.Equal(t, "Invoice Q1", out.View.Rows[0].Title)
	require.NotNil(t, out.Stats)
	assert.Equal(t, 3, out.Stats.Total)
	assert.Equal(t, 3, c.LastStats().Total)

	ev := svc.Events()
	create := indexOf(ev, "create")
	require.GreaterOrEqual(t, create, 0)
	assert.Greater(t, lastIndexOf(ev, "list 0 5"), create)
	assert.Greater(t, indexOf(ev, "stats"), create)
	assert.Len(t, notes.byLevel(LevelSuccess), 1)
}

func lastIndexOf(xs []string, x string) int {
	for i := len(xs) - 1; i >= 0; i-- {
		if xs[i] == x {
			return i
		}
	}
	return -1
}

func TestCreateValidationErrorSendsNothing(t *testing.T) {
	svc := newFakeService(0)
	c, notes := newConsole(t, svc)

	_, err := c.SubmitText(context.Background(), "x", "tiny")
	var ve *composer.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, svc.Events())
	assert.Empty(t, notes.all)
}

func TestCreateServiceErrorKeepsFields(t *testing.T) {
	svc := newFakeService(0)
	svc.createErr = &api.Error{Op: "create-text", Status: 422, Detail: "text too short: minimum is 10 characters"}
	c, notes := newConsole(t, svc)
	c.Composer().SetTitle("Valid title")
	c.Composer().SetBody("valid body text")

	_, err := c.Submit(context.Background())
	var se *composer.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Valid title", c.Composer().Title())
	assert.Equal(t, 0, svc.count("list"))
	require.Len(t, notes.byLevel(LevelError), 1)
	assert.Contains(t, notes.byLevel(LevelError)[0].Text, "text too short")
}

func TestDebouncedSearchCommitsLastValue(t *testing.T) {
	svc := newFakeService(20)
	clock := debounce.NewManualClock()
	c, _ := newConsole(t, svc, WithClock(clock))
	ctx := context.Background()
	_, err := c.Load(ctx, 3, 5)
	require.NoError(t, err)

	c.TypeSearch("a")
	clock.Advance(100 * time.Millisecond)
	c.TypeSearch("ab")
	clock.Advance(100 * time.Millisecond)
	c.TypeSearch("abc")
	assert.Zero(t, svc.count("search"))

	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 1, svc.count("search"))
	assert.Equal(t, []string{"list 10 5", "search 0 5 abc"}, svc.Events())
	assert.Equal(t, 1, c.View().Page)
	assert.Equal(t, "abc", c.View().Filter)
}

func TestFlushSearchAndClear(t *testing.T) {
	svc := newFakeService(8)
	c, _ := newConsole(t, svc, WithClock(debounce.NewManualClock()))

	c.TypeSearch("inv")
	c.FlushSearch("invoice")
	c.FlushSearch("")
	assert.Equal(t, []string{"search 0 5 invoice", "list 0 5"}, svc.Events())
	assert.Empty(t, c.View().Filter)
}

func TestSearchCommitHook(t *testing.T) {
	svc := newFakeService(1)
	var got []string
	c, _ := newConsole(t, svc,
		WithClock(debounce.NewManualClock()),
		WithSearchCommit(func(v string) { got = append(got, v) }))
	c.FlushSearch("x")
	assert.Equal(t, []string{"x"}, got)
	assert.Empty(t, svc.Events())
}

func TestJournalAndPrefs(t *testing.T) {
	svc := newFakeService(3)
	j := &memJournal{}
	c, _ := newConsole(t, svc, WithJournal(j))
	ctx := context.Background()

	_, err := c.Load(ctx, 1, 10)
	require.NoError(t, err)
	_, err = c.Search(ctx, "sub")
	require.NoError(t, err)

	require.Len(t, j.entries, 2)
	assert.Equal(t, "load", j.entries[0].Kind)
	assert.Equal(t, "search", j.entries[1].Kind)
	assert.Equal(t, "10", j.prefs[store.PrefPageSize])
	assert.Equal(t, "sub", j.prefs[store.PrefFilter])
}

func TestStatsFailureKeepsPreviousSnapshot(t *testing.T) {
	svc := newFakeService(2)
	c, notes := newConsole(t, svc)
	ctx := context.Background()
	_, err := c.RefreshStats(ctx)
	require.NoError(t, err)

	svc.statsErr = errors.New("connection refused")
	_, err = c.RefreshStats(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, c.LastStats().Total)
	assert.Len(t, notes.byLevel(LevelError), 1)
}

func TestEndToEndAgainstStub(t *testing.T) {
	srv := stub.New()
	for i := 0; i < 6; i++ {
		srv.Seed(fmt.Sprintf("Hello %d", i), "thank you for everything", model.SourcePlainText)
	}
	ts := httptest.NewServer(srv.Handler("/api/v1"))
	defer ts.Close()

	c, notes := newConsole(t, api.NewClient(ts.URL+"/api/v1"))
	ctx := context.Background()

	st, err := c.Load(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 6, st.Total)
	assert.Len(t, st.Rows, 5)

	out, err := c.SubmitText(ctx, "Invoice Q1", "Please send the invoice status.")
	require.NoError(t, err)
	require.NotEmpty(t, out.View.Rows)
	assert.Equal(t, "Invoice Q1", out.View.Rows[0].Title)
	assert.Equal(t, 7, out.View.Total)
	require.NotNil(t, out.Stats)
	assert.Equal(t, 1, out.Stats.ByClassification[model.Productive])

	st, err = c.Search(ctx, "invoice")
	require.NoError(t, err)
	require.Len(t, st.Rows, 1)
	c.Tracker().Toggle(st.Rows[0].ID)

	del, err := c.DeleteSelected(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, del.Result.DeletedCount)
	assert.Zero(t, del.View.Total)
	assert.Equal(t, 6, srv.Len())
	assert.Empty(t, notes.byLevel(LevelError))
}
