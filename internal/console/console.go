// Package console coordinates the list engine, selection, composer and the
// service into the user-level operations of the triage console.
package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"triageterm/internal/composer"
	"triageterm/internal/debounce"
	"triageterm/internal/listsync"
	"triageterm/internal/model"
	"triageterm/internal/selection"
	"triageterm/internal/store"
)

// Service is everything the console needs from the submission service.
type Service interface {
	listsync.Source
	composer.Creator
	Delete(ctx context.Context, ids []int64) (model.DeleteResult, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Journal records what the user did. *store.SQLiteStore satisfies it.
type Journal interface {
	Record(ctx context.Context, a store.Activity) error
	SetPref(ctx context.Context, key, value string) error
}

type Options struct {
	PageSize            int
	SearchDebounce      time.Duration
	StepBackOnEmptyPage bool
}

func DefaultOptions() Options {
	return Options{
		PageSize:            listsync.DefaultPageSize,
		SearchDebounce:      300 * time.Millisecond,
		StepBackOnEmptyPage: true,
	}
}

type Console struct {
	svc      Service
	engine   *listsync.Engine
	tracker  *selection.Tracker
	composer *composer.Composer
	search   *debounce.Controller
	journal  Journal
	log      *zap.Logger
	notify   func(Notice)
	commit   func(string)
	opts     Options

	mu    sync.Mutex
	stats *model.Stats
}

type Option func(*Console)

func WithLogger(l *zap.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.log = l
		}
	}
}

func WithJournal(j Journal) Option {
	return func(c *Console) { c.journal = j }
}

// WithNotifier receives every notice. Without one, notices are only logged.
func WithNotifier(fn func(Notice)) Option {
	return func(c *Console) { c.notify = fn }
}

// WithSearchCommit overrides what happens when a debounced search value is
// committed. The terminal console routes it through its event loop; the
// default runs Search directly.
func WithSearchCommit(fn func(filter string)) Option {
	return func(c *Console) { c.commit = fn }
}

func WithClock(clock debounce.Clock) Option {
	return func(c *Console) {
		c.search = debounce.New(c.fireSearch, debounce.WithClock(clock))
	}
}

func New(svc Service, opts Options, options ...Option) *Console {
	if opts.PageSize <= 0 {
		opts.PageSize = listsync.DefaultPageSize
	}
	c := &Console{
		svc:     svc,
		tracker: selection.NewTracker(),
		log:     zap.NewNop(),
		opts:    opts,
	}
	c.search = debounce.New(c.fireSearch)
	for _, o := range options {
		o(c)
	}
	c.engine = listsync.New(svc,
		listsync.WithLogger(c.log),
		listsync.WithDefaultPageSize(opts.PageSize),
		listsync.WithRowObserver(func(rows []model.Submission) {
			c.tracker.Replace(model.SubmissionIDs(rows))
		}),
	)
	c.composer = composer.New(svc, c.log)
	return c
}

func (c *Console) Engine() *listsync.Engine { return c.engine }

func (c *Console) Tracker() *selection.Tracker { return c.tracker }

func (c *Console) Composer() *composer.Composer { return c.composer }

func (c *Console) Options() Options { return c.opts }

// View is the current list state.
func (c *Console) View() listsync.ViewState { return c.engine.State() }

// LastStats is the most recent statistics snapshot, nil before the first refresh.
func (c *Console) LastStats() *model.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats == nil {
		return nil
	}
	s := *c.stats
	return &s
}

// Close stops the search debounce.
func (c *Console) Close() { c.search.Close() }

// Load shows page of the given size under the current committed filter.
func (c *Console) Load(ctx context.Context, page, size int) (listsync.ViewState, error) {
	q := c.engine.Requested()
	q.Page, q.PageSize = page, size
	return c.load(ctx, q, "load")
}

// Search commits filter and shows its first page.
func (c *Console) Search(ctx context.Context, filter string) (listsync.ViewState, error) {
	q := c.engine.Requested()
	q.Page, q.Filter = 1, filter
	return c.load(ctx, q, "search")
}

// Reload reissues the latest requested query.
func (c *Console) Reload(ctx context.Context) (listsync.ViewState, error) {
	return c.load(ctx, c.engine.Requested(), "reload")
}

// TypeSearch schedules filter to be committed once typing pauses.
func (c *Console) TypeSearch(filter string) {
	c.search.Schedule(filter, c.opts.SearchDebounce)
}

// FlushSearch commits filter right away, dropping any pending one.
func (c *Console) FlushSearch(filter string) {
	c.search.Flush(filter)
}

func (c *Console) CancelSearch() { c.search.Cancel() }

func (c *Console) fireSearch(filter string) {
	if c.commit != nil {
		c.commit(filter)
		return
	}
	_, _ = c.Search(context.Background(), filter)
}

func (c *Console) load(ctx context.Context, q listsync.Query, kind string) (listsync.ViewState, error) {
	st, err := c.engine.Load(ctx, q)
	c.afterLoad(ctx, kind, st, err)
	return st, err
}

// AfterLoad records the outcome of a load that was driven through the
// engine directly. Stale outcomes are ignored.
func (c *Console) AfterLoad(ctx context.Context, st listsync.ViewState, err error) {
	c.afterLoad(ctx, "load", st, err)
}

func (c *Console) afterLoad(ctx context.Context, kind string, st listsync.ViewState, err error) {
	if errors.Is(err, listsync.ErrStale) {
		return
	}
	if err != nil {
		c.emit(LevelError, err.Error())
		c.record(ctx, kind, err.Error(), false)
		return
	}
	c.record(ctx, kind, fmt.Sprintf("page %d size %d filter %q total %d", st.Page, st.PageSize, st.Filter, st.Total), true)
	c.savePrefs(ctx, st)
}

// RefreshStats fetches statistics and keeps the snapshot on success.
func (c *Console) RefreshStats(ctx context.Context) (model.Stats, error) {
	st, err := c.svc.Stats(ctx)
	if err != nil {
		c.log.Warn("stats refresh failed", zap.Error(err))
		c.emit(LevelError, "Could not load statistics: "+err.Error())
		return model.Stats{}, err
	}
	c.mu.Lock()
	c.stats = &st
	c.mu.Unlock()
	return st, nil
}

// DeleteOutcome is the result of a bulk delete.
type DeleteOutcome struct {
	Result   model.DeleteResult
	View     listsync.ViewState
	Reloaded bool
}

// DeleteSelected deletes the current selection. An empty selection is a no-op.
func (c *Console) DeleteSelected(ctx context.Context) (DeleteOutcome, error) {
	return c.DeleteIDs(ctx, c.tracker.Snapshot())
}

// DeleteIDs deletes ids, then reloads the latest requested query once the
// service has answered. On failure the selection is kept and nothing is
// reloaded.
func (c *Console) DeleteIDs(ctx context.Context, ids []int64) (DeleteOutcome, error) {
	if len(ids) == 0 {
		return DeleteOutcome{View: c.engine.State()}, nil
	}
	res, err := c.svc.Delete(ctx, ids)
	if err != nil {
		c.emit(LevelError, "Delete failed: "+err.Error())
		c.record(ctx, "delete", fmt.Sprintf("ids %s: %v", formatIDs(ids), err), false)
		return DeleteOutcome{View: c.engine.State()}, err
	}

	c.tracker.Clear()
	c.emit(LevelSuccess, "Deleted "+plural(res.DeletedCount, "submission", "submissions"))
	if res.Partial() {
		c.emit(LevelWarning, fmt.Sprintf("%s already gone: %s",
			plural(len(res.NotFoundIDs), "submission was", "submissions were"), formatIDs(res.NotFoundIDs)))
	}
	c.record(ctx, "delete", fmt.Sprintf("deleted %d, not found %d", res.DeletedCount, len(res.NotFoundIDs)), true)

	out := DeleteOutcome{Result: res, Reloaded: true}
	var g errgroup.Group
	g.Go(func() error {
		out.View, _ = c.reloadAfterDelete(ctx)
		return nil
	})
	g.Go(func() error {
		_, _ = c.RefreshStats(ctx)
		return nil
	})
	_ = g.Wait()
	return out, nil
}

func (c *Console) reloadAfterDelete(ctx context.Context) (listsync.ViewState, error) {
	st, err := c.Reload(ctx)
	if err != nil {
		return c.engine.State(), err
	}
	if c.opts.StepBackOnEmptyPage && len(st.Rows) == 0 && st.Page > 1 && st.Total > 0 {
		last := listsync.LastPage(st.Total, st.PageSize)
		c.log.Debug("page emptied by delete, stepping back", zap.Int("from", st.Page), zap.Int("to", last))
		return c.Load(ctx, last, st.PageSize)
	}
	return st, nil
}

// CreateOutcome is the result of a successful creation.
type CreateOutcome struct {
	Submission model.Submission
	View       listsync.ViewState
	Stats      *model.Stats
}

// Submit sends whatever the composer currently holds.
func (c *Console) Submit(ctx context.Context) (CreateOutcome, error) {
	sub, err := c.composer.Submit(ctx)
	return c.afterCreate(ctx, sub, err)
}

func (c *Console) SubmitText(ctx context.Context, title, body string) (CreateOutcome, error) {
	sub, err := c.composer.SubmitText(ctx, title, body)
	return c.afterCreate(ctx, sub, err)
}

func (c *Console) SubmitFile(ctx context.Context, title string, file model.Upload) (CreateOutcome, error) {
	sub, err := c.composer.SubmitFile(ctx, title, file)
	return c.afterCreate(ctx, sub, err)
}

// afterCreate refreshes the list and the statistics concurrently, both
// strictly after the service has confirmed the creation.
func (c *Console) afterCreate(ctx context.Context, sub model.Submission, err error) (CreateOutcome, error) {
	if err != nil {
		var ve *composer.ValidationError
		if !errors.As(err, &ve) {
			c.emit(LevelError, "Submission failed: "+err.Error())
			c.record(ctx, "create", err.Error(), false)
		}
		return CreateOutcome{}, err
	}
	c.emit(LevelSuccess, fmt.Sprintf("Submission #%d created (%s)", sub.ID, sub.ClassificationLabel()))
	c.record(ctx, "create", fmt.Sprintf("#%d %q", sub.ID, sub.Title), true)

	out := CreateOutcome{Submission: sub}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := c.Reload(gctx)
		if errors.Is(err, listsync.ErrStale) {
			st = c.engine.State()
		}
		out.View = st
		return nil
	})
	g.Go(func() error {
		if st, err := c.RefreshStats(gctx); err == nil {
			out.Stats = &st
		}
		return nil
	})
	_ = g.Wait()
	return out, nil
}

func (c *Console) emit(level Level, text string) {
	c.log.Info("notice", zap.Stringer("level", level), zap.String("text", text))
	if c.notify != nil {
		c.notify(Notice{Level: level, Text: text})
	}
}

func (c *Console) record(ctx context.Context, kind, detail string, ok bool) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, store.Activity{Kind: kind, Detail: detail, OK: ok}); err != nil {
		c.log.Warn("journal write failed", zap.String("kind", kind), zap.Error(err))
	}
}

func (c *Console) savePrefs(ctx context.Context, st listsync.ViewState) {
	if c.journal == nil {
		return
	}
	if err := c.journal.SetPref(ctx, store.PrefPageSize, strconv.Itoa(st.PageSize)); err != nil {
		c.log.Warn("save page size failed", zap.Error(err))
	}
	if err := c.journal.SetPref(ctx, store.PrefFilter, st.Filter); err != nil {
		c.log.Warn("save filter failed", zap.Error(err))
	}
}
