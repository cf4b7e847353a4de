// Package listsync keeps one page of submissions in step with the service.
// Requests may resolve in any order; only the most recently issued one is
// allowed to change what is shown.
package listsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"triageterm/internal/model"
)

// ErrStale is returned when a response arrives for a request that has since
// been superseded. The response is discarded.
var ErrStale = errors.New("listsync: stale response")

const (
	DefaultPageSize = 5
	MaxPageSize     = 100
)

// Source is the read side of the submission service.
type Source interface {
	List(ctx context.Context, skip, limit int) (model.Page, error)
	Search(ctx context.Context, skip, limit int, title string) (model.Page, error)
}

// Query identifies one page request.
type Query struct {
	Page     int
	PageSize int
	Filter   string
}

func (q Query) skip() int { return (q.Page - 1) * q.PageSize }

// Ticket is handed out by Begin and redeemed by Resolve.
type Ticket struct {
	Seq   uint64
	Query Query
}

type Engine struct {
	src         Source
	log         *zap.Logger
	defaultSize int
	onReplace   func(rows []model.Submission)

	mu        sync.Mutex
	seq       uint64
	requested Query
	state     ViewState
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithDefaultPageSize sets the size used when a query carries none.
func WithDefaultPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultSize = min(n, MaxPageSize)
		}
	}
}

// WithRowObserver registers fn to run whenever rows are replaced. It runs
// with the engine lock held, so it must not call back into the engine.
func WithRowObserver(fn func(rows []model.Submission)) Option {
	return func(e *Engine) { e.onReplace = fn }
}

func New(src Source, opts ...Option) *Engine {
	e := &Engine{src: src, log: zap.NewNop(), defaultSize: DefaultPageSize}
	for _, o := range opts {
		o(e)
	}
	e.requested = Query{Page: 1, PageSize: e.defaultSize}
	e.state = ViewState{Page: 1, PageSize: e.defaultSize}
	return e
}

// Normalize applies the paging rules: page at least 1, size defaulted and
// capped, filter trimmed.
func (e *Engine) Normalize(q Query) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize < 1:
		q.PageSize = e.defaultSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	q.Filter = strings.TrimSpace(q.Filter)
	return q
}

// Begin registers q as the latest request and marks the view as loading.
func (e *Engine) Begin(q Query) Ticket {
	q = e.Normalize(q)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.requested = q
	e.state.Loading = true
	return Ticket{Seq: e.seq, Query: q}
}

// Fetch performs the network call for t. It touches no engine state and may
// run on any goroutine.
func (e *Engine) Fetch(ctx context.Context, t Ticket) (model.Page, error) {
	q := t.Query
	if q.Filter == "" {
		return e.src.List(ctx, q.skip(), q.PageSize)
	}
	return e.src.Search(ctx, q.skip(), q.PageSize, q.Filter)
}

// Resolve applies the outcome of t. Outcomes of superseded tickets return
// ErrStale and leave the state alone.
func (e *Engine) Resolve(t Ticket, page model.Page, fetchErr error) (ViewState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.Seq != e.seq {
		e.log.Debug("discarding stale page",
			zap.Uint64("seq", t.Seq),
			zap.Uint64("latest", e.seq),
			zap.Int("page", t.Query.Page))
		return e.state.clone(), ErrStale
	}
	e.state.Loading = false
	if fetchErr != nil {
		e.log.Warn("page load failed",
			zap.Int("page", t.Query.Page),
			zap.String("filter", t.Query.Filter),
			zap.Error(fetchErr))
		return e.state.clone(), fmt.Errorf("load page %d: %w", t.Query.Page, fetchErr)
	}

	rows := page.Submissions
	if len(rows) > t.Query.PageSize {
		rows = rows[:t.Query.PageSize]
	}
	e.state.Page = t.Query.Page
	e.state.PageSize = t.Query.PageSize
	e.state.Filter = t.Query.Filter
	e.state.Total = page.Total
	e.state.Rows = append([]model.Submission(nil), rows...)
	if e.onReplace != nil {
		e.onReplace(e.state.Rows)
	}
	return e.state.clone(), nil
}

// Load runs Begin, Fetch and Resolve in sequence.
func (e *Engine) Load(ctx context.Context, q Query) (ViewState, error) {
	t := e.Begin(q)
	page, err := e.Fetch(ctx, t)
	return e.Resolve(t, page, err)
}

// Reload reissues the most recently requested query.
func (e *Engine) Reload(ctx context.Context) (ViewState, error) {
	return e.Load(ctx, e.Requested())
}

func (e *Engine) State() ViewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Requested returns the latest query passed to Begin, which may differ from
// the one State reflects while a load is in flight or after a failure.
func (e *Engine) Requested() Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requested
}
