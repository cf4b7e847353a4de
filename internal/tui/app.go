package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"triageterm/internal/composer"
	"triageterm/internal/console"
	"triageterm/internal/listsync"
	"triageterm/internal/model"
)

type viewState int

const (
	viewList          viewState = iota // submissions table
	viewConfirmDelete                  // waiting for y/n
	viewCompose                        // new submission form
	viewDetails                        // one submission with its suggested reply
)

const statusTTL = 4 * time.Second

// Deps is what the console needs from the outside world.
type Deps struct {
	Service console.Service
	Options console.Options
	Journal console.Journal
	Log     *zap.Logger
	// Filter is the search committed in the previous session, if any.
	Filter string
	// Extra options for the underlying console, mainly for tests.
	Console []console.Option
}

type AppModel struct {
	ctx     context.Context
	console *console.Console
	log     *zap.Logger
	Err     error

	view      viewState
	state     listsync.ViewState
	stats     *model.Stats
	detail    *model.Submission
	searching bool
	filter    string

	status    []console.Notice
	statusSeq int
	notices   *noticeQueue

	submitting bool
	deleting   bool

	// Sub-models
	table       table.Model
	searchInput textinput.Model
	form        composeForm
	viewport    viewport.Model
	spinner     spinner.Model
	help        help.Model

	width, height int

	// Program reference for sending messages from goroutines
	program *tea.Program
}

// SetProgram stores a reference to the tea.Program so the search debounce
// can deliver committed values to the Update loop.
func (m *AppModel) SetProgram(p *tea.Program) {
	m.program = p
}

// noticeQueue collects console notices until the next Update drains them.
// Notices are raised from command goroutines, so it is locked.
type noticeQueue struct {
	mu    sync.Mutex
	items []console.Notice
}

func (q *noticeQueue) push(n console.Notice) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
}

func (q *noticeQueue) drain() []console.Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func NewAppModel(d Deps) *AppModel {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := &AppModel{
		ctx:     context.Background(),
		log:     log,
		notices: &noticeQueue{},
		filter:  strings.TrimSpace(d.Filter),
		form:    newComposeForm(),
		help:    help.New(),
	}

	opts := []console.Option{
		console.WithLogger(log),
		console.WithNotifier(m.notices.push),
		console.WithSearchCommit(m.commitSearch),
	}
	if d.Journal != nil {
		opts = append(opts, console.WithJournal(d.Journal))
	}
	m.console = console.New(d.Service, d.Options, append(opts, d.Console...)...)
	m.state = m.console.View()

	m.table = table.New(
		table.WithColumns(tableColumns(80)),
		table.WithFocused(true),
		table.WithHeight(m.state.PageSize+1),
		table.WithKeyMap(tableKeyMap()),
	)

	si := textinput.New()
	si.Prompt = "/ "
	si.Placeholder = "search by title"
	si.CharLimit = 255
	m.searchInput = si

	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	m.viewport = viewport.New(0, 0)
	return m
}

// Console exposes the coordinator, mainly for tests.
func (m *AppModel) Console() *console.Console { return m.console }

// Close stops background timers.
func (m *AppModel) Close() { m.console.Close() }

func (m *AppModel) Init() tea.Cmd {
	q := m.console.Engine().Requested()
	q.Filter = m.filter
	m.searchInput.SetValue(m.filter)
	return tea.Batch(m.loadCmd(q), m.statsCmd(), m.spinner.Tick)
}

// commitSearch runs on the debounce timer goroutine.
func (m *AppModel) commitSearch(filter string) {
	if m.program != nil {
		m.program.Send(searchCommitMsg(filter))
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	if n := m.notices.drain(); len(n) > 0 {
		return next, tea.Batch(cmd, m.setStatus(n...))
	}
	return next, cmd
}

func (m *AppModel) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case pageLoadedMsg:
		if errors.Is(msg.err, listsync.ErrStale) {
			m.log.Debug("dropping superseded page", zap.Uint64("seq", msg.seq))
			return m, nil
		}
		m.applyState(msg.state)
		return m, nil

	case searchCommitMsg:
		return m, m.searchCmd(string(msg))

	case statsLoadedMsg:
		if msg.err == nil {
			st := msg.stats
			m.stats = &st
		}
		return m, nil

	case deleteDoneMsg:
		m.deleting = false
		if m.view == viewConfirmDelete {
			m.view = viewList
		}
		if msg.err == nil {
			// A page load issued while the delete ran may already be applied.
			m.applyState(m.console.View())
			m.stats = m.console.LastStats()
		}
		m.refreshRows()
		return m, nil

	case submitDoneMsg:
		m.submitting = false
		if msg.err != nil {
			var ve *composer.ValidationError
			if errors.As(msg.err, &ve) {
				m.form.errors = ve.Fields
			}
			return m, nil
		}
		m.form.reset()
		m.view = viewList
		m.applyState(m.console.View())
		if msg.outcome.Stats != nil {
			m.stats = msg.outcome.Stats
		}
		return m, nil

	case clearStatusMsg:
		if int(msg) == m.statusSeq {
			m.status = nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewList:
		if m.searching {
			m.searchInput, cmd = m.searchInput.Update(msg)
		} else {
			m.table, cmd = m.table.Update(msg)
		}
	case viewCompose:
		cmd = m.form.update(msg)
	case viewDetails:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) resize(width, height int) {
	m.width, m.height = width, height
	m.table.SetColumns(tableColumns(width))
	m.table.SetWidth(width)
	m.fitTable()
	m.searchInput.Width = width - 4
	m.form.setSize(width, height)
	m.viewport.Width = width
	m.viewport.Height = height - 3 // room for footer
	m.help.Width = width
	if m.detail != nil {
		m.viewport.SetContent(detailsContent(*m.detail, max(width-2, 20)))
	}
}

// fitTable sizes the table to the page, capped by the terminal height.
func (m *AppModel) fitTable() {
	h := max(len(m.state.Rows), 1) + 1
	if m.height > 0 {
		h = min(h, max(m.height-10, 3))
	}
	m.table.SetHeight(h)
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	}

	switch m.view {
	case viewCompose:
		return m.handleComposeKey(msg)

	case viewConfirmDelete:
		switch key {
		case "y", "Y":
			return m.confirmDelete()
		case "n", "N", "esc":
			m.view = viewList
			return m, nil
		}
		return m, nil

	case viewDetails:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc", "backspace":
			m.view = viewList
			m.detail = nil
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case viewList:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleListKey(msg)
	}

	return m, nil
}

func (m *AppModel) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tracker := m.console.Tracker()
	q := m.console.Engine().Requested()

	switch {
	case key.Matches(msg, listKeys.Quit):
		return m, tea.Quit

	case key.Matches(msg, listKeys.Toggle):
		if s, ok := m.current(); ok {
			tracker.Toggle(s.ID)
			m.refreshRows()
		}
		return m, nil

	case key.Matches(msg, listKeys.All):
		if tracker.AllSelected() {
			tracker.Clear()
		} else {
			tracker.SetAll(model.SubmissionIDs(m.state.Rows))
		}
		m.refreshRows()
		return m, nil

	case key.Matches(msg, listKeys.Clear):
		tracker.Clear()
		m.refreshRows()
		return m, nil

	case key.Matches(msg, listKeys.Search):
		m.searching = true
		m.searchInput.SetValue(q.Filter)
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus()

	case key.Matches(msg, listKeys.Prev):
		if q.Page <= 1 {
			return m, nil
		}
		q.Page--
		return m, m.loadCmd(q)

	case key.Matches(msg, listKeys.Next):
		if q.Page >= listsync.LastPage(m.state.Total, q.PageSize) {
			return m, nil
		}
		q.Page++
		return m, m.loadCmd(q)

	case key.Matches(msg, listKeys.Grow), key.Matches(msg, listKeys.Shrink):
		dir := 1
		if key.Matches(msg, listKeys.Shrink) {
			dir = -1
		}
		size := listsync.NextPageSize(q.PageSize, dir)
		if size == q.PageSize {
			return m, nil
		}
		q.Page, q.PageSize = 1, size
		return m, m.loadCmd(q)

	case key.Matches(msg, listKeys.Delete):
		if tracker.Len() == 0 {
			return m, m.setStatus(console.Notice{Level: console.LevelInfo, Text: "Nothing selected. Use space to select rows."})
		}
		m.view = viewConfirmDelete
		return m, nil

	case key.Matches(msg, listKeys.Compose):
		return m, m.openCompose()

	case key.Matches(msg, listKeys.Details):
		if s, ok := m.current(); ok {
			m.openDetails(s)
		}
		return m, nil

	case key.Matches(msg, listKeys.Reload):
		return m, m.loadCmd(q)

	case key.Matches(msg, listKeys.Stats):
		return m, m.statsCmd()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *AppModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.console.CancelSearch()
		m.searching = false
		m.searchInput.Blur()
		return m, m.searchCmd(m.searchInput.Value())
	case "esc":
		m.console.CancelSearch()
		m.searching = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		if m.console.Engine().Requested().Filter == "" {
			return m, nil
		}
		return m, m.searchCmd("")
	}

	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	after := m.searchInput.Value()
	if after == before {
		return m, cmd
	}
	if strings.TrimSpace(after) == "" {
		// Clearing the field shows everything again without waiting.
		m.console.CancelSearch()
		return m, tea.Batch(cmd, m.searchCmd(""))
	}
	m.console.TypeSearch(after)
	return m, cmd
}

func (m *AppModel) confirmDelete() (tea.Model, tea.Cmd) {
	if m.deleting {
		return m, nil
	}
	m.deleting = true
	con, ctx := m.console, m.ctx
	return m, func() tea.Msg {
		out, err := con.DeleteSelected(ctx)
		return deleteDoneMsg{outcome: out, err: err}
	}
}

// current is the submission under the table cursor.
func (m *AppModel) current() (model.Submission, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.state.Rows) {
		return model.Submission{}, false
	}
	return m.state.Rows[i], true
}

func (m *AppModel) applyState(st listsync.ViewState) {
	m.state = st
	m.refreshRows()
}

func (m *AppModel) refreshRows() {
	cursor := m.table.Cursor()
	m.table.SetRows(submissionRows(m.state.Rows, m.console.Tracker().IsSelected))
	m.fitTable()
	if cursor >= len(m.state.Rows) {
		cursor = len(m.state.Rows) - 1
	}
	m.table.SetCursor(max(cursor, 0))
}

// Commands

// loadCmd registers q with the engine right away, so a later request always
// supersedes it, and fetches in the background.
func (m *AppModel) loadCmd(q listsync.Query) tea.Cmd {
	eng := m.console.Engine()
	t := eng.Begin(q)
	m.state.Loading = true
	con, ctx := m.console, m.ctx
	return func() tea.Msg {
		page, err := eng.Fetch(ctx, t)
		st, err := eng.Resolve(t, page, err)
		con.AfterLoad(ctx, st, err)
		return pageLoadedMsg{seq: t.Seq, state: st, err: err}
	}
}

func (m *AppModel) searchCmd(filter string) tea.Cmd {
	q := m.console.Engine().Requested()
	q.Page, q.Filter = 1, filter
	return m.loadCmd(q)
}

func (m *AppModel) statsCmd() tea.Cmd {
	con, ctx := m.console, m.ctx
	return func() tea.Msg {
		st, err := con.RefreshStats(ctx)
		return statsLoadedMsg{stats: st, err: err}
	}
}

// setStatus replaces the status line with the notices raised by one
// operation. Each keeps its own level.
func (m *AppModel) setStatus(ns ...console.Notice) tea.Cmd {
	m.status = ns
	m.statusSeq++
	return clearStatusAfter(m.statusSeq, statusTTL)
}

func clearStatusAfter(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg(seq)
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n"
	}
	switch m.view {
	case viewCompose:
		return m.composeView()
	case viewDetails:
		var b strings.Builder
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		b.WriteString(detailsFooter())
		return b.String()
	}
	return m.listView()
}
