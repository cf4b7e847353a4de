package tui

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triageterm/internal/api"
	"triageterm/internal/composer"
	"triageterm/internal/console"
	"triageterm/internal/debounce"
	"triageterm/internal/listsync"
	"triageterm/internal/model"
	"triageterm/internal/stub"
)

type harness struct {
	m     *AppModel
	srv   *stub.Server
	clock *debounce.ManualClock
	net   *switchDoer
}

// switchDoer fails every request while down is set.
type switchDoer struct {
	down atomic.Bool
	next api.HTTPDoer
}

func (d *switchDoer) Do(req *http.Request) (*http.Response, error) {
	if d.down.Load() {
		return nil, errors.New("connection refused")
	}
	return d.next.Do(req)
}

func newHarness(t *testing.T, seeded int) *harness {
	t.Helper()
	srv := stub.New()
	for i := 1; i <= seeded; i++ {
		title := fmt.Sprintf("Invoice %d", i)
		if i%2 == 0 {
			title = fmt.Sprintf("Thanks %d", i)
		}
		srv.Seed(title, "Body text for submission number "+fmt.Sprint(i), model.SourcePlainText)
	}
	hs := httptest.NewServer(srv.Handler("/api/v1"))
	t.Cleanup(hs.Close)

	clock := debounce.NewManualClock()
	doer := &switchDoer{next: hs.Client()}
	m := NewAppModel(Deps{
		Service: api.NewClient(hs.URL+"/api/v1", api.WithHTTPDoer(doer)),
		Options: console.DefaultOptions(),
		Console: []console.Option{console.WithClock(clock)},
	})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return &harness{m: m, srv: srv, clock: clock, net: doer}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press sends one key and returns the command Update produced.
func (h *harness) press(k string) tea.Cmd {
	_, cmd := h.m.Update(keyMsg(k))
	return cmd
}

// typeText feeds s rune by rune, discarding cursor commands.
func (h *harness) typeText(s string) {
	for _, r := range s {
		h.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// finish runs an asynchronous command to completion and feeds its message back.
func (h *harness) finish(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	h.m.Update(msg)
	return msg
}

// statusText joins the notices on the status line.
func (h *harness) statusText() string {
	texts := make([]string, len(h.m.status))
	for i, n := range h.m.status {
		texts[i] = n.Text
	}
	return strings.Join(texts, "\n")
}

func (h *harness) reload(t *testing.T) {
	t.Helper()
	h.finish(t, h.press("r"))
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	h := newHarness(t, 12)
	h.reload(t)
	require.Equal(t, 12, h.m.state.Total)
	require.Equal(t, 1, h.m.state.Page)

	toPage2 := h.press("n")
	toPage3 := h.press("n")
	assert.Equal(t, 3, h.m.console.Engine().Requested().Page)

	// The newer request resolves first; the older one must not win afterwards.
	h.finish(t, toPage3)
	late := h.finish(t, toPage2)

	loaded, ok := late.(pageLoadedMsg)
	require.True(t, ok)
	assert.Error(t, loaded.err)
	assert.Equal(t, 3, h.m.state.Page)
	require.Len(t, h.m.state.Rows, 2)
	assert.Equal(t, int64(2), h.m.state.Rows[0].ID)
	assert.Contains(t, h.m.View(), "page 3 of 3")
	assert.Contains(t, h.m.View(), "11-12 of 12 items")
}

func TestPrevAtFirstPageDoesNothing(t *testing.T) {
	h := newHarness(t, 3)
	h.reload(t)
	assert.Nil(t, h.press("p"))
	assert.Nil(t, h.press("n"))
}

func TestPageSizeResetsToFirstPage(t *testing.T) {
	h := newHarness(t, 30)
	h.reload(t)
	h.finish(t, h.press("n"))
	require.Equal(t, 2, h.m.state.Page)

	h.finish(t, h.press("+"))
	assert.Equal(t, 1, h.m.state.Page)
	assert.Equal(t, 10, h.m.state.PageSize)
	assert.Len(t, h.m.state.Rows, 10)

	h.finish(t, h.press("-"))
	assert.Equal(t, 5, h.m.state.PageSize)
	assert.Nil(t, h.press("-"), "5 is the smallest size")
}

func TestSelectionToggling(t *testing.T) {
	h := newHarness(t, 12)
	h.reload(t)
	tracker := h.m.console.Tracker()

	h.press(" ")
	assert.True(t, tracker.IsSelected(12))
	assert.Contains(t, h.m.View(), "[x]")
	assert.Contains(t, h.m.View(), "1 selected")

	h.press("down")
	h.press(" ")
	assert.Equal(t, []int64{11, 12}, tracker.Snapshot())

	h.press(" ")
	assert.Equal(t, []int64{12}, tracker.Snapshot(), "second toggle deselects")

	h.press("a")
	assert.Equal(t, 5, tracker.Len())
	h.press("a")
	assert.Equal(t, 0, tracker.Len(), "a on a fully selected page clears it")

	h.press(" ")
	h.press("esc")
	assert.Equal(t, 0, tracker.Len())

	h.press(" ")
	h.finish(t, h.press("n"))
	assert.Equal(t, 0, tracker.Len(), "replacing rows clears the selection")
	assert.NotContains(t, h.m.View(), "[x]")
}

func TestComposeValidationErrorsStayLocal(t *testing.T) {
	h := newHarness(t, 0)
	h.reload(t)

	h.press("c")
	require.Equal(t, viewCompose, h.m.view)
	h.typeText("a")
	cmd := h.press("ctrl+s")

	assert.Nil(t, cmd, "nothing is sent while the form is invalid")
	assert.Equal(t, 0, h.srv.Len())
	view := h.m.View()
	assert.Contains(t, view, "title must have at least 2 characters")
	assert.Contains(t, view, "text must have at least 10 characters")

	// Whitespace does not count towards the body minimum.
	h.m.form.title.SetValue("Invoice request")
	h.m.form.body.SetValue("a b c d e f g h i")
	h.press("ctrl+s")
	assert.Contains(t, h.m.View(), "text must have at least 10 characters")
	assert.NotContains(t, h.m.View(), "title must have")
}

func TestComposeSubmitReloadsListAndStats(t *testing.T) {
	h := newHarness(t, 2)
	h.reload(t)

	h.press("c")
	h.m.form.title.SetValue("Need help")
	h.m.form.body.SetValue("Please help, I have a problem with my invoice.")
	cmd := h.press("ctrl+s")
	require.NotNil(t, cmd)
	assert.True(t, h.m.submitting)
	assert.Nil(t, h.press("ctrl+s"), "a second submit is ignored while one is in flight")

	msg := h.finish(t, cmd)
	done, ok := msg.(submitDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	assert.Equal(t, viewList, h.m.view)
	assert.Equal(t, 3, h.m.state.Total)
	assert.Equal(t, "Need help", h.m.state.Rows[0].Title)
	require.NotNil(t, h.m.stats)
	assert.Equal(t, 3, h.m.stats.Total)
	assert.Contains(t, h.statusText(), "created (Productive)")
	assert.Empty(t, h.m.form.title.Value())
}

func TestComposeModeSwitchDropsOtherInput(t *testing.T) {
	h := newHarness(t, 0)
	h.press("c")
	h.m.form.title.SetValue("Keep me")
	h.m.form.body.SetValue("this text goes away")

	h.press("ctrl+t")
	assert.Equal(t, composer.ModeFile, h.m.console.Composer().Mode())
	assert.Empty(t, h.m.form.body.Value())
	assert.Equal(t, "Keep me", h.m.form.title.Value())

	h.press("ctrl+s")
	assert.Contains(t, h.m.View(), "select a file")

	h.press("esc")
	assert.Equal(t, viewList, h.m.view)
	assert.Equal(t, composer.ModeText, h.m.console.Composer().Mode())
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t, 6)
	h.reload(t)

	h.press("d")
	assert.Equal(t, viewList, h.m.view)
	assert.Contains(t, h.statusText(), "Nothing selected")

	h.press(" ")
	h.press("d")
	require.Equal(t, viewConfirmDelete, h.m.view)
	assert.Contains(t, h.m.View(), "Delete 1 selected submission?")

	h.press("n")
	assert.Equal(t, viewList, h.m.view)
	assert.Equal(t, 6, h.srv.Len())
	assert.Equal(t, 1, h.m.console.Tracker().Len(), "cancelling keeps the selection")

	h.press("d")
	h.finish(t, h.press("y"))
	assert.Equal(t, viewList, h.m.view)
	assert.Equal(t, 5, h.srv.Len())
	assert.Equal(t, 5, h.m.state.Total)
	assert.Equal(t, 0, h.m.console.Tracker().Len())
	assert.Contains(t, h.statusText(), "Deleted 1 submission")
	require.NotNil(t, h.m.stats)
	assert.Equal(t, 5, h.m.stats.Total)
}

func TestSearchEnterCommitsImmediately(t *testing.T) {
	h := newHarness(t, 6)
	h.reload(t)

	h.press("/")
	require.True(t, h.m.searching)
	h.typeText("invoice")
	assert.Equal(t, 1, h.clock.Pending(), "typing only schedules a search")

	h.finish(t, h.press("enter"))
	assert.Equal(t, 0, h.clock.Pending())
	assert.False(t, h.m.searching)
	assert.Equal(t, "invoice", h.m.state.Filter)
	assert.Equal(t, 3, h.m.state.Total)
	assert.Contains(t, h.m.View(), `filter "invoice"`)

	h.press("/")
	h.finish(t, h.press("esc"))
	assert.Equal(t, "", h.m.state.Filter)
	assert.Equal(t, 6, h.m.state.Total)
}

func TestDebouncedSearchCommitMessage(t *testing.T) {
	h := newHarness(t, 6)
	h.reload(t)

	// The debounce timer delivers this message through the program.
	_, cmd := h.m.Update(searchCommitMsg("thanks"))
	h.finish(t, cmd)
	assert.Equal(t, "thanks", h.m.state.Filter)
	assert.Equal(t, 3, h.m.state.Total)
	assert.Equal(t, 1, h.m.state.Page)
}

func TestDetailsRendersSuggestedReply(t *testing.T) {
	h := newHarness(t, 0)
	h.srv.Seed("Support needed", "I need support with an error on my account", model.SourcePlainText)
	h.reload(t)

	h.press("enter")
	require.Equal(t, viewDetails, h.m.view)
	view := h.m.View()
	assert.Contains(t, view, "Support needed")
	assert.Contains(t, view, "Suggested reply")
	assert.Contains(t, view, "Productive")

	h.press("esc")
	assert.Equal(t, viewList, h.m.view)
}

func TestFailedLoadKeepsRowsAndShowsNotice(t *testing.T) {
	h := newHarness(t, 3)
	h.reload(t)

	before := h.m.state
	h.net.down.Store(true)

	h.reload(t)
	assert.Equal(t, before.Rows, h.m.state.Rows)
	assert.False(t, h.m.state.Loading)
	require.Len(t, h.m.status, 1)
	assert.Equal(t, console.LevelError, h.m.status[0].Level)
	assert.Contains(t, h.statusText(), "connection refused")
}

func TestClearStatusOnlyClearsItsOwnNotice(t *testing.T) {
	h := newHarness(t, 0)
	h.m.setStatus(console.Notice{Text: "first"})
	h.m.setStatus(console.Notice{Text: "second"})

	h.m.Update(clearStatusMsg(1))
	assert.Equal(t, "second", h.statusText())
	h.m.Update(clearStatusMsg(2))
	assert.Empty(t, h.statusText())
}

func TestNoticesFromOneUpdateKeepTheirLevels(t *testing.T) {
	h := newHarness(t, 0)
	h.m.notices.push(console.Notice{Level: console.LevelSuccess, Text: "Deleted 1 submission"})
	h.m.notices.push(console.Notice{Level: console.LevelWarning, Text: "1 submission was already gone: #9"})
	h.m.Update(clearStatusMsg(-1))

	require.Len(t, h.m.status, 2)
	assert.Equal(t, console.LevelSuccess, h.m.status[0].Level)
	assert.Equal(t, console.LevelWarning, h.m.status[1].Level)
	view := h.m.View()
	assert.Contains(t, view, "Deleted 1 submission")
	assert.Contains(t, view, "1 submission was already gone: #9")
}

func TestPageSummaryMarksNeighbours(t *testing.T) {
	h := newHarness(t, 12)
	h.reload(t)
	summary := pageSummary(h.m.state)
	assert.False(t, strings.HasPrefix(summary, "‹"))
	assert.True(t, strings.HasSuffix(summary, "›"))

	h.finish(t, h.press("n"))
	h.finish(t, h.press("n"))
	summary = pageSummary(h.m.state)
	assert.True(t, strings.HasPrefix(summary, "‹"))
	assert.False(t, strings.HasSuffix(summary, "›"))
}

func TestDeleteOutcomeDoesNotRepaintOlderPage(t *testing.T) {
	h := newHarness(t, 12)
	h.reload(t)

	h.press(" ")
	h.press("d")
	del := h.press("y")
	require.NotNil(t, del)
	delMsg := del()

	// The user moves on before the delete result reaches the UI.
	h.press("n")
	require.Equal(t, viewList, h.m.view)
	h.finish(t, h.press("n"))
	require.Equal(t, 2, h.m.state.Page)

	h.m.Update(delMsg)
	engine := h.m.console.View()
	assert.Equal(t, 2, engine.Page)
	assert.Equal(t, engine.Page, h.m.state.Page)
	assert.Equal(t, engine.Rows, h.m.state.Rows)
	assert.Equal(t, 11, h.m.state.Total)

	h.press(" ")
	assert.Equal(t, 1, h.m.console.Tracker().Len(), "selection follows the page on screen")
}

func TestSubmitOutcomeDoesNotRepaintOlderPage(t *testing.T) {
	h := newHarness(t, 12)
	h.reload(t)

	h.press("c")
	h.m.form.title.SetValue("Late arrival")
	h.m.form.body.SetValue("Please confirm the delivery date for order 77.")
	submit := h.press("ctrl+s")
	require.NotNil(t, submit)
	doneMsg := submit()

	h.finish(t, h.m.loadCmd(listsync.Query{Page: 2, PageSize: 5}))
	require.Equal(t, 2, h.m.state.Page)

	h.m.Update(doneMsg)
	assert.Equal(t, viewList, h.m.view)
	assert.Equal(t, 2, h.m.state.Page)
	assert.Equal(t, h.m.console.View().Rows, h.m.state.Rows)
	assert.Equal(t, 13, h.m.state.Total)
}
