package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"triageterm/internal/console"
	"triageterm/internal/listsync"
	"triageterm/internal/model"
)

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var noticeStyles = map[console.Level]lipgloss.Style{
	console.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	console.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	console.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	console.LevelError:   errorStyle,
}

type listKeyMap struct {
	Toggle  key.Binding
	All     key.Binding
	Clear   key.Binding
	Search  key.Binding
	Prev    key.Binding
	Next    key.Binding
	Grow    key.Binding
	Shrink  key.Binding
	Delete  key.Binding
	Compose key.Binding
	Details key.Binding
	Reload  key.Binding
	Stats   key.Binding
	Quit    key.Binding
}

var listKeys = listKeyMap{
	Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
	All:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all")),
	Clear:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
	Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Prev:    key.NewBinding(key.WithKeys("left", "p"), key.WithHelp("←/p", "prev")),
	Next:    key.NewBinding(key.WithKeys("right", "n"), key.WithHelp("→/n", "next")),
	Grow:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "page size")),
	Shrink:  key.NewBinding(key.WithKeys("-")),
	Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Compose: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "compose")),
	Details: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Stats:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stats")),
	Quit:    key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
}

func (k listKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.All, k.Search, k.Prev, k.Next, k.Grow, k.Delete, k.Compose, k.Details, k.Reload, k.Stats, k.Quit}
}

func (k listKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Only vertical movement is left to the table; every other key belongs to the console.
func tableKeyMap() table.KeyMap {
	return table.KeyMap{
		LineUp:     key.NewBinding(key.WithKeys("up", "k")),
		LineDown:   key.NewBinding(key.WithKeys("down", "j")),
		GotoTop:    key.NewBinding(key.WithKeys("home", "g")),
		GotoBottom: key.NewBinding(key.WithKeys("end", "G")),
	}
}

func tableColumns(width int) []table.Column {
	titleW := width - 3 - 6 - 5 - 13 - 17 - 12
	if titleW < 16 {
		titleW = 16
	}
	return []table.Column{
		{Title: " ", Width: 3},
		{Title: "ID", Width: 6},
		{Title: "Title", Width: titleW},
		{Title: "Type", Width: 5},
		{Title: "Class", Width: 13},
		{Title: "Created", Width: 17},
	}
}

func submissionRows(subs []model.Submission, selected func(int64) bool) []table.Row {
	rows := make([]table.Row, len(subs))
	for i, s := range subs {
		mark := "[ ]"
		if selected(s.ID) {
			mark = "[x]"
		}
		rows[i] = table.Row{
			mark,
			strconv.FormatInt(s.ID, 10),
			strings.Join(strings.Fields(s.Title), " "),
			s.SourceType.Label(),
			s.ClassificationLabel(),
			formatCreated(s),
		}
	}
	return rows
}

func formatCreated(s model.Submission) string {
	if s.CreatedAt.IsZero() {
		return "-"
	}
	return s.CreatedAt.Local().Format("2006-01-02 15:04")
}

// pageSummary renders "page 2 of 3 · 6-10 of 12 items".
func pageSummary(v listsync.ViewState) string {
	first, last := v.Range()
	items := fmt.Sprintf("%d-%d of %d items", first, last, v.Total)
	if v.Total == 0 {
		items = "no items"
	}
	out := fmt.Sprintf("page %d of %d · %s · %d per page", v.Page, v.TotalPages(), items, v.PageSize)
	if v.HasPrev() {
		out = "‹ " + out
	}
	if v.HasNext() {
		out += " ›"
	}
	return out
}

func statsLine(s *model.Stats) string {
	if s == nil {
		return "statistics not loaded"
	}
	return fmt.Sprintf("total %d · productive %d · unproductive %d · unclassified %d · pdf %d · txt %d · text %d",
		s.Total,
		s.ByClassification[model.Productive],
		s.ByClassification[model.Unproductive],
		s.ByClassification[model.Unclassified],
		s.ByType[model.SourcePDFFile],
		s.ByType[model.SourceTXTFile],
		s.ByType[model.SourcePlainText])
}

func (m *AppModel) listView() string {
	var b strings.Builder
	header := titleStyle.Render("Submissions") + "  " + pageSummary(m.state)
	if m.state.Filter != "" {
		header += dimStyle.Render(fmt.Sprintf("  filter %q", m.state.Filter))
	}
	if n := m.console.Tracker().Len(); n > 0 {
		header += fmt.Sprintf("  %d selected", n)
	}
	if m.state.Loading {
		header += " " + m.spinner.View()
	}
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(statsLine(m.stats)))
	b.WriteString("\n\n")

	if len(m.state.Rows) == 0 && !m.state.Loading {
		if m.state.Filter != "" {
			b.WriteString("No submissions match this search.\n")
		} else {
			b.WriteString("No submissions yet. Press c to compose one.\n")
		}
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	if m.searching {
		b.WriteString("\n")
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	}
	if m.view == viewConfirmDelete {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Delete %s? y: confirm  n/esc: cancel",
			pluralize(m.console.Tracker().Len(), "selected submission", "selected submissions"))))
		b.WriteString("\n")
	}
	b.WriteString(m.statusView())
	b.WriteString(m.listFooter())
	return b.String()
}

func (m *AppModel) listFooter() string {
	if m.searching {
		return footerStyle.Render("type to search  enter: search now  esc: clear and leave")
	}
	return footerStyle.Render(m.help.View(listKeys))
}

func (m *AppModel) statusView() string {
	if len(m.status) == 0 {
		return ""
	}
	parts := make([]string, len(m.status))
	for i, n := range m.status {
		st, ok := noticeStyles[n.Level]
		if !ok {
			st = noticeStyles[console.LevelInfo]
		}
		parts[i] = st.Render(n.Text)
	}
	return "\n" + strings.Join(parts, "\n") + "\n"
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
