package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"

	"triageterm/internal/model"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	PaddingBottom(1)

var (
	mdMu        sync.Mutex
	mdRenderers = map[int]*glamour.TermRenderer{}
)

// renderMarkdown renders md wrapped at width, falling back to the raw text
// when rendering fails. Renderers are cached per width; WithAutoStyle is
// avoided because it queries the terminal.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 20 {
		width = 20
	}
	mdMu.Lock()
	r := mdRenderers[width]
	if r == nil {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(styles.DarkStyle),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			mdMu.Unlock()
			return md
		}
		mdRenderers[width] = r
	}
	mdMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func detailsHeader(s model.Submission) string {
	return headerStyle.Render(fmt.Sprintf("#%d  %s\nType: %s   Classification: %s   Created: %s",
		s.ID, s.Title, s.SourceType.Label(), s.ClassificationLabel(), formatCreated(s)))
}

func detailsContent(s model.Submission, width int) string {
	var b strings.Builder
	b.WriteString(detailsHeader(s))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Message"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Render(s.Body))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("Suggested reply"))
	b.WriteString("\n")
	if s.SuggestedReply == nil || strings.TrimSpace(*s.SuggestedReply) == "" {
		b.WriteString(dimStyle.Render("No suggested reply."))
	} else {
		b.WriteString(renderMarkdown(*s.SuggestedReply, width))
	}
	return b.String()
}

func (m *AppModel) openDetails(s model.Submission) {
	m.detail = &s
	m.viewport.SetContent(detailsContent(s, max(m.width-2, 20)))
	m.viewport.GotoTop()
	m.view = viewDetails
}

func detailsFooter() string {
	return footerStyle.Render("↑/↓: scroll  esc: back  q: quit")
}
