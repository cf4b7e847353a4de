package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"triageterm/internal/composer"
)

// composeField indexes the focusable inputs of the compose form. In text mode
// the body is the second field, in file mode the path is.
type composeField int

const (
	fieldTitle composeField = iota
	fieldContent
)

type composeForm struct {
	title  textinput.Model
	body   textarea.Model
	path   textinput.Model
	focus  composeField
	errors map[string]string
}

func newComposeForm() composeForm {
	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = 0
	title.Prompt = "Title: "

	body := textarea.New()
	body.Placeholder = "Paste the email text here"
	body.CharLimit = 0
	body.MaxHeight = 0
	body.ShowLineNumbers = false

	path := textinput.New()
	path.Placeholder = "/path/to/email.txt or .pdf"
	path.CharLimit = 0
	path.Prompt = "File: "

	return composeForm{title: title, body: body, path: path}
}

func (f *composeForm) setSize(width, height int) {
	f.title.Width = width - len(f.title.Prompt) - 2
	f.path.Width = width - len(f.path.Prompt) - 2
	f.body.SetWidth(width)
	h := height - 10
	if h < 3 {
		h = 3
	}
	f.body.SetHeight(h)
}

// update forwards non-key messages, such as cursor blinks, to every input.
func (f *composeForm) update(msg tea.Msg) tea.Cmd {
	var cmds [3]tea.Cmd
	f.title, cmds[0] = f.title.Update(msg)
	f.body, cmds[1] = f.body.Update(msg)
	f.path, cmds[2] = f.path.Update(msg)
	return tea.Batch(cmds[:]...)
}

func (f *composeForm) reset() {
	f.title.Reset()
	f.body.Reset()
	f.path.Reset()
	f.errors = nil
	f.focus = fieldTitle
}

func (m *AppModel) openCompose() tea.Cmd {
	m.view = viewCompose
	m.form.errors = nil
	return m.focusCompose(fieldTitle)
}

// focusCompose focuses c for the composer's current mode.
func (m *AppModel) focusCompose(c composeField) tea.Cmd {
	f := &m.form
	f.focus = c
	f.title.Blur()
	f.body.Blur()
	f.path.Blur()
	switch {
	case c == fieldTitle:
		return f.title.Focus()
	case m.console.Composer().Mode() == composer.ModeFile:
		return f.path.Focus()
	default:
		return f.body.Focus()
	}
}

func (m *AppModel) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.console.Composer()
	switch msg.String() {
	case "esc":
		c.Cancel()
		m.form.reset()
		m.view = viewList
		return m, nil
	case "ctrl+t":
		next := composer.ModeFile
		if c.Mode() == composer.ModeFile {
			next = composer.ModeText
		}
		c.SetMode(next)
		// The other mode's input is discarded with it.
		m.form.body.Reset()
		m.form.path.Reset()
		m.form.errors = nil
		return m, m.focusCompose(m.form.focus)
	case "tab", "shift+tab":
		return m, m.focusCompose(1 - m.form.focus)
	case "ctrl+s":
		return m.submitCompose()
	}

	var cmd tea.Cmd
	switch {
	case m.form.focus == fieldTitle:
		m.form.title, cmd = m.form.title.Update(msg)
	case c.Mode() == composer.ModeFile:
		m.form.path, cmd = m.form.path.Update(msg)
	default:
		m.form.body, cmd = m.form.body.Update(msg)
	}
	return m, cmd
}

// submitCompose validates locally and only then hands the submission to the
// console. Validation failures never reach the network.
func (m *AppModel) submitCompose() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	c := m.console.Composer()
	title := m.form.title.Value()
	c.SetTitle(title)

	var err error
	if c.Mode() == composer.ModeFile {
		err = m.stageFile(title)
	} else {
		body := m.form.body.Value()
		c.SetBody(body)
		err = composer.ValidateText(title, body)
	}

	var ve *composer.ValidationError
	if errors.As(err, &ve) {
		m.form.errors = ve.Fields
		return m, nil
	}
	m.form.errors = nil
	m.submitting = true
	con, ctx := m.console, m.ctx
	return m, func() tea.Msg {
		out, err := con.Submit(ctx)
		return submitDoneMsg{outcome: out, err: err}
	}
}

// stageFile opens the typed path and hands it to the composer. A path that
// cannot be opened is reported against the file field.
func (m *AppModel) stageFile(title string) error {
	c := m.console.Composer()
	path := strings.TrimSpace(m.form.path.Value())
	if path == "" {
		c.SetFile(nil)
		return composer.ValidateFile(title, nil)
	}
	up, err := composer.OpenFile(path)
	if err != nil {
		c.SetFile(nil)
		ve := &composer.ValidationError{Fields: map[string]string{}}
		var titleErr *composer.ValidationError
		if errors.As(composer.ValidateFile(title, nil), &titleErr) {
			for k, v := range titleErr.Fields {
				ve.Fields[k] = v
			}
		}
		ve.Fields[composer.FieldFile] = err.Error()
		return ve
	}
	c.SetFile(&up)
	return composer.ValidateFile(title, &up)
}

func (m *AppModel) composeView() string {
	c := m.console.Composer()
	var b strings.Builder
	b.WriteString(titleStyle.Render("New submission"))
	b.WriteString(dimStyle.Render("  mode: " + c.Mode().String()))
	if m.submitting {
		b.WriteString(" " + m.spinner.View() + " sending...")
	}
	b.WriteString("\n\n")

	b.WriteString(m.form.title.View())
	b.WriteString("\n")
	b.WriteString(fieldError(m.form.errors, composer.FieldTitle))
	b.WriteString("\n")

	if c.Mode() == composer.ModeFile {
		b.WriteString(m.form.path.View())
		b.WriteString("\n")
		b.WriteString(fieldError(m.form.errors, composer.FieldFile))
		b.WriteString(dimStyle.Render("\naccepted: .txt or .pdf, under 5 MiB"))
	} else {
		b.WriteString(m.form.body.View())
		b.WriteString("\n")
		b.WriteString(fieldError(m.form.errors, composer.FieldBody))
	}
	b.WriteString("\n")
	b.WriteString(m.statusView())
	b.WriteString(footerStyle.Render("ctrl+s: submit  tab: next field  ctrl+t: text/file  esc: cancel"))
	return b.String()
}

func fieldError(errs map[string]string, field string) string {
	if msg := errs[field]; msg != "" {
		return errorStyle.Render("  " + msg)
	}
	return ""
}
