// Package composer collects and validates new submissions before handing
// them to the service.
package composer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"triageterm/internal/model"
)

type Mode int

const (
	ModeText Mode = iota
	ModeFile
)

func (m Mode) String() string {
	if m == ModeFile {
		return "file"
	}
	return "text"
}

// Creator is the write side of the submission service.
type Creator interface {
	CreateText(ctx context.Context, title, content string) (model.Submission, error)
	CreateFile(ctx context.Context, title string, file model.Upload) (model.Submission, error)
}

// Composer holds the fields of one submission in progress. Values survive a
// failed submit and are cleared after a successful one or Cancel.
type Composer struct {
	svc Creator
	log *zap.Logger

	mu         sync.Mutex
	mode       Mode
	title      string
	body       string
	file       *model.Upload
	submitting bool
}

func New(svc Creator, log *zap.Logger) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{svc: svc, log: log}
}

func (c *Composer) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches mode, dropping whatever the other mode had collected.
// The title is shared and kept.
func (c *Composer) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m == c.mode {
		return
	}
	c.mode = m
	switch m {
	case ModeText:
		c.file = nil
	case ModeFile:
		c.body = ""
	}
}

func (c *Composer) SetTitle(s string) {
	c.mu.Lock()
	c.title = s
	c.mu.Unlock()
}

func (c *Composer) SetBody(s string) {
	c.mu.Lock()
	c.body = s
	c.mu.Unlock()
}

func (c *Composer) SetFile(f *model.Upload) {
	c.mu.Lock()
	c.file = f
	c.mu.Unlock()
}

func (c *Composer) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

func (c *Composer) Body() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body
}

func (c *Composer) File() *model.Upload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file
}

func (c *Composer) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Cancel clears every field and returns to text mode.
func (c *Composer) Cancel() {
	c.mu.Lock()
	c.resetLocked()
	c.mode = ModeText
	c.mu.Unlock()
}

func (c *Composer) resetLocked() {
	c.title, c.body, c.file = "", "", nil
}

// Submit sends whatever the current mode has collected.
func (c *Composer) Submit(ctx context.Context) (model.Submission, error) {
	c.mu.Lock()
	mode, title, body, file := c.mode, c.title, c.body, c.file
	c.mu.Unlock()
	if mode == ModeFile {
		if err := ValidateFile(title, file); err != nil {
			return model.Submission{}, err
		}
		return c.SubmitFile(ctx, title, *file)
	}
	return c.SubmitText(ctx, title, body)
}

// SubmitText switches to text mode, stores title and body as the form's
// values, then validates and creates a text submission.
func (c *Composer) SubmitText(ctx context.Context, title, body string) (model.Submission, error) {
	if err := c.stage(ModeText, title, body, nil); err != nil {
		return model.Submission{}, err
	}
	if err := ValidateText(title, body); err != nil {
		return model.Submission{}, err
	}
	return c.send(func() (model.Submission, error) {
		return c.svc.CreateText(ctx, title, body)
	}, zap.String("mode", ModeText.String()), zap.String("title", title))
}

// SubmitFile switches to file mode, stores title and file as the form's
// values, then validates and uploads a file submission.
func (c *Composer) SubmitFile(ctx context.Context, title string, file model.Upload) (model.Submission, error) {
	if err := c.stage(ModeFile, title, "", &file); err != nil {
		return model.Submission{}, err
	}
	if err := ValidateFile(title, &file); err != nil {
		return model.Submission{}, err
	}
	return c.send(func() (model.Submission, error) {
		return c.svc.CreateFile(ctx, title, file)
	}, zap.String("mode", ModeFile.String()), zap.String("title", title), zap.String("file", file.Name))
}

// stage makes mode the only active one and records its values. The form is
// left alone while another submission is in flight.
func (c *Composer) stage(mode Mode, title, body string, file *model.Upload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return ErrSubmitting
	}
	c.mode, c.title = mode, title
	if mode == ModeFile {
		c.body, c.file = "", file
	} else {
		c.body, c.file = body, nil
	}
	return nil
}

func (c *Composer) send(create func() (model.Submission, error), fields ...zap.Field) (model.Submission, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return model.Submission{}, ErrSubmitting
	}
	c.submitting = true
	c.mu.Unlock()

	sub, err := create()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.log.Warn("submission failed", append(fields, zap.Error(err))...)
		var se *ServiceError
		if errors.As(err, &se) {
			return model.Submission{}, err
		}
		return model.Submission{}, &ServiceError{Err: err}
	}
	c.log.Info("submission created", append(fields, zap.Int64("id", sub.ID))...)
	c.resetLocked()
	return sub, nil
}
