package gmail

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"triageterm/internal/model"
	"triageterm/internal/util"
)

const maxBody = 10000

// Submitter creates text submissions. *composer.Composer satisfies it.
type Submitter interface {
	SubmitText(ctx context.Context, title, body string) (model.Submission, error)
}

// ImportLog remembers which messages were already imported.
type ImportLog interface {
	ImportedSubmission(ctx context.Context, messageID string) (int64, bool, error)
	RecordImport(ctx context.Context, messageID string, submissionID int64) error
}

// Importer turns Gmail messages into text submissions.
type Importer struct {
	box    Mailbox
	submit Submitter
	seen   ImportLog
	log    *zap.Logger
}

func NewImporter(box Mailbox, submit Submitter, seen ImportLog, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{box: box, submit: submit, seen: seen, log: log}
}

// ImportResult describes one imported message.
type ImportResult struct {
	MessageID  string
	Submission model.Submission
	// Skipped is set when the message had been imported before; only
	// Submission.ID is known then.
	Skipped bool
}

// Import submits message id. title overrides the subject when non-empty.
// Messages already imported are skipped unless force is set.
func (im *Importer) Import(ctx context.Context, id, title string, force bool) (ImportResult, error) {
	if im.seen != nil && !force {
		subID, ok, err := im.seen.ImportedSubmission(ctx, id)
		if err != nil {
			return ImportResult{}, fmt.Errorf("check import log: %w", err)
		}
		if ok {
			im.log.Info("message already imported", zap.String("message_id", id), zap.Int64("submission_id", subID))
			return ImportResult{MessageID: id, Submission: model.Submission{ID: subID}, Skipped: true}, nil
		}
	}

	raw, err := im.box.Get(ctx, id)
	if err != nil {
		return ImportResult{}, err
	}
	msg := FromGmail(raw)
	if title == "" {
		title = msg.Title()
	}
	body := util.TruncateSignificant(msg.Body, maxBody)

	sub, err := im.submit.SubmitText(ctx, title, body)
	if err != nil {
		return ImportResult{}, err
	}
	if im.seen != nil {
		if err := im.seen.RecordImport(ctx, id, sub.ID); err != nil {
			im.log.Warn("record import failed", zap.String("message_id", id), zap.Error(err))
		}
	}
	im.log.Info("message imported", zap.String("message_id", id), zap.Int64("submission_id", sub.ID))
	return ImportResult{MessageID: id, Submission: sub}, nil
}

// ImportRecent imports the newest n inbox messages, stopping at the first error.
func (im *Importer) ImportRecent(ctx context.Context, n int64, force bool) ([]ImportResult, error) {
	ids, err := im.box.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]ImportResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := im.Import(ctx, id, "", force)
		if err != nil {
			return out, fmt.Errorf("import %s: %w", id, err)
		}
		out = append(out, res)
	}
	return out, nil
}
