package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"triageterm/internal/gmail"
	"triageterm/internal/store"
)

type importOut struct {
	MessageID    string `json:"message_id" yaml:"message_id"`
	SubmissionID int64  `json:"submission_id" yaml:"submission_id"`
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	Class        string `json:"classification,omitempty" yaml:"classification,omitempty"`
	Skipped      bool   `json:"skipped" yaml:"skipped"`
}

func newImportGmailCmd(app *App) *cobra.Command {
	var (
		title  string
		recent int64
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "import-gmail [message-id]",
		Short: "Submit Gmail messages for classification",
		Long: `Imports one Gmail message by id, or the newest inbox messages with --recent.
The first run opens a browser to authorise read-only Gmail access; the token
is cached next to the journal. Messages already imported are skipped unless
--force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (recent <= 0) {
				return fmt.Errorf("give either a message id or --recent N")
			}
			if title != "" && len(args) == 0 {
				return fmt.Errorf("--title applies to a single message id")
			}
			ctx := cmd.Context()

			svc, err := gmail.NewService(ctx, gmail.Auth{
				CredentialsPath: app.cfg.Gmail.CredentialsPath,
				TokenPath:       filepath.Join(app.cfg.Storage.ConfigDir, "gmail_token.json"),
				Prompt:          cmd.ErrOrStderr(),
				Input:           cmd.InOrStdin(),
			})
			if err != nil {
				return fmt.Errorf("gmail auth: %w", err)
			}

			c := app.newConsole(ctx)
			defer c.Close()
			var seen gmail.ImportLog
			db := app.store()
			if db != nil {
				seen = db
			}
			im := gmail.NewImporter(gmail.NewServiceMailbox(svc), c.Composer(), seen, app.log)

			var results []gmail.ImportResult
			if len(args) == 1 {
				var res gmail.ImportResult
				res, err = im.Import(ctx, args[0], title, force)
				if err == nil {
					results = append(results, res)
				}
			} else {
				results, err = im.ImportRecent(ctx, recent, force)
			}
			journalImports(cmd, db, results, err)

			out := make([]importOut, len(results))
			for i, r := range results {
				out[i] = importOut{MessageID: r.MessageID, SubmissionID: r.Submission.ID, Skipped: r.Skipped}
				if !r.Skipped {
					out[i].Title = r.Submission.Title
					out[i].Class = r.Submission.ClassificationLabel()
				}
			}
			if werr := writeOut(cmd, app, out, func(w io.Writer) {
				fmt.Fprintln(w, "MESSAGE\tSUBMISSION\tCLASS\tNOTE")
				for _, o := range out {
					note := "imported"
					if o.Skipped {
						note = "already imported"
					}
					fmt.Fprintf(w, "%s\t#%d\t%s\t%s\n", o.MessageID, o.SubmissionID, o.Class, note)
				}
			}); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title to use instead of the subject")
	cmd.Flags().Int64Var(&recent, "recent", 0, "Import the newest N inbox messages")
	cmd.Flags().BoolVar(&force, "force", false, "Import again even if already imported")
	return cmd
}

func journalImports(cmd *cobra.Command, db *store.SQLiteStore, results []gmail.ImportResult, err error) {
	if db == nil {
		return
	}
	imported := 0
	for _, r := range results {
		if !r.Skipped {
			imported++
		}
	}
	a := store.Activity{
		Kind:   "import",
		Detail: fmt.Sprintf("imported %d, skipped %d", imported, len(results)-imported),
		OK:     err == nil,
	}
	if err != nil {
		a.Detail += ": " + err.Error()
	}
	if rerr := db.Record(cmd.Context(), a); rerr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: journal write failed: %v\n", rerr)
	}
}
