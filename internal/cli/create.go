package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"triageterm/internal/composer"
	"triageterm/internal/console"
)

func newCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit an email for classification",
	}
	cmd.AddCommand(newCreateTextCmd(app))
	cmd.AddCommand(newCreateFileCmd(app))
	return cmd
}

func newCreateTextCmd(app *App) *cobra.Command {
	var title, body string
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Submit raw email text",
		Example: strings.TrimSpace(`
  triageterm create text --title "Refund" --body "Please refund order 1234"
  pbpaste | triageterm create text --title "Pasted" --body -
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if body == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read body from stdin: %w", err)
				}
				body = string(raw)
			}
			ctx := cmd.Context()
			c := app.newConsole(ctx)
			defer c.Close()

			out, err := c.SubmitText(ctx, title, body)
			return writeCreated(cmd, app, out, err)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Submission title (2-255 characters)")
	cmd.Flags().StringVar(&body, "body", "", "Email text (10-10000 characters), - to read stdin")
	return cmd
}

func newCreateFileCmd(app *App) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Upload a .txt or .pdf file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, err := composer.OpenFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c := app.newConsole(ctx)
			defer c.Close()

			out, err := c.SubmitFile(ctx, title, up)
			return writeCreated(cmd, app, out, err)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Submission title (2-255 characters)")
	return cmd
}

// writeCreated prints the new submission, or every field problem on its own
// line when validation failed.
func writeCreated(cmd *cobra.Command, app *App, out console.CreateOutcome, err error) error {
	var ve *composer.ValidationError
	if errors.As(err, &ve) {
		for _, field := range []string{composer.FieldTitle, composer.FieldBody, composer.FieldFile} {
			if msg := ve.Field(field); msg != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", field, msg)
			}
		}
		return err
	}
	if err != nil {
		return err
	}
	s := toSubmissionOut(out.Submission, false)
	return writeOut(cmd, app, s, submissionTable(s))
}
