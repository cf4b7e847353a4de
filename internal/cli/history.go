package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		limit int
		kind  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent local activity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db := app.store()
			if db == nil {
				return fmt.Errorf("local journal unavailable: %w", app.dbErr)
			}
			acts, err := db.RecentActivity(cmd.Context(), limit, kind)
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}
			out := toActivityOut(acts)
			return writeOut(cmd, app, out, func(w io.Writer) {
				fmt.Fprintln(w, "AT\tKIND\tOK\tDETAIL")
				for _, a := range out {
					ok := "yes"
					if !a.OK {
						ok = "no"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.At, a.Kind, ok, oneLine(a.Detail))
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	cmd.Flags().StringVar(&kind, "kind", "", "Only show one kind (load, search, reload, delete, create, import)")
	return cmd
}
