package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"triageterm/internal/listsync"
	"triageterm/internal/model"
)

func newListCmd(app *App) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPage(cmd, app, listsync.Query{Page: page, PageSize: size})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&size, "size", 0, "Page size, at most 100 (default from config)")
	return cmd
}

func newSearchCmd(app *App) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Search submissions by title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := strings.TrimSpace(strings.Join(args, " "))
			if filter == "" {
				return fmt.Errorf("search needs a non-empty title")
			}
			return showPage(cmd, app, listsync.Query{Page: page, PageSize: size, Filter: filter})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&size, "size", 0, "Page size, at most 100 (default from config)")
	return cmd
}

func showPage(cmd *cobra.Command, app *App, q listsync.Query) error {
	ctx := cmd.Context()
	c := app.newConsole(ctx)
	defer c.Close()

	st, err := c.Engine().Load(ctx, q)
	c.AfterLoad(ctx, st, err)
	if err != nil {
		return err
	}
	p := toPageOut(st)
	return writeOut(cmd, app, p, pageTable(p))
}

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show classification and type counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := app.newConsole(ctx)
			defer c.Close()

			st, err := c.RefreshStats(ctx)
			if err != nil {
				return err
			}
			out := toStatsOut(st)
			return writeOut(cmd, app, out, func(w io.Writer) {
				fmt.Fprintf(w, "total\t%d\n", st.Total)
				fmt.Fprintf(w, "productive\t%d\n", st.ByClassification[model.Productive])
				fmt.Fprintf(w, "unproductive\t%d\n", st.ByClassification[model.Unproductive])
				fmt.Fprintf(w, "unclassified\t%d\n", st.ByClassification[model.Unclassified])
				fmt.Fprintf(w, "pdf\t%d\n", st.ByType[model.SourcePDFFile])
				fmt.Fprintf(w, "txt\t%d\n", st.ByType[model.SourceTXTFile])
				fmt.Fprintf(w, "text\t%d\n", st.ByType[model.SourcePlainText])
			})
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete submissions by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c := app.newConsole(ctx)
			defer c.Close()

			res, err := c.DeleteIDs(ctx, ids)
			if err != nil {
				return err
			}
			out := deleteOut{
				DeletedCount: res.Result.DeletedCount,
				DeletedIDs:   res.Result.DeletedIDs,
				NotFoundIDs:  res.Result.NotFoundIDs,
			}
			if out.DeletedIDs == nil {
				out.DeletedIDs = []int64{}
			}
			return writeOut(cmd, app, out, func(w io.Writer) {
				fmt.Fprintf(w, "deleted\t%d\t%s\n", out.DeletedCount, joinIDs(out.DeletedIDs))
				if len(out.NotFoundIDs) > 0 {
					fmt.Fprintf(w, "not found\t%d\t%s\n", len(out.NotFoundIDs), joinIDs(out.NotFoundIDs))
				}
			})
		},
	}
}

// parseIDs accepts ids as separate arguments or comma separated, dropping
// duplicates.
func parseIDs(args []string) ([]int64, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid submission id %q", part)
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no submission ids given")
	}
	return model.SortIDs(ids), nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
