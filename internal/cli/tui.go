package cli

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triageterm/internal/store"
	"triageterm/internal/tui"
)

const journalKeep = 1000

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive console (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	deps := tui.Deps{
		Service: app.client(ctx),
		Options: app.consoleOptions(),
		Log:     app.log,
	}

	// Restore the page size and search from the previous session.
	db := app.store()
	if db != nil {
		deps.Journal = db
		if v, ok, err := db.Pref(ctx, store.PrefPageSize); err == nil && ok {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				deps.Options.PageSize = n
			}
		}
		if v, ok, err := db.Pref(ctx, store.PrefFilter); err == nil && ok {
			deps.Filter = v
		}
	}

	appModel := tui.NewAppModel(deps)
	defer appModel.Close()

	p := tea.NewProgram(appModel, tea.WithAltScreen(), tea.WithContext(ctx))
	appModel.SetProgram(p)
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	if db != nil {
		if err := db.PruneActivity(ctx, journalKeep); err != nil {
			app.log.Warn("prune journal failed", zap.Error(err))
		}
	}
	if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
		return m.Err
	}
	return nil
}
