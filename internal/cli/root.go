package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triageterm/internal/api"
	"triageterm/internal/config"
	"triageterm/internal/console"
	"triageterm/internal/logging"
	"triageterm/internal/store"
)

type App struct {
	ConfigFile string
	APIURL     string
	Output     string

	cfg    *config.Config
	log    *zap.Logger
	db     *store.SQLiteStore
	dbErr  error
	errOut io.Writer
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "triageterm",
		Short:        "Terminal console for the email triage service",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive console
  triageterm

  # Scriptable commands
  triageterm list --page 2 --size 20
  triageterm search invoice --output json
  triageterm create text --title "Refund" --body "Please refund order 1234"
  triageterm delete 12 13

  # Local backend for development
  triageterm stub --demo
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive console.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd, cmd == cmd.Root() || cmd.Name() == "tui")
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.close()
	}

	cmd.PersistentFlags().StringVar(&app.ConfigFile, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api", "", "Service base URL (overrides TRIAGE_API_BASE_URL)")
	cmd.PersistentFlags().StringVarP(&app.Output, "output", "o", "table", "Output format (table|json|yaml)")

	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newSearchCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newCreateCmd(app))
	cmd.AddCommand(newImportGmailCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newStubCmd(app))

	return cmd
}

// setup loads configuration and builds the logger. The interactive console
// owns the terminal, so it logs to a file instead of stderr.
func (a *App) setup(cmd *cobra.Command, interactive bool) error {
	switch a.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (table|json|yaml)", a.Output)
	}

	cfg, err := config.Load(a.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.APIURL != "" {
		cfg.API.BaseURL = strings.TrimRight(a.APIURL, "/")
	}
	a.cfg = cfg
	a.errOut = cmd.ErrOrStderr()

	if interactive {
		a.log, err = logging.NewFile(cfg.Log)
	} else {
		a.log, err = logging.New(cfg.Log)
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

func (a *App) close() error {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// store opens the local journal on first use. A journal that cannot be
// opened is logged and skipped; it never blocks a command.
func (a *App) store() *store.SQLiteStore {
	if a.db != nil || a.dbErr != nil {
		return a.db
	}
	a.db, a.dbErr = store.NewSQLiteStore(a.cfg.Storage.DBPath)
	if a.dbErr != nil {
		a.log.Warn("local journal unavailable", zap.String("path", a.cfg.Storage.DBPath), zap.Error(a.dbErr))
	}
	return a.db
}

func (a *App) client(ctx context.Context) *api.Client {
	hc := api.NewHTTPClient(ctx, a.cfg.API.Timeout, api.OAuthConfig{
		TokenURL:     a.cfg.OAuth.TokenURL,
		ClientID:     a.cfg.OAuth.ClientID,
		ClientSecret: a.cfg.OAuth.ClientSecret,
		Scopes:       a.cfg.OAuth.Scopes,
	})
	return api.NewClient(a.cfg.API.BaseURL, api.WithHTTPDoer(hc), api.WithLogger(a.log))
}

func (a *App) consoleOptions() console.Options {
	return console.Options{
		PageSize:            a.cfg.UI.PageSize,
		SearchDebounce:      a.cfg.UI.SearchDebounce,
		StepBackOnEmptyPage: a.cfg.UI.StepBackOnEmpty,
	}
}

// activityOnly journals what a command did without touching the
// preferences the interactive console restores.
type activityOnly struct {
	*store.SQLiteStore
}

func (activityOnly) SetPref(context.Context, string, string) error { return nil }

// newConsole builds the coordinator used by one-shot commands. Failures come
// back as errors, so only non-error notices are printed.
func (a *App) newConsole(ctx context.Context) *console.Console {
	opts := []console.Option{
		console.WithLogger(a.log),
		console.WithNotifier(func(n console.Notice) {
			if n.Level != console.LevelError {
				fmt.Fprintf(a.errOut, "%s: %s\n", n.Level, n.Text)
			}
		}),
	}
	if db := a.store(); db != nil {
		opts = append(opts, console.WithJournal(activityOnly{db}))
	}
	return console.New(a.client(ctx), a.consoleOptions(), opts...)
}
