package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triageterm/internal/model"
	"triageterm/internal/stub"
)

var demoSubmissions = []struct {
	title, body string
	source      model.SourceType
}{
	{"Invoice overdue", "Hello, invoice 2231 is still showing as unpaid. Can you check the status?", model.SourcePlainText},
	{"Happy holidays", "Thank you for a great year, happy holidays to the whole team!", model.SourcePlainText},
	{"Login problem", "I get an error every time I try to log in since yesterday. Please help.", model.SourceTXTFile},
	{"Newsletter", "Our monthly newsletter is out with all the highlights from the quarter.", model.SourcePlainText},
	{"Contract request", "Please send the signed contract for the new support plan.", model.SourcePDFFile},
}

func newStubCmd(app *App) *cobra.Command {
	var (
		addr   string
		prefix string
		demo   bool
	)
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run an in-memory submission service for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.cfg.Stub.Addr
			}
			if prefix == "" {
				prefix = app.cfg.Stub.Prefix
			}
			srv := stub.New(stub.WithLogger(app.log))
			if demo {
				for _, d := range demoSubmissions {
					srv.Seed(d.title, d.body, d.source)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			server := &http.Server{
				Handler:      srv.Handler(prefix),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}
			return serveUntilDone(ctx, server, ln, app.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8000)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Route prefix (default /api/v1)")
	cmd.Flags().BoolVar(&demo, "demo", false, "Start with a few sample submissions")
	return cmd
}

// serveUntilDone serves on ln until ctx is cancelled, then shuts down gracefully.
func serveUntilDone(ctx context.Context, server *http.Server, ln net.Listener, log *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("stub service listening", zap.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down stub service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}
