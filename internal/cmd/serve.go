package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bisection/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with live iteration streaming",
		Long: `serve starts the HTTP service:

  POST /solve            synchronous solve, returns {error} or {iterations, result, log}
  POST /start            background solve, returns {id, xs, ys}
  POST /stop?id=         stop a background solve
  GET  /stream?id=       server-sent events: start, iter, done, error, stopped
  GET  /export?id=       trace as csv, json or md (format=)
  GET  /report?id=       HTML report
  GET  /history?limit=   recent runs
  GET  /metrics          Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// serve блокируется до отмены ctx, затем корректно гасит сервер
func (a *app) serve(ctx context.Context) error {
	var opts []server.Option
	st, err := a.openHistory()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		opts = append(opts, server.WithHistory(st))
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           server.New(a.cfg, opts...).NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", a.cfg.Addr, "evaluator", a.cfg.Evaluator, "history", a.cfg.DBPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
