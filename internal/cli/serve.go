package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apphttp "expenses/internal/http"
	applog "expenses/internal/log"
	"expenses/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := a.logger
	if a.cfg.UsingDevSecret() {
		logger.Warn("SECRET_KEY is not set; using the development session key")
	}

	m := metrics.New()
	svc, err := NewExpenseService(ctx, a.cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close expense service", applog.FieldError, err)
		}
	}()

	srv, err := apphttp.NewServer(a.cfg, svc, logger, m)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting expenses server",
			applog.FieldOperation, applog.OpStartup,
			"addr", srv.Addr,
			"db", a.cfg.SQLiteDBPath,
			"metrics", a.cfg.MetricsEnabled,
			"events", a.cfg.EventsEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.LogError(shutdownCtx, "Server shutdown error", err, applog.OpShutdown, nil)
			return err
		}
		logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
		return nil
	})

	return g.Wait()
}
