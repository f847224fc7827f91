package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infralens/infralens/internal/auth/providers"
	"github.com/infralens/infralens/internal/backend"
	"github.com/infralens/infralens/internal/config"
	httpapp "github.com/infralens/infralens/internal/http"
	"github.com/infralens/infralens/internal/http/handlers"
	"github.com/infralens/infralens/internal/logging"
	"github.com/infralens/infralens/internal/metrics"
	"github.com/infralens/infralens/internal/querycache"
	"github.com/infralens/infralens/internal/refresh"
	"github.com/infralens/infralens/internal/sessionstore"
	"github.com/infralens/infralens/internal/telemetry"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server and the status poller.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.BootstrapFromEnv(logging.BootstrapOptions{
			Command: cmd.CommandPath(),
			Writer:  cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), logger)
	},
}

func runServe(parent context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, version, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	_, metricsErrCh := metrics.StartServer(ctx, cfg.MetricsAddr)

	client, err := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	store, err := sessionstore.New(ctx, sessionstore.Options{
		Lifetime:     cfg.SessionLifetime,
		CookieSecure: cfg.AuthCookieSecure,
		DatabaseURL:  cfg.SessionDatabaseURL,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	cache := querycache.New(querycache.Options{
		StaleTime: cfg.CacheStaleTime,
		GCTime:    cfg.CacheGCTime,
	})

	h := &handlers.Handlers{
		Cfg:       cfg,
		Backend:   client,
		Cache:     cache,
		Refresher: &refresh.Refresher{Backend: client, Cache: cache},
		Sessions:  store.Sessions,
		Passwords: providers.NewPasswordProvider(client),
		Tokens:    providers.NewTokenProvider(client),
	}

	poller := &querycache.Poller{
		Cache:    cache,
		Key:      handlers.StatusKey(),
		Fetch:    h.FetchStatus,
		Interval: cfg.StatusPollInterval,
	}
	go poller.Run(ctx)

	srv, err := httpapp.NewEchoServer(h, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "backend", cfg.BackendURL, "persistent_sessions", store.Persistent())
		errCh <- srv.Start(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if errors.Is(parent.Err(), context.Canceled) {
			return parent.Err()
		}
		return nil
	case err := <-errCh:
		return err
	case err := <-metricsErrCh:
		return err
	}
}
