package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/register/internal/config"
	"github.com/JonMunkholm/register/internal/logging"
	"github.com/JonMunkholm/register/internal/metrics"
	"github.com/JonMunkholm/register/internal/service"
	"github.com/JonMunkholm/register/internal/store"
	"github.com/JonMunkholm/register/internal/web"
)

// resultCleanupInterval is how often expired registration results are purged.
const resultCleanupInterval = time.Minute

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	// Accounts live in Postgres when configured, otherwise in memory
	var (
		st     store.AccountStore
		opts   []web.ServerOption
		closer = func() {}
	)
	if cfg.Database.Enabled() {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		closer = pool.Close

		pg := store.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		st = pg
		opts = append(opts, web.WithHealthCheck(pg.Ping))
		slog.Info("connected to database", "max_conns", cfg.Database.MaxConns)
	} else {
		st = store.NewMemory()
		slog.Warn("DATABASE_URL not set, registered accounts are kept in memory only")
	}
	defer closer()

	var svcOpts []service.Option
	if cfg.Metrics.Enabled {
		m := metrics.New()
		svcOpts = append(svcOpts, service.WithMetrics(m))
		opts = append(opts, web.WithMetrics(m))
	}

	svc := service.New(st, cfg.Upload, svcOpts...)
	server := web.NewServer(svc, cfg, opts...)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go svc.StartCleanup(jobCtx, resultCleanupInterval)

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := svc.ActiveRegistrations(); active > 0 {
			slog.Info("waiting for registrations to complete", "active", active)
			if err := svc.WaitForRegistrations(shutdownCtx); err != nil {
				slog.Warn("registrations did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		closer()
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}
