package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
	_ "github.com/JonMunkholm/inventory/internal/core/kinds" // Register families and import kinds
	"github.com/JonMunkholm/inventory/internal/logging"
	"github.com/JonMunkholm/inventory/internal/store/postgres"
	"github.com/JonMunkholm/inventory/internal/store/sqlite"
	"github.com/JonMunkholm/inventory/internal/telemetry"
	"github.com/JonMunkholm/inventory/internal/web"
)

// backend is what the server needs from a store implementation.
type backend interface {
	core.Store
	web.Pinger
}

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

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}

	service := core.NewService(store, core.ServiceConfig{
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		MaxWaitTime:          cfg.Import.MaxWaitTime,
		ImportTimeout:        cfg.Import.Timeout,
		MaxAttempts:          cfg.Sequence.MaxAttempts,
		DedupeBatch:          cfg.Import.DedupeBatch,
		ProgressInterval:     cfg.Import.ProgressInterval,
	})

	slog.Info("import kinds registered",
		"kinds", core.KindCount(),
		"families", len(service.Families()),
	)
	for _, f := range service.Families() {
		slog.Debug("code family", "name", f.Name, "prefix", f.Prefix, "width", f.Width, "capacity", f.Capacity())
	}

	server := web.NewServer(service, store, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests, then let running imports finish
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("trace flush failed", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		closeStore()
		os.Exit(1)
	}

	<-done
	closeStore()
	slog.Info("server stopped")
}

// openStore connects the configured backend, applying migrations first
// for PostgreSQL when enabled.
func openStore(ctx context.Context, db config.DatabaseConfig) (backend, func(), error) {
	switch db.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(db.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("opened sqlite database", "path", db.SQLitePath)
		return store, func() { _ = store.Close() }, nil

	case config.DriverPostgres:
		if db.AutoMigrate {
			if err := postgres.Migrate(db.URL); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}

		store, err := postgres.Open(ctx, db.URL, postgres.PoolOptions{
			MaxConns:        db.MaxConns,
			MinConns:        db.MinConns,
			MaxConnLifetime: db.MaxConnLifetime,
			MaxConnIdleTime: db.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}

		if u, err := url.Parse(db.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", db.Driver)
	}
}
