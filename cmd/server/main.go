package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/ispcrm/internal/config"
	"github.com/JonMunkholm/ispcrm/internal/core"
	_ "github.com/JonMunkholm/ispcrm/internal/core/schemas" // Register all schemas
	"github.com/JonMunkholm/ispcrm/internal/logging"
	"github.com/JonMunkholm/ispcrm/internal/store"
	"github.com/JonMunkholm/ispcrm/internal/web"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

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

	// Amounts are JSON numbers in API responses.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	pool, err := store.Connect(ctx, store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	pg := store.NewPostgres(pool)
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		slog.Info("database schema applied")
	}

	n, err := core.LoadAliasFile(cfg.Import.AliasFile)
	if err != nil {
		slog.Error("failed to load alias overrides", "path", cfg.Import.AliasFile, "error", err)
		os.Exit(1)
	}
	if n > 0 {
		slog.Info("alias overrides loaded", "path", cfg.Import.AliasFile, "aliases", n)
	}

	service := core.NewService(pg, core.ServiceConfig{
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
	})
	for _, s := range service.ListSchemas() {
		slog.Debug("schema registered", "entity", s.Entity, "fields", len(s.Fields))
	}

	// Background jobs stop when jobCtx is cancelled.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if cfg.Scheduler.Enabled {
		loc, _ := cfg.Scheduler.Location() // checked by Validate
		if _, err := service.StartExpiryScheduler(jobCtx, core.SchedulerConfig{
			Spec:       cfg.Scheduler.Spec,
			Location:   loc,
			RunAtStart: cfg.Scheduler.RunAtStart,
		}); err != nil {
			slog.Error("failed to start expiry scheduler", "error", err)
			os.Exit(1)
		}
	}

	server := web.NewServer(jobCtx, service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := service.LimiterStatus(); st.Active > 0 {
			slog.Info("waiting for imports to complete", "active", st.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
