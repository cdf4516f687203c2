package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/ispcrm/internal/config"
	"github.com/JonMunkholm/ispcrm/internal/core"
	"github.com/JonMunkholm/ispcrm/internal/logging"
	"github.com/JonMunkholm/ispcrm/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("DATABASE_URL is required for this command (or use --dry-run where supported)")

// app holds state shared by every subcommand.
type app struct {
	logLevel string
	envFile  string
	cfg      *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Import, export and maintain CRM records",
		Long:          "crmctl runs the spreadsheet import and export pipeline against the CRM database.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Env file to load (default: .env if present)")

	root.AddCommand(
		a.importCmd(),
		a.exportCmd(),
		a.templateCmd(),
		a.schemasCmd(),
		a.migrateCmd(),
		a.expireCmd(),
		a.scopeCmd(),
		a.tokenCmd(),
	)
	return root
}

// setup loads the environment and configuration and installs the logger.
// Logs go to stderr so exports can be written to stdout.
func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Overload(a.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Overload()
	}

	cfg, err := config.LoadLocal()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))

	n, err := core.LoadAliasFile(cfg.Import.AliasFile)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Debug("alias overrides loaded", "path", cfg.Import.AliasFile, "aliases", n)
	}

	a.cfg = cfg
	return nil
}

// openPostgres connects to DATABASE_URL. The returned func closes the pool.
func (a *app) openPostgres(ctx context.Context) (*store.Postgres, func(), error) {
	if a.cfg.Database.URL == "" {
		return nil, nil, errNoDatabase
	}
	pool, err := store.Connect(ctx, store.PoolConfig{
		URL:             a.cfg.Database.URL,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        1,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: a.cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgres(pool), pool.Close, nil
}

func (a *app) service(st core.Store) *core.Service {
	return core.NewService(st, core.ServiceConfig{
		MaxConcurrent: 1,
		MaxWait:       a.cfg.Import.MaxWaitTime,
		Timeout:       a.cfg.Import.Timeout,
	})
}
