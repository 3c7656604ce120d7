package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vytor/lingoflash/internal/config"
	"github.com/vytor/lingoflash/internal/db"
	"github.com/vytor/lingoflash/internal/logger"
	"github.com/vytor/lingoflash/internal/progress"
	"github.com/vytor/lingoflash/internal/repository"
	"github.com/vytor/lingoflash/internal/repository/sqlite"
	"github.com/vytor/lingoflash/internal/session"
	"github.com/vytor/lingoflash/internal/store"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:          "lingoflash",
	Short:        "Spaced-repetition study core for English learners",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if p, _ := cmd.Flags().GetString("db"); p != "" {
			cfg.DBPath = p
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.LogLevel = lvl
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger.SetDefault(logger.New(
			logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
			logger.WithOutput(cmd.ErrOrStderr()),
			logger.WithColors(true),
		))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "DEBUG, INFO, WARN or ERROR (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(statsCmd)
}

// app holds the wired components every command works against.
type app struct {
	db       *db.DB
	store    *store.Store
	outcomes repository.OutcomeRepository
	runner   *session.Runner
	progress progress.Service
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	st := store.New(sqlite.NewItemRepository(database.DB))
	outcomes := sqlite.NewOutcomeRepository(database.DB)
	runner := session.NewRunner(st, outcomes,
		session.WithMaxItems(cfg.SessionMaxItems),
		session.WithRetryPolicy(session.RetryPolicy{
			MaxAttempts:     cfg.PersistMaxAttempts,
			InitialInterval: cfg.PersistInitialBackoff,
			MaxInterval:     cfg.PersistMaxBackoff,
		}),
	)
	if err := runner.Init(ctx); err != nil {
		database.Close()
		return nil, err
	}

	return &app{
		db:       database,
		store:    st,
		outcomes: outcomes,
		runner:   runner,
		progress: progress.NewService(outcomes, cfg.Location()),
	}, nil
}

// Close flushes buffered reviews and closes the database. The database is
// closed even when the flush fails; the error is still reported.
func (a *app) Close(ctx context.Context) error {
	flushErr := a.runner.Close(ctx)
	if flushErr != nil {
		if n := len(a.runner.Pending()); n > 0 {
			logger.FromContext(ctx).Error("%d reviews could not be saved", n)
		}
	}
	if err := a.db.Close(); err != nil {
		return err
	}
	return flushErr
}

// withApp opens the app for one command and always closes it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	ctx := logger.NewContext(cmd.Context(), logger.Default())
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
