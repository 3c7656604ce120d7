package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vytor/lingoflash/internal/api"
	"github.com/vytor/lingoflash/internal/jobs"
	"github.com/vytor/lingoflash/internal/logger"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the health endpoints and background jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	log := logger.Default()
	ctx = logger.NewContext(ctx, log)

	log.Info("lingoflash starting")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("session_max_items=%d", cfg.SessionMaxItems)
	log.Debug("persist_max_attempts=%d", cfg.PersistMaxAttempts)
	log.Debug("flush_interval=%s", cfg.FlushInterval)
	log.Debug("digest_at=%s timezone=%s", cfg.DigestAt, cfg.Timezone)

	a, err := openApp(ctx, cfg)
	if err != nil {
		log.Error("startup failed: %v", err)
		return err
	}

	srv := &api.Server{
		DB:       a.db,
		Items:    a.store,
		Progress: a.progress,
		Runner:   a.runner,
	}
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler := jobs.New(a.runner, a.runner, jobs.Config{
		FlushInterval: cfg.FlushInterval,
		DigestAt:      cfg.DigestAt,
		Location:      cfg.Location(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if runErr != nil {
		log.Error("server error: %v", runErr)
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.Error("shutdown flush failed: %v", err)
		if runErr == nil {
			runErr = err
		}
	}
	log.Info("lingoflash stopped")
	return runErr
}
