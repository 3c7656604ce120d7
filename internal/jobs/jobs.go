// Package jobs runs the periodic background work of the serve command.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/vytor/lingoflash/internal/logger"
	"github.com/vytor/lingoflash/internal/models"
)

// Flusher re-issues buffered review write-backs.
type Flusher interface {
	RetryPending(ctx context.Context) (int, error)
}

// StatsSource summarises the item set.
type StatsSource interface {
	Stats(now time.Time) models.ItemStats
}

// Config controls job timing.
type Config struct {
	FlushInterval time.Duration
	// DigestAt is a "HH:MM" wall clock time in Location.
	DigestAt string
	Location *time.Location
}

// Scheduler owns the gocron scheduler and the jobs registered on it.
type Scheduler struct {
	cron    *gocron.Scheduler
	flusher Flusher
	stats   StatsSource
	cfg     Config
	now     func() time.Time
}

func New(flusher Flusher, stats StatsSource, cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := gocron.NewScheduler(cfg.Location)
	s.SingletonModeAll()
	return &Scheduler{
		cron:    s,
		flusher: flusher,
		stats:   stats,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start registers the flush and digest jobs and runs them in the background.
// ctx is handed to every job run.
func (s *Scheduler) Start(ctx context.Context) error {
	log := logger.FromContext(ctx).WithPrefix("jobs")

	if s.cfg.FlushInterval > 0 {
		if _, err := s.cron.Every(s.cfg.FlushInterval).Do(func() { s.FlushPending(ctx) }); err != nil {
			return err
		}
	}
	if s.cfg.DigestAt != "" {
		if _, err := s.cron.Every(1).Day().At(s.cfg.DigestAt).Do(func() { s.Digest(ctx) }); err != nil {
			return err
		}
	}

	s.cron.StartAsync()
	log.Info("jobs started: flush_interval=%s, digest_at=%s %s", s.cfg.FlushInterval, s.cfg.DigestAt, s.cfg.Location)
	return nil
}

// Stop halts the scheduler. Runs already in flight finish first.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// FlushPending is the body of the flush job.
func (s *Scheduler) FlushPending(ctx context.Context) {
	log := logger.FromContext(ctx).WithPrefix("jobs")
	n, err := s.flusher.RetryPending(ctx)
	if err != nil {
		log.Warn("pending flush incomplete after %d writes: %v", n, err)
		return
	}
	if n > 0 {
		log.Info("pending flush wrote %d outcomes", n)
	}
}

// Digest logs how much is waiting to be studied.
func (s *Scheduler) Digest(ctx context.Context) models.ItemStats {
	st := s.stats.Stats(s.now())
	logger.FromContext(ctx).WithPrefix("jobs").WithFields(map[string]any{
		"due":        st.DueItems,
		"new":        st.NewItems,
		"struggling": st.StrugglingItems,
	}).Info("daily digest: %d items waiting", st.DueItems+st.NewItems)
	return st
}
