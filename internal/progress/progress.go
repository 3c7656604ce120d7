// Package progress derives per-day study progress from the review outcome log.
package progress

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/vytor/lingoflash/internal/errors"
	"github.com/vytor/lingoflash/internal/logger"
	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/repository"
)

// Service answers progress queries. Nothing is cached; every call reads the
// outcome log again.
type Service interface {
	// Daily returns one entry per active day on or after since, oldest first.
	// A zero since returns the whole history.
	Daily(ctx context.Context, since time.Time) ([]models.DailyProgress, error)
	// Today returns the entry for the calendar day containing now. Days without
	// activity come back with zero counts and a zero streak.
	Today(ctx context.Context, now time.Time) (models.DailyProgress, error)
}

type service struct {
	outcomes repository.OutcomeRepository
	loc      *time.Location
}

// NewService creates a Service that buckets outcomes into days in loc.
func NewService(outcomes repository.OutcomeRepository, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{outcomes: outcomes, loc: loc}
}

func (s *service) Daily(ctx context.Context, since time.Time) ([]models.DailyProgress, error) {
	log := logger.FromContext(ctx).WithPrefix("progress")
	log.Debug("computing daily progress since %s", since.Format(time.DateOnly))

	days, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		return days, nil
	}
	cutoff := dayOf(since, s.loc)
	idx := sort.Search(len(days), func(i int) bool { return !days[i].Date.Before(cutoff) })
	return days[idx:], nil
}

func (s *service) Today(ctx context.Context, now time.Time) (models.DailyProgress, error) {
	days, err := s.all(ctx)
	if err != nil {
		return models.DailyProgress{}, err
	}
	today := dayOf(now, s.loc)
	for i := len(days) - 1; i >= 0; i-- {
		if days[i].Date.Equal(today) {
			return days[i], nil
		}
	}
	return models.DailyProgress{Date: today}, nil
}

// all reads the full log; streaks need history before any cutoff.
func (s *service) all(ctx context.Context) ([]models.DailyProgress, error) {
	outcomes, err := s.outcomes.List(ctx, time.Time{})
	if err != nil {
		logger.FromContext(ctx).WithPrefix("progress").Error("failed to read outcome log: %v", err)
		return nil, errors.NewPersistenceError("list outcomes", err)
	}
	return Aggregate(outcomes, s.loc), nil
}

// Aggregate buckets outcomes into calendar days in loc. The result is ordered
// by date. StreakDays counts consecutive active days ending at each entry.
func Aggregate(outcomes []models.ReviewOutcome, loc *time.Location) []models.DailyProgress {
	if loc == nil {
		loc = time.UTC
	}

	type bucket struct {
		total   int
		correct int
		spent   time.Duration
	}
	buckets := make(map[time.Time]*bucket)
	for _, o := range outcomes {
		d := dayOf(o.Timestamp, loc)
		b, ok := buckets[d]
		if !ok {
			b = &bucket{}
			buckets[d] = b
		}
		b.total++
		if o.Correct {
			b.correct++
		}
		b.spent += o.TimeSpent
	}

	dates := make([]time.Time, 0, len(buckets))
	for d := range buckets {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]models.DailyProgress, 0, len(dates))
	for i, d := range dates {
		b := buckets[d]
		streak := 1
		if i > 0 && dates[i-1].Equal(previousDay(d, loc)) {
			streak = out[i-1].StreakDays + 1
		}
		out = append(out, models.DailyProgress{
			Date:             d,
			CompletedItems:   b.total,
			TotalTimeMinutes: int(math.Round(b.spent.Minutes())),
			StreakDays:       streak,
			AccuracyPercent:  float64(b.correct) / float64(b.total) * 100,
		})
	}
	return out
}

// dayOf truncates t to midnight of its calendar day in loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// previousDay steps back one calendar day; AddDate keeps DST days intact.
func previousDay(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.AddDate(0, 0, -1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
