package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vytor/lingoflash/internal/errors"
	"github.com/vytor/lingoflash/internal/logger"
	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/repository"
	"github.com/vytor/lingoflash/internal/scheduler"
)

// Mastery thresholds used by Stats.
const (
	MasteredThreshold   = 80
	StrugglingThreshold = 40
)

// Store owns the canonical set of learning items. It keeps an in-memory
// view loaded once from the repository; every write goes to the repository
// first and only lands in memory when that succeeds.
type Store struct {
	repo  repository.ItemRepository
	locks *keyLock
	now   func() time.Time

	mu     sync.RWMutex
	order  []string
	items  map[string]models.LearningItem
	loaded bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(repo repository.ItemRepository, opts ...Option) *Store {
	s := &Store{
		repo:  repo,
		locks: newKeyLock(),
		now:   time.Now,
		items: make(map[string]models.LearningItem),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the full item set from the repository. Calling it again reloads.
func (s *Store) Init(ctx context.Context) error {
	log := logger.FromContext(ctx).WithPrefix("store")

	items, err := s.repo.Load(ctx)
	if err != nil {
		log.Error("failed to load items: %v", err)
		return errors.NewPersistenceError("load items", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.items = make(map[string]models.LearningItem, len(items))
	for _, it := range items {
		if _, dup := s.items[it.ID]; !dup {
			s.order = append(s.order, it.ID)
		}
		s.items[it.ID] = it.Clone()
	}
	s.loaded = true
	log.Info("content store loaded: %d items", len(s.order))
	return nil
}

// Close drops the in-memory view. Writes are synchronous, so there is
// nothing to flush.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logger.FromContext(ctx).WithPrefix("store").Debug("closing content store: %d items", len(s.order))
	s.order = nil
	s.items = make(map[string]models.LearningItem)
	s.loaded = false
	return nil
}

// Loaded reports whether Init has run since the last Close.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) GetByID(id string) (models.LearningItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return models.LearningItem{}, errors.NewNotFoundError("learning item", id)
	}
	return it.Clone(), nil
}

// List returns items matching filter in insertion order.
func (s *Store) List(filter models.ItemFilter) []models.LearningItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.LearningItem, 0, len(s.order))
	for _, id := range s.order {
		it := s.items[id]
		if filter.Matches(it) {
			out = append(out, it.Clone())
		}
	}
	return out
}

// ListByKindAndDifficulty is List with only the kind and difficulty filters.
// Empty values match everything.
func (s *Store) ListByKindAndDifficulty(kind models.Kind, difficulty models.Difficulty) []models.LearningItem {
	return s.List(models.ItemFilter{Kind: kind, Difficulty: difficulty})
}

// Upsert validates and inserts or fully replaces item. Writes for the same id
// are serialized; readers see either the old or the new item, never a mix.
func (s *Store) Upsert(ctx context.Context, item models.LearningItem) (models.LearningItem, error) {
	log := logger.FromContext(ctx).WithPrefix("store")

	item = item.Clone()
	item.ID = strings.TrimSpace(item.ID)
	item.Tags = models.NormalizeTags(item.Tags)
	if err := Validate(item); err != nil {
		log.Debug("rejected item %q: %v", item.ID, err)
		return models.LearningItem{}, err
	}

	unlock := s.locks.Lock(item.ID)
	defer unlock()

	if item.CreatedAt.IsZero() {
		s.mu.RLock()
		existing, ok := s.items[item.ID]
		s.mu.RUnlock()
		if ok {
			item.CreatedAt = existing.CreatedAt
		} else {
			item.CreatedAt = s.now().UTC()
		}
	}

	if err := s.repo.Save(ctx, item); err != nil {
		log.Warn("failed to persist item %s: %v", item.ID, err)
		return models.LearningItem{}, errors.NewPersistenceError("save item", err)
	}

	s.mu.Lock()
	if _, ok := s.items[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
	s.mu.Unlock()

	log.Debug("item upserted: id=%s, mastery=%d, reviews=%d", item.ID, item.MasteryLevel, item.ReviewCount)
	return item.Clone(), nil
}

// Remove deletes id and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("store")

	unlock := s.locks.Lock(id)
	defer unlock()

	existed, err := s.repo.Delete(ctx, id)
	if err != nil {
		log.Warn("failed to delete item %s: %v", id, err)
		return false, errors.NewPersistenceError("delete item", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; ok {
		existed = true
		delete(s.items, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	log.Debug("item removed: id=%s, existed=%t", id, existed)
	return existed, nil
}

// Stats summarises the item set at now.
func (s *Store) Stats(now time.Time) models.ItemStats {
	return Summarize(s.List(models.ItemFilter{}), now)
}

// Summarize computes ItemStats over items at now.
func Summarize(items []models.LearningItem, now time.Time) models.ItemStats {
	var st models.ItemStats
	total := 0
	for _, it := range items {
		st.TotalItems++
		total += it.MasteryLevel
		switch {
		case it.IsNew():
			st.NewItems++
		case scheduler.IsDue(it, now):
			st.DueItems++
		}
		if it.MasteryLevel >= MasteredThreshold {
			st.MasteredItems++
		}
		if !it.IsNew() && it.MasteryLevel < StrugglingThreshold {
			st.StrugglingItems++
		}
	}
	if st.TotalItems > 0 {
		st.AvgMastery = float64(total) / float64(st.TotalItems)
	}
	return st
}

// Validate checks the enumerated fields and scheduling invariants of item.
func Validate(item models.LearningItem) error {
	if item.ID == "" {
		return errors.NewValidationError("id", "must not be empty")
	}
	if !item.Kind.Valid() {
		return errors.NewValidationError("kind", "unknown kind "+string(item.Kind))
	}
	if !item.Difficulty.Valid() {
		return errors.NewValidationError("difficulty", "unknown difficulty "+string(item.Difficulty))
	}
	if item.MasteryLevel < models.MinMastery || item.MasteryLevel > models.MaxMastery {
		return errors.NewValidationError("mastery_level", "must be between 0 and 100")
	}
	if item.ReviewCount < 0 {
		return errors.NewValidationError("review_count", "must not be negative")
	}
	if item.LastReviewed != nil && item.NextReview != nil && !item.NextReview.After(*item.LastReviewed) {
		return errors.NewValidationError("next_review", "must be after last_reviewed")
	}
	return nil
}
