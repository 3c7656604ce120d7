// Package memory holds map-backed repositories for tests and throwaway runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/repository"
)

// FailFunc decides whether a repository call should fail. op is the method
// name ("Save", "Append", ...).
type FailFunc func(op string) error

// ItemRepository keeps items in insertion order.
type ItemRepository struct {
	mu    sync.Mutex
	order []string
	items map[string]models.LearningItem
	fail  FailFunc
}

var _ repository.ItemRepository = (*ItemRepository)(nil)

func NewItemRepository(seed ...models.LearningItem) *ItemRepository {
	r := &ItemRepository{items: make(map[string]models.LearningItem)}
	for _, it := range seed {
		r.put(it)
	}
	return r
}

// FailWith installs a fault injector; nil clears it.
func (r *ItemRepository) FailWith(fn FailFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fn
}

func (r *ItemRepository) check(op string) error {
	if r.fail == nil {
		return nil
	}
	return r.fail(op)
}

func (r *ItemRepository) put(it models.LearningItem) {
	if _, ok := r.items[it.ID]; !ok {
		r.order = append(r.order, it.ID)
	}
	r.items[it.ID] = it.Clone()
}

func (r *ItemRepository) Load(ctx context.Context) ([]models.LearningItem, error) {
	return r.List(ctx, models.ItemFilter{})
}

func (r *ItemRepository) List(_ context.Context, filter models.ItemFilter) ([]models.LearningItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check("List"); err != nil {
		return nil, err
	}
	out := make([]models.LearningItem, 0, len(r.order))
	for _, id := range r.order {
		it := r.items[id]
		if filter.Matches(it) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (r *ItemRepository) Save(_ context.Context, it models.LearningItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check("Save"); err != nil {
		return err
	}
	r.put(it)
	return nil
}

func (r *ItemRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check("Delete"); err != nil {
		return false, err
	}
	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Get returns the stored copy of id; test helper.
func (r *ItemRepository) Get(id string) (models.LearningItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	return it.Clone(), ok
}

// OutcomeRepository is an append-only slice.
type OutcomeRepository struct {
	mu       sync.Mutex
	outcomes []models.ReviewOutcome
	fail     FailFunc
}

var _ repository.OutcomeRepository = (*OutcomeRepository)(nil)

func NewOutcomeRepository() *OutcomeRepository {
	return &OutcomeRepository{}
}

func (r *OutcomeRepository) FailWith(fn FailFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fn
}

func (r *OutcomeRepository) Append(_ context.Context, o models.ReviewOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		if err := r.fail("Append"); err != nil {
			return err
		}
	}
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *OutcomeRepository) List(_ context.Context, since time.Time) ([]models.ReviewOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		if err := r.fail("List"); err != nil {
			return nil, err
		}
	}
	out := make([]models.ReviewOutcome, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		if since.IsZero() || !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}
