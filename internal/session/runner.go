package session

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/vytor/lingoflash/internal/errors"
	"github.com/vytor/lingoflash/internal/logger"
	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/repository"
	"github.com/vytor/lingoflash/internal/scheduler"
	"github.com/vytor/lingoflash/internal/store"
)

// ContentStore is the part of the content store a Runner depends on.
type ContentStore interface {
	Init(ctx context.Context) error
	Close(ctx context.Context) error
	GetByID(id string) (models.LearningItem, error)
	List(filter models.ItemFilter) []models.LearningItem
	Upsert(ctx context.Context, item models.LearningItem) (models.LearningItem, error)
}

// RetryPolicy bounds how hard a write-back is retried before it is buffered.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the config defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     5,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Pending is a review whose write-back has not fully reached storage.
type Pending struct {
	Outcome models.ReviewOutcome
	Item    models.LearningItem
	// ItemSaved is set once the scheduled item is stored, so a retry only
	// appends the outcome.
	ItemSaved bool
	Attempts  int
	LastErr   error
}

// Runner drives sessions against a content store and an outcome log.
type Runner struct {
	store    ContentStore
	outcomes repository.OutcomeRepository
	policy   RetryPolicy
	maxItems int
	newID    func() string

	// writeMu serializes write-backs and is held across retry backoff.
	writeMu sync.Mutex
	// mu guards pending and the fields of its entries. It is never held
	// while waiting on storage.
	mu      sync.Mutex
	pending []*Pending
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithRetryPolicy(p RetryPolicy) RunnerOption {
	return func(r *Runner) { r.policy = p }
}

// WithMaxItems sets the session size used when NewSession gets no limit.
func WithMaxItems(n int) RunnerOption {
	return func(r *Runner) { r.maxItems = n }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) RunnerOption {
	return func(r *Runner) { r.newID = fn }
}

func NewRunner(store ContentStore, outcomes repository.OutcomeRepository, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:    store,
		outcomes: outcomes,
		policy:   DefaultRetryPolicy,
		maxItems: DefaultMaxItems,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy.MaxAttempts < 1 {
		r.policy.MaxAttempts = 1
	}
	return r
}

// Init loads the content store.
func (r *Runner) Init(ctx context.Context) error {
	return r.store.Init(ctx)
}

// Close flushes pending write-backs and tears the store down. If anything is
// still pending the store is left open and the error is returned.
func (r *Runner) Close(ctx context.Context) error {
	if _, err := r.RetryPending(ctx); err != nil {
		return err
	}
	return r.store.Close(ctx)
}

// NewSession builds a session from the newest known item states, so items
// whose write-back is still buffered are scheduled from their answered state.
func (r *Runner) NewSession(now time.Time, maxItems int) *Session {
	if maxItems <= 0 {
		maxItems = r.maxItems
	}
	items := BuildSession(r.Items(), now, maxItems)
	return newSession(r.newID(), items)
}

// Items lists the store's items with buffered states laid over them. Items
// removed from the store stay removed.
func (r *Runner) Items() []models.LearningItem {
	r.mu.Lock()
	buffered := make(map[string]models.LearningItem, len(r.pending))
	for _, p := range r.pending {
		buffered[p.Item.ID] = p.Item
	}
	r.mu.Unlock()

	items := r.store.List(models.ItemFilter{})
	for i, it := range items {
		if b, ok := buffered[it.ID]; ok {
			items[i] = b.Clone()
		}
	}
	return items
}

// Stats summarises Items at now.
func (r *Runner) Stats(now time.Time) models.ItemStats {
	return store.Summarize(r.Items(), now)
}

func (r *Runner) Start(s *Session, now time.Time) error {
	return s.start(now)
}

// Skip moves past the current item without recording anything.
func (r *Runner) Skip(s *Session, itemID string, now time.Time) error {
	if _, err := s.expect(itemID); err != nil {
		return err
	}
	s.Skipped++
	s.advance(now)
	return nil
}

// Abandon resets the session. Unreviewed items keep their state and buffered
// write-backs stay queued.
func (r *Runner) Abandon(s *Session) {
	s.reset()
}

// CompleteItem records an answer for the current item, schedules it and
// writes it back. When the write-back keeps failing the review is buffered,
// the cursor still advances and a PersistenceError is returned.
func (r *Runner) CompleteItem(ctx context.Context, s *Session, itemID string, correct bool, now time.Time) (models.LearningItem, error) {
	log := logger.FromContext(ctx).WithPrefix("session").WithField("session_id", s.ID)

	if _, err := s.expect(itemID); err != nil {
		return models.LearningItem{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	base, err := r.latest(itemID)
	if err != nil {
		return models.LearningItem{}, err
	}

	outcome := models.ReviewOutcome{
		ItemID:    itemID,
		Correct:   correct,
		Timestamp: now,
		TimeSpent: now.Sub(s.presentedAt),
		SessionID: s.ID,
	}
	updated := scheduler.RecordOutcome(base, outcome, now)

	s.Answered++
	if correct {
		s.Correct++
	}
	s.advance(now)

	p := &Pending{Outcome: outcome, Item: updated}
	err = r.persist(ctx, p)
	if err != nil && !errors.IsPersistence(err) {
		log.Error("review of %s rejected: %v", itemID, err)
		return updated, err
	}

	// updated now carries every older buffered state of this item, either
	// stored or queued behind them.
	r.mu.Lock()
	for _, older := range r.pending {
		if older.Outcome.ItemID == itemID {
			older.ItemSaved = true
		}
	}
	if err != nil {
		r.pending = append(r.pending, p)
	}
	r.mu.Unlock()

	if err != nil {
		log.Error("review of %s buffered after %d attempts: %v", itemID, p.Attempts, err)
		return updated, errors.NewPersistenceError("record outcome", err)
	}

	log.Debug("reviewed %s: correct=%t, mastery=%d, next=%s", itemID, correct, updated.MasteryLevel, updated.NextReview.Format(time.RFC3339))
	return updated, nil
}

// RetryPending re-issues buffered write-backs in order and stops at the first
// one that still fails. It returns how many were flushed.
func (r *Runner) RetryPending(ctx context.Context) (int, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	log := logger.FromContext(ctx).WithPrefix("session")
	flushed := 0
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			break
		}
		p := r.pending[0]
		remaining := len(r.pending)
		r.mu.Unlock()

		if err := r.persist(ctx, p); err != nil {
			log.Warn("flush stopped with %d pending: %v", remaining, err)
			return flushed, errors.NewPersistenceError("flush pending outcomes", err)
		}

		r.mu.Lock()
		r.pending = r.pending[1:]
		r.mu.Unlock()
		flushed++
	}
	if flushed > 0 {
		log.Info("flushed %d pending outcomes", flushed)
	}
	return flushed, nil
}

// Pending returns a copy of the buffered write-backs.
func (r *Runner) Pending() []Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Pending, 0, len(r.pending))
	for _, p := range r.pending {
		cp := *p
		cp.Item = p.Item.Clone()
		out = append(out, cp)
	}
	return out
}

// latest returns the newest known state of id: the last buffered item if one
// exists, otherwise the store's copy.
func (r *Runner) latest(id string) (models.LearningItem, error) {
	r.mu.Lock()
	for i := len(r.pending) - 1; i >= 0; i-- {
		if r.pending[i].Outcome.ItemID == id {
			item := r.pending[i].Item.Clone()
			r.mu.Unlock()
			return item, nil
		}
	}
	r.mu.Unlock()
	return r.store.GetByID(id)
}

// persist stores p.Item and appends p.Outcome, retrying persistence errors
// with exponential backoff. Callers hold r.writeMu but not r.mu.
func (r *Runner) persist(ctx context.Context, p *Pending) error {
	log := logger.FromContext(ctx).WithPrefix("session")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval

	// p may already be visible through Pending, so its fields change under mu.
	note := func(fn func()) {
		r.mu.Lock()
		fn()
		r.mu.Unlock()
	}

	op := func() (struct{}, error) {
		var saved bool
		note(func() {
			p.Attempts++
			saved = p.ItemSaved
		})
		if !saved {
			if _, err := r.store.GetByID(p.Item.ID); errors.IsNotFound(err) {
				// removed since it was answered; keep only the log entry
				saved = true
				note(func() { p.ItemSaved = true })
			}
		}
		if !saved {
			if _, err := r.store.Upsert(ctx, p.Item); err != nil {
				note(func() { p.LastErr = err })
				if errors.IsPersistence(err) {
					return struct{}{}, err
				}
				return struct{}{}, backoff.Permanent(err)
			}
			note(func() { p.ItemSaved = true })
		}
		if err := r.outcomes.Append(ctx, p.Outcome); err != nil {
			note(func() { p.LastErr = err })
			return struct{}{}, errors.NewPersistenceError("append outcome", err)
		}
		note(func() { p.LastErr = nil })
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Warn("write-back of %s failed, retrying in %s: %v", p.Outcome.ItemID, d, err)
		}),
	)
	if err != nil && !errors.IsPersistence(err) && ctx.Err() != nil {
		return errors.NewPersistenceError("write-back interrupted", err)
	}
	return err
}
