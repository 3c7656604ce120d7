package session

import (
	"time"

	"github.com/vytor/lingoflash/internal/errors"
	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/scheduler"
)

// DefaultMaxItems bounds a session when the caller passes no limit.
const DefaultMaxItems = 3

// State is the lifecycle phase of a study session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Session is one bounded sitting. It is a cursor over a snapshot of items and
// is not the source of truth for item state. A Session is not safe for
// concurrent use.
type Session struct {
	ID    string
	Items []models.LearningItem

	State       State
	StartedAt   time.Time
	CompletedAt time.Time

	Answered int
	Correct  int
	Skipped  int

	cursor      int
	presentedAt time.Time
}

func newSession(id string, items []models.LearningItem) *Session {
	return &Session{ID: id, Items: items}
}

// BuildSession picks due items first, then never-reviewed items, and truncates
// to maxItems. Due items that already fill the session crowd out new ones.
func BuildSession(items []models.LearningItem, now time.Time, maxItems int) []models.LearningItem {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	seen := make(map[string]struct{}, len(items))
	var due, fresh []models.LearningItem
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		switch {
		case it.IsNew():
			fresh = append(fresh, it)
		case scheduler.IsDue(it, now):
			due = append(due, it)
		}
	}

	picked := make([]models.LearningItem, 0, maxItems)
	for _, group := range [][]models.LearningItem{due, fresh} {
		for _, it := range group {
			if len(picked) == maxItems {
				return picked
			}
			picked = append(picked, it.Clone())
		}
	}
	return picked
}

// Current returns the item under the cursor.
func (s *Session) Current() (models.LearningItem, bool) {
	if s.State != StateInProgress || s.cursor >= len(s.Items) {
		return models.LearningItem{}, false
	}
	return s.Items[s.cursor], true
}

// Position returns the zero-based cursor.
func (s *Session) Position() int {
	return s.cursor
}

// Remaining is the number of items not yet answered or skipped.
func (s *Session) Remaining() int {
	return len(s.Items) - s.cursor
}

// Elapsed is the study time so far, frozen once the session completes.
func (s *Session) Elapsed(now time.Time) time.Duration {
	switch s.State {
	case StateInProgress:
		return now.Sub(s.StartedAt)
	case StateCompleted:
		return s.CompletedAt.Sub(s.StartedAt)
	default:
		return 0
	}
}

// Accuracy is the share of answered items that were correct, in percent.
func (s *Session) Accuracy() float64 {
	if s.Answered == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Answered) * 100
}

func (s *Session) start(now time.Time) error {
	if s.State != StateNotStarted {
		return errors.NewValidationError("session", "cannot start a session that is "+s.State.String())
	}
	s.State = StateInProgress
	s.StartedAt = now
	s.presentedAt = now
	s.cursor = 0
	if len(s.Items) == 0 {
		s.complete(now)
	}
	return nil
}

// expect checks that itemID is the item currently presented.
func (s *Session) expect(itemID string) (models.LearningItem, error) {
	if s.State != StateInProgress {
		return models.LearningItem{}, errors.NewValidationError("session", "session is "+s.State.String())
	}
	current, ok := s.Current()
	if !ok {
		return models.LearningItem{}, errors.NewValidationError("session", "no item left")
	}
	if current.ID != itemID {
		return models.LearningItem{}, errors.NewValidationError("item_id", "expected "+current.ID+", got "+itemID)
	}
	return current, nil
}

func (s *Session) advance(now time.Time) {
	s.cursor++
	s.presentedAt = now
	if s.cursor >= len(s.Items) {
		s.complete(now)
	}
}

func (s *Session) complete(now time.Time) {
	s.State = StateCompleted
	s.CompletedAt = now
}

func (s *Session) reset() {
	s.State = StateNotStarted
	s.StartedAt = time.Time{}
	s.CompletedAt = time.Time{}
	s.presentedAt = time.Time{}
	s.cursor = 0
	s.Answered = 0
	s.Correct = 0
	s.Skipped = 0
}
