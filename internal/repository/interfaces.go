package repository

import (
	"context"
	"time"

	"github.com/vytor/lingoflash/internal/models"
)

// ItemRepository is the durable side of the content store. Writes must be
// atomic per item and keyed by item ID.
type ItemRepository interface {
	// Load returns every item in insertion order.
	Load(ctx context.Context) ([]models.LearningItem, error)
	List(ctx context.Context, filter models.ItemFilter) ([]models.LearningItem, error)
	// Save inserts or fully replaces the item. A replaced item keeps its
	// original insertion position.
	Save(ctx context.Context, item models.LearningItem) error
	Delete(ctx context.Context, id string) (bool, error)
}

// OutcomeRepository is the append-only review log.
type OutcomeRepository interface {
	Append(ctx context.Context, outcome models.ReviewOutcome) error
	// List returns outcomes at or after since, oldest first. A zero since
	// returns the whole log.
	List(ctx context.Context, since time.Time) ([]models.ReviewOutcome, error)
}
