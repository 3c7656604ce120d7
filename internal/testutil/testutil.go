package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vytor/lingoflash/internal/db"
	"github.com/vytor/lingoflash/internal/models"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// The pool is pinned to a single connection, so the database lives as long
// as the returned handle.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	return database.DB
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// Ref is the fixed reference instant tests schedule against.
var Ref = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// Days converts a day count to a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// NewItem returns a valid never-reviewed vocabulary item.
func NewItem(id string) models.LearningItem {
	return models.LearningItem{
		ID:         id,
		Kind:       models.KindVocabulary,
		Difficulty: models.DifficultyBeginner,
		Content:    "word-" + id,
		Tags:       []string{},
		CreatedAt:  Ref,
	}
}

// DueItem returns a reviewed item whose next review was at Ref minus ago.
func DueItem(id string, ago time.Duration) models.LearningItem {
	it := NewItem(id)
	last := Ref.Add(-ago - Days(1))
	next := Ref.Add(-ago)
	it.ReviewCount = 1
	it.MasteryLevel = 20
	it.LastReviewed = &last
	it.NextReview = &next
	return it
}

// ScheduledItem returns a reviewed item not due until Ref plus ahead.
func ScheduledItem(id string, ahead time.Duration) models.LearningItem {
	it := NewItem(id)
	last := Ref.Add(-Days(1))
	next := Ref.Add(ahead)
	it.ReviewCount = 2
	it.MasteryLevel = 40
	it.LastReviewed = &last
	it.NextReview = &next
	return it
}
