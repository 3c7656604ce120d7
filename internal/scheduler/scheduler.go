package scheduler

import (
	"time"

	"github.com/vytor/lingoflash/internal/models"
)

// Intervals is the fixed review schedule in days. Index i is the gap used
// once an item has i successful reviews behind it; counts past the end reuse
// the last entry.
var Intervals = []int{1, 3, 7, 14, 30, 90}

const (
	correctGain   = 20
	incorrectLoss = 10
	day           = 24 * time.Hour
)

// IntervalFor returns the review gap for an item with reviewCount successful
// reviews.
func IntervalFor(reviewCount int) time.Duration {
	idx := reviewCount
	if idx < 0 {
		idx = 0
	}
	if idx > len(Intervals)-1 {
		idx = len(Intervals) - 1
	}
	return time.Duration(Intervals[idx]) * day
}

// RecordOutcome applies a review outcome to item and returns the updated copy.
// It never touches storage; callers persist the result.
//
// The interval index is taken after the review count is updated, so a first
// correct answer schedules Intervals[1] and a miss on a fresh item Intervals[0].
func RecordOutcome(item models.LearningItem, outcome models.ReviewOutcome, now time.Time) models.LearningItem {
	updated := item.Clone()

	if outcome.Correct {
		updated.MasteryLevel = min(models.MaxMastery, updated.MasteryLevel+correctGain)
		updated.ReviewCount++
	} else {
		// misses don't lengthen the schedule
		updated.MasteryLevel = max(models.MinMastery, updated.MasteryLevel-incorrectLoss)
	}
	updated.MasteryLevel = clamp(updated.MasteryLevel)

	reviewed := now
	next := now.Add(IntervalFor(updated.ReviewCount))
	updated.LastReviewed = &reviewed
	updated.NextReview = &next
	return updated
}

// IsDue reports whether item is eligible for review at now.
func IsDue(item models.LearningItem, now time.Time) bool {
	return item.NextReview == nil || !item.NextReview.After(now)
}

// OverdueDays returns how many days past its review time item is, or 0.
func OverdueDays(item models.LearningItem, now time.Time) float64 {
	if item.NextReview == nil || now.Before(*item.NextReview) {
		return 0
	}
	return now.Sub(*item.NextReview).Hours() / 24.0
}

func clamp(level int) int {
	if level < models.MinMastery {
		return models.MinMastery
	}
	if level > models.MaxMastery {
		return models.MaxMastery
	}
	return level
}
