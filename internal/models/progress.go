package models

import "time"

// ReviewOutcome is the append-only record of one completed study interaction.
type ReviewOutcome struct {
	ItemID    string        `json:"item_id"`
	Correct   bool          `json:"correct"`
	Timestamp time.Time     `json:"timestamp"`
	TimeSpent time.Duration `json:"time_spent"`
	SessionID string        `json:"session_id,omitempty"`
}

// DailyProgress is derived from the outcome log, one per calendar day.
type DailyProgress struct {
	Date             time.Time `json:"date"`
	CompletedItems   int       `json:"completed_items"`
	TotalTimeMinutes int       `json:"total_time_minutes"`
	StreakDays       int       `json:"streak_days"`
	AccuracyPercent  float64   `json:"accuracy_percent"`
}

type ItemStats struct {
	TotalItems      int     `json:"total_items"`
	NewItems        int     `json:"new_items"`
	DueItems        int     `json:"due_items"`
	MasteredItems   int     `json:"mastered_items"`
	StrugglingItems int     `json:"struggling_items"`
	AvgMastery      float64 `json:"avg_mastery"`
}
