package models

import (
	"sort"
	"strings"
	"time"
)

// Kind is the skill a learning item trains.
type Kind string

const (
	KindVocabulary Kind = "vocabulary"
	KindGrammar    Kind = "grammar"
	KindReading    Kind = "reading"
	KindListening  Kind = "listening"
	KindSpeaking   Kind = "speaking"
	KindWriting    Kind = "writing"
)

// Kinds lists every known kind in display order.
var Kinds = []Kind{KindVocabulary, KindGrammar, KindReading, KindListening, KindSpeaking, KindWriting}

// Valid reports whether k is one of the enumerated kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Difficulty is the level an item is pitched at.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

func (d Difficulty) Valid() bool {
	for _, known := range Difficulties {
		if d == known {
			return true
		}
	}
	return false
}

// Mastery bounds.
const (
	MinMastery = 0
	MaxMastery = 100
)

type LearningItem struct {
	ID           string     `json:"id"`
	Kind         Kind       `json:"kind"`
	Difficulty   Difficulty `json:"difficulty"`
	Content      string     `json:"content"`
	MasteryLevel int        `json:"mastery_level"`
	ReviewCount  int        `json:"review_count"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`
	NextReview   *time.Time `json:"next_review,omitempty"`
	Tags         []string   `json:"tags"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsNew reports whether the item has never been reviewed.
func (i LearningItem) IsNew() bool {
	return i.LastReviewed == nil
}

// HasTag reports whether the item carries tag.
func (i LearningItem) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can never alias the store's state.
func (i LearningItem) Clone() LearningItem {
	c := i
	if i.LastReviewed != nil {
		t := *i.LastReviewed
		c.LastReviewed = &t
	}
	if i.NextReview != nil {
		t := *i.NextReview
		c.NextReview = &t
	}
	if i.Tags != nil {
		c.Tags = append([]string(nil), i.Tags...)
	}
	return c
}

// NormalizeTags trims, drops empties, deduplicates and sorts tags.
// Tags are a set; sorting only makes storage and comparison deterministic.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ItemFilter narrows item listings. Zero values match everything.
type ItemFilter struct {
	Kind       Kind
	Difficulty Difficulty
	Tag        string
}

// Matches reports whether item passes the filter.
func (f ItemFilter) Matches(item LearningItem) bool {
	if f.Kind != "" && item.Kind != f.Kind {
		return false
	}
	if f.Difficulty != "" && item.Difficulty != f.Difficulty {
		return false
	}
	if f.Tag != "" && !item.HasTag(f.Tag) {
		return false
	}
	return true
}
