package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vytor/lingoflash/internal/logger"
	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/repository"
)

type outcomeRow struct {
	ID          int64     `db:"id"`
	ItemID      string    `db:"item_id"`
	Correct     bool      `db:"correct"`
	ReviewedAt  time.Time `db:"reviewed_at"`
	TimeSpentMS int64     `db:"time_spent_ms"`
	SessionID   string    `db:"session_id"`
}

func (row outcomeRow) toModel() models.ReviewOutcome {
	return models.ReviewOutcome{
		ItemID:    row.ItemID,
		Correct:   row.Correct,
		Timestamp: row.ReviewedAt.UTC(),
		TimeSpent: time.Duration(row.TimeSpentMS) * time.Millisecond,
		SessionID: row.SessionID,
	}
}

type outcomeRepository struct {
	db *sqlx.DB
}

// NewOutcomeRepository creates a new OutcomeRepository implementation
func NewOutcomeRepository(db *sql.DB) repository.OutcomeRepository {
	return &outcomeRepository{db: sqlx.NewDb(db, "sqlite3")}
}

func (r *outcomeRepository) Append(ctx context.Context, o models.ReviewOutcome) error {
	log := logger.FromContext(ctx).WithPrefix("outcome_repo")
	log.Debug("appending outcome: item_id=%s, correct=%t", o.ItemID, o.Correct)

	row := outcomeRow{
		ItemID:      o.ItemID,
		Correct:     o.Correct,
		ReviewedAt:  o.Timestamp.UTC(),
		TimeSpentMS: o.TimeSpent.Milliseconds(),
		SessionID:   o.SessionID,
	}
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO review_outcomes (item_id, correct, reviewed_at, time_spent_ms, session_id)
VALUES (:item_id, :correct, :reviewed_at, :time_spent_ms, :session_id)
`, row)
	if err != nil {
		log.Error("failed to append outcome: %v", err)
	}
	return err
}

func (r *outcomeRepository) List(ctx context.Context, since time.Time) ([]models.ReviewOutcome, error) {
	log := logger.FromContext(ctx).WithPrefix("outcome_repo")
	log.Debug("listing outcomes since %s", since.Format(time.RFC3339))

	var rows []outcomeRow
	var err error
	if since.IsZero() {
		err = r.db.SelectContext(ctx, &rows, `
SELECT id, item_id, correct, reviewed_at, time_spent_ms, session_id
FROM review_outcomes
ORDER BY reviewed_at ASC, id ASC
`)
	} else {
		err = r.db.SelectContext(ctx, &rows, `
SELECT id, item_id, correct, reviewed_at, time_spent_ms, session_id
FROM review_outcomes
WHERE reviewed_at >= ?
ORDER BY reviewed_at ASC, id ASC
`, since.UTC())
	}
	if err != nil {
		log.Error("failed to list outcomes: %v", err)
		return nil, err
	}

	out := make([]models.ReviewOutcome, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	log.Debug("found %d outcomes", len(out))
	return out, nil
}
