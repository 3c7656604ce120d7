package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/lingoflash/internal/logger"
	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/repository"
)

type itemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new ItemRepository implementation
func NewItemRepository(db *sql.DB) repository.ItemRepository {
	return &itemRepository{db: db}
}

var itemColumns = []string{
	"id", "kind", "difficulty", "content", "mastery_level", "review_count",
	"last_reviewed", "next_review", "created_at",
}

func (r *itemRepository) Load(ctx context.Context) ([]models.LearningItem, error) {
	return r.List(ctx, models.ItemFilter{})
}

func (r *itemRepository) List(ctx context.Context, filter models.ItemFilter) ([]models.LearningItem, error) {
	log := logger.FromContext(ctx).WithPrefix("item_repo")
	log.Debug("listing items: kind=%s, difficulty=%s, tag=%s", filter.Kind, filter.Difficulty, filter.Tag)

	query := sqlBuilder.Select(itemColumns...).From("learning_items")
	if filter.Kind != "" {
		query = query.Where(squirrel.Eq{"kind": string(filter.Kind)})
	}
	if filter.Difficulty != "" {
		query = query.Where(squirrel.Eq{"difficulty": string(filter.Difficulty)})
	}
	if filter.Tag != "" {
		query = query.Where(squirrel.Expr("id IN (SELECT item_id FROM item_tags WHERE tag = ?)", filter.Tag))
	}
	query = query.OrderBy("seq ASC")

	stmt, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		log.Error("failed to list items: %v", err)
		return nil, err
	}
	defer rows.Close()

	var items []models.LearningItem
	for rows.Next() {
		var (
			it                    models.LearningItem
			kind, difficulty      string
			lastReviewed, nextDue sql.NullTime
		)
		if err := rows.Scan(&it.ID, &kind, &difficulty, &it.Content, &it.MasteryLevel, &it.ReviewCount,
			&lastReviewed, &nextDue, &it.CreatedAt); err != nil {
			log.Error("failed to scan item row: %v", err)
			return nil, err
		}
		it.Kind = models.Kind(kind)
		it.Difficulty = models.Difficulty(difficulty)
		it.LastReviewed = fromNullTime(lastReviewed)
		it.NextReview = fromNullTime(nextDue)
		it.CreatedAt = it.CreatedAt.UTC()
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachTags(ctx, items); err != nil {
		log.Error("failed to load tags: %v", err)
		return nil, err
	}
	log.Debug("found %d items", len(items))
	return items, nil
}

func (r *itemRepository) attachTags(ctx context.Context, items []models.LearningItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	index := make(map[string]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
		index[it.ID] = i
		items[i].Tags = []string{}
	}

	stmt, args, err := sqlBuilder.Select("item_id", "tag").
		From("item_tags").
		Where(squirrel.Eq{"item_id": ids}).
		OrderBy("item_id", "tag").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID, tag string
		if err := rows.Scan(&itemID, &tag); err != nil {
			return err
		}
		if i, ok := index[itemID]; ok {
			items[i].Tags = append(items[i].Tags, tag)
		}
	}
	return rows.Err()
}

func (r *itemRepository) Save(ctx context.Context, it models.LearningItem) error {
	log := logger.FromContext(ctx).WithPrefix("item_repo")
	log.Debug("saving item: id=%s, mastery=%d, reviews=%d", it.ID, it.MasteryLevel, it.ReviewCount)

	createdAt := it.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		// ON CONFLICT keeps seq, so a replaced item holds its list position.
		if _, err := tx.ExecContext(ctx, `
INSERT INTO learning_items (id, kind, difficulty, content, mastery_level, review_count, last_reviewed, next_review, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    kind = excluded.kind,
    difficulty = excluded.difficulty,
    content = excluded.content,
    mastery_level = excluded.mastery_level,
    review_count = excluded.review_count,
    last_reviewed = excluded.last_reviewed,
    next_review = excluded.next_review
`, it.ID, string(it.Kind), string(it.Difficulty), it.Content, it.MasteryLevel, it.ReviewCount,
			toNullTime(it.LastReviewed), toNullTime(it.NextReview), createdAt.UTC()); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = ?`, it.ID); err != nil {
			return err
		}
		for _, tag := range it.Tags {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)`, it.ID, tag); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to save item: %v", err)
		return err
	}
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id string) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("item_repo")
	log.Debug("deleting item: id=%s", id)

	res, err := r.db.ExecContext(ctx, `DELETE FROM learning_items WHERE id = ?`, id)
	if err != nil {
		log.Error("failed to delete item: %v", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	log.Debug("item deleted: id=%s, existed=%t", id, n > 0)
	return n > 0, nil
}
