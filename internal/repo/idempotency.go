package repo

import (
	"context"

	"github.com/mirrorhq/guild-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdempotencyStore records processed event keys. MarkProcessed must share
// the transaction of the work it guards: both commit or roll back together.
type IdempotencyStore interface {
	IsProcessed(ctx context.Context, eventKey string) (bool, error)
	MarkProcessed(ctx context.Context, tx *gorm.DB, evt *model.ProcessedEvent) (bool, error)
}

// IdempotencyRepository implements IdempotencyStore on GORM.
type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// IsProcessed is a plain read; it may run outside any transaction.
func (r *IdempotencyRepository) IsProcessed(ctx context.Context, eventKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProcessedEvent{}).
		Where("event_key = ?", eventKey).
		Count(&count).Error
	return count > 0, err
}

// MarkProcessed inserts the receipt with an empty conflict action, so two
// concurrent markers of the same key resolve to one row: the first writer
// wins and every later caller sees inserted == false, never an error.
func (r *IdempotencyRepository) MarkProcessed(ctx context.Context, tx *gorm.DB, evt *model.ProcessedEvent) (bool, error) {
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_key"}},
			DoNothing: true,
		}).
		Create(evt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
