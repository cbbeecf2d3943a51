package repo

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/mirrorhq/guild-service/internal/model"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// ActivityStore is the append-only audit trail plus its outbox surface.
// Append runs inside the caller's transaction; the rest serves cmd/poller.
type ActivityStore interface {
	Append(ctx context.Context, tx *gorm.DB, entry *model.ActivityLog) error
	PollUnpublished(ctx context.Context, limit int) ([]model.ActivityLog, error)
	MarkPublished(ctx context.Context, id uint64) error
	Publish(ctx context.Context, entry model.ActivityLog) error
}

// ActivityRepository implements ActivityStore on GORM plus a Kafka writer.
type ActivityRepository struct {
	db     *gorm.DB
	writer *kafka.Writer
}

func NewActivityRepository(db *gorm.DB, w *kafka.Writer) *ActivityRepository {
	return &ActivityRepository{db: db, writer: w}
}

func (r *ActivityRepository) Append(ctx context.Context, tx *gorm.DB, entry *model.ActivityLog) error {
	return tx.WithContext(ctx).Create(entry).Error
}

// PollUnpublished returns the oldest unpublished rows, at most limit.
func (r *ActivityRepository) PollUnpublished(ctx context.Context, limit int) ([]model.ActivityLog, error) {
	var entries []model.ActivityLog
	err := r.db.WithContext(ctx).
		Where("published = ?", false).
		Order("timestamp").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *ActivityRepository) MarkPublished(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.ActivityLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"published": true, "published_at": &now}).Error
}

// Publish sends one audit entry to Kafka, keyed by row id so replays of the
// same row land in the same partition.
func (r *ActivityRepository) Publish(ctx context.Context, entry model.ActivityLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(entry.ID, 10)),
		Value: payload,
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}
