package model

import "time"

// ActivityLog is an append-only audit row written in the same transaction as
// the change it records. It doubles as a transactional outbox: cmd/poller
// publishes unpublished rows to Kafka and flips Published.
type ActivityLog struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	EntityType  string    `gorm:"size:64;not null" json:"entity_type"`
	EntityID    string    `gorm:"size:64;not null" json:"entity_id"`
	EventType   string    `gorm:"size:64;not null" json:"event_type"`
	Action      string    `gorm:"size:64;not null" json:"action"`
	UserID      string    `gorm:"size:20;index" json:"user_id,omitempty"`
	GuildID     string    `gorm:"size:20;index" json:"guild_id,omitempty"`
	Changes     string    `gorm:"type:jsonb" json:"changes,omitempty"`
	Metadata    string    `gorm:"type:jsonb" json:"metadata,omitempty"`
	Timestamp   time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
	Published   bool      `gorm:"not null;default:false" json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func (ActivityLog) TableName() string { return "activity_log" }
