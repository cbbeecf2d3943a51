package model

import "time"

// ProcessedEvent is an idempotency receipt: at most one row per event key.
// Rows are inserted with ON CONFLICT DO NOTHING inside the same transaction
// as the work they guard, and are never updated or deleted afterwards.
type ProcessedEvent struct {
	EventKey    string    `gorm:"primaryKey;size:128" json:"event_key"`
	EntityType  string    `gorm:"size:64" json:"entity_type,omitempty"`
	EntityID    string    `gorm:"size:64" json:"entity_id,omitempty"`
	Metadata    string    `gorm:"type:jsonb" json:"metadata,omitempty"`
	ProcessedAt time.Time `gorm:"autoCreateTime" json:"processed_at"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }
