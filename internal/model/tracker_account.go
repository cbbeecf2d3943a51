package model

import "time"

// TrackerAccount is an external linked account owned by a user. Membership
// only reads the activity flags after a successful create.
type TrackerAccount struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:20;index;not null" json:"user_id"`
	Platform  string    `gorm:"size:32;not null" json:"platform"`
	Handle    string    `gorm:"size:100;not null" json:"handle"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	IsDeleted bool      `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TrackerAccount) TableName() string { return "tracker_accounts" }
