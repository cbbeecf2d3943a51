package model

import "time"

// Guild is a tenant/community entity. Membership never creates guilds; rows
// come from the guild directory's own ingestion path.
type Guild struct {
	ID        string    `gorm:"primaryKey;size:20" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Guild) TableName() string { return "guilds" }
