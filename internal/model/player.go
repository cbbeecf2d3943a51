package model

import "time"

// Player is the derived entity ensured for members with an active tracker
// account. Keyed like a membership so the ensure operation is idempotent.
type Player struct {
	UserID    string    `gorm:"primaryKey;size:20" json:"user_id"`
	GuildID   string    `gorm:"primaryKey;size:20" json:"guild_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Player) TableName() string { return "players" }
