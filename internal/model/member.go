package model

import "time"

// Member is one user's association with one guild. Both identifiers are
// externally-issued snowflakes; the pair forms the primary key. The guild
// reference is a real constraint; user rows are validated at the service
// level because sync snapshots may arrive before the user ingestion does.
type Member struct {
	UserID    string    `gorm:"primaryKey;size:20" json:"user_id"`
	GuildID   string    `gorm:"primaryKey;size:20" json:"guild_id"`
	Username  string    `gorm:"size:100;not null" json:"username"`
	Nickname  *string   `gorm:"size:100" json:"nickname,omitempty"`
	Roles     []string  `gorm:"serializer:json;type:jsonb" json:"roles"`
	JoinedAt  time.Time `gorm:"not null;index" json:"joined_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Guild Guild `gorm:"foreignKey:GuildID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Member) TableName() string { return "guild_members" }
