package model

import "time"

// User is a directory entity referenced by memberships.
type User struct {
	ID        string    `gorm:"primaryKey;size:20" json:"id"`
	Username  string    `gorm:"size:100;not null" json:"username"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }
