package directory

import (
	"context"

	"github.com/mirrorhq/guild-service/internal/model"
	"gorm.io/gorm"
)

// UserDirectory answers user-existence checks for the membership service.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Count(&count).Error
	return count > 0, err
}

// GuildDirectory answers guild-existence checks for the sync engine.
type GuildDirectory struct {
	db *gorm.DB
}

func NewGuildDirectory(db *gorm.DB) *GuildDirectory {
	return &GuildDirectory{db: db}
}

func (d *GuildDirectory) Exists(ctx context.Context, guildID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.Guild{}).
		Where("id = ?", guildID).
		Count(&count).Error
	return count > 0, err
}
