package player

import (
	"context"
	"errors"

	"github.com/mirrorhq/guild-service/internal/domain"
	"github.com/mirrorhq/guild-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberReader mirrors the membership read path consumed by this module.
// Injected at composition time to keep the module cycle out of the imports.
type MemberReader interface {
	FindByKey(ctx context.Context, userID, guildID string) (*model.Member, error)
}

// Service owns the derived player entity.
type Service struct {
	db      *gorm.DB
	members MemberReader
	log     *zap.SugaredLogger
}

func NewService(db *gorm.DB, members MemberReader, log *zap.SugaredLogger) *Service {
	return &Service{db: db, members: members, log: log}
}

// EnsureExists idempotently creates the player row for a guild member and
// returns it. The insert carries an empty conflict action, so repeated and
// concurrent calls converge on the first-created row.
func (s *Service) EnsureExists(ctx context.Context, userID, guildID string) (*model.Player, error) {
	m, err := s.members.FindByKey(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.NewNotFound("member", userID)
	}

	p := &model.Player{UserID: userID, GuildID: guildID}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
			DoNothing: true,
		}).
		Create(p).Error
	if err != nil {
		return nil, err
	}

	var existing model.Player
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// insert raced with a delete; treat like a missing membership
		return nil, domain.NewNotFound("player", userID)
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}
