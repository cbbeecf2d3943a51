package tracker

import (
	"context"

	"github.com/mirrorhq/guild-service/internal/domain"
	"github.com/mirrorhq/guild-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MemberReader is the narrow slice of the membership read path this module
// depends on. Declared here (not imported from the membership package) so
// the runtime call cycle between the two modules stays acyclic at compile
// time; cmd/server injects the concrete repository.
type MemberReader interface {
	FindByKey(ctx context.Context, userID, guildID string) (*model.Member, error)
}

// Service exposes linked-account lookups and guild-scoped access checks.
type Service struct {
	db      *gorm.DB
	members MemberReader
	log     *zap.SugaredLogger
}

func NewService(db *gorm.DB, members MemberReader, log *zap.SugaredLogger) *Service {
	return &Service{db: db, members: members, log: log}
}

// ListAccountsForUser returns every linked account for the user, including
// inactive and soft-deleted ones; callers filter on the flags.
func (s *Service) ListAccountsForUser(ctx context.Context, userID string) ([]model.TrackerAccount, error) {
	var accounts []model.TrackerAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&accounts).Error
	return accounts, err
}

// VerifyGuildAccess confirms the user is a member of the guild by calling
// back into the membership read path.
func (s *Service) VerifyGuildAccess(ctx context.Context, userID, guildID string) error {
	m, err := s.members.FindByKey(ctx, userID, guildID)
	if err != nil {
		return err
	}
	if m == nil {
		return domain.NewNotFound("member", userID)
	}
	return nil
}
