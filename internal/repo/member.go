package repo

import (
	"context"
	"errors"
	"time"

	"github.com/mirrorhq/guild-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Pagination defaults. Invalid or out-of-range inputs silently fall back to
// these instead of erroring.
const (
	DefaultListLimit   = 50
	DefaultSearchLimit = 20
	MaxLimit           = 100
)

// ClampPage forces the page number to >= 1.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampLimit forces the page size into [1, MaxLimit], falling back to def
// when the input is non-positive.
func ClampLimit(limit, def int) int {
	if limit < 1 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// MemberStore is the persistence contract for guild memberships. Mutating
// methods take the transactional handle; reads run on the base connection.
// No method reports absence as an error; callers translate.
type MemberStore interface {
	DB(ctx context.Context) *gorm.DB
	FindByKey(ctx context.Context, userID, guildID string) (*model.Member, error)
	ExistsByKey(ctx context.Context, userID, guildID string) (bool, error)
	Upsert(ctx context.Context, tx *gorm.DB, m *model.Member) error
	UpdateByKey(ctx context.Context, tx *gorm.DB, userID, guildID string, updates map[string]interface{}) error
	DeleteByKey(ctx context.Context, tx *gorm.DB, userID, guildID string) error
	DeleteAllForGuild(ctx context.Context, tx *gorm.DB, guildID string) (int64, error)
	CreateMany(ctx context.Context, tx *gorm.DB, members []model.Member) error
	FindByGuild(ctx context.Context, guildID string, page, limit int) ([]model.Member, int64, error)
	FindByUser(ctx context.Context, userID string) ([]model.Member, error)
	SearchByUsername(ctx context.Context, guildID, query string, page, limit int) ([]model.Member, int64, error)
	CountForGuild(ctx context.Context, guildID string) (int64, error)
	CountUpdatedSince(ctx context.Context, guildID string, cutoff time.Time) (int64, error)
	CountJoinedSince(ctx context.Context, guildID string, cutoff time.Time) (int64, error)
}

// MemberRepository implements MemberStore on GORM.
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// DB returns the base connection; services open transactions on it.
func (r *MemberRepository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// FindByKey returns the membership row, or nil when absent.
func (r *MemberRepository) FindByKey(ctx context.Context, userID, guildID string) (*model.Member, error) {
	var m model.Member
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) ExistsByKey(ctx context.Context, userID, guildID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Count(&count).Error
	return count > 0, err
}

// Upsert inserts or replaces the mutable columns of a membership. JoinedAt is
// deliberately excluded from the update set so it stays at creation time.
func (r *MemberRepository) Upsert(ctx context.Context, tx *gorm.DB, m *model.Member) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "nickname", "roles", "updated_at"}),
		}).
		Create(m).Error
}

func (r *MemberRepository) UpdateByKey(ctx context.Context, tx *gorm.DB, userID, guildID string, updates map[string]interface{}) error {
	return tx.WithContext(ctx).Model(&model.Member{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Updates(updates).Error
}

func (r *MemberRepository) DeleteByKey(ctx context.Context, tx *gorm.DB, userID, guildID string) error {
	return tx.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Delete(&model.Member{}).Error
}

// DeleteAllForGuild removes the whole roster and reports how many rows went.
func (r *MemberRepository) DeleteAllForGuild(ctx context.Context, tx *gorm.DB, guildID string) (int64, error) {
	res := tx.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Delete(&model.Member{})
	return res.RowsAffected, res.Error
}

// CreateMany bulk-inserts the supplied rows in one statement.
func (r *MemberRepository) CreateMany(ctx context.Context, tx *gorm.DB, members []model.Member) error {
	if len(members) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&members).Error
}

// FindByGuild lists a guild's members newest-join first, with the clamped
// page/limit applied.
func (r *MemberRepository) FindByGuild(ctx context.Context, guildID string, page, limit int) ([]model.Member, int64, error) {
	page = ClampPage(page)
	limit = ClampLimit(limit, DefaultListLimit)

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("guild_id = ?", guildID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []model.Member
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("joined_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&members).Error
	return members, total, err
}

func (r *MemberRepository) FindByUser(ctx context.Context, userID string) ([]model.Member, error) {
	var members []model.Member
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at desc").
		Find(&members).Error
	return members, err
}

// SearchByUsername matches the query as a case-insensitive substring of the
// display name, scoped to one guild.
func (r *MemberRepository) SearchByUsername(ctx context.Context, guildID, query string, page, limit int) ([]model.Member, int64, error) {
	page = ClampPage(page)
	limit = ClampLimit(limit, DefaultSearchLimit)
	pattern := "%" + query + "%"

	base := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("guild_id = ? AND username LIKE ?", guildID, pattern)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []model.Member
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND username LIKE ?", guildID, pattern).
		Order("joined_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&members).Error
	return members, total, err
}

func (r *MemberRepository) CountForGuild(ctx context.Context, guildID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("guild_id = ?", guildID).
		Count(&count).Error
	return count, err
}

func (r *MemberRepository) CountUpdatedSince(ctx context.Context, guildID string, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("guild_id = ? AND updated_at >= ?", guildID, cutoff).
		Count(&count).Error
	return count, err
}

func (r *MemberRepository) CountJoinedSince(ctx context.Context, guildID string, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("guild_id = ? AND joined_at >= ?", guildID, cutoff).
		Count(&count).Error
	return count, err
}
