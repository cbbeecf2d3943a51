package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mirrorhq/guild-service/internal/domain"
	"github.com/mirrorhq/guild-service/internal/logger"
	"github.com/mirrorhq/guild-service/internal/model"
	"github.com/mirrorhq/guild-service/internal/repo"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Member{}, &model.TrackerAccount{}))

	log, err := logger.NewLogger()
	assert.NoError(t, err)
	return NewService(db, repo.NewMemberRepository(db), log), db
}

func TestListAccountsForUser(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	assert.NoError(t, db.Create(&model.TrackerAccount{UserID: "u1", Platform: "steam", Handle: "a", IsActive: true}).Error)
	assert.NoError(t, db.Create(&model.TrackerAccount{UserID: "u1", Platform: "epic", Handle: "b", IsDeleted: true}).Error)
	assert.NoError(t, db.Create(&model.TrackerAccount{UserID: "u2", Platform: "steam", Handle: "c", IsActive: true}).Error)

	accounts, err := svc.ListAccountsForUser(ctx, "u1")
	assert.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestVerifyGuildAccess(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	assert.NoError(t, db.Create(&model.Member{
		UserID: "u1", GuildID: "g1", Username: "a", Roles: []string{},
		JoinedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)

	assert.NoError(t, svc.VerifyGuildAccess(ctx, "u1", "g1"))
	assert.True(t, domain.IsNotFound(svc.VerifyGuildAccess(ctx, "u1", "g2")))
}
