package player

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
	assert.NoError(t, db.AutoMigrate(&model.Member{}, &model.Player{}))

	log, err := logger.NewLogger()
	assert.NoError(t, err)
	return NewService(db, repo.NewMemberRepository(db), log), db
}

func TestEnsureExists_Idempotent(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	assert.NoError(t, db.Create(&model.Member{
		UserID: "u1", GuildID: "g1", Username: "a", Roles: []string{},
		JoinedAt: time.Now(), UpdatedAt: time.Now(),
	}).Error)

	first, err := svc.EnsureExists(ctx, "u1", "g1")
	assert.NoError(t, err)

	second, err := svc.EnsureExists(ctx, "u1", "g1")
	assert.NoError(t, err)
	assert.WithinDuration(t, first.CreatedAt, second.CreatedAt, time.Second)

	var count int64
	db.Model(&model.Player{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestEnsureExists_RequiresMembership(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.EnsureExists(context.Background(), "ghost", "g1")
	assert.True(t, domain.IsNotFound(err))
}
