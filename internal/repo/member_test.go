package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mirrorhq/guild-service/internal/model"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.Guild{}, &model.User{}, &model.Member{},
		&model.ProcessedEvent{}, &model.ActivityLog{},
	))
	return db
}

func seedMembers(t *testing.T, db *gorm.DB, guildID string, n int) {
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		m := model.Member{
			UserID:    fmt.Sprintf("10000000000000%04d", i),
			GuildID:   guildID,
			Username:  fmt.Sprintf("user%04d", i),
			Roles:     []string{},
			JoinedAt:  base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		assert.NoError(t, db.Create(&m).Error)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, ClampPage(-1))
	assert.Equal(t, 1, ClampPage(0))
	assert.Equal(t, 3, ClampPage(3))

	assert.Equal(t, DefaultListLimit, ClampLimit(0, DefaultListLimit))
	assert.Equal(t, DefaultListLimit, ClampLimit(-5, DefaultListLimit))
	assert.Equal(t, MaxLimit, ClampLimit(500, DefaultListLimit))
	assert.Equal(t, 7, ClampLimit(7, DefaultSearchLimit))
}

func TestMemberRepository_PaginationClamp(t *testing.T) {
	db := newTestDB(t)
	r := NewMemberRepository(db)
	ctx := context.Background()
	seedMembers(t, db, "g1", 120)

	// out-of-range inputs behave exactly like the defaults
	got, total, err := r.FindByGuild(ctx, "g1", -1, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(120), total)
	assert.Len(t, got, DefaultListLimit)

	want, _, err := r.FindByGuild(ctx, "g1", 1, DefaultListLimit)
	assert.NoError(t, err)
	assert.Equal(t, want, got)

	// oversized limit is capped at 100
	capped, _, err := r.FindByGuild(ctx, "g1", 1, 500)
	assert.NoError(t, err)
	assert.Len(t, capped, MaxLimit)

	// newest join first
	assert.Equal(t, "user0119", got[0].Username)
}

func TestMemberRepository_UpsertKeepsJoinedAt(t *testing.T) {
	db := newTestDB(t)
	r := NewMemberRepository(db)
	ctx := context.Background()

	joined := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	m := &model.Member{
		UserID: "u1", GuildID: "g1", Username: "alice",
		Roles: []string{"r1"}, JoinedAt: joined, UpdatedAt: joined,
	}
	assert.NoError(t, r.Upsert(ctx, r.DB(ctx), m))

	// second upsert replaces profile columns but not the join time
	again := &model.Member{
		UserID: "u1", GuildID: "g1", Username: "alice2",
		Roles: []string{"r1", "r2"}, JoinedAt: time.Now(), UpdatedAt: time.Now(),
	}
	assert.NoError(t, r.Upsert(ctx, r.DB(ctx), again))

	found, err := r.FindByKey(ctx, "u1", "g1")
	assert.NoError(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, "alice2", found.Username)
	assert.Equal(t, []string{"r1", "r2"}, found.Roles)
	assert.WithinDuration(t, joined, found.JoinedAt, time.Second)

	var count int64
	db.Model(&model.Member{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestMemberRepository_FindByKeyAbsent(t *testing.T) {
	db := newTestDB(t)
	r := NewMemberRepository(db)
	ctx := context.Background()

	m, err := r.FindByKey(ctx, "nope", "nada")
	assert.NoError(t, err)
	assert.Nil(t, m)

	ok, err := r.ExistsByKey(ctx, "nope", "nada")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMemberRepository_BulkReplace(t *testing.T) {
	db := newTestDB(t)
	r := NewMemberRepository(db)
	ctx := context.Background()
	seedMembers(t, db, "g1", 3)
	seedMembers(t, db, "g2", 2)

	err := db.Transaction(func(tx *gorm.DB) error {
		removed, err := r.DeleteAllForGuild(ctx, tx, "g1")
		assert.Equal(t, int64(3), removed)
		if err != nil {
			return err
		}
		return r.CreateMany(ctx, tx, []model.Member{
			{UserID: "a", GuildID: "g1", Username: "a", Roles: []string{}, JoinedAt: time.Now(), UpdatedAt: time.Now()},
			{UserID: "b", GuildID: "g1", Username: "b", Roles: []string{}, JoinedAt: time.Now(), UpdatedAt: time.Now()},
		})
	})
	assert.NoError(t, err)

	_, total, err := r.FindByGuild(ctx, "g1", 1, 10)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// the other guild's roster is untouched
	_, total, err = r.FindByGuild(ctx, "g2", 1, 10)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestMemberRepository_Search(t *testing.T) {
	db := newTestDB(t)
	r := NewMemberRepository(db)
	ctx := context.Background()
	seedMembers(t, db, "g1", 30)

	got, total, err := r.SearchByUsername(ctx, "g1", "user000", 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(10), total)
	assert.Len(t, got, 10)

	// empty query pages the whole roster at the search default
	got, total, err = r.SearchByUsername(ctx, "g1", "", 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(30), total)
	assert.Len(t, got, DefaultSearchLimit)
}

func TestMemberRepository_FindByUser(t *testing.T) {
	db := newTestDB(t)
	r := NewMemberRepository(db)
	ctx := context.Background()
	now := time.Now()

	for i, guildID := range []string{"g1", "g2", "g3"} {
		m := model.Member{
			UserID: "u1", GuildID: guildID, Username: "a", Roles: []string{},
			JoinedAt: now.Add(time.Duration(i) * time.Minute), UpdatedAt: now,
		}
		assert.NoError(t, db.Create(&m).Error)
	}

	got, err := r.FindByUser(ctx, "u1")
	assert.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "g3", got[0].GuildID)
}

func TestMemberRepository_CountWindows(t *testing.T) {
	db := newTestDB(t)
	r := NewMemberRepository(db)
	ctx := context.Background()
	now := time.Now()

	rows := []model.Member{
		// joined long ago, active recently
		{UserID: "u1", GuildID: "g1", Username: "a", Roles: []string{}, JoinedAt: now.Add(-10 * 24 * time.Hour), UpdatedAt: now.Add(-2 * 24 * time.Hour)},
		// joined recently, counts for both windows
		{UserID: "u2", GuildID: "g1", Username: "b", Roles: []string{}, JoinedAt: now.Add(-2 * 24 * time.Hour), UpdatedAt: now.Add(-2 * 24 * time.Hour)},
		// dormant
		{UserID: "u3", GuildID: "g1", Username: "c", Roles: []string{}, JoinedAt: now.Add(-30 * 24 * time.Hour), UpdatedAt: now.Add(-30 * 24 * time.Hour)},
	}
	for i := range rows {
		assert.NoError(t, db.Create(&rows[i]).Error)
	}

	cutoff := now.Add(-7 * 24 * time.Hour)

	total, err := r.CountForGuild(ctx, "g1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)

	active, err := r.CountUpdatedSince(ctx, "g1", cutoff)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), active)

	fresh, err := r.CountJoinedSince(ctx, "g1", cutoff)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), fresh)
}
