package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mirrorhq/guild-service/internal/model"
)

const statsTTL = time.Minute

// StatsCache is a read-through Redis cache for per-guild member statistics.
// Every error here is advisory; callers fall back to the database.
type StatsCache struct {
	rdb *redis.Client
}

func NewStatsCache(rdb *redis.Client) *StatsCache {
	return &StatsCache{rdb: rdb}
}

func statsKey(guildID string) string { return "member_stats:" + guildID }

func (c *StatsCache) Get(ctx context.Context, guildID string) (*model.MemberStats, error) {
	raw, err := c.rdb.Get(ctx, statsKey(guildID)).Result()
	if err != nil {
		return nil, err
	}
	var stats model.MemberStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *StatsCache) Set(ctx context.Context, guildID string, stats *model.MemberStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, statsKey(guildID), raw, statsTTL).Err()
}

// Invalidate drops the cached stats after a roster mutation.
func (c *StatsCache) Invalidate(ctx context.Context, guildID string) error {
	return c.rdb.Del(ctx, statsKey(guildID)).Err()
}
