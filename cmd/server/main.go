package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mirrorhq/guild-service/internal/config"
	"github.com/mirrorhq/guild-service/internal/directory"
	"github.com/mirrorhq/guild-service/internal/logger"
	"github.com/mirrorhq/guild-service/internal/model"
	"github.com/mirrorhq/guild-service/internal/player"
	"github.com/mirrorhq/guild-service/internal/repo"
	"github.com/mirrorhq/guild-service/internal/service"
	"github.com/mirrorhq/guild-service/internal/tracker"
	httptransport "github.com/mirrorhq/guild-service/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.Guild{},
		&model.User{},
		&model.Member{},
		&model.ProcessedEvent{},
		&model.ActivityLog{},
		&model.TrackerAccount{},
		&model.Player{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	// 6. repositories and collaborators
	members := repo.NewMemberRepository(gdb)
	events := repo.NewIdempotencyRepository(gdb)
	activity := repo.NewActivityRepository(gdb, kw)
	stats := repo.NewStatsCache(rdb)
	users := directory.NewUserDirectory(gdb)
	guilds := directory.NewGuildDirectory(gdb)

	// tracker and player read memberships back through the member repository;
	// membership consumes them through its own interfaces. The cycle exists
	// only at runtime, wired right here.
	trackerSvc := tracker.NewService(gdb, members, log)
	playerSvc := player.NewService(gdb, members, log)

	svc := service.NewMemberService(members, events, activity, stats, users, guilds, trackerSvc, playerSvc, log)

	// 7. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)

	// 8. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("guild-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
