package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mirrorhq/guild-service/internal/config"
	"github.com/mirrorhq/guild-service/internal/logger"
	"github.com/mirrorhq/guild-service/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/segmentio/kafka-go"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	activity := repo.NewActivityRepository(gdb, kw)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	log.Info("activity-poller started")
	for range ticker.C {
		ctx := context.Background()
		entries, err := activity.PollUnpublished(ctx, 100)
		if err != nil {
			log.Errorf("poll activity log: %v", err)
			continue
		}
		for _, entry := range entries {
			if err := activity.Publish(ctx, entry); err != nil {
				log.Errorf("publish id=%d: %v", entry.ID, err)
				continue
			}
			if err := activity.MarkPublished(ctx, entry.ID); err != nil {
				log.Errorf("mark published id=%d: %v", entry.ID, err)
			} else {
				log.Infof("activity %d sent", entry.ID)
			}
		}
	}
}
