package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/quotedesk/rfq-service/internal/config"
	"github.com/quotedesk/rfq-service/internal/logger"
	"github.com/quotedesk/rfq-service/internal/notify"
	"github.com/quotedesk/rfq-service/internal/repo"
	"github.com/quotedesk/rfq-service/internal/scheduler"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Standalone reminder poller for deployments that keep the scheduler
// out of the API process (set scheduler.run_in_server: false there).
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	repository := repo.NewRepository(gdb, rdb, kw, log)
	var notifier notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL)
	} else {
		notifier = notify.NewEmailNotifier(cfg.Notify.SendGridAPIKey, cfg.Notify.FromEmail, cfg.Notify.FromName)
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		log.Fatalf("load timezone: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(repository, notifier, loc,
		scheduler.Cadence(cfg.Scheduler.Cadence), cfg.Scheduler.Interval(), cfg.Scheduler.DailyAt, log)
	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("scheduler: %v", err)
	}
}
