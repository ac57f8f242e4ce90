package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/quotedesk/rfq-service/internal/config"
	"github.com/quotedesk/rfq-service/internal/logger"
	"github.com/quotedesk/rfq-service/internal/model"
	"github.com/quotedesk/rfq-service/internal/notify"
	"github.com/quotedesk/rfq-service/internal/repo"
	"github.com/quotedesk/rfq-service/internal/scheduler"
	"github.com/quotedesk/rfq-service/internal/service"
	httptransport "github.com/quotedesk/rfq-service/internal/transport/http"

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
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.ReminderConfig{},
		&model.ReminderScheduleEntry{},
		&model.Subcontractor{},
		&model.Rfq{},
		&model.Quote{},
		&model.RfqMessage{},
		&model.ActivityLogEntry{},
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

	// 6. repo, notifier, services
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
	svcs := httptransport.Services{
		Schedule:     service.NewScheduleService(repository, loc, log),
		Escalation:   service.NewEscalationService(repository, notifier, log),
		Conversation: service.NewConversationService(repository),
		Repo:         repository,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 7. background reminder scheduler
	if cfg.Scheduler.RunInServer {
		sched := scheduler.New(repository, notifier, loc,
			scheduler.Cadence(cfg.Scheduler.Cadence), cfg.Scheduler.Interval(), cfg.Scheduler.DailyAt, log)
		go func() {
			if err := sched.Run(ctx); err != nil && err != context.Canceled {
				log.Errorf("scheduler stopped: %v", err)
			}
		}()
	}

	// 8. gin router + serve
	router := httptransport.NewRouter(svcs, cfg.RateLimit, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		log.Infof("rfq-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
