package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pushit/marketplace/internal/config"
	"github.com/pushit/marketplace/internal/db"
	"github.com/pushit/marketplace/internal/events"
	"github.com/pushit/marketplace/internal/mailer"
	"github.com/pushit/marketplace/internal/repositories"
	"go.uber.org/zap"
)

// Notify Bridge subscribes to the notification stream and emails each
// notification to its recipient.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	m, err := mailer.New(cfg, log)
	if err != nil {
		log.Fatal("failed to configure smtp", zap.Error(err))
	}
	if !m.Enabled() {
		log.Warn("SMTP is not configured, notifications will only be logged")
	}
	bridge := mailer.NewBridge(repositories.NewUserRepo(pool), m, cfg.AppURL, log)

	subscriber := events.NewRedisSubscriber(rdb, log)
	if err := subscriber.Subscribe(ctx, events.StreamNotifications, bridge.Handle); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
