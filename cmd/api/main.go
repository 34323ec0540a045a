package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/pushit/marketplace/internal/app"
	"github.com/pushit/marketplace/internal/config"
	"github.com/pushit/marketplace/internal/db"
	"github.com/pushit/marketplace/internal/events"
	apphttp "github.com/pushit/marketplace/internal/http"
	"github.com/pushit/marketplace/internal/http/handlers"
	"github.com/pushit/marketplace/internal/metrics"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	svc := app.Build(cfg, pool, rdb, m, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg.JWTSecret, events.NewRedisSubscriber(rdb, log), log)
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start websocket hub", zap.Error(err))
	}

	h := apphttp.Handlers{
		Auth:     handlers.NewAuthHandler(svc.Accounts, log),
		User:     handlers.NewUserHandler(svc.Accounts, svc.Wallets, svc.Notifications, log),
		Campaign: handlers.NewCampaignHandler(svc.Campaigns, svc.Matching, log),
		Job:      handlers.NewJobHandler(svc.Jobs, log),
		Wallet:   handlers.NewWalletHandler(svc.Payments, log),
		Webhook:  handlers.NewWebhookHandler(svc.Payments, log),
		Social:   handlers.NewSocialHandler(svc.Social, log),
		Meta:     handlers.NewMetaHandler(svc.Settings, svc.Currencies, log),
		Admin:    handlers.NewAdminHandler(svc.Admin, svc.Wallets, svc.Payments, svc.Settings, svc.Currencies, log),
		WS:       wsHub,
	}

	// Fiber app
	server := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(server, cfg, log, rdb, m, registry, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = server.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := server.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
