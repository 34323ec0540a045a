package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pushit/marketplace/internal/app"
	"github.com/pushit/marketplace/internal/config"
	"github.com/pushit/marketplace/internal/db"
	"github.com/pushit/marketplace/internal/metrics"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

const (
	reverifyBatch   = 100
	brandCheckBatch = 50
	flagBatch       = 200
)

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

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	svc := app.Build(cfg, pool, rdb, m, log)

	jobs := map[string]func(){
		"reverify":   func() { runReverification(ctx, svc.Social, log) },
		"payments":   func() { runPendingRecheck(ctx, svc.Payments, log) },
		"drift":      func() { runDriftAudit(ctx, svc.Wallets, log) },
		"brands":     func() { runBrandChecks(ctx, svc.BrandReviews, log) },
		"suspicious": func() { runSuspiciousFlagging(ctx, svc.Social, log) },
	}
	// worker <job> runs one job and exits.
	if len(os.Args) > 1 {
		job, ok := jobs[os.Args[1]]
		if !ok {
			log.Fatal("unknown job", zap.String("job", os.Args[1]))
		}
		job()
		return
	}

	go serveMetrics(cfg.WorkerPort, registry, log)

	log.Info("worker started")

	// Run jobs on tickers
	reverifyTicker := time.NewTicker(15 * time.Minute)
	pendingTicker := time.NewTicker(5 * time.Minute)
	driftTicker := time.NewTicker(1 * time.Hour)
	brandTicker := time.NewTicker(2 * time.Minute)
	flagTicker := time.NewTicker(6 * time.Hour)
	defer reverifyTicker.Stop()
	defer pendingTicker.Stop()
	defer driftTicker.Stop()
	defer brandTicker.Stop()
	defer flagTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-reverifyTicker.C:
			jobs["reverify"]()
		case <-pendingTicker.C:
			jobs["payments"]()
		case <-driftTicker.C:
			jobs["drift"]()
		case <-brandTicker.C:
			jobs["brands"]()
		case <-flagTicker.C:
			jobs["suspicious"]()
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func serveMetrics(port string, registry *prometheus.Registry, log *zap.Logger) {
	server := fiber.New(fiber.Config{DisableStartupMessage: true})
	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	server.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))
	if err := server.Listen(fmt.Sprintf(":%s", port)); err != nil {
		log.Error("worker metrics server stopped", zap.Error(err))
	}
}

func runReverification(ctx context.Context, social *services.SocialService, log *zap.Logger) {
	n, err := social.ReverifyStale(ctx, reverifyBatch)
	if err != nil {
		log.Error("follower re-verification failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("re-verified connections", zap.Int("count", n))
	}
}

func runPendingRecheck(ctx context.Context, payments *services.PaymentService, log *zap.Logger) {
	n, err := payments.RecheckPending(ctx)
	if err != nil {
		log.Error("pending payment recheck failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("resolved pending payments", zap.Int("count", n))
	}
}

func runDriftAudit(ctx context.Context, wallets *services.WalletService, log *zap.Logger) {
	drifts, err := wallets.AuditDrift(ctx)
	if err != nil {
		log.Error("wallet drift audit failed", zap.Error(err))
		return
	}
	log.Info("wallet drift audit finished", zap.Int("drifted", len(drifts)))
}

func runBrandChecks(ctx context.Context, reviews *services.BrandReviewService, log *zap.Logger) {
	sweep, err := reviews.ProcessPending(ctx, brandCheckBatch)
	if err != nil {
		log.Error("brand checks failed", zap.Error(err))
		return
	}
	if sweep.Checked > 0 {
		log.Info("checked pending brands", zap.Int("checked", sweep.Checked), zap.Int("verified", sweep.Verified))
	}
}

func runSuspiciousFlagging(ctx context.Context, social *services.SocialService, log *zap.Logger) {
	n, err := social.FlagSuspicious(ctx, flagBatch)
	if err != nil {
		log.Error("suspicious connection sweep failed", zap.Error(err))
		return
	}
	log.Info("suspicious connection sweep finished", zap.Int("flagged", n))
}
