// Package app wires repositories, gateways and services for the binaries.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/config"
	"github.com/pushit/marketplace/internal/events"
	"github.com/pushit/marketplace/internal/metrics"
	"github.com/pushit/marketplace/internal/paystack"
	"github.com/pushit/marketplace/internal/replay"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/pushit/marketplace/internal/services"
	"github.com/pushit/marketplace/internal/social"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	webhookReplayPrefix = "paystack:webhook:"
	scraperRetries      = 2
)

type Repos struct {
	Users         *repositories.UserRepo
	Profiles      *repositories.ProfileRepo
	Campaigns     *repositories.CampaignRepo
	Jobs          *repositories.JobRepo
	Matches       *repositories.MatchRepo
	Wallets       *repositories.WalletRepo
	Payments      *repositories.PaymentRepo
	Platforms     *repositories.PlatformRepo
	Currencies    *repositories.CurrencyRepo
	Notifications *repositories.NotificationRepo
	Audit         *repositories.AuditRepo
}

func NewRepos(pool *pgxpool.Pool) *Repos {
	return &Repos{
		Users:         repositories.NewUserRepo(pool),
		Profiles:      repositories.NewProfileRepo(pool),
		Campaigns:     repositories.NewCampaignRepo(pool),
		Jobs:          repositories.NewJobRepo(pool),
		Matches:       repositories.NewMatchRepo(pool),
		Wallets:       repositories.NewWalletRepo(pool),
		Payments:      repositories.NewPaymentRepo(pool),
		Platforms:     repositories.NewPlatformRepo(pool),
		Currencies:    repositories.NewCurrencyRepo(pool),
		Notifications: repositories.NewNotificationRepo(pool),
		Audit:         repositories.NewAuditRepo(pool),
	}
}

type Services struct {
	Repos         *Repos
	Publisher     events.Publisher
	Notifications *services.NotificationService
	Currencies    *services.CurrencyService
	Settings      *services.PlatformSettingsService
	Wallets       *services.WalletService
	Matching      *services.MatchingService
	Campaigns     *services.CampaignService
	Jobs          *services.JobService
	Social        *services.SocialService
	Accounts      *services.AccountService
	Payments      *services.PaymentService
	Admin         *services.AdminService
	BrandReviews  *services.BrandReviewService
}

// Build constructs every service over one pool and one redis client.
func Build(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, m *metrics.Metrics, log *zap.Logger) *Services {
	r := NewRepos(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	notifications := services.NewNotificationService(r.Notifications, publisher, log)
	currencies := services.NewCurrencyService(r.Currencies, cfg.DefaultCurrency, r.Audit, log)
	settings := services.NewPlatformSettingsService(r.Platforms, r.Audit, log)
	wallets := services.NewWalletService(r.Wallets, r.Audit, m, log)
	matching := services.NewMatchingService(r.Matches, r.Campaigns, settings, currencies, log)
	campaigns := services.NewCampaignService(r.Campaigns, r.Profiles, currencies, wallets, notifications, r.Audit, log)
	jobs := services.NewJobService(r.Jobs, r.Campaigns, matching, currencies, wallets, notifications, publisher, r.Audit, log)

	registry := social.NewRegistry(social.DefaultProviders(cfg, log)...)
	socialSvc := services.NewSocialService(
		r.Platforms,
		r.Profiles,
		settings,
		registry,
		social.NewStateStore(rdb, cfg.OAuthStateTTL),
		social.NewScraper(cfg.SocialFetchTimeout, scraperRetries, log),
		notifications,
		r.Audit,
		m,
		services.VerificationPolicy{
			DiscrepancyMin:   cfg.FollowerDiscrepancyMin,
			DiscrepancyPct:   cfg.FollowerDiscrepancyPct,
			ReverifyInterval: cfg.ReverifyInterval,
			HighFollowers:    cfg.SuspiciousFollowers,
		},
		log,
	)

	accounts := services.NewAccountService(r.Users, r.Profiles, currencies, socialSvc, r.Audit, cfg.JWTSecret, cfg.JWTExpiration, log)

	payments := services.NewPaymentService(
		r.Payments,
		paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, m, log),
		replay.NewGuard(rdb, webhookReplayPrefix, cfg.WebhookReplayTTL),
		r.Users,
		r.Profiles,
		currencies,
		wallets,
		notifications,
		publisher,
		r.Audit,
		m,
		services.PaymentConfig{
			WebhookSecret: cfg.PaystackWebhookSecret,
			CallbackURL:   cfg.PaymentCallbackURL,
			MinWithdrawal: cfg.MinWithdrawal,
			PendingAge:    cfg.PendingPaymentRecheck,
		},
		log,
	)

	admin := services.NewAdminService(r.Users, r.Profiles, campaigns, wallets, r.Audit, notifications, r.Audit, log)
	brandReviews := services.NewBrandReviewService(r.Profiles, r.Users, notifications, r.Audit, cfg.BrandCheckDelay, log)

	return &Services{
		Repos:         r,
		Publisher:     publisher,
		Notifications: notifications,
		Currencies:    currencies,
		Settings:      settings,
		Wallets:       wallets,
		Matching:      matching,
		Campaigns:     campaigns,
		Jobs:          jobs,
		Social:        socialSvc,
		Accounts:      accounts,
		Payments:      payments,
		Admin:         admin,
		BrandReviews:  brandReviews,
	}
}
