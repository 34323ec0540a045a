package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pushit/marketplace/internal/config"
	"github.com/pushit/marketplace/internal/http/handlers"
	"github.com/pushit/marketplace/internal/metrics"
	"github.com/pushit/marketplace/internal/middleware"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/rbac"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Campaign *handlers.CampaignHandler
	Job      *handlers.JobHandler
	Wallet   *handlers.WalletHandler
	Webhook  *handlers.WebhookHandler
	Social   *handlers.SocialHandler
	Meta     *handlers.MetaHandler
	Admin    *handlers.AdminHandler
	WS       *handlers.WSHub
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	m *metrics.Metrics,
	registry *prometheus.Registry,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, Idempotency-Key",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(middleware.MetricsMiddleware(m))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))

	api := app.Group("/api/v1")

	// Gateway and OAuth redirects (public, not rate limited)
	api.Post("/payments/webhook/paystack", h.Webhook.Paystack)
	api.Get("/payments/callback", h.Webhook.Callback)
	api.Get("/social/:platform/callback", h.Social.Callback)

	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log))

	// Auth (public)
	api.Post("/auth/signup", h.Auth.Signup)
	api.Post("/auth/login", h.Auth.Login)

	// Meta (public)
	api.Get("/meta/niches", h.Meta.GetNiches)
	api.Get("/meta/platforms", h.Meta.GetPlatforms)
	api.Get("/meta/currencies", h.Meta.GetCurrencies)

	protected := api.Group("", middleware.AuthMiddleware(cfg.JWTSecret, log))

	// Me
	protected.Get("/me", h.User.GetMe)
	protected.Patch("/me", h.User.UpdateMe)
	protected.Get("/me/wallets", h.User.GetWallets)
	protected.Get("/me/transactions", h.User.ListTransactions)
	protected.Get("/me/notifications", h.User.ListNotifications)
	protected.Get("/me/notifications/unread-count", h.User.UnreadCount)
	protected.Post("/me/notifications/read-all", h.User.MarkAllNotificationsRead)
	protected.Post("/me/notifications/:id/read", h.User.MarkNotificationRead)
	protected.Get("/me/payments", h.Wallet.ListPayments)

	// Money
	protected.Post("/me/wallet/topup", middleware.RequirePermission(rbac.PermFundWallet), h.Wallet.TopUp)
	protected.Post("/me/wallet/withdraw", middleware.RequirePermission(rbac.PermWithdraw), h.Wallet.Withdraw)
	payout := protected.Group("/me/payout-methods", middleware.RequirePermission(rbac.PermWithdraw))
	payout.Get("", h.Wallet.ListPayoutMethods)
	payout.Post("", h.Wallet.AddPayoutMethod)
	payout.Post("/:id/default", h.Wallet.SetDefaultPayoutMethod)
	payout.Delete("/:id", h.Wallet.DeletePayoutMethod)

	// Platform connections
	platforms := protected.Group("/me/platforms", middleware.RequirePermission(rbac.PermConnectPlatform))
	platforms.Get("", h.Social.List)
	platforms.Post("", h.Social.AddManual)
	platforms.Get("/:platform/connect", h.Social.Connect)
	platforms.Post("/:id/reverify", h.Social.Reverify)

	// Campaigns
	protected.Get("/feed", middleware.RequireRole(models.RoleInfluencer), h.Campaign.Feed)
	protected.Get("/campaigns/:id/eligibility", middleware.RequireRole(models.RoleInfluencer), h.Campaign.Eligibility)
	protected.Post("/campaigns/:id/apply", middleware.RequirePermission(rbac.PermApplyJob), h.Job.Apply)
	protected.Get("/campaigns/:id", h.Campaign.GetCampaign)

	campaigns := protected.Group("/campaigns", middleware.RequirePermission(rbac.PermManageCampaign))
	campaigns.Post("", h.Campaign.CreateCampaign)
	campaigns.Get("", h.Campaign.ListCampaigns)
	campaigns.Patch("/:id", h.Campaign.UpdateCampaign)
	for _, action := range []string{"activate", "pause", "resume", "complete", "cancel"} {
		campaigns.Post("/:id/"+action, h.Campaign.Transition(action))
	}
	campaigns.Get("/:id/matches", h.Campaign.Matches)
	campaigns.Get("/:id/jobs", h.Job.ListJobs)

	// Jobs
	protected.Get("/jobs", h.Job.ListJobs)
	protected.Get("/jobs/:id", h.Job.GetJob)
	protected.Post("/jobs/:id/proof", middleware.RequirePermission(rbac.PermSubmitProof), h.Job.SubmitProof)
	protected.Post("/jobs/:id/review", middleware.RequirePermission(rbac.PermReviewJob), h.Job.Review)
	protected.Post("/jobs/:id/cancel", h.Job.Cancel)

	// Admin
	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.Get("/users", h.Admin.ListUsers)
	admin.Post("/users/:id/active", middleware.RequirePermission(rbac.PermManageAccounts), h.Admin.SetUserActive)
	admin.Post("/users/:id/verification", middleware.RequirePermission(rbac.PermManageAccounts), h.Admin.SetVerification)
	admin.Post("/wallets/adjust", middleware.RequirePermission(rbac.PermAdjustWallet), h.Admin.AdjustWallet)
	admin.Get("/wallets/drift", h.Admin.WalletDrift)
	admin.Get("/wallets/:id/reconcile", h.Admin.ReconcileWallet)
	admin.Get("/payments", h.Admin.ListPayments)
	admin.Get("/audit/:type/:id", h.Admin.AuditTrail)
	admin.Put("/platforms/:platform", middleware.RequirePermission(rbac.PermManageSettings), h.Admin.UpsertPlatformSettings)
	admin.Get("/currencies", h.Admin.ListCurrencies)
	admin.Put("/currencies/:code", middleware.RequirePermission(rbac.PermManageSettings), h.Admin.UpsertCurrency)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WS.HandleWS))
}
