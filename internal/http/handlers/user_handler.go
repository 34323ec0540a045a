package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/middleware"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

// UserHandler serves the caller's own profile, wallets and notifications.
type UserHandler struct {
	accounts      *services.AccountService
	wallets       *services.WalletService
	notifications *services.NotificationService
	log           *zap.Logger
}

func NewUserHandler(
	accounts *services.AccountService,
	wallets *services.WalletService,
	notifications *services.NotificationService,
	log *zap.Logger,
) *UserHandler {
	return &UserHandler{accounts: accounts, wallets: wallets, notifications: notifications, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	profile, err := h.accounts.Me(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, profile)
}

func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	profile, err := h.accounts.UpdateProfile(c.Context(), actorFrom(c), services.ProfileUpdate{
		CompanyName:     req.CompanyName,
		Website:         req.Website,
		Industry:        req.Industry,
		Description:     req.Description,
		Bio:             req.Bio,
		Niche:           req.Niche,
		PrimaryPlatform: req.PrimaryPlatform,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, profile)
}

func (h *UserHandler) GetWallets(c *fiber.Ctx) error {
	wallets, err := h.wallets.GetWallets(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, wallets)
}

func (h *UserHandler) ListTransactions(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	txs, err := h.wallets.ListTransactions(c.Context(), repositories.TransactionFilter{
		UserID:   middleware.GetUserID(c),
		Currency: queryPtr(c, "currency"),
		Kind:     queryPtr(c, "kind"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, txs)
}

func (h *UserHandler) ListNotifications(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	items, err := h.notifications.List(c.Context(), middleware.GetUserID(c), c.QueryBool("unread"), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, items)
}

func (h *UserHandler) UnreadCount(c *fiber.Ctx) error {
	n, err := h.notifications.UnreadCount(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, dto.UnreadCountResponse{Unread: n})
}

func (h *UserHandler) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.notifications.MarkRead(c.Context(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, nil)
}

func (h *UserHandler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := h.notifications.MarkAllRead(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, fiber.Map{"marked": n})
}
