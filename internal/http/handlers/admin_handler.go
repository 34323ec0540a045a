package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

// AdminHandler serves the /admin routes. Every route is behind an admin
// role guard; the services check the role again.
type AdminHandler struct {
	admin      *services.AdminService
	wallets    *services.WalletService
	payments   *services.PaymentService
	settings   *services.PlatformSettingsService
	currencies *services.CurrencyService
	log        *zap.Logger
}

func NewAdminHandler(
	admin *services.AdminService,
	wallets *services.WalletService,
	payments *services.PaymentService,
	settings *services.PlatformSettingsService,
	currencies *services.CurrencyService,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:      admin,
		wallets:    wallets,
		payments:   payments,
		settings:   settings,
		currencies: currencies,
		log:        log,
	}
}

// GET /admin/users
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	users, err := h.admin.ListUsers(c.Context(), actorFrom(c), repositories.UserFilter{
		Role:   queryPtr(c, "role"),
		Search: queryPtr(c, "q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, users)
}

// POST /admin/users/:id/active
func (h *AdminHandler) SetUserActive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.SetActiveRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.admin.SetUserActive(c.Context(), actorFrom(c), id, req.Active); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, fiber.Map{"active": req.Active})
}

// POST /admin/users/:id/verification
func (h *AdminHandler) SetVerification(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.VerificationActionRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	status, err := h.admin.SetVerification(c.Context(), actorFrom(c), id, req.Action, req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, fiber.Map{"status": status})
}

// AdjustWallet posts a manual ledger entry. An Idempotency-Key header
// makes retries safe.
// POST /admin/wallets/adjust
func (h *AdminHandler) AdjustWallet(c *fiber.Ctx) error {
	var req dto.AdjustWalletRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return badRequest(c, "invalid user_id")
	}
	tx, err := h.admin.AdjustWallet(c.Context(), actorFrom(c), services.Adjustment{
		UserID:         userID,
		Currency:       req.Currency,
		Direction:      req.Direction,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, tx)
}

// GET /admin/wallets/:id/reconcile
func (h *AdminHandler) ReconcileWallet(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	drift, err := h.wallets.Reconcile(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, drift)
}

// GET /admin/wallets/drift
func (h *AdminHandler) WalletDrift(c *fiber.Ctx) error {
	drifts, err := h.wallets.AuditDrift(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, drifts)
}

// GET /admin/payments
func (h *AdminHandler) ListPayments(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	f := repositories.PaymentFilter{
		Type:   queryPtr(c, "type"),
		Status: queryPtr(c, "status"),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid user_id")
		}
		f.UserID = &id
	}
	payments, err := h.payments.ListPayments(c.Context(), actorFrom(c), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, payments)
}

// GET /admin/audit/:type/:id
func (h *AdminHandler) AuditTrail(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	limit, offset := pagination(c)
	entries, err := h.admin.AuditTrail(c.Context(), actorFrom(c), c.Params("type"), id, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, entries)
}

// PUT /admin/platforms/:platform
func (h *AdminHandler) UpsertPlatformSettings(c *fiber.Ctx) error {
	var req dto.PlatformSettingsRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	ps := &models.PlatformSettings{
		Platform:         c.Params("platform"),
		MinimumFollowers: req.MinimumFollowers,
		IsActive:         req.IsActive,
	}
	if err := h.settings.Upsert(c.Context(), ps, actorFrom(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, ps)
}

// GET /admin/currencies
func (h *AdminHandler) ListCurrencies(c *fiber.Ctx) error {
	currencies, err := h.currencies.List(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, currencies)
}

// PUT /admin/currencies/:code
func (h *AdminHandler) UpsertCurrency(c *fiber.Ctx) error {
	var req dto.CurrencyRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	cur := &models.Currency{
		Code:         strings.ToUpper(c.Params("code")),
		Name:         req.Name,
		Symbol:       req.Symbol,
		ExchangeRate: req.ExchangeRate,
		IsDefault:    req.IsDefault,
		IsActive:     req.IsActive,
	}
	if err := h.currencies.Upsert(c.Context(), cur, actorFrom(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, cur)
}
