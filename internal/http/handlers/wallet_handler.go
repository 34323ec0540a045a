package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

// WalletHandler serves money movement in and out of the platform.
type WalletHandler struct {
	payments *services.PaymentService
	log      *zap.Logger
}

func NewWalletHandler(payments *services.PaymentService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{payments: payments, log: log}
}

// TopUp starts a Paystack checkout for a brand.
// POST /me/wallet/topup
func (h *WalletHandler) TopUp(c *fiber.Ctx) error {
	var req dto.TopUpRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.payments.TopUp(c.Context(), actorFrom(c), req.Amount, req.Currency)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, dto.TopUpResponse{
		Reference:        res.Payment.Reference,
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Amount:           res.Payment.Amount.StringFixed(2),
		Currency:         res.Payment.Currency,
	})
}

// Withdraw pays an influencer's balance out to their default payout method.
// POST /me/wallet/withdraw
func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	var req dto.WithdrawRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	payment, err := h.payments.Withdraw(c.Context(), actorFrom(c), req.Amount)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, payment)
}

// GET /me/payments
func (h *WalletHandler) ListPayments(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	payments, err := h.payments.ListPayments(c.Context(), actorFrom(c), repositories.PaymentFilter{
		Type:   queryPtr(c, "type"),
		Status: queryPtr(c, "status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, payments)
}

// GET /me/payout-methods
func (h *WalletHandler) ListPayoutMethods(c *fiber.Ctx) error {
	methods, err := h.payments.ListPayoutMethods(c.Context(), actorFrom(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, methods)
}

// POST /me/payout-methods
func (h *WalletHandler) AddPayoutMethod(c *fiber.Ctx) error {
	var req dto.PayoutMethodRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	method, err := h.payments.AddPayoutMethod(c.Context(), actorFrom(c), services.PayoutMethodInput{
		MethodType:    req.MethodType,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, method)
}

// POST /me/payout-methods/:id/default
func (h *WalletHandler) SetDefaultPayoutMethod(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.payments.SetDefaultPayoutMethod(c.Context(), actorFrom(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, nil)
}

// DELETE /me/payout-methods/:id
func (h *WalletHandler) DeletePayoutMethod(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.payments.DeletePayoutMethod(c.Context(), actorFrom(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, nil)
}
