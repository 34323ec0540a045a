package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/paystack"
	"go.uber.org/zap"
)

// WebhookProcessor verifies and applies a gateway event.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) (string, error)
	Callback(ctx context.Context, reference string) (*models.PaymentTransaction, string, error)
}

type WebhookHandler struct {
	processor WebhookProcessor
	log       *zap.Logger
}

func NewWebhookHandler(processor WebhookProcessor, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, log: log}
}

// Paystack receives gateway events. Anything other than a bad signature or
// an internal failure is acknowledged so the gateway stops retrying.
// POST /payments/webhook/paystack
func (h *WebhookHandler) Paystack(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	outcome, err := h.processor.HandleWebhook(c.Context(), body, c.Get(paystack.SignatureHeader))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.WebhookResponse{Received: true, Outcome: outcome})
}

// Callback is where the browser lands after checkout.
// GET /payments/callback?reference=
func (h *WebhookHandler) Callback(c *fiber.Ctx) error {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	payment, outcome, err := h.processor.Callback(c.Context(), reference)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, fiber.Map{"payment": payment, "outcome": outcome})
}
