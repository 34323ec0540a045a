package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

type MetaHandler struct {
	settings   *services.PlatformSettingsService
	currencies *services.CurrencyService
	log        *zap.Logger
}

func NewMetaHandler(settings *services.PlatformSettingsService, currencies *services.CurrencyService, log *zap.Logger) *MetaHandler {
	return &MetaHandler{settings: settings, currencies: currencies, log: log}
}

type MetaNiche struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var predefinedNiches = []MetaNiche{
	{ID: "fashion", Label: "Fashion & Style"},
	{ID: "fitness", Label: "Fitness & Health"},
	{ID: "tech", Label: "Technology"},
	{ID: "food", Label: "Food & Cooking"},
	{ID: "travel", Label: "Travel"},
	{ID: "gaming", Label: "Gaming"},
	{ID: "beauty", Label: "Beauty & Skincare"},
	{ID: "lifestyle", Label: "Lifestyle"},
	{ID: "entertainment", Label: "Entertainment"},
	{ID: "education", Label: "Education"},
	{ID: "business", Label: "Business & Finance"},
	{ID: "sports", Label: "Sports"},
}

func (h *MetaHandler) GetNiches(c *fiber.Ctx) error {
	return ok(c, predefinedNiches)
}

// GetPlatforms lists the supported platforms with their follower minimums.
func (h *MetaHandler) GetPlatforms(c *fiber.Ctx) error {
	out := make([]models.PlatformSettings, 0, len(models.AllPlatforms))
	for _, p := range models.AllPlatforms {
		ps, err := h.settings.Get(c.Context(), p)
		if err != nil {
			return respondError(c, h.log, err)
		}
		out = append(out, *ps)
	}
	return ok(c, out)
}

func (h *MetaHandler) GetCurrencies(c *fiber.Ctx) error {
	currencies, err := h.currencies.List(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	active := currencies[:0]
	for _, cur := range currencies {
		if cur.IsActive {
			active = append(active, cur)
		}
	}
	return ok(c, active)
}
