package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/middleware"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaigns *services.CampaignService
	matching  *services.MatchingService
	log       *zap.Logger
}

func NewCampaignHandler(campaigns *services.CampaignService, matching *services.MatchingService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, matching: matching, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	campaign, err := h.campaigns.Create(c.Context(), actorFrom(c), services.CampaignInput{
		Name:          req.Name,
		Description:   req.Description,
		Platform:      req.Platform,
		Niche:         req.Niche,
		PackageVideos: req.PackageVideos,
		Budget:        req.Budget,
		Currency:      req.Currency,
		MinFollowers:  req.MinFollowers,
		StartDate:     req.StartDate,
		DueDate:       req.DueDate,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, campaign)
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	campaign, err := h.campaigns.Get(c.Context(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, campaign)
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	campaigns, err := h.campaigns.List(c.Context(), actorFrom(c), repositories.CampaignFilter{
		Status:   queryPtr(c, "status"),
		Platform: queryPtr(c, "platform"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, campaigns)
}

func (h *CampaignHandler) UpdateCampaign(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.UpdateCampaignRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	campaign, err := h.campaigns.Update(c.Context(), actorFrom(c), id, services.CampaignUpdate{
		Name:          req.Name,
		Description:   req.Description,
		Niche:         req.Niche,
		MinFollowers:  req.MinFollowers,
		StartDate:     req.StartDate,
		DueDate:       req.DueDate,
		Platform:      req.Platform,
		PackageVideos: req.PackageVideos,
		Budget:        req.Budget,
		Currency:      req.Currency,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, campaign)
}

// Transition serves the lifecycle endpoints: activate, pause, resume,
// complete and cancel.
func (h *CampaignHandler) Transition(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return respondError(c, h.log, err)
		}
		actor := actorFrom(c)

		var campaign *models.Campaign
		switch action {
		case "activate":
			campaign, err = h.campaigns.Activate(c.Context(), actor, id)
		case "pause":
			campaign, err = h.campaigns.Pause(c.Context(), actor, id)
		case "resume":
			campaign, err = h.campaigns.Resume(c.Context(), actor, id)
		case "complete":
			campaign, err = h.campaigns.Complete(c.Context(), actor, id)
		case "cancel":
			campaign, err = h.campaigns.Cancel(c.Context(), actor, id)
		default:
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "unknown action"})
		}
		if err != nil {
			return respondError(c, h.log, err)
		}
		return ok(c, campaign)
	}
}

// Matches lists the influencers eligible for a campaign, best first.
func (h *CampaignHandler) Matches(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	limit, offset := pagination(c)
	matches, err := h.matching.Matches(c.Context(), actorFrom(c), id, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, matches)
}

// Feed lists active campaigns the calling influencer can apply to.
func (h *CampaignHandler) Feed(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	items, err := h.matching.Feed(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, items)
}

func (h *CampaignHandler) Eligibility(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	result, err := h.matching.Eligibility(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, result)
}
