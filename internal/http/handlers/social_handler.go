package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/middleware"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

// SocialHandler serves platform connections for influencers.
type SocialHandler struct {
	social *services.SocialService
	log    *zap.Logger
}

func NewSocialHandler(social *services.SocialService, log *zap.Logger) *SocialHandler {
	return &SocialHandler{social: social, log: log}
}

// GET /me/platforms/:platform/connect
func (h *SocialHandler) Connect(c *fiber.Ctx) error {
	url, err := h.social.Connect(c.Context(), actorFrom(c), c.Params("platform"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, dto.ConnectResponse{AuthorizationURL: url})
}

// Callback is the OAuth redirect target. It is public: the state token
// identifies the influencer.
// GET /social/:platform/callback
func (h *SocialHandler) Callback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		return badRequest(c, "authorization denied: "+reason)
	}
	conn, err := h.social.Callback(c.Context(), c.Params("platform"), c.Query("code"), c.Query("state"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, conn)
}

// POST /me/platforms
func (h *SocialHandler) AddManual(c *fiber.Ctx) error {
	var req dto.ManualConnectionRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}
	conn, err := h.social.AddManual(c.Context(), actorFrom(c), req.Platform, req.Handle, req.FollowersCount)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return created(c, conn)
}

// GET /me/platforms
func (h *SocialHandler) List(c *fiber.Ctx) error {
	conns, err := h.social.ListConnections(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, conns)
}

// POST /me/platforms/:id/reverify
func (h *SocialHandler) Reverify(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	check, err := h.social.ReverifyConnection(c.Context(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return ok(c, check)
}
