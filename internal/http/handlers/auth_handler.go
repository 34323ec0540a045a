package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pushit/marketplace/internal/http/dto"
	"github.com/pushit/marketplace/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAuthHandler(accounts *services.AccountService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: log}
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	session, err := h.accounts.Signup(c.Context(), services.SignupInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		Role:            req.Role,
		Currency:        req.Currency,
		CompanyName:     req.CompanyName,
		Niche:           req.Niche,
		PrimaryPlatform: req.PrimaryPlatform,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{Token: session.Token, User: session.User})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, h.log, err)
	}

	session, err := h.accounts.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(dto.AuthResponse{Token: session.Token, User: session.User})
}
