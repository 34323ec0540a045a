package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

func (a Actor) auditType() string {
	if a.IsAdmin() {
		return models.ActorAdmin
	}
	return models.ActorUser
}

// SystemActor is used by the worker and webhooks.
var SystemActor = Actor{Role: models.ActorSystem}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// Notifier delivers an in-app notification to one user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, message, link string) error
}

// LedgerRecorder accounts for entries posted inside other services'
// transactions.
type LedgerRecorder interface {
	Record(ctx context.Context, t *models.WalletTransaction, actor Actor)
}

// RateProvider returns the current currency table.
type RateProvider interface {
	Rates(ctx context.Context) (models.RateTable, error)
}

// IneligibleError lists why an influencer cannot take a campaign.
type IneligibleError struct {
	Reasons []string
}

func (e *IneligibleError) Error() string {
	return "not eligible: " + strings.Join(e.Reasons, ", ")
}

func (e *IneligibleError) Unwrap() error { return models.ErrIneligible }

func audit(ctx context.Context, a AuditLogger, log *zap.Logger, entry models.AuditLog) {
	if a == nil {
		return
	}
	if err := a.Log(ctx, entry); err != nil {
		log.Warn("audit log write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func notify(ctx context.Context, n Notifier, log *zap.Logger, userID uuid.UUID, kind, title, message, link string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, kind, title, message, link); err != nil {
		log.Warn("notification failed", zap.String("type", kind), zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func actorPtr(a Actor) *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

// isBusinessError reports whether err is an expected outcome rather
// than an infrastructure failure.
func isBusinessError(err error) bool {
	var ve *models.ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrForbidden) ||
		errors.Is(err, models.ErrInsufficientFunds) ||
		errors.Is(err, models.ErrDuplicateEntry) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrIneligible) ||
		errors.Is(err, models.ErrCampaignFull) ||
		errors.Is(err, models.ErrAlreadyApplied) ||
		errors.Is(err, models.ErrAwaitingReview) ||
		errors.Is(err, models.ErrPaymentNotPending) ||
		errors.Is(err, models.ErrCurrencyUnsupported) ||
		errors.Is(err, models.ErrInvalidAmount)
}

func formatMoney(amount fmt.Stringer, currency string) string {
	return amount.String() + " " + currency
}
