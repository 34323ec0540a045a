package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdminUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, f repositories.UserFilter) ([]models.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type VerificationStore interface {
	SetVerificationStatus(ctx context.Context, role string, userID uuid.UUID, status string, reason *string) error
}

type BrandCampaignPauser interface {
	PauseAllForBrand(ctx context.Context, actor Actor, brandID uuid.UUID) (int, error)
}

type LedgerPoster interface {
	Post(ctx context.Context, e models.LedgerEntry, actor Actor) (*models.WalletTransaction, error)
}

type AuditReader interface {
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

// Adjustment is a manual correction to one wallet.
type Adjustment struct {
	UserID         uuid.UUID
	Currency       string
	Direction      string
	Amount         decimal.Decimal
	Reason         string
	IdempotencyKey string
}

// AdminService holds operator overrides. Every method requires an admin
// actor.
type AdminService struct {
	users     AdminUserStore
	statuses  VerificationStore
	campaigns BrandCampaignPauser
	ledger    LedgerPoster
	audits    AuditReader
	notify    Notifier
	audit     AuditLogger
	log       *zap.Logger
}

func NewAdminService(
	users AdminUserStore,
	statuses VerificationStore,
	campaigns BrandCampaignPauser,
	ledger LedgerPoster,
	audits AuditReader,
	notifier Notifier,
	audit AuditLogger,
	log *zap.Logger,
) *AdminService {
	return &AdminService{
		users:     users,
		statuses:  statuses,
		campaigns: campaigns,
		ledger:    ledger,
		audits:    audits,
		notify:    notifier,
		audit:     audit,
		log:       log,
	}
}

func (s *AdminService) ListUsers(ctx context.Context, actor Actor, f repositories.UserFilter) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return s.users.List(ctx, f)
}

func (s *AdminService) SetUserActive(ctx context.Context, actor Actor, userID uuid.UUID, active bool) error {
	if !actor.IsAdmin() {
		return models.ErrForbidden
	}
	if userID == actor.UserID && !active {
		return models.NewValidationError("admins cannot deactivate themselves")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return err
	}
	action := "user_deactivated"
	if active {
		action = "user_activated"
	}
	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: &actor.UserID,
		ActorType:   models.ActorAdmin,
		Action:      action,
		EntityType:  "user",
		EntityID:    &userID,
	})
	return nil
}

// SetVerification applies an approve, reject, request_info, pause or
// unpause action to a brand or influencer. Pausing a brand also pauses
// its active campaigns.
func (s *AdminService) SetVerification(ctx context.Context, actor Actor, userID uuid.UUID, action, reason string) (string, error) {
	if !actor.IsAdmin() {
		return "", models.ErrForbidden
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	statuses, ok := models.VerificationActions[user.Role]
	if !ok {
		return "", models.NewValidationError("only brands and influencers have a verification status")
	}
	status, ok := statuses[action]
	if !ok {
		return "", models.NewValidationError(fmt.Sprintf("unknown action %q", action))
	}
	reason = strings.TrimSpace(reason)
	if action == "pause" && reason == "" {
		return "", models.NewValidationError("a reason is required to pause an account")
	}
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	if err := s.statuses.SetVerificationStatus(ctx, user.Role, userID, status, reasonPtr); err != nil {
		return "", err
	}

	paused := 0
	if user.Role == models.RoleBrand && status == models.BrandStatusPaused && s.campaigns != nil {
		paused, err = s.campaigns.PauseAllForBrand(ctx, actor, userID)
		if err != nil {
			s.log.Error("pause brand campaigns", zap.String("brand_id", userID.String()), zap.Error(err))
		}
	}

	message := fmt.Sprintf("Your account status is now %s.", strings.ReplaceAll(status, "_", " "))
	if reason != "" {
		message += " Reason: " + reason
	}
	notify(ctx, s.notify, s.log, userID, models.NotifyAccountStatus, "Account status changed", message, "/profile")
	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: &actor.UserID,
		ActorType:   models.ActorAdmin,
		Action:      "verification_" + action,
		EntityType:  user.Role,
		EntityID:    &userID,
		Meta:        map[string]any{"status": status, "reason": reason, "campaigns_paused": paused},
	})
	s.log.Info("verification status changed",
		zap.String("user_id", userID.String()),
		zap.String("role", user.Role),
		zap.String("status", status))
	return status, nil
}

// AdjustWallet posts a manual credit or debit with kind adjustment.
func (s *AdminService) AdjustWallet(ctx context.Context, actor Actor, adj Adjustment) (*models.WalletTransaction, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	adj.Reason = strings.TrimSpace(adj.Reason)
	if adj.Reason == "" {
		return nil, models.NewValidationError("reason is required")
	}
	if _, err := s.users.GetByID(ctx, adj.UserID); err != nil {
		return nil, err
	}
	key := ""
	if k := strings.TrimSpace(adj.IdempotencyKey); k != "" {
		key = "adjustment:" + k
	}
	return s.ledger.Post(ctx, models.LedgerEntry{
		UserID:         adj.UserID,
		Currency:       strings.ToUpper(adj.Currency),
		Direction:      adj.Direction,
		Kind:           models.TxKindAdjustment,
		Amount:         adj.Amount,
		Reason:         adj.Reason,
		ReferenceType:  "admin",
		ReferenceID:    &actor.UserID,
		IdempotencyKey: key,
	}, actor)
}

func (s *AdminService) AuditTrail(ctx context.Context, actor Actor, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	return s.audits.GetByEntity(ctx, entityType, entityID, limit, offset)
}
