package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	List(ctx context.Context, f repositories.CampaignFilter) ([]models.Campaign, error)
	Transition(ctx context.Context, id uuid.UUID, to string) (*repositories.CampaignTransition, error)
}

type BrandReader interface {
	GetBrand(ctx context.Context, userID uuid.UUID) (*models.Brand, error)
}

type CampaignInput struct {
	Name          string
	Description   string
	Platform      string
	Niche         string
	PackageVideos int
	Budget        decimal.Decimal
	Currency      string
	MinFollowers  int
	StartDate     *time.Time
	DueDate       *time.Time
}

// CampaignUpdate carries the fields a brand wants to change. Nil means
// unchanged.
type CampaignUpdate struct {
	Name          *string
	Description   *string
	Niche         *string
	MinFollowers  *int
	StartDate     *time.Time
	DueDate       *time.Time
	Platform      *string
	PackageVideos *int
	Budget        *decimal.Decimal
	Currency      *string
}

func (u CampaignUpdate) touchesMoney() bool {
	return u.Platform != nil || u.PackageVideos != nil || u.Budget != nil || u.Currency != nil
}

type CampaignService struct {
	store  CampaignStore
	brands BrandReader
	rates  RateProvider
	ledger LedgerRecorder
	notify Notifier
	audit  AuditLogger
	log    *zap.Logger
}

func NewCampaignService(
	store CampaignStore,
	brands BrandReader,
	rates RateProvider,
	ledger LedgerRecorder,
	notifier Notifier,
	audit AuditLogger,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		store:  store,
		brands: brands,
		rates:  rates,
		ledger: ledger,
		notify: notifier,
		audit:  audit,
		log:    log,
	}
}

func validateCampaign(c *models.Campaign) error {
	if strings.TrimSpace(c.Name) == "" {
		return models.NewValidationError("name is required")
	}
	if !models.IsValidPlatform(c.Platform) {
		return models.NewValidationError("unknown platform")
	}
	if c.PackageVideos < 1 {
		return models.NewValidationError("package_videos must be at least 1")
	}
	if !c.Budget.IsPositive() {
		return models.NewValidationError("budget must be positive")
	}
	if !models.IsWholeCents(c.Budget) {
		return models.NewValidationError("budget has more than 2 decimal places")
	}
	if c.PayoutPerJob().LessThan(models.MinPayout) {
		return models.NewValidationError(fmt.Sprintf("budget is too small to pay %d videos", c.PackageVideos))
	}
	if c.MinFollowers < 0 {
		return models.NewValidationError("min_followers must not be negative")
	}
	if c.StartDate != nil && c.DueDate != nil && c.DueDate.Before(*c.StartDate) {
		return models.NewValidationError("due_date is before start_date")
	}
	return nil
}

func (s *CampaignService) Create(ctx context.Context, actor Actor, in CampaignInput) (*models.Campaign, error) {
	if actor.Role != models.RoleBrand {
		return nil, models.ErrForbidden
	}
	brand, err := s.brands.GetBrand(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	c := &models.Campaign{
		BrandID:       actor.UserID,
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Platform:      in.Platform,
		PackageVideos: in.PackageVideos,
		Budget:        in.Budget,
		Currency:      strings.ToUpper(in.Currency),
		MinFollowers:  in.MinFollowers,
		StartDate:     in.StartDate,
		DueDate:       in.DueDate,
	}
	if c.Currency == "" {
		c.Currency = brand.Currency
	}
	if n := normalizeNiche(in.Niche); n != "" {
		c.Niche = &n
	}
	if err := validateCampaign(c); err != nil {
		return nil, err
	}
	if err := s.checkCurrency(ctx, c.Currency); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: &actor.UserID,
		ActorType:   models.ActorUser,
		Action:      "campaign_created",
		EntityType:  "campaign",
		EntityID:    &c.ID,
		Meta:        map[string]any{"budget": c.Budget.String(), "currency": c.Currency, "platform": c.Platform},
	})
	return c, nil
}

func (s *CampaignService) checkCurrency(ctx context.Context, code string) error {
	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return err
	}
	if !rates.Supports(code) {
		return models.ErrCurrencyUnsupported
	}
	return nil
}

// Get returns a campaign visible to the caller. Influencers only see
// campaigns that are live.
func (s *CampaignService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin(), c.BrandID == actor.UserID:
		return c, nil
	case actor.Role == models.RoleInfluencer && c.Status == models.CampaignStatusActive:
		return c, nil
	}
	return nil, models.ErrNotFound
}

// owned loads a campaign the caller may manage.
func (s *CampaignService) owned(ctx context.Context, actor Actor, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && c.BrandID != actor.UserID {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, actor Actor, f repositories.CampaignFilter) ([]models.Campaign, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleBrand:
		f.BrandID = &actor.UserID
	default:
		return nil, models.ErrForbidden
	}
	return s.store.List(ctx, f)
}

func (s *CampaignService) Update(ctx context.Context, actor Actor, id uuid.UUID, u CampaignUpdate) (*models.Campaign, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if models.IsClosedCampaignStatus(c.Status) {
		return nil, fmt.Errorf("campaign is %s: %w", c.Status, models.ErrInvalidTransition)
	}
	if u.touchesMoney() && c.Status != models.CampaignStatusDraft {
		return nil, fmt.Errorf("budget, platform, currency and package are fixed once funded: %w", models.ErrInvalidTransition)
	}

	if u.Name != nil {
		c.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Niche != nil {
		if n := normalizeNiche(*u.Niche); n != "" {
			c.Niche = &n
		} else {
			c.Niche = nil
		}
	}
	if u.MinFollowers != nil {
		c.MinFollowers = *u.MinFollowers
	}
	if u.StartDate != nil {
		c.StartDate = u.StartDate
	}
	if u.DueDate != nil {
		c.DueDate = u.DueDate
	}
	if u.Platform != nil {
		c.Platform = *u.Platform
	}
	if u.PackageVideos != nil {
		c.PackageVideos = *u.PackageVideos
	}
	if u.Budget != nil {
		c.Budget = *u.Budget
	}
	if u.Currency != nil {
		c.Currency = strings.ToUpper(*u.Currency)
		if err := s.checkCurrency(ctx, c.Currency); err != nil {
			return nil, err
		}
	}
	if err := validateCampaign(c); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: actorPtr(actor),
		ActorType:   actor.auditType(),
		Action:      "campaign_updated",
		EntityType:  "campaign",
		EntityID:    &c.ID,
	})
	return c, nil
}

// Activate funds a draft campaign from the brand wallet and opens it to
// influencers.
func (s *CampaignService) Activate(ctx context.Context, actor Actor, id uuid.UUID) (*models.Campaign, error) {
	return s.transition(ctx, actor, id, models.CampaignStatusActive)
}

func (s *CampaignService) Pause(ctx context.Context, actor Actor, id uuid.UUID) (*models.Campaign, error) {
	return s.transition(ctx, actor, id, models.CampaignStatusPaused)
}

func (s *CampaignService) Resume(ctx context.Context, actor Actor, id uuid.UUID) (*models.Campaign, error) {
	return s.transition(ctx, actor, id, models.CampaignStatusActive)
}

func (s *CampaignService) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*models.Campaign, error) {
	return s.transition(ctx, actor, id, models.CampaignStatusCompleted)
}

// Cancel is also what deleting a campaign does.
func (s *CampaignService) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*models.Campaign, error) {
	return s.transition(ctx, actor, id, models.CampaignStatusCancelled)
}

func (s *CampaignService) transition(ctx context.Context, actor Actor, id uuid.UUID, to string) (*models.Campaign, error) {
	c, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !models.IsValidCampaignTransition(c.Status, to) {
		return nil, fmt.Errorf("campaign %s -> %s: %w", c.Status, to, models.ErrInvalidTransition)
	}
	if to == models.CampaignStatusActive {
		brand, err := s.brands.GetBrand(ctx, c.BrandID)
		if err != nil {
			return nil, err
		}
		if !brand.CanFundCampaigns() {
			return nil, fmt.Errorf("brand is %s: %w", brand.VerificationStatus, models.ErrForbidden)
		}
	}

	res, err := s.store.Transition(ctx, id, to)
	if err != nil {
		return nil, err
	}
	s.ledger.Record(ctx, res.Entry, actor)

	for _, j := range res.CancelledJobs {
		notify(ctx, s.notify, s.log, j.InfluencerID, models.NotifyCampaignStatus,
			"Campaign closed",
			fmt.Sprintf("%q was %s and your job was cancelled.", res.Campaign.Name, to),
			"/jobs/"+j.ID.String())
	}
	if res.Entry != nil && res.Entry.Kind == models.TxKindRefund {
		notify(ctx, s.notify, s.log, res.Campaign.BrandID, models.NotifyCampaignStatus,
			"Campaign budget refunded",
			fmt.Sprintf("%s was returned to your wallet from %q.", formatMoney(res.Entry.Amount, res.Entry.Currency), res.Campaign.Name),
			"/campaigns/"+res.Campaign.ID.String())
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: actorPtr(actor),
		ActorType:   actor.auditType(),
		Action:      "campaign_" + to,
		EntityType:  "campaign",
		EntityID:    &res.Campaign.ID,
		Meta: map[string]any{
			"from":           res.From,
			"to":             to,
			"cancelled_jobs": len(res.CancelledJobs),
		},
	})
	s.log.Info("campaign status changed",
		zap.String("campaign_id", id.String()),
		zap.String("from", res.From),
		zap.String("to", to),
	)
	return res.Campaign, nil
}

const pauseBatch = 100

// PauseAllForBrand pauses every active campaign of a brand that has been
// paused by an admin. It returns how many were paused.
func (s *CampaignService) PauseAllForBrand(ctx context.Context, actor Actor, brandID uuid.UUID) (int, error) {
	status := models.CampaignStatusActive
	paused := 0
	// Paused campaigns drop out of the filter, so every pass reads the
	// first page again.
	for {
		active, err := s.store.List(ctx, repositories.CampaignFilter{BrandID: &brandID, Status: &status, Limit: pauseBatch})
		if err != nil {
			return paused, err
		}
		progressed := 0
		for _, c := range active {
			if _, err := s.transition(ctx, actor, c.ID, models.CampaignStatusPaused); err != nil {
				if errors.Is(err, models.ErrInvalidTransition) {
					continue
				}
				return paused, err
			}
			progressed++
		}
		paused += progressed
		if progressed == 0 || len(active) < pauseBatch {
			return paused, nil
		}
	}
}
