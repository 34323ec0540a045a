package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type MatchStore interface {
	MatchInfluencers(ctx context.Context, crit models.EligibilityCriteria, currencies []string, limit, offset int) ([]models.MatchedInfluencer, error)
	FeedCandidates(ctx context.Context, influencerID uuid.UUID, limit, offset int) ([]models.Campaign, error)
	LoadCandidate(ctx context.Context, influencerID uuid.UUID) (*models.Candidate, error)
}

type CampaignGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
}

type SettingsProvider interface {
	Get(ctx context.Context, platform string) (*models.PlatformSettings, error)
}

// FeedItem is a campaign offered to an influencer with the payout in
// their own currency.
type FeedItem struct {
	Campaign         models.Campaign `json:"campaign"`
	PayoutPerJob     decimal.Decimal `json:"payout_per_job"`
	PayoutInCurrency decimal.Decimal `json:"payout_in_currency"`
	PayoutCurrency   string          `json:"payout_currency"`
}

type MatchingService struct {
	store     MatchStore
	campaigns CampaignGetter
	settings  SettingsProvider
	rates     RateProvider
	log       *zap.Logger
}

func NewMatchingService(store MatchStore, campaigns CampaignGetter, settings SettingsProvider, rates RateProvider, log *zap.Logger) *MatchingService {
	return &MatchingService{
		store:     store,
		campaigns: campaigns,
		settings:  settings,
		rates:     rates,
		log:       log,
	}
}

// Criteria resolves the eligibility rules of a campaign.
func (s *MatchingService) Criteria(ctx context.Context, c *models.Campaign) (models.EligibilityCriteria, error) {
	ps, err := s.settings.Get(ctx, c.Platform)
	if err != nil {
		return models.EligibilityCriteria{}, err
	}
	return models.CriteriaFor(c, ps), nil
}

// Matches lists influencers eligible for a campaign the caller owns.
func (s *MatchingService) Matches(ctx context.Context, actor Actor, campaignID uuid.UUID, limit, offset int) ([]models.MatchedInfluencer, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && c.BrandID != actor.UserID {
		return nil, models.ErrNotFound
	}

	crit, err := s.Criteria(ctx, c)
	if err != nil {
		return nil, err
	}
	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return nil, err
	}
	currencies := []string{c.Currency}
	for code := range rates.Currencies {
		if code != c.Currency && rates.Compatible(c.Currency, code) {
			currencies = append(currencies, code)
		}
	}
	return s.store.MatchInfluencers(ctx, crit, currencies, limit, offset)
}

// Feed returns the active campaigns an influencer can take right now.
func (s *MatchingService) Feed(ctx context.Context, influencerID uuid.UUID, limit, offset int) ([]FeedItem, error) {
	cand, err := s.store.LoadCandidate(ctx, influencerID)
	if err != nil {
		return nil, err
	}
	if cand.VerificationStatus != models.InfluencerStatusApproved {
		return []FeedItem{}, nil
	}
	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return nil, err
	}

	campaigns, err := s.store.FeedCandidates(ctx, influencerID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(campaigns))
	for i := range campaigns {
		c := &campaigns[i]
		crit, err := s.Criteria(ctx, c)
		if err != nil {
			return nil, err
		}
		if !models.IsEligible(crit, *cand, rates) {
			continue
		}
		payout := c.PayoutPerJob()
		if !c.CanAllocate(payout) {
			continue
		}
		converted, err := c.PayoutIn(cand.Currency, rates)
		if err != nil {
			continue
		}
		items = append(items, FeedItem{
			Campaign:         *c,
			PayoutPerJob:     payout,
			PayoutInCurrency: converted,
			PayoutCurrency:   cand.Currency,
		})
	}
	return items, nil
}

// Check evaluates one influencer against one campaign.
func (s *MatchingService) Check(ctx context.Context, influencerID uuid.UUID, c *models.Campaign) (models.Eligibility, *models.Candidate, error) {
	cand, err := s.store.LoadCandidate(ctx, influencerID)
	if err != nil {
		return models.Eligibility{}, nil, err
	}
	crit, err := s.Criteria(ctx, c)
	if err != nil {
		return models.Eligibility{}, nil, err
	}
	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return models.Eligibility{}, nil, err
	}
	reasons := models.CheckEligibility(crit, *cand, rates)
	return models.Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}, cand, nil
}

// Eligibility answers the check for a campaign ID, as shown to the
// influencer before applying.
func (s *MatchingService) Eligibility(ctx context.Context, influencerID, campaignID uuid.UUID) (models.Eligibility, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return models.Eligibility{}, err
	}
	if c.Status != models.CampaignStatusActive {
		return models.Eligibility{}, models.ErrNotFound
	}
	e, _, err := s.Check(ctx, influencerID, c)
	return e, err
}
