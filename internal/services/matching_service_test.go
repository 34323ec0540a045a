package services

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeMatchStore struct {
	candidate  *models.Candidate
	campaigns  []models.Campaign
	crit       models.EligibilityCriteria
	currencies []string
}

func (f *fakeMatchStore) MatchInfluencers(_ context.Context, crit models.EligibilityCriteria, currencies []string, _, _ int) ([]models.MatchedInfluencer, error) {
	f.crit = crit
	f.currencies = currencies
	return []models.MatchedInfluencer{{InfluencerID: uuid.New()}}, nil
}

func (f *fakeMatchStore) FeedCandidates(context.Context, uuid.UUID, int, int) ([]models.Campaign, error) {
	return f.campaigns, nil
}

func (f *fakeMatchStore) LoadCandidate(context.Context, uuid.UUID) (*models.Candidate, error) {
	if f.candidate == nil {
		return nil, models.ErrNotFound
	}
	return f.candidate, nil
}

type staticSettings map[string]int

func (s staticSettings) Get(_ context.Context, platform string) (*models.PlatformSettings, error) {
	threshold, ok := s[platform]
	if !ok {
		threshold = models.DefaultMinimumFollowers
	}
	return &models.PlatformSettings{Platform: platform, MinimumFollowers: threshold, IsActive: true}, nil
}

func verifiedCandidate(followers int) *models.Candidate {
	return &models.Candidate{
		InfluencerID:       uuid.New(),
		VerificationStatus: models.InfluencerStatusApproved,
		Niche:              "fashion",
		Currency:           "GHS",
		Connections: []models.PlatformConnection{{
			Platform:           models.PlatformTikTok,
			FollowersCount:     followers,
			VerificationStatus: models.ConnectionStatusVerified,
		}},
	}
}

func activeCampaign(niche string, minFollowers int) models.Campaign {
	c := models.Campaign{
		ID:            uuid.New(),
		BrandID:       uuid.New(),
		Platform:      models.PlatformTikTok,
		PackageVideos: 4,
		Budget:        decimal.NewFromInt(10000),
		Currency:      "NGN",
		MinFollowers:  minFollowers,
		Status:        models.CampaignStatusActive,
	}
	if niche != "" {
		c.Niche = &niche
	}
	return c
}

func TestFeedFiltersAndConverts(t *testing.T) {
	full := activeCampaign("", 0)
	full.Allocated = decimal.NewFromInt(9000)

	store := &fakeMatchStore{
		candidate: verifiedCandidate(5000),
		campaigns: []models.Campaign{
			activeCampaign("Fashion", 0),
			activeCampaign("gaming", 0),
			activeCampaign("", 10000),
			full,
		},
	}
	svc := NewMatchingService(store, nil, staticSettings{}, ngnGhsRates(), zap.NewNop())

	items, err := svc.Feed(context.Background(), store.candidate.InfluencerID, 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("feed has %d items, want 1", len(items))
	}
	if !items[0].PayoutPerJob.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("PayoutPerJob = %s, want 2500", items[0].PayoutPerJob)
	}
	if !items[0].PayoutInCurrency.Equal(decimal.NewFromInt(25)) || items[0].PayoutCurrency != "GHS" {
		t.Errorf("payout = %s %s, want 25 GHS", items[0].PayoutInCurrency, items[0].PayoutCurrency)
	}
}

func TestFeedEmptyForUnapproved(t *testing.T) {
	cand := verifiedCandidate(5000)
	cand.VerificationStatus = models.InfluencerStatusPending
	store := &fakeMatchStore{candidate: cand, campaigns: []models.Campaign{activeCampaign("", 0)}}
	svc := NewMatchingService(store, nil, staticSettings{}, ngnGhsRates(), zap.NewNop())

	items, err := svc.Feed(context.Background(), cand.InfluencerID, 20, 0)
	if err != nil || len(items) != 0 {
		t.Errorf("Feed = %d items, %v, want empty", len(items), err)
	}
}

func TestMatchesUsesPlatformThreshold(t *testing.T) {
	c := activeCampaign("fashion", 0)
	campaigns := newFakeCampaigns(newFakeLedger())
	campaigns.rows[c.ID] = &c

	store := &fakeMatchStore{}
	svc := NewMatchingService(store, campaigns, staticSettings{models.PlatformTikTok: 2500}, ngnGhsRates(), zap.NewNop())

	owner := Actor{UserID: c.BrandID, Role: models.RoleBrand}
	if _, err := svc.Matches(context.Background(), owner, c.ID, 20, 0); err != nil {
		t.Fatal(err)
	}
	if store.crit.MinFollowers != 2500 || store.crit.Niche != "fashion" {
		t.Errorf("criteria = %+v, want threshold 2500 and niche fashion", store.crit)
	}
	sort.Strings(store.currencies)
	if len(store.currencies) != 2 || store.currencies[0] != "GHS" || store.currencies[1] != "NGN" {
		t.Errorf("currencies = %v, want [GHS NGN]", store.currencies)
	}

	stranger := Actor{UserID: uuid.New(), Role: models.RoleBrand}
	if _, err := svc.Matches(context.Background(), stranger, c.ID, 20, 0); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Matches by other brand err = %v, want ErrNotFound", err)
	}
}

func TestEligibilityReasons(t *testing.T) {
	c := activeCampaign("gaming", 10000)
	campaigns := newFakeCampaigns(newFakeLedger())
	campaigns.rows[c.ID] = &c
	store := &fakeMatchStore{candidate: verifiedCandidate(5000)}
	svc := NewMatchingService(store, campaigns, staticSettings{}, ngnGhsRates(), zap.NewNop())

	e, err := svc.Eligibility(context.Background(), store.candidate.InfluencerID, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Eligible {
		t.Fatal("expected ineligible")
	}
	want := map[string]bool{models.ReasonBelowMinFollowers: true, models.ReasonNicheMismatch: true}
	if len(e.Reasons) != len(want) {
		t.Fatalf("reasons = %v", e.Reasons)
	}
	for _, r := range e.Reasons {
		if !want[r] {
			t.Errorf("unexpected reason %q", r)
		}
	}
}
