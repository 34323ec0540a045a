package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

var ValidCampaignTransitions = map[string][]string{
	CampaignStatusDraft:     {CampaignStatusActive, CampaignStatusCancelled},
	CampaignStatusActive:    {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusPaused:    {CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusCompleted: {},
	CampaignStatusCancelled: {},
}

func IsValidCampaignTransition(from, to string) bool {
	return containsStatus(ValidCampaignTransitions[from], to)
}

// IsClosedCampaignStatus reports whether no more money can flow through
// a campaign in this status.
func IsClosedCampaignStatus(s string) bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}

type Campaign struct {
	ID            uuid.UUID       `json:"id"`
	BrandID       uuid.UUID       `json:"brand_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Platform      string          `json:"platform"`
	Niche         *string         `json:"niche,omitempty"`
	PackageVideos int             `json:"package_videos"`
	Budget        decimal.Decimal `json:"budget"`
	Currency      string          `json:"currency"`
	MinFollowers  int             `json:"min_followers"`
	Allocated     decimal.Decimal `json:"allocated"`
	Spent         decimal.Decimal `json:"spent"`
	StartDate     *time.Time      `json:"start_date,omitempty"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MinPayout is the smallest amount a job can pay out.
var MinPayout = decimal.New(1, -2)

// PayoutPerJob splits the budget evenly over the package.
func (c *Campaign) PayoutPerJob() decimal.Decimal {
	if c.PackageVideos <= 0 {
		return decimal.Zero
	}
	return c.Budget.DivRound(decimal.NewFromInt(int64(c.PackageVideos)), 2)
}

// PayoutIn converts the per-job payout into currency. A payout that
// rounds below MinPayout in that currency could never be credited, so the
// campaign is not open to that influencer.
func (c *Campaign) PayoutIn(currency string, rates RateTable) (decimal.Decimal, error) {
	converted, err := rates.Convert(c.PayoutPerJob(), c.Currency, currency)
	if err != nil {
		return decimal.Zero, err
	}
	if converted.LessThan(MinPayout) {
		return decimal.Zero, fmt.Errorf("payout of %s %s is below the minimum in %s: %w",
			c.PayoutPerJob(), c.Currency, currency, ErrIneligible)
	}
	return converted, nil
}

// Remaining is the budget not yet promised to any job.
func (c *Campaign) Remaining() decimal.Decimal {
	return c.Budget.Sub(c.Allocated)
}

// CanAllocate reports whether one more job of payout fits in the budget.
// A payout below MinPayout never fits.
func (c *Campaign) CanAllocate(payout decimal.Decimal) bool {
	if payout.LessThan(MinPayout) {
		return false
	}
	return c.Allocated.Add(payout).LessThanOrEqual(c.Budget)
}

// Refundable is what goes back to the brand when the campaign closes.
func (c *Campaign) Refundable() decimal.Decimal {
	r := c.Budget.Sub(c.Spent)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func containsStatus(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
