package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsValidCampaignTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{CampaignStatusDraft, CampaignStatusActive, true},
		{CampaignStatusDraft, CampaignStatusCancelled, true},
		{CampaignStatusActive, CampaignStatusPaused, true},
		{CampaignStatusPaused, CampaignStatusActive, true},
		{CampaignStatusActive, CampaignStatusCompleted, true},
		{CampaignStatusPaused, CampaignStatusCancelled, true},

		{CampaignStatusDraft, CampaignStatusCompleted, false},
		{CampaignStatusDraft, CampaignStatusPaused, false},
		{CampaignStatusCompleted, CampaignStatusActive, false},
		{CampaignStatusCancelled, CampaignStatusActive, false},
		{CampaignStatusActive, CampaignStatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidCampaignTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidCampaignTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestCampaignBudgetMath(t *testing.T) {
	c := &Campaign{
		Budget:        decimal.RequireFromString("1000"),
		PackageVideos: 3,
	}

	payout := c.PayoutPerJob()
	if payout.String() != "333.33" {
		t.Fatalf("PayoutPerJob = %s, want 333.33", payout)
	}

	for i := 0; i < 3; i++ {
		if !c.CanAllocate(payout) {
			t.Fatalf("slot %d should fit", i)
		}
		c.Allocated = c.Allocated.Add(payout)
	}
	if c.CanAllocate(payout) {
		t.Error("fourth slot should not fit")
	}
	if c.Remaining().String() != "0.01" {
		t.Errorf("Remaining = %s, want 0.01", c.Remaining())
	}

	c.Spent = payout
	if c.Refundable().String() != "666.67" {
		t.Errorf("Refundable = %s, want 666.67", c.Refundable())
	}
}

func TestPayoutPerJobZeroPackage(t *testing.T) {
	c := &Campaign{Budget: decimal.NewFromInt(100)}
	if !c.PayoutPerJob().IsZero() {
		t.Errorf("PayoutPerJob with no package = %s, want 0", c.PayoutPerJob())
	}
}

func TestPayoutBelowMinimumNeverAllocates(t *testing.T) {
	c := &Campaign{Budget: decimal.RequireFromString("0.01"), PackageVideos: 3}
	if !c.PayoutPerJob().IsZero() {
		t.Fatalf("PayoutPerJob = %s, want 0", c.PayoutPerJob())
	}
	if c.CanAllocate(c.PayoutPerJob()) {
		t.Error("a zero payout must not take a slot")
	}
}

func TestPayoutIn(t *testing.T) {
	rates := testRates()
	tests := []struct {
		name     string
		budget   string
		currency string
		want     string
		wantErr  error
	}{
		{"same currency", "300", "NGN", "100", nil},
		{"converted", "4500", "USD", "1", nil},
		{"rounds to zero", "15", "USD", "", ErrIneligible},
		{"inactive currency", "300", "EUR", "", ErrCurrencyUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Campaign{Budget: decimal.RequireFromString(tt.budget), PackageVideos: 3, Currency: "NGN"}
			got, err := c.PayoutIn(tt.currency, rates)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("PayoutIn(%q) err = %v, want %v", tt.currency, err, tt.wantErr)
				}
				return
			}
			if err != nil || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("PayoutIn(%q) = %s, %v, want %s", tt.currency, got, err, tt.want)
			}
		})
	}
}
