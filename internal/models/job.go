package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Job statuses
const (
	JobStatusAccepted      = "accepted"
	JobStatusSubmitted     = "submitted"
	JobStatusVerified      = "verified"
	JobStatusFlagged       = "flagged"
	JobStatusNeedsReupload = "needs_reupload"
	JobStatusCancelled     = "cancelled"
)

// Valid state transitions: from -> []to
var ValidJobTransitions = map[string][]string{
	JobStatusAccepted:      {JobStatusSubmitted, JobStatusCancelled},
	JobStatusSubmitted:     {JobStatusVerified, JobStatusFlagged, JobStatusNeedsReupload},
	JobStatusNeedsReupload: {JobStatusSubmitted, JobStatusCancelled},
	JobStatusFlagged:       {JobStatusVerified, JobStatusNeedsReupload, JobStatusCancelled},
	JobStatusVerified:      {},
	JobStatusCancelled:     {},
}

func IsValidJobTransition(from, to string) bool {
	return containsStatus(ValidJobTransitions[from], to)
}

// IsOpenJobStatus reports whether the job still holds part of the budget
// without having been paid.
func IsOpenJobStatus(s string) bool {
	return s != JobStatusVerified && s != JobStatusCancelled
}

// IsAwaitingReview reports whether the influencer has delivered proof
// that nobody has ruled on yet.
func IsAwaitingReview(s string) bool {
	return s == JobStatusSubmitted || s == JobStatusFlagged
}

// Review decisions a brand or admin can take on a submission.
var JobReviewDecisions = []string{JobStatusVerified, JobStatusFlagged, JobStatusNeedsReupload}

func IsValidReviewDecision(d string) bool {
	return containsStatus(JobReviewDecisions, d)
}

type Job struct {
	ID                   uuid.UUID       `json:"id"`
	CampaignID           uuid.UUID       `json:"campaign_id"`
	InfluencerID         uuid.UUID       `json:"influencer_id"`
	Status               string          `json:"status"`
	PayoutAmount         decimal.Decimal `json:"payout_amount"` // campaign currency
	PayoutCurrencyAmount decimal.Decimal `json:"payout_currency_amount"`
	PayoutCurrency       string          `json:"payout_currency"`
	ProofLink            *string         `json:"proof_link,omitempty"`
	ReviewNotes          *string         `json:"review_notes,omitempty"`
	ReviewedBy           *uuid.UUID      `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time      `json:"reviewed_at,omitempty"`
	DueDate              *time.Time      `json:"due_date,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// JobWithCampaign embeds Job and adds campaign info to avoid N+1 queries.
type JobWithCampaign struct {
	Job
	CampaignName     string    `json:"campaign_name"`
	CampaignPlatform string    `json:"campaign_platform"`
	BrandID          uuid.UUID `json:"brand_id"`
}
