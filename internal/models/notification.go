package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types
const (
	NotifyPaymentReceived     = "payment_received"
	NotifyPaymentFailed       = "payment_failed"
	NotifyCampaignAssigned    = "campaign_assigned"
	NotifyJobApplied          = "job_applied"
	NotifySubmissionReceived  = "submission_received"
	NotifySubmissionVerified  = "submission_verified"
	NotifySubmissionFlagged   = "submission_flagged"
	NotifyNeedsReupload       = "needs_reupload"
	NotifyPayoutAvailable     = "payout_available"
	NotifyWithdrawalProcessed = "withdrawal_processed"
	NotifyWithdrawalFailed    = "withdrawal_failed"
	NotifyPlatformVerified    = "platform_verified"
	NotifyPlatformFailed      = "platform_verification_failed"
	NotifyAccountStatus       = "account_status_changed"
	NotifyCampaignStatus      = "campaign_status_changed"
)

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      *string    `json:"link,omitempty"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
