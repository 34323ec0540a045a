package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment types
const (
	PaymentTypeTopUp  = "wallet_topup"
	PaymentTypePayout = "payout"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusReversed  = "reversed" // payout sent, then returned by the bank
)

// PaymentTransaction tracks one charge or transfer at the gateway. The
// reference is the correlation ID the gateway echoes back.
type PaymentTransaction struct {
	ID                       uuid.UUID       `json:"id"`
	UserID                   uuid.UUID       `json:"user_id"`
	Type                     string          `json:"type"`
	Amount                   decimal.Decimal `json:"amount"`
	Currency                 string          `json:"currency"`
	Reference                string          `json:"reference"`
	Status                   string          `json:"status"`
	GatewayAuthorizationCode *string         `json:"-"`
	GatewayCustomerCode      *string         `json:"-"`
	GatewayTransferCode      *string         `json:"gateway_transfer_code,omitempty"`
	FailureReason            *string         `json:"failure_reason,omitempty"`
	Metadata                 map[string]any  `json:"metadata,omitempty"`
	PaidAt                   *time.Time      `json:"paid_at,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

func (p *PaymentTransaction) IsPending() bool {
	return p.Status == PaymentStatusPending
}

// GatewayResult is the reconciled outcome of a charge or transfer.
type GatewayResult struct {
	Reference         string
	Status            string // success / failed / reversed
	AmountMinor       int64
	Currency          string
	AuthorizationCode string
	CustomerCode      string
	TransferCode      string
	GatewayResponse   string
	PaidAt            *time.Time
}

// Payout method types
const (
	PayoutMethodBank        = "bank"
	PayoutMethodMobileMoney = "mobile_money"
)

type PayoutMethod struct {
	ID            uuid.UUID `json:"id"`
	InfluencerID  uuid.UUID `json:"influencer_id"`
	MethodType    string    `json:"method_type"`
	BankCode      string    `json:"bank_code"`
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	RecipientCode string    `json:"-"`
	IsDefault     bool      `json:"is_default"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaskedAccount hides all but the last four digits.
func (m *PayoutMethod) MaskedAccount() string {
	n := len(m.AccountNumber)
	if n <= 4 {
		return m.AccountNumber
	}
	masked := make([]byte, n)
	for i := 0; i < n-4; i++ {
		masked[i] = '*'
	}
	copy(masked[n-4:], m.AccountNumber[n-4:])
	return string(masked)
}
