package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Ledger entry kinds
const (
	TxKindDeposit         = "deposit"
	TxKindWithdrawal      = "withdrawal"
	TxKindCampaignPayment = "campaign_payment"
	TxKindRefund          = "refund"
	TxKindAdjustment      = "adjustment"
)

var AllTxKinds = []string{TxKindDeposit, TxKindWithdrawal, TxKindCampaignPayment, TxKindRefund, TxKindAdjustment}

func IsValidTxKind(k string) bool {
	for _, kk := range AllTxKinds {
		if kk == k {
			return true
		}
	}
	return false
}

// Entry directions
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

const TxStatusCompleted = "completed"

// WalletTransaction is one immutable ledger row.
type WalletTransaction struct {
	ID             uuid.UUID       `json:"id"`
	WalletID       uuid.UUID       `json:"wallet_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Kind           string          `json:"kind"`
	Direction      string          `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	Status         string          `json:"status"`
	Reason         string          `json:"reason"`
	ReferenceType  *string         `json:"reference_type,omitempty"`
	ReferenceID    *uuid.UUID      `json:"reference_id,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LedgerEntry is a request to move money in or out of one wallet.
type LedgerEntry struct {
	UserID         uuid.UUID
	Currency       string
	Direction      string
	Kind           string
	Amount         decimal.Decimal
	Reason         string
	ReferenceType  string
	ReferenceID    *uuid.UUID
	IdempotencyKey string
}

func (e LedgerEntry) Validate() error {
	if e.Direction != DirectionCredit && e.Direction != DirectionDebit {
		return NewValidationError(fmt.Sprintf("invalid ledger direction %q", e.Direction))
	}
	if !IsValidTxKind(e.Kind) {
		return NewValidationError(fmt.Sprintf("invalid ledger kind %q", e.Kind))
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !IsWholeCents(e.Amount) {
		return NewValidationError("amount has more than 2 decimal places")
	}
	if e.Currency == "" {
		return NewValidationError("currency is required")
	}
	return nil
}

// ApplyEntry returns the balance after applying an entry. A debit that
// would take the balance below zero returns ErrInsufficientFunds.
func ApplyEntry(balance decimal.Decimal, direction string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return balance, ErrInvalidAmount
	}
	switch direction {
	case DirectionCredit:
		return balance.Add(amount), nil
	case DirectionDebit:
		if balance.LessThan(amount) {
			return balance, ErrInsufficientFunds
		}
		return balance.Sub(amount), nil
	default:
		return balance, NewValidationError("invalid ledger direction")
	}
}

// LedgerSum recomputes a balance from its ledger rows.
func LedgerSum(txs []WalletTransaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Direction == DirectionCredit {
			sum = sum.Add(tx.Amount)
		} else {
			sum = sum.Sub(tx.Amount)
		}
	}
	return sum
}

// WalletDrift is reported by reconciliation when a balance disagrees with
// its ledger.
type WalletDrift struct {
	WalletID  uuid.UUID       `json:"wallet_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	LedgerSum decimal.Decimal `json:"ledger_sum"`
}

func (d WalletDrift) HasDrift() bool {
	return !d.Balance.Equal(d.LedgerSum)
}
