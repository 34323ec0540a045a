package models

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateEntry      = errors.New("duplicate ledger entry")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrIneligible          = errors.New("influencer is not eligible for this campaign")
	ErrCampaignFull        = errors.New("campaign budget is fully allocated")
	ErrAlreadyApplied      = errors.New("already applied to this campaign")
	ErrAwaitingReview      = errors.New("submissions are awaiting review")
	ErrPaymentNotPending   = errors.New("payment is not pending")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrCurrencyUnsupported = errors.New("currency not supported")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountPaused       = errors.New("account is paused")
)

// ValidationError carries a client-facing message for bad input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
