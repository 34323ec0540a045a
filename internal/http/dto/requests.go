package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Auth

type SignupRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Username        string `json:"username" validate:"required,min=3,max=50"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	Role            string `json:"role" validate:"required,oneof=brand influencer"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	CompanyName     string `json:"company_name" validate:"max=200"`
	Niche           string `json:"niche" validate:"max=100"`
	PrimaryPlatform string `json:"primary_platform" validate:"omitempty,oneof=instagram tiktok youtube facebook"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	CompanyName     *string `json:"company_name,omitempty" validate:"omitempty,min=1,max=200"`
	Website         *string `json:"website,omitempty" validate:"omitempty,url"`
	Industry        *string `json:"industry,omitempty" validate:"omitempty,max=100"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Bio             *string `json:"bio,omitempty" validate:"omitempty,max=2000"`
	Niche           *string `json:"niche,omitempty" validate:"omitempty,max=100"`
	PrimaryPlatform *string `json:"primary_platform,omitempty" validate:"omitempty,oneof=instagram tiktok youtube facebook"`
}

// Campaigns

type CreateCampaignRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=5000"`
	Platform      string          `json:"platform" validate:"required,oneof=instagram tiktok youtube facebook"`
	Niche         string          `json:"niche" validate:"max=100"`
	PackageVideos int             `json:"package_videos" validate:"required,min=1"`
	Budget        decimal.Decimal `json:"budget"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	MinFollowers  int             `json:"min_followers" validate:"min=0"`
	StartDate     *time.Time      `json:"start_date,omitempty"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
}

type UpdateCampaignRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Niche         *string          `json:"niche,omitempty" validate:"omitempty,max=100"`
	MinFollowers  *int             `json:"min_followers,omitempty" validate:"omitempty,min=0"`
	StartDate     *time.Time       `json:"start_date,omitempty"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	Platform      *string          `json:"platform,omitempty" validate:"omitempty,oneof=instagram tiktok youtube facebook"`
	PackageVideos *int             `json:"package_videos,omitempty" validate:"omitempty,min=1"`
	Budget        *decimal.Decimal `json:"budget,omitempty"`
	Currency      *string          `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// Jobs

type SubmitProofRequest struct {
	ProofLink string `json:"proof_link" validate:"required,url,max=2048"`
}

type ReviewJobRequest struct {
	Decision string `json:"decision" validate:"required,oneof=verified flagged needs_reupload"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// Money

type TopUpRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
}

type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PayoutMethodRequest struct {
	MethodType    string `json:"method_type" validate:"required,oneof=bank mobile_money"`
	BankCode      string `json:"bank_code" validate:"required,max=20"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=6,max=20"`
	AccountName   string `json:"account_name" validate:"required,max=200"`
}

// Social

type ManualConnectionRequest struct {
	Platform       string `json:"platform" validate:"required,oneof=instagram tiktok youtube facebook"`
	Handle         string `json:"handle" validate:"required,max=100"`
	FollowersCount int    `json:"followers_count" validate:"min=0"`
}

// Admin

type VerificationActionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject request_info pause unpause"`
	Reason string `json:"reason" validate:"max=1000"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

type AdjustWalletRequest struct {
	UserID    string          `json:"user_id" validate:"required,uuid"`
	Currency  string          `json:"currency" validate:"required,len=3"`
	Direction string          `json:"direction" validate:"required,oneof=credit debit"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason" validate:"required,max=500"`
}

type PlatformSettingsRequest struct {
	MinimumFollowers int  `json:"minimum_followers" validate:"min=0"`
	IsActive         bool `json:"is_active"`
}

type CurrencyRequest struct {
	Name         string          `json:"name" validate:"required,max=100"`
	Symbol       string          `json:"symbol" validate:"max=8"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	IsDefault    bool            `json:"is_default"`
	IsActive     bool            `json:"is_active"`
}
