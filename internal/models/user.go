package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles
const (
	RoleBrand      = "brand"
	RoleInfluencer = "influencer"
	RoleAdmin      = "admin"
)

type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	PasswordHash    string     `json:"-"`
	Role            string     `json:"role"`
	IsEmailVerified bool       `json:"is_email_verified"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// Brand verification statuses
const (
	BrandStatusPending     = "pending"
	BrandStatusVerified    = "verified"
	BrandStatusRejected    = "rejected"
	BrandStatusRequestInfo = "request_info"
	BrandStatusPaused      = "paused"
)

type Brand struct {
	UserID             uuid.UUID  `json:"user_id"`
	CompanyName        string     `json:"company_name"`
	Website            *string    `json:"website,omitempty"`
	Industry           *string    `json:"industry,omitempty"`
	Description        *string    `json:"description,omitempty"`
	Currency           string     `json:"currency"`
	VerificationStatus string     `json:"verification_status"`
	PauseReason        *string    `json:"pause_reason,omitempty"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CanFundCampaigns reports whether the brand may move money into campaigns.
func (b *Brand) CanFundCampaigns() bool {
	return b.VerificationStatus == BrandStatusVerified
}

// Influencer verification statuses
const (
	InfluencerStatusPending     = "pending"
	InfluencerStatusApproved    = "approved"
	InfluencerStatusRejected    = "rejected"
	InfluencerStatusRequestInfo = "request_info"
	InfluencerStatusPaused      = "paused"
)

type Influencer struct {
	UserID             uuid.UUID  `json:"user_id"`
	Bio                *string    `json:"bio,omitempty"`
	Niche              *string    `json:"niche,omitempty"`
	PrimaryPlatform    *string    `json:"primary_platform,omitempty"`
	Currency           string     `json:"currency"`
	VerificationStatus string     `json:"verification_status"`
	Tier               string     `json:"tier"`
	PauseReason        *string    `json:"pause_reason,omitempty"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// VerificationActions maps admin actions to the resulting status per role.
var VerificationActions = map[string]map[string]string{
	RoleBrand: {
		"approve":      BrandStatusVerified,
		"reject":       BrandStatusRejected,
		"request_info": BrandStatusRequestInfo,
		"pause":        BrandStatusPaused,
		"unpause":      BrandStatusVerified,
	},
	RoleInfluencer: {
		"approve":      InfluencerStatusApproved,
		"reject":       InfluencerStatusRejected,
		"request_info": InfluencerStatusRequestInfo,
		"pause":        InfluencerStatusPaused,
		"unpause":      InfluencerStatusApproved,
	},
}
