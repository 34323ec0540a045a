package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supported social platforms
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformFacebook  = "facebook"
)

var AllPlatforms = []string{PlatformInstagram, PlatformTikTok, PlatformYouTube, PlatformFacebook}

func IsValidPlatform(p string) bool {
	for _, ap := range AllPlatforms {
		if ap == p {
			return true
		}
	}
	return false
}

const DefaultMinimumFollowers = 1000

type PlatformSettings struct {
	Platform         string    `json:"platform"`
	MinimumFollowers int       `json:"minimum_followers"`
	IsActive         bool      `json:"is_active"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Connection verification statuses
const (
	ConnectionStatusPending  = "pending"
	ConnectionStatusVerified = "verified"
	ConnectionStatusRejected = "rejected"
	ConnectionStatusFailed   = "failed"
)

// Verification methods
const (
	VerificationMethodAuto   = "auto"
	VerificationMethodManual = "manual"
	VerificationMethodAPI    = "api"
)

// Verification flags stored on a connection.
const (
	FlagFollowerMismatch = "follower_count_mismatch"
	FlagManualReview     = "requires_manual_review"
	FlagTokenExpired     = "token_expired"
	FlagSuspicious       = "suspicious_followers"
)

type PlatformConnection struct {
	ID                     uuid.UUID  `json:"id"`
	InfluencerID           uuid.UUID  `json:"influencer_id"`
	Platform               string     `json:"platform"`
	Handle                 string     `json:"handle"`
	FollowersCount         int        `json:"followers_count"`
	VerifiedFollowersCount *int       `json:"verified_followers_count,omitempty"`
	FollowerVerifiedAt     *time.Time `json:"follower_verified_at,omitempty"`
	VerificationStatus     string     `json:"verification_status"`
	VerificationMethod     string     `json:"verification_method"`
	VerificationFlags      []string   `json:"verification_flags"`
	AccessToken            *string    `json:"-"`
	RefreshToken           *string    `json:"-"`
	TokenExpiresAt         *time.Time `json:"-"`
	PlatformUserID         *string    `json:"platform_user_id,omitempty"`
	OAuthConnectedAt       *time.Time `json:"oauth_connected_at,omitempty"`
	VerifiedAt             *time.Time `json:"verified_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// EffectiveFollowers prefers the verified count over the claimed one.
func (c *PlatformConnection) EffectiveFollowers() int {
	if c.VerifiedFollowersCount != nil {
		return *c.VerifiedFollowersCount
	}
	return c.FollowersCount
}

func (c *PlatformConnection) IsVerified() bool {
	return c.VerificationStatus == ConnectionStatusVerified
}

func (c *PlatformConnection) HasOAuthToken() bool {
	return c.AccessToken != nil && *c.AccessToken != ""
}

type FollowerCheck struct {
	Claimed    int    `json:"claimed"`
	Actual     int    `json:"actual"`
	Difference int    `json:"difference"`
	Allowed    int    `json:"allowed"`
	Status     string `json:"status"`
	Flag       string `json:"flag,omitempty"`
}

// CheckFollowerDiscrepancy compares a claimed follower count to a fetched one.
// The tolerance is max(minAllowed, claimed*pct).
func CheckFollowerDiscrepancy(claimed, actual, minAllowed int, pct decimal.Decimal) FollowerCheck {
	allowed := int(decimal.NewFromInt(int64(claimed)).Mul(pct).IntPart())
	if allowed < minAllowed {
		allowed = minAllowed
	}

	diff := claimed - actual
	if diff < 0 {
		diff = -diff
	}

	res := FollowerCheck{
		Claimed:    claimed,
		Actual:     actual,
		Difference: diff,
		Allowed:    allowed,
		Status:     ConnectionStatusVerified,
	}
	if diff > allowed {
		res.Status = ConnectionStatusFailed
		res.Flag = FlagFollowerMismatch
	}
	return res
}

// HasFlag reports whether the connection carries flag.
func (c *PlatformConnection) HasFlag(flag string) bool {
	for _, f := range c.VerificationFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// SuspicionReasons lists why a verified connection deserves a second look:
// a very large audience that no platform ever counted, or a counted
// audience that drifted outside the tolerance since it was verified.
func (c *PlatformConnection) SuspicionReasons(highFollowers, minAllowed int, pct decimal.Decimal) []string {
	if !c.IsVerified() || c.HasFlag(FlagSuspicious) {
		return nil
	}
	var reasons []string
	if c.VerifiedFollowersCount == nil {
		if highFollowers > 0 && c.FollowersCount >= highFollowers {
			reasons = append(reasons, FlagManualReview)
		}
		return reasons
	}
	if check := CheckFollowerDiscrepancy(c.FollowersCount, *c.VerifiedFollowersCount, minAllowed, pct); check.Flag != "" {
		reasons = append(reasons, check.Flag)
	}
	return reasons
}

// SocialProfile is what a platform API or page scrape reports about an account.
type SocialProfile struct {
	PlatformUserID string `json:"platform_user_id"`
	Handle         string `json:"handle"`
	Followers      int    `json:"followers"`
}
