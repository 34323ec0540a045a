package models

import (
	"strings"

	"github.com/google/uuid"
)

// Ineligibility reasons
const (
	ReasonPlatformNotVerified  = "platform_not_verified"
	ReasonBelowMinFollowers    = "below_min_followers"
	ReasonCurrencyIncompatible = "currency_incompatible"
	ReasonNicheMismatch        = "niche_mismatch"
	ReasonAccountNotApproved   = "account_not_approved"
)

// EligibilityCriteria is the rule set a campaign applies to influencers.
type EligibilityCriteria struct {
	Platform     string `json:"platform"`
	MinFollowers int    `json:"min_followers"`
	Currency     string `json:"currency"`
	Niche        string `json:"niche,omitempty"`
}

// CriteriaFor resolves the follower threshold: the campaign's own minimum
// when set, otherwise the platform default.
func CriteriaFor(c *Campaign, settings *PlatformSettings) EligibilityCriteria {
	threshold := DefaultMinimumFollowers
	if settings != nil {
		threshold = settings.MinimumFollowers
	}
	if c.MinFollowers > 0 {
		threshold = c.MinFollowers
	}
	crit := EligibilityCriteria{
		Platform:     c.Platform,
		MinFollowers: threshold,
		Currency:     c.Currency,
	}
	if c.Niche != nil {
		crit.Niche = *c.Niche
	}
	return crit
}

// Candidate is an influencer as seen by the matcher.
type Candidate struct {
	InfluencerID       uuid.UUID
	VerificationStatus string
	Niche              string
	Currency           string
	Connections        []PlatformConnection
}

// CheckEligibility returns every unmet criterion. An empty result means
// the candidate is eligible.
func CheckEligibility(crit EligibilityCriteria, cand Candidate, rates RateTable) []string {
	var reasons []string

	if cand.VerificationStatus != InfluencerStatusApproved {
		reasons = append(reasons, ReasonAccountNotApproved)
	}

	var conn *PlatformConnection
	for i := range cand.Connections {
		if cand.Connections[i].Platform == crit.Platform && cand.Connections[i].IsVerified() {
			conn = &cand.Connections[i]
			break
		}
	}
	if conn == nil {
		reasons = append(reasons, ReasonPlatformNotVerified)
	} else if conn.EffectiveFollowers() < crit.MinFollowers {
		reasons = append(reasons, ReasonBelowMinFollowers)
	}

	if !rates.Compatible(crit.Currency, cand.Currency) {
		reasons = append(reasons, ReasonCurrencyIncompatible)
	}

	if crit.Niche != "" && cand.Niche != "" && !strings.EqualFold(crit.Niche, cand.Niche) {
		reasons = append(reasons, ReasonNicheMismatch)
	}

	return reasons
}

func IsEligible(crit EligibilityCriteria, cand Candidate, rates RateTable) bool {
	return len(CheckEligibility(crit, cand, rates)) == 0
}

// MatchedInfluencer is one row of a campaign match.
type MatchedInfluencer struct {
	InfluencerID uuid.UUID `json:"influencer_id"`
	Username     string    `json:"username"`
	Niche        *string   `json:"niche,omitempty"`
	Currency     string    `json:"currency"`
	Handle       string    `json:"handle"`
	Followers    int       `json:"followers"`
}

// Eligibility is the answer to "can this influencer take this campaign".
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}
