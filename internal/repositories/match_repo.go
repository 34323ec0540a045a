package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/models"
)

// MatchRepo answers eligibility queries across influencers and campaigns.
type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

// MatchInfluencers returns every approved influencer with a verified
// connection on the platform, enough followers, a wallet currency in
// currencies and, when both sides set one, the same niche.
func (r *MatchRepo) MatchInfluencers(ctx context.Context, crit models.EligibilityCriteria, currencies []string, limit, offset int) ([]models.MatchedInfluencer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.user_id, u.username, i.niche, i.currency, pc.handle,
		       COALESCE(pc.verified_followers_count, pc.followers_count) AS followers
		FROM influencers i
		JOIN users u ON u.id = i.user_id
		JOIN platform_connections pc ON pc.influencer_id = i.user_id
		WHERE i.verification_status = 'approved'
		  AND u.is_active
		  AND pc.platform = $1
		  AND pc.verification_status = 'verified'
		  AND COALESCE(pc.verified_followers_count, pc.followers_count) >= $2
		  AND i.currency = ANY($3)
		  AND ($4 = '' OR COALESCE(i.niche, '') = '' OR lower(i.niche) = lower($4))
		ORDER BY i.created_at, i.user_id
		LIMIT $5 OFFSET $6
	`, crit.Platform, crit.MinFollowers, currencies, crit.Niche, clampLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchedInfluencer
	for rows.Next() {
		var m models.MatchedInfluencer
		if err := rows.Scan(&m.InfluencerID, &m.Username, &m.Niche, &m.Currency, &m.Handle, &m.Followers); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FeedCandidates returns active campaigns on platforms where the
// influencer holds a verified connection and has not applied yet. The
// caller applies the full eligibility predicate.
func (r *MatchRepo) FeedCandidates(ctx context.Context, influencerID uuid.UUID, limit, offset int) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = 'active'
		  AND allocated < budget
		  AND platform IN (
		      SELECT platform FROM platform_connections
		      WHERE influencer_id = $1 AND verification_status = 'verified')
		  AND NOT EXISTS (
		      SELECT 1 FROM jobs WHERE jobs.campaign_id = campaigns.id AND jobs.influencer_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, influencerID, clampLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadCandidate assembles an influencer and their connections for the
// eligibility predicate.
func (r *MatchRepo) LoadCandidate(ctx context.Context, influencerID uuid.UUID) (*models.Candidate, error) {
	cand := models.Candidate{InfluencerID: influencerID}
	var niche *string
	err := r.pool.QueryRow(ctx,
		`SELECT verification_status, niche, currency FROM influencers WHERE user_id = $1`, influencerID,
	).Scan(&cand.VerificationStatus, &niche, &cand.Currency)
	if err != nil {
		return nil, notFound(err, "influencer")
	}
	if niche != nil {
		cand.Niche = *niche
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections WHERE influencer_id = $1`, influencerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c models.PlatformConnection
		if err := scanConnection(rows, &c); err != nil {
			return nil, err
		}
		cand.Connections = append(cand.Connections, c)
	}
	return &cand, rows.Err()
}
