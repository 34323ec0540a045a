package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/models"
)

type PlatformRepo struct {
	pool *pgxpool.Pool
}

func NewPlatformRepo(pool *pgxpool.Pool) *PlatformRepo {
	return &PlatformRepo{pool: pool}
}

func (r *PlatformRepo) ListSettings(ctx context.Context) ([]models.PlatformSettings, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT platform, minimum_followers, is_active, updated_at FROM platform_settings ORDER BY platform`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PlatformSettings
	for rows.Next() {
		var s models.PlatformSettings
		if err := rows.Scan(&s.Platform, &s.MinimumFollowers, &s.IsActive, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSettings returns the settings for one platform, or nil when none
// are stored.
func (r *PlatformRepo) GetSettings(ctx context.Context, platform string) (*models.PlatformSettings, error) {
	var s models.PlatformSettings
	err := r.pool.QueryRow(ctx,
		`SELECT platform, minimum_followers, is_active, updated_at FROM platform_settings WHERE platform = $1`,
		platform).Scan(&s.Platform, &s.MinimumFollowers, &s.IsActive, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PlatformRepo) UpsertSettings(ctx context.Context, s *models.PlatformSettings) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO platform_settings (platform, minimum_followers, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (platform) DO UPDATE SET
			minimum_followers = EXCLUDED.minimum_followers,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING updated_at
	`, s.Platform, s.MinimumFollowers, s.IsActive).Scan(&s.UpdatedAt)
}

const connectionColumns = `
	id, influencer_id, platform, handle, followers_count, verified_followers_count,
	follower_verified_at, verification_status, verification_method, verification_flags,
	access_token, refresh_token, token_expires_at, platform_user_id, oauth_connected_at,
	verified_at, created_at, updated_at`

func scanConnection(row pgx.Row, c *models.PlatformConnection) error {
	var flags []byte
	err := row.Scan(&c.ID, &c.InfluencerID, &c.Platform, &c.Handle, &c.FollowersCount, &c.VerifiedFollowersCount,
		&c.FollowerVerifiedAt, &c.VerificationStatus, &c.VerificationMethod, &flags,
		&c.AccessToken, &c.RefreshToken, &c.TokenExpiresAt, &c.PlatformUserID, &c.OAuthConnectedAt,
		&c.VerifiedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return err
	}
	c.VerificationFlags = []string{}
	if len(flags) > 0 {
		return json.Unmarshal(flags, &c.VerificationFlags)
	}
	return nil
}

func flagsJSON(flags []string) []byte {
	if flags == nil {
		flags = []string{}
	}
	b, _ := json.Marshal(flags)
	return b
}

// CreateManual adds a self-declared connection awaiting verification.
func (r *PlatformRepo) CreateManual(ctx context.Context, c *models.PlatformConnection) error {
	err := scanConnection(r.pool.QueryRow(ctx, `
		INSERT INTO platform_connections (influencer_id, platform, handle, followers_count, verification_method)
		VALUES ($1, $2, $3, $4, 'manual')
		RETURNING `+connectionColumns,
		c.InfluencerID, c.Platform, c.Handle, c.FollowersCount), c)
	if isUniqueViolation(err) {
		return models.ErrDuplicateEntry
	}
	return err
}

// UpsertOAuth stores a connection proven through the platform's OAuth
// flow. It replaces any manual connection for the same platform.
func (r *PlatformRepo) UpsertOAuth(ctx context.Context, c *models.PlatformConnection) error {
	now := time.Now()
	return scanConnection(r.pool.QueryRow(ctx, `
		INSERT INTO platform_connections (
			influencer_id, platform, handle, followers_count, verified_followers_count,
			follower_verified_at, verification_status, verification_method, verification_flags,
			access_token, refresh_token, token_expires_at, platform_user_id, oauth_connected_at, verified_at
		) VALUES ($1, $2, $3, $4, $4, $5, 'verified', 'api', '[]', $6, $7, $8, $9, $5, $5)
		ON CONFLICT (influencer_id, platform) DO UPDATE SET
			handle = EXCLUDED.handle,
			followers_count = EXCLUDED.followers_count,
			verified_followers_count = EXCLUDED.verified_followers_count,
			follower_verified_at = EXCLUDED.follower_verified_at,
			verification_status = 'verified',
			verification_method = 'api',
			verification_flags = '[]',
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(EXCLUDED.refresh_token, platform_connections.refresh_token),
			token_expires_at = EXCLUDED.token_expires_at,
			platform_user_id = EXCLUDED.platform_user_id,
			oauth_connected_at = EXCLUDED.oauth_connected_at,
			verified_at = EXCLUDED.verified_at,
			updated_at = now()
		RETURNING `+connectionColumns,
		c.InfluencerID, c.Platform, c.Handle, c.FollowersCount, now,
		c.AccessToken, c.RefreshToken, c.TokenExpiresAt, c.PlatformUserID), c)
}

func (r *PlatformRepo) GetConnection(ctx context.Context, id uuid.UUID) (*models.PlatformConnection, error) {
	var c models.PlatformConnection
	if err := scanConnection(r.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM platform_connections WHERE id = $1`, id), &c); err != nil {
		return nil, notFound(err, "platform connection")
	}
	return &c, nil
}

func (r *PlatformRepo) ListByInfluencer(ctx context.Context, influencerID uuid.UUID) ([]models.PlatformConnection, error) {
	return r.queryConnections(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections WHERE influencer_id = $1 ORDER BY platform`,
		influencerID)
}

// ListStale returns connections whose follower count has not been checked
// since before cutoff, oldest first.
func (r *PlatformRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.PlatformConnection, error) {
	return r.queryConnections(ctx, `
		SELECT `+connectionColumns+` FROM platform_connections
		WHERE verification_status IN ('pending', 'verified')
		  AND COALESCE(follower_verified_at, created_at) < $1
		ORDER BY COALESCE(follower_verified_at, created_at)
		LIMIT $2
	`, cutoff, limit)
}

// ListReviewCandidates returns verified connections not yet flagged as
// suspicious that either claim at least minFollowers or carry a
// platform-counted follower number.
func (r *PlatformRepo) ListReviewCandidates(ctx context.Context, minFollowers, limit int) ([]models.PlatformConnection, error) {
	return r.queryConnections(ctx, `
		SELECT `+connectionColumns+` FROM platform_connections
		WHERE verification_status = 'verified'
		  AND NOT verification_flags @> $1::jsonb
		  AND (followers_count >= $2 OR verified_followers_count IS NOT NULL)
		ORDER BY followers_count DESC
		LIMIT $3
	`, flagsJSON([]string{models.FlagSuspicious}), minFollowers, limit)
}

// SetFlags replaces the verification flags without touching the status.
func (r *PlatformRepo) SetFlags(ctx context.Context, id uuid.UUID, flags []string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE platform_connections SET verification_flags = $1, updated_at = now() WHERE id = $2`,
		flagsJSON(flags), id)
	return err
}

func (r *PlatformRepo) queryConnections(ctx context.Context, query string, args ...any) ([]models.PlatformConnection, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PlatformConnection
	for rows.Next() {
		var c models.PlatformConnection
		if err := scanConnection(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// VerificationUpdate is the outcome of a follower re-check.
type VerificationUpdate struct {
	Status            string
	VerifiedFollowers *int
	Flags             []string
	Method            string
}

func (r *PlatformRepo) UpdateVerification(ctx context.Context, id uuid.UUID, u VerificationUpdate) error {
	var verifiedAt *time.Time
	if u.VerifiedFollowers != nil {
		now := time.Now()
		verifiedAt = &now
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE platform_connections SET
			verification_status = $1,
			verified_followers_count = COALESCE($2, verified_followers_count),
			follower_verified_at = COALESCE($3, follower_verified_at),
			verification_flags = $4,
			verification_method = $5,
			verified_at = CASE WHEN $1 = 'verified' THEN now() ELSE verified_at END,
			updated_at = now()
		WHERE id = $6
	`, u.Status, u.VerifiedFollowers, verifiedAt, flagsJSON(u.Flags), u.Method, id)
	return err
}

// UpdateTokens stores refreshed OAuth credentials.
func (r *PlatformRepo) UpdateTokens(ctx context.Context, id uuid.UUID, access string, refresh *string, expires *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE platform_connections SET
			access_token = $1,
			refresh_token = COALESCE($2, refresh_token),
			token_expires_at = $3,
			updated_at = now()
		WHERE id = $4
	`, access, refresh, expires, id)
	return err
}
