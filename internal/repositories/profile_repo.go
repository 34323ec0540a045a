package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/models"
)

// ProfileRepo stores the role specific brand and influencer rows.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

const brandColumns = `user_id, company_name, website, industry, description, currency,
	verification_status, pause_reason, paused_at, created_at, updated_at`

func scanBrand(row pgx.Row, b *models.Brand) error {
	return row.Scan(&b.UserID, &b.CompanyName, &b.Website, &b.Industry, &b.Description, &b.Currency,
		&b.VerificationStatus, &b.PauseReason, &b.PausedAt, &b.CreatedAt, &b.UpdatedAt)
}

func (r *ProfileRepo) GetBrand(ctx context.Context, userID uuid.UUID) (*models.Brand, error) {
	var b models.Brand
	if err := scanBrand(r.pool.QueryRow(ctx, `SELECT `+brandColumns+` FROM brands WHERE user_id = $1`, userID), &b); err != nil {
		return nil, notFound(err, "brand")
	}
	return &b, nil
}

func (r *ProfileRepo) UpdateBrand(ctx context.Context, b *models.Brand) error {
	return r.pool.QueryRow(ctx, `
		UPDATE brands SET company_name = $1, website = $2, industry = $3, description = $4,
			auto_checked_at = NULL, updated_at = now()
		WHERE user_id = $5
		RETURNING updated_at
	`, b.CompanyName, b.Website, b.Industry, b.Description, b.UserID).Scan(&b.UpdatedAt)
}

// ListBrandsAwaitingCheck returns pending brands created before cutoff
// that have not been scored since their last profile edit, oldest first.
func (r *ProfileRepo) ListBrandsAwaitingCheck(ctx context.Context, cutoff time.Time, limit int) ([]models.Brand, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+brandColumns+` FROM brands
		WHERE verification_status = 'pending' AND auto_checked_at IS NULL AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Brand
	for rows.Next() {
		var b models.Brand
		if err := scanBrand(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkBrandChecked records that the brand's current profile was scored.
func (r *ProfileRepo) MarkBrandChecked(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE brands SET auto_checked_at = now() WHERE user_id = $1`, userID)
	return err
}

// VerifyPendingBrand moves a brand from pending to verified. It reports
// false when the brand was no longer pending.
func (r *ProfileRepo) VerifyPendingBrand(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE brands SET verification_status = 'verified', auto_checked_at = now(), updated_at = now()
		WHERE user_id = $1 AND verification_status = 'pending'
	`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const influencerColumns = `user_id, bio, niche, primary_platform, currency,
	verification_status, tier, pause_reason, paused_at, created_at, updated_at`

func scanInfluencer(row pgx.Row, i *models.Influencer) error {
	return row.Scan(&i.UserID, &i.Bio, &i.Niche, &i.PrimaryPlatform, &i.Currency,
		&i.VerificationStatus, &i.Tier, &i.PauseReason, &i.PausedAt, &i.CreatedAt, &i.UpdatedAt)
}

func (r *ProfileRepo) GetInfluencer(ctx context.Context, userID uuid.UUID) (*models.Influencer, error) {
	var i models.Influencer
	if err := scanInfluencer(r.pool.QueryRow(ctx, `SELECT `+influencerColumns+` FROM influencers WHERE user_id = $1`, userID), &i); err != nil {
		return nil, notFound(err, "influencer")
	}
	return &i, nil
}

func (r *ProfileRepo) UpdateInfluencer(ctx context.Context, i *models.Influencer) error {
	return r.pool.QueryRow(ctx, `
		UPDATE influencers SET bio = $1, niche = $2, primary_platform = $3, updated_at = now()
		WHERE user_id = $4
		RETURNING updated_at
	`, i.Bio, i.Niche, i.PrimaryPlatform, i.UserID).Scan(&i.UpdatedAt)
}

// SetVerificationStatus updates the status of a brand or influencer
// profile. A paused status records the reason and time, any other status
// clears them.
func (r *ProfileRepo) SetVerificationStatus(ctx context.Context, role string, userID uuid.UUID, status string, reason *string) error {
	table := "brands"
	paused := status == models.BrandStatusPaused
	if role == models.RoleInfluencer {
		table = "influencers"
		paused = status == models.InfluencerStatusPaused
	} else if role != models.RoleBrand {
		return models.NewValidationError("unknown role " + role)
	}

	var pausedAt *time.Time
	if paused {
		now := time.Now()
		pausedAt = &now
	} else {
		reason = nil
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE `+table+` SET verification_status = $1, pause_reason = $2, paused_at = $3, updated_at = now()
		WHERE user_id = $4
	`, status, reason, pausedAt, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, table)
	}
	return nil
}
