package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/db"
	"github.com/pushit/marketplace/internal/models"
)

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

const campaignColumns = `
	id, brand_id, name, description, platform, niche, package_videos, budget::text,
	currency, min_followers, allocated::text, spent::text, start_date, due_date,
	status, created_at, updated_at`

func scanCampaign(row pgx.Row, c *models.Campaign) error {
	return row.Scan(&c.ID, &c.BrandID, &c.Name, &c.Description, &c.Platform, &c.Niche,
		&c.PackageVideos, &c.Budget, &c.Currency, &c.MinFollowers, &c.Allocated, &c.Spent,
		&c.StartDate, &c.DueDate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return scanCampaign(r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (brand_id, name, description, platform, niche, package_videos,
		                       budget, currency, min_followers, start_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'draft')
		RETURNING `+campaignColumns,
		c.BrandID, c.Name, c.Description, c.Platform, c.Niche, c.PackageVideos,
		c.Budget.String(), c.Currency, c.MinFollowers, c.StartDate, c.DueDate), c)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	if err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id), &c); err != nil {
		return nil, notFound(err, "campaign")
	}
	return &c, nil
}

// Update writes the editable fields. Money fields only change while the
// campaign is still a draft.
func (r *CampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	err := scanCampaign(r.pool.QueryRow(ctx, `
		UPDATE campaigns SET
			name = $1, description = $2, niche = $3, start_date = $4, due_date = $5,
			min_followers = $6,
			platform = CASE WHEN status = 'draft' THEN $7 ELSE platform END,
			package_videos = CASE WHEN status = 'draft' THEN $8 ELSE package_videos END,
			budget = CASE WHEN status = 'draft' THEN $9::numeric ELSE budget END,
			currency = CASE WHEN status = 'draft' THEN $10 ELSE currency END,
			updated_at = now()
		WHERE id = $11 AND status NOT IN ('completed', 'cancelled')
		RETURNING `+campaignColumns,
		c.Name, c.Description, c.Niche, c.StartDate, c.DueDate, c.MinFollowers,
		c.Platform, c.PackageVideos, c.Budget.String(), c.Currency, c.ID), c)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("campaign is closed: %w", models.ErrInvalidTransition)
	}
	return err
}

type CampaignFilter struct {
	BrandID  *uuid.UUID
	Status   *string
	Platform *string
	Limit    int
	Offset   int
}

func (r *CampaignRepo) List(ctx context.Context, f CampaignFilter) ([]models.Campaign, error) {
	var w whereBuilder
	if f.BrandID != nil {
		w.add("brand_id = $%d", *f.BrandID)
	}
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	if f.Platform != nil {
		w.add("platform = $%d", *f.Platform)
	}
	query := `SELECT ` + campaignColumns + ` FROM campaigns` + w.sql() +
		` ORDER BY created_at DESC` + w.page(f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func lockCampaign(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	err := scanCampaign(tx.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id), &c)
	if err != nil {
		return nil, notFound(err, "campaign")
	}
	return &c, nil
}

// CampaignTransition is everything a status change touched.
type CampaignTransition struct {
	Campaign      *models.Campaign
	From          string
	Entry         *models.WalletTransaction
	CancelledJobs []models.Job
}

// Transition moves a campaign to a new status in one transaction.
// Leaving draft for active debits the brand wallet by the budget. Closing
// a funded campaign cancels its open jobs and credits back what was not
// spent.
func (r *CampaignRepo) Transition(ctx context.Context, id uuid.UUID, to string) (*CampaignTransition, error) {
	var out CampaignTransition
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lockCampaign(ctx, tx, id)
		if err != nil {
			return err
		}
		out.From = c.Status
		if !models.IsValidCampaignTransition(c.Status, to) {
			return fmt.Errorf("campaign %s -> %s: %w", c.Status, to, models.ErrInvalidTransition)
		}

		switch {
		case c.Status == models.CampaignStatusDraft && to == models.CampaignStatusActive:
			out.Entry, err = postEntry(ctx, tx, models.LedgerEntry{
				UserID:         c.BrandID,
				Currency:       c.Currency,
				Direction:      models.DirectionDebit,
				Kind:           models.TxKindCampaignPayment,
				Amount:         c.Budget,
				Reason:         "campaign funding: " + c.Name,
				ReferenceType:  "campaign",
				ReferenceID:    &c.ID,
				IdempotencyKey: "campaign-fund:" + c.ID.String(),
			})
			if err != nil {
				return err
			}

		case models.IsClosedCampaignStatus(to) && c.Status != models.CampaignStatusDraft:
			if err := ensureNothingAwaitingReview(ctx, tx, c.ID); err != nil {
				return err
			}
			out.CancelledJobs, err = cancelOpenJobs(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			c.Allocated = c.Spent
			if refund := c.Refundable(); refund.IsPositive() {
				out.Entry, err = postEntry(ctx, tx, models.LedgerEntry{
					UserID:         c.BrandID,
					Currency:       c.Currency,
					Direction:      models.DirectionCredit,
					Kind:           models.TxKindRefund,
					Amount:         refund,
					Reason:         "unspent campaign budget: " + c.Name,
					ReferenceType:  "campaign",
					ReferenceID:    &c.ID,
					IdempotencyKey: "campaign-refund:" + c.ID.String(),
				})
				if err != nil {
					return err
				}
			}
		}

		c.Status = to
		err = tx.QueryRow(ctx, `
			UPDATE campaigns SET status = $1, allocated = $2, updated_at = now()
			WHERE id = $3
			RETURNING updated_at
		`, c.Status, c.Allocated.String(), c.ID).Scan(&c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update campaign status: %w", err)
		}
		out.Campaign = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
