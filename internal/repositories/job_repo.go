package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/db"
	"github.com/pushit/marketplace/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `
	j.id, j.campaign_id, j.influencer_id, j.status, j.payout_amount::text,
	j.payout_currency_amount::text, j.payout_currency, j.proof_link, j.review_notes,
	j.reviewed_by, j.reviewed_at, j.due_date, j.created_at, j.updated_at`

func scanJob(row pgx.Row, j *models.Job) error {
	return row.Scan(&j.ID, &j.CampaignID, &j.InfluencerID, &j.Status, &j.PayoutAmount,
		&j.PayoutCurrencyAmount, &j.PayoutCurrency, &j.ProofLink, &j.ReviewNotes,
		&j.ReviewedBy, &j.ReviewedAt, &j.DueDate, &j.CreatedAt, &j.UpdatedAt)
}

const jobWithCampaignQuery = `
	SELECT ` + jobColumns + `, c.name, c.platform, c.brand_id
	FROM jobs j JOIN campaigns c ON c.id = j.campaign_id`

func scanJobWithCampaign(row pgx.Row, j *models.JobWithCampaign) error {
	return row.Scan(&j.ID, &j.CampaignID, &j.InfluencerID, &j.Status, &j.PayoutAmount,
		&j.PayoutCurrencyAmount, &j.PayoutCurrency, &j.ProofLink, &j.ReviewNotes,
		&j.ReviewedBy, &j.ReviewedAt, &j.DueDate, &j.CreatedAt, &j.UpdatedAt,
		&j.CampaignName, &j.CampaignPlatform, &j.BrandID)
}

// Accept reserves one slot of the campaign budget for the influencer and
// creates the job. The payout is stored in both the campaign currency and
// the influencer's currency.
func (r *JobRepo) Accept(ctx context.Context, campaignID, influencerID uuid.UUID, payoutCurrency string, rates models.RateTable) (*models.Job, error) {
	var job models.Job
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lockCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		if c.Status != models.CampaignStatusActive {
			return fmt.Errorf("campaign is %s: %w", c.Status, models.ErrIneligible)
		}

		payout := c.PayoutPerJob()
		if !c.CanAllocate(payout) {
			return models.ErrCampaignFull
		}
		converted, err := c.PayoutIn(payoutCurrency, rates)
		if err != nil {
			return err
		}

		err = scanJob(tx.QueryRow(ctx, `
			INSERT INTO jobs AS j (campaign_id, influencer_id, status, payout_amount,
			                       payout_currency_amount, payout_currency, due_date)
			VALUES ($1, $2, 'accepted', $3, $4, $5, $6)
			RETURNING `+jobColumns,
			c.ID, influencerID, payout.String(), converted.String(), payoutCurrency, c.DueDate), &job)
		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrAlreadyApplied
			}
			return fmt.Errorf("insert job: %w", err)
		}

		_, err = tx.Exec(ctx, `UPDATE campaigns SET allocated = allocated + $1, updated_at = now() WHERE id = $2`,
			payout.String(), c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func lockJob(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	if err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = $1 FOR UPDATE`, id), &j); err != nil {
		return nil, notFound(err, "job")
	}
	return &j, nil
}

// withJobLocks takes the campaign lock and then the job lock, the same
// order every money path uses.
func (r *JobRepo) withJobLocks(ctx context.Context, jobID uuid.UUID, fn func(tx pgx.Tx, c *models.Campaign, j *models.Job) error) error {
	var campaignID uuid.UUID
	if err := r.pool.QueryRow(ctx, `SELECT campaign_id FROM jobs WHERE id = $1`, jobID).Scan(&campaignID); err != nil {
		return notFound(err, "job")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lockCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		j, err := lockJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		return fn(tx, c, j)
	})
}

func transitionJob(j *models.Job, to string) error {
	if !models.IsValidJobTransition(j.Status, to) {
		return fmt.Errorf("job %s -> %s: %w", j.Status, to, models.ErrInvalidTransition)
	}
	j.Status = to
	return nil
}

func (r *JobRepo) SubmitProof(ctx context.Context, jobID, influencerID uuid.UUID, link string) (*models.Job, error) {
	var out *models.Job
	err := r.withJobLocks(ctx, jobID, func(tx pgx.Tx, c *models.Campaign, j *models.Job) error {
		if j.InfluencerID != influencerID {
			return models.ErrForbidden
		}
		if models.IsClosedCampaignStatus(c.Status) {
			return fmt.Errorf("campaign is %s: %w", c.Status, models.ErrInvalidTransition)
		}
		if err := transitionJob(j, models.JobStatusSubmitted); err != nil {
			return err
		}
		j.ProofLink = &link
		if err := tx.QueryRow(ctx, `
			UPDATE jobs SET status = $1, proof_link = $2, updated_at = now() WHERE id = $3
			RETURNING updated_at
		`, j.Status, j.ProofLink, j.ID).Scan(&j.UpdatedAt); err != nil {
			return err
		}
		out = j
		return nil
	})
	return out, err
}

// JobReview is the result of a review decision.
type JobReview struct {
	Job   *models.Job
	Entry *models.WalletTransaction
}

// Review applies a brand or admin decision on a submission. Verifying
// pays the influencer from the campaign's allocation.
func (r *JobRepo) Review(ctx context.Context, jobID, reviewerID uuid.UUID, decision string, notes *string) (*JobReview, error) {
	if !models.IsValidReviewDecision(decision) {
		return nil, models.NewValidationError("invalid review decision")
	}
	var out JobReview
	err := r.withJobLocks(ctx, jobID, func(tx pgx.Tx, c *models.Campaign, j *models.Job) error {
		if err := transitionJob(j, decision); err != nil {
			return err
		}
		now := time.Now()
		j.ReviewNotes = notes
		j.ReviewedBy = &reviewerID
		j.ReviewedAt = &now

		if decision == models.JobStatusVerified {
			entry, err := postEntry(ctx, tx, models.LedgerEntry{
				UserID:         j.InfluencerID,
				Currency:       j.PayoutCurrency,
				Direction:      models.DirectionCredit,
				Kind:           models.TxKindCampaignPayment,
				Amount:         j.PayoutCurrencyAmount,
				Reason:         "payout for campaign: " + c.Name,
				ReferenceType:  "job",
				ReferenceID:    &j.ID,
				IdempotencyKey: "job-payout:" + j.ID.String(),
			})
			if err != nil {
				return err
			}
			out.Entry = entry
			if _, err := tx.Exec(ctx, `UPDATE campaigns SET spent = spent + $1, updated_at = now() WHERE id = $2`,
				j.PayoutAmount.String(), c.ID); err != nil {
				return fmt.Errorf("update campaign spent: %w", err)
			}
		}

		if err := tx.QueryRow(ctx, `
			UPDATE jobs SET status = $1, review_notes = $2, reviewed_by = $3, reviewed_at = $4, updated_at = now()
			WHERE id = $5
			RETURNING updated_at
		`, j.Status, j.ReviewNotes, j.ReviewedBy, j.ReviewedAt, j.ID).Scan(&j.UpdatedAt); err != nil {
			return err
		}
		out.Job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel withdraws the influencer from the job and releases its share of
// the campaign budget.
func (r *JobRepo) Cancel(ctx context.Context, jobID, influencerID uuid.UUID) (*models.Job, error) {
	var out *models.Job
	err := r.withJobLocks(ctx, jobID, func(tx pgx.Tx, c *models.Campaign, j *models.Job) error {
		if j.InfluencerID != influencerID {
			return models.ErrForbidden
		}
		if err := transitionJob(j, models.JobStatusCancelled); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE campaigns SET allocated = allocated - $1, updated_at = now() WHERE id = $2`,
			j.PayoutAmount.String(), c.ID); err != nil {
			return fmt.Errorf("release allocation: %w", err)
		}
		if err := tx.QueryRow(ctx, `UPDATE jobs SET status = $1, updated_at = now() WHERE id = $2 RETURNING updated_at`,
			j.Status, j.ID).Scan(&j.UpdatedAt); err != nil {
			return err
		}
		out = j
		return nil
	})
	return out, err
}

// ensureNothingAwaitingReview refuses to close a campaign while delivered
// work is unreviewed, since closing refunds the unspent budget.
func ensureNothingAwaitingReview(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) error {
	var n int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM jobs WHERE campaign_id = $1 AND status IN ('submitted', 'flagged')
	`, campaignID).Scan(&n); err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d job(s) to review: %w", n, models.ErrAwaitingReview)
	}
	return nil
}

// cancelOpenJobs runs inside a campaign close, with the campaign row
// already locked.
func cancelOpenJobs(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID) ([]models.Job, error) {
	rows, err := tx.Query(ctx, `
		UPDATE jobs AS j SET status = 'cancelled', updated_at = now()
		WHERE j.campaign_id = $1 AND j.status NOT IN ('verified', 'cancelled')
		RETURNING `+jobColumns, campaignID)
	if err != nil {
		return nil, fmt.Errorf("cancel open jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := scanJob(rows, &j); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *JobRepo) GetWithCampaign(ctx context.Context, id uuid.UUID) (*models.JobWithCampaign, error) {
	var j models.JobWithCampaign
	if err := scanJobWithCampaign(r.pool.QueryRow(ctx, jobWithCampaignQuery+` WHERE j.id = $1`, id), &j); err != nil {
		return nil, notFound(err, "job")
	}
	return &j, nil
}

type JobFilter struct {
	InfluencerID *uuid.UUID
	CampaignID   *uuid.UUID
	Status       *string
	Limit        int
	Offset       int
}

func (r *JobRepo) List(ctx context.Context, f JobFilter) ([]models.JobWithCampaign, error) {
	var w whereBuilder
	if f.InfluencerID != nil {
		w.add("j.influencer_id = $%d", *f.InfluencerID)
	}
	if f.CampaignID != nil {
		w.add("j.campaign_id = $%d", *f.CampaignID)
	}
	if f.Status != nil {
		w.add("j.status = $%d", *f.Status)
	}
	query := jobWithCampaignQuery + w.sql() + ` ORDER BY j.created_at DESC` + w.page(f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.JobWithCampaign
	for rows.Next() {
		var j models.JobWithCampaign
		if err := scanJobWithCampaign(rows, &j); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
