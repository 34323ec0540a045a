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

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, username, password_hash, role, is_email_verified, is_active, created_at, last_login_at`

func scanUser(row pgx.Row, u *models.User) error {
	return row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role,
		&u.IsEmailVerified, &u.IsActive, &u.CreatedAt, &u.LastLoginAt)
}

// NewAccount is everything created at signup.
type NewAccount struct {
	User       *models.User
	Brand      *models.Brand
	Influencer *models.Influencer
	Currency   string
}

// CreateAccount inserts the user, its role profile and an empty wallet in
// the profile currency atomically.
func (r *UserRepo) CreateAccount(ctx context.Context, a NewAccount) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		u := a.User
		err := tx.QueryRow(ctx, `
			INSERT INTO users (email, username, password_hash, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id, is_email_verified, is_active, created_at
		`, u.Email, u.Username, u.PasswordHash, u.Role).Scan(&u.ID, &u.IsEmailVerified, &u.IsActive, &u.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrEmailTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}

		switch {
		case a.Brand != nil:
			b := a.Brand
			b.UserID = u.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO brands (user_id, company_name, website, industry, description, currency)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING verification_status, created_at, updated_at
			`, b.UserID, b.CompanyName, b.Website, b.Industry, b.Description, b.Currency,
			).Scan(&b.VerificationStatus, &b.CreatedAt, &b.UpdatedAt)
		case a.Influencer != nil:
			i := a.Influencer
			i.UserID = u.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO influencers (user_id, bio, niche, primary_platform, currency)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING verification_status, tier, created_at, updated_at
			`, i.UserID, i.Bio, i.Niche, i.PrimaryPlatform, i.Currency,
			).Scan(&i.VerificationStatus, &i.Tier, &i.CreatedAt, &i.UpdatedAt)
		}
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}

		if a.Currency != "" {
			if _, err := tx.Exec(ctx, `
				INSERT INTO wallets (user_id, currency) VALUES ($1, $2)
				ON CONFLICT (user_id, currency) DO NOTHING
			`, u.ID, a.Currency); err != nil {
				return fmt.Errorf("create wallet: %w", err)
			}
		}
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), &u); err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email), &u)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, id)
	return err
}

// PromoteToAdmin flips an existing account to the admin role.
func (r *UserRepo) PromoteToAdmin(ctx context.Context, email string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = 'admin' WHERE lower(email) = lower($1) AND role <> 'admin'`, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type UserFilter struct {
	Role   *string
	Search *string
	Limit  int
	Offset int
}

func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	var w whereBuilder
	if f.Role != nil {
		w.add("role = $%d", *f.Role)
	}
	if f.Search != nil {
		w.add("(email ILIKE '%%' || $%[1]d || '%%' OR username ILIKE '%%' || $%[1]d || '%%')", *f.Search)
	}
	query := `SELECT ` + userColumns + ` FROM users` + w.sql() + ` ORDER BY created_at DESC` + w.page(f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
