package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/db"
	"github.com/pushit/marketplace/internal/models"
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Post applies one ledger entry in its own transaction.
func (r *WalletRepo) Post(ctx context.Context, e models.LedgerEntry) (*models.WalletTransaction, error) {
	var out *models.WalletTransaction
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := postEntry(ctx, tx, e)
		out = t
		return err
	})
	return out, err
}

const walletColumns = `id, user_id, currency, balance::text, created_at, updated_at`

func scanWallet(row pgx.Row, w *models.Wallet) error {
	return row.Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
}

// Ensure creates an empty wallet if the user has none in currency.
func (r *WalletRepo) Ensure(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error) {
	var w models.Wallet
	err := scanWallet(r.pool.QueryRow(ctx, `
		INSERT INTO wallets (user_id, currency) VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO UPDATE SET currency = EXCLUDED.currency
		RETURNING `+walletColumns, userID, currency), &w)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepo) Get(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error) {
	var w models.Wallet
	err := scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND currency = $2`,
		userID, currency), &w)
	if err != nil {
		return nil, notFound(err, "wallet")
	}
	return &w, nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id), &w)
	if err != nil {
		return nil, notFound(err, "wallet")
	}
	return &w, nil
}

func (r *WalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY currency`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := scanWallet(rows, &w); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

type TransactionFilter struct {
	UserID   uuid.UUID
	Currency *string
	Kind     *string
	Limit    int
	Offset   int
}

func (r *WalletRepo) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.WalletTransaction, error) {
	var w whereBuilder
	w.add("user_id = $%d", f.UserID)
	if f.Currency != nil {
		w.add("currency = $%d", *f.Currency)
	}
	if f.Kind != nil {
		w.add("kind = $%d", *f.Kind)
	}

	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions` + w.sql() +
		` ORDER BY created_at DESC` + w.page(f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		if err := scanWalletTx(rows, &t); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

const driftQuery = `
	SELECT w.id, w.user_id, w.currency, w.balance::text,
	       COALESCE(SUM(CASE t.direction WHEN 'credit' THEN t.amount ELSE -t.amount END), 0)::text
	FROM wallets w
	LEFT JOIN wallet_transactions t ON t.wallet_id = w.id`

// Drift recomputes one wallet's balance from its ledger rows.
func (r *WalletRepo) Drift(ctx context.Context, walletID uuid.UUID) (*models.WalletDrift, error) {
	var d models.WalletDrift
	err := r.pool.QueryRow(ctx, driftQuery+` WHERE w.id = $1 GROUP BY w.id`, walletID).
		Scan(&d.WalletID, &d.UserID, &d.Currency, &d.Balance, &d.LedgerSum)
	if err != nil {
		return nil, notFound(err, "wallet")
	}
	return &d, nil
}

// FindDrift lists every wallet whose balance disagrees with its ledger.
func (r *WalletRepo) FindDrift(ctx context.Context) ([]models.WalletDrift, error) {
	rows, err := r.pool.Query(ctx, driftQuery+`
		GROUP BY w.id
		HAVING w.balance <> COALESCE(SUM(CASE t.direction WHEN 'credit' THEN t.amount ELSE -t.amount END), 0)
	`)
	if err != nil {
		return nil, fmt.Errorf("find drift: %w", err)
	}
	defer rows.Close()

	var out []models.WalletDrift
	for rows.Next() {
		var d models.WalletDrift
		if err := rows.Scan(&d.WalletID, &d.UserID, &d.Currency, &d.Balance, &d.LedgerSum); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
