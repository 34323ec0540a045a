package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pushit/marketplace/internal/models"
	"github.com/shopspring/decimal"
)

const walletTxColumns = `
	id, wallet_id, user_id, kind, direction, amount::text, currency,
	balance_after::text, status, reason, reference_type, reference_id,
	idempotency_key, created_at`

func scanWalletTx(row pgx.Row, t *models.WalletTransaction) error {
	return row.Scan(&t.ID, &t.WalletID, &t.UserID, &t.Kind, &t.Direction, &t.Amount, &t.Currency,
		&t.BalanceAfter, &t.Status, &t.Reason, &t.ReferenceType, &t.ReferenceID,
		&t.IdempotencyKey, &t.CreatedAt)
}

// postEntry is the single write path for wallet balances. Inside tx it
// locks the wallet row, applies the entry, appends the ledger row and
// updates the balance. A reused idempotency key returns the original row
// with models.ErrDuplicateEntry and changes nothing.
func postEntry(ctx context.Context, tx pgx.Tx, e models.LedgerEntry) (*models.WalletTransaction, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	if e.IdempotencyKey != "" {
		var existing models.WalletTransaction
		err := scanWalletTx(tx.QueryRow(ctx,
			`SELECT `+walletTxColumns+` FROM wallet_transactions WHERE idempotency_key = $1`,
			e.IdempotencyKey), &existing)
		if err == nil {
			return &existing, models.ErrDuplicateEntry
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
	}

	walletID, balance, err := lockWallet(ctx, tx, e.UserID, e.Currency)
	if err != nil {
		return nil, err
	}

	next, err := models.ApplyEntry(balance, e.Direction, e.Amount)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2`,
		next.String(), walletID); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	t := &models.WalletTransaction{
		WalletID:     walletID,
		UserID:       e.UserID,
		Kind:         e.Kind,
		Direction:    e.Direction,
		Amount:       e.Amount,
		Currency:     e.Currency,
		BalanceAfter: next,
		Status:       models.TxStatusCompleted,
		Reason:       e.Reason,
		ReferenceID:  e.ReferenceID,
	}
	if e.ReferenceType != "" {
		t.ReferenceType = &e.ReferenceType
	}
	if e.IdempotencyKey != "" {
		t.IdempotencyKey = &e.IdempotencyKey
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (
			wallet_id, user_id, kind, direction, amount, currency, balance_after,
			status, reason, reference_type, reference_id, idempotency_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`, t.WalletID, t.UserID, t.Kind, t.Direction, t.Amount.String(), t.Currency, t.BalanceAfter.String(),
		t.Status, t.Reason, t.ReferenceType, t.ReferenceID, t.IdempotencyKey,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateEntry
		}
		return nil, fmt.Errorf("insert ledger row: %w", err)
	}

	return t, nil
}

// lockWallet creates the wallet on first use and holds a row lock on it
// until tx ends.
func lockWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (uuid.UUID, decimal.Decimal, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id, currency) VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO NOTHING
	`, userID, currency); err != nil {
		return uuid.Nil, decimal.Zero, fmt.Errorf("ensure wallet: %w", err)
	}

	var id uuid.UUID
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT id, balance::text FROM wallets
		WHERE user_id = $1 AND currency = $2
		FOR UPDATE
	`, userID, currency).Scan(&id, &balance)
	if err != nil {
		return uuid.Nil, decimal.Zero, fmt.Errorf("lock wallet: %w", err)
	}
	return id, balance, nil
}
