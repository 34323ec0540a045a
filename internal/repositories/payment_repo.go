package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/db"
	"github.com/pushit/marketplace/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `
	id, user_id, type, amount::text, currency, reference, status,
	gateway_authorization_code, gateway_customer_code, gateway_transfer_code,
	failure_reason, metadata, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row, p *models.PaymentTransaction) error {
	var meta []byte
	err := row.Scan(&p.ID, &p.UserID, &p.Type, &p.Amount, &p.Currency, &p.Reference, &p.Status,
		&p.GatewayAuthorizationCode, &p.GatewayCustomerCode, &p.GatewayTransferCode,
		&p.FailureReason, &meta, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	if len(meta) > 0 {
		return json.Unmarshal(meta, &p.Metadata)
	}
	return nil
}

func metadataJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func insertPayment(ctx context.Context, q pgx.Tx, p *models.PaymentTransaction) error {
	meta, err := metadataJSON(p.Metadata)
	if err != nil {
		return err
	}
	err = scanPayment(q.QueryRow(ctx, `
		INSERT INTO payment_transactions (user_id, type, amount, currency, reference, status, metadata)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING `+paymentColumns,
		p.UserID, p.Type, p.Amount.String(), p.Currency, p.Reference, meta), p)
	if isUniqueViolation(err) {
		return models.ErrDuplicateEntry
	}
	return err
}

// Create stores a pending payment.
func (r *PaymentRepo) Create(ctx context.Context, p *models.PaymentTransaction) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return insertPayment(ctx, tx, p)
	})
}

func (r *PaymentRepo) GetByReference(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	if err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_transactions WHERE reference = $1`, ref), &p); err != nil {
		return nil, notFound(err, "payment")
	}
	return &p, nil
}

func lockPayment(ctx context.Context, tx pgx.Tx, ref string) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE reference = $1 FOR UPDATE`, ref), &p)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return &p, nil
}

// Settlement is the outcome of reconciling a payment.
type Settlement struct {
	Payment *models.PaymentTransaction
	Entry   *models.WalletTransaction
}

// CompleteTopUp marks a pending top-up successful and credits the wallet
// in the same transaction. The caller has already checked amount and
// currency against the gateway.
func (r *PaymentRepo) CompleteTopUp(ctx context.Context, ref string, res models.GatewayResult) (*Settlement, error) {
	var out Settlement
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		p, err := lockPayment(ctx, tx, ref)
		if err != nil {
			return err
		}
		if p.Type != models.PaymentTypeTopUp {
			return fmt.Errorf("payment %s is a %s: %w", ref, p.Type, models.ErrPaymentNotPending)
		}
		if !p.IsPending() {
			out.Payment = p
			return models.ErrPaymentNotPending
		}

		entry, err := postEntry(ctx, tx, models.LedgerEntry{
			UserID:         p.UserID,
			Currency:       p.Currency,
			Direction:      models.DirectionCredit,
			Kind:           models.TxKindDeposit,
			Amount:         p.Amount,
			Reason:         "wallet top-up",
			ReferenceType:  "payment",
			ReferenceID:    &p.ID,
			IdempotencyKey: "paystack:" + p.Reference,
		})
		if err != nil {
			return err
		}
		out.Entry = entry

		paidAt := res.PaidAt
		if paidAt == nil {
			now := time.Now()
			paidAt = &now
		}
		p.Status = models.PaymentStatusSuccess
		p.PaidAt = paidAt
		p.GatewayAuthorizationCode = optional(res.AuthorizationCode)
		p.GatewayCustomerCode = optional(res.CustomerCode)
		if err := tx.QueryRow(ctx, `
			UPDATE payment_transactions SET status = $1, paid_at = $2,
				gateway_authorization_code = $3, gateway_customer_code = $4, updated_at = now()
			WHERE id = $5
			RETURNING updated_at
		`, p.Status, p.PaidAt, p.GatewayAuthorizationCode, p.GatewayCustomerCode, p.ID).Scan(&p.UpdatedAt); err != nil {
			return err
		}
		out.Payment = p
		return nil
	})
	if err != nil {
		return &out, err
	}
	return &out, nil
}

// MarkFailed moves a pending payment to failed without touching any
// wallet. It is used for charges, where nothing was debited up front.
func (r *PaymentRepo) MarkFailed(ctx context.Context, ref, reason string) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	err := scanPayment(r.pool.QueryRow(ctx, `
		UPDATE payment_transactions SET status = 'failed', failure_reason = $1, updated_at = now()
		WHERE reference = $2 AND status = 'pending'
		RETURNING `+paymentColumns, reason, ref), &p)
	if err != nil {
		return nil, r.notPending(ctx, ref, err)
	}
	return &p, nil
}

// CreatePayout debits the wallet and records the pending payout in one
// transaction.
func (r *PaymentRepo) CreatePayout(ctx context.Context, p *models.PaymentTransaction) (*Settlement, error) {
	out := Settlement{Payment: p}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertPayment(ctx, tx, p); err != nil {
			return err
		}
		entry, err := postEntry(ctx, tx, models.LedgerEntry{
			UserID:         p.UserID,
			Currency:       p.Currency,
			Direction:      models.DirectionDebit,
			Kind:           models.TxKindWithdrawal,
			Amount:         p.Amount,
			Reason:         "withdrawal",
			ReferenceType:  "payment",
			ReferenceID:    &p.ID,
			IdempotencyKey: "withdrawal:" + p.ID.String(),
		})
		out.Entry = entry
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetTransferCode records the gateway's transfer code on a payout.
func (r *PaymentRepo) SetTransferCode(ctx context.Context, ref, code string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payment_transactions SET gateway_transfer_code = $1, updated_at = now() WHERE reference = $2`,
		code, ref)
	return err
}

func (r *PaymentRepo) SettlePayout(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	err := scanPayment(r.pool.QueryRow(ctx, `
		UPDATE payment_transactions SET status = 'success', paid_at = now(), updated_at = now()
		WHERE reference = $1 AND type = 'payout' AND status = 'pending'
		RETURNING `+paymentColumns, ref), &p)
	if err != nil {
		return nil, r.notPending(ctx, ref, err)
	}
	return &p, nil
}

// FailPayout marks a pending payout failed and returns the debited amount
// to the wallet.
func (r *PaymentRepo) FailPayout(ctx context.Context, ref, reason string) (*Settlement, error) {
	return r.refundPayout(ctx, ref, "withdrawal failed: "+reason, reason, models.PaymentStatusFailed,
		models.PaymentStatusPending)
}

// ReversePayout handles a transfer the bank sent back. It applies to
// pending payouts and to ones already settled; either way the amount is
// credited back once under the same key as a failure refund.
func (r *PaymentRepo) ReversePayout(ctx context.Context, ref, reason string) (*Settlement, error) {
	return r.refundPayout(ctx, ref, "withdrawal reversed: "+reason, reason, models.PaymentStatusReversed,
		models.PaymentStatusPending, models.PaymentStatusSuccess)
}

func (r *PaymentRepo) refundPayout(ctx context.Context, ref, entryReason, reason, to string, from ...string) (*Settlement, error) {
	var out Settlement
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		p, err := lockPayment(ctx, tx, ref)
		if err != nil {
			return err
		}
		out.Payment = p
		if p.Type != models.PaymentTypePayout || !slices.Contains(from, p.Status) {
			return models.ErrPaymentNotPending
		}

		entry, err := postEntry(ctx, tx, models.LedgerEntry{
			UserID:         p.UserID,
			Currency:       p.Currency,
			Direction:      models.DirectionCredit,
			Kind:           models.TxKindRefund,
			Amount:         p.Amount,
			Reason:         entryReason,
			ReferenceType:  "payment",
			ReferenceID:    &p.ID,
			IdempotencyKey: "payout-refund:" + p.Reference,
		})
		if err != nil {
			return err
		}
		out.Entry = entry

		p.Status = to
		p.FailureReason = &reason
		return tx.QueryRow(ctx, `
			UPDATE payment_transactions SET status = $1, failure_reason = $2, updated_at = now()
			WHERE id = $3
			RETURNING updated_at
		`, p.Status, p.FailureReason, p.ID).Scan(&p.UpdatedAt)
	})
	if err != nil {
		return &out, err
	}
	return &out, nil
}

// ListPendingOlderThan returns pending payments of type created before
// cutoff, oldest first.
func (r *PaymentRepo) ListPendingOlderThan(ctx context.Context, paymentType string, cutoff time.Time, limit int) ([]models.PaymentTransaction, error) {
	return r.query(ctx, `
		SELECT `+paymentColumns+` FROM payment_transactions
		WHERE status = 'pending' AND type = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, paymentType, cutoff, limit)
}

type PaymentFilter struct {
	UserID *uuid.UUID
	Type   *string
	Status *string
	Limit  int
	Offset int
}

func (r *PaymentRepo) List(ctx context.Context, f PaymentFilter) ([]models.PaymentTransaction, error) {
	var w whereBuilder
	if f.UserID != nil {
		w.add("user_id = $%d", *f.UserID)
	}
	if f.Type != nil {
		w.add("type = $%d", *f.Type)
	}
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	return r.query(ctx, `SELECT `+paymentColumns+` FROM payment_transactions`+w.sql()+
		` ORDER BY created_at DESC`+w.page(f.Limit, f.Offset), w.args...)
}

func (r *PaymentRepo) query(ctx context.Context, query string, args ...any) ([]models.PaymentTransaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PaymentTransaction
	for rows.Next() {
		var p models.PaymentTransaction
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// notPending explains why a conditional update on ref matched no row.
func (r *PaymentRepo) notPending(ctx context.Context, ref string, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, getErr := r.GetByReference(ctx, ref); getErr != nil {
		return getErr
	}
	return models.ErrPaymentNotPending
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const payoutMethodColumns = `
	id, influencer_id, method_type, bank_code, account_number, account_name,
	recipient_code, is_default, is_active, created_at`

func scanPayoutMethod(row pgx.Row, m *models.PayoutMethod) error {
	return row.Scan(&m.ID, &m.InfluencerID, &m.MethodType, &m.BankCode, &m.AccountNumber, &m.AccountName,
		&m.RecipientCode, &m.IsDefault, &m.IsActive, &m.CreatedAt)
}

// AddPayoutMethod stores a method. The first active method becomes the
// default.
func (r *PaymentRepo) AddPayoutMethod(ctx context.Context, m *models.PayoutMethod) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var existing int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM payout_methods WHERE influencer_id = $1 AND is_active`, m.InfluencerID,
		).Scan(&existing); err != nil {
			return err
		}
		m.IsDefault = existing == 0
		return scanPayoutMethod(tx.QueryRow(ctx, `
			INSERT INTO payout_methods (influencer_id, method_type, bank_code, account_number,
			                            account_name, recipient_code, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+payoutMethodColumns,
			m.InfluencerID, m.MethodType, m.BankCode, m.AccountNumber, m.AccountName,
			m.RecipientCode, m.IsDefault), m)
	})
}

func (r *PaymentRepo) ListPayoutMethods(ctx context.Context, influencerID uuid.UUID) ([]models.PayoutMethod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+payoutMethodColumns+` FROM payout_methods
		WHERE influencer_id = $1 AND is_active
		ORDER BY is_default DESC, created_at
	`, influencerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PayoutMethod
	for rows.Next() {
		var m models.PayoutMethod
		if err := scanPayoutMethod(rows, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PaymentRepo) DefaultPayoutMethod(ctx context.Context, influencerID uuid.UUID) (*models.PayoutMethod, error) {
	var m models.PayoutMethod
	err := scanPayoutMethod(r.pool.QueryRow(ctx, `
		SELECT `+payoutMethodColumns+` FROM payout_methods
		WHERE influencer_id = $1 AND is_active AND is_default
	`, influencerID), &m)
	if err != nil {
		return nil, notFound(err, "default payout method")
	}
	return &m, nil
}

func (r *PaymentRepo) SetDefaultPayoutMethod(ctx context.Context, influencerID, methodID uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE payout_methods SET is_default = false WHERE influencer_id = $1 AND is_default`, influencerID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE payout_methods SET is_default = true WHERE id = $1 AND influencer_id = $2 AND is_active`,
			methodID, influencerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return notFound(pgx.ErrNoRows, "payout method")
		}
		return nil
	})
}

// DeactivatePayoutMethod soft deletes a method.
func (r *PaymentRepo) DeactivatePayoutMethod(ctx context.Context, influencerID, methodID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payout_methods SET is_active = false, is_default = false
		WHERE id = $1 AND influencer_id = $2 AND is_active
	`, methodID, influencerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "payout method")
	}
	return nil
}
