package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/metrics"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LedgerStore interface {
	Post(ctx context.Context, e models.LedgerEntry) (*models.WalletTransaction, error)
	Get(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error)
	ListTransactions(ctx context.Context, f repositories.TransactionFilter) ([]models.WalletTransaction, error)
	Drift(ctx context.Context, walletID uuid.UUID) (*models.WalletDrift, error)
	FindDrift(ctx context.Context) ([]models.WalletDrift, error)
}

// WalletService is the wallet ledger. Every balance change either goes
// through Post or is reported through Record by the service that posted
// it inside its own transaction.
type WalletService struct {
	store   LedgerStore
	audit   AuditLogger
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewWalletService(store LedgerStore, audit AuditLogger, m *metrics.Metrics, log *zap.Logger) *WalletService {
	return &WalletService{
		store:   store,
		audit:   audit,
		metrics: m,
		log:     log,
	}
}

func (s *WalletService) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, kind, reason, idempotencyKey string, actor Actor) (*models.WalletTransaction, error) {
	return s.Post(ctx, models.LedgerEntry{
		UserID:         userID,
		Currency:       currency,
		Direction:      models.DirectionCredit,
		Kind:           kind,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
	}, actor)
}

func (s *WalletService) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, kind, reason, idempotencyKey string, actor Actor) (*models.WalletTransaction, error) {
	return s.Post(ctx, models.LedgerEntry{
		UserID:         userID,
		Currency:       currency,
		Direction:      models.DirectionDebit,
		Kind:           kind,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
	}, actor)
}

// Post applies one entry atomically. ErrInsufficientFunds and
// ErrDuplicateEntry leave the wallet untouched.
func (s *WalletService) Post(ctx context.Context, e models.LedgerEntry, actor Actor) (*models.WalletTransaction, error) {
	if err := e.Validate(); err != nil {
		s.metrics.LedgerEntry(e.Kind, e.Direction, "invalid")
		return nil, err
	}

	t, err := s.store.Post(ctx, e)
	switch {
	case err == nil:
		s.Record(ctx, t, actor)
		return t, nil
	case errors.Is(err, models.ErrInsufficientFunds):
		s.metrics.LedgerEntry(e.Kind, e.Direction, "insufficient_funds")
		return nil, err
	case errors.Is(err, models.ErrDuplicateEntry):
		s.metrics.LedgerEntry(e.Kind, e.Direction, "duplicate")
		return t, err
	default:
		s.metrics.LedgerEntry(e.Kind, e.Direction, "error")
		return nil, fmt.Errorf("post ledger entry: %w", err)
	}
}

// Record counts and audits an entry that was committed elsewhere.
func (s *WalletService) Record(ctx context.Context, t *models.WalletTransaction, actor Actor) {
	if t == nil {
		return
	}
	s.metrics.LedgerEntry(t.Kind, t.Direction, "ok")
	actorType := actor.auditType()
	if actor.Role == models.ActorSystem || actor.Role == models.ActorWebhook {
		actorType = actor.Role
	}
	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: actorPtr(actor),
		ActorType:   actorType,
		Action:      "ledger_" + t.Direction,
		EntityType:  "wallet",
		EntityID:    &t.WalletID,
		Meta: map[string]any{
			"transaction_id": t.ID.String(),
			"kind":           t.Kind,
			"amount":         t.Amount.String(),
			"currency":       t.Currency,
			"balance_after":  t.BalanceAfter.String(),
			"reason":         t.Reason,
		},
	})
}

func (s *WalletService) GetWallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	return s.store.ListByUser(ctx, userID)
}

// GetBalance returns zero for a currency the user has never held.
func (s *WalletService) GetBalance(ctx context.Context, userID uuid.UUID, currency string) (decimal.Decimal, error) {
	w, err := s.store.Get(ctx, userID, currency)
	if errors.Is(err, models.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, f repositories.TransactionFilter) ([]models.WalletTransaction, error) {
	if f.Kind != nil && !models.IsValidTxKind(*f.Kind) {
		return nil, models.NewValidationError("unknown transaction kind")
	}
	return s.store.ListTransactions(ctx, f)
}

// Reconcile recomputes one wallet from its ledger.
func (s *WalletService) Reconcile(ctx context.Context, walletID uuid.UUID) (*models.WalletDrift, error) {
	d, err := s.store.Drift(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if d.HasDrift() {
		s.log.Error("wallet balance drift",
			zap.String("wallet_id", d.WalletID.String()),
			zap.String("balance", d.Balance.String()),
			zap.String("ledger_sum", d.LedgerSum.String()),
		)
	}
	return d, nil
}

// AuditDrift checks every wallet and reports how many disagree with
// their ledger.
func (s *WalletService) AuditDrift(ctx context.Context) ([]models.WalletDrift, error) {
	drifts, err := s.store.FindDrift(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.SetWalletDrift(len(drifts))
	for _, d := range drifts {
		s.log.Error("wallet balance drift",
			zap.String("wallet_id", d.WalletID.String()),
			zap.String("user_id", d.UserID.String()),
			zap.String("currency", d.Currency),
			zap.String("balance", d.Balance.String()),
			zap.String("ledger_sum", d.LedgerSum.String()),
		)
	}
	return drifts, nil
}
