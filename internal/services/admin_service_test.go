package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (f *fakeAccounts) List(_ context.Context, uf repositories.UserFilter) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if uf.Role == nil || *uf.Role == u.Role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeAccounts) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (f *fakeAudit) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, _, _ int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePauser struct {
	brands []uuid.UUID
}

func (f *fakePauser) PauseAllForBrand(_ context.Context, _ Actor, brandID uuid.UUID) (int, error) {
	f.brands = append(f.brands, brandID)
	return 2, nil
}

type adminFixture struct {
	svc      *AdminService
	accounts *fakeAccounts
	ledger   *fakeLedger
	pauser   *fakePauser
	audit    *fakeAudit
	notifier *fakeNotifier
	admin    Actor
	brandID  uuid.UUID
	infID    uuid.UUID
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	accounts := newFakeAccounts()
	adminID, brandID, infID := uuid.New(), uuid.New(), uuid.New()
	accounts.users[adminID] = &models.User{ID: adminID, Role: models.RoleAdmin, IsActive: true}
	accounts.users[brandID] = &models.User{ID: brandID, Role: models.RoleBrand, IsActive: true}
	accounts.users[infID] = &models.User{ID: infID, Role: models.RoleInfluencer, IsActive: true}
	accounts.brands[brandID] = &models.Brand{UserID: brandID, Currency: "NGN", VerificationStatus: models.BrandStatusVerified}
	accounts.influencers[infID] = &models.Influencer{UserID: infID, Currency: "NGN", VerificationStatus: models.InfluencerStatusPending}

	f := &adminFixture{
		accounts: accounts,
		ledger:   newFakeLedger(),
		pauser:   &fakePauser{},
		audit:    &fakeAudit{},
		notifier: &fakeNotifier{},
		admin:    Actor{UserID: adminID, Role: models.RoleAdmin},
		brandID:  brandID,
		infID:    infID,
	}
	wallets := NewWalletService(f.ledger, f.audit, nil, zap.NewNop())
	f.svc = NewAdminService(accounts, accounts, f.pauser, wallets, f.audit, f.notifier, f.audit, zap.NewNop())
	return f
}

func TestAdminRequiresAdmin(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	brand := Actor{UserID: f.brandID, Role: models.RoleBrand}

	if _, err := f.svc.ListUsers(ctx, brand, repositories.UserFilter{}); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("ListUsers err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.SetVerification(ctx, brand, f.infID, "approve", ""); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("SetVerification err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.AdjustWallet(ctx, brand, Adjustment{UserID: f.brandID}); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("AdjustWallet err = %v, want ErrForbidden", err)
	}
}

func TestAdminSetVerification(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	status, err := f.svc.SetVerification(ctx, f.admin, f.infID, "approve", "")
	if err != nil || status != models.InfluencerStatusApproved {
		t.Fatalf("approve = %q, %v", status, err)
	}
	if got := f.accounts.influencers[f.infID].VerificationStatus; got != models.InfluencerStatusApproved {
		t.Errorf("influencer status = %s", got)
	}

	var ve *models.ValidationError
	if _, err := f.svc.SetVerification(ctx, f.admin, f.brandID, "pause", " "); !errors.As(err, &ve) {
		t.Errorf("pause without reason err = %v, want validation error", err)
	}
	if _, err := f.svc.SetVerification(ctx, f.admin, f.brandID, "promote", ""); !errors.As(err, &ve) {
		t.Errorf("unknown action err = %v, want validation error", err)
	}
	if _, err := f.svc.SetVerification(ctx, f.admin, f.admin.UserID, "approve", ""); !errors.As(err, &ve) {
		t.Errorf("admin target err = %v, want validation error", err)
	}

	status, err = f.svc.SetVerification(ctx, f.admin, f.brandID, "pause", "chargeback under review")
	if err != nil || status != models.BrandStatusPaused {
		t.Fatalf("pause = %q, %v", status, err)
	}
	if len(f.pauser.brands) != 1 || f.pauser.brands[0] != f.brandID {
		t.Errorf("paused campaigns for %v", f.pauser.brands)
	}
	if b := f.accounts.brands[f.brandID]; b.PauseReason == nil || *b.PauseReason != "chargeback under review" {
		t.Errorf("pause reason = %v", b.PauseReason)
	}
	if f.notifier.count(models.NotifyAccountStatus) != 2 {
		t.Errorf("account status notifications = %d, want 2", f.notifier.count(models.NotifyAccountStatus))
	}

	trail, err := f.svc.AuditTrail(ctx, f.admin, models.RoleBrand, f.brandID, 50, 0)
	if err != nil || len(trail) != 1 || trail[0].Action != "verification_pause" {
		t.Errorf("AuditTrail = %+v, %v", trail, err)
	}
}

func TestAdminAdjustWallet(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	adj := Adjustment{
		UserID:         f.infID,
		Currency:       "ngn",
		Direction:      models.DirectionCredit,
		Amount:         decimal.NewFromInt(750),
		Reason:         "goodwill credit",
		IdempotencyKey: "ticket-42",
	}
	tx, err := f.svc.AdjustWallet(ctx, f.admin, adj)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Kind != models.TxKindAdjustment || tx.Currency != "NGN" || !tx.BalanceAfter.Equal(decimal.NewFromInt(750)) {
		t.Errorf("adjustment = %+v", tx)
	}
	if _, err := f.svc.AdjustWallet(ctx, f.admin, adj); !errors.Is(err, models.ErrDuplicateEntry) {
		t.Errorf("replayed adjustment err = %v, want ErrDuplicateEntry", err)
	}

	var ve *models.ValidationError
	adj.Reason = ""
	adj.IdempotencyKey = ""
	if _, err := f.svc.AdjustWallet(ctx, f.admin, adj); !errors.As(err, &ve) {
		t.Errorf("missing reason err = %v, want validation error", err)
	}

	adj.Reason = "reverse"
	adj.Direction = models.DirectionDebit
	adj.Amount = decimal.NewFromInt(1000)
	if _, err := f.svc.AdjustWallet(ctx, f.admin, adj); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Errorf("overdraw err = %v, want ErrInsufficientFunds", err)
	}
}

func TestAdminSetUserActive(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	if err := f.svc.SetUserActive(ctx, f.admin, f.brandID, false); err != nil {
		t.Fatal(err)
	}
	if f.accounts.users[f.brandID].IsActive {
		t.Error("brand still active")
	}
	var ve *models.ValidationError
	if err := f.svc.SetUserActive(ctx, f.admin, f.admin.UserID, false); !errors.As(err, &ve) {
		t.Errorf("self deactivate err = %v, want validation error", err)
	}
}
