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

type fakeCampaigns struct {
	rows   map[uuid.UUID]*models.Campaign
	jobs   []models.Job
	ledger *fakeLedger
}

func newFakeCampaigns(ledger *fakeLedger) *fakeCampaigns {
	return &fakeCampaigns{rows: map[uuid.UUID]*models.Campaign{}, ledger: ledger}
}

func (f *fakeCampaigns) Create(_ context.Context, c *models.Campaign) error {
	c.ID = uuid.New()
	c.Status = models.CampaignStatusDraft
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeCampaigns) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) Update(_ context.Context, c *models.Campaign) error {
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeCampaigns) List(_ context.Context, cf repositories.CampaignFilter) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range f.rows {
		if cf.BrandID != nil && c.BrandID != *cf.BrandID {
			continue
		}
		if cf.Status != nil && c.Status != *cf.Status {
			continue
		}
		out = append(out, *c)
		if cf.Limit > 0 && len(out) == cf.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCampaigns) Transition(ctx context.Context, id uuid.UUID, to string) (*repositories.CampaignTransition, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !models.IsValidCampaignTransition(c.Status, to) {
		return nil, models.ErrInvalidTransition
	}
	out := &repositories.CampaignTransition{From: c.Status}
	var err error
	switch {
	case c.Status == models.CampaignStatusDraft && to == models.CampaignStatusActive:
		out.Entry, err = f.ledger.Post(ctx, models.LedgerEntry{
			UserID: c.BrandID, Currency: c.Currency, Direction: models.DirectionDebit,
			Kind: models.TxKindCampaignPayment, Amount: c.Budget, IdempotencyKey: "campaign-fund:" + c.ID.String(),
		})
		if err != nil {
			return nil, err
		}
	case models.IsClosedCampaignStatus(to) && c.Status != models.CampaignStatusDraft:
		for i := range f.jobs {
			if f.jobs[i].CampaignID == id && models.IsAwaitingReview(f.jobs[i].Status) {
				return nil, models.ErrAwaitingReview
			}
		}
		for i := range f.jobs {
			if f.jobs[i].CampaignID == id && models.IsOpenJobStatus(f.jobs[i].Status) {
				f.jobs[i].Status = models.JobStatusCancelled
				out.CancelledJobs = append(out.CancelledJobs, f.jobs[i])
			}
		}
		c.Allocated = c.Spent
		if r := c.Refundable(); r.IsPositive() {
			out.Entry, err = f.ledger.Post(ctx, models.LedgerEntry{
				UserID: c.BrandID, Currency: c.Currency, Direction: models.DirectionCredit,
				Kind: models.TxKindRefund, Amount: r, IdempotencyKey: "campaign-refund:" + c.ID.String(),
			})
			if err != nil {
				return nil, err
			}
		}
	}
	c.Status = to
	cp := *c
	out.Campaign = &cp
	return out, nil
}

type fakeBrands map[uuid.UUID]*models.Brand

func (f fakeBrands) GetBrand(_ context.Context, id uuid.UUID) (*models.Brand, error) {
	b, ok := f[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return b, nil
}

type fakeRecorder struct {
	entries []*models.WalletTransaction
}

func (f *fakeRecorder) Record(_ context.Context, t *models.WalletTransaction, _ Actor) {
	if t != nil {
		f.entries = append(f.entries, t)
	}
}

type sentNotification struct {
	UserID uuid.UUID
	Kind   string
}

type fakeNotifier struct {
	sent []sentNotification
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, kind, _, _, _ string) error {
	f.sent = append(f.sent, sentNotification{UserID: userID, Kind: kind})
	return nil
}

func (f *fakeNotifier) count(kind string) int {
	n := 0
	for _, s := range f.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type campaignFixture struct {
	svc      *CampaignService
	store    *fakeCampaigns
	ledger   *fakeLedger
	brands   fakeBrands
	recorder *fakeRecorder
	notifier *fakeNotifier
	brand    Actor
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()
	ledger := newFakeLedger()
	brandID := uuid.New()
	f := &campaignFixture{
		store:    newFakeCampaigns(ledger),
		ledger:   ledger,
		brands:   fakeBrands{brandID: {UserID: brandID, Currency: "NGN", VerificationStatus: models.BrandStatusVerified}},
		recorder: &fakeRecorder{},
		notifier: &fakeNotifier{},
		brand:    Actor{UserID: brandID, Role: models.RoleBrand},
	}
	f.svc = NewCampaignService(f.store, f.brands, ngnGhsRates(), f.recorder, f.notifier, nil, zap.NewNop())
	return f
}

func (f *campaignFixture) fund(t *testing.T, amount int64) {
	t.Helper()
	if _, err := f.ledger.Post(context.Background(), models.LedgerEntry{
		UserID: f.brand.UserID, Currency: "NGN", Direction: models.DirectionCredit,
		Kind: models.TxKindDeposit, Amount: decimal.NewFromInt(amount),
	}); err != nil {
		t.Fatal(err)
	}
}

func (f *campaignFixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := f.ledger.Get(context.Background(), f.brand.UserID, "NGN")
	if err != nil {
		t.Fatal(err)
	}
	return w.Balance
}

func validCampaignInput() CampaignInput {
	return CampaignInput{
		Name:          "Launch",
		Platform:      models.PlatformTikTok,
		PackageVideos: 5,
		Budget:        decimal.NewFromInt(10000),
	}
}

func TestCampaignCreateDefaults(t *testing.T) {
	f := newCampaignFixture(t)
	in := validCampaignInput()
	in.Niche = " Beauty"
	c, err := f.svc.Create(context.Background(), f.brand, in)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != models.CampaignStatusDraft || c.Currency != "NGN" {
		t.Errorf("campaign = %s/%s, want draft/NGN", c.Status, c.Currency)
	}
	if c.Niche == nil || *c.Niche != "beauty" {
		t.Errorf("niche = %v, want beauty", c.Niche)
	}
}

func TestCampaignCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CampaignInput)
	}{
		{"no name", func(in *CampaignInput) { in.Name = " " }},
		{"bad platform", func(in *CampaignInput) { in.Platform = "myspace" }},
		{"no videos", func(in *CampaignInput) { in.PackageVideos = 0 }},
		{"zero budget", func(in *CampaignInput) { in.Budget = decimal.Zero }},
		{"sub-cent budget", func(in *CampaignInput) { in.Budget = decimal.RequireFromString("10.001") }},
		{"negative threshold", func(in *CampaignInput) { in.MinFollowers = -1 }},
		{"unknown currency", func(in *CampaignInput) { in.Currency = "XYZ" }},
		{"payout below a cent", func(in *CampaignInput) {
			in.Budget = decimal.RequireFromString("0.01")
			in.PackageVideos = 3
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCampaignFixture(t)
			in := validCampaignInput()
			tt.mutate(&in)
			if _, err := f.svc.Create(context.Background(), f.brand, in); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCampaignCreateRequiresBrand(t *testing.T) {
	f := newCampaignFixture(t)
	_, err := f.svc.Create(context.Background(), Actor{UserID: uuid.New(), Role: models.RoleInfluencer}, validCampaignInput())
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestCampaignActivateInsufficientFunds(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()
	f.fund(t, 5000)

	c, err := f.svc.Create(ctx, f.brand, validCampaignInput())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Activate(ctx, f.brand, c.ID); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("Activate err = %v, want ErrInsufficientFunds", err)
	}
	if got, _ := f.store.GetByID(ctx, c.ID); got.Status != models.CampaignStatusDraft {
		t.Errorf("status = %s, want draft", got.Status)
	}
	if !f.balance(t).Equal(decimal.NewFromInt(5000)) {
		t.Errorf("balance = %s, want 5000", f.balance(t))
	}
}

func TestCampaignLifecycle(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()
	f.fund(t, 15000)

	c, err := f.svc.Create(ctx, f.brand, validCampaignInput())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Activate(ctx, f.brand, c.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !f.balance(t).Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("balance after funding = %s, want 5000", f.balance(t))
	}

	budget := decimal.NewFromInt(1)
	if _, err := f.svc.Update(ctx, f.brand, c.ID, CampaignUpdate{Budget: &budget}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("budget update on active campaign err = %v, want ErrInvalidTransition", err)
	}

	if _, err := f.svc.Pause(ctx, f.brand, c.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !f.balance(t).Equal(decimal.NewFromInt(5000)) {
		t.Errorf("pause moved money: balance = %s", f.balance(t))
	}

	influencer := uuid.New()
	f.store.rows[c.ID].Spent = decimal.NewFromInt(2000)
	f.store.rows[c.ID].Allocated = decimal.NewFromInt(4000)
	f.store.jobs = []models.Job{
		{ID: uuid.New(), CampaignID: c.ID, InfluencerID: influencer, Status: models.JobStatusVerified},
		{ID: uuid.New(), CampaignID: c.ID, InfluencerID: influencer, Status: models.JobStatusAccepted},
	}

	closed, err := f.svc.Complete(ctx, f.brand, c.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if closed.Status != models.CampaignStatusCompleted {
		t.Errorf("status = %s, want completed", closed.Status)
	}
	if !f.balance(t).Equal(decimal.NewFromInt(13000)) {
		t.Errorf("balance after close = %s, want 13000", f.balance(t))
	}
	if len(f.recorder.entries) != 2 {
		t.Errorf("recorded entries = %d, want 2", len(f.recorder.entries))
	}
	if n := f.notifier.count(models.NotifyCampaignStatus); n != 2 {
		t.Errorf("status notifications = %d, want 2 (job + refund)", n)
	}

	if _, err := f.svc.Cancel(ctx, f.brand, c.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("Cancel completed campaign err = %v, want ErrInvalidTransition", err)
	}
}

func TestCampaignActivateRequiresVerifiedBrand(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()
	f.fund(t, 20000)
	c, err := f.svc.Create(ctx, f.brand, validCampaignInput())
	if err != nil {
		t.Fatal(err)
	}
	f.brands[f.brand.UserID].VerificationStatus = models.BrandStatusPaused
	if _, err := f.svc.Activate(ctx, f.brand, c.ID); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Activate by paused brand err = %v, want ErrForbidden", err)
	}
}

func TestCampaignVisibility(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()
	c, err := f.svc.Create(ctx, f.brand, validCampaignInput())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		actor Actor
		ok    bool
	}{
		{"owner", f.brand, true},
		{"admin", Actor{UserID: uuid.New(), Role: models.RoleAdmin}, true},
		{"other brand", Actor{UserID: uuid.New(), Role: models.RoleBrand}, false},
		{"influencer on draft", Actor{UserID: uuid.New(), Role: models.RoleInfluencer}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Get(ctx, tt.actor, c.ID)
			if (err == nil) != tt.ok {
				t.Errorf("Get err = %v, want ok=%v", err, tt.ok)
			}
		})
	}

	f.store.rows[c.ID].Status = models.CampaignStatusActive
	if _, err := f.svc.Get(ctx, Actor{UserID: uuid.New(), Role: models.RoleInfluencer}, c.ID); err != nil {
		t.Errorf("influencer Get on active campaign err = %v, want nil", err)
	}

	other := Actor{UserID: uuid.New(), Role: models.RoleBrand}
	if _, err := f.svc.Cancel(ctx, other, c.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Cancel by other brand err = %v, want ErrNotFound", err)
	}
}

func TestPauseAllForBrand(t *testing.T) {
	f := newCampaignFixture(t)
	ctx := context.Background()
	f.fund(t, 30000)
	for i := 0; i < 2; i++ {
		c, err := f.svc.Create(ctx, f.brand, validCampaignInput())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.svc.Activate(ctx, f.brand, c.ID); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.Create(ctx, f.brand, validCampaignInput()); err != nil {
		t.Fatal(err)
	}

	n, err := f.svc.PauseAllForBrand(ctx, Actor{Role: models.RoleAdmin}, f.brand.UserID)
	if err != nil || n != 2 {
		t.Errorf("PauseAllForBrand = %d, %v, want 2", n, err)
	}
}

func TestCampaignCreateAcceptsTrailingZeros(t *testing.T) {
	f := newCampaignFixture(t)
	in := validCampaignInput()
	in.Budget = decimal.RequireFromString("1.500")
	in.PackageVideos = 1
	if _, err := f.svc.Create(context.Background(), f.brand, in); err != nil {
		t.Errorf("Create(budget 1.500) err = %v, want nil", err)
	}
}

func TestCampaignCloseBlockedWhileAwaitingReview(t *testing.T) {
	for _, status := range []string{models.JobStatusSubmitted, models.JobStatusFlagged} {
		t.Run(status, func(t *testing.T) {
			f := newCampaignFixture(t)
			ctx := context.Background()
			f.fund(t, 10000)
			c, err := f.svc.Create(ctx, f.brand, validCampaignInput())
			if err != nil {
				t.Fatal(err)
			}
			if _, err := f.svc.Activate(ctx, f.brand, c.ID); err != nil {
				t.Fatal(err)
			}
			f.store.rows[c.ID].Allocated = decimal.NewFromInt(2000)
			f.store.jobs = []models.Job{{ID: uuid.New(), CampaignID: c.ID, InfluencerID: uuid.New(), Status: status}}

			if _, err := f.svc.Complete(ctx, f.brand, c.ID); !errors.Is(err, models.ErrAwaitingReview) {
				t.Errorf("Complete err = %v, want ErrAwaitingReview", err)
			}
			if _, err := f.svc.Cancel(ctx, Actor{UserID: uuid.New(), Role: models.RoleAdmin}, c.ID); !errors.Is(err, models.ErrAwaitingReview) {
				t.Errorf("admin Cancel err = %v, want ErrAwaitingReview", err)
			}
			if got := f.store.jobs[0].Status; got != status {
				t.Errorf("job status = %s, want %s", got, status)
			}
			if got := f.store.rows[c.ID].Status; got != models.CampaignStatusActive {
				t.Errorf("campaign status = %s, want active", got)
			}
			if !f.balance(t).IsZero() {
				t.Errorf("balance = %s, want 0 (no refund)", f.balance(t))
			}
		})
	}
}

func TestPauseAllForBrandPastOnePage(t *testing.T) {
	f := newCampaignFixture(t)
	const total = pauseBatch + 50
	for i := 0; i < total; i++ {
		id := uuid.New()
		f.store.rows[id] = &models.Campaign{
			ID: id, BrandID: f.brand.UserID, Name: "Launch", Currency: "NGN",
			Status: models.CampaignStatusActive, PackageVideos: 5, Budget: decimal.NewFromInt(10000),
		}
	}

	n, err := f.svc.PauseAllForBrand(context.Background(), Actor{Role: models.RoleAdmin}, f.brand.UserID)
	if err != nil || n != total {
		t.Fatalf("PauseAllForBrand = %d, %v, want %d", n, err, total)
	}
	for id, c := range f.store.rows {
		if c.Status != models.CampaignStatusPaused {
			t.Errorf("campaign %s status = %s, want paused", id, c.Status)
		}
	}
}
