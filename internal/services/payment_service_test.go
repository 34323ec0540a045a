package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/events"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/paystack"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakePayments settles against a fakeLedger the way PaymentRepo does.
type fakePayments struct {
	ledger   *fakeLedger
	payments map[string]*models.PaymentTransaction
	methods  map[uuid.UUID]*models.PayoutMethod
}

func newFakePayments(ledger *fakeLedger) *fakePayments {
	return &fakePayments{
		ledger:   ledger,
		payments: map[string]*models.PaymentTransaction{},
		methods:  map[uuid.UUID]*models.PayoutMethod{},
	}
}

func (f *fakePayments) Create(_ context.Context, p *models.PaymentTransaction) error {
	p.ID = uuid.New()
	p.Status = models.PaymentStatusPending
	p.CreatedAt = time.Now()
	f.payments[p.Reference] = p
	return nil
}

func (f *fakePayments) GetByReference(_ context.Context, ref string) (*models.PaymentTransaction, error) {
	p, ok := f.payments[ref]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) pending(ref, paymentType string) (*models.PaymentTransaction, error) {
	p, ok := f.payments[ref]
	if !ok {
		return nil, models.ErrNotFound
	}
	if (paymentType != "" && p.Type != paymentType) || !p.IsPending() {
		return nil, models.ErrPaymentNotPending
	}
	return p, nil
}

func (f *fakePayments) CompleteTopUp(ctx context.Context, ref string, _ models.GatewayResult) (*repositories.Settlement, error) {
	p, err := f.pending(ref, models.PaymentTypeTopUp)
	if err != nil {
		return &repositories.Settlement{}, err
	}
	entry, err := f.ledger.Post(ctx, models.LedgerEntry{
		UserID: p.UserID, Currency: p.Currency, Direction: models.DirectionCredit,
		Kind: models.TxKindDeposit, Amount: p.Amount, IdempotencyKey: "paystack:" + ref,
	})
	if err != nil {
		return &repositories.Settlement{}, err
	}
	p.Status = models.PaymentStatusSuccess
	return &repositories.Settlement{Payment: p, Entry: entry}, nil
}

func (f *fakePayments) MarkFailed(_ context.Context, ref, reason string) (*models.PaymentTransaction, error) {
	p, err := f.pending(ref, "")
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatusFailed
	p.FailureReason = &reason
	return p, nil
}

func (f *fakePayments) CreatePayout(ctx context.Context, p *models.PaymentTransaction) (*repositories.Settlement, error) {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	entry, err := f.ledger.Post(ctx, models.LedgerEntry{
		UserID: p.UserID, Currency: p.Currency, Direction: models.DirectionDebit,
		Kind: models.TxKindWithdrawal, Amount: p.Amount, IdempotencyKey: "withdrawal:" + p.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	f.payments[p.Reference] = p
	return &repositories.Settlement{Payment: p, Entry: entry}, nil
}

func (f *fakePayments) SetTransferCode(_ context.Context, ref, code string) error {
	f.payments[ref].GatewayTransferCode = &code
	return nil
}

func (f *fakePayments) SettlePayout(_ context.Context, ref string) (*models.PaymentTransaction, error) {
	p, err := f.pending(ref, models.PaymentTypePayout)
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatusSuccess
	return p, nil
}

func (f *fakePayments) FailPayout(ctx context.Context, ref, reason string) (*repositories.Settlement, error) {
	return f.refund(ctx, ref, reason, models.PaymentStatusFailed, models.PaymentStatusPending)
}

func (f *fakePayments) ReversePayout(ctx context.Context, ref, reason string) (*repositories.Settlement, error) {
	return f.refund(ctx, ref, reason, models.PaymentStatusReversed, models.PaymentStatusPending, models.PaymentStatusSuccess)
}

func (f *fakePayments) refund(ctx context.Context, ref, reason, to string, from ...string) (*repositories.Settlement, error) {
	p, ok := f.payments[ref]
	if !ok {
		return &repositories.Settlement{}, models.ErrNotFound
	}
	if p.Type != models.PaymentTypePayout || !slices.Contains(from, p.Status) {
		return &repositories.Settlement{}, models.ErrPaymentNotPending
	}
	entry, err := f.ledger.Post(ctx, models.LedgerEntry{
		UserID: p.UserID, Currency: p.Currency, Direction: models.DirectionCredit,
		Kind: models.TxKindRefund, Amount: p.Amount, IdempotencyKey: "payout-refund:" + ref,
	})
	if err != nil {
		return &repositories.Settlement{}, err
	}
	p.Status = to
	p.FailureReason = &reason
	return &repositories.Settlement{Payment: p, Entry: entry}, nil
}

func (f *fakePayments) ListPendingOlderThan(_ context.Context, paymentType string, cutoff time.Time, _ int) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	for _, p := range f.payments {
		if p.Type == paymentType && p.IsPending() && p.CreatedAt.Before(cutoff) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePayments) List(_ context.Context, pf repositories.PaymentFilter) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	for _, p := range f.payments {
		if pf.UserID == nil || *pf.UserID == p.UserID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePayments) AddPayoutMethod(_ context.Context, m *models.PayoutMethod) error {
	m.ID = uuid.New()
	m.IsDefault = true
	for _, other := range f.methods {
		if other.InfluencerID == m.InfluencerID && other.IsActive {
			m.IsDefault = false
		}
	}
	f.methods[m.ID] = m
	return nil
}

func (f *fakePayments) ListPayoutMethods(_ context.Context, influencerID uuid.UUID) ([]models.PayoutMethod, error) {
	var out []models.PayoutMethod
	for _, m := range f.methods {
		if m.InfluencerID == influencerID && m.IsActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakePayments) DefaultPayoutMethod(_ context.Context, influencerID uuid.UUID) (*models.PayoutMethod, error) {
	for _, m := range f.methods {
		if m.InfluencerID == influencerID && m.IsActive && m.IsDefault {
			return m, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakePayments) SetDefaultPayoutMethod(_ context.Context, influencerID, methodID uuid.UUID) error {
	m, ok := f.methods[methodID]
	if !ok || m.InfluencerID != influencerID {
		return models.ErrNotFound
	}
	for _, other := range f.methods {
		if other.InfluencerID == influencerID {
			other.IsDefault = other.ID == methodID
		}
	}
	return nil
}

func (f *fakePayments) DeactivatePayoutMethod(_ context.Context, influencerID, methodID uuid.UUID) error {
	m, ok := f.methods[methodID]
	if !ok || m.InfluencerID != influencerID {
		return models.ErrNotFound
	}
	m.IsActive = false
	m.IsDefault = false
	return nil
}

type fakeGateway struct {
	initErr     error
	transferErr error
	verified    map[string]models.GatewayResult
	transfers   []paystack.TransferRequest
	// outcomes of transfer verification, by reference; missing ones are 404
	transferStates map[string]models.GatewayResult
	verifyErr      error
}

func (g *fakeGateway) InitializeTransaction(_ context.Context, r paystack.InitializeRequest) (*paystack.InitializeResult, error) {
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paystack.InitializeResult{AuthorizationURL: "https://checkout.paystack.com/" + r.Reference, AccessCode: "ac_1", Reference: r.Reference}, nil
}

func (g *fakeGateway) VerifyTransaction(_ context.Context, ref string) (*models.GatewayResult, error) {
	res, ok := g.verified[ref]
	if !ok {
		return nil, models.ErrGatewayUnavailable
	}
	return &res, nil
}

func (g *fakeGateway) VerifyTransfer(_ context.Context, ref string) (*models.GatewayResult, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	res, ok := g.transferStates[ref]
	if !ok {
		return nil, &paystack.APIError{StatusCode: 404, Message: "Transfer not found"}
	}
	return &res, nil
}

func (g *fakeGateway) CreateTransferRecipient(context.Context, paystack.RecipientRequest) (string, error) {
	return "RCP_test", nil
}

func (g *fakeGateway) InitiateTransfer(_ context.Context, r paystack.TransferRequest) (*paystack.TransferResult, error) {
	if g.transferErr != nil {
		return nil, g.transferErr
	}
	g.transfers = append(g.transfers, r)
	return &paystack.TransferResult{TransferCode: "TRF_1", Reference: r.Reference, Status: "pending"}, nil
}

// fakeGuard claims each distinct body once.
type fakeGuard struct {
	seen     map[string]bool
	released int
}

func (g *fakeGuard) Claim(_ context.Context, body []byte) (string, bool, error) {
	k := string(body)
	if g.seen[k] {
		return k, false, nil
	}
	g.seen[k] = true
	return k, true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	delete(g.seen, key)
	g.released++
	return nil
}

const testWebhookSecret = "sk_test_webhook"

type paymentFixture struct {
	svc        *PaymentService
	store      *fakePayments
	ledger     *fakeLedger
	gateway    *fakeGateway
	guard      *fakeGuard
	notifier   *fakeNotifier
	publisher  *fakePublisher
	brand      Actor
	influencer Actor
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	accounts := newFakeAccounts()
	brandID, infID := uuid.New(), uuid.New()
	accounts.users[brandID] = &models.User{ID: brandID, Email: "brand@example.com", Role: models.RoleBrand, IsActive: true}
	accounts.users[infID] = &models.User{ID: infID, Email: "inf@example.com", Role: models.RoleInfluencer, IsActive: true}
	accounts.brands[brandID] = &models.Brand{UserID: brandID, Currency: "NGN", VerificationStatus: models.BrandStatusVerified}
	accounts.influencers[infID] = &models.Influencer{UserID: infID, Currency: "GHS", VerificationStatus: models.InfluencerStatusApproved}

	ledger := newFakeLedger()
	f := &paymentFixture{
		store:      newFakePayments(ledger),
		ledger:     ledger,
		gateway:    &fakeGateway{verified: map[string]models.GatewayResult{}},
		guard:      &fakeGuard{seen: map[string]bool{}},
		notifier:   &fakeNotifier{},
		publisher:  &fakePublisher{},
		brand:      Actor{UserID: brandID, Role: models.RoleBrand},
		influencer: Actor{UserID: infID, Role: models.RoleInfluencer},
	}
	f.svc = NewPaymentService(f.store, f.gateway, f.guard, accounts, accounts, ngnGhsRates(),
		&fakeRecorder{}, f.notifier, f.publisher, nil, nil,
		PaymentConfig{
			WebhookSecret: testWebhookSecret,
			CallbackURL:   "http://localhost/callback",
			MinWithdrawal: decimal.NewFromInt(1000),
			PendingAge:    15 * time.Minute,
		},
		zap.NewNop())
	return f
}

func (f *paymentFixture) balance(userID uuid.UUID, currency string) decimal.Decimal {
	w, ok := f.ledger.wallets[userID.String()+currency]
	if !ok {
		return decimal.Zero
	}
	return w.Balance
}

func (f *paymentFixture) deliver(t *testing.T, body string) (string, error) {
	t.Helper()
	return f.svc.HandleWebhook(context.Background(), []byte(body), paystack.Sign(testWebhookSecret, []byte(body)))
}

func chargeBody(event, ref, status string, amountMinor int, currency string) string {
	return `{"event":"` + event + `","data":{"reference":"` + ref + `","status":"` + status +
		`","amount":` + strconv.Itoa(amountMinor) + `,"currency":"` + currency + `"}}`
}

func transferBody(event, ref string, amountMinor int, currency string) string {
	return `{"event":"` + event + `","data":{"reference":"` + ref + `","status":"` + strings.TrimPrefix(event, "transfer.") +
		`","amount":` + strconv.Itoa(amountMinor) + `,"currency":"` + currency + `"}}`
}

func TestTopUpCreditsOnWebhook(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	res, err := f.svc.TopUp(ctx, f.brand, decimal.NewFromInt(5000), "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Payment.Currency != "NGN" || res.AuthorizationURL == "" {
		t.Fatalf("unexpected top-up result %+v", res)
	}
	if !f.balance(f.brand.UserID, "NGN").IsZero() {
		t.Fatal("wallet credited before confirmation")
	}

	body := chargeBody(paystack.EventChargeSuccess, res.Payment.Reference, "success", 500000, "NGN")
	outcome, err := f.deliver(t, body)
	if err != nil || outcome != OutcomeCredited {
		t.Fatalf("HandleWebhook = %q, %v, want credited", outcome, err)
	}
	if got := f.balance(f.brand.UserID, "NGN"); !got.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("balance = %s, want 5000", got)
	}
	if f.notifier.count(models.NotifyPaymentReceived) != 1 {
		t.Error("expected payment_received notification")
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != events.EventPaymentReceived {
		t.Errorf("published %+v", f.publisher.events)
	}

	outcome, err = f.deliver(t, body)
	if err != nil || outcome != OutcomeDuplicate {
		t.Errorf("replayed webhook = %q, %v, want duplicate", outcome, err)
	}
	if got := f.balance(f.brand.UserID, "NGN"); !got.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("balance after replay = %s, want 5000", got)
	}
}

func TestWebhookReplayWithoutGuardIsIgnored(t *testing.T) {
	f := newPaymentFixture(t)
	f.svc.guard = nil
	res, err := f.svc.TopUp(context.Background(), f.brand, decimal.NewFromInt(100), "NGN")
	if err != nil {
		t.Fatal(err)
	}
	body := chargeBody(paystack.EventChargeSuccess, res.Payment.Reference, "success", 10000, "NGN")
	if _, err := f.deliver(t, body); err != nil {
		t.Fatal(err)
	}
	outcome, err := f.deliver(t, body)
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("second delivery = %q, %v, want ignored", outcome, err)
	}
	if got := f.balance(f.brand.UserID, "NGN"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s, want 100", got)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newPaymentFixture(t)
	body := chargeBody(paystack.EventChargeSuccess, "topup_x", "success", 100, "NGN")
	_, err := f.svc.HandleWebhook(context.Background(), []byte(body), "deadbeef")
	if !errors.Is(err, models.ErrInvalidSignature) {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
	if len(f.guard.seen) != 0 {
		t.Error("unsigned body must not claim a replay key")
	}
}

func TestWebhookAmountMismatch(t *testing.T) {
	f := newPaymentFixture(t)
	res, err := f.svc.TopUp(context.Background(), f.brand, decimal.NewFromInt(5000), "NGN")
	if err != nil {
		t.Fatal(err)
	}
	outcome, err := f.deliver(t, chargeBody(paystack.EventChargeSuccess, res.Payment.Reference, "success", 100, "NGN"))
	if err != nil || outcome != OutcomeMismatch {
		t.Fatalf("HandleWebhook = %q, %v, want mismatch", outcome, err)
	}
	if !f.balance(f.brand.UserID, "NGN").IsZero() {
		t.Error("mismatched charge must not credit")
	}
	if p := f.store.payments[res.Payment.Reference]; p.Status != models.PaymentStatusFailed {
		t.Errorf("status = %s, want failed", p.Status)
	}
}

func TestWebhookUnknownReferenceAcknowledged(t *testing.T) {
	f := newPaymentFixture(t)
	outcome, err := f.deliver(t, chargeBody(paystack.EventChargeSuccess, "topup_missing", "success", 100, "NGN"))
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("HandleWebhook = %q, %v, want ignored", outcome, err)
	}
	outcome, err = f.deliver(t, `{"event":"subscription.create","data":{"id":1}}`)
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("unknown event = %q, %v, want ignored", outcome, err)
	}
}

func TestTopUpGatewayFailure(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.initErr = errors.New("connection refused")
	_, err := f.svc.TopUp(context.Background(), f.brand, decimal.NewFromInt(5000), "")
	if !errors.Is(err, models.ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
	for _, p := range f.store.payments {
		if p.Status != models.PaymentStatusFailed {
			t.Errorf("payment %s left %s", p.Reference, p.Status)
		}
	}
}

func TestTopUpValidation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	tests := []struct {
		name     string
		actor    Actor
		amount   string
		currency string
		want     error
	}{
		{"influencer", f.influencer, "100", "", models.ErrForbidden},
		{"zero", f.brand, "0", "", models.ErrInvalidAmount},
		{"unsupported", f.brand, "100", "USD", models.ErrCurrencyUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.TopUp(ctx, tt.actor, decimal.RequireFromString(tt.amount), tt.currency)
			if !errors.Is(err, tt.want) {
				t.Errorf("TopUp() err = %v, want %v", err, tt.want)
			}
		})
	}
	_, err := f.svc.TopUp(ctx, f.brand, decimal.RequireFromString("10.005"), "")
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("TopUp(10.005) err = %v, want validation error", err)
	}
}

func (f *paymentFixture) fundInfluencer(t *testing.T, amount int64) {
	t.Helper()
	_, err := f.ledger.Post(context.Background(), models.LedgerEntry{
		UserID: f.influencer.UserID, Currency: "GHS", Direction: models.DirectionCredit,
		Kind: models.TxKindCampaignPayment, Amount: decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *paymentFixture) addMethod(t *testing.T) {
	t.Helper()
	_, err := f.svc.AddPayoutMethod(context.Background(), f.influencer, PayoutMethodInput{
		MethodType:    models.PayoutMethodMobileMoney,
		BankCode:      "MTN",
		AccountNumber: "0241234567",
		AccountName:   "Ama Mensah",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestWithdrawSettles(t *testing.T) {
	f := newPaymentFixture(t)
	f.fundInfluencer(t, 50)
	f.addMethod(t)
	ctx := context.Background()

	p, err := f.svc.Withdraw(ctx, f.influencer, decimal.NewFromInt(30))
	if err != nil {
		t.Fatal(err)
	}
	if got := f.balance(f.influencer.UserID, "GHS"); !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("balance after withdraw = %s, want 20", got)
	}
	if len(f.gateway.transfers) != 1 || f.gateway.transfers[0].AmountMinor != 3000 {
		t.Errorf("transfers = %+v", f.gateway.transfers)
	}

	outcome, err := f.deliver(t, transferBody(paystack.EventTransferSuccess, p.Reference, 3000, "GHS"))
	if err != nil || outcome != OutcomeSettled {
		t.Fatalf("transfer.success = %q, %v", outcome, err)
	}
	if f.notifier.count(models.NotifyWithdrawalProcessed) != 1 {
		t.Error("expected withdrawal_processed notification")
	}
}

func TestWithdrawTransferFailedRefunds(t *testing.T) {
	f := newPaymentFixture(t)
	f.fundInfluencer(t, 50)
	f.addMethod(t)

	p, err := f.svc.Withdraw(context.Background(), f.influencer, decimal.NewFromInt(50))
	if err != nil {
		t.Fatal(err)
	}
	body := `{"event":"transfer.failed","data":{"reference":"` + p.Reference + `","status":"failed","reason":"Account not found"}}`
	outcome, err := f.deliver(t, body)
	if err != nil || outcome != OutcomeRefunded {
		t.Fatalf("transfer.failed = %q, %v", outcome, err)
	}
	if got := f.balance(f.influencer.UserID, "GHS"); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance after refund = %s, want 50", got)
	}

	// A reversal after the failure must not refund twice.
	outcome, err = f.deliver(t, `{"event":"transfer.reversed","data":{"reference":"`+p.Reference+`"}}`)
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("transfer.reversed = %q, %v, want ignored", outcome, err)
	}
	if got := f.balance(f.influencer.UserID, "GHS"); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance after reversal = %s, want 50", got)
	}
}

func TestWithdrawUnknownOutcomeStaysPending(t *testing.T) {
	f := newPaymentFixture(t)
	f.fundInfluencer(t, 50)
	f.addMethod(t)
	f.gateway.transferErr = fmt.Errorf("paystack transfer: timeout: %w", models.ErrGatewayUnavailable)

	p, err := f.svc.Withdraw(context.Background(), f.influencer, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("Withdraw err = %v, want nil", err)
	}
	if p.Status != models.PaymentStatusPending {
		t.Errorf("status = %s, want pending", p.Status)
	}
	if got := f.balance(f.influencer.UserID, "GHS"); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("balance = %s, want 10", got)
	}
	if f.notifier.count(models.NotifyWithdrawalFailed) != 0 {
		t.Error("unconfirmed transfer must not be reported as failed")
	}

	// The transfer went through after all.
	outcome, err := f.deliver(t, transferBody(paystack.EventTransferSuccess, p.Reference, 4000, "GHS"))
	if err != nil || outcome != OutcomeSettled {
		t.Fatalf("transfer.success = %q, %v, want settled", outcome, err)
	}
	if got := f.balance(f.influencer.UserID, "GHS"); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("balance after settle = %s, want 10", got)
	}
}

func TestWithdrawRejectedRefunds(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad request", 400},
		{"unauthorized", 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			f.fundInfluencer(t, 50)
			f.addMethod(t)
			f.gateway.transferErr = &paystack.APIError{StatusCode: tt.status, Message: "Recipient is invalid"}

			_, err := f.svc.Withdraw(context.Background(), f.influencer, decimal.NewFromInt(40))
			if !errors.Is(err, models.ErrGatewayUnavailable) {
				t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
			}
			if got := f.balance(f.influencer.UserID, "GHS"); !got.Equal(decimal.NewFromInt(50)) {
				t.Errorf("balance = %s, want 50", got)
			}
			for ref, p := range f.store.payments {
				if p.Status != models.PaymentStatusFailed {
					t.Errorf("payout %s status = %s, want failed", ref, p.Status)
				}
			}
			if f.notifier.count(models.NotifyWithdrawalFailed) != 1 {
				t.Error("expected withdrawal_failed notification")
			}
		})
	}
}

func TestTransferReversedAfterSuccessRefunds(t *testing.T) {
	f := newPaymentFixture(t)
	f.fundInfluencer(t, 50)
	f.addMethod(t)

	p, err := f.svc.Withdraw(context.Background(), f.influencer, decimal.NewFromInt(30))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.deliver(t, transferBody(paystack.EventTransferSuccess, p.Reference, 3000, "GHS")); err != nil {
		t.Fatal(err)
	}

	outcome, err := f.deliver(t, transferBody(paystack.EventTransferReversed, p.Reference, 3000, "GHS"))
	if err != nil || outcome != OutcomeRefunded {
		t.Fatalf("transfer.reversed = %q, %v, want refunded", outcome, err)
	}
	if got := f.balance(f.influencer.UserID, "GHS"); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance = %s, want 50", got)
	}
	if got := f.store.payments[p.Reference].Status; got != models.PaymentStatusReversed {
		t.Errorf("status = %s, want reversed", got)
	}
	if _, ok := f.ledger.keys["payout-refund:"+p.Reference]; !ok {
		t.Error("refund not keyed by payout reference")
	}
}

func TestTransferSuccessMismatch(t *testing.T) {
	tests := []struct {
		name     string
		amount   int
		currency string
	}{
		{"short amount", 2000, "GHS"},
		{"other currency", 3000, "NGN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			f.fundInfluencer(t, 50)
			f.addMethod(t)
			p, err := f.svc.Withdraw(context.Background(), f.influencer, decimal.NewFromInt(30))
			if err != nil {
				t.Fatal(err)
			}

			outcome, err := f.deliver(t, transferBody(paystack.EventTransferSuccess, p.Reference, tt.amount, tt.currency))
			if err != nil || outcome != OutcomeMismatch {
				t.Fatalf("transfer.success = %q, %v, want mismatch", outcome, err)
			}
			if got := f.store.payments[p.Reference].Status; got != models.PaymentStatusPending {
				t.Errorf("status = %s, want pending", got)
			}
			if f.notifier.count(models.NotifyWithdrawalProcessed) != 0 {
				t.Error("mismatched transfer must not be reported as processed")
			}
		})
	}
}

func TestWithdrawRules(t *testing.T) {
	f := newPaymentFixture(t)
	f.fundInfluencer(t, 50)
	ctx := context.Background()
	var ve *models.ValidationError

	if _, err := f.svc.Withdraw(ctx, f.influencer, decimal.NewFromInt(5)); !errors.As(err, &ve) {
		t.Errorf("below minimum: err = %v, want validation error", err)
	}
	if _, err := f.svc.Withdraw(ctx, f.influencer, decimal.NewFromInt(20)); !errors.As(err, &ve) {
		t.Errorf("no payout method: err = %v, want validation error", err)
	}
	f.addMethod(t)
	if _, err := f.svc.Withdraw(ctx, f.influencer, decimal.NewFromInt(500)); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Errorf("overdraw: err = %v, want ErrInsufficientFunds", err)
	}
	if _, err := f.svc.Withdraw(ctx, f.brand, decimal.NewFromInt(20)); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("brand: err = %v, want ErrForbidden", err)
	}
}

func TestMinimumWithdrawalConverts(t *testing.T) {
	f := newPaymentFixture(t)
	got, err := f.svc.MinimumWithdrawal(context.Background(), "GHS")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("MinimumWithdrawal(GHS) = %s, want 10", got)
	}
}

func TestRecheckPending(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	res, err := f.svc.TopUp(ctx, f.brand, decimal.NewFromInt(200), "")
	if err != nil {
		t.Fatal(err)
	}
	f.store.payments[res.Payment.Reference].CreatedAt = time.Now().Add(-time.Hour)
	f.gateway.verified[res.Payment.Reference] = models.GatewayResult{
		Reference: res.Payment.Reference, Status: "success", AmountMinor: 20000, Currency: "NGN",
	}

	n, err := f.svc.RecheckPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RecheckPending = %d, %v, want 1", n, err)
	}
	if got := f.balance(f.brand.UserID, "NGN"); !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("balance = %s, want 200", got)
	}
}

func TestRecheckPendingPayouts(t *testing.T) {
	f := newPaymentFixture(t)
	f.fundInfluencer(t, 100)
	f.addMethod(t)
	ctx := context.Background()

	sent, err := f.svc.Withdraw(ctx, f.influencer, decimal.NewFromInt(30))
	if err != nil {
		t.Fatal(err)
	}
	lost, err := f.svc.Withdraw(ctx, f.influencer, decimal.NewFromInt(40))
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := f.svc.Withdraw(ctx, f.influencer, decimal.NewFromInt(10))
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []string{sent.Reference, lost.Reference} {
		f.store.payments[ref].CreatedAt = time.Now().Add(-time.Hour)
	}
	f.gateway.transferStates = map[string]models.GatewayResult{
		sent.Reference: {Reference: sent.Reference, Status: "success", AmountMinor: 3000, Currency: "GHS"},
	}

	n, err := f.svc.RecheckPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("RecheckPending = %d, %v, want 2", n, err)
	}
	want := map[string]string{
		sent.Reference:  models.PaymentStatusSuccess,
		lost.Reference:  models.PaymentStatusFailed,
		fresh.Reference: models.PaymentStatusPending,
	}
	for ref, status := range want {
		if got := f.store.payments[ref].Status; got != status {
			t.Errorf("payout %s status = %s, want %s", ref, got, status)
		}
	}
	if got := f.balance(f.influencer.UserID, "GHS"); !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("balance = %s, want 60", got)
	}
}

func TestRecheckPendingPayoutGatewayDown(t *testing.T) {
	f := newPaymentFixture(t)
	f.fundInfluencer(t, 50)
	f.addMethod(t)
	ctx := context.Background()
	p, err := f.svc.Withdraw(ctx, f.influencer, decimal.NewFromInt(30))
	if err != nil {
		t.Fatal(err)
	}
	f.store.payments[p.Reference].CreatedAt = time.Now().Add(-time.Hour)
	f.gateway.verifyErr = &paystack.APIError{StatusCode: 503, Message: "unavailable"}

	n, err := f.svc.RecheckPending(ctx)
	if err != nil || n != 0 {
		t.Fatalf("RecheckPending = %d, %v, want 0", n, err)
	}
	if got := f.store.payments[p.Reference].Status; got != models.PaymentStatusPending {
		t.Errorf("status = %s, want pending", got)
	}
}

func TestWebhookRejectionsAreLogged(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature func(body string) string
		message   string
	}{
		{"bad signature", chargeBody(paystack.EventChargeSuccess, "topup_x", "success", 100, "NGN"),
			func(string) string { return "deadbeef" }, "webhook signature rejected"},
		{"missing signature", chargeBody(paystack.EventChargeSuccess, "topup_x", "success", 100, "NGN"),
			func(string) string { return "" }, "webhook signature rejected"},
		{"not json", `{"event":`,
			func(b string) string { return paystack.Sign(testWebhookSecret, []byte(b)) }, "malformed webhook"},
		{"transfer without reference", `{"event":"transfer.success","data":{"amount":100}}`,
			func(b string) string { return paystack.Sign(testWebhookSecret, []byte(b)) }, "malformed transfer webhook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			core, logs := observer.New(zap.WarnLevel)
			f.svc.log = zap.New(core)

			if _, err := f.svc.HandleWebhook(context.Background(), []byte(tt.body), tt.signature(tt.body)); err == nil {
				t.Fatal("expected error")
			}
			entries := logs.FilterMessage(tt.message).All()
			if len(entries) != 1 {
				t.Fatalf("%q logged %d times, want 1", tt.message, len(entries))
			}
			if _, ok := entries[0].ContextMap()["body_size"]; !ok {
				t.Errorf("%q logged without body_size", tt.message)
			}
		})
	}
}
