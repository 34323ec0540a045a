package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/events"
	"github.com/pushit/marketplace/internal/metrics"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/paystack"
	"github.com/pushit/marketplace/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentStore interface {
	Create(ctx context.Context, p *models.PaymentTransaction) error
	GetByReference(ctx context.Context, ref string) (*models.PaymentTransaction, error)
	CompleteTopUp(ctx context.Context, ref string, res models.GatewayResult) (*repositories.Settlement, error)
	MarkFailed(ctx context.Context, ref, reason string) (*models.PaymentTransaction, error)
	CreatePayout(ctx context.Context, p *models.PaymentTransaction) (*repositories.Settlement, error)
	SetTransferCode(ctx context.Context, ref, code string) error
	SettlePayout(ctx context.Context, ref string) (*models.PaymentTransaction, error)
	FailPayout(ctx context.Context, ref, reason string) (*repositories.Settlement, error)
	ReversePayout(ctx context.Context, ref, reason string) (*repositories.Settlement, error)
	ListPendingOlderThan(ctx context.Context, paymentType string, cutoff time.Time, limit int) ([]models.PaymentTransaction, error)
	List(ctx context.Context, f repositories.PaymentFilter) ([]models.PaymentTransaction, error)

	AddPayoutMethod(ctx context.Context, m *models.PayoutMethod) error
	ListPayoutMethods(ctx context.Context, influencerID uuid.UUID) ([]models.PayoutMethod, error)
	DefaultPayoutMethod(ctx context.Context, influencerID uuid.UUID) (*models.PayoutMethod, error)
	SetDefaultPayoutMethod(ctx context.Context, influencerID, methodID uuid.UUID) error
	DeactivatePayoutMethod(ctx context.Context, influencerID, methodID uuid.UUID) error
}

// Gateway is the subset of the Paystack API the payment flows use.
type Gateway interface {
	InitializeTransaction(ctx context.Context, r paystack.InitializeRequest) (*paystack.InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*models.GatewayResult, error)
	CreateTransferRecipient(ctx context.Context, r paystack.RecipientRequest) (string, error)
	InitiateTransfer(ctx context.Context, r paystack.TransferRequest) (*paystack.TransferResult, error)
	VerifyTransfer(ctx context.Context, reference string) (*models.GatewayResult, error)
}

type ReplayGuard interface {
	Claim(ctx context.Context, body []byte) (key string, first bool, err error)
	Release(ctx context.Context, key string) error
}

type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ProfileReader interface {
	GetBrand(ctx context.Context, userID uuid.UUID) (*models.Brand, error)
	GetInfluencer(ctx context.Context, userID uuid.UUID) (*models.Influencer, error)
}

type PaymentConfig struct {
	WebhookSecret string
	CallbackURL   string
	MinWithdrawal decimal.Decimal // in the default currency
	PendingAge    time.Duration
}

// Webhook outcomes, also used as metric labels.
const (
	OutcomeCredited  = "credited"
	OutcomeFailed    = "failed"
	OutcomeMismatch  = "mismatch"
	OutcomePending   = "pending"
	OutcomeSettled   = "settled"
	OutcomeRefunded  = "refunded"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
)

type TopUpResult struct {
	Payment          *models.PaymentTransaction `json:"payment"`
	AuthorizationURL string                     `json:"authorization_url"`
	AccessCode       string                     `json:"access_code"`
}

type PayoutMethodInput struct {
	MethodType    string
	BankCode      string
	AccountNumber string
	AccountName   string
}

var accountNumberRe = regexp.MustCompile(`^[0-9]{6,20}$`)

const recheckBatch = 100

type PaymentService struct {
	store     PaymentStore
	gateway   Gateway
	guard     ReplayGuard
	users     UserGetter
	profiles  ProfileReader
	rates     RateProvider
	ledger    LedgerRecorder
	notify    Notifier
	publisher events.Publisher
	audit     AuditLogger
	metrics   *metrics.Metrics
	cfg       PaymentConfig
	log       *zap.Logger
}

func NewPaymentService(
	store PaymentStore,
	gateway Gateway,
	guard ReplayGuard,
	users UserGetter,
	profiles ProfileReader,
	rates RateProvider,
	ledger LedgerRecorder,
	notifier Notifier,
	publisher events.Publisher,
	audit AuditLogger,
	m *metrics.Metrics,
	cfg PaymentConfig,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		store:     store,
		gateway:   gateway,
		guard:     guard,
		users:     users,
		profiles:  profiles,
		rates:     rates,
		ledger:    ledger,
		notify:    notifier,
		publisher: publisher,
		audit:     audit,
		metrics:   m,
		cfg:       cfg,
		log:       log,
	}
}

func validMoney(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return models.ErrInvalidAmount
	}
	if !models.IsWholeCents(amount) {
		return models.NewValidationError("amount has more than 2 decimal places")
	}
	return nil
}

// TopUp opens a hosted checkout that credits the brand wallet once the
// gateway confirms the charge.
func (s *PaymentService) TopUp(ctx context.Context, actor Actor, amount decimal.Decimal, currency string) (*TopUpResult, error) {
	if actor.Role != models.RoleBrand {
		return nil, models.ErrForbidden
	}
	if err := validMoney(amount); err != nil {
		return nil, err
	}
	brand, err := s.profiles.GetBrand(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = brand.Currency
	}
	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return nil, err
	}
	if !rates.Supports(currency) {
		return nil, models.ErrCurrencyUnsupported
	}
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	p := &models.PaymentTransaction{
		UserID:    actor.UserID,
		Type:      models.PaymentTypeTopUp,
		Amount:    amount,
		Currency:  currency,
		Reference: "topup_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:    models.PaymentStatusPending,
		Metadata:  map[string]any{"user_id": actor.UserID.String(), "purpose": "wallet_topup"},
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	checkout, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       user.Email,
		AmountMinor: models.ToMinorUnits(amount),
		Currency:    currency,
		Reference:   p.Reference,
		CallbackURL: s.cfg.CallbackURL,
		Metadata:    p.Metadata,
	})
	if err != nil {
		s.log.Error("initialize charge failed", zap.String("reference", p.Reference), zap.Error(err))
		if _, mErr := s.store.MarkFailed(ctx, p.Reference, "gateway unavailable"); mErr != nil {
			s.log.Error("mark payment failed", zap.String("reference", p.Reference), zap.Error(mErr))
		}
		return nil, fmt.Errorf("initialize charge: %w", models.ErrGatewayUnavailable)
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: &actor.UserID,
		ActorType:   models.ActorUser,
		Action:      "topup_initiated",
		EntityType:  "payment",
		EntityID:    &p.ID,
		Meta:        map[string]any{"reference": p.Reference, "amount": amount.String(), "currency": currency},
	})
	return &TopUpResult{Payment: p, AuthorizationURL: checkout.AuthorizationURL, AccessCode: checkout.AccessCode}, nil
}

// HandleWebhook authenticates, de-duplicates and applies one gateway
// event. A nil error means the delivery should be acknowledged.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (string, error) {
	if !paystack.VerifySignature(s.cfg.WebhookSecret, body, signature) {
		s.metrics.Webhook("unknown", "invalid_signature")
		s.log.Warn("webhook signature rejected",
			zap.Int("body_size", len(body)), zap.Bool("signature_present", signature != ""))
		return "", models.ErrInvalidSignature
	}
	ev, err := paystack.ParseWebhook(body)
	if err != nil {
		s.metrics.Webhook("unknown", "malformed")
		s.log.Warn("malformed webhook", zap.Int("body_size", len(body)), zap.Error(err))
		return "", models.NewValidationError(err.Error())
	}

	key := ""
	if s.guard != nil {
		k, first, err := s.guard.Claim(ctx, body)
		switch {
		case err != nil:
			s.log.Warn("replay guard unavailable, relying on ledger idempotency", zap.Error(err))
		case !first:
			s.metrics.Webhook(ev.Event, OutcomeDuplicate)
			s.log.Info("duplicate webhook delivery", zap.String("event", ev.Event))
			return OutcomeDuplicate, nil
		default:
			key = k
		}
	}

	outcome, err := s.dispatch(ctx, ev)
	if err != nil {
		if key != "" {
			if rErr := s.guard.Release(ctx, key); rErr != nil {
				s.log.Warn("release replay key", zap.Error(rErr))
			}
		}
		s.metrics.Webhook(ev.Event, "error")
		return "", err
	}
	s.metrics.Webhook(ev.Event, outcome)
	return outcome, nil
}

func (s *PaymentService) dispatch(ctx context.Context, ev *paystack.WebhookEvent) (string, error) {
	var (
		outcome string
		err     error
	)
	switch ev.Event {
	case paystack.EventChargeSuccess, paystack.EventChargeFailed:
		charge, cErr := ev.Charge()
		if cErr != nil {
			s.log.Warn("malformed charge webhook", zap.String("event", ev.Event), zap.Int("body_size", len(ev.Data)))
			return "", models.NewValidationError(cErr.Error())
		}
		res := charge.Result()
		if ev.Event == paystack.EventChargeFailed && res.Status == "" {
			res.Status = "failed"
		}
		outcome, err = s.reconcileCharge(ctx, res)

	case paystack.EventTransferSuccess, paystack.EventTransferFailed, paystack.EventTransferReversed:
		tr, tErr := ev.Transfer()
		if tErr != nil {
			s.log.Warn("malformed transfer webhook", zap.String("event", ev.Event), zap.Int("body_size", len(ev.Data)))
			return "", models.NewValidationError(tErr.Error())
		}
		outcome, err = s.reconcileTransfer(ctx, tr.Result(strings.TrimPrefix(ev.Event, "transfer.")))

	default:
		s.log.Info("ignoring webhook event", zap.String("event", ev.Event))
		return OutcomeIgnored, nil
	}

	if err != nil && isBusinessError(err) {
		s.log.Info("webhook acknowledged without change", zap.String("event", ev.Event), zap.Error(err))
		return OutcomeIgnored, nil
	}
	return outcome, err
}

// reconcileCharge applies the gateway's view of a top-up charge.
func (s *PaymentService) reconcileCharge(ctx context.Context, res models.GatewayResult) (string, error) {
	p, err := s.store.GetByReference(ctx, res.Reference)
	if err != nil {
		return "", err
	}
	if p.Type != models.PaymentTypeTopUp || !p.IsPending() {
		return "", models.ErrPaymentNotPending
	}

	switch res.Status {
	case "success":
		expected := models.ToMinorUnits(p.Amount)
		if res.AmountMinor != expected || !strings.EqualFold(res.Currency, p.Currency) {
			reason := fmt.Sprintf("amount mismatch: expected %d %s, got %d %s", expected, p.Currency, res.AmountMinor, res.Currency)
			s.log.Error("charge does not match payment", zap.String("reference", p.Reference), zap.String("reason", reason))
			failed, err := s.store.MarkFailed(ctx, p.Reference, reason)
			if err != nil {
				return "", err
			}
			s.paymentFailed(ctx, failed, reason)
			return OutcomeMismatch, nil
		}

		settled, err := s.store.CompleteTopUp(ctx, p.Reference, res)
		if err != nil {
			return "", err
		}
		s.ledger.Record(ctx, settled.Entry, Actor{Role: models.ActorWebhook})
		notify(ctx, s.notify, s.log, p.UserID, models.NotifyPaymentReceived,
			"Payment received",
			fmt.Sprintf("%s was added to your wallet.", formatMoney(p.Amount, p.Currency)),
			"/wallet")
		s.publish(ctx, events.EventPaymentReceived, settled.Payment)
		s.log.Info("top-up credited", zap.String("reference", p.Reference), zap.String("amount", p.Amount.String()))
		return OutcomeCredited, nil

	case "failed", "abandoned", "reversed":
		reason := res.GatewayResponse
		if reason == "" {
			reason = res.Status
		}
		failed, err := s.store.MarkFailed(ctx, p.Reference, reason)
		if err != nil {
			return "", err
		}
		s.paymentFailed(ctx, failed, reason)
		return OutcomeFailed, nil
	}
	return OutcomePending, nil
}

func (s *PaymentService) paymentFailed(ctx context.Context, p *models.PaymentTransaction, reason string) {
	notify(ctx, s.notify, s.log, p.UserID, models.NotifyPaymentFailed,
		"Payment failed",
		fmt.Sprintf("Your payment of %s failed: %s.", formatMoney(p.Amount, p.Currency), reason),
		"/wallet")
	s.publish(ctx, events.EventPaymentFailed, p)
}

// reconcileTransfer applies the gateway's view of a payout transfer.
// Refunds are keyed by reference, so a failure followed by a reversal
// credits the wallet once.
func (s *PaymentService) reconcileTransfer(ctx context.Context, res models.GatewayResult) (string, error) {
	reason := res.GatewayResponse
	if reason == "" {
		reason = res.Status
	}
	switch res.Status {
	case "success":
		return s.settlePayout(ctx, res)
	case "failed", "abandoned", "rejected":
		return s.refundPayout(ctx, res.Reference, reason, false)
	case "reversed":
		return s.refundPayout(ctx, res.Reference, reason, true)
	}
	return OutcomePending, nil
}

func (s *PaymentService) settlePayout(ctx context.Context, res models.GatewayResult) (string, error) {
	p, err := s.store.GetByReference(ctx, res.Reference)
	if err != nil {
		return "", err
	}
	if p.Type != models.PaymentTypePayout || !p.IsPending() {
		return "", models.ErrPaymentNotPending
	}
	expected := models.ToMinorUnits(p.Amount)
	if res.AmountMinor != expected || !strings.EqualFold(res.Currency, p.Currency) {
		// Left pending for an operator: money left the balance, but not the
		// amount this payout debited.
		s.log.Error("transfer does not match payout",
			zap.String("reference", p.Reference),
			zap.Int64("expected_minor", expected), zap.String("expected_currency", p.Currency),
			zap.Int64("got_minor", res.AmountMinor), zap.String("got_currency", res.Currency))
		return OutcomeMismatch, nil
	}

	p, err = s.store.SettlePayout(ctx, res.Reference)
	if err != nil {
		return "", err
	}
	notify(ctx, s.notify, s.log, p.UserID, models.NotifyWithdrawalProcessed,
		"Withdrawal processed",
		fmt.Sprintf("%s was sent to your account.", formatMoney(p.Amount, p.Currency)),
		"/wallet")
	s.publish(ctx, events.EventPayoutSettled, p)
	return OutcomeSettled, nil
}

func (s *PaymentService) refundPayout(ctx context.Context, ref, reason string, reversed bool) (string, error) {
	var (
		settled *repositories.Settlement
		err     error
	)
	if reversed {
		settled, err = s.store.ReversePayout(ctx, ref, reason)
	} else {
		settled, err = s.store.FailPayout(ctx, ref, reason)
	}
	if err != nil {
		return "", err
	}
	s.ledger.Record(ctx, settled.Entry, Actor{Role: models.ActorWebhook})
	p := settled.Payment
	s.log.Info("payout refunded", zap.String("reference", ref), zap.String("status", p.Status), zap.String("reason", reason))
	notify(ctx, s.notify, s.log, p.UserID, models.NotifyWithdrawalFailed,
		"Withdrawal failed",
		fmt.Sprintf("Your withdrawal of %s failed and was returned to your wallet.", formatMoney(p.Amount, p.Currency)),
		"/wallet")
	s.publish(ctx, events.EventPaymentFailed, p)
	return OutcomeRefunded, nil
}

func (s *PaymentService) publish(ctx context.Context, kind string, p *models.PaymentTransaction) {
	if s.publisher == nil || p == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.StreamPayments, events.Event{
		Type: kind,
		Payload: map[string]any{
			"user_id":   p.UserID.String(),
			"reference": p.Reference,
			"type":      p.Type,
			"status":    p.Status,
			"amount":    p.Amount.String(),
			"currency":  p.Currency,
		},
	})
}

// Callback handles the browser returning from checkout. The gateway is
// asked for the charge state rather than trusting the query string.
func (s *PaymentService) Callback(ctx context.Context, reference string) (*models.PaymentTransaction, string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, "", models.NewValidationError("reference is required")
	}
	p, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, "", err
	}
	if !p.IsPending() {
		return p, OutcomeIgnored, nil
	}

	res, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, "", fmt.Errorf("verify charge: %w", models.ErrGatewayUnavailable)
	}
	outcome, err := s.reconcileCharge(ctx, *res)
	if err != nil && !errors.Is(err, models.ErrPaymentNotPending) {
		return nil, "", err
	}
	p, err = s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, "", err
	}
	return p, outcome, nil
}

// Withdraw debits the influencer wallet and starts a transfer to their
// default payout method. Only a transfer the gateway definitively refused
// is refunded here; when the outcome is unknown the payout stays pending
// until a webhook or RecheckPending settles it.
func (s *PaymentService) Withdraw(ctx context.Context, actor Actor, amount decimal.Decimal) (*models.PaymentTransaction, error) {
	if actor.Role != models.RoleInfluencer {
		return nil, models.ErrForbidden
	}
	if err := validMoney(amount); err != nil {
		return nil, err
	}
	inf, err := s.profiles.GetInfluencer(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if inf.VerificationStatus == models.InfluencerStatusPaused {
		return nil, models.ErrAccountPaused
	}

	minimum, err := s.MinimumWithdrawal(ctx, inf.Currency)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(minimum) {
		return nil, models.NewValidationError("minimum withdrawal is " + formatMoney(minimum, inf.Currency))
	}

	method, err := s.store.DefaultPayoutMethod(ctx, actor.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewValidationError("add a payout method before withdrawing")
	}
	if err != nil {
		return nil, err
	}
	if method.RecipientCode == "" {
		return nil, models.NewValidationError("payout method is not registered with the gateway")
	}

	p := &models.PaymentTransaction{
		UserID:    actor.UserID,
		Type:      models.PaymentTypePayout,
		Amount:    amount,
		Currency:  inf.Currency,
		Reference: "payout_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:    models.PaymentStatusPending,
		Metadata:  map[string]any{"payout_method_id": method.ID.String(), "account": method.MaskedAccount()},
	}
	created, err := s.store.CreatePayout(ctx, p)
	if err != nil {
		return nil, err
	}
	s.ledger.Record(ctx, created.Entry, actor)

	tr, err := s.gateway.InitiateTransfer(ctx, paystack.TransferRequest{
		AmountMinor: models.ToMinorUnits(amount),
		Recipient:   method.RecipientCode,
		Reference:   p.Reference,
		Reason:      "pushit withdrawal",
		Currency:    p.Currency,
	})
	if err != nil {
		if paystack.IsRejected(err) {
			s.log.Error("transfer rejected", zap.String("reference", p.Reference), zap.Error(err))
			if _, fErr := s.refundPayout(ctx, p.Reference, "transfer could not be started", false); fErr != nil {
				s.log.Error("refund rejected payout", zap.String("reference", p.Reference), zap.Error(fErr))
			}
			return nil, fmt.Errorf("initiate transfer: %w", models.ErrGatewayUnavailable)
		}
		s.log.Warn("transfer outcome unknown, leaving payout pending",
			zap.String("reference", p.Reference), zap.Error(err))
		audit(ctx, s.audit, s.log, models.AuditLog{
			ActorUserID: &actor.UserID,
			ActorType:   models.ActorUser,
			Action:      "withdrawal_unconfirmed",
			EntityType:  "payment",
			EntityID:    &p.ID,
			Meta:        map[string]any{"reference": p.Reference, "error": err.Error()},
		})
		return p, nil
	}
	if tr.TransferCode != "" {
		if err := s.store.SetTransferCode(ctx, p.Reference, tr.TransferCode); err != nil {
			s.log.Warn("store transfer code", zap.String("reference", p.Reference), zap.Error(err))
		}
		p.GatewayTransferCode = &tr.TransferCode
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: &actor.UserID,
		ActorType:   models.ActorUser,
		Action:      "withdrawal_initiated",
		EntityType:  "payment",
		EntityID:    &p.ID,
		Meta:        map[string]any{"reference": p.Reference, "amount": amount.String(), "currency": p.Currency},
	})
	return p, nil
}

// MinimumWithdrawal converts the configured minimum into currency.
func (s *PaymentService) MinimumWithdrawal(ctx context.Context, currency string) (decimal.Decimal, error) {
	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if rates.Default == "" {
		return s.cfg.MinWithdrawal, nil
	}
	return rates.Convert(s.cfg.MinWithdrawal, rates.Default, currency)
}

func (s *PaymentService) AddPayoutMethod(ctx context.Context, actor Actor, in PayoutMethodInput) (*models.PayoutMethod, error) {
	if actor.Role != models.RoleInfluencer {
		return nil, models.ErrForbidden
	}
	if in.MethodType != models.PayoutMethodBank && in.MethodType != models.PayoutMethodMobileMoney {
		return nil, models.NewValidationError("method_type must be bank or mobile_money")
	}
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	if !accountNumberRe.MatchString(in.AccountNumber) {
		return nil, models.NewValidationError("account_number must be 6 to 20 digits")
	}
	if strings.TrimSpace(in.BankCode) == "" || strings.TrimSpace(in.AccountName) == "" {
		return nil, models.NewValidationError("bank_code and account_name are required")
	}
	inf, err := s.profiles.GetInfluencer(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	code, err := s.gateway.CreateTransferRecipient(ctx, paystack.RecipientRequest{
		Type:          paystack.RecipientType(in.MethodType),
		Name:          strings.TrimSpace(in.AccountName),
		AccountNumber: in.AccountNumber,
		BankCode:      strings.TrimSpace(in.BankCode),
		Currency:      inf.Currency,
	})
	if err != nil {
		s.log.Error("create transfer recipient", zap.Error(err))
		return nil, fmt.Errorf("register payout method: %w", models.ErrGatewayUnavailable)
	}

	m := &models.PayoutMethod{
		InfluencerID:  actor.UserID,
		MethodType:    in.MethodType,
		BankCode:      strings.TrimSpace(in.BankCode),
		AccountNumber: in.AccountNumber,
		AccountName:   strings.TrimSpace(in.AccountName),
		RecipientCode: code,
		IsActive:      true,
	}
	if err := s.store.AddPayoutMethod(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PaymentService) ListPayoutMethods(ctx context.Context, actor Actor) ([]models.PayoutMethod, error) {
	return s.store.ListPayoutMethods(ctx, actor.UserID)
}

func (s *PaymentService) SetDefaultPayoutMethod(ctx context.Context, actor Actor, methodID uuid.UUID) error {
	return s.store.SetDefaultPayoutMethod(ctx, actor.UserID, methodID)
}

func (s *PaymentService) DeletePayoutMethod(ctx context.Context, actor Actor, methodID uuid.UUID) error {
	return s.store.DeactivatePayoutMethod(ctx, actor.UserID, methodID)
}

func (s *PaymentService) ListPayments(ctx context.Context, actor Actor, f repositories.PaymentFilter) ([]models.PaymentTransaction, error) {
	if !actor.IsAdmin() {
		f.UserID = &actor.UserID
	}
	return s.store.List(ctx, f)
}

// RecheckPending asks the gateway about top-ups and payouts whose webhook
// never arrived. It returns how many were settled either way.
func (s *PaymentService) RecheckPending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.PendingAge)
	settled := 0
	for _, kind := range []string{models.PaymentTypeTopUp, models.PaymentTypePayout} {
		n, err := s.recheck(ctx, kind, cutoff)
		settled += n
		if err != nil {
			return settled, err
		}
	}
	return settled, nil
}

func (s *PaymentService) recheck(ctx context.Context, paymentType string, cutoff time.Time) (int, error) {
	pending, err := s.store.ListPendingOlderThan(ctx, paymentType, cutoff, recheckBatch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		var outcome string
		if paymentType == models.PaymentTypePayout {
			outcome, err = s.recheckPayout(ctx, p)
		} else {
			outcome, err = s.recheckTopUp(ctx, p)
		}
		if err != nil {
			if isBusinessError(err) {
				continue
			}
			return settled, err
		}
		if outcome != OutcomePending && outcome != "" {
			settled++
			s.log.Info("pending payment reconciled",
				zap.String("reference", p.Reference), zap.String("type", p.Type), zap.String("outcome", outcome))
		}
	}
	return settled, nil
}

func (s *PaymentService) recheckTopUp(ctx context.Context, p models.PaymentTransaction) (string, error) {
	res, err := s.gateway.VerifyTransaction(ctx, p.Reference)
	if err != nil {
		s.log.Warn("recheck verify failed", zap.String("reference", p.Reference), zap.Error(err))
		return "", nil
	}
	return s.reconcileCharge(ctx, *res)
}

// recheckPayout settles a payout from the transfer's state. A transfer
// the gateway has no record of was never created, so the payout is
// refunded.
func (s *PaymentService) recheckPayout(ctx context.Context, p models.PaymentTransaction) (string, error) {
	res, err := s.gateway.VerifyTransfer(ctx, p.Reference)
	if paystack.IsNotFound(err) {
		return s.refundPayout(ctx, p.Reference, "transfer was never created", false)
	}
	if err != nil {
		s.log.Warn("recheck transfer failed", zap.String("reference", p.Reference), zap.Error(err))
		return "", nil
	}
	return s.reconcileTransfer(ctx, *res)
}
