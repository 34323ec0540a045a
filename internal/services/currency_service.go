package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pushit/marketplace/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ratesCacheKey = "rates"
	cacheTTL      = 5 * time.Minute
)

type CurrencyStore interface {
	List(ctx context.Context) ([]models.Currency, error)
	Upsert(ctx context.Context, c *models.Currency) error
}

// CurrencyService serves exchange rates from a short in-process cache.
type CurrencyService struct {
	store           CurrencyStore
	cache           *cache.Cache
	defaultCurrency string
	audit           AuditLogger
	log             *zap.Logger
}

func NewCurrencyService(store CurrencyStore, defaultCurrency string, audit AuditLogger, log *zap.Logger) *CurrencyService {
	return &CurrencyService{
		store:           store,
		cache:           cache.New(cacheTTL, 2*cacheTTL),
		defaultCurrency: strings.ToUpper(defaultCurrency),
		audit:           audit,
		log:             log,
	}
}

func (s *CurrencyService) Rates(ctx context.Context) (models.RateTable, error) {
	if v, ok := s.cache.Get(ratesCacheKey); ok {
		return v.(models.RateTable), nil
	}
	list, err := s.store.List(ctx)
	if err != nil {
		return models.RateTable{}, fmt.Errorf("load currencies: %w", err)
	}
	t := models.NewRateTable(list)
	if t.Default == "" {
		if _, ok := t.Currencies[s.defaultCurrency]; ok {
			t.Default = s.defaultCurrency
		} else {
			s.log.Warn("no default currency configured, conversions disabled")
		}
	}
	s.cache.SetDefault(ratesCacheKey, t)
	return t, nil
}

func (s *CurrencyService) List(ctx context.Context) ([]models.Currency, error) {
	return s.store.List(ctx)
}

func (s *CurrencyService) Upsert(ctx context.Context, c *models.Currency, actor Actor) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if len(c.Code) != 3 {
		return models.NewValidationError("currency code must be 3 letters")
	}
	if !c.ExchangeRate.IsPositive() && !c.IsDefault {
		return models.NewValidationError("exchange rate must be positive")
	}
	if err := s.store.Upsert(ctx, c); err != nil {
		return err
	}
	s.cache.Delete(ratesCacheKey)

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: actorPtr(actor),
		ActorType:   actor.auditType(),
		Action:      "currency_updated",
		EntityType:  "currency",
		Meta:        map[string]any{"code": c.Code, "exchange_rate": c.ExchangeRate.String(), "is_active": c.IsActive},
	})
	return nil
}

func (s *CurrencyService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	t, err := s.Rates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Convert(amount, from, to)
}

// Supported reports whether code is an active currency with a rate.
func (s *CurrencyService) Supported(ctx context.Context, code string) (bool, error) {
	t, err := s.Rates(ctx)
	if err != nil {
		return false, err
	}
	return t.Supports(code), nil
}

// CompatibleCodes lists every currency amounts in code can move to.
func (s *CurrencyService) CompatibleCodes(ctx context.Context, code string) ([]string, error) {
	t, err := s.Rates(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{code}
	for c := range t.Currencies {
		if c != code && t.Compatible(code, c) {
			out = append(out, c)
		}
	}
	return out, nil
}
