package services

import (
	"context"
	"sort"
	"testing"

	"github.com/pushit/marketplace/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeCurrencies struct {
	list  []models.Currency
	loads int
}

func (f *fakeCurrencies) List(context.Context) ([]models.Currency, error) {
	f.loads++
	return f.list, nil
}

func (f *fakeCurrencies) Upsert(_ context.Context, c *models.Currency) error {
	for i := range f.list {
		if f.list[i].Code == c.Code {
			f.list[i] = *c
			return nil
		}
	}
	f.list = append(f.list, *c)
	return nil
}

func testCurrencies() *fakeCurrencies {
	return &fakeCurrencies{list: []models.Currency{
		{Code: "NGN", ExchangeRate: decimal.NewFromInt(1), IsDefault: true, IsActive: true},
		{Code: "GHS", ExchangeRate: decimal.NewFromInt(100), IsActive: true},
		{Code: "KES", ExchangeRate: decimal.NewFromInt(10), IsActive: false},
	}}
}

func TestCurrencyRatesCached(t *testing.T) {
	store := testCurrencies()
	svc := NewCurrencyService(store, "NGN", nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Rates(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if store.loads != 1 {
		t.Errorf("store loads = %d, want 1", store.loads)
	}

	if err := svc.Upsert(ctx, &models.Currency{Code: "kes", ExchangeRate: decimal.NewFromInt(10), IsActive: true}, Actor{Role: models.RoleAdmin}); err != nil {
		t.Fatal(err)
	}
	ok, err := svc.Supported(ctx, "KES")
	if err != nil || !ok {
		t.Errorf("Supported(KES) after upsert = %v, %v, want true", ok, err)
	}
	if store.loads != 2 {
		t.Errorf("store loads = %d, want 2 after invalidation", store.loads)
	}
}

func TestCurrencyConvert(t *testing.T) {
	svc := NewCurrencyService(testCurrencies(), "NGN", nil, zap.NewNop())
	got, err := svc.Convert(context.Background(), decimal.NewFromInt(5), "GHS", "NGN")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Convert(5 GHS, NGN) = %s, want 500", got)
	}
	if _, err := svc.Convert(context.Background(), decimal.NewFromInt(5), "GHS", "KES"); err == nil {
		t.Error("expected error converting to inactive currency")
	}
}

func TestCurrencyDefaultFallback(t *testing.T) {
	store := &fakeCurrencies{list: []models.Currency{
		{Code: "NGN", ExchangeRate: decimal.NewFromInt(1), IsActive: true},
		{Code: "GHS", ExchangeRate: decimal.NewFromInt(100), IsActive: true},
	}}
	svc := NewCurrencyService(store, "ngn", nil, zap.NewNop())
	rt, err := svc.Rates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Default != "NGN" {
		t.Errorf("Default = %q, want NGN", rt.Default)
	}
}

func TestCompatibleCodes(t *testing.T) {
	svc := NewCurrencyService(testCurrencies(), "NGN", nil, zap.NewNop())
	codes, err := svc.CompatibleCodes(context.Background(), "GHS")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(codes)
	if len(codes) != 2 || codes[0] != "GHS" || codes[1] != "NGN" {
		t.Errorf("CompatibleCodes(GHS) = %v, want [GHS NGN]", codes)
	}
}

func TestCurrencyUpsertValidation(t *testing.T) {
	svc := NewCurrencyService(testCurrencies(), "NGN", nil, zap.NewNop())
	tests := []models.Currency{
		{Code: "NAIRA", ExchangeRate: decimal.NewFromInt(1)},
		{Code: "USD", ExchangeRate: decimal.Zero},
	}
	for _, c := range tests {
		c := c
		if err := svc.Upsert(context.Background(), &c, Actor{Role: models.RoleAdmin}); err == nil {
			t.Errorf("Upsert(%s, %s) succeeded, want error", c.Code, c.ExchangeRate)
		}
	}
}
