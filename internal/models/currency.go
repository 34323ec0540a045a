package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"` // units of the default currency per 1 unit
	IsDefault    bool            `json:"is_default"`
	IsActive     bool            `json:"is_active"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RateTable is a snapshot of active currencies keyed by code.
type RateTable struct {
	Default    string
	Currencies map[string]Currency
}

func NewRateTable(currencies []Currency) RateTable {
	t := RateTable{Currencies: make(map[string]Currency, len(currencies))}
	for _, c := range currencies {
		if !c.IsActive {
			continue
		}
		t.Currencies[c.Code] = c
		if c.IsDefault {
			t.Default = c.Code
		}
	}
	return t
}

// Supports reports whether code can take part in a conversion.
func (t RateTable) Supports(code string) bool {
	c, ok := t.Currencies[code]
	return ok && c.ExchangeRate.IsPositive()
}

// Compatible reports whether amounts can move between the two currencies.
func (t RateTable) Compatible(from, to string) bool {
	if from == to {
		return true
	}
	return t.Default != "" && t.Supports(from) && t.Supports(to)
}

// Convert converts through the default currency and rounds to 2dp
// with banker's rounding.
func (t RateTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	if !t.Compatible(from, to) {
		return decimal.Zero, fmt.Errorf("convert %s to %s: %w", from, to, ErrCurrencyUnsupported)
	}

	inDefault := amount
	if from != t.Default {
		inDefault = amount.Mul(t.Currencies[from].ExchangeRate)
	}

	out := inDefault
	if to != t.Default {
		out = inDefault.DivRound(t.Currencies[to].ExchangeRate, 8)
	}
	return out.RoundBank(2), nil
}

// ToMinorUnits converts a major-unit amount to the gateway's integer
// subunit (kobo, pesewas, cents).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// IsWholeCents reports whether amount fits the two-place money columns
// without rounding. Trailing zeros ("1.500") are fine.
func IsWholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}
