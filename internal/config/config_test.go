package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_abc")
	t.Setenv("PAYSTACK_WEBHOOK_SECRET", "")
	t.Setenv("DEFAULT_CURRENCY", "ngn")
	t.Setenv("MIN_WITHDRAWAL", "")

	cfg := Load()
	if cfg.PaystackWebhookSecret != "sk_test_abc" {
		t.Errorf("webhook secret = %q, want fallback to secret key", cfg.PaystackWebhookSecret)
	}
	if cfg.DefaultCurrency != "NGN" {
		t.Errorf("DefaultCurrency = %q, want NGN", cfg.DefaultCurrency)
	}
	if !cfg.MinWithdrawal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("MinWithdrawal = %s, want 1000", cfg.MinWithdrawal)
	}
}

func TestGetEnvDecimal(t *testing.T) {
	fallback := decimal.NewFromInt(7)
	tests := []struct {
		value string
		want  string
	}{
		{"", "7"},
		{"12.50", "12.5"},
		{"not-a-number", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DECIMAL", tt.value)
			got := getEnvDecimal("TEST_DECIMAL", fallback)
			if got.String() != tt.want {
				t.Errorf("getEnvDecimal(%q) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsAdminEmail(t *testing.T) {
	cfg := &Config{AdminEmails: parseList(" ops@pushit.io , root@pushit.io,")}
	if len(cfg.AdminEmails) != 2 {
		t.Fatalf("parseList returned %v", cfg.AdminEmails)
	}
	if !cfg.IsAdminEmail("OPS@pushit.io") {
		t.Error("expected case-insensitive match")
	}
	if cfg.IsAdminEmail("brand@pushit.io") {
		t.Error("unexpected admin match")
	}
}
