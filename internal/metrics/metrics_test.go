package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/health", "200", time.Millisecond)
	m.LedgerEntry("deposit", "credit", "ok")
	m.Webhook("charge.success", "processed")
	m.GatewayCall("verify", "ok", time.Millisecond)
	m.SetWalletDrift(3)
	m.Reverification("instagram", "verified")
}

func TestCountersAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LedgerEntry("deposit", "credit", "ok")
	m.LedgerEntry("deposit", "credit", "ok")
	m.Webhook("charge.success", "duplicate")

	if got := testutil.ToFloat64(m.LedgerEntries.WithLabelValues("deposit", "credit", "ok")); got != 2 {
		t.Errorf("ledger entries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.WebhookDeliveries.WithLabelValues("charge.success", "duplicate")); got != 1 {
		t.Errorf("webhook deliveries = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "pushit_ledger_entries_total") {
		t.Error("metrics output missing ledger counter")
	}
}
