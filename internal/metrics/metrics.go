package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the services report to. All methods are
// safe on a nil receiver so tests can pass nil.
type Metrics struct {
	RequestCount      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	LedgerEntries     *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	GatewayDuration   *prometheus.HistogramVec
	WalletDrift       prometheus.Gauge
	Reverifications   *prometheus.CounterVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		LedgerEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushit_ledger_entries_total",
				Help: "Wallet ledger postings by kind, direction and outcome.",
			},
			[]string{"kind", "direction", "outcome"},
		),
		WebhookDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushit_webhook_deliveries_total",
				Help: "Payment gateway webhook deliveries by event and outcome.",
			},
			[]string{"event", "outcome"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pushit_gateway_request_duration_seconds",
				Help:    "Payment gateway API call duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		WalletDrift: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pushit_wallet_drift_wallets",
				Help: "Wallets whose balance disagrees with their ledger at the last audit.",
			},
		),
		Reverifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pushit_platform_reverifications_total",
				Help: "Follower re-verification results by platform and status.",
			},
			[]string{"platform", "status"},
		),
	}

	if registry != nil {
		registry.MustRegister(m.RequestCount, m.RequestDuration, m.LedgerEntries,
			m.WebhookDeliveries, m.GatewayDuration, m.WalletDrift, m.Reverifications)
	}
	return m
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

func (m *Metrics) LedgerEntry(kind, direction, outcome string) {
	if m == nil {
		return
	}
	m.LedgerEntries.WithLabelValues(kind, direction, outcome).Inc()
}

func (m *Metrics) Webhook(event, outcome string) {
	if m == nil {
		return
	}
	m.WebhookDeliveries.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) GatewayCall(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

func (m *Metrics) SetWalletDrift(n int) {
	if m == nil {
		return
	}
	m.WalletDrift.Set(float64(n))
}

func (m *Metrics) Reverification(platform, status string) {
	if m == nil {
		return
	}
	m.Reverifications.WithLabelValues(platform, status).Inc()
}
