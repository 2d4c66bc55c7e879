package infra

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the controller's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	BackendRequests  *prometheus.CounterVec
	BackendLatency   *prometheus.HistogramVec
	RateRefreshes    *prometheus.CounterVec
	LiquidityChecks  *prometheus.CounterVec
	BankVerification *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	Orders           *prometheus.CounterVec
	StaleResults     *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		BackendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackswap_backend_requests_total",
				Help: "Total backend requests by endpoint and outcome.",
			},
			[]string{"endpoint", "status"},
		),
		BackendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stackswap_backend_request_duration_seconds",
				Help:    "Backend request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		RateRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackswap_rate_refreshes_total",
				Help: "Rate cache refresh attempts by result.",
			},
			[]string{"result"},
		),
		LiquidityChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackswap_liquidity_checks_total",
				Help: "Liquidity checks by result.",
			},
			[]string{"result"},
		),
		BankVerification: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackswap_bank_verifications_total",
				Help: "Bank account verifications by result.",
			},
			[]string{"result"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackswap_flow_transitions_total",
				Help: "Flow state transitions.",
			},
			[]string{"from", "to"},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackswap_orders_total",
				Help: "Orders by mode and status.",
			},
			[]string{"mode", "status"},
		),
		StaleResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stackswap_stale_results_total",
				Help: "Async results discarded because a newer attempt superseded them.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.BackendRequests, m.BackendLatency, m.RateRefreshes, m.LiquidityChecks,
		m.BankVerification, m.Transitions, m.Orders, m.StaleResults,
	)
	return m
}

// MetricsHandler exposes registry over HTTP.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveBackend(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(endpoint, status).Inc()
	m.BackendLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) RateRefresh(result string) {
	if m == nil {
		return
	}
	m.RateRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) LiquidityCheck(result string) {
	if m == nil {
		return
	}
	m.LiquidityChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) BankVerified(result string) {
	if m == nil {
		return
	}
	m.BankVerification.WithLabelValues(result).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Order(mode, status string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(mode, status).Inc()
}

func (m *Metrics) Stale(kind string) {
	if m == nil {
		return
	}
	m.StaleResults.WithLabelValues(kind).Inc()
}
