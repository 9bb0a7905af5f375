package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	settlements *prometheus.CounterVec
	escrowed    prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics
)

// ModuleMetrics returns the lazily-initialised metrics registry used to record
// JSON-RPC module activity and settlement outcomes.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bazaar",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "escrow",
				Name:      "settlements_total",
				Help:      "Order settlements segmented by outcome (delivered, cancelled).",
			}, []string{"outcome"}),
			escrowed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "bazaar",
				Subsystem: "escrow",
				Name:      "vault_balance_units",
				Help:      "Value currently held by the escrow vault, in smallest currency units.",
			}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.settlements,
			moduleRegistry.escrowed,
		)
	})
	return moduleRegistry
}

// ObserveRequest records one handled module request.
func (m *moduleMetrics) ObserveRequest(module, method, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(took.Seconds())
}

// ObserveError records a module error by JSON-RPC code.
func (m *moduleMetrics) ObserveError(module, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(module, method, code).Inc()
}

// ObserveSettlement records a terminal order transition.
func (m *moduleMetrics) ObserveSettlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

// SetVaultBalance publishes the current escrow vault balance.
func (m *moduleMetrics) SetVaultBalance(units float64) {
	if m == nil {
		return
	}
	m.escrowed.Set(units)
}
