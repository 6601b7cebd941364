package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	ledgerWrites    *prometheus.CounterVec
	compensations   *prometheus.CounterVec
	planLimitHits   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "balanze_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanze_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanze_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanze_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		ledgerWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanze_ledger_writes_total",
				Help: "Total ledger row writes by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanze_compensations_total",
				Help: "Total compensating deletes after partial multi-row writes.",
			},
			[]string{"protocol"},
		),
		planLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balanze_plan_limit_rejections_total",
				Help: "Total backend rejections carrying a plan-limit signature.",
			},
			[]string{"code"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrLedgerWrite counts a ledger write attempt by kind and outcome.
func (m *Metrics) IncrLedgerWrite(kind, outcome string) {
	m.ledgerWrites.WithLabelValues(kind, outcome).Inc()
}

// IncrCompensation counts a compensating delete for the given protocol
// (transfer, dps_transfer, purchase).
func (m *Metrics) IncrCompensation(protocol string) {
	m.compensations.WithLabelValues(protocol).Inc()
}

// IncrPlanLimit counts a plan-limit rejection by signature code.
func (m *Metrics) IncrPlanLimit(code string) {
	m.planLimitHits.WithLabelValues(code).Inc()
}

// CompensationCount returns the current compensation counter value for a
// protocol. Used by diagnostics and tests.
func (m *Metrics) CompensationCount(protocol string) float64 {
	return getCounterValue(m.compensations, protocol)
}

// ExternalErrorCount returns the current external error counter value for
// a service. Used by diagnostics and tests.
func (m *Metrics) ExternalErrorCount(service string) float64 {
	return getCounterValue(m.externalErrors, service)
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
