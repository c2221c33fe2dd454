package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation result labels
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultBusy     = "busy"
	ResultError    = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Balance operation metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationAmount   *prometheus.HistogramVec
	LockWait          prometheus.Histogram
	BusyRejections    *prometheus.CounterVec
	Retries           prometheus.Counter

	// Account metrics
	AccountsOpened prometheus.Counter

	// Consistency metrics
	ConsistencyChecks    *prometheus.CounterVec
	InconsistentAccounts prometheus.Gauge

	// Authentication metrics
	AuthAttempts *prometheus.CounterVec

	// Event metrics
	EventsPublished *prometheus.CounterVec
	OutboxPending   *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter
}

// New creates all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "badbank_operations_total",
				Help: "Total balance operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "badbank_operation_duration_seconds",
				Help:    "Duration of balance operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OperationAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "badbank_operation_amount",
				Help:    "Amounts of committed balance operations",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"operation"},
		),
		LockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "badbank_lock_wait_seconds",
			Help:    "Time spent waiting for a per-user lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		}),
		BusyRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "badbank_busy_total",
				Help: "Operations rejected because the account stayed busy",
			},
			[]string{"operation"},
		),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "badbank_storage_retries_total",
			Help: "Storage conflicts that triggered a retry",
		}),

		AccountsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "badbank_accounts_opened_total",
			Help: "Total number of accounts opened",
		}),

		ConsistencyChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "badbank_consistency_checks_total",
				Help: "Consistency checks by outcome",
			},
			[]string{"status"},
		),
		InconsistentAccounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "badbank_inconsistent_accounts",
			Help: "Accounts whose balances disagree with their log at the last full check",
		}),

		AuthAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "badbank_auth_attempts_total",
				Help: "Total authentication attempts",
			},
			[]string{"kind", "status"},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "badbank_events_published_total",
				Help: "Outbox events published by type and status",
			},
			[]string{"event_type", "status"},
		),
		OutboxPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "badbank_outbox_pending_events",
				Help: "Unpublished outbox events by type",
			},
			[]string{"event_type"},
		),

		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "badbank_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		}),
	}
}
