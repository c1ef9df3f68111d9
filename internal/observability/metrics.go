package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	AdmissionTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admission_register_seconds",
			Help:    "Duration of the register flow",
			Buckets: prometheus.DefBuckets,
		},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_cancellations_total",
			Help: "Cancellation attempts by outcome",
		},
		[]string{"outcome"},
	)

	CheckInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_checkins_total",
			Help: "Check-in attempts by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	LedgerAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_ledger_anomalies_total",
			Help: "Ledger underflows and failed compensations",
		},
	)

	CompensationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_compensations_total",
			Help: "Seat reservations released after a failed persist",
		},
	)

	NotifierFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_notifier_failures_total",
			Help: "Best-effort ticket deliveries that failed",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "admission_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox row",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
