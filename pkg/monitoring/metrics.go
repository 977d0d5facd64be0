package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthorizationsTotal counts authorization attempts by outcome and reason.
	AuthorizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_authorizations_total",
			Help: "Total number of spend authorization attempts",
		},
		[]string{"outcome", "reason"},
	)

	// AuthorizeDuration measures the full Authorize pipeline duration.
	AuthorizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "treasury_authorize_duration_seconds",
			Help:    "Authorize pipeline duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CASConflictsTotal counts optimistic-lock conflicts on budget mutation.
	CASConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "treasury_cas_conflicts_total",
			Help: "Total number of compare-and-swap conflicts on budget state",
		},
	)

	// SpendTotal counts authorized spend in minor currency units.
	SpendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_spend_minor_units_total",
			Help: "Total authorized spend in minor currency units",
		},
		[]string{"agent_id"},
	)

	// AuditBufferDepth tracks ledger records awaiting durable persistence.
	AuditBufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasury_audit_buffer_depth",
			Help: "Number of transactions buffered before durable persistence",
		},
	)

	// AuditDegraded is 1 while the durable audit path is degraded.
	AuditDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasury_audit_degraded",
			Help: "Whether the durable audit write path is degraded (0/1)",
		},
	)

	// BreakerFrozen is 1 while the emergency circuit breaker is engaged.
	BreakerFrozen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "treasury_breaker_frozen",
			Help: "Whether the emergency circuit breaker is engaged (0/1)",
		},
	)

	// RescalesTotal counts performance-scaler limit adjustments by tier.
	RescalesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_rescales_total",
			Help: "Total number of budget limit rescales by performance tier",
		},
		[]string{"tier"},
	)
)
