package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds, tuned for the sub-second validation
	// budget plus the multi-second regeneration cycle.
	latencyBuckets = []float64{
		1, 5, 10, 25,
		50, 100, 150, 250,
		500, 1000, 2500,
		5000, 10000, 15000,
	}

	ValidationTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "replyguard_validations_total",
			Help: "Total number of validation calls by direction and status",
		},
		[]string{"direction", "status"},
	)

	ValidationLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replyguard_validation_latency_ms",
			Help:    "Validation call latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"direction"},
	)

	RejectTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "replyguard_rejects_total",
			Help: "Rejected validations by issue category",
		},
		[]string{"direction", "category"},
	)

	CheckDegradedTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "replyguard_check_degraded_total",
			Help: "Checks that could not complete and were skipped (timeout or dependency failure)",
		},
		[]string{"check"},
	)

	RegenerationOutcomeTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "replyguard_regeneration_outcomes_total",
			Help: "Terminal regeneration cycle outcomes by attempt count",
		},
		[]string{"outcome", "attempts"},
	)

	RegenerationCycleLatency = promauto.With(registerer).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replyguard_regeneration_cycle_latency_ms",
			Help:    "Wall-clock latency of full regeneration cycles in milliseconds",
			Buckets: latencyBuckets,
		},
	)

	EscalationTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "replyguard_escalations_total",
			Help: "Escalations to human review by reason",
		},
		[]string{"reason"},
	)

	PolicyReloadTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "replyguard_policy_reloads_total",
			Help: "Policy reload attempts by result",
		},
		[]string{"result"},
	)

	PolicyVersion = promauto.With(registerer).NewGauge(
		prometheus.GaugeOpts{
			Name: "replyguard_policy_version",
			Help: "Version of the active policy snapshot",
		},
	)

	AuditDroppedTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "replyguard_audit_dropped_total",
			Help: "Audit entries dropped because the writer queue was full",
		},
	)

	AuditWriteFailureTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "replyguard_audit_write_failures_total",
			Help: "Audit sink write failures by sink",
		},
		[]string{"sink"},
	)

	RateLimitLockoutTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "replyguard_ratelimit_lockouts_total",
			Help: "Temporary lockouts triggered by consecutive rate limit violations",
		},
	)

	DependencyFailureTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "replyguard_dependency_failures_total",
			Help: "External dependency call failures by dependency",
		},
		[]string{"dependency"},
	)
)

// Registry returns the registry backing the /metrics endpoint.
func Registry() *prometheus.Registry {
	return registry
}

func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}
