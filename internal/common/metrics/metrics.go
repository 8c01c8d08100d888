// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_sweeps_total",
			Help: "Total number of rule engine sweeps, by outcome",
		},
		[]string{"status"},
	)

	SweepsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_sweeps_skipped_total",
			Help: "Ticks skipped because the previous sweep was still running",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_sweep_duration_seconds",
			Help:    "Duration of a full rule engine sweep in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	UserEvaluationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_user_evaluation_failures_total",
			Help: "Users whose evaluation failed or timed out during a sweep",
		},
	)

	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notifications_emitted_total",
			Help: "Notifications persisted by the rule engine, by kind",
		},
		[]string{"kind"},
	)

	DuplicatesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_duplicates_suppressed_total",
			Help: "Rule firings suppressed by deduplication, by kind",
		},
		[]string{"kind"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_total",
			Help: "Delivery attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_rate_limit_decisions_total",
			Help: "Admission decisions made by the rate limiter",
		},
		[]string{"decision"},
	)

	RateLimitBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_rate_limit_buckets",
			Help: "Number of live per-identity token buckets",
		},
	)

	RateLimitBucketsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_rate_limit_buckets_evicted_total",
			Help: "Buckets removed by the idle sweep",
		},
	)
)
