// Package metrics provides Prometheus metrics for the isolation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RewritesTotal counts rewrite attempts.
	// Labels: outcome (rewritten, unrewritable, collision, error)
	RewritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphgate",
			Subsystem: "rewrite",
			Name:      "rewrites_total",
			Help:      "Total number of query rewrite attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RewriteDuration tracks how long rewrites take.
	RewriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graphgate",
			Subsystem: "rewrite",
			Name:      "duration_seconds",
			Help:      "Duration of query rewriting in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ValidationsTotal counts validator verdicts.
	// Labels: decision (allow, reject), rule (rule ID, empty on allow)
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphgate",
			Subsystem: "validate",
			Name:      "verdicts_total",
			Help:      "Total number of validator verdicts by decision and rule",
		},
		[]string{"decision", "rule"},
	)

	// ConfigCacheOps counts tenant config cache lookups.
	// Labels: result (hit, miss, error)
	ConfigCacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphgate",
			Subsystem: "config_cache",
			Name:      "lookups_total",
			Help:      "Total number of tenant config cache lookups by result",
		},
		[]string{"result"},
	)

	// AuditFailures counts audit sink write failures. Audit failures never
	// block decisions, so this counter is the only place they surface
	// besides the log.
	AuditFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "graphgate",
			Subsystem: "audit",
			Name:      "failures_total",
			Help:      "Total number of audit sink write failures",
		},
	)

	// ExecutionsTotal counts gated query executions.
	// Labels: outcome (success, error)
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphgate",
			Subsystem: "execute",
			Name:      "queries_total",
			Help:      "Total number of gated query executions by outcome",
		},
		[]string{"outcome"},
	)

	// ExecutionDuration tracks end-to-end gated execution time.
	ExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "graphgate",
			Subsystem: "execute",
			Name:      "duration_seconds",
			Help:      "Duration of gated query execution in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
