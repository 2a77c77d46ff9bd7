// Package metrics defines and registers all custom Prometheus metrics for
// opsync. It is the single source of truth for metric names, labels, and help
// strings. Metrics register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "opsync"

// ── Reconciliation ────────────────────────────────────────────────────────────

// ReconcilePassesTotal counts completed reconciliation passes.
var ReconcilePassesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_passes_total",
		Help:      "Total number of reconciliation passes run.",
	},
)

// ReconcileTransitionsTotal counts order transitions attempted by reconciliation.
// Labels:
//   - to: the target order status ("completed" or "processing")
//   - result: "committed" or "failed"
var ReconcileTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_transitions_total",
		Help:      "Total number of order transitions attempted by reconciliation.",
	},
	[]string{"to", "result"},
)

// ReconcileSkippedTotal counts divergent orders left alone during a pass.
// Label:
//   - reason: "backoff" or "parked"
var ReconcileSkippedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_skipped_total",
		Help:      "Total number of divergent orders skipped because of earlier failures.",
	},
	[]string{"reason"},
)

// ReconcilePassDuration measures a full pass, backend calls included.
var ReconcilePassDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconcile_pass_duration_seconds",
		Help:      "Duration of a reconciliation pass.",
		Buckets:   prometheus.DefBuckets,
	},
)

// OrdersByStatus mirrors the Order Registry counters.
var OrdersByStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "orders_by_status",
		Help:      "Number of cached orders per status.",
	},
	[]string{"status"},
)

// ── Session / gateway ─────────────────────────────────────────────────────────

// RefreshTotal counts credential refresh attempts.
// Label:
//   - result: "ok" or "failed"
var RefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_refresh_total",
		Help:      "Total number of credential refresh attempts.",
	},
	[]string{"result"},
)

// GatewayRequestsTotal counts backend calls made by the gateway.
// Labels:
//   - method: HTTP method
//   - code: HTTP status code, or "error" for transport failures
var GatewayRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_requests_total",
		Help:      "Total number of backend requests, by method and status code.",
	},
	[]string{"method", "code"},
)

// GatewayReplaysTotal counts calls replayed after a successful refresh.
var GatewayReplaysTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_replays_total",
		Help:      "Total number of calls replayed with a refreshed credential.",
	},
)

// ── Tasks ─────────────────────────────────────────────────────────────────────

// TasksCreatedTotal counts tasks created through the assignment workflow.
// Label:
//   - priority: "low", "medium" or "high"
var TasksCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Total number of tasks created, by priority.",
	},
	[]string{"priority"},
)
