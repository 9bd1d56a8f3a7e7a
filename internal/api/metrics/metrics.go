// Package metrics defines and registers all custom Prometheus metrics for the
// BonitaForward identity service. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics register themselves with the default registry at init time, which
// is the registry echoprometheus exports, so everything shows up on the
// single /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Session lifecycle metrics ─────────────────────────────────────────────────

// SessionEventsTotal counts provider lifecycle events by disposition.
// Labels:
//   - kind: "SIGNED_IN", "SIGNED_OUT", or "TOKEN_REFRESHED"
//   - outcome: "handled", "noop", "suppressed", "dropped", "error", or "ignored"
var SessionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Total number of provider session events, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// BootstrapsTotal counts bootstrap completions.
// Label:
//   - outcome: "signed_in", "signed_out", or "degraded"
var BootstrapsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bootstraps_total",
		Help:      "Total number of bootstrap runs, by outcome.",
	},
	[]string{"outcome"},
)

// EventHandleDuration measures how long the reconciler spends on a single
// session event, from dequeue to published state.
// Label:
//   - kind: the session event kind
var EventHandleDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "event_handle_duration_seconds",
		Help:      "Duration of session event handling from dequeue to publication.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"kind"},
)

// AuthenticatedState reports whether the published identity is currently
// authenticated (1) or not (0).
var AuthenticatedState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "authenticated_state",
		Help:      "Whether the published identity context is authenticated.",
	},
)

// ── Profile metrics ───────────────────────────────────────────────────────────

// ProfileWritesTotal counts profile store writes.
// Labels:
//   - op: "insert" or "update"
//   - outcome: "ok", "permission_denied", "conflict", or "error"
var ProfileWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_writes_total",
		Help:      "Total number of profile writes, by operation and outcome.",
	},
	[]string{"op", "outcome"},
)

// DraftsConsumedTotal counts pending profile drafts merged into a profile
// write and deleted.
var DraftsConsumedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drafts_consumed_total",
		Help:      "Total number of pending profile drafts consumed.",
	},
)

// ── Verification metrics ──────────────────────────────────────────────────────

// VerificationsTotal counts privileged-role checks.
// Labels:
//   - source: "cache", "remote", "fallback", or "skipped"
//   - result: "admin" or "not_admin"
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of privileged-role checks, by source and result.",
	},
	[]string{"source", "result"},
)
