// Package metrics exposes Prometheus instrumentation for the credit engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ravelon"

var (
	// CreditsConsumed counts successful consumptions by principal kind (account, guest).
	CreditsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "credits_consumed_total",
		Help:      "Credits consumed by principal kind.",
	}, []string{"principal"})

	// CreditsDenied counts pre-checks and consumptions rejected for lack of credit.
	CreditsDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "credits_denied_total",
		Help:      "Billable actions denied by reason.",
	}, []string{"reason"})

	// CreditsAdded counts credits added outside the daily reset by source (reward, grant).
	CreditsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "credits_added_total",
		Help:      "Credits added by source.",
	}, []string{"source"})

	// DailyResets counts lazily applied day-boundary resets.
	DailyResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "daily_resets_total",
		Help:      "Daily credit resets applied.",
	})

	// PlanChanges counts plan transitions by target plan.
	PlanChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "plan_changes_total",
		Help:      "Plan changes by target plan.",
	}, []string{"plan"})

	// GateTransitions counts ad gate transitions (shown, completed, cancelled, busy, not_ready).
	GateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gate",
		Name:      "transitions_total",
		Help:      "Ad gate transitions by kind.",
	}, []string{"transition"})

	// ActionOutcomes counts orchestrated actions by kind and outcome.
	ActionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "actions",
		Name:      "outcomes_total",
		Help:      "Orchestrated actions by kind and outcome.",
	}, []string{"action", "outcome"})

	// ActionDuration tracks how long the external part of an action takes.
	ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "actions",
		Name:      "duration_seconds",
		Help:      "External action duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	// EventsPublished counts ledger events handed to the publisher by result.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Ledger events published by result.",
	}, []string{"result"})

	// StoreQueryDuration tracks Postgres statement latency by operation.
	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "query_duration_seconds",
		Help:      "Postgres statement latency by operation.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"op"})

	// EventsConsumed counts events processed by the analytics worker.
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "consumed_total",
		Help:      "Ledger events consumed by result.",
	}, []string{"result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
