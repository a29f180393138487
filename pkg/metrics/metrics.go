// SPDX-License-Identifier: BSD-3-Clause

// Package metrics holds the process-wide Prometheus collectors for the
// FSM, scenario engine, and listener queues (SPEC_FULL.md §3 "Tracing/
// metrics").
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FSMTransitionsTotal counts every committed FSM transition, by machine
	// name, trigger, and resulting state.
	FSMTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_core_fsm_transitions_total",
			Help: "Total number of committed FSM transitions",
		},
		[]string{"fsm", "trigger", "state"},
	)

	// FSMTransitionErrorsTotal counts rejected/failed Fire calls, by machine
	// name and trigger.
	FSMTransitionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_core_fsm_transition_errors_total",
			Help: "Total number of rejected or hook-failed FSM transitions",
		},
		[]string{"fsm", "trigger"},
	)

	// ScenarioTickDuration times one full Engine.Tick pass across every
	// loaded scenario.
	ScenarioTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "control_core_scenario_tick_duration_seconds",
			Help:    "Time taken to evaluate every scenario on one tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ScenarioExecutionsTotal counts scenario runs, by name and outcome
	// ("success"/"failure").
	ScenarioExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_core_scenario_executions_total",
			Help: "Total number of scenario executions by outcome",
		},
		[]string{"scenario", "outcome"},
	)

	// ActionExecutionsTotal counts action invocations, by tag and outcome.
	ActionExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_core_action_executions_total",
			Help: "Total number of scenario action executions by outcome",
		},
		[]string{"action", "outcome"},
	)

	// ListenerQueueDepth reports the current depth of one listener's
	// incoming/to_be_sent/pause/processing queues.
	ListenerQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "control_core_listener_queue_depth",
			Help: "Current depth of a listener's internal queues",
		},
		[]string{"listener", "queue"},
	)
)

func init() {
	prometheus.MustRegister(
		FSMTransitionsTotal,
		FSMTransitionErrorsTotal,
		ScenarioTickDuration,
		ScenarioExecutionsTotal,
		ActionExecutionsTotal,
		ListenerQueueDepth,
	)
}

// Handler returns the Prometheus scrape handler, for mounting under the
// orchestrator's HTTP surface or a dedicated metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
