// SPDX-License-Identifier: BSD-3-Clause

// Package scenario implements the Scenario Engine (spec.md §4.5): the
// scenario model, directory loader, template resolver, selector resolution,
// per-scenario execution tracking, and the action-execution engine that
// drives a tick of trigger evaluation and dispatches runs.
package scenario

import "time"

// TriggerAutomatic and TriggerManual are the two trigger.type values
// (spec.md §3.5).
const (
	TriggerAutomatic = "automatic"
	TriggerManual    = "manual"
)

// Trigger describes when a scenario fires.
type Trigger struct {
	Type        string
	Conditions  map[string]any // a single condition node; nil for "no trigger"
	Description string
}

// Scenario is the declarative record loaded from a scenario JSON file
// (spec.md §3.5, §6.2). Actions are kept as raw config maps — the "type"
// key is the registry tag, the rest is the action's own config, resolved
// against the trigger context at execution time.
type Scenario struct {
	Name                    string
	Description             string
	Priority                int
	Trigger                 Trigger
	Cooldown                time.Duration
	MaxConcurrentExecutions int
	MaxExecutions           int // 0 means unlimited
	Actions                 []map[string]any

	// SourcePath records which file this scenario was loaded from, for
	// diagnostics only.
	SourcePath string
}

// defaultPriority is given to a scenario file that declares no priority.
// Scenarios are ordered by ascending priority, so such scenarios come after
// those with a priority below 100 and before those above it.
const defaultPriority = 100

// defaultMaxConcurrentExecutions is the per-scenario concurrency cap used
// when a scenario file does not specify one.
const defaultMaxConcurrentExecutions = 1
