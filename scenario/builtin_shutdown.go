// SPDX-License-Identifier: BSD-3-Clause

package scenario

import "time"

// ShutdownScenarioName is the fixed name the orchestrator looks for when a
// deployment wants a managed shutdown sequence instead of stopping every
// client at once.
const ShutdownScenarioName = "graceful_shutdown"

// NewGracefulShutdownScenario builds the manual-trigger scenario that stops
// order's clients one at a time, each client sent CMD_STOPPED only after
// the previous one reaches STOPPED (spec.md §5 "shutdown is itself expressed
// as a scenario"). order is expected in dependency order (dependents before
// their dependencies); the scenario walks it in reverse so a client is never
// told to stop before the clients that depend on it have already stopped.
func NewGracefulShutdownScenario(order []string, perStepTimeout time.Duration) *Scenario {
	actions := make([]map[string]any, 0, len(order)*2)
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		actions = append(actions,
			map[string]any{
				"type":    "send_command",
				"client":  name,
				"command": "CMD_STOPPED",
			},
			map[string]any{
				"type":          "wait_for_state",
				"client":        name,
				"target_state":  "STOPPED",
				"timeout":       perStepTimeout.String(),
				"on_failure": []any{
					map[string]any{
						"type":    "log_event",
						"level":   "error",
						"message": "client did not reach STOPPED within timeout during graceful shutdown: " + name,
					},
				},
			},
		)
	}

	return &Scenario{
		Name:                    ShutdownScenarioName,
		Description:             "stops clients one at a time in reverse dependency order",
		Priority:                0,
		Trigger:                 Trigger{Type: TriggerManual, Description: "invoked by the orchestrator on process shutdown"},
		MaxConcurrentExecutions: 1,
		MaxExecutions:           0,
		Actions:                 actions,
	}
}
