// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avena-robotics/control-core/pkg/event"
	"github.com/avena-robotics/control-core/pkg/fsm"
)

// Standard action tags (spec.md §3.7).
const (
	TagLogEvent           = "log_event"
	TagSendCommand        = "send_command"
	TagSendCustomCommand  = "send_custom_command"
	TagWaitForState       = "wait_for_state"
	TagEvaluateCondition  = "evaluate_condition"
	TagExecuteScenario    = "execute_scenario"
)

func selectorFromConfig(config map[string]any) Selector {
	sel := Selector{}
	if v, ok := config["client"].(string); ok {
		sel.Client = v
	}
	if v, ok := config["group"].(string); ok {
		sel.Group = v
	}
	if raw, ok := config["groups"].([]any); ok {
		for _, g := range raw {
			if s, ok := g.(string); ok {
				sel.Groups = append(sel.Groups, s)
			}
		}
	}
	if v, ok := config["target"].(string); ok {
		sel.Target = v
	}
	return sel
}

func newLogEventAction() Action {
	return ActionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (any, error) {
		level, _ := config["level"].(string)
		message, _ := config["message"].(string)
		logger := sctx.Logger
		if logger == nil {
			logger = slog.Default()
		}
		switch level {
		case "debug":
			logger.DebugContext(ctx, message, "scenario", sctx.ScenarioName)
		case "warn":
			logger.WarnContext(ctx, message, "scenario", sctx.ScenarioName)
		case "error":
			logger.ErrorContext(ctx, message, "scenario", sctx.ScenarioName)
		default:
			logger.InfoContext(ctx, message, "scenario", sctx.ScenarioName)
		}
		return message, nil
	})
}

func newSendCommandAction() Action {
	return ActionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (any, error) {
		return dispatchCommand(ctx, config, sctx, nil)
	})
}

func newSendCustomCommandAction() Action {
	return ActionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (any, error) {
		data, _ := config["data"].(map[string]any)
		return dispatchCommand(ctx, config, sctx, data)
	})
}

func dispatchCommand(ctx context.Context, config map[string]any, sctx *Context, data map[string]any) (any, error) {
	command, _ := config["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}
	names, err := sctx.Dispatcher.ResolveSelector(selectorFromConfig(config), sctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]event.Event, len(names))
	for _, name := range names {
		reply, err := sctx.Emit(ctx, name, command, data, 30*time.Second)
		if err != nil {
			return nil, fmt.Errorf("sending %s to %s: %w", command, name, err)
		}
		results[name] = reply
	}
	return results, nil
}

func parseTargetStates(config map[string]any) ([]fsm.State, error) {
	named := map[string]fsm.State{
		"UNKNOWN": fsm.StateUnknown, "STOPPED": fsm.StateStopped, "INITIALIZING": fsm.StateInitializing,
		"INITIALIZED": fsm.StateInitialized, "STARTING": fsm.StateStarting, "RUN": fsm.StateRun,
		"SOFT_STOPPING": fsm.StateSoftStopping, "PAUSING": fsm.StatePausing, "RESUMING": fsm.StateResuming,
		"PAUSE": fsm.StatePause, "HARD_STOPPING": fsm.StateHardStopping, "FAULT": fsm.StateFault,
		"ON_ERROR": fsm.StateOnError,
	}
	var names []string
	if v, ok := config["target_state"].(string); ok {
		names = []string{v}
	} else if raw, ok := config["target_states"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("wait_for_state requires target_state or target_states")
	}
	states := make([]fsm.State, 0, len(names))
	for _, n := range names {
		s, ok := named[n]
		if !ok {
			return nil, fmt.Errorf("unknown state %q", n)
		}
		states = append(states, s)
	}
	return states, nil
}

func newWaitForStateAction() Action {
	return ActionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (any, error) {
		names, err := sctx.Dispatcher.ResolveSelector(selectorFromConfig(config), sctx)
		if err != nil {
			return nil, err
		}
		states, err := parseTargetStates(config)
		if err != nil {
			return nil, err
		}
		timeoutStr, _ := config["timeout"].(string)
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", timeoutStr, err)
		}

		if sctx.Dispatcher.WaitForState(ctx, names, states, timeout) {
			return true, nil
		}

		if onFailure, ok := config["on_failure"].([]any); ok {
			actions, err := toActionConfigs(onFailure)
			if err != nil {
				return false, err
			}
			if err := sctx.Dispatcher.RunActions(ctx, actions, sctx); err != nil {
				return false, err
			}
		}
		return false, nil
	})
}

func newEvaluateConditionAction() Action {
	return ActionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (any, error) {
		nodes, err := childNodes(config)
		if err != nil {
			return nil, err
		}
		result := true
		bindings := map[string]any{}
		for _, n := range nodes {
			ok, b, err := sctx.Dispatcher.EvaluateConditionTree(ctx, n, sctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				result = false
			}
			for k, v := range b {
				bindings[k] = v
			}
		}

		branch := "false_actions"
		if result {
			branch = "true_actions"
		}
		raw, ok := config[branch].([]any)
		if !ok {
			return result, nil
		}
		actions, err := toActionConfigs(raw)
		if err != nil {
			return result, err
		}
		boundCtx := sctx.Bind(bindings)
		if err := sctx.Dispatcher.RunActions(ctx, actions, boundCtx); err != nil {
			return result, err
		}
		return result, nil
	})
}

func newExecuteScenarioAction() Action {
	return ActionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (any, error) {
		name, _ := config["scenario_name"].(string)
		if name == "" {
			return nil, fmt.Errorf("scenario_name is required")
		}
		if err := sctx.Dispatcher.ExecuteScenario(ctx, name, sctx); err != nil {
			return nil, err
		}
		return name, nil
	})
}

func toActionConfigs(raw []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("action list entry is not an object")
		}
		out = append(out, m)
	}
	return out, nil
}

// RegisterBuiltinActions registers the standard action kinds the core
// provides. Called once at orchestrator startup, before any kinds passed via
// orchestrator.WithExtraAction are registered. Business-specific kinds (send_email,
// send_sms, lynx_refund, database_update, ...) are external collaborators
// per spec.md §6.3 and are registered by the deployment, not by this
// function.
func RegisterBuiltinActions(r *Registry) error {
	entries := []struct {
		tag string
		act Action
	}{
		{TagLogEvent, newLogEventAction()},
		{TagSendCommand, newSendCommandAction()},
		{TagSendCustomCommand, newSendCustomCommandAction()},
		{TagWaitForState, newWaitForStateAction()},
		{TagEvaluateCondition, newEvaluateConditionAction()},
		{TagExecuteScenario, newExecuteScenarioAction()},
	}
	for _, e := range entries {
		if err := r.RegisterAction(e.tag, e.act); err != nil {
			return err
		}
	}
	return nil
}
