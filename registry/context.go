// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/avena-robotics/control-core/pkg/event"
	"github.com/avena-robotics/control-core/pkg/fsm"
)

// ClientState is the merged client record (spec.md §3.4): configuration
// fields set once at load time, plus runtime fields refreshed by every
// CMD_GET_STATE reply.
type ClientState struct {
	Name          string
	Address       string
	Port          int
	Groups        []string
	FSMState      fsm.State
	Error         bool
	ErrorMessage  string
	HealthCheck   map[string]any
	Extra         map[string]any // arbitrary subsystem fields, e.g. io_server.failed_virtual_devices
	LastUpdatedAt time.Time
}

// ClientsView is the read-only snapshot of the client registry handed to a
// condition/action invocation. It is copied at tick start (spec.md §5
// "Shared resources"), so a condition or action never observes a client
// record changing mid-evaluation.
type ClientsView map[string]ClientState

// Component is the uniform lifecycle contract external resource handles
// (databases, message gateways, ...) satisfy. The core only specifies this
// contract; concrete components (SQL pools, SMTP senders, ...) are external
// collaborators per spec.md §3.8/§6.3.
type Component interface {
	Name() string
	Initialize(ctx context.Context) error
	Connect(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}

// ComponentsView is the read-only set of named components available to a
// scenario run.
type ComponentsView map[string]Component

// EmitFunc dispatches one event to a destination client, mirroring the
// listener's emit() contract (spec.md §4.1): a fresh id is allocated, the
// event enters to_be_sent/processing, and the call returns once the reply
// correlates or maximumProcessingTime elapses.
type EmitFunc func(ctx context.Context, destination string, eventType string, data map[string]any, maximumProcessingTime time.Duration) (event.Event, error)

// Selector is the trigger selector sub-language (spec.md §4.5): exactly one
// of Client, Group, Groups, or Target ("@all") should be set.
type Selector struct {
	Client  string
	Group   string
	Groups  []string
	Target  string
}

// Dispatcher is implemented by the scenario engine and threaded through
// Context so built-in actions that need to recurse — evaluate_condition,
// wait_for_state, execute_scenario, and the logical condition kinds
// (and/or/not/xor/nand/nor) — can call back into the engine without a
// package import cycle between registry and scenario.
type Dispatcher interface {
	// EvaluateConditionTree evaluates a single condition node (exactly one
	// top-level tag key plus its config) against sctx.
	EvaluateConditionTree(ctx context.Context, node map[string]any, sctx *Context) (bool, map[string]any, error)
	// RunActions executes a list of action configs sequentially against
	// sctx, aborting on the first ActionExecutionError.
	RunActions(ctx context.Context, actions []map[string]any, sctx *Context) error
	// ResolveSelector expands a selector to a concrete set of client names.
	ResolveSelector(sel Selector, sctx *Context) ([]string, error)
	// ExecuteScenario runs a nested scenario by name to completion.
	ExecuteScenario(ctx context.Context, name string, sctx *Context) error
	// WaitForState blocks until every client in names reaches one of
	// targetStates or timeout elapses; it returns true on success.
	WaitForState(ctx context.Context, names []string, targetStates []fsm.State, timeout time.Duration) bool
}

// Context is the ScenarioContext (spec.md §4.4): the immutable-by-convention
// record passed to every condition and action invocation.
type Context struct {
	ScenarioName string
	ExecutionID  string
	Clients      ClientsView
	Components   ComponentsView
	TriggerData  map[string]any
	Logger       *slog.Logger
	Emit         EmitFunc
	Dispatcher   Dispatcher
}

// Bind returns a shallow copy of ctx with key=value merged into TriggerData,
// used by conditions to publish bindings without mutating the caller's map.
func (c *Context) Bind(bindings map[string]any) *Context {
	merged := make(map[string]any, len(c.TriggerData)+len(bindings))
	for k, v := range c.TriggerData {
		merged[k] = v
	}
	for k, v := range bindings {
		merged[k] = v
	}
	cp := *c
	cp.TriggerData = merged
	return &cp
}

// Condition is the contract every condition kind (logical and leaf)
// satisfies. Evaluate receives the node's static config and the current
// ScenarioContext and returns whether it holds, plus any bindings it wants
// to publish into the triggering context (spec.md §4.3). An error return is
// equivalent to false and is logged by the caller as a
// ConditionEvaluationError; Evaluate must never panic across the registry
// boundary (callers recover and convert a panic to the same error type).
type Condition interface {
	Evaluate(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error)
}

// ConditionFunc adapts a plain function to the Condition interface.
type ConditionFunc func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error)

func (f ConditionFunc) Evaluate(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
	return f(ctx, config, sctx)
}

// Action is the contract every action kind satisfies. Execute's return
// value is propagated to the scenario's action result log; a returned
// error is wrapped as ActionExecutionError by the caller and aborts the
// enclosing scenario instance (spec.md §4.3/§7).
type Action interface {
	Execute(ctx context.Context, config map[string]any, sctx *Context) (any, error)
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc func(ctx context.Context, config map[string]any, sctx *Context) (any, error)

func (f ActionFunc) Execute(ctx context.Context, config map[string]any, sctx *Context) (any, error) {
	return f(ctx, config, sctx)
}
