// SPDX-License-Identifier: BSD-3-Clause

package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avena-robotics/control-core/pkg/fsm"
	"github.com/avena-robotics/control-core/pkg/id"
	"github.com/avena-robotics/control-core/pkg/metrics"
	"github.com/avena-robotics/control-core/registry"
)

// pollInterval is how often WaitForState re-samples the clients view while
// waiting for a target state (spec.md §9 design notes: short poll rather
// than a push-based wait, since state is already centrally cached by the
// orchestrator's CMD_GET_STATE replies).
const pollInterval = 250 * time.Millisecond

// ClientsFunc returns the current clients view; the engine never caches it
// across ticks, so it always sees the orchestrator's latest snapshot.
type ClientsFunc func() registry.ClientsView

// Engine is the Scenario Engine (spec.md §4.5): it owns the loaded
// scenarios, their execution trackers, and the registry of condition/action
// kinds, and implements registry.Dispatcher so built-in actions and logical
// conditions can recurse back into it.
type Engine struct {
	reg        *registry.Registry
	groups     GroupSet
	clientsFn  ClientsFunc
	components registry.ComponentsView
	emit       registry.EmitFunc
	logger     *slog.Logger

	mu        sync.RWMutex
	order     []string // scenario names, ascending priority
	scenarios map[string]*Scenario
	trackers  map[string]*tracker
	manual    map[string]bool // names flagged for a one-shot manual run

	errMu      sync.Mutex
	actionErrs map[string]int

	// maxConcurrentScenarios is the engine-wide in_flight cap from spec.md
	// §6.2/§4.5 step 2c. -1 (the default) means unconfigured/unlimited; 0 is
	// a deliberate "never launch anything" setting, distinct from unset.
	maxConcurrentScenarios int32
	inFlight               int32
}

// Option configures an Engine.
type Option interface {
	apply(*Engine)
}

type optionFunc func(*Engine)

func (f optionFunc) apply(e *Engine) { f(e) }

// WithComponents installs the named external components available to
// database/database_list conditions and other component-backed kinds.
func WithComponents(c registry.ComponentsView) Option {
	return optionFunc(func(e *Engine) { e.components = c })
}

// WithLogger overrides the engine's default logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(e *Engine) { e.logger = l })
}

// WithGroups installs the static group-membership configuration used by
// group/groups selectors.
func WithGroups(g GroupSet) Option {
	return optionFunc(func(e *Engine) { e.groups = g })
}

// WithMaxConcurrentScenarios sets the engine-wide cap on scenarios launched
// from Tick that are simultaneously in flight (spec.md §6.2's
// max_concurrent_scenarios, enforced per §4.5 step 2c). n == 0 is a valid,
// deliberate configuration meaning the scheduler never launches anything;
// leaving this option unset leaves the cap disabled.
func WithMaxConcurrentScenarios(n int) Option {
	return optionFunc(func(e *Engine) { e.maxConcurrentScenarios = int32(n) })
}

// NewEngine builds an Engine from already-loaded scenarios. clientsFn
// supplies the live clients view and emit performs the listener's
// send-and-await-reply contract; both are required.
func NewEngine(scenarios []*Scenario, reg *registry.Registry, clientsFn ClientsFunc, emit registry.EmitFunc, opts ...Option) *Engine {
	e := &Engine{
		reg:                    reg,
		clientsFn:              clientsFn,
		emit:                   emit,
		logger:                 slog.Default(),
		scenarios:              make(map[string]*Scenario, len(scenarios)),
		trackers:               make(map[string]*tracker, len(scenarios)),
		manual:                 make(map[string]bool),
		actionErrs:             make(map[string]int),
		maxConcurrentScenarios: -1,
	}
	for _, opt := range opts {
		opt.apply(e)
	}
	for _, s := range scenarios {
		e.scenarios[s.Name] = s
		e.trackers[s.Name] = newTracker(s)
		e.order = append(e.order, s.Name)
	}
	return e
}

// RequestManualRun flags a manual-trigger scenario to run on the next Tick.
// Returns ErrUnknownScenario if name is not loaded, or ErrScenarioValidation
// if the scenario's trigger is not "manual".
func (e *Engine) RequestManualRun(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.scenarios[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
	if s.Trigger.Type != TriggerManual {
		return fmt.Errorf("%w: %s is not a manual-trigger scenario", ErrScenarioValidation, name)
	}
	e.manual[name] = true
	return nil
}

// Tick evaluates every loaded scenario once (spec.md §4.5): automatic
// scenarios are checked against their trigger condition tree; manual
// scenarios run only when flagged by RequestManualRun. Eligible scenarios
// are launched concurrently and Tick returns without waiting for them to
// finish; per-scenario concurrency is bounded by tracker.tryStart, and the
// loop stops evaluating further scenarios entirely once maxConcurrentScenarios
// in-flight executions are outstanding.
func (e *Engine) Tick(ctx context.Context, triggerData map[string]any) {
	start := time.Now()
	defer func() { metrics.ScenarioTickDuration.Observe(time.Since(start).Seconds()) }()

	clients := e.clientsFn()

	e.mu.RLock()
	order := make([]string, len(e.order))
	copy(order, e.order)
	e.mu.RUnlock()

	for _, name := range order {
		if e.maxConcurrentScenarios >= 0 && atomic.LoadInt32(&e.inFlight) >= e.maxConcurrentScenarios {
			e.logger.DebugContext(ctx, "scenario tick stopped, max_concurrent_scenarios reached", "max_concurrent_scenarios", e.maxConcurrentScenarios)
			break
		}

		e.mu.RLock()
		s := e.scenarios[name]
		t := e.trackers[name]
		e.mu.RUnlock()

		sctx := &registry.Context{
			ScenarioName: s.Name,
			ExecutionID:  id.NewID(),
			Clients:      clients,
			Components:   e.components,
			TriggerData:  triggerData,
			Logger:       e.logger,
			Emit:         e.emit,
			Dispatcher:   e,
		}

		switch s.Trigger.Type {
		case TriggerAutomatic:
			if s.Trigger.Conditions != nil {
				ok, bindings, err := e.EvaluateConditionTree(ctx, s.Trigger.Conditions, sctx)
				if err != nil {
					e.logger.ErrorContext(ctx, "scenario trigger evaluation failed", "scenario", s.Name, "error", err)
					continue
				}
				if !ok {
					continue
				}
				sctx = sctx.Bind(bindings)
			}
		case TriggerManual:
			e.mu.Lock()
			requested := e.manual[s.Name]
			if requested {
				delete(e.manual, s.Name)
			}
			e.mu.Unlock()
			if !requested {
				continue
			}
		default:
			continue
		}

		ok, reason := t.tryStart()
		if !ok {
			e.logger.DebugContext(ctx, "scenario blocked", "scenario", s.Name, "reason", reason)
			continue
		}

		atomic.AddInt32(&e.inFlight, 1)
		go e.run(ctx, s, t, sctx)
	}
}

func (e *Engine) run(ctx context.Context, s *Scenario, t *tracker, sctx *registry.Context) {
	defer atomic.AddInt32(&e.inFlight, -1)
	e.logger.InfoContext(ctx, "scenario execution started", "scenario", s.Name, "execution_id", sctx.ExecutionID)
	err := e.RunActions(ctx, s.Actions, sctx)
	t.finish(err == nil)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		e.logger.ErrorContext(ctx, "scenario execution failed", "scenario", s.Name, "execution_id", sctx.ExecutionID, "error", err)
	}
	metrics.ScenarioExecutionsTotal.WithLabelValues(s.Name, outcome).Inc()
}

// ExecuteScenario implements registry.Dispatcher for the execute_scenario
// action and for manual invocation outside Tick: it runs the named
// scenario's actions under that scenario's own tracker gate, inheriting the caller's
// Clients/Components/Emit/Logger but not its TriggerData.
func (e *Engine) ExecuteScenario(ctx context.Context, name string, sctx *registry.Context) error {
	e.mu.RLock()
	s, ok := e.scenarios[name]
	t := e.trackers[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}

	ok2, reason := t.tryStart()
	if !ok2 {
		return fmt.Errorf("scenario %s blocked: %s", name, reason)
	}
	nested := &registry.Context{
		ScenarioName: s.Name,
		ExecutionID:  id.NewID(),
		Clients:      sctx.Clients,
		Components:   sctx.Components,
		TriggerData:  map[string]any{},
		Logger:       sctx.Logger,
		Emit:         sctx.Emit,
		Dispatcher:   e,
	}
	err := e.RunActions(ctx, s.Actions, nested)
	t.finish(err == nil)
	return err
}

// RunActions implements registry.Dispatcher: actions run sequentially,
// each resolved against sctx's current TriggerData before execution, and
// execution stops at the first error (spec.md §4.3/§7).
func (e *Engine) RunActions(ctx context.Context, actions []map[string]any, sctx *registry.Context) error {
	for _, cfg := range actions {
		tag, _ := cfg["type"].(string)
		if tag == "" {
			return fmt.Errorf("%w: action missing \"type\"", ErrScenarioValidation)
		}
		act, err := e.reg.Action(tag)
		if err != nil {
			return &registry.ActionExecutionError{ActionType: tag, Message: "unknown action type", Cause: err}
		}

		resolved := ResolveTemplates(ctx, cfg, sctx)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrScenarioCancelled, ctx.Err())
		}

		_, err = e.executeWithRecover(ctx, act, resolved, sctx)
		if err != nil {
			e.recordActionError(tag)
			metrics.ActionExecutionsTotal.WithLabelValues(tag, "failure").Inc()
			if aee, ok := err.(*registry.ActionExecutionError); ok {
				return aee
			}
			return &registry.ActionExecutionError{ActionType: tag, Message: "execution failed", Cause: err}
		}
		e.resetActionError(tag)
		metrics.ActionExecutionsTotal.WithLabelValues(tag, "success").Inc()
	}
	return nil
}

func (e *Engine) executeWithRecover(ctx context.Context, act registry.Action, cfg map[string]any, sctx *registry.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return act.Execute(ctx, cfg, sctx)
}

// EvaluateConditionTree implements registry.Dispatcher: a node is a single
// map with exactly one tag key (logical or leaf), whose value is the
// condition's own config.
func (e *Engine) EvaluateConditionTree(ctx context.Context, node map[string]any, sctx *registry.Context) (bool, map[string]any, error) {
	if len(node) != 1 {
		return false, nil, fmt.Errorf("%w: condition node must have exactly one tag", ErrScenarioValidation)
	}
	for tag, raw := range node {
		cond, err := e.reg.Condition(tag)
		if err != nil {
			e.logger.ErrorContext(ctx, "unknown condition tag, treating as false", "tag", tag, "error", err)
			return false, nil, nil
		}
		cfg, _ := raw.(map[string]any)
		resolved := ResolveTemplates(ctx, cfg, sctx)
		ok, bindings, cerr := e.evaluateWithRecover(ctx, cond, resolved, sctx)
		if cerr != nil {
			e.logger.ErrorContext(ctx, "condition evaluation failed, treating as false", "tag", tag, "error", &registry.ConditionEvaluationError{Tag: tag, Err: cerr})
			return false, nil, nil
		}
		return ok, bindings, nil
	}
	panic("unreachable")
}

func (e *Engine) evaluateWithRecover(ctx context.Context, cond registry.Condition, cfg map[string]any, sctx *registry.Context) (ok bool, bindings map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cond.Evaluate(ctx, cfg, sctx)
}

// ResolveSelector implements registry.Dispatcher.
func (e *Engine) ResolveSelector(sel registry.Selector, sctx *registry.Context) ([]string, error) {
	return resolveSelector(sel, e.groups, sctx.Clients)
}

// WaitForState implements registry.Dispatcher, polling the clients view
// every pollInterval until every name reaches one of targetStates or the
// context/timeout expires.
func (e *Engine) WaitForState(ctx context.Context, names []string, targetStates []fsm.State, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	check := func() bool {
		clients := e.clientsFn()
		for _, n := range names {
			c, ok := clients[n]
			if !ok {
				return false
			}
			matched := false
			for _, st := range targetStates {
				if c.FSMState == st {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
		return true
	}

	if check() {
		return true
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if time.Now().After(deadline) {
				return false
			}
			if check() {
				return true
			}
		}
	}
}

// ResetCounters clears every scenario's execution tracker and every
// action's consecutive-error counter, called on CMD_ACK (spec.md §3.9).
func (e *Engine) ResetCounters() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, t := range e.trackers {
		t.reset()
	}
	e.errMu.Lock()
	e.actionErrs = make(map[string]int)
	e.errMu.Unlock()
}

func (e *Engine) recordActionError(tag string) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	e.actionErrs[tag]++
}

func (e *Engine) resetActionError(tag string) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	delete(e.actionErrs, tag)
}

// ActionErrorCounts returns a snapshot of each action tag's consecutive
// failure count, surfaced via the orchestrator's health check blob
// (spec.md §4.6).
func (e *Engine) ActionErrorCounts() map[string]int {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	out := make(map[string]int, len(e.actionErrs))
	for k, v := range e.actionErrs {
		out[k] = v
	}
	return out
}

// Names returns every loaded scenario's name, in ascending priority order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Snapshot reports one scenario's tracker state, for the health/status
// surface and for tests.
func (e *Engine) Snapshot(name string) (executionCount int64, inFlight int32, ok bool) {
	e.mu.RLock()
	t, found := e.trackers[name]
	e.mu.RUnlock()
	if !found {
		return 0, 0, false
	}
	ec, inf := t.snapshot()
	return ec, inf, true
}
