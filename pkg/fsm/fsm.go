// SPDX-License-Identifier: BSD-3-Clause

// Package fsm implements the fixed listener lifecycle state machine:
// states and commands are table-driven, transitions are fired one at a
// time, and a transitional state's hook runs unlocked before the machine
// settles into a steady state or FAULT.
package fsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/qmuntal/stateless"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avena-robotics/control-core/pkg/metrics"
)

func settleTrigger(from State) string {
	return fmt.Sprintf("__settle__:%s", from)
}

// FSM is a thread-safe, single fixed-table state machine. One FSM exists
// per listener instance. Its internal state bookkeeping is driven by
// github.com/qmuntal/stateless; Fire additionally runs the declared hook
// for a transition with the FSM unlocked, so a concurrent CurrentState or
// Fire call observes the transitional state rather than blocking for the
// hook's duration.
type FSM struct {
	config  *Config
	machine *stateless.StateMachine
	mu      sync.Mutex
	tracer  trace.Tracer

	started bool
	stopped bool
	current State

	transitions map[State]map[string]Transition
}

// New builds an FSM from cfg. cfg is validated before any state is touched.
func New(cfg *Config) (*FSM, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &FSM{
		config:      cfg,
		current:     cfg.InitialState,
		transitions: make(map[State]map[string]Transition),
	}
	if cfg.EnableTracing {
		f.tracer = otel.Tracer("fsm")
	}

	f.machine = stateless.NewStateMachine(cfg.InitialState)
	for _, s := range cfg.States {
		f.machine.Configure(s)
	}
	settledSuccess := make(map[State]bool)
	settledFailure := make(map[State]bool)
	settledChain := make(map[State]bool)
	for _, t := range cfg.Transitions {
		if f.transitions[t.From] == nil {
			f.transitions[t.From] = make(map[string]Transition)
		}
		f.transitions[t.From][t.Trigger] = t

		f.machine.Configure(t.From).Permit(t.Trigger, t.Transitional)

		for hop := &t; hop != nil; hop = hop.Chain {
			if hop.Chain != nil && !settledChain[hop.Transitional] {
				f.machine.Configure(hop.Transitional).Permit(settleTrigger(hop.Transitional)+":chain", hop.Chain.Transitional)
				settledChain[hop.Transitional] = true
			}
			if hop.Chain == nil && hop.Transitional != hop.OnSuccess && !settledSuccess[hop.Transitional] {
				f.machine.Configure(hop.Transitional).Permit(settleTrigger(hop.Transitional)+":success", hop.OnSuccess)
				settledSuccess[hop.Transitional] = true
			}
			if hop.OnFailure != hop.OnSuccess && !settledFailure[hop.Transitional] {
				f.machine.Configure(hop.Transitional).Permit(settleTrigger(hop.Transitional)+":failure", hop.OnFailure)
				settledFailure[hop.Transitional] = true
			}
		}
	}

	return f, nil
}

// Start marks the machine ready to Fire.
func (f *FSM) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return ErrMachineStopped
	}
	f.started = true
	return nil
}

// Stop marks the machine permanently closed; Fire returns ErrMachineStopped
// afterward.
func (f *FSM) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

// CurrentState returns the state the machine currently sits in.
func (f *FSM) CurrentState() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// CanFire reports whether trigger is permitted from the current state.
func (f *FSM) CanFire(trigger string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.transitions[f.current][trigger]
	return ok
}

// Name returns the machine's configured name.
func (f *FSM) Name() string { return f.config.Name }

// Fire attempts trigger from the current state. If no transition is
// declared for (current, trigger), it returns ErrInvalidTransition and the
// state is left unchanged — illegal commands never panic or block the
// caller. Otherwise the machine moves into the transition's transitional
// state immediately (visible to any concurrent CurrentState/Fire caller),
// runs the declared hook without holding the FSM's lock (bounded by the
// configured hook timeout), and then resolves into OnSuccess or OnFailure.
func (f *FSM) Fire(ctx context.Context, trigger string) (State, error) {
	f.mu.Lock()

	if !f.started {
		f.mu.Unlock()
		return StateUnknown, ErrMachineNotStarted
	}
	if f.stopped {
		f.mu.Unlock()
		return StateUnknown, ErrMachineStopped
	}

	t, ok := f.transitions[f.current][trigger]
	if !ok {
		from := f.current
		name := f.config.Name
		f.mu.Unlock()
		metrics.FSMTransitionErrorsTotal.WithLabelValues(name, trigger).Inc()
		return from, fmt.Errorf("%w: trigger %s not valid in state %s", ErrInvalidTransition, trigger, from)
	}

	var span trace.Span
	if f.tracer != nil {
		ctx, span = f.tracer.Start(ctx, "fsm.Fire",
			trace.WithAttributes(
				attribute.String("fsm.name", f.config.Name),
				attribute.String("state.from", t.From.String()),
				attribute.String("trigger", trigger),
			))
		defer span.End()
	}

	if err := f.machine.FireCtx(ctx, trigger); err != nil {
		f.mu.Unlock()
		if span != nil {
			span.RecordError(err)
		}
		metrics.FSMTransitionErrorsTotal.WithLabelValues(f.config.Name, trigger).Inc()
		return t.From, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	f.current = t.Transitional
	previous := t.From
	f.mu.Unlock()

	// Walk the hop chain: each hop's hook runs with the machine visibly
	// sitting in hop.Transitional. A hook failure stops the chain and
	// settles at that hop's OnFailure; a hook success on a non-final hop
	// advances straight into the next hop's Transitional with no
	// intermediate settle.
	var hookErr error
	hop := &t
	for {
		if hop.Hook != nil {
			hookCtx, cancel := context.WithTimeout(ctx, f.config.HookTimeout)
			hookErr = runHook(hookCtx, hop.Hook)
			cancel()
			if hookErr != nil && span != nil {
				span.RecordError(hookErr)
			}
		}
		if hookErr != nil || hop.Chain == nil {
			break
		}

		f.mu.Lock()
		if ferr := f.machine.FireCtx(ctx, settleTrigger(hop.Transitional)+":chain"); ferr != nil {
			f.mu.Unlock()
			if span != nil {
				span.RecordError(ferr)
			}
			return f.current, fmt.Errorf("settling transition: %w", ferr)
		}
		f.current = hop.Chain.Transitional
		f.mu.Unlock()
		hop = hop.Chain
	}

	final := hop.OnSuccess
	settle := settleTrigger(hop.Transitional) + ":success"
	if hookErr != nil {
		final = hop.OnFailure
		settle = settleTrigger(hop.Transitional) + ":failure"
	}

	f.mu.Lock()
	if final != hop.Transitional {
		if ferr := f.machine.FireCtx(ctx, settle); ferr != nil {
			f.mu.Unlock()
			if span != nil {
				span.RecordError(ferr)
			}
			return f.current, fmt.Errorf("settling transition: %w", ferr)
		}
	}
	f.current = final

	name := f.config.Name
	persist := f.config.PersistenceFunc
	broadcast := f.config.BroadcastFunc
	f.mu.Unlock()

	if span != nil {
		span.SetAttributes(attribute.String("state.to", final.String()))
	}

	metrics.FSMTransitionsTotal.WithLabelValues(name, trigger, final.String()).Inc()
	if hookErr != nil {
		metrics.FSMTransitionErrorsTotal.WithLabelValues(name, trigger).Inc()
	}

	if persist != nil {
		if perr := persist(name, final); perr != nil {
			return final, fmt.Errorf("persisting state %s: %w", final, perr)
		}
	}
	if broadcast != nil {
		broadcast(name, previous, final, trigger)
	}

	if hookErr != nil {
		return final, &HookFailure{State: hop.Transitional, Trigger: trigger, Err: hookErr}
	}
	return final, nil
}

func runHook(ctx context.Context, hook Hook) error {
	done := make(chan error, 1)
	go func() {
		done <- hook(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTransitionTimeout
		}
		return ctx.Err()
	}
}

// Registry tracks named FSM instances, matching the single-owner semantics
// a listener or orchestrator process needs: one machine per name, first
// registration wins.
type Registry struct {
	mu       sync.RWMutex
	machines map[string]*FSM
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{machines: make(map[string]*FSM)}
}

// Register adds f under its own Name(). A second registration under the
// same name is a hard error: names are assigned once, at startup.
func (r *Registry) Register(f *FSM) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.machines[f.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, f.Name())
	}
	r.machines[f.Name()] = f
	return nil
}

// Get looks up a registered machine by name.
func (r *Registry) Get(name string) (*FSM, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, exists := r.machines[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return f, nil
}

// StopAll stops every registered machine.
func (r *Registry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.machines {
		f.Stop()
	}
}
