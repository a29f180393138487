// SPDX-License-Identifier: BSD-3-Clause

package fsm

import (
	"context"
	"fmt"
	"time"
)

// Hook runs while the machine sits in a transitional state, before it
// resolves to a steady state or FAULT.
type Hook func(ctx context.Context) error

// PersistenceCallback is invoked after every committed transition so the
// new state can be snapshotted.
type PersistenceCallback func(machineName string, state State) error

// BroadcastCallback is invoked after every committed transition so
// interested consumers (e.g. an orchestrator's audit subject) can observe
// it. A broadcast failure never fails the transition itself.
type BroadcastCallback func(machineName string, previous, current State, trigger string)

// Transition describes one command-driven edge out of a steady state. Firing
// Trigger from From immediately moves the machine into Transitional (visible
// to concurrent CMD_GET_STATE callers) and runs Hook without holding the
// FSM's lock; Hook's outcome then resolves the machine into OnSuccess or
// OnFailure. A Transition with no Hook moves directly from From to OnSuccess.
//
// Chain, when set, turns a single Fire call into a multi-hop transition:
// once Hook succeeds, the machine moves into Chain.Transitional (instead of
// settling at OnSuccess) and runs Chain.Hook, recursing until a hop with a
// nil Chain settles the machine at its OnSuccess/OnFailure. Any hop's hook
// failure settles the machine at that hop's OnFailure immediately.
type Transition struct {
	From         State
	Transitional State
	Trigger      string
	Hook         Hook
	OnSuccess    State
	OnFailure    State
	Chain        *Transition
}

// Config is the table-driven definition of one FSM instance.
type Config struct {
	Name            string
	InitialState    State
	States          []State
	Transitions     []Transition
	HookTimeout     time.Duration
	EnableTracing   bool
	PersistenceFunc PersistenceCallback
	BroadcastFunc   BroadcastCallback
}

// Option configures a Config.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithName sets the machine's name, used for persistence/broadcast keys and
// in error messages.
func WithName(name string) Option {
	return optionFunc(func(c *Config) { c.Name = name })
}

// WithInitialState sets the state the machine starts in.
func WithInitialState(s State) Option {
	return optionFunc(func(c *Config) { c.InitialState = s })
}

// WithStates declares the full set of valid states.
func WithStates(states ...State) Option {
	return optionFunc(func(c *Config) { c.States = append([]State(nil), states...) })
}

// WithTransition adds a hookless transition: From moves straight to
// onSuccess on trigger, with no observable transitional state.
func WithTransition(from, onSuccess State, trigger string) Option {
	return optionFunc(func(c *Config) {
		c.Transitions = append(c.Transitions, Transition{
			From: from, Transitional: onSuccess, Trigger: trigger, OnSuccess: onSuccess, OnFailure: onSuccess,
		})
	})
}

// WithHookedTransition adds a transition that moves the machine into
// transitional on trigger, runs hook without holding the FSM's lock, and
// resolves to onSuccess if hook returns nil or onFailure otherwise.
func WithHookedTransition(from, transitional State, trigger string, hook Hook, onSuccess, onFailure State) Option {
	return optionFunc(func(c *Config) {
		c.Transitions = append(c.Transitions, Transition{
			From: from, Transitional: transitional, Trigger: trigger,
			Hook: hook, OnSuccess: onSuccess, OnFailure: onFailure,
		})
	})
}

// WithChainedHookedTransition adds a two-hop transition: trigger moves the
// machine from -> via1, running hook1; once hook1 succeeds the machine
// continues straight into via2 (no settle in between) and runs hook2, which
// resolves the machine to onSuccess or onFailure. A hook1 failure settles
// the machine at onFailure without ever reaching via2/hook2 (spec.md's
// RUN->PAUSING->HARD_STOPPING->STOPPED shutdown: on_pause then
// on_hard_stop, either of which can fault the machine).
func WithChainedHookedTransition(from, via1 State, hook1 Hook, via2 State, hook2 Hook, trigger string, onSuccess, onFailure State) Option {
	return optionFunc(func(c *Config) {
		c.Transitions = append(c.Transitions, Transition{
			From: from, Transitional: via1, Trigger: trigger,
			Hook: hook1, OnSuccess: via2, OnFailure: onFailure,
			Chain: &Transition{
				From: via1, Transitional: via2, Trigger: trigger,
				Hook: hook2, OnSuccess: onSuccess, OnFailure: onFailure,
			},
		})
	})
}

// WithHookTimeout bounds how long a transition's hook may run before the
// machine is forced to FAULT with ErrTransitionTimeout.
func WithHookTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) { c.HookTimeout = d })
}

// WithTracing enables OpenTelemetry spans around Fire.
func WithTracing() Option {
	return optionFunc(func(c *Config) { c.EnableTracing = true })
}

// WithPersistence sets the callback invoked after every committed
// transition.
func WithPersistence(cb PersistenceCallback) Option {
	return optionFunc(func(c *Config) { c.PersistenceFunc = cb })
}

// WithBroadcast sets the callback invoked after every committed transition.
func WithBroadcast(cb BroadcastCallback) Option {
	return optionFunc(func(c *Config) { c.BroadcastFunc = cb })
}

// NewConfig builds a Config from options, applying defaults matching the
// listener lifecycle contract (30s hook timeout).
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		InitialState: StateStopped,
		HookTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return cfg
}

// Validate checks structural consistency of the table: unique states, a
// known initial state, and transitions that reference declared states.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidConfig)
	}
	if len(c.States) == 0 {
		return fmt.Errorf("%w: at least one state must be defined", ErrInvalidConfig)
	}

	known := make(map[State]bool, len(c.States))
	for _, s := range c.States {
		if known[s] {
			return fmt.Errorf("%w: duplicate state %s", ErrInvalidConfig, s)
		}
		known[s] = true
	}
	if !known[c.InitialState] {
		return fmt.Errorf("%w: initial state %s not in states list", ErrInvalidConfig, c.InitialState)
	}

	seen := make(map[string]bool)
	for _, t := range c.Transitions {
		if t.Trigger == "" {
			return fmt.Errorf("%w: transition trigger cannot be empty", ErrInvalidConfig)
		}
		if !known[t.From] {
			return fmt.Errorf("%w: transition from state %s not declared", ErrInvalidConfig, t.From)
		}
		key := fmt.Sprintf("%d|%s", t.From, t.Trigger)
		if seen[key] {
			return fmt.Errorf("%w: duplicate transition from %s on %s", ErrInvalidConfig, t.From, t.Trigger)
		}
		seen[key] = true

		for hop := &t; hop != nil; hop = hop.Chain {
			if !known[hop.Transitional] {
				return fmt.Errorf("%w: transition transitional state %s not declared", ErrInvalidConfig, hop.Transitional)
			}
			if !known[hop.OnSuccess] {
				return fmt.Errorf("%w: transition success state %s not declared", ErrInvalidConfig, hop.OnSuccess)
			}
			if !known[hop.OnFailure] {
				return fmt.Errorf("%w: transition failure state %s not declared", ErrInvalidConfig, hop.OnFailure)
			}
		}
	}

	if c.HookTimeout <= 0 {
		return fmt.Errorf("%w: hook timeout must be positive", ErrInvalidConfig)
	}

	return nil
}
