// SPDX-License-Identifier: BSD-3-Clause

package fsm

// Hooks bundles the per-transition callbacks a listener supplies for its
// lifecycle table: on_initialize, on_run, on_pause, on_resume, on_soft_stop,
// on_hard_stop, on_ack. Each runs while the machine sits in the
// corresponding transitional state, unlocked, and its error return forces
// the machine to FAULT.
type Hooks struct {
	OnInitialize Hook
	OnRun        Hook
	OnPause      Hook
	OnResume     Hook
	OnSoftStop   Hook
	OnHardStop   Hook
	OnAck        Hook
}

// Lifecycle command triggers: the event_type values a listener recognizes
// as lifecycle commands rather than domain events dispatched per current
// state.
const (
	TriggerInitialized = "CMD_INITIALIZED"
	TriggerRun         = "CMD_RUN"
	TriggerPause       = "CMD_PAUSE"
	TriggerStopped     = "CMD_STOPPED"
	TriggerAck         = "CMD_ACK"
	// TriggerOnError is fired internally (never received over the wire) by
	// a worker loop or hook that caught an uncaught exception; it forces the
	// machine straight to FAULT from whatever state it was in.
	TriggerOnError = "ON_ERROR"
)

// NewListenerConfig builds the fixed Event Listener lifecycle table: every
// state and every command-driven transition a listener supports, wired to
// the supplied hooks. name identifies the listener instance for
// persistence/broadcast/error messages.
//
// Table (spec.md §3.2):
//
//	CMD_INITIALIZED  STOPPED  -> INITIALIZING -> INITIALIZED
//	CMD_INITIALIZED  RUN      -> SOFT_STOPPING -> INITIALIZED
//	CMD_RUN          INITIALIZED -> STARTING  -> RUN
//	CMD_RUN          PAUSE    -> RESUMING -> RUN
//	CMD_PAUSE        RUN      -> PAUSING  -> PAUSE
//	CMD_STOPPED      PAUSE    -> HARD_STOPPING -> STOPPED
//	CMD_STOPPED      RUN      -> PAUSING (on_pause) -> HARD_STOPPING (on_hard_stop) -> STOPPED
//	CMD_ACK          FAULT    -> STOPPED
func NewListenerConfig(name string, hooks Hooks, opts ...Option) *Config {
	base := []Option{
		WithName(name),
		WithInitialState(StateStopped),
		WithStates(
			StateUnknown,
			StateStopped,
			StateInitializing,
			StateInitialized,
			StateStarting,
			StateRun,
			StateSoftStopping,
			StatePausing,
			StateResuming,
			StatePause,
			StateHardStopping,
			StateFault,
			StateOnError,
		),

		WithHookedTransition(StateStopped, StateInitializing, TriggerInitialized, hooks.OnInitialize, StateInitialized, StateFault),
		WithHookedTransition(StateRun, StateSoftStopping, TriggerInitialized, hooks.OnSoftStop, StateInitialized, StateFault),
		WithHookedTransition(StateInitialized, StateStarting, TriggerRun, hooks.OnRun, StateRun, StateFault),
		WithHookedTransition(StatePause, StateResuming, TriggerRun, hooks.OnResume, StateRun, StateFault),
		WithHookedTransition(StateRun, StatePausing, TriggerPause, hooks.OnPause, StatePause, StateFault),
		WithHookedTransition(StatePause, StateHardStopping, TriggerStopped, hooks.OnHardStop, StateStopped, StateFault),
		WithChainedHookedTransition(StateRun, StatePausing, hooks.OnPause, StateHardStopping, hooks.OnHardStop, TriggerStopped, StateStopped, StateFault),
		WithHookedTransition(StateFault, StateStopped, TriggerAck, hooks.OnAck, StateStopped, StateFault),

		WithTransition(StateUnknown, StateFault, TriggerOnError),
		WithTransition(StateStopped, StateFault, TriggerOnError),
		WithTransition(StateInitializing, StateFault, TriggerOnError),
		WithTransition(StateInitialized, StateFault, TriggerOnError),
		WithTransition(StateStarting, StateFault, TriggerOnError),
		WithTransition(StateRun, StateFault, TriggerOnError),
		WithTransition(StateSoftStopping, StateFault, TriggerOnError),
		WithTransition(StatePausing, StateFault, TriggerOnError),
		WithTransition(StateResuming, StateFault, TriggerOnError),
		WithTransition(StatePause, StateFault, TriggerOnError),
		WithTransition(StateHardStopping, StateFault, TriggerOnError),
		WithTransition(StateOnError, StateFault, TriggerOnError),
	}

	return NewConfig(append(base, opts...)...)
}
