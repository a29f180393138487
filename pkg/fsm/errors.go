// SPDX-License-Identifier: BSD-3-Clause

package fsm

import "errors"

var (
	// ErrInvalidConfig indicates a malformed FSM configuration.
	ErrInvalidConfig = errors.New("invalid fsm config")
	// ErrInvalidTransition indicates a command that is not permitted from the
	// current state. Per the lifecycle contract this never panics or blocks
	// the caller: the listener replies success=false and the state is left
	// unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrTransitionTimeout indicates a lifecycle hook exceeded its allotted
	// time budget while the machine sat in a transitional state.
	ErrTransitionTimeout = errors.New("state transition timed out")
	// ErrHookFailed indicates a lifecycle hook (on_initialize, on_run,
	// on_pause, on_stop, on_ack) returned an error, forcing the machine to
	// FAULT.
	ErrHookFailed = errors.New("lifecycle hook failed")
	// ErrMachineNotStarted indicates Fire was called before Start.
	ErrMachineNotStarted = errors.New("state machine not started")
	// ErrMachineStopped indicates Fire was called after Stop.
	ErrMachineStopped = errors.New("state machine stopped")
	// ErrAlreadyRegistered indicates a duplicate machine name was registered
	// with a Registry; the first registration always wins.
	ErrAlreadyRegistered = errors.New("state machine already registered")
	// ErrNotRegistered indicates a lookup for an unknown machine name.
	ErrNotRegistered = errors.New("state machine not registered")
)

// HookFailure wraps the error returned by a lifecycle hook, recording which
// state/trigger pair triggered it.
type HookFailure struct {
	State   State
	Trigger string
	Err     error
}

func (e *HookFailure) Error() string {
	return "hook failed in state " + e.State.String() + " on " + e.Trigger + ": " + e.Err.Error()
}

func (e *HookFailure) Unwrap() error {
	return e.Err
}
