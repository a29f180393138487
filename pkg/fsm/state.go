// SPDX-License-Identifier: BSD-3-Clause

package fsm

// State is one of the fixed listener lifecycle states. Values are stable
// wire constants: they are reported verbatim in CMD_GET_STATE replies, so
// existing numbers are never renumbered.
type State int

const (
	StateUnknown       State = -1
	StateStopped       State = 0
	StateInitializing  State = 1
	StateInitialized   State = 2
	StateStarting      State = 3
	StateRun           State = 4
	StateSoftStopping  State = 5
	StatePausing       State = 6
	StateResuming      State = 7
	StatePause         State = 8
	StateHardStopping  State = 9
	StateFault         State = 10
	StateOnError       State = 11
)

var stateNames = map[State]string{
	StateUnknown:      "UNKNOWN",
	StateStopped:      "STOPPED",
	StateInitializing: "INITIALIZING",
	StateInitialized:  "INITIALIZED",
	StateStarting:     "STARTING",
	StateRun:          "RUN",
	StateSoftStopping: "SOFT_STOPPING",
	StatePausing:      "PAUSING",
	StateResuming:     "RESUMING",
	StatePause:        "PAUSE",
	StateHardStopping: "HARD_STOPPING",
	StateFault:        "FAULT",
	StateOnError:      "ON_ERROR",
}

// String renders the wire name of a state, or "UNKNOWN" for an unrecognized
// value.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// FromString parses a wire state name back into a State, returning
// StateUnknown for anything unrecognized (e.g. a client running a newer
// listener revision with extra states).
func FromString(name string) State {
	for s, n := range stateNames {
		if n == name {
			return s
		}
	}
	return StateUnknown
}

// IsTransitional reports whether s is one of the transitional states entered
// while a lifecycle hook runs (STARTING, SOFT_STOPPING, PAUSING, RESUMING,
// HARD_STOPPING, INITIALIZING). A crash or hook exception from one of these
// always resolves to FAULT, never back to a steady state.
func (s State) IsTransitional() bool {
	switch s {
	case StateInitializing, StateStarting, StateSoftStopping, StatePausing, StateResuming, StateHardStopping:
		return true
	default:
		return false
	}
}
