// SPDX-License-Identifier: BSD-3-Clause

package listener

import (
	"context"

	"github.com/avena-robotics/control-core/pkg/event"
	"github.com/avena-robotics/control-core/pkg/fsm"
)

// Behavior supplies everything domain-specific about one listener instance:
// the hooks run for each lifecycle transition, how non-lifecycle events are
// dispatched, and what runs on the local_check tick (spec.md §4.2). The
// orchestrator is the primary implementation; a minimal client listener can
// implement the same contract with simpler no-ops.
type Behavior interface {
	// OnInitialize through OnAck run while the FSM sits in the matching
	// transitional state; a non-nil error forces the machine to FAULT
	// (spec.md §3.2).
	OnInitialize(ctx context.Context) error
	OnRun(ctx context.Context) error
	OnPause(ctx context.Context) error
	OnResume(ctx context.Context) error
	OnSoftStop(ctx context.Context) error
	OnHardStop(ctx context.Context) error
	OnAck(ctx context.Context) error

	// AnalyzeEvent handles one non-lifecycle inbound event against the
	// listener's current state, returning the result to attach to the
	// reply. handled=false is not an error: the listener defers the event to
	// its processing queue (see Listener.DrainProcessing) without replying.
	AnalyzeEvent(ctx context.Context, current fsm.State, e event.Event) (handled bool, result *event.Result, err error)

	// CheckLocalData runs on every local_check tick regardless of FSM
	// state; the orchestrator uses it to drive the scenario engine.
	CheckLocalData(ctx context.Context) error
}
