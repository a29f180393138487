// SPDX-License-Identifier: BSD-3-Clause

package listener

import "errors"

var (
	// ErrNoBehavior indicates a Listener was built without WithBehavior.
	ErrNoBehavior = errors.New("listener: behavior is required")
	// ErrUnknownDestination indicates Emit was asked to reach a destination
	// with no configured address.
	ErrUnknownDestination = errors.New("listener: unknown destination")
	// ErrEmitTimeout indicates Emit's destination never replied within its
	// maximum processing time.
	ErrEmitTimeout = errors.New("listener: emit timed out waiting for reply")
	// ErrQueueFull indicates a bounded queue rejected a push; the caller
	// decides whether to drop, log, or block.
	ErrQueueFull = errors.New("listener: queue full")
	// ErrNotRunning indicates an operation that requires the listener's
	// worker loops to be running, that Run has not yet been called.
	ErrNotRunning = errors.New("listener: not running")
)
