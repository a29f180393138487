// SPDX-License-Identifier: BSD-3-Clause

// Package bus wraps an embedded, in-process NATS server (grounded on the
// teacher's service/ipc package) that the orchestrator optionally starts to
// broadcast FSM transitions for dashboard/audit consumers (SPEC_FULL.md §3 "Internal pub/sub"). It is never required
// for correctness: control-plane logic never blocks on or depends on a
// subscriber existing.
package bus
