// SPDX-License-Identifier: BSD-3-Clause

// Package listener implements the Event Listener Runtime (spec.md §4.2): a
// state-machine-driven process that ingests events over pkg/transport,
// classifies lifecycle commands against its pkg/fsm.FSM, buffers and
// replays domain events across a pause, and emits outbound requests while
// correlating their replies. Domain-specific event handling and periodic
// local checks are supplied by a Behavior implementation (e.g. the
// orchestrator).
package listener
