// SPDX-License-Identifier: BSD-3-Clause

// Package orchestrator implements the Orchestrator (spec.md §4.6): the
// listener.Behavior that polls every configured client's CMD_GET_STATE,
// merges replies into a live client registry, and drives the Scenario
// Engine's tick from the listener's local_check worker loop.
package orchestrator
