// SPDX-License-Identifier: BSD-3-Clause

// Package persist is a bbolt-backed best-effort snapshot store (grounded on
// the teacher's pkg/storage BoltStore) for an orchestrator's FSM state and
// scenario execution counters (spec.md §3.3, §3.9; SPEC_FULL.md §5). It
// records the latest values only; nothing in this repository reads them
// back at startup. An error from Open is returned to the caller, and
// orchestrator.New fails with it.
package persist
