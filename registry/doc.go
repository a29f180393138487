// SPDX-License-Identifier: BSD-3-Clause

// Package registry implements the Condition & Action Registry: a pair of
// process-wide factories keyed by tag, plus the standard condition and
// action kinds the scenario engine ships with. Built-in kinds register
// themselves from init-time constructors called explicitly by the
// orchestrator at startup (see RegisterBuiltinConditions,
// RegisterBuiltinActions) rather than via filesystem module discovery: the
// source's dynamic class-scanning approach has no equivalent in a compiled,
// statically-linked binary, so tag -> implementation wiring is made explicit
// here instead.
package registry
