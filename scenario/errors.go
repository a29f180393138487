// SPDX-License-Identifier: BSD-3-Clause

package scenario

import "errors"

var (
	// ErrScenarioValidation indicates a scenario file failed schema
	// validation; the file is logged and skipped, never fatal to loading
	// the rest of the directory (spec.md §4.5, §7).
	ErrScenarioValidation = errors.New("scenario: validation failed")
	// ErrDuplicateScenario indicates two loaded files declared the same
	// scenario name; the first loaded wins, mirroring the registry's
	// first-registration-wins rule.
	ErrDuplicateScenario = errors.New("scenario: duplicate name")
	// ErrUnknownScenario indicates execute_scenario or a manual-run request
	// referenced a name with no loaded scenario.
	ErrUnknownScenario = errors.New("scenario: unknown name")
	// ErrInvalidSelector indicates a selector named an unknown client or an
	// undeclared group, or set none of its fields. A selector that resolves
	// to no clients is not an error.
	ErrInvalidSelector = errors.New("scenario: invalid selector")
	// ErrScenarioCancelled indicates the scenario's execution was cancelled
	// by context, typically on orchestrator shutdown.
	ErrScenarioCancelled = errors.New("scenario: execution cancelled")
)
