// SPDX-License-Identifier: BSD-3-Clause

package registry

import "errors"

var (
	// ErrAlreadyRegistered indicates a tag was registered twice. Per the
	// fixed registration-order rule (spec.md §9 Open Questions), the first
	// registration wins and the second is a hard error raised at startup.
	ErrAlreadyRegistered = errors.New("registry: tag already registered")
	// ErrUnknownTag indicates a condition/action config referenced a tag
	// with no registered factory.
	ErrUnknownTag = errors.New("registry: unknown tag")
	// ErrEmptyTag indicates an attempt to register a factory under the
	// empty string.
	ErrEmptyTag = errors.New("registry: tag cannot be empty")
)

// ConditionEvaluationError wraps a panic or error recovered from a
// condition's Evaluate. Per spec.md §4.3 it is logged and treated as the
// condition returning false; it is never propagated to the caller as a
// hard failure.
type ConditionEvaluationError struct {
	Tag string
	Err error
}

func (e *ConditionEvaluationError) Error() string {
	return "condition " + e.Tag + " evaluation failed: " + e.Err.Error()
}

func (e *ConditionEvaluationError) Unwrap() error { return e.Err }

// ActionExecutionError wraps the error (or recovered panic) from an
// action's Execute. Per spec.md §4.3/§7 it aborts the enclosing scenario
// instance and increments that action kind's consecutive-error counter.
type ActionExecutionError struct {
	ActionType string
	Message    string
	Cause      error
}

func (e *ActionExecutionError) Error() string {
	if e.Cause != nil {
		return "action " + e.ActionType + " failed: " + e.Message + ": " + e.Cause.Error()
	}
	return "action " + e.ActionType + " failed: " + e.Message
}

func (e *ActionExecutionError) Unwrap() error { return e.Cause }
