// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"regexp"
	"strings"
	"sync"
)

// tagPattern matches the derived-tag rule: snake_case, no leading/trailing
// underscore.
var tagPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$`)

// DeriveTag converts an exported Go type name into the snake_case tag the
// source would have derived from a class name (stripping a trailing
// "Condition" or "Action" suffix first). RegisterCondition/RegisterAction
// callers may use this, or pass an explicit tag (the equivalent of a class
// defining its own action_type).
func DeriveTag(typeName string) string {
	typeName = strings.TrimSuffix(typeName, "Condition")
	typeName = strings.TrimSuffix(typeName, "Action")

	var b strings.Builder
	for i, r := range typeName {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// conditionEntry pairs a registered Condition with its tag.
type conditionEntry struct {
	tag  string
	cond Condition
}

type actionEntry struct {
	tag string
	act Action
}

// Registry is the process-wide factory of condition and action kinds,
// keyed by tag. One Registry is normally shared by an entire orchestrator
// process; Register is safe to call concurrently but is expected to happen
// only during startup, before any scenario tick runs.
type Registry struct {
	mu         sync.RWMutex
	conditions map[string]conditionEntry
	actions    map[string]actionEntry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		conditions: make(map[string]conditionEntry),
		actions:    make(map[string]actionEntry),
	}
}

// RegisterCondition adds cond under tag. A second registration of the same
// tag — whether from a built-in kind or one supplied later — is a hard
// error; orchestrator.New returns it and does not start.
func (r *Registry) RegisterCondition(tag string, cond Condition) error {
	if tag == "" {
		return ErrEmptyTag
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conditions[tag]; exists {
		return &registrationError{kind: "condition", tag: tag}
	}
	r.conditions[tag] = conditionEntry{tag: tag, cond: cond}
	return nil
}

// RegisterAction adds act under tag, with the same first-registration-wins
// semantics as RegisterCondition.
func (r *Registry) RegisterAction(tag string, act Action) error {
	if tag == "" {
		return ErrEmptyTag
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[tag]; exists {
		return &registrationError{kind: "action", tag: tag}
	}
	r.actions[tag] = actionEntry{tag: tag, act: act}
	return nil
}

// Condition looks up a registered condition kind by tag.
func (r *Registry) Condition(tag string) (Condition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conditions[tag]
	if !ok {
		return nil, &lookupError{kind: "condition", tag: tag}
	}
	return e.cond, nil
}

// Action looks up a registered action kind by tag.
func (r *Registry) Action(tag string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.actions[tag]
	if !ok {
		return nil, &lookupError{kind: "action", tag: tag}
	}
	return e.act, nil
}

// ConditionTags lists every registered condition tag, for diagnostics.
func (r *Registry) ConditionTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.conditions))
	for t := range r.conditions {
		tags = append(tags, t)
	}
	return tags
}

// ActionTags lists every registered action tag, for diagnostics.
func (r *Registry) ActionTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.actions))
	for t := range r.actions {
		tags = append(tags, t)
	}
	return tags
}

type registrationError struct {
	kind string
	tag  string
}

func (e *registrationError) Error() string {
	return ErrAlreadyRegistered.Error() + ": " + e.kind + " " + e.tag
}

func (e *registrationError) Unwrap() error { return ErrAlreadyRegistered }

type lookupError struct {
	kind string
	tag  string
}

func (e *lookupError) Error() string {
	return ErrUnknownTag.Error() + ": " + e.kind + " " + e.tag
}

func (e *lookupError) Unwrap() error { return ErrUnknownTag }
