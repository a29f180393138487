// SPDX-License-Identifier: BSD-3-Clause

package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsMissingName(t *testing.T) {
	cfg := NewConfig(WithStates(StateStopped), WithInitialState(StateStopped))
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejectsUnknownInitialState(t *testing.T) {
	cfg := NewConfig(WithName("x"), WithStates(StateStopped), WithInitialState(StateRun))
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsDuplicateTransition(t *testing.T) {
	cfg := NewConfig(
		WithName("x"),
		WithStates(StateStopped, StateRun),
		WithInitialState(StateStopped),
		WithTransition(StateStopped, StateRun, "go"),
		WithTransition(StateStopped, StateRun, "go"),
	)
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedTable(t *testing.T) {
	cfg := NewConfig(
		WithName("x"),
		WithStates(StateStopped, StateRun),
		WithInitialState(StateStopped),
		WithTransition(StateStopped, StateRun, "go"),
	)
	require.NoError(t, cfg.Validate())
}

func TestNewListenerConfigIsWellFormed(t *testing.T) {
	cfg := NewListenerConfig("listener-a", Hooks{})
	require.NoError(t, cfg.Validate())
}
