// SPDX-License-Identifier: BSD-3-Clause

package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerEnforcesMaxConcurrentExecutions(t *testing.T) {
	s := &Scenario{Name: "x", MaxConcurrentExecutions: 1}
	tr := newTracker(s)

	ok, _ := tr.tryStart()
	require.True(t, ok)
	ok, reason := tr.tryStart()
	assert.False(t, ok)
	assert.Equal(t, "max_concurrent_executions_reached", reason)

	tr.finish(true)
	ok, _ = tr.tryStart()
	assert.True(t, ok)
}

func TestTrackerEnforcesMaxExecutions(t *testing.T) {
	s := &Scenario{Name: "x", MaxConcurrentExecutions: 5, MaxExecutions: 1}
	tr := newTracker(s)

	ok, _ := tr.tryStart()
	require.True(t, ok)
	tr.finish(true)

	ok, reason := tr.tryStart()
	assert.False(t, ok)
	assert.Equal(t, "max_executions_reached", reason)

	ec, _ := tr.snapshot()
	assert.EqualValues(t, 1, ec)
}

func TestTrackerFailedRunDoesNotCountTowardMaxExecutions(t *testing.T) {
	s := &Scenario{Name: "x", MaxConcurrentExecutions: 5, MaxExecutions: 1}
	tr := newTracker(s)

	ok, _ := tr.tryStart()
	require.True(t, ok)
	tr.finish(false)

	ok, _ = tr.tryStart()
	assert.True(t, ok)
	ec, _ := tr.snapshot()
	assert.EqualValues(t, 0, ec)
}

func TestTrackerCooldownBlocksUntilWindowElapses(t *testing.T) {
	s := &Scenario{Name: "x", MaxConcurrentExecutions: 5, Cooldown: 50 * time.Millisecond}
	tr := newTracker(s)

	ok, _ := tr.tryStart()
	require.True(t, ok)
	tr.finish(true)

	ok, reason := tr.tryStart()
	assert.False(t, ok)
	assert.Equal(t, "cooldown_active", reason)

	time.Sleep(60 * time.Millisecond)
	ok, _ = tr.tryStart()
	assert.True(t, ok)
}

func TestTrackerResetClearsCounters(t *testing.T) {
	s := &Scenario{Name: "x", MaxConcurrentExecutions: 1, MaxExecutions: 1}
	tr := newTracker(s)
	ok, _ := tr.tryStart()
	require.True(t, ok)
	tr.finish(true)

	_, reason := tr.tryStart()
	assert.Equal(t, "max_executions_reached", reason)

	tr.reset()
	ok, _ = tr.tryStart()
	assert.True(t, ok)
}
