// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avena-robotics/control-core/pkg/fsm"
	"github.com/avena-robotics/control-core/scenario"
)

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{
		WithName("fleet-orchestrator"),
		WithListenAddr(":0"),
		WithClients(
			ClientConfig{Name: "arm-1", Address: "127.0.0.1", Port: 9001},
			ClientConfig{Name: "arm-2", Address: "127.0.0.1", Port: 9002},
		),
		WithShutdownOrder([]string{"arm-1", "arm-2"}, time.Second),
	}
	o, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return o
}

func TestNewRequiresName(t *testing.T) {
	_, err := New(WithListenAddr(":0"))
	assert.Error(t, err)
}

func TestNewRejectsDuplicateClients(t *testing.T) {
	_, err := New(
		WithName("fleet-orchestrator"),
		WithClients(
			ClientConfig{Name: "arm-1", Address: "127.0.0.1", Port: 9001},
			ClientConfig{Name: "arm-1", Address: "127.0.0.1", Port: 9002},
		),
	)
	assert.ErrorIs(t, err, ErrDuplicateClient)
}

func TestClientsSnapshotReflectsConfiguredFleet(t *testing.T) {
	o := newTestOrchestrator(t)

	view := o.Clients()
	require.Len(t, view, 2)
	assert.Equal(t, fsm.StateUnknown, view["arm-1"].FSMState)
	assert.Equal(t, fsm.StateUnknown, view["arm-2"].FSMState)
}

func TestRequestShutdownFlagsBuiltinScenario(t *testing.T) {
	o := newTestOrchestrator(t)
	assert.NoError(t, o.RequestShutdown())
}

func TestRequestManualRunUnknownScenario(t *testing.T) {
	o := newTestOrchestrator(t)
	err := o.RequestManualRun("does-not-exist")
	assert.ErrorIs(t, err, scenario.ErrUnknownScenario)
}

func TestPersistenceWiresScenarioCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.db")
	o := newTestOrchestrator(t, WithPersistence(path))
	require.NotNil(t, o.store)
	t.Cleanup(func() { o.store.Close() })

	require.NoError(t, o.RequestShutdown())
	o.persistScenarioCounters()

	counters, err := o.store.LoadAllScenarioCounters()
	require.NoError(t, err)
	assert.Contains(t, counters, scenario.ShutdownScenarioName)
}

func TestInstanceIDIsStableAcrossRestartsWithPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.db")

	first := newTestOrchestrator(t, WithPersistence(path))
	require.NotEmpty(t, first.InstanceID())
	require.NoError(t, first.store.Close())

	second := newTestOrchestrator(t, WithPersistence(path))
	t.Cleanup(func() { second.store.Close() })
	assert.Equal(t, first.InstanceID(), second.InstanceID())
}

func TestInstanceIDIsEphemeralWithoutPersistence(t *testing.T) {
	a := newTestOrchestrator(t)
	b := newTestOrchestrator(t)
	assert.NotEmpty(t, a.InstanceID())
	assert.NotEqual(t, a.InstanceID(), b.InstanceID())
}

func TestMessageBusIsOptional(t *testing.T) {
	o := newTestOrchestrator(t)
	assert.Nil(t, o.bus)

	withBus := newTestOrchestrator(t, WithMessageBus(true))
	assert.NotNil(t, withBus.bus)
}

// TestPollClientsBlocksUntilEveryPollLands drives pollClients against
// clients with nothing listening on their configured ports, so every Emit
// resolves by timing out. pollClients must not return until all of them
// have: immediately after it returns, every client is already marked
// unreachable, with no further settling needed.
func TestPollClientsBlocksUntilEveryPollLands(t *testing.T) {
	o := newTestOrchestrator(t, WithClientPollTimeout(20*time.Millisecond))

	o.pollClients(context.Background())

	view := o.Clients()
	for name, state := range view {
		assert.True(t, state.Error, "client %s should be marked unreachable once pollClients returns", name)
		assert.NotZero(t, state.LastUpdatedAt, "client %s poll result should already be applied", name)
	}
}
