// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplySwapsSourceAndDestinationAndPreservesID(t *testing.T) {
	var gen IDGenerator
	id := gen.Next()

	req := New(id, "orchestrator", "127.0.0.1", 8001, "listener-a", "127.0.0.1", 9001, CmdRun, nil, time.Second)
	reply := Reply(req, true, "running", map[string]any{"state": "RUN"})

	assert.Equal(t, req.ID, reply.ID)
	assert.Equal(t, req.Destination, reply.Source)
	assert.Equal(t, req.DestinationAddress, reply.SourceAddress)
	assert.Equal(t, req.DestinationPort, reply.SourcePort)
	assert.Equal(t, req.Source, reply.Destination)
	assert.Equal(t, req.SourceAddress, reply.DestinationAddress)
	assert.Equal(t, req.SourcePort, reply.DestinationPort)
	require.NotNil(t, reply.Result)
	assert.True(t, reply.Result.Success)
	assert.True(t, IsReplyTo(req, reply))
}

func TestIDGeneratorMonotonic(t *testing.T) {
	var gen IDGenerator
	a := gen.Next()
	b := gen.Next()
	assert.Less(t, a, b)
}

func TestIsLifecycleCommand(t *testing.T) {
	assert.True(t, IsLifecycleCommand(CmdRun))
	assert.True(t, IsLifecycleCommand(CmdHealthCheck))
	assert.False(t, IsLifecycleCommand("door_open"))
}

func TestKeyOfIdentifiesSenderAndID(t *testing.T) {
	e1 := New(1, "sensor-1", "", 0, "orchestrator", "", 0, "reading", nil, 0)
	e2 := New(1, "sensor-2", "", 0, "orchestrator", "", 0, "reading", nil, 0)
	assert.NotEqual(t, KeyOf(e1), KeyOf(e2))
}
