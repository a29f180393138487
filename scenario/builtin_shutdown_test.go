// SPDX-License-Identifier: BSD-3-Clause

package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGracefulShutdownScenarioReversesOrder(t *testing.T) {
	s := NewGracefulShutdownScenario([]string{"io", "vision", "arm"}, 5*time.Second)

	assert.Equal(t, ShutdownScenarioName, s.Name)
	assert.Equal(t, TriggerManual, s.Trigger.Type)
	require.Len(t, s.Actions, 6)

	assert.Equal(t, "send_command", s.Actions[0]["type"])
	assert.Equal(t, "arm", s.Actions[0]["client"])
	assert.Equal(t, "wait_for_state", s.Actions[1]["type"])
	assert.Equal(t, "arm", s.Actions[1]["client"])

	assert.Equal(t, "io", s.Actions[4]["client"])
	assert.Equal(t, "io", s.Actions[5]["client"])
}
