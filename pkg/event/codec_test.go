// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	e := New(42, "orchestrator", "10.0.0.1", 8001, "listener-a", "10.0.0.2", 9001, CmdRun, map[string]any{"reason": "startup"}, time.Second)

	b, err := Marshal(e)
	require.NoError(t, err)

	got, err := Unmarshal(b)
	require.NoError(t, err)

	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.Source, got.Source)
	assert.Equal(t, e.Destination, got.Destination)
	assert.Equal(t, e.EventType, got.EventType)
	assert.Equal(t, e.Data["reason"], got.Data["reason"])
}

func TestUnmarshalRejectsMissingSource(t *testing.T) {
	_, err := Unmarshal([]byte(`{"event_type":"CMD_RUN"}`))
	require.ErrorIs(t, err, ErrMissingSource)
}

func TestUnmarshalRejectsMissingEventType(t *testing.T) {
	_, err := Unmarshal([]byte(`{"source":"listener-a"}`))
	require.ErrorIs(t, err, ErrMissingType)
}

func TestUnmarshalRejectsMalformedJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`{not json`))
	require.ErrorIs(t, err, ErrDecodeFailed)
}
