// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupDetectsRepeatFromSameSender(t *testing.T) {
	d := NewDedup()
	e := New(7, "sensor-1", "", 0, "orchestrator", "", 0, "reading", nil, 0)

	assert.False(t, d.Seen(e))
	assert.True(t, d.Seen(e))
}

func TestDedupIsolatesPerSender(t *testing.T) {
	d := NewDedup()
	a := New(7, "sensor-1", "", 0, "orchestrator", "", 0, "reading", nil, 0)
	b := New(7, "sensor-2", "", 0, "orchestrator", "", 0, "reading", nil, 0)

	assert.False(t, d.Seen(a))
	assert.False(t, d.Seen(b))
}

func TestDedupExpiresAfterTTL(t *testing.T) {
	d := NewDedup()
	e := New(7, "sensor-1", "", 0, "orchestrator", "", 0, "reading", nil, 0)

	now := time.Now()
	assert.False(t, d.seenAt(e, now))
	assert.True(t, d.seenAt(e, now.Add(time.Minute)))
	assert.False(t, d.seenAt(e, now.Add(dedupWindowTTL+time.Second)))
}

func TestDedupWindowEvictsOldestOnOverflow(t *testing.T) {
	d := NewDedup()
	now := time.Now()

	for i := int64(0); i < dedupWindowSize; i++ {
		e := New(i, "sensor-1", "", 0, "orchestrator", "", 0, "reading", nil, 0)
		assert.False(t, d.seenAt(e, now))
	}

	overflow := New(dedupWindowSize, "sensor-1", "", 0, "orchestrator", "", 0, "reading", nil, 0)
	assert.False(t, d.seenAt(overflow, now))

	evicted := New(0, "sensor-1", "", 0, "orchestrator", "", 0, "reading", nil, 0)
	assert.False(t, d.seenAt(evicted, now))
}
