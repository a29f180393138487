// SPDX-License-Identifier: BSD-3-Clause

package listener

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueTryPushAndPop(t *testing.T) {
	q := newQueue[int](2)
	require.NoError(t, q.tryPush(1))
	require.NoError(t, q.tryPush(2))
	assert.ErrorIs(t, q.tryPush(3), ErrQueueFull)

	ctx := context.Background()
	v, ok := q.pop(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestQueuePopRespectsContextCancellation(t *testing.T) {
	q := newQueue[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok := q.pop(ctx)
	assert.False(t, ok)
}

func TestQueueDrain(t *testing.T) {
	q := newQueue[int](4)
	require.NoError(t, q.tryPush(1))
	require.NoError(t, q.tryPush(2))
	items := q.drain()
	assert.Equal(t, []int{1, 2}, items)
	assert.Equal(t, 0, q.len())
}
