// SPDX-License-Identifier: BSD-3-Clause

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avena-robotics/control-core/pkg/event"
)

func TestServerAcceptsValidEventAndAcks(t *testing.T) {
	var mu sync.Mutex
	var received []event.Event

	srv, err := NewServer(WithHandler(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	}))
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux := http.NewServeMux()
		mux.HandleFunc("/event", srv.handleEvent)
		mux.ServeHTTP(w, r)
	}))
	defer ts.Close()

	e := event.New(1, "orchestrator", "", 0, "listener-a", "", 0, "CMD_RUN", nil, time.Second)
	body, err := event.Marshal(e)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/event", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack ackBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, int64(1), ack.ID)
	assert.True(t, ack.Received)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "orchestrator", received[0].Source)
}

func TestServerDropsMalformedPayload(t *testing.T) {
	called := false
	srv, err := NewServer(WithHandler(func(e event.Event) { called = true }))
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleEvent))
	defer ts.Close()

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader([]byte(`{not json`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, called)
}

func TestServerDedupSkipsHandlerButStillAcks(t *testing.T) {
	count := 0
	srv, err := NewServer(WithHandler(func(e event.Event) { count++ }), WithDedup(event.NewDedup()))
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleEvent))
	defer ts.Close()

	e := event.New(1, "sensor-1", "", 0, "orchestrator", "", 0, "reading", nil, 0)
	body, err := event.Marshal(e)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 1, count)
}

func TestClientSendSucceeds(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient()
	e := event.New(1, "orchestrator", "", 0, "listener-a", "", 0, "CMD_RUN", nil, time.Second)
	err := c.Send(context.Background(), ts.URL, e)
	require.NoError(t, err)
}

func TestClientSendRetriesThenFails(t *testing.T) {
	var attempts int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(WithRetryPolicy(5*time.Millisecond, 10*time.Millisecond, 50*time.Millisecond))
	e := event.New(1, "orchestrator", "", 0, "listener-a", "", 0, "CMD_RUN", nil, time.Second)
	err := c.Send(context.Background(), ts.URL, e)
	require.Error(t, err)
	assert.Greater(t, attempts, 1)
}

func TestClientSendDoesNotRetryOn4xx(t *testing.T) {
	var attempts int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewClient(WithRetryPolicy(5*time.Millisecond, 10*time.Millisecond, 200*time.Millisecond))
	e := event.New(1, "orchestrator", "", 0, "listener-a", "", 0, "CMD_RUN", nil, time.Second)
	err := c.Send(context.Background(), ts.URL, e)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
