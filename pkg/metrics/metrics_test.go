// SPDX-License-Identifier: BSD-3-Clause

package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	FSMTransitionsTotal.WithLabelValues("listener-a", "CMD_START", "RUN").Inc()
	ActionExecutionsTotal.WithLabelValues("send_command", "success").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "control_core_fsm_transitions_total")
	assert.Contains(t, rec.Body.String(), "control_core_action_executions_total")
}
