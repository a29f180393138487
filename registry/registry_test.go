// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/avena-robotics/control-core/pkg/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTag(t *testing.T) {
	assert.Equal(t, "client_state", DeriveTag("ClientStateCondition"))
	assert.Equal(t, "send_command", DeriveTag("SendCommandAction"))
	assert.Equal(t, "log_event", DeriveTag("LogEventAction"))
}

func TestRegisterConditionDuplicateIsHardError(t *testing.T) {
	r := New()
	cond := ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		return true, nil, nil
	})
	require.NoError(t, r.RegisterCondition("custom", cond))
	err := r.RegisterCondition("custom", cond)
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	got, err := r.Condition("custom")
	require.NoError(t, err)
	ok, _, err := got.Evaluate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLookupUnknownTag(t *testing.T) {
	r := New()
	_, err := r.Condition("missing")
	assert.ErrorIs(t, err, ErrUnknownTag)
	_, err = r.Action("missing")
	assert.ErrorIs(t, err, ErrUnknownTag)
}

// fakeDispatcher evaluates a single named leaf tag via a lookup table,
// enough to exercise the logical operators without a real scenario engine.
type fakeDispatcher struct {
	leaves map[string]bool
}

func (d *fakeDispatcher) EvaluateConditionTree(ctx context.Context, node map[string]any, sctx *Context) (bool, map[string]any, error) {
	for tag := range node {
		if ok, found := d.leaves[tag]; found {
			return ok, nil, nil
		}
	}
	return false, nil, nil
}
func (d *fakeDispatcher) RunActions(ctx context.Context, actions []map[string]any, sctx *Context) error {
	return nil
}
func (d *fakeDispatcher) ResolveSelector(sel Selector, sctx *Context) ([]string, error) {
	return nil, nil
}
func (d *fakeDispatcher) ExecuteScenario(ctx context.Context, name string, sctx *Context) error {
	return nil
}
func (d *fakeDispatcher) WaitForState(ctx context.Context, names []string, targetStates []fsm.State, timeout time.Duration) bool {
	return false
}

func TestLogicalConditionsCompose(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltinConditions(r))

	disp := &fakeDispatcher{leaves: map[string]bool{"a": true, "b": false}}
	sctx := &Context{Dispatcher: disp}

	and, err := r.Condition(TagAnd)
	require.NoError(t, err)
	ok, _, err := and.Evaluate(context.Background(), map[string]any{
		"conditions": []any{map[string]any{"a": map[string]any{}}, map[string]any{"b": map[string]any{}}},
	}, sctx)
	require.NoError(t, err)
	assert.False(t, ok)

	or, err := r.Condition(TagOr)
	require.NoError(t, err)
	ok, _, err = or.Evaluate(context.Background(), map[string]any{
		"conditions": []any{map[string]any{"a": map[string]any{}}, map[string]any{"b": map[string]any{}}},
	}, sctx)
	require.NoError(t, err)
	assert.True(t, ok)

	not, err := r.Condition(TagNot)
	require.NoError(t, err)
	ok, _, err = not.Evaluate(context.Background(), map[string]any{"conditions": map[string]any{"a": map[string]any{}}}, sctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientStateCondition(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltinConditions(r))
	cond, err := r.Condition(TagClientState)
	require.NoError(t, err)

	sctx := &Context{Clients: ClientsView{
		"io": {Name: "io", FSMState: fsm.StateRun},
	}}

	ok, _, err := cond.Evaluate(context.Background(), map[string]any{"client": "io", "state": "RUN"}, sctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = cond.Evaluate(context.Background(), map[string]any{"client": "io", "state": "FAULT"}, sctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = cond.Evaluate(context.Background(), map[string]any{"client": "missing", "state": "RUN"}, sctx)
	assert.Error(t, err)
}

func TestErrorMessageConditionRegexBindsGroups(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltinConditions(r))
	cond, err := r.Condition(TagErrorMessage)
	require.NoError(t, err)

	sctx := &Context{Clients: ClientsView{
		"io": {Name: "io", Error: true, ErrorMessage: "code=E42 sensor offline"},
	}}

	ok, bindings, err := cond.Evaluate(context.Background(), map[string]any{
		"mode":       "regex",
		"pattern":    `code=(?P<code>\w+)`,
		"only_fault": true,
	}, sctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "E42", bindings["match_code"])
	assert.Equal(t, "io", bindings["client"])
}

func TestVirtualDeviceErrorCondition(t *testing.T) {
	r := New()
	require.NoError(t, RegisterBuiltinConditions(r))
	cond, err := r.Condition(TagVirtualDeviceError)
	require.NoError(t, err)

	sctx := &Context{Clients: ClientsView{
		"io": {Name: "io", Extra: map[string]any{
			"io_server": map[string]any{
				"failed_virtual_devices": map[string]any{
					"dev-1": map[string]any{
						"device_type":          "modbus",
						"physical_device_name": "PLC-A",
						"error_message":        "timeout",
					},
				},
			},
		}},
	}}

	ok, bindings, err := cond.Evaluate(context.Background(), map[string]any{"client": "io", "device_type": "modbus"}, sctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "PLC-A", bindings["physical_device_name"])
}
