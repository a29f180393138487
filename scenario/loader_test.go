// SPDX-License-Identifier: BSD-3-Clause

package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

func TestLoadDirParsesValidScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "io_offline.json", `{
		"name": "io_offline",
		"priority": 10,
		"cooldown": 30,
		"trigger": {"type": "automatic", "conditions": {"client_state": {"client": "io", "state": "FAULT"}}},
		"actions": [{"type": "log_event", "level": "warn", "message": "io offline"}]
	}`)

	scenarios, errs := LoadDir(dir)
	require.Empty(t, errs)
	require.Len(t, scenarios, 1)
	s := scenarios[0]
	assert.Equal(t, "io_offline", s.Name)
	assert.Equal(t, 10, s.Priority)
	assert.Equal(t, 30*time.Second, s.Cooldown)
	assert.Equal(t, TriggerAutomatic, s.Trigger.Type)
	assert.Len(t, s.Actions, 1)
}

func TestLoadDirSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.json", `{"description": "missing name and trigger"}`)
	writeScenario(t, dir, "ok.json", `{
		"name": "ok",
		"trigger": {"type": "manual"},
		"actions": [{"type": "log_event", "message": "hi"}]
	}`)

	scenarios, errs := LoadDir(dir)
	require.Len(t, errs, 1)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "ok", scenarios[0].Name)
}

func TestLoadDirMissingDirectoryIsNotAnError(t *testing.T) {
	scenarios, errs := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, errs)
	assert.Empty(t, scenarios)
}

func TestLoadAllFirstWinsOnDuplicateName(t *testing.T) {
	builtin := t.TempDir()
	user := t.TempDir()
	writeScenario(t, builtin, "a.json", `{"name": "dup", "priority": 5, "trigger": {"type": "manual"}, "actions": []}`)
	writeScenario(t, user, "a.json", `{"name": "dup", "priority": 999, "trigger": {"type": "manual"}, "actions": []}`)
	writeScenario(t, user, "b.json", `{"name": "second", "priority": 1, "trigger": {"type": "manual"}, "actions": []}`)

	scenarios, errs := LoadAll(builtin, user)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDuplicateScenario)
	require.Len(t, scenarios, 2)
	// sorted by priority ascending: "second" (1) before "dup" (5)
	assert.Equal(t, "second", scenarios[0].Name)
	assert.Equal(t, "dup", scenarios[1].Name)
	assert.Equal(t, 5, scenarios[1].Priority)
}
