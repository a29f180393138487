// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
	"clients": {
		"arm-1": { "address": "127.0.0.1", "port": 9001, "groups": ["arms"] },
		"arm-2": { "address": "127.0.0.1", "port": 9002, "groups": ["arms"] }
	},
	"builtin_scenarios_directory": "./scenarios/builtin",
	"scenarios_directory": "./scenarios",
	"shutdown_order": ["arm-1", "arm-2"],
	"shutdown_step_millis": 2000,
	"check_interval_millis": 500,
	"message_bus": true
}`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orchestrator.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))
	return path
}

func TestLoadFileConfigParsesClients(t *testing.T) {
	fc, err := loadFileConfig(writeSampleConfig(t))
	require.NoError(t, err)

	require.Contains(t, fc.Clients, "arm-1")
	assert.Equal(t, 9001, fc.Clients["arm-1"].Port)
	assert.Equal(t, []string{"arms"}, fc.Clients["arm-1"].Groups)
	assert.True(t, fc.MessageBus)
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	_, err := loadFileConfig(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}

func TestToOptionsBuildsOrchestrator(t *testing.T) {
	fc, err := loadFileConfig(writeSampleConfig(t))
	require.NoError(t, err)

	opts := fc.toOptions("fleet-orchestrator")
	assert.NotEmpty(t, opts)
}

const sampleYAMLConfig = `
clients:
  arm-1:
    address: 127.0.0.1
    port: 9001
    groups: ["arms"]
shutdown_order: ["arm-1"]
message_bus: true
`

func TestLoadFileConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAMLConfig), 0644))

	fc, err := loadFileConfig(path)
	require.NoError(t, err)

	require.Contains(t, fc.Clients, "arm-1")
	assert.Equal(t, 9001, fc.Clients["arm-1"].Port)
	assert.True(t, fc.MessageBus)
}

func TestLoadFileConfigOmittedMaxConcurrentScenariosIsNil(t *testing.T) {
	fc, err := loadFileConfig(writeSampleConfig(t))
	require.NoError(t, err)
	assert.Nil(t, fc.MaxConcurrentScenarios)
}

func TestLoadFileConfigExplicitZeroMaxConcurrentScenariosIsPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"clients": {"arm-1": {"address": "127.0.0.1", "port": 9001}}, "max_concurrent_scenarios": 0}`), 0644))

	fc, err := loadFileConfig(path)
	require.NoError(t, err)
	require.NotNil(t, fc.MaxConcurrentScenarios)
	assert.Equal(t, 0, *fc.MaxConcurrentScenarios)

	opts := fc.toOptions("fleet-orchestrator")
	assert.NotEmpty(t, opts)
}
