// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avena-robotics/control-core/orchestrator"
)

// clientConfig is one entry of the "clients" mapping in the configuration
// schema (spec.md §6.2).
type clientConfig struct {
	Address string   `json:"address" yaml:"address"`
	Port    int      `json:"port" yaml:"port"`
	Groups  []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// fileConfig mirrors the configuration schema's mapping (spec.md §6.2),
// loaded from either JSON or YAML depending on the config file's extension.
// Components, SMTP and SMS are accepted and preserved for the benefit of
// external action kinds (spec.md §6.3) but the core itself does not
// construct components from them; a deployment wires concrete
// registry.Component implementations in code and passes them to
// orchestrator.WithComponents separately.
type fileConfig struct {
	Clients    map[string]clientConfig `json:"clients" yaml:"clients"`
	Components map[string]any          `json:"components,omitempty" yaml:"components,omitempty"`
	SMTP       map[string]any          `json:"smtp,omitempty" yaml:"smtp,omitempty"`
	SMS        map[string]any          `json:"sms,omitempty" yaml:"sms,omitempty"`

	BuiltinScenariosDirectory string `json:"builtin_scenarios_directory" yaml:"builtin_scenarios_directory"`
	ScenariosDirectory        string `json:"scenarios_directory" yaml:"scenarios_directory"`

	ListenAddr         string   `json:"listen_addr" yaml:"listen_addr"`
	MetricsAddr        string   `json:"metrics_addr" yaml:"metrics_addr"`
	PersistPath        string   `json:"persist_path" yaml:"persist_path"`
	MessageBus         bool     `json:"message_bus" yaml:"message_bus"`
	ShutdownOrder      []string `json:"shutdown_order" yaml:"shutdown_order"`
	ShutdownStepMillis int      `json:"shutdown_step_millis" yaml:"shutdown_step_millis"`
	CheckIntervalMilli int      `json:"check_interval_millis" yaml:"check_interval_millis"`
	PollTimeoutMillis  int      `json:"poll_timeout_millis" yaml:"poll_timeout_millis"`

	// MaxConcurrentScenarios is a pointer so an absent key leaves the engine's
	// cap disabled, while an explicit 0 is honored as "never run anything"
	// (spec.md §6.2/§4.5 step 2c).
	MaxConcurrentScenarios *int `json:"max_concurrent_scenarios,omitempty" yaml:"max_concurrent_scenarios,omitempty"`
}

// loadFileConfig reads and parses the orchestrator's configuration file.
// ".yaml"/".yml" is parsed as YAML; everything else as JSON (spec.md §6.2
// names a JSON schema, but both map onto the same fileConfig one-for-one).
func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	return &fc, nil
}

// toOptions converts fc into the orchestrator.Option set New expects.
func (fc *fileConfig) toOptions(name string) []orchestrator.Option {
	opts := []orchestrator.Option{orchestrator.WithName(name)}

	if fc.ListenAddr != "" {
		opts = append(opts, orchestrator.WithListenAddr(fc.ListenAddr))
	}

	if len(fc.Clients) > 0 {
		clients := make([]orchestrator.ClientConfig, 0, len(fc.Clients))
		for clientName, cc := range fc.Clients {
			clients = append(clients, orchestrator.ClientConfig{
				Name:    clientName,
				Address: cc.Address,
				Port:    cc.Port,
				Groups:  cc.Groups,
			})
		}
		opts = append(opts, orchestrator.WithClients(clients...))
	}

	if fc.BuiltinScenariosDirectory != "" || fc.ScenariosDirectory != "" {
		opts = append(opts, orchestrator.WithScenarioDirs(fc.BuiltinScenariosDirectory, fc.ScenariosDirectory))
	}

	if len(fc.ShutdownOrder) > 0 {
		step := 5 * time.Second
		if fc.ShutdownStepMillis > 0 {
			step = time.Duration(fc.ShutdownStepMillis) * time.Millisecond
		}
		opts = append(opts, orchestrator.WithShutdownOrder(fc.ShutdownOrder, step))
	}

	if fc.CheckIntervalMilli > 0 {
		opts = append(opts, orchestrator.WithCheckInterval(time.Duration(fc.CheckIntervalMilli)*time.Millisecond))
	}
	if fc.PollTimeoutMillis > 0 {
		opts = append(opts, orchestrator.WithClientPollTimeout(time.Duration(fc.PollTimeoutMillis)*time.Millisecond))
	}

	if fc.MaxConcurrentScenarios != nil {
		opts = append(opts, orchestrator.WithMaxConcurrentScenarios(*fc.MaxConcurrentScenarios))
	}

	if fc.PersistPath != "" {
		opts = append(opts, orchestrator.WithPersistence(fc.PersistPath))
	}
	if fc.MessageBus {
		opts = append(opts, orchestrator.WithMessageBus(true))
	}

	return opts
}
