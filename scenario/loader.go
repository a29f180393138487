// SPDX-License-Identifier: BSD-3-Clause

package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// LoadDir parses every *.json file directly under dir into a Scenario.
// Files that fail schema validation are skipped and reported in the
// returned error slice rather than aborting the rest of the directory
// (spec.md §4.5 "invalid files are logged and skipped"). A missing
// directory is not an error: it is treated as "no scenarios here",
// matching the optional builtin/user split in the configuration schema.
func LoadDir(dir string) ([]*Scenario, []error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("reading scenario directory %s: %w", dir, err)}
	}

	var scenarios []*Scenario
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: reading %s: %w", ErrScenarioValidation, path, err))
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(b, &raw); err != nil {
			errs = append(errs, fmt.Errorf("%w: parsing %s: %w", ErrScenarioValidation, path, err))
			continue
		}
		s, err := scenarioFromMap(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrScenarioValidation, path, err))
			continue
		}
		s.SourcePath = path
		scenarios = append(scenarios, s)
	}
	return scenarios, errs
}

// LoadAll loads builtinDir then userDir, in that order, keeping the first
// definition of any scenario name and reporting later duplicates as
// load errors (mirrors the registry's first-registration-wins rule for
// condition/action tags). The result is sorted ascending by priority, ties
// broken by load order.
func LoadAll(builtinDir, userDir string) ([]*Scenario, []error) {
	var all []*Scenario
	var errs []error

	for _, dir := range []string{builtinDir, userDir} {
		loaded, loadErrs := LoadDir(dir)
		errs = append(errs, loadErrs...)
		all = append(all, loaded...)
	}

	seen := make(map[string]bool, len(all))
	deduped := all[:0:0]
	for _, s := range all {
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("%w: %s (from %s)", ErrDuplicateScenario, s.Name, s.SourcePath))
			continue
		}
		seen[s.Name] = true
		deduped = append(deduped, s)
	}

	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Priority < deduped[j].Priority })
	return deduped, errs
}

func scenarioFromMap(raw map[string]any) (*Scenario, error) {
	s := &Scenario{
		Priority:                defaultPriority,
		MaxConcurrentExecutions: defaultMaxConcurrentExecutions,
	}

	name, _ := raw["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	s.Name = name

	s.Description, _ = raw["description"].(string)

	if p, ok := raw["priority"]; ok {
		n, ok := asInt(p)
		if !ok {
			return nil, fmt.Errorf("priority must be a number")
		}
		s.Priority = n
	}

	if c, ok := raw["cooldown"]; ok {
		n, ok := asFloat(c)
		if !ok {
			return nil, fmt.Errorf("cooldown must be a number of seconds")
		}
		s.Cooldown = time.Duration(n * float64(time.Second))
	}

	if m, ok := raw["max_concurrent_executions"]; ok {
		n, ok := asInt(m)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("max_concurrent_executions must be a positive integer")
		}
		s.MaxConcurrentExecutions = n
	}

	if m, ok := raw["max_executions"]; ok {
		n, ok := asInt(m)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("max_executions must be a positive integer")
		}
		s.MaxExecutions = n
	}

	triggerRaw, ok := raw["trigger"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("trigger is required")
	}
	triggerType, _ := triggerRaw["type"].(string)
	if triggerType != TriggerAutomatic && triggerType != TriggerManual {
		return nil, fmt.Errorf("trigger.type must be %q or %q", TriggerAutomatic, TriggerManual)
	}
	s.Trigger.Type = triggerType
	s.Trigger.Description, _ = triggerRaw["description"].(string)
	if cond, ok := triggerRaw["conditions"].(map[string]any); ok {
		s.Trigger.Conditions = cond
	}

	actionsRaw, ok := raw["actions"].([]any)
	if !ok {
		return nil, fmt.Errorf("actions must be a list")
	}
	s.Actions = make([]map[string]any, 0, len(actionsRaw))
	for i, a := range actionsRaw {
		m, ok := a.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("actions[%d] is not an object", i)
		}
		if _, ok := m["type"].(string); !ok {
			return nil, fmt.Errorf("actions[%d].type is required", i)
		}
		s.Actions = append(s.Actions, m)
	}

	return s, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
