// SPDX-License-Identifier: BSD-3-Clause

package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avena-robotics/control-core/pkg/fsm"
)

// Logical condition tags (spec.md §3.6).
const (
	TagAnd  = "and"
	TagOr   = "or"
	TagNot  = "not"
	TagXor  = "xor"
	TagNand = "nand"
	TagNor  = "nor"
)

// Leaf condition tags (spec.md §3.6).
const (
	TagClientState       = "client_state"
	TagTime              = "time"
	TagErrorMessage      = "error_message"
	TagDatabase          = "database"
	TagDatabaseList      = "database_list"
	TagVirtualDeviceError = "virtual_device_error"
)

// childNodes normalizes a logical node's "conditions" field, which the
// schema allows as either a single child node or a list of them.
func childNodes(config map[string]any) ([]map[string]any, error) {
	raw, ok := config["conditions"]
	if !ok {
		raw, ok = config["condition"]
		if !ok {
			return nil, fmt.Errorf("missing conditions")
		}
	}
	switch v := raw.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("condition list entry is not an object")
			}
			out = append(out, m)
		}
		return out, nil
	case map[string]any:
		return []map[string]any{v}, nil
	default:
		return nil, fmt.Errorf("conditions must be an object or a list")
	}
}

func evalChildren(ctx context.Context, config map[string]any, sctx *Context) ([]bool, map[string]any, error) {
	nodes, err := childNodes(config)
	if err != nil {
		return nil, nil, err
	}
	results := make([]bool, 0, len(nodes))
	bindings := make(map[string]any)
	for _, n := range nodes {
		ok, b, err := sctx.Dispatcher.EvaluateConditionTree(ctx, n, sctx)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, ok)
		for k, v := range b {
			bindings[k] = v
		}
	}
	return results, bindings, nil
}

func newAndCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		results, bindings, err := evalChildren(ctx, config, sctx)
		if err != nil {
			return false, nil, err
		}
		for _, r := range results {
			if !r {
				return false, bindings, nil
			}
		}
		return true, bindings, nil
	})
}

func newOrCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		results, bindings, err := evalChildren(ctx, config, sctx)
		if err != nil {
			return false, nil, err
		}
		for _, r := range results {
			if r {
				return true, bindings, nil
			}
		}
		return false, bindings, nil
	})
}

func newNotCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		results, bindings, err := evalChildren(ctx, config, sctx)
		if err != nil {
			return false, nil, err
		}
		if len(results) != 1 {
			return false, nil, fmt.Errorf("not requires exactly one child condition")
		}
		return !results[0], bindings, nil
	})
}

func newXorCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		results, bindings, err := evalChildren(ctx, config, sctx)
		if err != nil {
			return false, nil, err
		}
		count := 0
		for _, r := range results {
			if r {
				count++
			}
		}
		return count == 1, bindings, nil
	})
}

func newNandCondition() Condition {
	and := newAndCondition()
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		ok, b, err := and.Evaluate(ctx, config, sctx)
		return !ok, b, err
	})
}

func newNorCondition() Condition {
	or := newOrCondition()
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		ok, b, err := or.Evaluate(ctx, config, sctx)
		return !ok, b, err
	})
}

// newClientStateCondition checks one client's FSM state against a value
// ("state") or a set ("states").
func newClientStateCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		name, _ := config["client"].(string)
		client, ok := sctx.Clients[name]
		if !ok {
			return false, nil, fmt.Errorf("unknown client %q", name)
		}

		if want, ok := config["state"].(string); ok {
			return strings.EqualFold(client.FSMState.String(), want), nil, nil
		}
		if raw, ok := config["states"].([]any); ok {
			for _, w := range raw {
				if s, ok := w.(string); ok && strings.EqualFold(client.FSMState.String(), s) {
					return true, nil, nil
				}
			}
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("client_state requires \"state\" or \"states\"")
	})
}

// newTimeCondition checks wall-clock against either an explicit
// [start,end) "HH:MM" range, or a 5-field cron schedule string matched
// against the current minute.
func newTimeCondition() Condition {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		now := time.Now()
		if sched, ok := config["schedule"].(string); ok {
			spec, err := parser.Parse(sched)
			if err != nil {
				return false, nil, fmt.Errorf("invalid cron schedule %q: %w", sched, err)
			}
			// A schedule "matches" the current minute if its next firing
			// after the start of the previous minute falls within the last
			// minute up to now.
			next := spec.Next(now.Add(-time.Minute).Truncate(time.Minute))
			return !next.After(now) && next.Add(time.Minute).After(now), nil, nil
		}

		start, sok := config["start"].(string)
		end, eok := config["end"].(string)
		if sok && eok {
			layout := "15:04"
			s, err := time.ParseInLocation(layout, start, now.Location())
			if err != nil {
				return false, nil, fmt.Errorf("invalid start time %q: %w", start, err)
			}
			e, err := time.ParseInLocation(layout, end, now.Location())
			if err != nil {
				return false, nil, fmt.Errorf("invalid end time %q: %w", end, err)
			}
			cur := time.Date(0, 1, 1, now.Hour(), now.Minute(), now.Second(), 0, time.UTC)
			s = time.Date(0, 1, 1, s.Hour(), s.Minute(), 0, 0, time.UTC)
			e = time.Date(0, 1, 1, e.Hour(), e.Minute(), 0, 0, time.UTC)
			if e.Before(s) {
				// Range wraps midnight.
				return !cur.Before(s) || cur.Before(e), nil, nil
			}
			return !cur.Before(s) && cur.Before(e), nil, nil
		}
		return false, nil, fmt.Errorf("time condition requires \"schedule\" or \"start\"/\"end\"")
	})
}

// newErrorMessageCondition matches a substring/regex/exact/starts-with
// pattern against the error_message field of one or more clients, optionally
// narrowed to clients currently in FAULT or with error=true. Captured regex
// groups are bound into the output context under "match_<n>" and, if named,
// "match_<name>".
func newErrorMessageCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		pattern, _ := config["pattern"].(string)
		mode, _ := config["mode"].(string)
		if mode == "" {
			mode = "substring"
		}
		onlyFault, _ := config["only_fault"].(bool)

		var names []string
		if cl, ok := config["client"].(string); ok {
			names = []string{cl}
		} else {
			for n := range sctx.Clients {
				names = append(names, n)
			}
		}

		var re *regexp.Regexp
		if mode == "regex" {
			var err error
			re, err = regexp.Compile(pattern)
			if err != nil {
				return false, nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
			}
		}

		for _, n := range names {
			c, ok := sctx.Clients[n]
			if !ok {
				continue
			}
			if onlyFault && !c.Error && c.FSMState != fsm.StateFault {
				continue
			}
			var matched bool
			bindings := map[string]any{}
			switch mode {
			case "exact":
				matched = c.ErrorMessage == pattern
			case "starts_with":
				matched = strings.HasPrefix(c.ErrorMessage, pattern)
			case "regex":
				if loc := re.FindStringSubmatch(c.ErrorMessage); loc != nil {
					matched = true
					for i, g := range loc {
						bindings[fmt.Sprintf("match_%d", i)] = g
					}
					for i, name := range re.SubexpNames() {
						if name != "" && i < len(loc) {
							bindings["match_"+name] = loc[i]
						}
					}
				}
			default: // substring
				matched = strings.Contains(c.ErrorMessage, pattern)
			}
			if matched {
				bindings["client"] = n
				return true, bindings, nil
			}
		}
		return false, nil, nil
	})
}

// Queryer is the uniform contract a database Component exposes to the
// database/database_list condition kinds. The core specifies only this
// interface; concrete SQL wiring is an external collaborator (spec.md
// §3.8/§6.3).
type Queryer interface {
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
	QueryList(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

func lookupQueryer(sctx *Context, name string) (Queryer, error) {
	comp, ok := sctx.Components[name]
	if !ok {
		return nil, fmt.Errorf("unknown component %q", name)
	}
	q, ok := comp.(Queryer)
	if !ok {
		return nil, fmt.Errorf("component %q does not support queries", name)
	}
	return q, nil
}

// newDatabaseCondition executes a single-row query against a named
// database component and compares the result to an expected value with an
// operator ("eq", "ne", "lt", "le", "gt", "ge").
func newDatabaseCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		db, _ := config["database"].(string)
		query, _ := config["query"].(string)
		op, _ := config["operator"].(string)
		if op == "" {
			op = "eq"
		}
		expected := config["value"]

		q, err := lookupQueryer(sctx, db)
		if err != nil {
			return false, nil, err
		}
		got, err := q.QueryRow(ctx, query)
		if err != nil {
			return false, nil, fmt.Errorf("database %q query failed: %w", db, err)
		}
		ok, err := compareValues(got, expected, op)
		if err != nil {
			return false, nil, err
		}
		return ok, map[string]any{"value": got}, nil
	})
}

// newDatabaseListCondition executes a multi-row query and binds the
// resulting list into the trigger context under "bind" (default
// "database_list"); it returns true iff the list is non-empty.
func newDatabaseListCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		db, _ := config["database"].(string)
		query, _ := config["query"].(string)
		bindKey, _ := config["bind"].(string)
		if bindKey == "" {
			bindKey = "database_list"
		}

		q, err := lookupQueryer(sctx, db)
		if err != nil {
			return false, nil, err
		}
		rows, err := q.QueryList(ctx, query)
		if err != nil {
			return false, nil, fmt.Errorf("database %q query failed: %w", db, err)
		}
		return len(rows) > 0, map[string]any{bindKey: rows}, nil
	})
}

// newVirtualDeviceErrorCondition runs a structured query against a client's
// io_server.failed_virtual_devices map (spec.md §3.6), binding device id,
// physical device name, error message, and device type into the context
// when a match is found.
func newVirtualDeviceErrorCondition() Condition {
	return ConditionFunc(func(ctx context.Context, config map[string]any, sctx *Context) (bool, map[string]any, error) {
		clientName, _ := config["client"].(string)
		wantDeviceType, _ := config["device_type"].(string)

		client, ok := sctx.Clients[clientName]
		if !ok {
			return false, nil, fmt.Errorf("unknown client %q", clientName)
		}
		ioServer, _ := client.Extra["io_server"].(map[string]any)
		failed, _ := ioServer["failed_virtual_devices"].(map[string]any)

		for deviceID, raw := range failed {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			deviceType, _ := entry["device_type"].(string)
			if wantDeviceType != "" && deviceType != wantDeviceType {
				continue
			}
			return true, map[string]any{
				"device_id":            deviceID,
				"physical_device_name": entry["physical_device_name"],
				"error_message":        entry["error_message"],
				"device_type":          deviceType,
			}, nil
		}
		return false, nil, nil
	})
}

func compareValues(got, want any, op string) (bool, error) {
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		switch op {
		case "eq":
			return gf == wf, nil
		case "ne":
			return gf != wf, nil
		case "lt":
			return gf < wf, nil
		case "le":
			return gf <= wf, nil
		case "gt":
			return gf > wf, nil
		case "ge":
			return gf >= wf, nil
		}
	}
	switch op {
	case "eq":
		return fmt.Sprint(got) == fmt.Sprint(want), nil
	case "ne":
		return fmt.Sprint(got) != fmt.Sprint(want), nil
	default:
		return false, fmt.Errorf("operator %q not applicable to non-numeric values", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// RegisterBuiltinConditions registers the logical operators and every leaf
// condition kind the core provides. Called once at orchestrator startup,
// before any kinds passed via orchestrator.WithExtraCondition are registered.
func RegisterBuiltinConditions(r *Registry) error {
	entries := []struct {
		tag  string
		cond Condition
	}{
		{TagAnd, newAndCondition()},
		{TagOr, newOrCondition()},
		{TagNot, newNotCondition()},
		{TagXor, newXorCondition()},
		{TagNand, newNandCondition()},
		{TagNor, newNorCondition()},
		{TagClientState, newClientStateCondition()},
		{TagTime, newTimeCondition()},
		{TagErrorMessage, newErrorMessageCondition()},
		{TagDatabase, newDatabaseCondition()},
		{TagDatabaseList, newDatabaseListCondition()},
		{TagVirtualDeviceError, newVirtualDeviceErrorCondition()},
	}
	for _, e := range entries {
		if err := r.RegisterCondition(e.tag, e.cond); err != nil {
			return err
		}
	}
	return nil
}
