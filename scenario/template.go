// SPDX-License-Identifier: BSD-3-Clause

package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/avena-robotics/control-core/registry"
)

// templateVar matches a single "{{ dotted.path }}" reference, capturing the
// dotted path with surrounding whitespace trimmed.
var templateVar = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// ResolveTemplates walks config recursively, substituting "{{ var }}"
// references sourced from sctx.TriggerData. A template string containing
// exactly one reference and no other characters preserves the referenced
// value's runtime type (spec.md §4.4, §9); any other string containing one
// or more references is rendered to a string. A missing variable leaves the
// literal text in place and logs exactly one WARN per invocation (spec.md
// §8 boundary behaviors).
func ResolveTemplates(ctx context.Context, config map[string]any, sctx *registry.Context) map[string]any {
	r := &templateResolver{ctx: ctx, sctx: sctx}
	out, _ := r.walk(config).(map[string]any)
	return out
}

type templateResolver struct {
	ctx  context.Context
	sctx *registry.Context
}

func (r *templateResolver) walk(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = r.walk(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = r.walk(vv)
		}
		return out
	case string:
		return r.resolveString(val)
	default:
		return v
	}
}

func (r *templateResolver) resolveString(s string) any {
	matches := templateVar.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	// Exactly one reference spanning the entire string: preserve type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		value, ok := r.lookup(path)
		if !ok {
			r.warnMissing(path)
			return s
		}
		return value
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		path := s[m[2]:m[3]]
		value, ok := r.lookup(path)
		if !ok {
			r.warnMissing(path)
			b.WriteString(s[m[0]:m[1]])
		} else {
			b.WriteString(stringify(value))
		}
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func (r *templateResolver) warnMissing(path string) {
	logger := r.sctx.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(r.ctx, "template variable not found, leaving literal text", "variable", path, "scenario", r.sctx.ScenarioName)
}

func (r *templateResolver) lookup(path string) (any, bool) {
	parts := strings.Split(path, ".")
	if len(parts) == 0 {
		return nil, false
	}
	current, ok := r.sctx.TriggerData[parts[0]]
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		current, ok = navigate(current, part)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// navigate descends one dotted segment into a map or struct value.
func navigate(v any, key string) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		val, ok := m[key]
		return val, ok
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	field := rv.FieldByName(key)
	if !field.IsValid() {
		return nil, false
	}
	return field.Interface(), true
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
