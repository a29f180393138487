// SPDX-License-Identifier: BSD-3-Clause

package scenario

import (
	"fmt"
	"sort"

	"github.com/avena-robotics/control-core/registry"
)

// GroupSet maps a group name to its member client names, the static half of
// selector resolution (spec.md §4.5 "Selectors"): group membership is
// configuration, resolved at startup, not derived from runtime state.
type GroupSet map[string][]string

// resolveSelector expands sel against the live clients view and the static
// group configuration. Exactly one of Client/Group/Groups/Target is
// expected to be set; if more than one is, Client wins, then Group, then
// Groups, then Target, matching the schema's documented precedence.
func resolveSelector(sel registry.Selector, groups GroupSet, clients registry.ClientsView) ([]string, error) {
	switch {
	case sel.Client != "":
		if _, ok := clients[sel.Client]; !ok {
			return nil, fmt.Errorf("%w: unknown client %q", ErrInvalidSelector, sel.Client)
		}
		return []string{sel.Client}, nil

	case sel.Group != "":
		members, ok := groups[sel.Group]
		if !ok {
			return nil, fmt.Errorf("%w: unknown group %q", ErrInvalidSelector, sel.Group)
		}
		return dedupeExisting(members, clients), nil

	case len(sel.Groups) > 0:
		seen := make(map[string]bool)
		var out []string
		for _, g := range sel.Groups {
			members, ok := groups[g]
			if !ok {
				return nil, fmt.Errorf("%w: unknown group %q", ErrInvalidSelector, g)
			}
			for _, m := range dedupeExisting(members, clients) {
				if !seen[m] {
					seen[m] = true
					out = append(out, m)
				}
			}
		}
		return out, nil

	case sel.Target == "@all":
		out := make([]string, 0, len(clients))
		for name := range clients {
			out = append(out, name)
		}
		sort.Strings(out)
		return out, nil

	default:
		return nil, fmt.Errorf("%w: selector has no client, group, groups, or target", ErrInvalidSelector)
	}
}

func dedupeExisting(names []string, clients registry.ClientsView) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := clients[n]; ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
