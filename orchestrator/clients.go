// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/avena-robotics/control-core/pkg/event"
	"github.com/avena-robotics/control-core/pkg/fsm"
	"github.com/avena-robotics/control-core/registry"
)

// clientRegistry holds the merged client records (spec.md §3.4): the
// statically configured half never changes after construction, the runtime
// half is refreshed by every CMD_GET_STATE poll.
type clientRegistry struct {
	mu      sync.RWMutex
	configs map[string]ClientConfig
	runtime map[string]registry.ClientState
}

func newClientRegistry(configs []ClientConfig) (*clientRegistry, error) {
	r := &clientRegistry{
		configs: make(map[string]ClientConfig, len(configs)),
		runtime: make(map[string]registry.ClientState, len(configs)),
	}
	for _, cfg := range configs {
		if _, exists := r.configs[cfg.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClient, cfg.Name)
		}
		r.configs[cfg.Name] = cfg
		r.runtime[cfg.Name] = registry.ClientState{
			Name:     cfg.Name,
			Address:  cfg.Address,
			Port:     cfg.Port,
			Groups:   cfg.Groups,
			FSMState: fsm.StateUnknown,
		}
	}
	return r, nil
}

// names lists every configured client, in no particular order.
func (r *clientRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.configs))
	for name := range r.configs {
		out = append(out, name)
	}
	return out
}

// address resolves a client name to the host/port its ingress listens on,
// satisfying listener.AddressBook.
func (r *clientRegistry) address(destination string) (string, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[destination]
	if !ok {
		return "", 0, false
	}
	return cfg.Address, cfg.Port, true
}

// snapshot returns the ClientsView copy the scenario engine ticks against
// (spec.md §5 "Shared resources").
func (r *clientRegistry) snapshot() registry.ClientsView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(registry.ClientsView, len(r.runtime))
	for name, state := range r.runtime {
		out[name] = state
	}
	return out
}

// applyGetStateReply merges a successful CMD_GET_STATE reply into the
// client's runtime record.
func (r *clientRegistry) applyGetStateReply(name string, reply event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.runtime[name]
	state.LastUpdatedAt = time.Now()
	if reply.Result == nil || !reply.Result.Success {
		state.Error = true
		if reply.Result != nil {
			state.ErrorMessage = reply.Result.Message
		}
		r.runtime[name] = state
		return
	}
	data := reply.Result.Data
	if raw, ok := data["fsm_state"].(string); ok {
		state.FSMState = fsm.FromString(raw)
	}
	if errored, ok := data["error"].(bool); ok {
		state.Error = errored
	} else {
		state.Error = false
	}
	if em, ok := data["error_message"].(string); ok {
		state.ErrorMessage = em
	} else if !state.Error {
		state.ErrorMessage = ""
	}
	state.Extra = data
	r.runtime[name] = state
}

// markUnreachable flags a client whose CMD_GET_STATE poll failed outright
// (timeout, connection refused, unknown destination).
func (r *clientRegistry) markUnreachable(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.runtime[name]
	state.Error = true
	state.ErrorMessage = err.Error()
	state.LastUpdatedAt = time.Now()
	r.runtime[name] = state
}

// markReportedError records an error a client pushed unprompted via a
// domain event (as opposed to one observed on a GET_STATE poll).
func (r *clientRegistry) markReportedError(name string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.runtime[name]
	if !ok {
		state = registry.ClientState{Name: name}
	}
	state.Error = true
	state.ErrorMessage = message
	state.LastUpdatedAt = time.Now()
	r.runtime[name] = state
}
