// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/arunsworld/nursery"

	"github.com/avena-robotics/control-core/listener"
	"github.com/avena-robotics/control-core/pkg/bus"
	"github.com/avena-robotics/control-core/pkg/event"
	"github.com/avena-robotics/control-core/pkg/fsm"
	"github.com/avena-robotics/control-core/pkg/id"
	"github.com/avena-robotics/control-core/pkg/persist"
	"github.com/avena-robotics/control-core/registry"
	"github.com/avena-robotics/control-core/scenario"
)

// instanceIDFile is the persistent-identity filename written alongside the
// bbolt store, when persistence is enabled.
const instanceIDFile = "instance.uuid"

// Orchestrator is the fleet-level coordinator (spec.md §3.4/§4.6): a
// listener.Listener whose Behavior polls every configured client's
// CMD_GET_STATE on every local_check tick, merges the replies into its
// client registry, and then ticks the scenario engine against the refreshed
// view.
type Orchestrator struct {
	cfg        *config
	clients    *clientRegistry
	engine     *scenario.Engine
	listener   *listener.Listener
	store      *persist.Store
	bus        *bus.Bus
	instanceID string
}

// New builds an Orchestrator from opts.
func New(opts ...Option) (*Orchestrator, error) {
	cfg := newConfig(opts...)
	if cfg.name == "" {
		return nil, fmt.Errorf("orchestrator: name is required")
	}

	clients, err := newClientRegistry(cfg.clients)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	if err := registry.RegisterBuiltinConditions(reg); err != nil {
		return nil, fmt.Errorf("registering builtin conditions: %w", err)
	}
	if err := registry.RegisterBuiltinActions(reg); err != nil {
		return nil, fmt.Errorf("registering builtin actions: %w", err)
	}
	for _, c := range cfg.extraConditions {
		if err := reg.RegisterCondition(c.tag, c.cond); err != nil {
			return nil, fmt.Errorf("registering condition %s: %w", c.tag, err)
		}
	}
	for _, a := range cfg.extraActions {
		if err := reg.RegisterAction(a.tag, a.act); err != nil {
			return nil, fmt.Errorf("registering action %s: %w", a.tag, err)
		}
	}

	scenarios, loadErrs := scenario.LoadAll(cfg.builtinScenarioDir, cfg.userScenarioDir)
	for _, e := range loadErrs {
		cfg.logger.Warn("scenario load error", "error", e)
	}
	if len(cfg.shutdownOrder) > 0 {
		scenarios = append(scenarios, scenario.NewGracefulShutdownScenario(cfg.shutdownOrder, cfg.shutdownStep))
	}

	o := &Orchestrator{cfg: cfg, clients: clients, instanceID: id.NewID()}

	listenerOpts := []listener.Option{
		listener.WithName(cfg.name),
		listener.WithListenAddr(cfg.listenAddr),
		listener.WithAddressBook(clients.address),
		listener.WithBehavior(o),
		listener.WithLogger(cfg.logger),
		listener.WithDedup(cfg.dedup),
		listener.WithQueueDepth(cfg.queueDepth),
		listener.WithHookTimeout(cfg.hookTimeout),
		listener.WithCheckInterval(cfg.checkInterval),
	}

	if cfg.persistPath != "" {
		store, err := persist.Open(cfg.persistPath)
		if err != nil {
			return nil, fmt.Errorf("opening persistence store: %w", err)
		}
		o.store = store
		listenerOpts = append(listenerOpts, listener.WithPersistence(store.FSMPersistenceCallback()))

		if stableID, err := id.GetOrCreatePersistentID(instanceIDFile, filepath.Dir(cfg.persistPath)); err != nil {
			cfg.logger.Warn("loading persistent instance ID failed, using an ephemeral one", "error", err)
		} else {
			o.instanceID = stableID
		}
	}

	if cfg.messageBus {
		o.bus = bus.New(bus.WithName(cfg.name), bus.WithLogger(cfg.logger))
		listenerOpts = append(listenerOpts, listener.WithBroadcast(o.bus.FSMBroadcastCallback()))
	}

	l, err := listener.New(listenerOpts...)
	if err != nil {
		if o.store != nil {
			o.store.Close()
		}
		return nil, fmt.Errorf("building listener: %w", err)
	}
	o.listener = l

	o.engine = scenario.NewEngine(scenarios, reg, clients.snapshot, l.Emit,
		scenario.WithComponents(cfg.components),
		scenario.WithGroups(cfg.groups),
		scenario.WithLogger(cfg.logger),
		scenario.WithMaxConcurrentScenarios(cfg.maxConcurrentScenarios),
	)

	return o, nil
}

// Run starts the underlying listener (ingress server plus its four worker
// loops), and the embedded message bus if WithMessageBus was given, then
// blocks until ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.cfg.logger.InfoContext(ctx, "orchestrator starting", "name", o.cfg.name, "instance_id", o.instanceID)
	if o.store != nil {
		defer o.store.Close()
	}
	if o.bus == nil {
		return o.listener.Run(ctx)
	}
	return nursery.RunConcurrentlyWithContext(ctx,
		func(ctx context.Context, _ chan error) { _ = o.bus.Run(ctx) },
		func(ctx context.Context, errCh chan error) { errCh <- o.listener.Run(ctx) },
	)
}

// RequestManualRun flags a manual-trigger scenario to run on the engine's
// next tick (spec.md §4.5 manual triggers).
func (o *Orchestrator) RequestManualRun(name string) error {
	return o.engine.RequestManualRun(name)
}

// RequestShutdown flags the built-in graceful_shutdown scenario installed
// via WithShutdownOrder, if any.
func (o *Orchestrator) RequestShutdown() error {
	return o.engine.RequestManualRun(scenario.ShutdownScenarioName)
}

// OnInitialize initializes every configured component (spec.md §3.8) while the
// FSM sits in INITIALIZING.
func (o *Orchestrator) OnInitialize(ctx context.Context) error {
	for name, comp := range o.cfg.components {
		if err := comp.Initialize(ctx); err != nil {
			return fmt.Errorf("initializing component %s: %w", name, err)
		}
	}
	return nil
}

// OnRun connects every configured component while the FSM sits in STARTING.
func (o *Orchestrator) OnRun(ctx context.Context) error {
	for name, comp := range o.cfg.components {
		if err := comp.Connect(ctx); err != nil {
			return fmt.Errorf("connecting component %s: %w", name, err)
		}
	}
	return nil
}

func (o *Orchestrator) OnPause(ctx context.Context) error    { return nil }
func (o *Orchestrator) OnResume(ctx context.Context) error   { return nil }
func (o *Orchestrator) OnSoftStop(ctx context.Context) error { return nil }
func (o *Orchestrator) OnHardStop(ctx context.Context) error { return nil }

// OnAck clears every scenario's cooldown/execution counters (spec.md §4.5
// CMD_ACK), the orchestrator-level equivalent of an operator acknowledging a
// fault and letting scenarios run again from a clean slate.
func (o *Orchestrator) OnAck(ctx context.Context) error {
	o.engine.ResetCounters()
	return nil
}

// reportErrorEventType is the domain event a client pushes unprompted to
// report a local fault, outside the normal GET_STATE poll cadence.
const reportErrorEventType = "REPORT_ERROR"

// AnalyzeEvent handles client-originated domain events. CMD_GET_STATE/
// CMD_HEALTH_CHECK replies to the orchestrator's own polls are correlated by
// the listener's Emit machinery before ever reaching here; this only sees
// events nothing else claimed.
func (o *Orchestrator) AnalyzeEvent(ctx context.Context, current fsm.State, e event.Event) (bool, *event.Result, error) {
	switch e.EventType {
	case reportErrorEventType:
		message, _ := e.Data["message"].(string)
		o.clients.markReportedError(e.Source, message)
		return true, &event.Result{Success: true}, nil
	default:
		return false, nil, nil
	}
}

// CheckLocalData runs on every local_check tick: poll every client's
// CMD_GET_STATE, then tick the scenario engine against the refreshed view
// (spec.md §4.2/§4.6).
func (o *Orchestrator) CheckLocalData(ctx context.Context) error {
	o.pollClients(ctx)
	o.engine.Tick(ctx, map[string]any{})
	o.persistScenarioCounters()
	return nil
}

// persistScenarioCounters snapshots every scenario's execution count to the
// persistence store, if one is configured. Best-effort: a write failure is
// logged, never propagated, since nothing downstream depends on it succeeding.
func (o *Orchestrator) persistScenarioCounters() {
	if o.store == nil {
		return
	}
	for _, name := range o.engine.Names() {
		execCount, _, ok := o.engine.Snapshot(name)
		if !ok {
			continue
		}
		if err := o.store.SaveScenarioCounters(name, execCount); err != nil {
			o.cfg.logger.Warn("persisting scenario counters failed", "scenario", name, "error", err)
		}
	}
}

// pollClients polls every configured client's CMD_GET_STATE concurrently
// and blocks until every poll has landed (success, failure, or timeout), so
// the caller's subsequent scenario tick always evaluates this tick's data
// rather than a stale snapshot from the poll round still in flight.
func (o *Orchestrator) pollClients(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range o.clients.names() {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := o.listener.Emit(ctx, name, event.CmdGetState, nil, o.cfg.pollTimeout)
			if err != nil {
				o.clients.markUnreachable(name, err)
				return
			}
			o.clients.applyGetStateReply(name, reply)
		}()
	}
	wg.Wait()
}

// Clients returns the current client view, for diagnostics and the CLI's
// status command.
func (o *Orchestrator) Clients() registry.ClientsView {
	return o.clients.snapshot()
}

// InstanceID returns this orchestrator's identity: a UUID persisted
// alongside the bbolt store when WithPersistence is set (stable across
// restarts on the same host), or a freshly generated one otherwise.
func (o *Orchestrator) InstanceID() string {
	return o.instanceID
}
