// SPDX-License-Identifier: BSD-3-Clause

package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cirello.io/oversight/v2"
	"github.com/arunsworld/nursery"
	"github.com/joeycumines/go-longpoll"
	"github.com/joeycumines/go-microbatch"

	"github.com/avena-robotics/control-core/pkg/event"
	"github.com/avena-robotics/control-core/pkg/fsm"
	"github.com/avena-robotics/control-core/pkg/metrics"
	"github.com/avena-robotics/control-core/pkg/transport"
)

// pendingReply correlates an outbound request to the reply it is waiting on.
type pendingReply struct {
	ch chan event.Event
}

// Listener is one Event Listener Runtime instance (spec.md §4.1/§4.2): a
// pkg/fsm.FSM driving lifecycle transitions, a pkg/transport ingress/egress
// pair, the incoming/to_be_sent/pause queues, and the analysis/send/
// state_update/local_check worker loops that drain them.
type Listener struct {
	cfg *config

	fsm    *fsm.FSM
	server *transport.Server
	client *transport.Client
	idGen  event.IDGenerator

	incoming    *queue[event.Event]
	toBeSent    *queue[event.Event]
	pauseBuf    *queue[event.Event]
	processing  *queue[event.Event]
	sendBatcher *microbatch.Batcher[event.Event]

	pausedMu sync.RWMutex
	paused   bool

	pendingMu sync.Mutex
	pending   map[int64]pendingReply

	healthMu sync.RWMutex
	health   map[string]any
}

// New builds a Listener from opts. WithName, WithBehavior, and
// WithAddressBook are required.
func New(opts ...Option) (*Listener, error) {
	cfg := newConfig(opts...)
	if cfg.name == "" {
		return nil, fmt.Errorf("listener: name is required")
	}
	if cfg.behavior == nil {
		return nil, ErrNoBehavior
	}
	if cfg.addresses == nil {
		return nil, fmt.Errorf("listener: address book is required")
	}

	l := &Listener{
		cfg:        cfg,
		incoming:   newQueue[event.Event](cfg.queueDepth),
		toBeSent:   newQueue[event.Event](cfg.queueDepth),
		pauseBuf:   newQueue[event.Event](cfg.queueDepth),
		processing: newQueue[event.Event](cfg.queueDepth),
		pending:    make(map[int64]pendingReply),
		health:     make(map[string]any),
	}

	hooks := fsm.Hooks{
		OnInitialize: cfg.behavior.OnInitialize,
		OnRun:        cfg.behavior.OnRun,
		OnPause:      l.wrapOnPause,
		OnResume:     l.wrapOnResume,
		OnSoftStop:   cfg.behavior.OnSoftStop,
		OnHardStop:   cfg.behavior.OnHardStop,
		OnAck:        cfg.behavior.OnAck,
	}
	fsmCfg := fsm.NewListenerConfig(cfg.name, hooks,
		fsm.WithHookTimeout(cfg.hookTimeout),
		fsm.WithPersistence(cfg.persistence),
		fsm.WithBroadcast(cfg.broadcast),
		fsm.WithTracing(),
	)
	f, err := fsm.New(fsmCfg)
	if err != nil {
		return nil, fmt.Errorf("building fsm: %w", err)
	}
	l.fsm = f

	transportOpts := append([]transport.Option{
		transport.WithAddr(cfg.listenAddr),
		transport.WithLogger(cfg.logger),
		transport.WithHandler(l.HandleEvent),
		transport.WithDedup(cfg.dedup),
	}, cfg.transportOpts...)
	server, err := transport.NewServer(transportOpts...)
	if err != nil {
		return nil, fmt.Errorf("building ingress server: %w", err)
	}
	l.server = server
	l.client = transport.NewClient(transportOpts...)

	l.sendBatcher = microbatch.NewBatcher[event.Event](&microbatch.BatcherConfig{
		MaxSize:        16,
		FlushInterval:  50 * time.Millisecond,
		MaxConcurrency: 4,
	}, l.dispatchBatch)

	return l, nil
}

// dispatchBatch is the microbatch.BatchProcessor backing sendBatcher: it
// delivers every queued reply/request in one flush round concurrently
// (spec.md §4.1, SPEC_FULL.md §3 "Outbound batching").
func (l *Listener) dispatchBatch(ctx context.Context, batch []event.Event) error {
	var wg sync.WaitGroup
	wg.Add(len(batch))
	for _, e := range batch {
		go func(e event.Event) {
			defer wg.Done()
			url := fmt.Sprintf("http://%s:%d/event", e.DestinationAddress, e.DestinationPort)
			if err := l.client.Send(ctx, url, e); err != nil {
				l.cfg.logger.ErrorContext(ctx, "delivery failed", "destination", e.Destination, "id", e.ID, "error", err)
			}
		}(e)
	}
	wg.Wait()
	return nil
}

func (l *Listener) wrapOnPause(ctx context.Context) error {
	if err := l.cfg.behavior.OnPause(ctx); err != nil {
		return err
	}
	l.pausedMu.Lock()
	l.paused = true
	l.pausedMu.Unlock()
	return nil
}

func (l *Listener) wrapOnResume(ctx context.Context) error {
	if err := l.cfg.behavior.OnResume(ctx); err != nil {
		return err
	}
	l.pausedMu.Lock()
	l.paused = false
	l.pausedMu.Unlock()

	for _, e := range l.pauseBuf.drain() {
		if err := l.incoming.tryPush(e); err != nil {
			l.cfg.logger.WarnContext(ctx, "dropping buffered event, incoming queue full", "source", e.Source, "id", e.ID)
		}
	}
	return nil
}

// Run starts the ingress server and the four worker loops under an
// oversight supervision tree (spec.md §4.2), following the teacher's
// supervise-plus-spawn nursery pattern. It blocks until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.fsm.Start(); err != nil {
		return err
	}
	defer l.fsm.Stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.sendBatcher.Shutdown(shutdownCtx)
	}()

	tree := oversight.New(
		oversight.NeverHalt(),
		oversight.DefaultRestartStrategy(),
	)

	children := []struct {
		name string
		fn   oversight.ChildProcess
	}{
		{"ingress", l.server.Run},
		{"analysis", l.analysisLoop},
		{"send", l.sendLoop},
		{"state_update", l.stateUpdateLoop},
		{"local_check", l.localCheckLoop},
	}
	for _, c := range children {
		if err := tree.Add(c.fn, oversight.Transient(), oversight.Timeout(l.cfg.hookTimeout), c.name); err != nil {
			return fmt.Errorf("adding %s to supervision tree: %w", c.name, err)
		}
	}

	supervise := func(ctx context.Context, c chan error) {
		c <- tree.Start(ctx)
	}
	return nursery.RunConcurrentlyWithContext(ctx, supervise)
}

// analysisLoop drains the incoming queue: lifecycle commands fire FSM
// triggers directly, domain events are handed to Behavior.AnalyzeEvent.
// Either path's reply is pushed onto the to_be_sent queue.
func (l *Listener) analysisLoop(ctx context.Context) error {
	cfg := &longpoll.ChannelConfig{MaxSize: 32, MinSize: 1, PartialTimeout: 50 * time.Millisecond}
	for {
		if err := longpoll.Channel(ctx, cfg, l.incoming.chanFor(), func(e event.Event) error {
			l.analyze(ctx, e)
			return nil
		}); err != nil {
			return err
		}
	}
}

// analyze dispatches a non-lifecycle event by the FSM's current state
// (spec.md §4.2.1). RUN is the only state that reaches the behavior; every
// other state short-circuits with a fixed reply and drops the event without
// ever calling AnalyzeEvent.
func (l *Listener) analyze(ctx context.Context, e event.Event) {
	if event.IsLifecycleCommand(e.EventType) {
		l.handleLifecycle(ctx, e)
		return
	}

	switch state := l.fsm.CurrentState(); state {
	case fsm.StateRun:
		l.analyzeInRun(ctx, e)
	case fsm.StateFault, fsm.StateOnError:
		l.reply(e, false, "system in fault state", nil)
	case fsm.StateStopped:
		l.reply(e, false, "service stopped", nil)
	default:
		l.reply(e, false, "system in transition", nil)
	}
}

// analyzeInRun delegates to Behavior.AnalyzeEvent. A handled event replies
// normally; an unhandled one is deferred to the processing queue rather
// than dropped (spec.md §4.2.1 RUN branch).
func (l *Listener) analyzeInRun(ctx context.Context, e event.Event) {
	handled, result, err := l.cfg.behavior.AnalyzeEvent(ctx, fsm.StateRun, e)
	if err != nil {
		l.reply(e, false, err.Error(), nil)
		return
	}
	if !handled {
		if err := l.processing.tryPush(e); err != nil {
			l.cfg.logger.WarnContext(ctx, "dropping deferred event, processing queue full", "event_type", e.EventType, "source", e.Source)
		}
		return
	}
	if result != nil {
		l.reply(e, result.Success, result.Message, result.Data)
	}
}

// DrainProcessing removes and returns every event currently deferred
// because Behavior.AnalyzeEvent did not handle it on first pass (spec.md
// §4.2.1). A behavior that wants deferred retries calls this from its own
// CheckLocalData loop and re-submits what it can now handle.
func (l *Listener) DrainProcessing() []event.Event {
	return l.processing.drain()
}

func (l *Listener) handleLifecycle(ctx context.Context, e event.Event) {
	switch e.EventType {
	case event.CmdGetState:
		l.reply(e, true, "", l.GetState())
		return
	case event.CmdHealthCheck:
		l.reply(e, true, "", l.HealthBlob())
		return
	}

	final, err := l.fsm.Fire(ctx, e.EventType)
	if err != nil {
		l.reply(e, false, err.Error(), map[string]any{"fsm_state": final.String()})
		return
	}
	l.reply(e, true, "", map[string]any{"fsm_state": final.String()})
}

func (l *Listener) reply(orig event.Event, success bool, message string, data map[string]any) {
	r := event.Reply(orig, success, message, data)
	if err := l.toBeSent.tryPush(r); err != nil {
		l.cfg.logger.Warn("dropping reply, to_be_sent queue full", "destination", r.Destination, "id", r.ID)
	}
}

// sendLoop drains the to_be_sent queue and submits each event to the send
// batcher, which groups same-round events into one concurrent dispatch
// (spec.md §4.1).
func (l *Listener) sendLoop(ctx context.Context) error {
	for {
		e, ok := l.toBeSent.pop(ctx)
		if !ok {
			return ctx.Err()
		}
		if _, err := l.sendBatcher.Submit(ctx, e); err != nil {
			l.cfg.logger.ErrorContext(ctx, "submitting event for dispatch failed", "destination", e.Destination, "id", e.ID, "error", err)
		}
	}
}

// stateUpdateLoop periodically refreshes the cached health blob so
// CMD_HEALTH_CHECK replies do not recompute it inline under the analysis
// loop's single-goroutine serialization.
func (l *Listener) stateUpdateLoop(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.statePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.refreshHealth()
		}
	}
}

func (l *Listener) refreshHealth() {
	state := l.fsm.CurrentState()
	blob := map[string]any{
		"fsm_state":        state.String(),
		"incoming_depth":   l.incoming.len(),
		"to_be_sent_depth": l.toBeSent.len(),
		"paused_depth":     l.pauseBuf.len(),
		"processing_depth": l.processing.len(),
		"updated_at":       time.Now().UTC(),
	}
	l.healthMu.Lock()
	l.health = blob
	l.healthMu.Unlock()

	metrics.ListenerQueueDepth.WithLabelValues(l.cfg.name, "incoming").Set(float64(l.incoming.len()))
	metrics.ListenerQueueDepth.WithLabelValues(l.cfg.name, "to_be_sent").Set(float64(l.toBeSent.len()))
	metrics.ListenerQueueDepth.WithLabelValues(l.cfg.name, "pause").Set(float64(l.pauseBuf.len()))
	metrics.ListenerQueueDepth.WithLabelValues(l.cfg.name, "processing").Set(float64(l.processing.len()))
}

// localCheckLoop calls Behavior.CheckLocalData on a fixed interval
// regardless of FSM state (spec.md §4.2); the orchestrator drives its
// scenario engine tick from here.
func (l *Listener) localCheckLoop(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.cfg.behavior.CheckLocalData(ctx); err != nil {
				l.cfg.logger.ErrorContext(ctx, "local check failed", "error", err)
			}
		}
	}
}

// HandleEvent is the transport.Handler installed on the ingress server: it
// correlates replies to outstanding Emit calls, and otherwise routes the
// event to the incoming queue (or the pause buffer, while PAUSE holds).
func (l *Listener) HandleEvent(e event.Event) {
	if e.Result != nil {
		if delivered := l.deliverPending(e); delivered {
			return
		}
	}

	l.pausedMu.RLock()
	paused := l.paused
	l.pausedMu.RUnlock()

	target := l.incoming
	if paused {
		target = l.pauseBuf
	}
	if err := target.tryPush(e); err != nil {
		l.cfg.logger.Warn("dropping inbound event, queue full", "source", e.Source, "id", e.ID)
	}
}

func (l *Listener) deliverPending(e event.Event) bool {
	l.pendingMu.Lock()
	p, ok := l.pending[e.ID]
	if ok {
		delete(l.pending, e.ID)
	}
	l.pendingMu.Unlock()
	if !ok {
		return false
	}
	p.ch <- e
	return true
}

// Emit sends eventType to destination with data, blocking until the reply
// correlates or maximumProcessingTime elapses (spec.md §4.1). It satisfies
// registry.EmitFunc's shape so an orchestrator can pass it through
// directly.
func (l *Listener) Emit(ctx context.Context, destination, eventType string, data map[string]any, maximumProcessingTime time.Duration) (event.Event, error) {
	addr, port, ok := l.cfg.addresses(destination)
	if !ok {
		return event.Event{}, fmt.Errorf("%w: %s", ErrUnknownDestination, destination)
	}

	id := l.idGen.Next()
	e := event.New(id, l.cfg.name, "", 0, destination, addr, port, eventType, data, maximumProcessingTime)

	ch := make(chan event.Event, 1)
	l.pendingMu.Lock()
	l.pending[id] = pendingReply{ch: ch}
	l.pendingMu.Unlock()
	defer func() {
		l.pendingMu.Lock()
		delete(l.pending, id)
		l.pendingMu.Unlock()
	}()

	if err := l.toBeSent.tryPush(e); err != nil {
		return event.Event{}, err
	}

	timeout := maximumProcessingTime
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case reply := <-ch:
		return reply, nil
	case <-waitCtx.Done():
		return event.Event{}, fmt.Errorf("%w: %s after %s", ErrEmitTimeout, destination, timeout)
	}
}

// GetState composes the CMD_GET_STATE reply payload: the FSM's current
// state plus any error condition from FAULT/ON_ERROR.
func (l *Listener) GetState() map[string]any {
	state := l.fsm.CurrentState()
	data := map[string]any{"fsm_state": state.String()}
	if state == fsm.StateFault || state == fsm.StateOnError {
		data["error"] = true
	}
	return data
}

// HealthBlob returns the most recently computed health snapshot.
func (l *Listener) HealthBlob() map[string]any {
	l.healthMu.RLock()
	defer l.healthMu.RUnlock()
	out := make(map[string]any, len(l.health))
	for k, v := range l.health {
		out[k] = v
	}
	return out
}

// CurrentState exposes the FSM's current state for callers outside the
// listener's own worker loops (e.g. an orchestrator building a client
// view).
func (l *Listener) CurrentState() fsm.State {
	return l.fsm.CurrentState()
}
