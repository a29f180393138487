// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import (
	"log/slog"
	"time"

	"github.com/avena-robotics/control-core/pkg/event"
	"github.com/avena-robotics/control-core/registry"
	"github.com/avena-robotics/control-core/scenario"
)

// ClientConfig is one statically configured client (spec.md §3.4): the
// half of ClientState known before any CMD_GET_STATE reply ever arrives.
type ClientConfig struct {
	Name    string
	Address string
	Port    int
	Groups  []string
}

type extraCondition struct {
	tag  string
	cond registry.Condition
}

type extraAction struct {
	tag string
	act registry.Action
}

type config struct {
	name       string
	listenAddr string
	clients    []ClientConfig
	groups     scenario.GroupSet
	components registry.ComponentsView

	builtinScenarioDir string
	userScenarioDir    string
	shutdownOrder      []string
	shutdownStep       time.Duration

	pollTimeout            time.Duration
	checkInterval          time.Duration
	queueDepth             int
	hookTimeout            time.Duration
	dedup                  *event.Dedup
	logger                 *slog.Logger
	maxConcurrentScenarios int

	persistPath string
	messageBus  bool

	extraConditions []extraCondition
	extraActions    []extraAction
}

// Option configures an Orchestrator.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithName sets the orchestrator's identity (its listener name and FSM
// name).
func WithName(name string) Option {
	return optionFunc(func(c *config) { c.name = name })
}

// WithListenAddr sets the address the orchestrator's ingress server binds.
func WithListenAddr(addr string) Option {
	return optionFunc(func(c *config) { c.listenAddr = addr })
}

// WithClients registers the statically configured fleet (spec.md §3.4).
func WithClients(clients ...ClientConfig) Option {
	return optionFunc(func(c *config) { c.clients = append(c.clients, clients...) })
}

// WithGroups sets the named client groups the trigger selector language and
// built-in actions resolve against (spec.md §4.4).
func WithGroups(g scenario.GroupSet) Option {
	return optionFunc(func(c *config) { c.groups = g })
}

// WithComponents installs the external resource handles scenario actions may
// reference (spec.md §3.8).
func WithComponents(components registry.ComponentsView) Option {
	return optionFunc(func(c *config) { c.components = components })
}

// WithScenarioDirs sets the built-in and user scenario directories loaded at
// startup (spec.md §4.5 "first definition wins").
func WithScenarioDirs(builtinDir, userDir string) Option {
	return optionFunc(func(c *config) {
		c.builtinScenarioDir = builtinDir
		c.userScenarioDir = userDir
	})
}

// WithShutdownOrder installs the built-in graceful_shutdown scenario,
// stopping clients in the reverse of order.
func WithShutdownOrder(order []string, perStepTimeout time.Duration) Option {
	return optionFunc(func(c *config) {
		c.shutdownOrder = order
		c.shutdownStep = perStepTimeout
	})
}

// WithExtraCondition registers one additional condition kind alongside the
// built-ins, under tag.
func WithExtraCondition(tag string, cond registry.Condition) Option {
	return optionFunc(func(c *config) { c.extraConditions = append(c.extraConditions, extraCondition{tag, cond}) })
}

// WithExtraAction registers one additional action kind alongside the
// built-ins, under tag.
func WithExtraAction(tag string, act registry.Action) Option {
	return optionFunc(func(c *config) { c.extraActions = append(c.extraActions, extraAction{tag, act}) })
}

// WithClientPollTimeout bounds how long one client's CMD_GET_STATE poll may
// take before it is marked unreachable.
func WithClientPollTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.pollTimeout = d })
}

// WithCheckInterval sets how often clients are polled and the scenario
// engine ticks.
func WithCheckInterval(d time.Duration) Option {
	return optionFunc(func(c *config) { c.checkInterval = d })
}

// WithQueueDepth sets the underlying listener's queue capacity.
func WithQueueDepth(n int) Option {
	return optionFunc(func(c *config) { c.queueDepth = n })
}

// WithMaxConcurrentScenarios caps how many scenarios the embedded scenario
// engine may run simultaneously (spec.md §6.2). 0 deliberately means the
// scheduler never launches anything; omitting this option leaves the cap
// disabled.
func WithMaxConcurrentScenarios(n int) Option {
	return optionFunc(func(c *config) { c.maxConcurrentScenarios = n })
}

// WithHookTimeout bounds how long a lifecycle hook may run.
func WithHookTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.hookTimeout = d })
}

// WithDedup installs an inbound deduplication window.
func WithDedup(d *event.Dedup) Option {
	return optionFunc(func(c *config) { c.dedup = d })
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *config) { c.logger = l })
}

// WithPersistence opens a bbolt-backed snapshot store at path, best-effort
// recording every committed FSM transition and scenario counters (spec.md
// §3.3, §3.9). The recorded values are not read back at startup; the store's
// directory also holds the persistent instance ID. Omitting this option
// leaves the orchestrator entirely in-memory.
func WithPersistence(path string) Option {
	return optionFunc(func(c *config) { c.persistPath = path })
}

// WithMessageBus starts an embedded in-process NATS bus alongside the
// listener and broadcasts every committed FSM transition on it, for a
// dashboard or audit consumer attached via bus.Bus.InProcessConn (SPEC_FULL.md
// §3 "Internal pub/sub"). Never required for correctness: nothing in the
// control plane blocks on or depends on a subscriber existing.
func WithMessageBus(enabled bool) Option {
	return optionFunc(func(c *config) { c.messageBus = enabled })
}

func newConfig(opts ...Option) *config {
	c := &config{
		listenAddr:             ":8080",
		pollTimeout:            5 * time.Second,
		checkInterval:          1 * time.Second,
		queueDepth:             256,
		hookTimeout:            30 * time.Second,
		logger:                 slog.Default(),
		components:             registry.ComponentsView{},
		maxConcurrentScenarios: -1,
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}
