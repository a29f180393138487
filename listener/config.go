// SPDX-License-Identifier: BSD-3-Clause

package listener

import (
	"log/slog"
	"time"

	"github.com/avena-robotics/control-core/pkg/event"
	"github.com/avena-robotics/control-core/pkg/fsm"
	"github.com/avena-robotics/control-core/pkg/transport"
)

// AddressBook resolves a destination client name to the host/port its
// transport ingress server listens on (spec.md §3.4 "Address" / "Port"
// client fields).
type AddressBook func(destination string) (addr string, port int, ok bool)

type config struct {
	name        string
	listenAddr  string
	addresses   AddressBook
	behavior    Behavior
	queueDepth  int
	hookTimeout time.Duration
	checkEvery  time.Duration
	statePeriod time.Duration
	logger      *slog.Logger
	dedup       *event.Dedup
	persistence fsm.PersistenceCallback
	broadcast   fsm.BroadcastCallback
	transportOpts []transport.Option
}

// Option configures a Listener.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithName sets the listener's identity, used as its FSM name and as the
// Source field on every event it emits.
func WithName(name string) Option {
	return optionFunc(func(c *config) { c.name = name })
}

// WithListenAddr sets the address this listener's ingress server binds.
func WithListenAddr(addr string) Option {
	return optionFunc(func(c *config) { c.listenAddr = addr })
}

// WithAddressBook installs the destination-name-to-address/port resolver
// Emit uses.
func WithAddressBook(a AddressBook) Option {
	return optionFunc(func(c *config) { c.addresses = a })
}

// WithBehavior installs the domain-specific lifecycle hooks and event
// handling. Required.
func WithBehavior(b Behavior) Option {
	return optionFunc(func(c *config) { c.behavior = b })
}

// WithQueueDepth sets the capacity of the incoming/to_be_sent/pause queues.
func WithQueueDepth(n int) Option {
	return optionFunc(func(c *config) { c.queueDepth = n })
}

// WithHookTimeout bounds how long a lifecycle hook may run before the FSM
// is forced to FAULT.
func WithHookTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.hookTimeout = d })
}

// WithCheckInterval sets how often the local_check worker loop calls
// Behavior.CheckLocalData.
func WithCheckInterval(d time.Duration) Option {
	return optionFunc(func(c *config) { c.checkEvery = d })
}

// WithStateRefreshInterval sets how often the state_update worker loop
// recomputes the listener's own health/state blob.
func WithStateRefreshInterval(d time.Duration) Option {
	return optionFunc(func(c *config) { c.statePeriod = d })
}

// WithLogger overrides the listener's default logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *config) { c.logger = l })
}

// WithDedup installs an inbound deduplication window on the ingress server.
func WithDedup(d *event.Dedup) Option {
	return optionFunc(func(c *config) { c.dedup = d })
}

// WithPersistence sets the callback invoked after every committed FSM
// transition.
func WithPersistence(cb fsm.PersistenceCallback) Option {
	return optionFunc(func(c *config) { c.persistence = cb })
}

// WithBroadcast sets the callback invoked after every committed FSM
// transition, for audit/telemetry consumers.
func WithBroadcast(cb fsm.BroadcastCallback) Option {
	return optionFunc(func(c *config) { c.broadcast = cb })
}

// WithTransportOptions passes additional options through to the underlying
// transport.Server/Client (timeouts, retry policy, ...).
func WithTransportOptions(opts ...transport.Option) Option {
	return optionFunc(func(c *config) { c.transportOpts = append(c.transportOpts, opts...) })
}

func newConfig(opts ...Option) *config {
	c := &config{
		listenAddr:  ":8080",
		queueDepth:  256,
		hookTimeout: 30 * time.Second,
		checkEvery:  1 * time.Second,
		statePeriod: 1 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}
