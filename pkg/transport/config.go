// SPDX-License-Identifier: BSD-3-Clause

package transport

import (
	"log/slog"
	"time"

	"github.com/avena-robotics/control-core/pkg/event"
)

// Handler is invoked for each successfully decoded, non-duplicate inbound
// event. It runs synchronously within the HTTP request; it should enqueue
// and return quickly, matching the listener's enqueue-then-ack contract.
type Handler func(e event.Event)

type config struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
	logger       *slog.Logger
	handler      Handler
	dedup        *event.Dedup

	retryMaxElapsed time.Duration
	retryInitial    time.Duration
	retryMax        time.Duration
}

// Option configures a Server or Client.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithAddr sets the address the ingress server listens on.
func WithAddr(addr string) Option {
	return optionFunc(func(c *config) { c.addr = addr })
}

// WithTimeouts sets the HTTP server's read/write/idle timeouts.
func WithTimeouts(read, write, idle time.Duration) Option {
	return optionFunc(func(c *config) {
		c.readTimeout = read
		c.writeTimeout = write
		c.idleTimeout = idle
	})
}

// WithLogger sets the logger used for malformed-payload warnings and send
// failures.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *config) { c.logger = l })
}

// WithHandler sets the callback invoked for each accepted inbound event.
func WithHandler(h Handler) Option {
	return optionFunc(func(c *config) { c.handler = h })
}

// WithDedup installs an inbound deduplication window; a second delivery of
// the same (source, id) pair within the window is acked but not handed to
// Handler.
func WithDedup(d *event.Dedup) Option {
	return optionFunc(func(c *config) { c.dedup = d })
}

// WithRetryPolicy bounds the outbound Client's exponential backoff: initial
// interval, maximum interval between attempts, and maximum total elapsed
// time before giving up.
func WithRetryPolicy(initial, max, maxElapsed time.Duration) Option {
	return optionFunc(func(c *config) {
		c.retryInitial = initial
		c.retryMax = max
		c.retryMaxElapsed = maxElapsed
	})
}

func newConfig(opts ...Option) *config {
	c := &config{
		addr:            ":8080",
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		idleTimeout:     60 * time.Second,
		logger:          slog.Default(),
		retryInitial:    100 * time.Millisecond,
		retryMax:        5 * time.Second,
		retryMaxElapsed: 30 * time.Second,
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}
