// SPDX-License-Identifier: BSD-3-Clause

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/avena-robotics/control-core/pkg/fsm"
)

// Bus is an embedded, in-process-only NATS server: no network listener, no
// JetStream, just a subject tree other in-process subscribers (a dashboard
// bridge, an audit sink) can attach to via InProcessConn.
type Bus struct {
	name            string
	startupTimeout  time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	server *server.Server
	conn   *nats.Conn
}

// Option configures a Bus.
type Option interface {
	apply(*Bus)
}

type optionFunc func(*Bus)

func (f optionFunc) apply(b *Bus) { f(b) }

// WithName sets the embedded server's name, used in log lines and the NATS
// server ID.
func WithName(name string) Option {
	return optionFunc(func(b *Bus) { b.name = name })
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(b *Bus) { b.logger = l })
}

// New builds a Bus. Call Run to start the embedded server.
func New(opts ...Option) *Bus {
	b := &Bus{
		name:            "control-core",
		startupTimeout:  10 * time.Second,
		shutdownTimeout: 5 * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(b)
	}
	return b
}

// Run starts the embedded NATS server and blocks until ctx is canceled,
// mirroring the teacher's service/ipc lifecycle (start, wait ready, serve,
// lame-duck shutdown).
func (b *Bus) Run(ctx context.Context) error {
	opts := &server.Options{
		ServerName: b.name,
		DontListen: true,
		NoLog:      true,
		NoSigs:     true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("bus: creating embedded server: %w", err)
	}
	b.server = ns
	b.server.Start()

	if !b.server.ReadyForConnections(b.startupTimeout) {
		b.server.Shutdown()
		return fmt.Errorf("bus: server not ready within %s", b.startupTimeout)
	}
	b.logger.InfoContext(ctx, "embedded message bus started", "name", b.name, "server_id", b.server.ID())

	conn, err := nats.Connect("", nats.InProcessServer(b))
	if err != nil {
		b.server.Shutdown()
		return fmt.Errorf("bus: connecting publisher: %w", err)
	}
	b.conn = conn

	<-ctx.Done()

	b.logger.InfoContext(context.WithoutCancel(ctx), "shutting down message bus")
	b.conn.Close()
	b.server.LameDuckShutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.server.Shutdown()
	}()
	select {
	case <-done:
	case <-time.After(b.shutdownTimeout):
		b.logger.Warn("message bus shutdown timed out, forcing close")
	}
	return ctx.Err()
}

// InProcessConn implements nats.InProcessConnProvider so nats.Connect can
// dial this Bus's embedded server without a network listener.
func (b *Bus) InProcessConn() (net.Conn, error) {
	if b.server == nil {
		return nil, fmt.Errorf("bus: server not started")
	}
	return b.server.InProcessConn()
}

// Publish sends payload on subject. A nil/unstarted bus or a momentarily
// disconnected publisher is not an error the caller must handle specially:
// broadcast is best-effort, never load-bearing for control-plane correctness.
func (b *Bus) Publish(subject string, payload []byte) error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Publish(subject, payload)
}

// FSMBroadcastCallback adapts Bus.Publish to fsm.BroadcastCallback, one
// subject per listener name, payload "from,to,trigger" (spec.md §3.2).
func (b *Bus) FSMBroadcastCallback() fsm.BroadcastCallback {
	return func(name string, from, to fsm.State, trigger string) {
		subject := fmt.Sprintf("control-core.fsm.%s", name)
		_ = b.Publish(subject, []byte(fmt.Sprintf("%s,%s,%s", from, to, trigger)))
	}
}
