// SPDX-License-Identifier: BSD-3-Clause

// Package transport implements the Event & Transport layer: an HTTP
// ingress server that decodes, deduplicates, and dispatches inbound
// events, and an HTTP client for outbound delivery with exponential
// backoff retry, per the listener's emit/ack contract.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/avena-robotics/control-core/pkg/event"
)

// ackBody is the synchronous acknowledgement written for every request that
// decodes and validates; a malformed or invalid request gets a 400 instead.
type ackBody struct {
	ID       int64 `json:"id"`
	Received bool  `json:"received"`
}

// Server is the ingress side of the transport layer: one HTTP listener
// accepting POSTed events on /event.
type Server struct {
	cfg *config
	srv *http.Server
}

// NewServer builds an ingress server from opts. WithHandler must be set;
// NewServer returns ErrNoHandler otherwise.
func NewServer(opts ...Option) (*Server, error) {
	cfg := newConfig(opts...)
	if cfg.handler == nil {
		return nil, ErrNoHandler
	}

	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/event", s.handleEvent)

	s.srv = &http.Server{
		Addr:         cfg.addr,
		Handler:      mux,
		ReadTimeout:  cfg.readTimeout,
		WriteTimeout: cfg.writeTimeout,
		IdleTimeout:  cfg.idleTimeout,
	}
	return s, nil
}

// Run listens and serves until ctx is canceled, then gracefully shuts down.
func (s *Server) Run(ctx context.Context) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListen, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%w: %w", ErrServerClosed, err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.writeTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%w: %w", ErrServerClosed, err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var e event.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		s.cfg.logger.WarnContext(r.Context(), "dropping malformed event payload", "error", err)
		http.Error(w, ErrMalformedPayload.Error(), http.StatusBadRequest)
		return
	}
	if err := event.Validate(e); err != nil {
		s.cfg.logger.WarnContext(r.Context(), "dropping invalid event", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.cfg.dedup != nil && s.cfg.dedup.Seen(e) {
		s.cfg.logger.DebugContext(r.Context(), "dropping duplicate event", "source", e.Source, "id", e.ID)
		s.writeAck(w, e.ID)
		return
	}

	s.cfg.handler(e)
	s.writeAck(w, e.ID)
}

func (s *Server) writeAck(w http.ResponseWriter, id int64) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ackBody{ID: id, Received: true})
}
