// SPDX-License-Identifier: BSD-3-Clause

package transport

import "errors"

var (
	// ErrListen indicates the ingress HTTP listener could not be created.
	ErrListen = errors.New("transport: failed to create listener")
	// ErrServerClosed indicates the ingress server stopped unexpectedly
	// rather than via graceful Shutdown.
	ErrServerClosed = errors.New("transport: server closed unexpectedly")
	// ErrMalformedPayload indicates an inbound request body that did not
	// decode into a valid event. The request is dropped: no reply is sent.
	ErrMalformedPayload = errors.New("transport: malformed event payload")
	// ErrSendFailed indicates every retry attempt for an outbound delivery
	// was exhausted.
	ErrSendFailed = errors.New("transport: send failed after retries")
	// ErrNoHandler indicates an ingress server was started without an
	// inbound handler configured.
	ErrNoHandler = errors.New("transport: no inbound handler configured")
)
