// SPDX-License-Identifier: BSD-3-Clause

package event

import "errors"

var (
	// ErrInvalidEvent indicates a malformed event payload.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrMissingSource indicates an event without a source.
	ErrMissingSource = errors.New("event missing source")
	// ErrMissingType indicates an event without an event_type.
	ErrMissingType = errors.New("event missing event_type")
	// ErrEncodeFailed indicates JSON marshaling of an event failed.
	ErrEncodeFailed = errors.New("event encode failed")
	// ErrDecodeFailed indicates JSON unmarshaling of an event failed.
	ErrDecodeFailed = errors.New("event decode failed")
)

// TransportError wraps a network/HTTP send failure from an outbound
// delivery attempt.
type TransportError struct {
	Destination string
	Err         error
}

func (e *TransportError) Error() string {
	return "transport: delivery to " + e.Destination + " failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
