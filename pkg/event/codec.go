// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"encoding/json"
	"fmt"
)

// Marshal encodes e as the wire JSON form used by transport ingress/egress.
func Marshal(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return b, nil
}

// Unmarshal decodes the wire JSON form into an Event, then validates the
// minimal required fields (source, event_type). Malformed or incomplete
// payloads are rejected rather than partially accepted.
func Unmarshal(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if err := Validate(e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Validate checks the minimal structural requirements of an inbound event.
func Validate(e Event) error {
	if e.Source == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, ErrMissingSource)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, ErrMissingType)
	}
	return nil
}
