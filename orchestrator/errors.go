// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import "errors"

var (
	// ErrUnknownClient is returned when a caller names a client absent from
	// the configured registry.
	ErrUnknownClient = errors.New("orchestrator: unknown client")

	// ErrDuplicateClient is returned when two client configs share a name.
	ErrDuplicateClient = errors.New("orchestrator: duplicate client name")
)
