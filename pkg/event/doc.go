// SPDX-License-Identifier: BSD-3-Clause

// Package event defines the immutable event record exchanged between
// listeners, the standard lifecycle command tags, and the inbound
// deduplication window used by transport ingress.
//
// An Event never mutates after construction: replies are built with Reply,
// copying the original id and swapping source/destination, never by mutating
// the request in place.
package event
