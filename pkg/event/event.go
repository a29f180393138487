// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"sync/atomic"
	"time"
)

// Standard lifecycle command tags. The integer FSM state codes they drive
// live in pkg/fsm; these are the wire-level event_type values.
const (
	CmdGetState       = "CMD_GET_STATE"
	CmdInitialized    = "CMD_INITIALIZED"
	CmdRun            = "CMD_RUN"
	CmdPause          = "CMD_PAUSE"
	CmdStopped        = "CMD_STOPPED"
	CmdAck            = "CMD_ACK"
	CmdHealthCheck    = "CMD_HEALTH_CHECK"
	CmdInternalOnErr  = "ON_ERROR"
)

// Result is present on reply events only.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Event is the immutable record exchanged between listeners. Once
// constructed, none of its fields are mutated; a reply is a new Event built
// by Reply, carrying its own Result.
type Event struct {
	ID                     int64          `json:"id"`
	Source                 string         `json:"source"`
	SourceAddress          string         `json:"source_address"`
	SourcePort             int            `json:"source_port"`
	Destination            string         `json:"destination"`
	DestinationAddress     string         `json:"destination_address"`
	DestinationPort        int            `json:"destination_port"`
	EventType              string         `json:"event_type"`
	Data                   map[string]any `json:"data,omitempty"`
	Result                 *Result        `json:"result,omitempty"`
	MaximumProcessingTime  time.Duration  `json:"maximum_processing_time"`
	Timestamp              time.Time      `json:"timestamp"`
}

// IDGenerator allocates monotonically increasing, per-sender unique event
// IDs. The zero value is ready to use.
type IDGenerator struct {
	next int64
}

// Next returns the next id for this sender.
func (g *IDGenerator) Next() int64 {
	return atomic.AddInt64(&g.next, 1)
}

// New constructs a fresh outbound event from source to destination. The
// caller supplies the already-allocated id (see IDGenerator).
func New(id int64, source, sourceAddr string, sourcePort int, destination, destAddr string, destPort int, eventType string, data map[string]any, maxProcessing time.Duration) Event {
	return Event{
		ID:                    id,
		Source:                source,
		SourceAddress:         sourceAddr,
		SourcePort:            sourcePort,
		Destination:           destination,
		DestinationAddress:    destAddr,
		DestinationPort:       destPort,
		EventType:             eventType,
		Data:                  data,
		MaximumProcessingTime: maxProcessing,
		Timestamp:             time.Now(),
	}
}

// Reply builds a reply to e: id is preserved, source and destination are
// swapped, and the given result is attached. Timestamp reflects reply
// creation time, not the original event's.
func Reply(e Event, success bool, message string, data map[string]any) Event {
	return Event{
		ID:                    e.ID,
		Source:                e.Destination,
		SourceAddress:         e.DestinationAddress,
		SourcePort:            e.DestinationPort,
		Destination:           e.Source,
		DestinationAddress:    e.SourceAddress,
		DestinationPort:       e.SourcePort,
		EventType:             e.EventType,
		Result:                &Result{Success: success, Message: message, Data: data},
		MaximumProcessingTime: e.MaximumProcessingTime,
		Timestamp:             time.Now(),
	}
}

// IsLifecycleCommand reports whether event_type names one of the FSM
// lifecycle commands, as opposed to a domain-specific event that gets
// dispatched according to the listener's current state.
func IsLifecycleCommand(eventType string) bool {
	switch eventType {
	case CmdGetState, CmdInitialized, CmdRun, CmdPause, CmdStopped, CmdAck, CmdHealthCheck:
		return true
	default:
		return false
	}
}

// Key identifies an event for deduplication and processing-queue
// correlation: the (source, id) pair is unique per sender.
type Key struct {
	Source string
	ID     int64
}

// KeyOf returns the correlation key for e.
func KeyOf(e Event) Key {
	return Key{Source: e.Source, ID: e.ID}
}

// IsReplyTo reports whether reply correlates with the original sent event
// orig: matching id, and source/destination swapped.
func IsReplyTo(orig, reply Event) bool {
	return orig.ID == reply.ID &&
		orig.Destination == reply.Source &&
		orig.Source == reply.Destination
}
