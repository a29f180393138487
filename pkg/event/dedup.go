// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"sync"
	"time"
)

const (
	dedupWindowSize = 128
	dedupWindowTTL  = 5 * time.Minute
)

// seenID is one entry in a sender's ring buffer.
type seenID struct {
	id  int64
	at  time.Time
	set bool
}

// senderWindow tracks the last dedupWindowSize ids seen from one source,
// evicting by TTL and by ring-buffer overwrite once full.
type senderWindow struct {
	mu   sync.Mutex
	ring [dedupWindowSize]seenID
	pos  int
}

func (w *senderWindow) seen(id int64, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.ring {
		e := w.ring[i]
		if !e.set {
			continue
		}
		if now.Sub(e.at) > dedupWindowTTL {
			w.ring[i] = seenID{}
			continue
		}
		if e.id == id {
			return true
		}
	}

	w.ring[w.pos] = seenID{id: id, at: now, set: true}
	w.pos = (w.pos + 1) % dedupWindowSize
	return false
}

// Dedup tracks recently-seen (source, id) pairs for transport ingress, so a
// retried delivery of the same event is recognized and dropped rather than
// reprocessed. Each source gets its own fixed-size window so one noisy
// sender cannot evict another sender's entries.
type Dedup struct {
	mu      sync.Mutex
	windows map[string]*senderWindow
}

// NewDedup returns a ready-to-use Dedup tracker.
func NewDedup() *Dedup {
	return &Dedup{windows: make(map[string]*senderWindow)}
}

// Seen reports whether e has already been observed from its source within
// the dedup window, recording it as seen if not.
func (d *Dedup) Seen(e Event) bool {
	return d.seenAt(e, time.Now())
}

func (d *Dedup) seenAt(e Event, now time.Time) bool {
	d.mu.Lock()
	w, ok := d.windows[e.Source]
	if !ok {
		w = &senderWindow{}
		d.windows[e.Source] = w
	}
	d.mu.Unlock()

	return w.seen(e.ID, now)
}
