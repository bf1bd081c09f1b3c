// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"sync"

	"github.com/pianoconnect/pianoconnectd/internal/wire"
)

// evictionWindow bounds how long an inbound identifier is remembered
// before it is forgotten.
const evictionWindow = 10.0

// Dedup tracks identifiers already observed inbound, bounded to a trailing window of message
// timestamps rather than growing for the process lifetime. InsertIfNew is
// called from the transport reader goroutine and Evict from the main-tick
// goroutine, so seen is guarded by mu rather than touched bare.
type Dedup struct {
	mu   sync.Mutex
	seen map[wire.UniqueIdentifier]struct{}
}

// NewDedup returns an empty deduplication set.
func NewDedup() *Dedup {
	return &Dedup{seen: make(map[wire.UniqueIdentifier]struct{})}
}

// InsertIfNew records id and reports true if it had not been seen
// before. A false return means the packet is a duplicate and must be
// discarded silently.
func (d *Dedup) InsertIfNew(id wire.UniqueIdentifier) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

// Evict removes every identifier whose Timestamp is older than the
// eviction window relative to now.
func (d *Dedup) Evict(now float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := now - evictionWindow
	for id := range d.seen {
		if id.Timestamp < cutoff {
			delete(d.seen, id)
		}
	}
}

// Len reports the number of identifiers currently remembered.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
