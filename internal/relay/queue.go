// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package relay implements the core engine: clock sync, deduplication,
// the timestamp-ordered playback queue, and the ingress/egress pipelines
// that tie transport, MIDI ports, and the clock source together. The
// playback queue and log buffer share one mutex, in the style of a
// heap-backed, mutex-guarded event queue.
package relay

import (
	"container/heap"
	"sync"

	"github.com/pianoconnect/pianoconnectd/internal/wire"
)

// messageHeap is a min-heap of MIDIMessage ordered by ascending
// timestamp, with insertion sequence as a deterministic tiebreaker.
type messageHeap struct {
	items []queuedMessage
}

type queuedMessage struct {
	msg wire.MIDIMessage
	seq uint64
}

func (h messageHeap) Len() int { return len(h.items) }
func (h messageHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.msg.Timestamp != b.msg.Timestamp {
		return a.msg.Timestamp < b.msg.Timestamp
	}
	return a.seq < b.seq
}
func (h messageHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *messageHeap) Push(x any)   { h.items = append(h.items, x.(queuedMessage)) }
func (h *messageHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// PlaybackQueue pairs the scheduled-release heap with the pending log
// buffer under a single mutex: the two are exactly one critical region,
// so a release and a log drain can never interleave inconsistently.
type PlaybackQueue struct {
	mu  sync.Mutex
	pq  messageHeap
	seq uint64
	log []wire.MIDIMessage
}

// NewPlaybackQueue returns an empty, ready-to-use queue.
func NewPlaybackQueue() *PlaybackQueue {
	q := &PlaybackQueue{}
	heap.Init(&q.pq)
	return q
}

// Push inserts msg, to be released once its Timestamp has passed.
func (q *PlaybackQueue) Push(msg wire.MIDIMessage) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.pq, queuedMessage{msg: msg, seq: q.seq})
	q.mu.Unlock()
}

// Len reports the number of messages currently pending release.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len()
}

// DrainDue pops every message whose Timestamp is <= now, appends each to
// the log buffer, and returns them in release order.
func (q *PlaybackQueue) DrainDue(now float64) []wire.MIDIMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []wire.MIDIMessage
	for q.pq.Len() > 0 && q.pq.items[0].msg.Timestamp <= now {
		item := heap.Pop(&q.pq).(queuedMessage)
		due = append(due, item.msg)
		q.log = append(q.log, item.msg)
	}
	return due
}

// DrainLog atomically empties and returns the log buffer.
func (q *PlaybackQueue) DrainLog() []wire.MIDIMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.log) == 0 {
		return nil
	}
	out := q.log
	q.log = nil
	return out
}
