// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"sync"

	"github.com/pianoconnect/pianoconnectd/internal/stats"
)

// ClockState owns the NTP-style delta/latency estimators and the
// current averages derived from them. These are fed from the network
// reader goroutine and read from the main loop for the status line; a
// small mutex removes the resulting data race.
type ClockState struct {
	mu sync.Mutex

	deltaEst   *stats.RunningMean
	latencyEst *stats.RunningMean

	delta   float64
	latency float64
}

// NewClockState returns a ClockState with both averages starting at 0.
func NewClockState() *ClockState {
	return &ClockState{
		deltaEst:   stats.New(),
		latencyEst: stats.New(),
	}
}

// Feed records one ClockSyncAck sample and updates the current
// delta/latency averages.
func (c *ClockState) Feed(deltaSample, latencySample float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deltaEst.Feed(deltaSample)
	c.latencyEst.Feed(latencySample)
	c.delta = c.deltaEst.Average()
	c.latency = c.latencyEst.Average()
}

// Snapshot returns the current delta and one-way latency averages.
func (c *ClockState) Snapshot() (delta, latency float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delta, c.latency
}
