// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package clock provides the relay's single high-resolution wall-clock
// source. Every timestamp that crosses the wire or enters the playback
// queue is derived from one of these calls, so tests can substitute a
// clockwork.FakeClock to drive clock-sync convergence and scheduled
// release deterministically instead of sleeping in real time.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Source returns wall-clock time as fractional seconds since the Unix
// epoch, read from the backing clock.
type Source interface {
	Now() float64
}

type realSource struct {
	clock clockwork.Clock
}

// New returns the production clock source, backed by the system clock
// via clockwork.NewRealClock.
func New() Source {
	return &realSource{clock: clockwork.NewRealClock()}
}

// NewFromClockwork wraps an existing clockwork.Clock, for tests that need
// to advance time deterministically (clockwork.NewFakeClock()).
func NewFromClockwork(c clockwork.Clock) Source {
	return &realSource{clock: c}
}

func (r *realSource) Now() float64 {
	return float64(r.clock.Now().UnixNano()) / float64(time.Second)
}
