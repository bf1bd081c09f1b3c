// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Ticker fires fn repeatedly at interval until Stop is called. It is the
// single abstraction behind both the ~100µs scheduled-release tick and
// the 200ms clock-sync/status loop: production code drives it off the
// real clock, tests off a clockwork.FakeClock so ticks can be advanced
// synchronously.
type Ticker struct {
	clock clockwork.Clock
	stop  chan struct{}
	done  chan struct{}
}

// NewTicker starts a goroutine that calls fn every interval, using the
// clock backing src. It never invokes fn concurrently with itself.
func NewTicker(src Source, interval time.Duration, fn func()) *Ticker {
	rs, ok := src.(*realSource)
	var c clockwork.Clock
	if ok {
		c = rs.clock
	} else {
		c = clockwork.NewRealClock()
	}

	t := &Ticker{
		clock: c,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	wt := c.NewTicker(interval)
	go func() {
		defer close(t.done)
		defer wt.Stop()
		for {
			select {
			case <-wt.Chan():
				fn()
			case <-t.stop:
				return
			}
		}
	}()

	return t
}

// Stop terminates the ticker goroutine and waits for the in-flight
// callback, if any, to return.
func (t *Ticker) Stop() {
	close(t.stop)
	<-t.done
}
