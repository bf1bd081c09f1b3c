// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package transport

import (
	"context"

	"golang.org/x/time/rate"
)

// LimitedTransport wraps a Transport with a token-bucket cap on
// outbound bytes/s, in the style of a relay server's per-connection
// session/global rate limiters. The relay engine uses this to bound the
// burst a high `duplication` factor can put on the wire, rather than
// letting redundant copies starve other traffic on a constrained link.
type LimitedTransport struct {
	inner   Transport
	limiter *rate.Limiter
}

// NewLimitedTransport caps inner's outbound rate at bytesPerSecond with
// a burst of the same size. A bytesPerSecond of 0 disables limiting.
func NewLimitedTransport(inner Transport, bytesPerSecond int) Transport {
	if bytesPerSecond <= 0 {
		return inner
	}
	return &LimitedTransport{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
	}
}

// Send blocks only long enough to stay under the configured rate; the
// relay's transmit path tolerates this the same way it tolerates any
// other send-side latency.
func (l *LimitedTransport) Send(packet []byte) {
	_ = l.limiter.WaitN(context.Background(), len(packet))
	l.inner.Send(packet)
}

func (l *LimitedTransport) SetDelegate(d Delegate) { l.inner.SetDelegate(d) }
func (l *LimitedTransport) Close() error           { return l.inner.Close() }
