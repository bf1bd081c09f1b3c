// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package transport implements the datagram transport capability:
// send/receive fixed-MTU byte packets over UDP or TCP, in the five
// wiring variants the relay's connection_type config directive selects.
// Every variant satisfies the same narrow Transport interface, in the
// style of a dialers/listeners-by-protocol-name pattern.
package transport

import "fmt"

// MaxDatagramSize bounds a single inbound read: any MIDI
// message fits it trivially.
const MaxDatagramSize = 4096

// Delegate receives one fully-reassembled packet per inbound call. It
// may be invoked from a reader goroutine distinct from the caller of
// Send.
type Delegate func(packet []byte)

// Transport is the capability every connection_type variant, and the
// HMAC authenticator wrapping one, implements.
type Transport interface {
	// Send is fire-and-forget: sender-side errors are silently
	// swallowed rather than surfaced to the caller.
	Send(packet []byte)
	// SetDelegate installs the inbound sink. It must be called before
	// any packet can be observed; it is not safe to call concurrently
	// with an in-flight inbound callback.
	SetDelegate(d Delegate)
	// Close stops the reader goroutine and releases the socket.
	Close() error
}

// Endpoint is a (host, port) pair.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}
