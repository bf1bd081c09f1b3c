// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package transport

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is used for integrity/authenticity only, not confidentiality
)

// hmacTagSize is the fixed HMAC-SHA1 tag length appended to every frame.
const hmacTagSize = 20

// AuthTransport wraps any Transport with an HMAC-SHA1 integrity tag: on
// send it appends a 20-byte tag over the payload; on receive it verifies
// and strips the tag, dropping short or mismatched frames silently with
// no counter and no log line.
type AuthTransport struct {
	inner Transport
	key   []byte
}

// NewAuthTransport wraps inner, authenticating frames with key.
func NewAuthTransport(inner Transport, key []byte) *AuthTransport {
	a := &AuthTransport{inner: inner, key: key}
	return a
}

// Send appends an HMAC-SHA1(key, payload) tag and forwards to inner.
func (a *AuthTransport) Send(packet []byte) {
	tag := a.sign(packet)
	framed := make([]byte, 0, len(packet)+hmacTagSize)
	framed = append(framed, packet...)
	framed = append(framed, tag...)
	a.inner.Send(framed)
}

// SetDelegate installs d to receive only frames that pass HMAC
// validation; invalid frames never reach d.
func (a *AuthTransport) SetDelegate(d Delegate) {
	a.inner.SetDelegate(func(framed []byte) {
		if len(framed) < hmacTagSize {
			return
		}
		split := len(framed) - hmacTagSize
		payload, tag := framed[:split], framed[split:]
		want := a.sign(payload)
		if !hmac.Equal(tag, want) {
			return
		}
		d(payload)
	})
}

// Close closes the wrapped transport.
func (a *AuthTransport) Close() error {
	return a.inner.Close()
}

func (a *AuthTransport) sign(payload []byte) []byte {
	mac := hmac.New(sha1.New, a.key)
	mac.Write(payload)
	return mac.Sum(nil)
}
