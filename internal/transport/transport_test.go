// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package transport

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeTransport is an in-memory Transport used to test AuthTransport and
// LimitedTransport without touching the network.
type fakeTransport struct {
	mut      sync.Mutex
	sent     [][]byte
	delegate Delegate
}

func (f *fakeTransport) Send(packet []byte) {
	f.mut.Lock()
	defer f.mut.Unlock()
	cp := make([]byte, len(packet))
	copy(cp, packet)
	f.sent = append(f.sent, cp)
}

func (f *fakeTransport) SetDelegate(d Delegate) {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.delegate = d
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) deliver(packet []byte) {
	f.mut.Lock()
	d := f.delegate
	f.mut.Unlock()
	if d != nil {
		d(packet)
	}
}

func TestHMACRoundTrip(t *testing.T) {
	key := []byte("secret")
	inner := &fakeTransport{}
	sender := NewAuthTransport(inner, key)

	receivedCh := make(chan []byte, 1)
	receiverInner := &fakeTransport{}
	receiver := NewAuthTransport(receiverInner, key)
	receiver.SetDelegate(func(p []byte) { receivedCh <- p })

	payload := []byte("hello pianoconnect")
	sender.Send(payload)

	inner.mut.Lock()
	framed := inner.sent[0]
	inner.mut.Unlock()

	receiverInner.deliver(framed)

	select {
	case got := <-receivedCh:
		if !bytes.Equal(got, payload) {
			t.Fatalf("got %q, want %q", got, payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestHMACRejectsTamperedFrame(t *testing.T) {
	key := []byte("secret")
	inner := &fakeTransport{}
	sender := NewAuthTransport(inner, key)
	sender.Send([]byte("payload"))

	inner.mut.Lock()
	framed := append([]byte{}, inner.sent[0]...)
	inner.mut.Unlock()
	framed[0] ^= 0xFF // tamper with the payload

	receiverInner := &fakeTransport{}
	receiver := NewAuthTransport(receiverInner, key)
	delivered := false
	receiver.SetDelegate(func(p []byte) { delivered = true })
	receiverInner.deliver(framed)

	if delivered {
		t.Fatal("tampered frame should not have been delivered")
	}
}

func TestHMACDropsShortFrame(t *testing.T) {
	receiverInner := &fakeTransport{}
	receiver := NewAuthTransport(receiverInner, []byte("k"))
	delivered := false
	receiver.SetDelegate(func(p []byte) { delivered = true })
	receiverInner.deliver([]byte{1, 2, 3})
	if delivered {
		t.Fatal("short frame should have been dropped")
	}
}

func TestTCPFramingRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := bytes.Repeat([]byte{0xAB}, 1500)

	done := make(chan []byte, 1)
	go func() {
		got, err := readFrame(server)
		if err != nil {
			t.Error(err)
			return
		}
		done <- got
	}()

	if err := writeFrame(client, payload); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-done:
		if !bytes.Equal(got, payload) {
			t.Fatalf("frame mismatch: got %d bytes, want %d", len(got), len(payload))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

// fragmentedReader breaks every Read into 1-byte chunks to exercise
// readFrame's reassembly against a deliberately fragmented reader.
type fragmentedReader struct {
	r io.Reader
}

func (f *fragmentedReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return f.r.Read(p)
}

func TestTCPFramingUnderFragmentation(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte{0x42}, 1500)
	if err := writeFrame(&buf, payload); err != nil {
		t.Fatal(err)
	}

	got, err := readFrame(&fragmentedReader{r: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("fragmented reassembly mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}
