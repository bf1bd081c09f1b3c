// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pianoconnect/pianoconnectd/internal/clock"
	"github.com/pianoconnect/pianoconnectd/internal/config"
	"github.com/pianoconnect/pianoconnectd/internal/midi"
	"github.com/pianoconnect/pianoconnectd/internal/transport"
	"github.com/pianoconnect/pianoconnectd/internal/wire"
)

// fakeTransport is an in-memory transport.Transport double: Send just
// records the packet, there is no real network.
type fakeTransport struct {
	mu   sync.Mutex
	sent [][]byte
	del  transport.Delegate
}

func (f *fakeTransport) Send(packet []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), packet...)
	f.sent = append(f.sent, cp)
}

func (f *fakeTransport) SetDelegate(d transport.Delegate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.del = d
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) deliver(packet []byte) {
	f.mu.Lock()
	d := f.del
	f.mu.Unlock()
	if d != nil {
		d(packet)
	}
}

func (f *fakeTransport) sentPackets() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeOutPort records every Send call.
type fakeOutPort struct {
	mu   sync.Mutex
	sent [][]byte
}

func (p *fakeOutPort) Name() string { return "fake-out" }
func (p *fakeOutPort) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}
func (p *fakeOutPort) Close() error { return nil }

func (p *fakeOutPort) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestDeduplicationInvariant(t *testing.T) {
	ft := &fakeTransport{}
	out := &fakeOutPort{}
	fc := clockwork.NewFakeClock()
	cfg := config.Default()
	cfg.Duplication = 1

	r := New(Options{
		Transport: ft,
		Outputs:   []midi.OutPort{out},
		Clock:     clock.NewFromClockwork(fc),
		Config:    cfg,
	})
	ft.SetDelegate(r.HandlePacket)

	packet := wire.EncodeMIDIPacket(wire.MIDIPacket{
		Message:    wire.MIDIMessage{Length: 3, Timestamp: 1.0, Bytes: [8]byte{0x90, 0x3C, 0x7F}},
		Identifier: wire.UniqueIdentifier{Serial: 1, Timestamp: 1.0},
	})

	ft.deliver(packet)
	ft.deliver(packet) // duplicate
	ft.deliver(packet) // duplicate again

	if got := r.QueueDepth(); got != 1 {
		t.Fatalf("QueueDepth() = %d, want 1 (duplicates must collapse)", got)
	}
}

func TestOrderingInvariant(t *testing.T) {
	q := NewPlaybackQueue()
	q.Push(wire.MIDIMessage{Length: 1, Timestamp: 3.0})
	q.Push(wire.MIDIMessage{Length: 1, Timestamp: 1.0})
	q.Push(wire.MIDIMessage{Length: 1, Timestamp: 2.0})

	due := q.DrainDue(10.0)
	if len(due) != 3 {
		t.Fatalf("DrainDue returned %d messages, want 3", len(due))
	}
	for i := 1; i < len(due); i++ {
		if due[i].Timestamp < due[i-1].Timestamp {
			t.Fatalf("non-decreasing order violated: %v", due)
		}
	}
}

func TestDuplicationInvariant(t *testing.T) {
	ft := &fakeTransport{}
	out := &fakeOutPort{}
	fc := clockwork.NewFakeClock()
	cfg := config.Default()
	cfg.Duplication = 3

	r := New(Options{
		Transport: ft,
		Outputs:   []midi.OutPort{out},
		Clock:     clock.NewFromClockwork(fc),
		Config:    cfg,
	})

	r.HandleLocalMIDI(0, []byte{0x90, 0x3C, 0x7F})

	sent := ft.sentPackets()
	if len(sent) != 3 {
		t.Fatalf("sent %d packets, want 3 (duplication=3)", len(sent))
	}
	first, err := wire.DecodeMIDIPacket(sent[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range sent[1:] {
		pkt, err := wire.DecodeMIDIPacket(p)
		if err != nil {
			t.Fatal(err)
		}
		if pkt.Identifier != first.Identifier {
			t.Fatalf("duplicated packets must share one identifier: %+v vs %+v", pkt.Identifier, first.Identifier)
		}
	}

	// Exactly one local queue insertion regardless of duplication factor.
	if got := r.QueueDepth(); got != 1 {
		t.Fatalf("QueueDepth() = %d, want 1 (duplication must not multiply local insert)", got)
	}
}

func TestSerialMonotonicity(t *testing.T) {
	ft := &fakeTransport{}
	out := &fakeOutPort{}
	fc := clockwork.NewFakeClock()
	cfg := config.Default()

	r := New(Options{
		Transport: ft,
		Outputs:   []midi.OutPort{out},
		Clock:     clock.NewFromClockwork(fc),
		Config:    cfg,
	})

	r.HandleLocalMIDI(0, []byte{0x90, 0x3C, 0x7F})
	r.HandleLocalMIDI(0, []byte{0x90, 0x3E, 0x7F})
	r.HandleLocalMIDI(0, []byte{0x90, 0x40, 0x7F})

	sent := ft.sentPackets()
	var prev wire.UniqueIdentifier
	for i, p := range sent {
		pkt, err := wire.DecodeMIDIPacket(p)
		if err != nil {
			t.Fatal(err)
		}
		if i > 0 && !prev.Less(pkt.Identifier) {
			t.Fatalf("identifier %d (%+v) does not strictly follow %+v", i, pkt.Identifier, prev)
		}
		prev = pkt.Identifier
	}
}

func TestClockMathInvariant(t *testing.T) {
	ft := &fakeTransport{}
	out := &fakeOutPort{}
	fc := clockwork.NewFakeClock()
	cfg := config.Default()

	r := New(Options{
		Transport: ft,
		Outputs:   []midi.OutPort{out},
		Clock:     clock.NewFromClockwork(fc),
		Config:    cfg,
	})

	const ts, tp = 10.0, 10.2 // timestamp_sent, timestamp_ack (peer)
	fc.Advance(300 * time.Millisecond)
	tFinal := r.clockSrc.Now() // local clock at reception

	ack := wire.ClockSyncAck{TimestampSent: ts, TimestampAck: tp}
	r.handleClockSyncAck(wire.EncodeClockSyncAck(ack))

	wantDelta := tp - (ts+tFinal)/2
	wantLatency := (tFinal - ts) / 2

	gotDelta, gotLatency := r.clockState.Snapshot()
	if gotDelta != wantDelta {
		t.Fatalf("delta = %v, want %v", gotDelta, wantDelta)
	}
	if gotLatency != wantLatency {
		t.Fatalf("latency = %v, want %v", gotLatency, wantLatency)
	}
}

func TestOversizedMIDIDropped(t *testing.T) {
	ft := &fakeTransport{}
	out := &fakeOutPort{}
	fc := clockwork.NewFakeClock()
	cfg := config.Default()

	r := New(Options{
		Transport: ft,
		Outputs:   []midi.OutPort{out},
		Clock:     clock.NewFromClockwork(fc),
		Config:    cfg,
	})

	r.HandleLocalMIDI(0, make([]byte, 9))

	if len(ft.sentPackets()) != 0 {
		t.Fatal("oversized message must not be sent")
	}
	if r.QueueDepth() != 0 {
		t.Fatal("oversized message must not be queued")
	}
	_, _, dropped := r.Stats()
	if dropped != 1 {
		t.Fatalf("numDroppedOversized = %d, want 1", dropped)
	}
}

func TestReleaseFanOut(t *testing.T) {
	ft := &fakeTransport{}
	out := &fakeOutPort{}
	fc := clockwork.NewFakeClock()
	cfg := config.Default()

	r := New(Options{
		Transport: ft,
		Outputs:   []midi.OutPort{out},
		Clock:     clock.NewFromClockwork(fc),
		Config:    cfg,
	})

	r.queue.Push(wire.MIDIMessage{Length: 3, Timestamp: r.clockSrc.Now() - 1, Bytes: [8]byte{0x80, 0x3C, 0x00}})
	r.onReleaseTick()

	if got := out.sentCount(); got != 1 {
		t.Fatalf("output received %d sends, want 1", got)
	}
	_, midiCount, _ := r.Stats()
	if midiCount != 1 {
		t.Fatalf("numMIDIMessages = %d, want 1", midiCount)
	}
}
