// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package wire

import (
	"bytes"
	"testing"
)

func TestPingRoundTrip(t *testing.T) {
	buf := EncodePing()
	if len(buf) != 1 {
		t.Fatalf("ping length = %d, want 1", len(buf))
	}
	typ, err := PeekType(buf)
	if err != nil {
		t.Fatal(err)
	}
	if typ != TypePing {
		t.Fatalf("type = %d, want %d", typ, TypePing)
	}
}

func TestClockSyncRoundTrip(t *testing.T) {
	in := ClockSync{TimestampSent: 123.456, TimestampAck: 0}
	buf := EncodeClockSync(in)
	typ, err := PeekType(buf)
	if err != nil || typ != TypeClockSync {
		t.Fatalf("type = %v, err = %v", typ, err)
	}
	out, err := DecodeClockSync(buf)
	if err != nil {
		t.Fatal(err)
	}
	if out.TimestampSent != in.TimestampSent {
		t.Fatalf("TimestampSent = %v, want %v", out.TimestampSent, in.TimestampSent)
	}
}

func TestClockSyncAckRoundTrip(t *testing.T) {
	in := ClockSyncAck{TimestampSent: 1.5, TimestampAck: 9.25}
	buf := EncodeClockSyncAck(in)
	out, err := DecodeClockSyncAck(buf)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestMIDIPacketRoundTrip(t *testing.T) {
	var p MIDIPacket
	p.Message.Length = 3
	p.Message.Timestamp = 42.5
	copy(p.Message.Bytes[:], []byte{0x90, 0x3C, 0x7F})
	p.Identifier.Serial = 7
	p.Identifier.Timestamp = 42.5

	buf := EncodeMIDIPacket(p)
	typ, err := PeekType(buf)
	if err != nil || typ != TypeMIDIMessage {
		t.Fatalf("type = %v, err = %v", typ, err)
	}

	out, err := DecodeMIDIPacket(buf)
	if err != nil {
		t.Fatal(err)
	}
	if out.Message.Length != 3 || out.Message.Timestamp != 42.5 {
		t.Fatalf("message mismatch: %+v", out.Message)
	}
	if !bytes.Equal(out.Message.Data(), []byte{0x90, 0x3C, 0x7F}) {
		t.Fatalf("data = %v", out.Message.Data())
	}
	if out.Identifier != p.Identifier {
		t.Fatalf("identifier mismatch: %+v", out.Identifier)
	}
}

func TestDecodeShortPacket(t *testing.T) {
	if _, err := DecodeClockSync([]byte{1, 2, 3}); err != ErrShortPacket {
		t.Fatalf("err = %v, want ErrShortPacket", err)
	}
	if _, err := DecodeMIDIPacket(nil); err != ErrShortPacket {
		t.Fatalf("err = %v, want ErrShortPacket", err)
	}
	if _, err := PeekType(nil); err != ErrShortPacket {
		t.Fatalf("err = %v, want ErrShortPacket", err)
	}
}

func TestUniqueIdentifierOrder(t *testing.T) {
	a := UniqueIdentifier{Serial: 5, Timestamp: 1.0}
	b := UniqueIdentifier{Serial: 1, Timestamp: 2.0}
	if !a.Less(b) {
		t.Fatalf("expected %+v < %+v by timestamp", a, b)
	}
	c := UniqueIdentifier{Serial: 2, Timestamp: 1.0}
	if !c.Less(a) {
		t.Fatalf("expected %+v < %+v by serial tiebreak", c, a)
	}
}
