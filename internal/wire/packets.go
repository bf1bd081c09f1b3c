// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package wire implements the explicit little-endian, tightly packed
// datagram encoding for every packet type the relay exchanges. Native
// struct layout only round-trips between identical architectures; this
// package pins the layout so two different hosts can always talk to
// each other.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// PacketType identifies the first byte of every packet on the wire.
type PacketType byte

const (
	TypePing         PacketType = 0
	TypeClockSync    PacketType = 1
	TypeClockSyncAck PacketType = 2
	TypeMIDIMessage  PacketType = 100
)

// MaxMIDIBytes bounds a MIDIMessage payload.
const MaxMIDIBytes = 8

var (
	// ErrShortPacket is returned when a buffer is too small to contain
	// the packet type it claims to be.
	ErrShortPacket = errors.New("wire: packet too short")
	// ErrUnknownType names a type byte this package does not recognize.
	// No function in this package returns it: PeekType passes any type
	// byte through, and callers ignore an unrecognized type as they do
	// an explicit Ping.
	ErrUnknownType = errors.New("wire: unknown packet type")
)

// Ping is the minimal liveness packet; it carries no payload.
type Ping struct{}

// ClockSync carries the sender's local send time. TimestampAck is
// undefined on the wire for an outbound ClockSync but is still
// encoded as a fixed-width field for layout simplicity.
type ClockSync struct {
	TimestampSent float64
	TimestampAck  float64
}

// ClockSyncAck echoes TimestampSent and fills TimestampAck with the
// receiver's local time at reception.
type ClockSyncAck struct {
	TimestampSent float64
	TimestampAck  float64
}

// UniqueIdentifier totally orders lexicographically on (Timestamp,
// Serial) and is compared for equality to deduplicate inbound MIDI
// packets.
type UniqueIdentifier struct {
	Serial    uint32
	Timestamp float64
}

// Less implements the (timestamp, serial) lexicographic order.
func (u UniqueIdentifier) Less(o UniqueIdentifier) bool {
	if u.Timestamp != o.Timestamp {
		return u.Timestamp < o.Timestamp
	}
	return u.Serial < o.Serial
}

// MIDIMessage is a short MIDI command plus the local wall-clock moment
// it should be rendered. Length is pinned to int32 on the wire; Bytes
// beyond Length are unused padding.
type MIDIMessage struct {
	Length    int32
	Timestamp float64
	Bytes     [MaxMIDIBytes]byte
}

// Data returns the meaningful prefix of Bytes.
func (m MIDIMessage) Data() []byte {
	n := m.Length
	if n < 0 {
		n = 0
	}
	if n > MaxMIDIBytes {
		n = MaxMIDIBytes
	}
	return m.Bytes[:n]
}

// MIDIPacket is the wire envelope for a relayed MIDI message: the
// message itself plus the identifier used for deduplication.
type MIDIPacket struct {
	Message    MIDIMessage
	Identifier UniqueIdentifier
}

const (
	pingSize         = 1
	clockSyncSize    = 1 + 8 + 8
	midiPacketSize   = 1 + 4 + 8 + MaxMIDIBytes + 4 + 8
	minDecodableSize = 1
)

// EncodePing returns the 1-byte Ping wire packet.
func EncodePing() []byte {
	return []byte{byte(TypePing)}
}

// EncodeClockSync serializes a ClockSync packet.
func EncodeClockSync(m ClockSync) []byte {
	buf := make([]byte, clockSyncSize)
	buf[0] = byte(TypeClockSync)
	putFloat64(buf[1:9], m.TimestampSent)
	putFloat64(buf[9:17], m.TimestampAck)
	return buf
}

// EncodeClockSyncAck serializes a ClockSyncAck packet.
func EncodeClockSyncAck(m ClockSyncAck) []byte {
	buf := make([]byte, clockSyncSize)
	buf[0] = byte(TypeClockSyncAck)
	putFloat64(buf[1:9], m.TimestampSent)
	putFloat64(buf[9:17], m.TimestampAck)
	return buf
}

// EncodeMIDIPacket serializes a MIDIMessage packet.
func EncodeMIDIPacket(p MIDIPacket) []byte {
	buf := make([]byte, midiPacketSize)
	buf[0] = byte(TypeMIDIMessage)
	off := 1
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(p.Message.Length))
	off += 4
	putFloat64(buf[off:off+8], p.Message.Timestamp)
	off += 8
	copy(buf[off:off+MaxMIDIBytes], p.Message.Bytes[:])
	off += MaxMIDIBytes
	binary.LittleEndian.PutUint32(buf[off:off+4], p.Identifier.Serial)
	off += 4
	putFloat64(buf[off:off+8], p.Identifier.Timestamp)
	return buf
}

// PeekType returns the packet type byte without validating the rest of
// the frame.
func PeekType(buf []byte) (PacketType, error) {
	if len(buf) < minDecodableSize {
		return 0, ErrShortPacket
	}
	return PacketType(buf[0]), nil
}

// DecodeClockSync parses a ClockSync/ClockSyncAck-shaped buffer (the two
// share layout; the caller distinguishes by PeekType).
func DecodeClockSync(buf []byte) (ClockSync, error) {
	if len(buf) < clockSyncSize {
		return ClockSync{}, ErrShortPacket
	}
	return ClockSync{
		TimestampSent: getFloat64(buf[1:9]),
		TimestampAck:  getFloat64(buf[9:17]),
	}, nil
}

// DecodeClockSyncAck parses a ClockSyncAck buffer.
func DecodeClockSyncAck(buf []byte) (ClockSyncAck, error) {
	if len(buf) < clockSyncSize {
		return ClockSyncAck{}, ErrShortPacket
	}
	return ClockSyncAck{
		TimestampSent: getFloat64(buf[1:9]),
		TimestampAck:  getFloat64(buf[9:17]),
	}, nil
}

// DecodeMIDIPacket parses a MIDIMessage packet.
func DecodeMIDIPacket(buf []byte) (MIDIPacket, error) {
	if len(buf) < midiPacketSize {
		return MIDIPacket{}, ErrShortPacket
	}
	var p MIDIPacket
	off := 1
	p.Message.Length = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	p.Message.Timestamp = getFloat64(buf[off : off+8])
	off += 8
	copy(p.Message.Bytes[:], buf[off:off+MaxMIDIBytes])
	off += MaxMIDIBytes
	p.Identifier.Serial = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	p.Identifier.Timestamp = getFloat64(buf[off : off+8])
	return p, nil
}

func putFloat64(buf []byte, v float64) {
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
}

func getFloat64(buf []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}
