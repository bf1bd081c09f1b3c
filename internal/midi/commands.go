// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package midi

// commandInfo records the expected data-byte length following a MIDI
// status byte and the command's name, which CommandName returns. The
// relay does not consult this table: it trusts the reported message
// length and only enforces the wire-level bound of length ∈ [1,8].
//
// Status byte layout: the high nibble selects the command class, the low
// nibble the channel for channel-voice messages.
type commandInfo struct {
	dataLength int
	name       string
}

var commandsInfo = map[byte]commandInfo{
	0x80: {dataLength: 2, name: "noteOff"},
	0x90: {dataLength: 2, name: "noteOn"},
	0xa0: {dataLength: 2, name: "polyphonicAftertouch"},
	0xb0: {dataLength: 2, name: "controlChange"},
	0xc0: {dataLength: 1, name: "programChange"},
	0xd0: {dataLength: 1, name: "channelAftertouch"},
	0xe0: {dataLength: 2, name: "pitchBend"},

	0xf0: {dataLength: -1, name: "systemExclusive"},
	0xf1: {dataLength: 1, name: "quarterFrame"},
	0xf2: {dataLength: 2, name: "songPosition"},
	0xf3: {dataLength: 1, name: "songSelect"},
	0xf6: {dataLength: 0, name: "tuneRequest"},
	0xf8: {dataLength: 0, name: "clock"},
	0xfa: {dataLength: 0, name: "start"},
	0xfb: {dataLength: 0, name: "continue"},
	0xfc: {dataLength: 0, name: "stop"},
	0xfe: {dataLength: 0, name: "activeSensing"},
	0xff: {dataLength: 0, name: "reset"},
}

// CommandName returns a human-readable name for a status byte, for log
// lines; it returns "" if the command is unrecognized.
func CommandName(status byte) string {
	if info, ok := commandsInfo[status]; ok {
		return info.name
	}
	if info, ok := commandsInfo[status&0xf0]; ok {
		return info.name
	}
	return ""
}
