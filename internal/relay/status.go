// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import "fmt"

// FormatStatus renders the single-line, carriage-return-overwritten
// status the main loop prints every 200 ms: playback latency and
// estimated network latency in milliseconds, clock delta in seconds,
// and the running packet/MIDI counters.
func FormatStatus(playbackLatency, networkLatency, delta float64, numPackets, numMIDIMessages uint64) string {
	return fmt.Sprintf(
		"latency: %.1fms  network: %.1fms  delta: %.3fs  packets: %d  midi: %d",
		playbackLatency*1000, networkLatency*1000, delta, numPackets, numMIDIMessages,
	)
}

// PrintStatus writes the status line to stdout, overwriting the
// previous one with a carriage return rather than a newline.
func PrintStatus(line string) {
	fmt.Printf("\r%s", line)
}
