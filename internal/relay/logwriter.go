// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/pianoconnect/pianoconnectd/internal/wire"
)

// LogWriter appends the human-readable MIDI/NTP trace to the configured
// log file. It is driven exclusively from the main loop, so it
// needs no locking of its own.
type LogWriter struct {
	f  *os.File
	w  *bufio.Writer
	t0 float64 // local clock reading at startup; MIDI lines are relative to this
}

// OpenLogWriter opens path in append mode and writes the startup banner
// and TIME-REFERENCE line. t0 is the local clock value that
// corresponds to "relative second 0" for every subsequent MIDI line.
func OpenLogWriter(path string, t0 float64) (*LogWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("relay: open log: %w", err)
	}
	lw := &LogWriter{f: f, w: bufio.NewWriter(f), t0: t0}
	lw.writeBanner()
	return lw, nil
}

func (lw *LogWriter) writeBanner() {
	fmt.Fprintln(lw.w, "# =============================================================================")
	fmt.Fprintf(lw.w, "# Startup (UTC time): %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintln(lw.w, "# =============================================================================")
	fmt.Fprintf(lw.w, "TIME-REFERENCE %.6f\n", lw.t0)
	lw.w.Flush()
}

// WriteMIDI appends one released message as a relative-seconds line:
// "MIDI <relative-seconds> <length> <byte0> <byte1> ...".
func (lw *LogWriter) WriteMIDI(msg wire.MIDIMessage) {
	fmt.Fprintf(lw.w, "MIDI %.6f %d", msg.Timestamp-lw.t0, msg.Length)
	for _, b := range msg.Data() {
		fmt.Fprintf(lw.w, " %d", b)
	}
	fmt.Fprintln(lw.w)
}

// WriteNTP appends one clock-sync stats line, emitted every 50 main-loop
// ticks. network is the one-way latency estimate, not a
// round trip.
func (lw *LogWriter) WriteNTP(playbackLatency, networkLatency, delta float64) {
	fmt.Fprintf(lw.w, "NTP latency %.6f network-latency %.6f delta %.6f\n",
		playbackLatency, networkLatency, delta)
}

// Flush pushes any buffered lines to disk. Call after each batch of
// WriteMIDI/WriteNTP calls.
func (lw *LogWriter) Flush() error {
	return lw.w.Flush()
}

// Close flushes and closes the underlying file.
func (lw *LogWriter) Close() error {
	if err := lw.w.Flush(); err != nil {
		lw.f.Close()
		return err
	}
	return lw.f.Close()
}
