// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package logging sets up the relay's operator-facing diagnostic logger
// (startup, errors, debug traces). It is deliberately separate from the
// plain-text append-only MIDI/NTP log file and the overwriting status
// line — those are protocol-defined data formats, not diagnostics.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// New returns a colorized slog.Logger writing to os.Stderr, at debug
// level when debug is set.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	})
	return slog.New(h)
}
