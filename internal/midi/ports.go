// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package midi defines the MIDI port abstraction. Device
// enumeration, opening, and byte delivery are explicitly out of scope
// for the relay core — this package is the interface, plus
// a status-byte table that CommandName uses to name MIDI commands. The
// relay pipeline does not consult that table.
package midi

// InDelegate receives one inbound MIDI message from an input port.
// Timestamp is host-MIDI-stack time and is not meaningful to the relay,
// which restamps with its own clock on ingress.
type InDelegate func(timestamp float64, data []byte)

// InPort delivers inbound MIDI bytes via a registered delegate. Backend
// callbacks may arrive on a thread the relay does not control.
type InPort interface {
	Name() string
	SetDelegate(d InDelegate)
	Close() error
}

// OutPort accepts outbound MIDI bytes, including virtual ports created
// for other applications to connect to.
type OutPort interface {
	Name() string
	Send(data []byte) error
	Close() error
}

// Manager enumerates and opens the host's MIDI devices.
// Concrete backends (CoreMIDI, ALSA, WinMM) are mechanical platform
// bindings outside this module's scope; callers needing a real backend
// supply their own Manager implementation satisfying this interface.
type Manager interface {
	ListInputs() []string
	ListOutputs() []string
	OpenInput(index int) (InPort, error)
	OpenOutput(index int) (OutPort, error)
	CreateVirtualOutput(name string) (OutPort, error)
}
