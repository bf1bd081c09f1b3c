// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package midi

import (
	"fmt"
	"sync"
)

// FakeManager is an in-memory Manager for tests and for loopback
// end-to-end scenarios, standing in for an out-of-scope real device
// backend.
type FakeManager struct {
	mut     sync.Mutex
	inputs  []*FakeInPort
	outputs []*FakeOutPort
}

// NewFakeManager returns an empty manager; call AddInput/AddOutput to
// populate it before ListInputs/ListOutputs are meaningful.
func NewFakeManager() *FakeManager {
	return &FakeManager{}
}

// AddInput registers a named fake input device, returning a handle the
// test can use to inject inbound bytes.
func (m *FakeManager) AddInput(name string) *FakeInPort {
	m.mut.Lock()
	defer m.mut.Unlock()
	p := &FakeInPort{name: name}
	m.inputs = append(m.inputs, p)
	return p
}

// AddOutput registers a named fake output device, returning a handle the
// test can use to observe sent bytes.
func (m *FakeManager) AddOutput(name string) *FakeOutPort {
	m.mut.Lock()
	defer m.mut.Unlock()
	p := &FakeOutPort{name: name}
	m.outputs = append(m.outputs, p)
	return p
}

func (m *FakeManager) ListInputs() []string {
	m.mut.Lock()
	defer m.mut.Unlock()
	names := make([]string, len(m.inputs))
	for i, p := range m.inputs {
		names[i] = p.name
	}
	return names
}

func (m *FakeManager) ListOutputs() []string {
	m.mut.Lock()
	defer m.mut.Unlock()
	names := make([]string, len(m.outputs))
	for i, p := range m.outputs {
		names[i] = p.name
	}
	return names
}

func (m *FakeManager) OpenInput(index int) (InPort, error) {
	m.mut.Lock()
	defer m.mut.Unlock()
	if index < 0 || index >= len(m.inputs) {
		return nil, fmt.Errorf("midi: input index %d out of range (have %d)", index, len(m.inputs))
	}
	return m.inputs[index], nil
}

func (m *FakeManager) OpenOutput(index int) (OutPort, error) {
	m.mut.Lock()
	defer m.mut.Unlock()
	if index < 0 || index >= len(m.outputs) {
		return nil, fmt.Errorf("midi: output index %d out of range (have %d)", index, len(m.outputs))
	}
	return m.outputs[index], nil
}

func (m *FakeManager) CreateVirtualOutput(name string) (OutPort, error) {
	return m.AddOutput(name), nil
}

// FakeInPort lets a test inject inbound MIDI bytes as if they came from
// hardware.
type FakeInPort struct {
	name string
	mut  sync.Mutex
	del  InDelegate
}

func (p *FakeInPort) Name() string { return p.name }

func (p *FakeInPort) SetDelegate(d InDelegate) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.del = d
}

func (p *FakeInPort) Close() error { return nil }

// Inject simulates the backend delivering an inbound message.
func (p *FakeInPort) Inject(timestamp float64, data []byte) {
	p.mut.Lock()
	d := p.del
	p.mut.Unlock()
	if d != nil {
		d(timestamp, data)
	}
}

// FakeOutPort records every byte slice sent to it.
type FakeOutPort struct {
	name string
	mut  sync.Mutex
	sent [][]byte
}

func (p *FakeOutPort) Name() string { return p.name }

func (p *FakeOutPort) Send(data []byte) error {
	p.mut.Lock()
	defer p.mut.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	p.sent = append(p.sent, cp)
	return nil
}

func (p *FakeOutPort) Close() error { return nil }

// Sent returns a copy of every message sent so far.
func (p *FakeOutPort) Sent() [][]byte {
	p.mut.Lock()
	defer p.mut.Unlock()
	out := make([][]byte, len(p.sent))
	copy(out, p.sent)
	return out
}
