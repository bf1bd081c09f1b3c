// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pianoconnect/pianoconnectd/internal/config"
	"github.com/pianoconnect/pianoconnectd/internal/midi"
	"github.com/pianoconnect/pianoconnectd/internal/transport"
)

// buildTransport constructs the configured connection_type variant and
// wraps it with HMAC authentication when a key is set and the variant is
// udp-server or udp-client.
func buildTransport(cfg *config.Config) (transport.Transport, error) {
	var (
		t   transport.Transport
		err error
	)

	switch cfg.ConnectionType {
	case "udp", "":
		t, err = transport.NewUDPSymmetric(cfg.UDPLocal, cfg.UDPRemote)
	case "udp-server":
		t, err = transport.NewUDPServer(cfg.ListenAddress)
	case "udp-client":
		t, err = transport.NewUDPClient(cfg.ConnectAddress)
	case "tcp-server":
		t, err = transport.NewTCPServer(cfg.ListenAddress)
	case "tcp-client":
		t, err = transport.NewTCPClient(cfg.ConnectAddress)
	default:
		return nil, fmt.Errorf("unknown connection_type %q", cfg.ConnectionType)
	}
	if err != nil {
		return nil, err
	}

	if len(cfg.HMACKey) > 0 && (cfg.ConnectionType == "udp-server" || cfg.ConnectionType == "udp-client") {
		t = transport.NewAuthTransport(t, cfg.HMACKey)
	}
	return t, nil
}

// openMIDIPorts opens every configured input/output device and virtual
// port against mgr, and additionally runs the input-ask/output-ask
// interactive prompt when requested.
func openMIDIPorts(mgr midi.Manager, cfg *config.Config, r io.Reader, w io.Writer) ([]midi.InPort, []midi.OutPort, error) {
	inIdx := append([]int(nil), cfg.InputDevices...)
	outIdx := append([]int(nil), cfg.OutputDevices...)

	if cfg.InputAsk {
		picked, err := promptIndices(r, w, "input", mgr.ListInputs())
		if err != nil {
			return nil, nil, err
		}
		inIdx = append(inIdx, picked...)
	}
	if cfg.OutputAsk {
		picked, err := promptIndices(r, w, "output", mgr.ListOutputs())
		if err != nil {
			return nil, nil, err
		}
		outIdx = append(outIdx, picked...)
	}

	var ins []midi.InPort
	for _, idx := range inIdx {
		p, err := mgr.OpenInput(idx)
		if err != nil {
			return nil, nil, fmt.Errorf("open input %d: %w", idx, err)
		}
		ins = append(ins, p)
	}

	var outs []midi.OutPort
	for _, idx := range outIdx {
		p, err := mgr.OpenOutput(idx)
		if err != nil {
			return nil, nil, fmt.Errorf("open output %d: %w", idx, err)
		}
		outs = append(outs, p)
	}
	for _, name := range cfg.VirtualPorts {
		p, err := mgr.CreateVirtualOutput(name)
		if err != nil {
			return nil, nil, fmt.Errorf("create virtual port %q: %w", name, err)
		}
		outs = append(outs, p)
	}

	return ins, outs, nil
}

// promptIndices lists names and reads indices from r until -1 is
// entered.
func promptIndices(r io.Reader, w io.Writer, kind string, names []string) ([]int, error) {
	fmt.Fprintf(w, "Available %s devices:\n", kind)
	for i, name := range names {
		fmt.Fprintf(w, "  %d: %s\n", i, name)
	}
	fmt.Fprintf(w, "Enter %s indices one per line, -1 to finish:\n", kind)

	scanner := bufio.NewScanner(r)
	var picked []int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("invalid %s index %q: %w", kind, line, err)
		}
		if idx == -1 {
			break
		}
		picked = append(picked, idx)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return picked, nil
}
