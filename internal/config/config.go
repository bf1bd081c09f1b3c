// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config parses the relay's whitespace-separated directive
// file. The grammar is bespoke to this project: no general-purpose
// ini/yaml/flags library matches a "directive arg..." per-line format
// with '#' comments, so this parser is deliberately plain
// bufio.Scanner, in the style of a line-oriented config reader.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pianoconnect/pianoconnectd/internal/transport"
)

// Config is the fully parsed relay configuration.
type Config struct {
	ConnectionType string // udp | udp-server | udp-client | tcp-server | tcp-client

	UDPLocal, UDPRemote transport.Endpoint
	ListenAddress       transport.Endpoint
	ConnectAddress      transport.Endpoint

	InputDevices  []int
	OutputDevices []int
	VirtualPorts  []string

	LogFile string

	HMACKey []byte

	// Latency is the playback offset in seconds (the file stores
	// milliseconds; "config.latency: double").
	Latency     float64
	AutoLatency bool

	InputAsk, OutputAsk bool

	Duplication int
}

// Default returns the documented defaults: auto-latency enabled,
// duplication factor 1.
func Default() *Config {
	return &Config{
		AutoLatency: true,
		Duplication: 1,
	}
}

// Load reads and parses the directive file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads directives from r.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		directive := strings.ToLower(fields[0])
		args := fields[1:]

		if err := applyDirective(cfg, directive, args); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyDirective(cfg *Config, directive string, args []string) error {
	switch directive {
	case "udp-local":
		ep, err := endpoint(args)
		if err != nil {
			return err
		}
		cfg.UDPLocal = ep
		cfg.ConnectionType = "udp"

	case "udp-remote":
		ep, err := endpoint(args)
		if err != nil {
			return err
		}
		cfg.UDPRemote = ep
		cfg.ConnectionType = "udp"

	case "udp-server":
		ep, err := endpoint(args)
		if err != nil {
			return err
		}
		cfg.ListenAddress = ep
		cfg.ConnectionType = "udp-server"

	case "udp-client":
		ep, err := endpoint(args)
		if err != nil {
			return err
		}
		cfg.ConnectAddress = ep
		cfg.ConnectionType = "udp-client"

	case "tcp-server":
		ep, err := endpoint(args)
		if err != nil {
			return err
		}
		cfg.ListenAddress = ep
		cfg.ConnectionType = "tcp-server"

	case "tcp-client":
		ep, err := endpoint(args)
		if err != nil {
			return err
		}
		cfg.ConnectAddress = ep
		cfg.ConnectionType = "tcp-client"

	case "hmac":
		if len(args) != 1 {
			return fmt.Errorf("hmac expects 1 argument, got %d", len(args))
		}
		cfg.HMACKey = []byte(args[0])

	case "input":
		idx, err := singleInt(args)
		if err != nil {
			return fmt.Errorf("input: %w", err)
		}
		cfg.InputDevices = append(cfg.InputDevices, idx)

	case "output":
		idx, err := singleInt(args)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.OutputDevices = append(cfg.OutputDevices, idx)

	case "port":
		if len(args) != 1 {
			return fmt.Errorf("port expects 1 argument, got %d", len(args))
		}
		cfg.VirtualPorts = append(cfg.VirtualPorts, args[0])

	case "input-ask":
		cfg.InputAsk = true

	case "output-ask":
		cfg.OutputAsk = true

	case "latency":
		ms, err := singleFloat(args)
		if err != nil {
			return fmt.Errorf("latency: %w", err)
		}
		cfg.Latency = ms / 1000.0
		cfg.AutoLatency = false

	case "duplication":
		n, err := singleInt(args)
		if err != nil {
			return fmt.Errorf("duplication: %w", err)
		}
		cfg.Duplication = n

	case "log":
		if len(args) != 1 {
			return fmt.Errorf("log expects 1 argument, got %d", len(args))
		}
		cfg.LogFile = args[0]

	default:
		return fmt.Errorf("unknown directive %q", directive)
	}
	return nil
}

func endpoint(args []string) (transport.Endpoint, error) {
	if len(args) != 2 {
		return transport.Endpoint{}, fmt.Errorf("expected \"host port\", got %d arguments", len(args))
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return transport.Endpoint{}, fmt.Errorf("invalid port %q: %w", args[1], err)
	}
	return transport.Endpoint{Host: args[0], Port: port}, nil
}

func singleInt(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	return strconv.Atoi(args[0])
}

func singleFloat(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	return strconv.ParseFloat(args[0], 64)
}
