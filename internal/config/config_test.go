// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.AutoLatency || cfg.Duplication != 1 || cfg.InputAsk || cfg.OutputAsk {
		t.Fatalf("defaults not as documented: %+v", cfg)
	}
}

func TestParseSymmetricUDP(t *testing.T) {
	src := `
# loopback link
udp-local 127.0.0.1 7000
udp-remote 127.0.0.1 7001
latency 50
duplication 3
log /tmp/pianoconnect.log
`
	cfg, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ConnectionType != "udp" {
		t.Fatalf("ConnectionType = %q, want udp", cfg.ConnectionType)
	}
	if cfg.UDPLocal.Port != 7000 || cfg.UDPRemote.Port != 7001 {
		t.Fatalf("endpoints = %+v / %+v", cfg.UDPLocal, cfg.UDPRemote)
	}
	if cfg.Latency != 0.05 {
		t.Fatalf("Latency = %v, want 0.05", cfg.Latency)
	}
	if cfg.AutoLatency {
		t.Fatal("latency directive should disable auto_latency")
	}
	if cfg.Duplication != 3 {
		t.Fatalf("Duplication = %d, want 3", cfg.Duplication)
	}
	if cfg.LogFile != "/tmp/pianoconnect.log" {
		t.Fatalf("LogFile = %q", cfg.LogFile)
	}
}

func TestParseUDPServerWithHMAC(t *testing.T) {
	src := `
udp-server 0.0.0.0 9000
hmac secret
input 0
output 0
port VirtualPiano
`
	cfg, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ConnectionType != "udp-server" {
		t.Fatalf("ConnectionType = %q", cfg.ConnectionType)
	}
	if string(cfg.HMACKey) != "secret" {
		t.Fatalf("HMACKey = %q", cfg.HMACKey)
	}
	if len(cfg.InputDevices) != 1 || cfg.InputDevices[0] != 0 {
		t.Fatalf("InputDevices = %v", cfg.InputDevices)
	}
	if len(cfg.VirtualPorts) != 1 {
		t.Fatalf("VirtualPorts = %v", cfg.VirtualPorts)
	}
}

func TestParseUnknownDirectiveIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader("bogus-directive 1 2 3"))
	if err == nil {
		t.Fatal("expected an error for an unknown directive")
	}
}

func TestParseMalformedArgIsFatal(t *testing.T) {
	_, err := Parse(strings.NewReader("udp-local 127.0.0.1 not-a-port"))
	if err == nil {
		t.Fatal("expected an error for a malformed port")
	}
}

func TestParseInputAskOutputAsk(t *testing.T) {
	cfg, err := Parse(strings.NewReader("input-ask\noutput-ask\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.InputAsk || !cfg.OutputAsk {
		t.Fatalf("ask flags not set: %+v", cfg)
	}
}
