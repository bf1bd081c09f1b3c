// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command pianoconnectd runs the real-time MIDI relay engine: it parses
// a directive-file configuration, wires up the configured transport and
// MIDI ports, and runs the clock-sync and scheduled-release loops until
// terminated.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/thejerf/suture/v4"

	"github.com/pianoconnect/pianoconnectd/internal/clock"
	"github.com/pianoconnect/pianoconnectd/internal/config"
	"github.com/pianoconnect/pianoconnectd/internal/fdlimit"
	"github.com/pianoconnect/pianoconnectd/internal/logging"
	"github.com/pianoconnect/pianoconnectd/internal/metrics"
	"github.com/pianoconnect/pianoconnectd/internal/midi"
	"github.com/pianoconnect/pianoconnectd/internal/relay"
	"github.com/pianoconnect/pianoconnectd/internal/transport"
)

var version = "dev"

// CLI is the daemon's command-line surface.
type CLI struct {
	Config string `arg:"" optional:"" default:"pianoconnect.conf" help:"Path to the directive-file configuration."`

	Debug        bool   `help:"Enable debug-level diagnostic logging."`
	MetricsAddr  string `help:"Listen address for the optional Prometheus /metrics endpoint (blank disables it)."`
	MaxBandwidth int    `help:"Cap outbound transport writes at this many bytes/s, bounding duplication-induced bursts (0 disables the cap)."`
	Version      bool   `help:"Print the version and exit."`
}

func main() {
	var cli CLI
	kong.Parse(&cli, kong.Description("PianoConnect real-time MIDI relay daemon"))

	if cli.Version {
		fmt.Println("pianoconnectd " + version)
		return
	}

	logger := logging.New(cli.Debug)
	slog.SetDefault(logger)

	if err := run(cli); err != nil {
		logger.Error("fatal startup error", "error", err)
		os.Exit(1)
	}
}

func run(cli CLI) error {
	logger := slog.Default()

	if limit, err := fdlimit.Raise(); err != nil {
		logger.Debug("could not raise file descriptor limit", "error", err)
	} else if limit > 0 {
		logger.Debug("raised file descriptor limit", "limit", limit)
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	tp, err := buildTransport(cfg)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	tp = transport.NewLimitedTransport(tp, cli.MaxBandwidth)

	// Real MIDI hardware backends (CoreMIDI/ALSA/WinMM) are outside this
	// module's scope; the in-process manager stands in for
	// whichever backend an operator's platform build supplies.
	mgr := midi.NewFakeManager()
	ins, outs, err := openMIDIPorts(mgr, cfg, os.Stdin, os.Stdout)
	if err != nil {
		return fmt.Errorf("midi: %w", err)
	}

	var m *metrics.Metrics
	if cli.MetricsAddr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(cli.MetricsAddr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	r := relay.New(relay.Options{
		Transport: tp,
		Outputs:   outs,
		Clock:     clock.New(),
		Config:    cfg,
		Metrics:   m,
		Logger:    logger,
	})
	for _, in := range ins {
		in.SetDelegate(r.HandleLocalMIDI)
	}

	// The relay's own release tick and main loop run as a single
	// supervised service; the network reader and MIDI callback
	// activities are driven by blocking socket/backend-thread primitives
	// inside transport and midi and are deliberately not
	// restart-managed: there is no cancellation or recovery loop for
	// those by design.
	sup := suture.New("pianoconnectd", suture.Spec{})
	sup.Add(&relayService{r: r, logger: logger, cfg: cfg, inputs: ins, outputs: outs})

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("shutting down")
		cancel()
	}()

	errCh := sup.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

	tp.Close()
	for _, in := range ins {
		in.Close()
	}
	for _, out := range outs {
		out.Close()
	}
	return nil
}

// relayService adapts *relay.Relay to suture.Service: Start on entry,
// Close when the supervisor's context is canceled.
type relayService struct {
	r       *relay.Relay
	logger  *slog.Logger
	cfg     *config.Config
	inputs  []midi.InPort
	outputs []midi.OutPort
}

func (s *relayService) Serve(ctx context.Context) error {
	if err := s.r.Start(); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	s.logger.Info("relay started",
		"connection_type", s.cfg.ConnectionType,
		"inputs", len(s.inputs),
		"outputs", len(s.outputs),
		"duplication", s.cfg.Duplication,
	)
	<-ctx.Done()
	return s.r.Close()
}
