// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package metrics exposes the relay's counters and clock estimates over
// an optional Prometheus HTTP endpoint, the same role a relay server's
// status service plays for its connection counters, built on
// prometheus/client_golang collectors rather than a hand-rolled JSON
// map.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every relay counter/gauge. All fields are safe for
// concurrent use (they are prometheus collectors).
type Metrics struct {
	registry *prometheus.Registry

	Packets          prometheus.Counter
	MIDIMessages     prometheus.Counter
	DroppedOversized prometheus.Counter
	DuplicateDropped prometheus.Counter

	ClockDelta      prometheus.Gauge
	NetworkLatency  prometheus.Gauge
	PlaybackLatency prometheus.Gauge
	QueueDepth      prometheus.Gauge
}

// New creates a fresh registry and registers every collector.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Packets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pianoconnect_packets_received_total",
			Help: "Inbound packets observed on the relay transport.",
		}),
		MIDIMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pianoconnect_midi_messages_released_total",
			Help: "MIDI messages released from the playback queue to output ports.",
		}),
		DroppedOversized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pianoconnect_midi_messages_oversized_dropped_total",
			Help: "Local MIDI messages dropped for exceeding the 8-byte wire limit.",
		}),
		DuplicateDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pianoconnect_midi_messages_duplicate_dropped_total",
			Help: "Inbound MIDI packets discarded as duplicates of an already-seen identifier.",
		}),
		ClockDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pianoconnect_clock_delta_seconds",
			Help: "Estimated peer_time - local_time.",
		}),
		NetworkLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pianoconnect_network_latency_seconds",
			Help: "Estimated one-way network latency.",
		}),
		PlaybackLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pianoconnect_playback_latency_seconds",
			Help: "Current scheduling offset applied to released messages.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pianoconnect_queue_depth",
			Help: "Messages currently pending in the playback priority queue.",
		}),
	}

	reg.MustRegister(
		m.Packets, m.MIDIMessages, m.DroppedOversized, m.DuplicateDropped,
		m.ClockDelta, m.NetworkLatency, m.PlaybackLatency, m.QueueDepth,
	)
	return m
}

// Serve starts an HTTP server exposing /metrics on addr. It blocks until
// the server stops; callers run it in its own goroutine.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}
	return srv.ListenAndServe()
}
