// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/pianoconnect/pianoconnectd/internal/clock"
	"github.com/pianoconnect/pianoconnectd/internal/config"
	"github.com/pianoconnect/pianoconnectd/internal/metrics"
	"github.com/pianoconnect/pianoconnectd/internal/midi"
	"github.com/pianoconnect/pianoconnectd/internal/transport"
	"github.com/pianoconnect/pianoconnectd/internal/wire"
)

// releaseTickInterval is the period of the scheduled-release timer.
const releaseTickInterval = 100 * time.Microsecond

// mainLoopInterval is the period of the clock-sync/status/log loop.
const mainLoopInterval = 200 * time.Millisecond

// statsEveryTicks is how many main-loop iterations elapse between NTP
// stats lines.
const statsEveryTicks = 50

// Options collects everything the relay needs at construction. Ports
// and transport are already open; Relay only wires delegates onto them.
type Options struct {
	Transport transport.Transport
	Outputs   []midi.OutPort
	Clock     clock.Source
	Config    *config.Config
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Relay is the core engine: it drives the transport and MIDI output
// ports the caller opened (and later closes), runs clock sync,
// deduplicates inbound MIDI, schedules playback, and emits the
// per-message log.
type Relay struct {
	transport transport.Transport
	outputs   []midi.OutPort
	clockSrc  clock.Source
	cfg       *config.Config
	metrics   *metrics.Metrics
	logger    *slog.Logger

	queue      *PlaybackQueue
	dedup      *Dedup
	clockState *ClockState

	serial              atomic.Uint32
	numPackets          atomic.Uint64
	numMIDIMessages     atomic.Uint64
	numDroppedOversized atomic.Uint64
	configLatencyBits   atomic.Uint64
	tickCount           atomic.Uint64

	autoLatency bool
	duplication int

	releaseTicker *clock.Ticker
	mainTicker    *clock.Ticker
	logWriter     *LogWriter
}

// New constructs a Relay; it does not yet touch the network or timers.
func New(opts Options) *Relay {
	r := &Relay{
		transport:   opts.Transport,
		outputs:     opts.Outputs,
		clockSrc:    opts.Clock,
		cfg:         opts.Config,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		queue:       NewPlaybackQueue(),
		dedup:       NewDedup(),
		clockState:  NewClockState(),
		autoLatency: opts.Config.AutoLatency,
		duplication: opts.Config.Duplication,
	}
	if r.duplication < 1 {
		r.duplication = 1
	}
	r.setLatency(opts.Config.Latency)
	return r
}

func (r *Relay) latency() float64 {
	return math.Float64frombits(r.configLatencyBits.Load())
}

func (r *Relay) setLatency(v float64) {
	r.configLatencyBits.Store(math.Float64bits(v))
}

// Start wires the transport delegate and begins the release tick and
// main loop. It opens the log file if one is configured.
func (r *Relay) Start() error {
	if r.cfg.LogFile != "" {
		lw, err := OpenLogWriter(r.cfg.LogFile, r.clockSrc.Now())
		if err != nil {
			return err
		}
		r.logWriter = lw
	}

	r.transport.SetDelegate(r.HandlePacket)

	r.releaseTicker = clock.NewTicker(r.clockSrc, releaseTickInterval, r.onReleaseTick)
	r.mainTicker = clock.NewTicker(r.clockSrc, mainLoopInterval, r.onMainTick)
	return nil
}

// Close stops both timers and the log writer. It does not close the
// transport or MIDI ports; those are owned by the caller.
func (r *Relay) Close() error {
	if r.releaseTicker != nil {
		r.releaseTicker.Stop()
	}
	if r.mainTicker != nil {
		r.mainTicker.Stop()
	}
	if r.logWriter != nil {
		return r.logWriter.Close()
	}
	return nil
}

// HandleLocalMIDI is registered as the delegate on every opened input
// port. length>8 is warned and dropped; otherwise the message is sent
// on the transport config.duplication times and pushed once into the
// playback queue.
func (r *Relay) HandleLocalMIDI(_ float64, data []byte) {
	if len(data) == 0 {
		return
	}
	if len(data) > wire.MaxMIDIBytes {
		r.numDroppedOversized.Add(1)
		if r.metrics != nil {
			r.metrics.DroppedOversized.Inc()
		}
		if r.logger != nil {
			r.logger.Warn("dropping oversized local MIDI message", "length", len(data))
		}
		return
	}

	now := r.clockSrc.Now()
	var msg wire.MIDIMessage
	msg.Length = int32(len(data))
	msg.Timestamp = now
	copy(msg.Bytes[:], data)

	serial := r.serial.Add(1) - 1
	ident := wire.UniqueIdentifier{Serial: serial, Timestamp: msg.Timestamp}

	packet := wire.EncodeMIDIPacket(wire.MIDIPacket{Message: msg, Identifier: ident})
	for i := 0; i < r.duplication; i++ {
		r.transport.Send(packet)
	}

	// Duplication affects only the wire sends above, never the local
	// queue insert below.
	msg.Timestamp += r.latency()
	r.queue.Push(msg)
}

// HandlePacket is the transport's inbound delegate: dispatches by type
// byte.
func (r *Relay) HandlePacket(packet []byte) {
	r.numPackets.Add(1)
	if r.metrics != nil {
		r.metrics.Packets.Inc()
	}

	pt, err := wire.PeekType(packet)
	if err != nil {
		return
	}

	switch pt {
	case wire.TypeMIDIMessage:
		r.handleMIDIPacket(packet)
	case wire.TypeClockSync:
		r.handleClockSync(packet)
	case wire.TypeClockSyncAck:
		r.handleClockSyncAck(packet)
	default:
		// Ping or unknown: ignored silently.
	}
}

func (r *Relay) handleMIDIPacket(packet []byte) {
	p, err := wire.DecodeMIDIPacket(packet)
	if err != nil {
		return
	}
	if !r.dedup.InsertIfNew(p.Identifier) {
		if r.metrics != nil {
			r.metrics.DuplicateDropped.Inc()
		}
		return
	}

	delta, _ := r.clockState.Snapshot()
	p.Message.Timestamp = p.Message.Timestamp - delta + r.latency()
	r.queue.Push(p.Message)
}

func (r *Relay) handleClockSync(packet []byte) {
	cs, err := wire.DecodeClockSync(packet)
	if err != nil {
		return
	}
	ack := wire.ClockSyncAck{
		TimestampSent: cs.TimestampSent,
		TimestampAck:  r.clockSrc.Now(),
	}
	r.transport.Send(wire.EncodeClockSyncAck(ack))
}

func (r *Relay) handleClockSyncAck(packet []byte) {
	ack, err := wire.DecodeClockSyncAck(packet)
	if err != nil {
		return
	}
	tFinal := r.clockSrc.Now()
	deltaSample := ack.TimestampAck - (ack.TimestampSent+tFinal)/2
	latencySample := (tFinal - ack.TimestampSent) / 2
	r.clockState.Feed(deltaSample, latencySample)

	delta, latency := r.clockState.Snapshot()
	if r.metrics != nil {
		r.metrics.ClockDelta.Set(delta)
		r.metrics.NetworkLatency.Set(latency)
	}

	if r.autoLatency {
		r.setLatency(latency * 1.1)
		if r.metrics != nil {
			r.metrics.PlaybackLatency.Set(r.latency())
		}
	}
}

// onReleaseTick fires every releaseTickInterval: pop every due message
// and fan it out, synchronously, to every output port.
func (r *Relay) onReleaseTick() {
	now := r.clockSrc.Now()
	due := r.queue.DrainDue(now)
	for _, msg := range due {
		data := msg.Data()
		for _, out := range r.outputs {
			if err := out.Send(data); err != nil && r.logger != nil {
				r.logger.Debug("output send failed", "port", out.Name(), "error", err)
			}
		}
		r.numMIDIMessages.Add(1)
		if r.metrics != nil {
			r.metrics.MIDIMessages.Inc()
			r.metrics.QueueDepth.Set(float64(r.queue.Len()))
		}
	}
}

// onMainTick fires every mainLoopInterval: emits a ClockSync, prints
// the status line, and (if logging is enabled) drains the log buffer
// and, every statsEveryTicks ticks, appends an NTP line.
func (r *Relay) onMainTick() {
	r.transport.Send(wire.EncodeClockSync(wire.ClockSync{TimestampSent: r.clockSrc.Now()}))

	delta, networkLatency := r.clockState.Snapshot()
	line := FormatStatus(r.latency(), networkLatency, delta, r.numPackets.Load(), r.numMIDIMessages.Load())
	PrintStatus(line)

	r.dedup.Evict(r.clockSrc.Now())

	if r.logWriter == nil {
		return
	}
	for _, msg := range r.queue.DrainLog() {
		r.logWriter.WriteMIDI(msg)
	}
	if n := r.tickCount.Add(1); n%statsEveryTicks == 0 {
		r.logWriter.WriteNTP(r.latency(), networkLatency, delta)
	}
	if err := r.logWriter.Flush(); err != nil && r.logger != nil {
		r.logger.Error("log flush failed", "error", err)
	}
}

// Stats returns the current counters, for diagnostics and tests.
func (r *Relay) Stats() (packets, midiMessages, droppedOversized uint64) {
	return r.numPackets.Load(), r.numMIDIMessages.Load(), r.numDroppedOversized.Load()
}

// QueueDepth reports how many messages are pending release.
func (r *Relay) QueueDepth() int {
	return r.queue.Len()
}
