// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package transport

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// writeFrame prefixes packet with its little-endian uint32 length. The
// length is pinned to little-endian rather than host-native so two
// different architectures can always talk to each other.
func writeFrame(w io.Writer, packet []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(packet)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(packet)
	return err
}

// errFrameTooLarge is returned by readFrame for a length prefix above
// MaxDatagramSize.
var errFrameTooLarge = errors.New("transport: frame exceeds MaxDatagramSize")

// readFrame blocks until one full frame has been reassembled, however
// many reads the underlying connection needed to deliver it. A length
// prefix above MaxDatagramSize is an error.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxDatagramSize {
		return nil, errFrameTooLarge
	}
	buf := readBufferPool.get(int(n))
	if _, err := io.ReadFull(r, buf); err != nil {
		readBufferPool.put(buf)
		return nil, err
	}
	return buf, nil
}

// TCPServer accepts inbound connections and frames each packet on the
// wire as <u32-le length><payload>. Only the most recently
// accepted connection is live, matching the relay's point-to-point
// design (Non-goals: no multi-peer mesh).
type TCPServer struct {
	listener net.Listener

	mut      sync.RWMutex
	delegate Delegate
	conn     net.Conn
	closed   bool
}

// NewTCPServer listens on addr and accepts connections in the
// background.
func NewTCPServer(listen Endpoint) (*TCPServer, error) {
	ln, err := net.Listen("tcp", listen.String())
	if err != nil {
		return nil, err
	}
	s := &TCPServer{listener: ln}
	go s.acceptLoop()
	return s, nil
}

func (s *TCPServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mut.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.conn = conn
		s.mut.Unlock()
		go s.readLoop(conn)
	}
}

func (s *TCPServer) readLoop(conn net.Conn) {
	for {
		pkt, err := readFrame(conn)
		if err != nil {
			conn.Close()
			return
		}
		s.mut.RLock()
		d := s.delegate
		s.mut.RUnlock()
		if d != nil {
			d(pkt)
		}
		readBufferPool.put(pkt)
	}
}

func (s *TCPServer) SetDelegate(d Delegate) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.delegate = d
}

func (s *TCPServer) Send(packet []byte) {
	s.mut.RLock()
	conn := s.conn
	s.mut.RUnlock()
	if conn == nil {
		return
	}
	_ = writeFrame(conn, packet)
}

func (s *TCPServer) Close() error {
	s.mut.Lock()
	s.closed = true
	if s.conn != nil {
		s.conn.Close()
	}
	s.mut.Unlock()
	return s.listener.Close()
}

// TCPClient dials a fixed remote and reconnects with exponential backoff
// if the connection drops, so a relay session can survive a transient
// network blip on an otherwise point-to-point link.
type TCPClient struct {
	remote Endpoint

	mut      sync.RWMutex
	delegate Delegate
	conn     net.Conn
	closed   bool
	done     chan struct{}
}

// NewTCPClient dials remote and keeps a background goroutine reconnected
// to it for the lifetime of the TCPClient.
func NewTCPClient(remote Endpoint) (*TCPClient, error) {
	c := &TCPClient{remote: remote, done: make(chan struct{})}
	conn, err := net.Dial("tcp", remote.String())
	if err != nil {
		return nil, err
	}
	c.conn = conn
	go c.readLoop(conn)
	go c.reconnectLoop()
	return c, nil
}

func (c *TCPClient) reconnectLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mut.RLock()
		conn := c.conn
		c.mut.RUnlock()
		if conn != nil {
			// Block here until the current connection's read loop sees
			// an error and clears it out.
			c.waitForDisconnect(conn)
		}

		c.mut.RLock()
		closed := c.closed
		c.mut.RUnlock()
		if closed {
			return
		}

		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 0 // retry indefinitely; there is no ARQ/session layer above us
		_ = backoff.Retry(func() error {
			select {
			case <-c.done:
				return nil
			default:
			}
			newConn, err := net.Dial("tcp", c.remote.String())
			if err != nil {
				return err
			}
			c.mut.Lock()
			c.conn = newConn
			c.mut.Unlock()
			go c.readLoop(newConn)
			return nil
		}, b)
	}
}

func (c *TCPClient) waitForDisconnect(conn net.Conn) {
	for {
		c.mut.RLock()
		cur := c.conn
		c.mut.RUnlock()
		if cur != conn {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (c *TCPClient) readLoop(conn net.Conn) {
	for {
		pkt, err := readFrame(conn)
		if err != nil {
			conn.Close()
			c.mut.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mut.Unlock()
			return
		}
		c.mut.RLock()
		d := c.delegate
		c.mut.RUnlock()
		if d != nil {
			d(pkt)
		}
		readBufferPool.put(pkt)
	}
}

func (c *TCPClient) SetDelegate(d Delegate) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.delegate = d
}

func (c *TCPClient) Send(packet []byte) {
	c.mut.RLock()
	conn := c.conn
	c.mut.RUnlock()
	if conn == nil {
		return
	}
	_ = writeFrame(conn, packet)
}

func (c *TCPClient) Close() error {
	c.mut.Lock()
	c.closed = true
	close(c.done)
	conn := c.conn
	c.mut.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
