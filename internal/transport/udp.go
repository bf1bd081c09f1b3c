// Copyright (C) 2024 The PianoConnect Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package transport

import (
	"net"
	"sync"
)

func genericUDPReader(conn *net.UDPConn, getDelegate func() Delegate, onSenderLearned func(*net.UDPAddr), closed func() bool) {
	for {
		buf := readBufferPool.get(MaxDatagramSize)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if closed() {
				return
			}
			continue
		}
		if onSenderLearned != nil {
			onSenderLearned(addr)
		}
		if d := getDelegate(); d != nil {
			pkt := make([]byte, n)
			copy(pkt, buf[:n])
			d(pkt)
		}
		readBufferPool.put(buf)
	}
}

// UDPSymmetric binds to a local address and sends to a fixed remote
// endpoint.
type UDPSymmetric struct {
	conn   *net.UDPConn
	remote *net.UDPAddr

	mut      sync.RWMutex
	delegate Delegate
	closed   bool
}

// NewUDPSymmetric binds listen and targets send as the fixed remote.
func NewUDPSymmetric(listen, send Endpoint) (*UDPSymmetric, error) {
	laddr, err := net.ResolveUDPAddr("udp", listen.String())
	if err != nil {
		return nil, err
	}
	raddr, err := net.ResolveUDPAddr("udp", send.String())
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}

	u := &UDPSymmetric{conn: conn, remote: raddr}
	go genericUDPReader(conn, u.getDelegate, nil, u.isClosed)
	return u, nil
}

func (u *UDPSymmetric) getDelegate() Delegate {
	u.mut.RLock()
	defer u.mut.RUnlock()
	return u.delegate
}

func (u *UDPSymmetric) isClosed() bool {
	u.mut.RLock()
	defer u.mut.RUnlock()
	return u.closed
}

func (u *UDPSymmetric) SetDelegate(d Delegate) {
	u.mut.Lock()
	defer u.mut.Unlock()
	u.delegate = d
}

func (u *UDPSymmetric) Send(packet []byte) {
	_, _ = u.conn.WriteToUDP(packet, u.remote)
}

func (u *UDPSymmetric) Close() error {
	u.mut.Lock()
	u.closed = true
	u.mut.Unlock()
	return u.conn.Close()
}

// UDPServer binds to a local address and learns its peer from the most
// recent inbound datagram. Before any datagram
// has arrived, Send is a no-op.
type UDPServer struct {
	conn *net.UDPConn

	mut      sync.RWMutex
	delegate Delegate
	peer     *net.UDPAddr
	closed   bool
}

// NewUDPServer binds listen and waits for a peer to announce itself.
func NewUDPServer(listen Endpoint) (*UDPServer, error) {
	laddr, err := net.ResolveUDPAddr("udp", listen.String())
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}

	s := &UDPServer{conn: conn}
	go genericUDPReader(conn, s.getDelegate, s.learnPeer, s.isClosed)
	return s, nil
}

func (s *UDPServer) learnPeer(addr *net.UDPAddr) {
	s.mut.Lock()
	s.peer = addr
	s.mut.Unlock()
}

func (s *UDPServer) getDelegate() Delegate {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.delegate
}

func (s *UDPServer) isClosed() bool {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return s.closed
}

func (s *UDPServer) SetDelegate(d Delegate) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.delegate = d
}

func (s *UDPServer) Send(packet []byte) {
	s.mut.RLock()
	peer := s.peer
	s.mut.RUnlock()
	if peer == nil {
		return
	}
	_, _ = s.conn.WriteToUDP(packet, peer)
}

func (s *UDPServer) Close() error {
	s.mut.Lock()
	s.closed = true
	s.mut.Unlock()
	return s.conn.Close()
}

// UDPClient opens an unbound socket connected to a fixed remote, and
// listens on the OS-assigned local port.
type UDPClient struct {
	conn *net.UDPConn

	mut      sync.RWMutex
	delegate Delegate
	closed   bool
}

// NewUDPClient connects to remote.
func NewUDPClient(remote Endpoint) (*UDPClient, error) {
	raddr, err := net.ResolveUDPAddr("udp", remote.String())
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}

	c := &UDPClient{conn: conn}
	go genericUDPReader(conn, c.getDelegate, nil, c.isClosed)
	return c, nil
}

func (c *UDPClient) getDelegate() Delegate {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.delegate
}

func (c *UDPClient) isClosed() bool {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.closed
}

func (c *UDPClient) SetDelegate(d Delegate) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.delegate = d
}

func (c *UDPClient) Send(packet []byte) {
	_, _ = c.conn.Write(packet)
}

func (c *UDPClient) Close() error {
	c.mut.Lock()
	c.closed = true
	c.mut.Unlock()
	return c.conn.Close()
}
