// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import "net"

// TCPServer is a stream server endpoint over a TCP listen address.
type TCPServer struct {
	core *streamServerCore
}

// NewTCPServer constructs a TCP server bound to addr ("host:port"; an
// empty or "0.0.0.0" host binds all interfaces, port 0 asks the kernel to
// assign one — see GetSocketFd/Addr after Init).
func NewTCPServer(addr string, opts ...Option) *TCPServer {
	return &TCPServer{core: newStreamServerCore("tcp", addr, opts...)}
}

// Init binds and listens.
func (s *TCPServer) Init() bool { return s.core.Init() }

// Start registers the listener with the reactor and begins accepting.
func (s *TCPServer) Start() bool { return s.core.Start() }

// Stop tears down every active connection, then the listening socket.
func (s *TCPServer) Stop() { s.core.Stop() }

// SetListener installs the server's event listener.
func (s *TCPServer) SetListener(l ServerListener) { s.core.SetListener(l) }

// GetSocketFd returns the listening descriptor.
func (s *TCPServer) GetSocketFd() int { return s.core.GetSocketFd() }

// Addr returns the bound listen address, useful after binding to port 0.
func (s *TCPServer) Addr() net.Addr { return s.core.Addr() }

// Send writes payload to the connection identified by fd (a session's Fd).
func (s *TCPServer) Send(fd int, payload []byte) bool { return s.core.Send(fd, payload) }
