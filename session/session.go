// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package session implements the per-connection (stream) and per-peer
// (datagram) object handed to server listeners. A Session never holds a
// strong pointer back to its owning endpoint — it resolves the owner
// through a process-wide registry keyed by an opaque arena id instead.
package session

import (
	"sync"
	"sync/atomic"
)

// Sender is whatever a Session needs from its owning endpoint to implement
// Send: route a payload back out over the session's fd (stream) or to its
// peer address (datagram). The full Session is passed, not just its fd,
// since a datagram owner needs the peer's host/port to route a sendto.
type Sender interface {
	SendFrom(s *Session, payload []byte) bool
}

var (
	registryMu sync.RWMutex
	registry   = make(map[uint64]Sender)
	nextID     uint64
)

// Register installs s in the process-wide owner registry and returns the
// arena id a Session should carry to reach it later. Call Unregister when
// the owning endpoint stops.
func Register(s Sender) uint64 {
	id := atomic.AddUint64(&nextID, 1)
	registryMu.Lock()
	registry[id] = s
	registryMu.Unlock()
	return id
}

// Unregister removes an owner from the registry; any Session still
// carrying its id will find Send returning false afterward.
func Unregister(id uint64) {
	registryMu.Lock()
	delete(registry, id)
	registryMu.Unlock()
}

func resolve(id uint64) Sender {
	registryMu.RLock()
	s := registry[id]
	registryMu.RUnlock()
	return s
}

// Session is the per-accepted-connection (stream server) or per-datagram
// (UDP server) object carrying peer address, fd, and a virtual Send that
// delegates back to the owning endpoint. Clients do not create Sessions.
// It is expected to be discarded by the holder once the matching
// OnClose/OnError callback has run.
type Session struct {
	fd      int
	host    string
	port    uint16
	path    string
	ownerID uint64
}

// New constructs a network-addressed Session (TCP/UDP).
func New(fd int, host string, port uint16, ownerID uint64) *Session {
	return &Session{fd: fd, host: host, port: port, ownerID: ownerID}
}

// NewUnix constructs a filesystem-path-addressed Session.
func NewUnix(fd int, path string, ownerID uint64) *Session {
	return &Session{fd: fd, path: path, ownerID: ownerID}
}

// Fd returns the session's descriptor.
func (s *Session) Fd() int { return s.fd }

// Host returns the peer's IPv4 address, empty for Unix-domain sessions.
func (s *Session) Host() string { return s.host }

// Port returns the peer's port, zero for Unix-domain sessions.
func (s *Session) Port() uint16 { return s.port }

// Path returns the socket path of a Unix-domain session (for connections
// accepted by a UnixServer, the server's own listen path), empty for
// network sessions.
func (s *Session) Path() string { return s.path }

// Send delegates to the owning endpoint, resolved through the arena
// registry rather than a direct pointer. Returns false if the owner has
// already stopped or this fd is no longer known to it.
func (s *Session) Send(payload []byte) bool {
	owner := resolve(s.ownerID)
	if owner == nil {
		return false
	}
	return owner.SendFrom(s, payload)
}
