// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import "github.com/lmshao/gosocket/session"

// ServerListener receives events for a stream or datagram server. The
// endpoint holds the listener installed by SetListener as an ordinary
// reference, not a weak one: it stays reachable, and keeps receiving
// callbacks, for as long as the endpoint does.
type ServerListener interface {
	// OnAccept fires after a new stream connection has been accepted, or
	// (datagram servers) is a no-op hook never invoked.
	OnAccept(s *session.Session)
	// OnReceive fires with a freshly-allocated, exact-length payload.
	OnReceive(s *session.Session, payload []byte)
	// OnClose fires once, after the peer has closed normally.
	OnClose(s *session.Session)
	// OnError fires once, after a fatal non-transient I/O error.
	OnError(s *session.Session, reason error)
}

// ClientListener receives events for a stream or datagram client.
type ClientListener interface {
	OnReceive(fd int, payload []byte)
	OnClose(fd int)
	OnError(fd int, reason error)
}

// BaseServerListener is an embeddable no-op ServerListener, mirroring the
// teacher's EventServer composition pattern: embed it and override only
// the methods you need.
type BaseServerListener struct{}

func (BaseServerListener) OnAccept(*session.Session)          {}
func (BaseServerListener) OnReceive(*session.Session, []byte) {}
func (BaseServerListener) OnClose(*session.Session)           {}
func (BaseServerListener) OnError(*session.Session, error)    {}

// BaseClientListener is an embeddable no-op ClientListener.
type BaseClientListener struct{}

func (BaseClientListener) OnReceive(int, []byte) {}
func (BaseClientListener) OnClose(int)           {}
func (BaseClientListener) OnError(int, error)     {}
