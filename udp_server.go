// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/internal/netaddr"
	"github.com/lmshao/gosocket/internal/netfd"
	"github.com/lmshao/gosocket/internal/reactor"
	"github.com/lmshao/gosocket/internal/taskqueue"
	"github.com/lmshao/gosocket/session"
)

// UDPServer is a datagram server endpoint: one bound fd, no session map
// kept across packets — each received datagram gets a freshly constructed,
// transient Session. OnReceive is delivered through the same per-endpoint
// task queue every other endpoint uses, not inline on the poll thread.
type UDPServer struct {
	addr string
	opts options

	mu        sync.RWMutex
	state     int32
	reactor   *reactor.Reactor
	fd        int
	handler   *datagramHandler
	boundAddr net.Addr

	tq       *taskqueue.Queue
	listener ServerListener
	ownerID  uint64

	stagingBuf []byte
}

// NewUDPServer constructs a UDP server bound to addr.
func NewUDPServer(addr string, opts ...Option) *UDPServer {
	return &UDPServer{addr: addr, opts: loadOptions(opts...), state: stateCreated, fd: -1}
}

func (s *UDPServer) SetListener(l ServerListener) { s.listener = l }

func (s *UDPServer) GetSocketFd() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fd
}

// Addr returns the address actually bound after Init.
func (s *UDPServer) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundAddr
}

func (s *UDPServer) Init() bool {
	if !atomic.CompareAndSwapInt32(&s.state, stateCreated, stateInitialized) &&
		!atomic.CompareAndSwapInt32(&s.state, stateStopped, stateInitialized) {
		s.opts.logger().Printf("gosocket: %v: %s", ErrAlreadyInitialized, s.addr)
		return false
	}
	pc, err := netaddr.ListenPacket("udp", s.addr, s.opts.ReusePort)
	if err != nil {
		s.opts.logger().Printf("gosocket: listen udp %s failed: %v", s.addr, err)
		atomic.StoreInt32(&s.state, stateCreated)
		return false
	}
	boundAddr := pc.LocalAddr()
	fd, err := netfd.DupPacketConn(pc)
	if err != nil {
		s.opts.logger().Printf("gosocket: dup packetconn fd failed: %v", err)
		atomic.StoreInt32(&s.state, stateCreated)
		return false
	}
	r, err := reactor.Default()
	if err != nil {
		unix.Close(fd)
		s.opts.logger().Printf("gosocket: reactor init failed: %v", err)
		atomic.StoreInt32(&s.state, stateCreated)
		return false
	}
	r.SetLogger(s.opts.logger())

	s.mu.Lock()
	s.reactor = r
	s.fd = fd
	s.boundAddr = boundAddr
	s.stagingBuf = make([]byte, stagingBufferSize)
	s.mu.Unlock()
	return true
}

func (s *UDPServer) Start() bool {
	if !atomic.CompareAndSwapInt32(&s.state, stateInitialized, stateRunning) {
		if atomic.LoadInt32(&s.state) == stateRunning {
			s.opts.logger().Printf("gosocket: %v: %s", ErrAlreadyRunning, s.addr)
		} else {
			s.opts.logger().Printf("gosocket: %v: %s", ErrNotInitialized, s.addr)
		}
		return false
	}
	taskqueue.SetPoolSize(s.opts.TaskPoolSize)

	s.mu.Lock()
	s.tq = taskqueue.New()
	s.ownerID = session.Register(s)
	s.handler = newDatagramHandler(s.fd, s)
	r := s.reactor
	c := s.handler
	s.mu.Unlock()

	if !r.Register(c) {
		atomic.StoreInt32(&s.state, stateInitialized)
		return false
	}
	return true
}

func (s *UDPServer) Stop() {
	if !atomic.CompareAndSwapInt32(&s.state, stateRunning, stateStopped) {
		s.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, s.addr)
		return
	}
	s.mu.Lock()
	r := s.reactor
	fd := s.fd
	tq := s.tq
	ownerID := s.ownerID
	s.mu.Unlock()

	r.Remove(fd)
	unix.Close(fd)
	session.Unregister(ownerID)
	if tq != nil {
		tq.Stop()
	}
}

func (s *UDPServer) stagingBuffer() []byte { return s.stagingBuf }

func (s *UDPServer) handleDatagram(payload []byte, from unix.Sockaddr) {
	host, port := sockaddrToHostPort(from)
	sess := session.New(-1, host, port, s.ownerID)

	s.mu.RLock()
	tq := s.tq
	s.mu.RUnlock()
	if tq == nil {
		return
	}
	tq.Enqueue(func() {
		if l := s.listener; l != nil {
			l.OnReceive(sess, payload)
		}
	})
}

func (s *UDPServer) handleDatagramError(err error) {
	s.opts.logger().Printf("gosocket: udp server %s recv error: %v", s.addr, err)
}

// SendFrom implements session.Sender for datagram sessions: a single
// sendto to the session's peer address. unix.Sendto reports only an error,
// not a byte count, so partial sends are not detected separately; any
// sendto error is logged and reported as failure.
func (s *UDPServer) SendFrom(sess *session.Session, payload []byte) bool {
	s.mu.RLock()
	fd := s.fd
	s.mu.RUnlock()
	if fd < 0 {
		s.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, s.addr)
		return false
	}
	sa, err := toSockaddrInet4(sess.Host(), sess.Port())
	if err != nil {
		s.opts.logger().Printf("gosocket: udp sendto bad peer address %s:%d: %v", sess.Host(), sess.Port(), err)
		return false
	}
	if len(payload) == 0 {
		return true
	}
	if err := unix.Sendto(fd, payload, 0, sa); err != nil {
		s.opts.logger().Printf("gosocket: udp sendto %s:%d failed: %v", sess.Host(), sess.Port(), err)
		return false
	}
	return true
}

// Send addresses a payload directly, without going through a Session.
func (s *UDPServer) Send(host string, port uint16, payload []byte) bool {
	if atomic.LoadInt32(&s.state) != stateRunning {
		s.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, s.addr)
		return false
	}
	return s.SendFrom(session.New(-1, host, port, 0), payload)
}
