// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"net"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/internal/netaddr"
	"github.com/lmshao/gosocket/internal/netfd"
	"github.com/lmshao/gosocket/internal/netpoll"
	"github.com/lmshao/gosocket/internal/reactor"
	"github.com/lmshao/gosocket/internal/taskqueue"
	"github.com/lmshao/gosocket/session"
)

// endpoint lifecycle states, shared by every endpoint family.
const (
	stateCreated = iota
	stateInitialized
	stateRunning
	stateStopped
)

// stagingBufferSize is the fixed per-endpoint receive staging buffer size.
const stagingBufferSize = 4096

// streamServerCore implements the accept/receive/close lifecycle shared by
// TCPServer and UnixServer: local-path stream endpoints reuse the exact
// same engine as TCP stream endpoints, not just the send-queue type.
type streamServerCore struct {
	network string
	addr    string
	opts    options

	mu        sync.RWMutex
	state     int32
	reactor   *reactor.Reactor
	listenFd  int
	listenH   *listenHandler
	boundAddr net.Addr

	conns    map[int]*connHandler
	sessions map[int]*session.Session

	tq       *taskqueue.Queue
	listener ServerListener
	ownerID  uint64

	stagingBuf []byte
}

func newStreamServerCore(network, addr string, opts ...Option) *streamServerCore {
	return &streamServerCore{
		network: network,
		addr:    addr,
		opts:    loadOptions(opts...),
		state:   stateCreated,
	}
}

func (c *streamServerCore) SetListener(l ServerListener) { c.listener = l }

func (c *streamServerCore) GetSocketFd() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listenFd
}

// Addr returns the address actually bound after Init, which may differ from
// the requested addr when the port was left as 0.
func (c *streamServerCore) Addr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.boundAddr
}

// Init binds and listens. It may be called again after Stop to make the
// endpoint reusable.
func (c *streamServerCore) Init() bool {
	if !atomic.CompareAndSwapInt32(&c.state, stateCreated, stateInitialized) &&
		!atomic.CompareAndSwapInt32(&c.state, stateStopped, stateInitialized) {
		c.opts.logger().Printf("gosocket: %v: %s", ErrAlreadyInitialized, c.addr)
		return false
	}

	ln, err := netaddr.Listen(c.network, c.addr, c.opts.ReusePort)
	if err != nil {
		c.opts.logger().Printf("gosocket: listen %s://%s failed: %v", c.network, c.addr, err)
		atomic.StoreInt32(&c.state, stateCreated)
		return false
	}
	boundAddr := ln.Addr()
	fd, err := netfd.DupListener(ln)
	if err != nil {
		c.opts.logger().Printf("gosocket: dup listener fd failed: %v", err)
		atomic.StoreInt32(&c.state, stateCreated)
		return false
	}

	r, err := reactor.Default()
	if err != nil {
		unix.Close(fd)
		c.opts.logger().Printf("gosocket: reactor init failed: %v", err)
		atomic.StoreInt32(&c.state, stateCreated)
		return false
	}
	r.SetLogger(c.opts.logger())

	c.mu.Lock()
	c.reactor = r
	c.listenFd = fd
	c.boundAddr = boundAddr
	c.conns = make(map[int]*connHandler)
	c.sessions = make(map[int]*session.Session)
	c.stagingBuf = make([]byte, stagingBufferSize)
	c.mu.Unlock()
	return true
}

// Start registers the listening descriptor with the reactor and starts the
// endpoint's callback pipeline.
func (c *streamServerCore) Start() bool {
	if !atomic.CompareAndSwapInt32(&c.state, stateInitialized, stateRunning) {
		if atomic.LoadInt32(&c.state) == stateRunning {
			c.opts.logger().Printf("gosocket: %v: %s", ErrAlreadyRunning, c.addr)
		} else {
			c.opts.logger().Printf("gosocket: %v: %s", ErrNotInitialized, c.addr)
		}
		return false
	}

	taskqueue.SetPoolSize(c.opts.TaskPoolSize)

	c.mu.Lock()
	c.tq = taskqueue.New()
	c.ownerID = session.Register(c)
	c.listenH = newListenHandler(c.listenFd, c)
	r := c.reactor
	c.mu.Unlock()

	if !r.Register(c.listenH) {
		atomic.StoreInt32(&c.state, stateInitialized)
		return false
	}
	return true
}

// Stop snapshots current session fds, tears each down, then the listen fd,
// then stops the task queue last so no queued callback starts after Stop
// returns. A callback already running when Stop is called is not waited for.
func (c *streamServerCore) Stop() {
	if !atomic.CompareAndSwapInt32(&c.state, stateRunning, stateStopped) {
		c.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, c.addr)
		return
	}

	c.mu.Lock()
	fds := make([]int, 0, len(c.conns))
	for fd := range c.conns {
		fds = append(fds, fd)
	}
	r := c.reactor
	listenFd := c.listenFd
	tq := c.tq
	ownerID := c.ownerID
	c.mu.Unlock()

	for _, fd := range fds {
		r.Remove(fd)
		unix.Close(fd)
	}
	c.mu.Lock()
	c.conns = make(map[int]*connHandler)
	c.sessions = make(map[int]*session.Session)
	c.mu.Unlock()

	r.Remove(listenFd)
	unix.Close(listenFd)
	if c.network == "unix" {
		os.Remove(c.addr)
	}
	session.Unregister(ownerID)
	if tq != nil {
		tq.Stop()
	}
}

func (c *streamServerCore) stagingBuffer() []byte {
	return c.stagingBuf
}

// handleAccept accepts in a non-blocking loop until EAGAIN, registering
// each new connection.
func (c *streamServerCore) handleAccept() {
	for {
		c.mu.RLock()
		listenFd := c.listenFd
		r := c.reactor
		c.mu.RUnlock()

		nfd, sa, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if !netpoll.IsTransient(err) {
				c.opts.logger().Printf("gosocket: accept on %s failed: %v", c.addr, err)
			}
			return
		}

		ch := newConnHandler(nfd, c, r)
		if !r.Register(ch) {
			unix.Close(nfd)
			continue
		}

		var sess *session.Session
		if c.network == "unix" {
			sess = session.NewUnix(nfd, c.addr, c.ownerID)
		} else {
			host, port := sockaddrToHostPort(sa)
			sess = session.New(nfd, host, port, c.ownerID)
		}

		c.mu.Lock()
		c.conns[nfd] = ch
		c.sessions[nfd] = sess
		c.mu.Unlock()

		if c.opts.TCPKeepAlive > 0 && c.network != "unix" {
			unix.SetsockoptInt(nfd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
		}

		c.enqueue(func() {
			if l := c.listener; l != nil {
				l.OnAccept(sess)
			}
		})
	}
}

func (c *streamServerCore) handleListenError(err error) {
	c.opts.logger().Printf("gosocket: listen socket %s error: %v", c.addr, err)
}

func (c *streamServerCore) handleReceive(fd int, payload []byte) {
	c.mu.RLock()
	sess := c.sessions[fd]
	c.mu.RUnlock()
	if sess == nil {
		return
	}
	c.enqueue(func() {
		if l := c.listener; l != nil {
			l.OnReceive(sess, payload)
		}
	})
}

// handleConnected is never invoked for server-side connections (they are
// never in the "connecting" state); present only to satisfy streamOwner.
func (c *streamServerCore) handleConnected(int) {}

// handleClose is the unified, idempotent close path: first caller to find
// the session still present wins.
func (c *streamServerCore) handleClose(fd int, isError bool, reason error) {
	c.mu.Lock()
	sess, ok := c.sessions[fd]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, fd)
	delete(c.conns, fd)
	r := c.reactor
	c.mu.Unlock()

	r.Remove(fd)
	unix.Close(fd)

	c.enqueue(func() {
		l := c.listener
		if l == nil {
			return
		}
		if isError {
			l.OnError(sess, reason)
		} else {
			l.OnClose(sess)
		}
	})
}

// SendFrom implements session.Sender: a Session.Send call resolves back to
// here and is routed to the connection's send queue.
func (c *streamServerCore) SendFrom(s *session.Session, payload []byte) bool {
	c.mu.RLock()
	ch, ok := c.conns[s.Fd()]
	c.mu.RUnlock()
	if !ok {
		c.opts.logger().Printf("gosocket: %v: fd=%d", ErrUnknownSession, s.Fd())
		return false
	}
	ch.QueueSend(payload)
	return true
}

// Send addresses a payload directly by session fd, without routing through
// a Session value.
func (c *streamServerCore) Send(fd int, payload []byte) bool {
	if atomic.LoadInt32(&c.state) != stateRunning {
		c.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, c.addr)
		return false
	}
	c.mu.RLock()
	ch, ok := c.conns[fd]
	c.mu.RUnlock()
	if !ok {
		c.opts.logger().Printf("gosocket: %v: fd=%d", ErrUnknownSession, fd)
		return false
	}
	ch.QueueSend(payload)
	return true
}

func (c *streamServerCore) enqueue(fn func()) {
	c.mu.RLock()
	tq := c.tq
	c.mu.RUnlock()
	if tq == nil {
		return
	}
	tq.Enqueue(taskqueue.Task(fn))
}
