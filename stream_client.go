// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/buffer"
	"github.com/lmshao/gosocket/internal/reactor"
	"github.com/lmshao/gosocket/internal/taskqueue"
)

// streamClientCore implements the connect/receive/close lifecycle shared
// by TCPClient and UnixClient.
type streamClientCore struct {
	network string
	addr    string
	opts    options

	mu      sync.RWMutex
	state   int32
	reactor *reactor.Reactor
	fd      int
	conn    *connHandler

	tq       *taskqueue.Queue
	listener ClientListener

	stagingBuf []byte
}

func newStreamClientCore(network, addr string, opts ...Option) *streamClientCore {
	return &streamClientCore{
		network: network,
		addr:    addr,
		opts:    loadOptions(opts...),
		state:   stateCreated,
		fd:      -1,
	}
}

func (c *streamClientCore) SetListener(l ClientListener) { c.listener = l }

func (c *streamClientCore) GetSocketFd() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fd
}

func (c *streamClientCore) Init() bool {
	if !atomic.CompareAndSwapInt32(&c.state, stateCreated, stateInitialized) &&
		!atomic.CompareAndSwapInt32(&c.state, stateStopped, stateInitialized) {
		c.opts.logger().Printf("gosocket: %v: %s", ErrAlreadyInitialized, c.addr)
		return false
	}
	r, err := reactor.Default()
	if err != nil {
		c.opts.logger().Printf("gosocket: reactor init failed: %v", err)
		atomic.StoreInt32(&c.state, stateCreated)
		return false
	}
	r.SetLogger(c.opts.logger())
	c.mu.Lock()
	c.reactor = r
	c.stagingBuf = make([]byte, stagingBufferSize)
	c.mu.Unlock()
	return true
}

// Connect issues a non-blocking connect. A connect returning EINPROGRESS is
// treated as success for registration purposes; a later asynchronous
// failure is delivered via OnError, not a return value.
func (c *streamClientCore) Connect(dial func() (fd int, immediate bool, err error)) bool {
	if !atomic.CompareAndSwapInt32(&c.state, stateInitialized, stateRunning) {
		if atomic.LoadInt32(&c.state) == stateRunning {
			c.opts.logger().Printf("gosocket: %v: %s", ErrAlreadyRunning, c.addr)
		} else {
			c.opts.logger().Printf("gosocket: %v: %s", ErrNotInitialized, c.addr)
		}
		return false
	}

	fd, immediate, err := dial()
	if err != nil {
		c.opts.logger().Printf("gosocket: connect %s://%s failed: %v", c.network, c.addr, err)
		atomic.StoreInt32(&c.state, stateInitialized)
		return false
	}

	taskqueue.SetPoolSize(c.opts.TaskPoolSize)

	c.mu.Lock()
	r := c.reactor
	c.tq = taskqueue.New()
	var ch *connHandler
	if immediate {
		ch = newConnHandler(fd, c, r)
	} else {
		ch = newConnectingHandler(fd, c, r)
	}
	c.fd = fd
	c.conn = ch
	c.mu.Unlock()

	if !r.Register(ch) {
		unix.Close(fd)
		atomic.StoreInt32(&c.state, stateInitialized)
		return false
	}
	return true
}

// Close removes the client's handler from the reactor, closes its fd, and
// stops the callback pipeline.
func (c *streamClientCore) Close() {
	if !atomic.CompareAndSwapInt32(&c.state, stateRunning, stateStopped) {
		c.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, c.addr)
		return
	}
	c.mu.Lock()
	fd := c.fd
	r := c.reactor
	tq := c.tq
	c.fd = -1
	c.mu.Unlock()

	if fd >= 0 {
		r.Remove(fd)
		unix.Close(fd)
	}
	if tq != nil {
		tq.Stop()
	}
}

func (c *streamClientCore) stagingBuffer() []byte { return c.stagingBuf }

func (c *streamClientCore) handleConnected(fd int) {}

func (c *streamClientCore) handleReceive(fd int, payload []byte) {
	c.enqueue(func() {
		if l := c.listener; l != nil {
			l.OnReceive(fd, payload)
		}
	})
}

func (c *streamClientCore) handleClose(fd int, isError bool, reason error) {
	c.mu.Lock()
	if c.fd != fd {
		c.mu.Unlock()
		return
	}
	r := c.reactor
	c.fd = -1
	c.mu.Unlock()

	r.Remove(fd)
	unix.Close(fd)

	c.enqueue(func() {
		l := c.listener
		if l == nil {
			return
		}
		if isError {
			l.OnError(fd, reason)
		} else {
			l.OnClose(fd)
		}
	})
}

// Send enqueues payload on the client's send queue. Returns false if the
// client is not connected.
func (c *streamClientCore) Send(payload []byte) bool {
	if atomic.LoadInt32(&c.state) != stateRunning {
		c.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, c.addr)
		return false
	}
	c.mu.RLock()
	ch := c.conn
	fd := c.fd
	c.mu.RUnlock()
	if ch == nil || fd < 0 {
		c.opts.logger().Printf("gosocket: %v: %s", ErrUnknownSession, c.addr)
		return false
	}
	ch.QueueSend(payload)
	return true
}

func (c *streamClientCore) SendString(s string) bool { return c.Send([]byte(s)) }

func (c *streamClientCore) SendBuffer(b *buffer.Buffer) bool { return c.Send(b.Data()) }

func (c *streamClientCore) enqueue(fn func()) {
	c.mu.RLock()
	tq := c.tq
	c.mu.RUnlock()
	if tq == nil {
		return
	}
	tq.Enqueue(taskqueue.Task(fn))
}
