// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/internal/netaddr"
	"github.com/lmshao/gosocket/internal/netfd"
	"github.com/lmshao/gosocket/internal/reactor"
	"github.com/lmshao/gosocket/internal/taskqueue"
)

// UDPClient is a datagram client endpoint: optionally bound locally,
// sending to and receiving from a single configured peer.
type UDPClient struct {
	peerAddr  string
	opts      options
	broadcast bool

	mu        sync.RWMutex
	state     int32
	reactor   *reactor.Reactor
	fd        int
	handler   *datagramHandler
	peerHost  string
	peerPort  uint16

	tq       *taskqueue.Queue
	listener ClientListener

	stagingBuf []byte
}

// NewUDPClient constructs a UDP client that will send to peerAddr. Pass
// WithLocalAddr(addr) in opts to bind a specific local address/port instead
// of letting the kernel choose.
func NewUDPClient(peerAddr string, opts ...Option) *UDPClient {
	return &UDPClient{peerAddr: peerAddr, opts: loadOptions(opts...), state: stateCreated, fd: -1}
}

// EnableBroadcast sets SO_BROADCAST on the client's socket. Must be
// called after Init.
func (c *UDPClient) EnableBroadcast() bool {
	c.mu.RLock()
	fd := c.fd
	c.mu.RUnlock()
	if fd < 0 {
		return false
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
		c.opts.logger().Printf("gosocket: enable broadcast failed: %v", err)
		return false
	}
	c.broadcast = true
	return true
}

func (c *UDPClient) SetListener(l ClientListener) { c.listener = l }

func (c *UDPClient) GetSocketFd() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fd
}

func (c *UDPClient) Init() bool {
	if !atomic.CompareAndSwapInt32(&c.state, stateCreated, stateInitialized) &&
		!atomic.CompareAndSwapInt32(&c.state, stateStopped, stateInitialized) {
		c.opts.logger().Printf("gosocket: %v: %s", ErrAlreadyInitialized, c.peerAddr)
		return false
	}
	host, port, err := parseHostPort(c.peerAddr)
	if err != nil {
		c.opts.logger().Printf("gosocket: bad peer address %s: %v", c.peerAddr, err)
		atomic.StoreInt32(&c.state, stateCreated)
		return false
	}

	bindAddr := c.opts.LocalAddr
	if bindAddr == "" {
		bindAddr = "0.0.0.0:0"
	}
	pc, err := netaddr.ListenPacket("udp", bindAddr, c.opts.ReusePort)
	if err != nil {
		c.opts.logger().Printf("gosocket: bind udp client %s failed: %v", bindAddr, err)
		atomic.StoreInt32(&c.state, stateCreated)
		return false
	}
	fd, err := netfd.DupPacketConn(pc)
	if err != nil {
		c.opts.logger().Printf("gosocket: dup packetconn fd failed: %v", err)
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
	c.fd = fd
	c.peerHost, c.peerPort = host, port
	c.stagingBuf = make([]byte, stagingBufferSize)
	c.mu.Unlock()
	return true
}

// Connect registers the client's fd with the reactor and starts its
// callback pipeline. There is no wire-level connect for UDP; the name
// matches the TCP/Unix client surface for symmetry.
func (c *UDPClient) Connect() bool {
	if !atomic.CompareAndSwapInt32(&c.state, stateInitialized, stateRunning) {
		if atomic.LoadInt32(&c.state) == stateRunning {
			c.opts.logger().Printf("gosocket: %v: %s", ErrAlreadyRunning, c.peerAddr)
		} else {
			c.opts.logger().Printf("gosocket: %v: %s", ErrNotInitialized, c.peerAddr)
		}
		return false
	}
	taskqueue.SetPoolSize(c.opts.TaskPoolSize)

	c.mu.Lock()
	c.tq = taskqueue.New()
	c.handler = newDatagramHandler(c.fd, c)
	r := c.reactor
	h := c.handler
	c.mu.Unlock()

	if !r.Register(h) {
		atomic.StoreInt32(&c.state, stateInitialized)
		return false
	}
	return true
}

func (c *UDPClient) Close() {
	if !atomic.CompareAndSwapInt32(&c.state, stateRunning, stateStopped) {
		c.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, c.peerAddr)
		return
	}
	c.mu.Lock()
	r := c.reactor
	fd := c.fd
	tq := c.tq
	c.fd = -1
	c.mu.Unlock()

	r.Remove(fd)
	unix.Close(fd)
	if tq != nil {
		tq.Stop()
	}
}

func (c *UDPClient) stagingBuffer() []byte { return c.stagingBuf }

func (c *UDPClient) handleDatagram(payload []byte, from unix.Sockaddr) {
	c.mu.RLock()
	fd, tq := c.fd, c.tq
	c.mu.RUnlock()
	if tq == nil {
		return
	}
	tq.Enqueue(func() {
		if l := c.listener; l != nil {
			l.OnReceive(fd, payload)
		}
	})
}

func (c *UDPClient) handleDatagramError(err error) {
	c.mu.RLock()
	fd, tq := c.fd, c.tq
	c.mu.RUnlock()
	c.opts.logger().Printf("gosocket: udp client %s error: %v", c.peerAddr, err)
	if tq == nil {
		return
	}
	tq.Enqueue(func() {
		if l := c.listener; l != nil {
			l.OnError(fd, err)
		}
	})
}

// Send does a single sendto to the configured peer. A zero-length payload
// is a success no-op. Partial sends on UDP are impossible at the syscall
// level for a datagram smaller than the path MTU; any send error is
// reported as failure.
func (c *UDPClient) Send(payload []byte) bool {
	if atomic.LoadInt32(&c.state) != stateRunning {
		c.opts.logger().Printf("gosocket: %v: %s", ErrNotRunning, c.peerAddr)
		return false
	}
	if len(payload) == 0 {
		return true
	}
	c.mu.RLock()
	fd, host, port := c.fd, c.peerHost, c.peerPort
	c.mu.RUnlock()

	sa, err := toSockaddrInet4(host, port)
	if err != nil {
		return false
	}
	if err := unix.Sendto(fd, payload, 0, sa); err != nil {
		c.opts.logger().Printf("gosocket: udp sendto %s failed: %v", c.peerAddr, err)
		return false
	}
	return true
}
