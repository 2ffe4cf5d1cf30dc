// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/internal/netpoll"
	"github.com/lmshao/gosocket/internal/reactor"
	"github.com/lmshao/gosocket/internal/sendqueue"
)

// streamOwner is what a connHandler needs from the endpoint that created
// it: somewhere to read into, and a place to route receive/close/connect
// events. streamServerCore and streamClientCore, the engines behind TCPServer,
// TCPClient, UnixServer and UnixClient, implement it.
type streamOwner interface {
	stagingBuffer() []byte
	handleReceive(fd int, payload []byte)
	handleClose(fd int, isError bool, reason error)
	// handleConnected fires once for a client's asynchronous connect
	// completion; server-side connHandlers never call it.
	handleConnected(fd int)
}

// connHandler is the reactor.Handler for a single stream data descriptor —
// an accepted server connection or a connected client socket. It owns the
// fd's send queue; the reactor drives its OnRead/OnWrite/OnError/OnClose.
type connHandler struct {
	fd         int
	owner      streamOwner
	reactor    *reactor.Reactor
	queue      *sendqueue.Queue
	interest   netpoll.Event
	connecting int32
}

// newConnHandler constructs a handler for an already-connected descriptor
// (accepted server connection, or a client connect that completed
// synchronously). Its initial interest is READ.
func newConnHandler(fd int, owner streamOwner, r *reactor.Reactor) *connHandler {
	return newConnHandlerWithState(fd, owner, r, false)
}

// newConnectingHandler constructs a handler for a client socket whose
// non-blocking connect returned EINPROGRESS: its initial interest is WRITE,
// used to detect connect completion rather than to drain a send queue.
func newConnectingHandler(fd int, owner streamOwner, r *reactor.Reactor) *connHandler {
	return newConnHandlerWithState(fd, owner, r, true)
}

func newConnHandlerWithState(fd int, owner streamOwner, r *reactor.Reactor, connecting bool) *connHandler {
	h := &connHandler{fd: fd, owner: owner, reactor: r}
	if connecting {
		h.interest = netpoll.Write
		h.connecting = 1
	} else {
		h.interest = netpoll.Read
	}
	h.queue = sendqueue.New(
		func(b []byte) (int, error) { return unix.Write(fd, b) },
		func() { r.Modify(fd, netpoll.Read|netpoll.Write) },
		func() { r.Modify(fd, netpoll.Read) },
		func(err error) { owner.handleClose(fd, true, err) },
	)
	return h
}

func (h *connHandler) Fd() int                { return h.fd }
func (h *connHandler) Interest() netpoll.Event { return h.interest }

// QueueSend appends payload to this connection's outbound queue.
func (h *connHandler) QueueSend(payload []byte) {
	h.queue.QueueSend(payload)
}

// OnRead reads until would-block, zero (peer half-close — handled by a
// later CLOSE dispatch, not here), or a fatal error (drives teardown
// immediately).
func (h *connHandler) OnRead() {
	buf := h.owner.stagingBuffer()
	for {
		n, err := unix.Read(h.fd, buf)
		switch {
		case n > 0:
			payload := make([]byte, n)
			copy(payload, buf[:n])
			h.owner.handleReceive(h.fd, payload)
			// Loop again even when n == len(buf): a buffer-exactly-full
			// read still needs one more attempt in this same dispatch.
			continue
		case err != nil:
			if netpoll.IsTransient(err) {
				return
			}
			h.owner.handleClose(h.fd, true, err)
			return
		default: // n == 0
			return
		}
	}
}

func (h *connHandler) OnWrite() {
	if atomic.CompareAndSwapInt32(&h.connecting, 1, 0) {
		if err := socketError(h.fd); err != nil {
			h.owner.handleClose(h.fd, true, err)
			return
		}
		h.interest = netpoll.Read
		h.reactor.Modify(h.fd, netpoll.Read)
		// A Send issued while the connect was pending already enabled WRITE
		// through onFill; the Modify above cleared it, so restore it.
		if h.queue.Pending() {
			h.reactor.Modify(h.fd, netpoll.Read|netpoll.Write)
		}
		h.owner.handleConnected(h.fd)
		return
	}
	h.queue.ProcessSendQueue()
}

func (h *connHandler) OnError(err error) {
	if err == nil {
		err = socketError(h.fd)
	}
	h.owner.handleClose(h.fd, true, err)
}

func (h *connHandler) OnClose() {
	h.owner.handleClose(h.fd, false, nil)
}

// socketError reads SO_ERROR off fd, used when the poller reports an ERROR
// condition without itself surfacing the errno.
func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}
