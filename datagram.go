// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/internal/netpoll"
)

// datagramOwner is what a datagramHandler needs from the UDP server or
// client that created it.
type datagramOwner interface {
	stagingBuffer() []byte
	handleDatagram(payload []byte, from unix.Sockaddr)
	handleDatagramError(err error)
}

// datagramHandler is the reactor.Handler shared by UDPServer and UDPClient:
// a single bound/connected non-blocking fd, drained with recvfrom on READ
// readiness. No session map is kept here — datagram sessions are
// transient, constructed per packet by the owner.
type datagramHandler struct {
	fd    int
	owner datagramOwner
}

func newDatagramHandler(fd int, owner datagramOwner) *datagramHandler {
	return &datagramHandler{fd: fd, owner: owner}
}

func (h *datagramHandler) Fd() int                { return h.fd }
func (h *datagramHandler) Interest() netpoll.Event { return netpoll.Read }

func (h *datagramHandler) OnRead() {
	buf := h.owner.stagingBuffer()
	for {
		n, from, err := unix.Recvfrom(h.fd, buf, 0)
		if err != nil {
			if netpoll.IsTransient(err) {
				return
			}
			h.owner.handleDatagramError(err)
			return
		}
		if n <= 0 {
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		h.owner.handleDatagram(payload, from)
	}
}

func (h *datagramHandler) OnWrite() {}

func (h *datagramHandler) OnError(err error) {
	if err == nil {
		err = socketError(h.fd)
	}
	h.owner.handleDatagramError(err)
}

func (h *datagramHandler) OnClose() {
	h.owner.handleDatagramError(unix.ECONNRESET)
}
