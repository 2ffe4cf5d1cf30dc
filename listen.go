// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/internal/netpoll"
)

// listenOwner is what a listenHandler needs from the stream server that
// created it.
type listenOwner interface {
	handleAccept()
	handleListenError(err error)
}

// listenHandler is the reactor.Handler for a stream server's listening
// descriptor. READ readiness means one or more pending connections.
type listenHandler struct {
	fd    int
	owner listenOwner
}

func newListenHandler(fd int, owner listenOwner) *listenHandler {
	return &listenHandler{fd: fd, owner: owner}
}

func (h *listenHandler) Fd() int                { return h.fd }
func (h *listenHandler) Interest() netpoll.Event { return netpoll.Read }

func (h *listenHandler) OnRead() { h.owner.handleAccept() }

func (h *listenHandler) OnWrite() {}

func (h *listenHandler) OnError(err error) {
	if err == nil {
		err = socketError(h.fd)
	}
	h.owner.handleListenError(err)
}

func (h *listenHandler) OnClose() {
	h.owner.handleListenError(unix.ECONNABORTED)
}
