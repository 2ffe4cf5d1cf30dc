// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux
// +build linux

package netpoll

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func open() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create1")
	}
	r, w, err := newWakeupPipe()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	p := &epollPoller{
		epfd:     epfd,
		wakeupR:  r,
		wakeupW:  w,
		events:   make([]unix.EpollEvent, 128),
		wakeBuf:  make([]byte, 8),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, r, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(r),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(r)
		unix.Close(w)
		return nil, errors.Wrap(err, "epoll_ctl add wakeup fd")
	}
	return p, nil
}

type epollPoller struct {
	epfd    int
	wakeupR int
	wakeupW int
	mu      sync.Mutex
	events  []unix.EpollEvent
	wakeBuf []byte
}

func toEpollEvents(events Event) uint32 {
	var e uint32 = unix.EPOLLRDHUP
	if events&Read != 0 {
		e |= unix.EPOLLIN
	}
	if events&Write != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func (p *epollPoller) Register(fd int, events Event) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: toEpollEvents(events),
		Fd:     int32(fd),
	})
}

func (p *epollPoller) Modify(fd int, events Event) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: toEpollEvents(events),
		Fd:     int32(fd),
	})
}

func (p *epollPoller) Remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *epollPoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	msec := int(timeout / time.Millisecond)
	if timeout <= 0 {
		msec = 0
	}
	n, err := unix.EpollWait(p.epfd, p.events, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]PollEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Fd)
		if fd == p.wakeupR {
			unix.Read(p.wakeupR, p.wakeBuf)
			continue
		}
		var e Event
		if ev.Events&unix.EPOLLERR != 0 {
			e |= Error
		}
		if ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			e |= Close
		}
		if ev.Events&unix.EPOLLIN != 0 {
			e |= Read
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			e |= Write
		}
		out = append(out, PollEvent{Fd: fd, Events: e})
	}
	return out, nil
}

func (p *epollPoller) Wake() error {
	_, err := unix.Write(p.wakeupW, []byte{1, 0, 0, 0, 0, 0, 0, 0})
	return err
}

func (p *epollPoller) Close() error {
	unix.Close(p.wakeupR)
	unix.Close(p.wakeupW)
	return unix.Close(p.epfd)
}

func newWakeupPipe() (r, w int, err error) {
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return 0, 0, errors.Wrap(err, "eventfd")
	}
	return efd, efd, nil
}
