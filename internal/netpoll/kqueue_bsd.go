// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build darwin || dragonfly || freebsd || netbsd || openbsd
// +build darwin dragonfly freebsd netbsd openbsd

package netpoll

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const wakeIdent = ^uintptr(0) >> 1

func open() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(err, "kqueue")
	}
	if _, err := unix.FcntlInt(uintptr(kq), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(kq)
		return nil, errors.Wrap(err, "fcntl FD_CLOEXEC")
	}
	_, err = unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		unix.Close(kq)
		return nil, errors.Wrap(err, "kevent add wakeup filter")
	}
	return &kqueuePoller{
		fd:     kq,
		events: make([]unix.Kevent_t, 128),
	}, nil
}

type kqueuePoller struct {
	fd     int
	mu     sync.Mutex
	events []unix.Kevent_t
}

func (p *kqueuePoller) changeList(fd int, events Event, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if events&Read != 0 || flags == unix.EV_DELETE {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if events&Write != 0 || flags == unix.EV_DELETE {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return changes
}

func (p *kqueuePoller) Register(fd int, events Event) error {
	_, err := unix.Kevent(p.fd, p.changeList(fd, events, unix.EV_ADD), nil, nil)
	return err
}

func (p *kqueuePoller) Modify(fd int, events Event) error {
	// Clear both filters then re-add the ones currently of interest; kqueue
	// has no single "replace interest" op like epoll_ctl(MOD).
	unix.Kevent(p.fd, []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}, nil, nil)
	if events == 0 {
		return nil
	}
	_, err := unix.Kevent(p.fd, p.changeList(fd, events, unix.EV_ADD), nil, nil)
	return err
}

func (p *kqueuePoller) Remove(fd int) error {
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *kqueuePoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	var ts unix.Timespec // zero timespec: immediate poll
	if timeout > 0 {
		ts = unix.NsecToTimespec(int64(timeout))
	}
	n, err := unix.Kevent(p.fd, nil, p.events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	byFd := make(map[int]Event, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		if ev.Ident == uint64(wakeIdent) {
			continue
		}
		fd := int(ev.Ident)
		e := byFd[fd]
		if ev.Flags&unix.EV_EOF != 0 {
			e |= Close
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			e |= Error
		}
		switch ev.Filter {
		case unix.EVFILT_READ:
			e |= Read
		case unix.EVFILT_WRITE:
			e |= Write
		}
		byFd[fd] = e
	}
	out := make([]PollEvent, 0, len(byFd))
	for fd, e := range byFd {
		out = append(out, PollEvent{Fd: fd, Events: e})
	}
	return out, nil
}

func (p *kqueuePoller) Wake() error {
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	return err
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.fd)
}
