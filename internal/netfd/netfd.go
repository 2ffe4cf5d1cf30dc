// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package netfd extracts a raw, independently-owned file descriptor from a
// net.Listener/net.Conn/net.PacketConn built by the standard library, so
// the reactor can drive it directly with raw non-blocking syscalls instead
// of competing with the Go runtime's own netpoller. The original stdlib
// object is always closed immediately after duplication: only the raw fd
// survives, and the caller becomes solely responsible for closing it.
package netfd

import (
	"net"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type syscallConnable interface {
	SyscallConn() (syscall.RawConn, error)
}

// Dup duplicates the fd backing a net.Listener, net.Conn, or
// net.PacketConn, closes the original, and returns the duplicate. The
// duplicate inherits O_NONBLOCK from the original (the net package always
// sets its sockets non-blocking) and is owned entirely by the caller from
// this point on.
func Dup(v interface{ Close() error }) (int, error) {
	sc, ok := v.(syscallConnable)
	if !ok {
		return -1, errors.Errorf("netfd: %T does not support SyscallConn", v)
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		v.Close()
		return -1, errors.Wrap(err, "SyscallConn")
	}

	var dupFd int
	var dupErr error
	ctrlErr := rc.Control(func(fd uintptr) {
		dupFd, dupErr = unix.Dup(int(fd))
	})
	v.Close()
	if ctrlErr != nil {
		return -1, errors.Wrap(ctrlErr, "RawConn.Control")
	}
	if dupErr != nil {
		return -1, errors.Wrap(dupErr, "dup")
	}
	if err := unix.SetNonblock(dupFd, true); err != nil {
		unix.Close(dupFd)
		return -1, errors.Wrap(err, "set non-blocking")
	}
	return dupFd, nil
}

// DupListener is Dup specialized for net.Listener.
func DupListener(ln net.Listener) (int, error) { return Dup(ln) }

// DupConn is Dup specialized for net.Conn.
func DupConn(conn net.Conn) (int, error) { return Dup(conn) }

// DupPacketConn is Dup specialized for net.PacketConn.
func DupPacketConn(pc net.PacketConn) (int, error) { return Dup(pc) }
