// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/buffer"
)

// TCPClient is a stream client endpoint connecting to a TCP address.
type TCPClient struct {
	core *streamClientCore
}

// NewTCPClient constructs a TCP client that will connect to addr
// ("host:port").
func NewTCPClient(addr string, opts ...Option) *TCPClient {
	return &TCPClient{core: newStreamClientCore("tcp", addr, opts...)}
}

func (c *TCPClient) Init() bool { return c.core.Init() }

// Connect creates a non-blocking TCP socket and issues connect().
func (c *TCPClient) Connect() bool {
	return c.core.Connect(func() (int, bool, error) {
		host, port, err := parseHostPort(c.core.addr)
		if err != nil {
			return 0, false, err
		}
		sa, err := toSockaddrInet4(host, port)
		if err != nil {
			return 0, false, err
		}
		fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			return 0, false, err
		}
		err = unix.Connect(fd, sa)
		switch err {
		case nil:
			return fd, true, nil
		case unix.EINPROGRESS:
			return fd, false, nil
		default:
			unix.Close(fd)
			return 0, false, err
		}
	})
}

func (c *TCPClient) Close() { c.core.Close() }

func (c *TCPClient) SetListener(l ClientListener) { c.core.SetListener(l) }

func (c *TCPClient) GetSocketFd() int { return c.core.GetSocketFd() }

func (c *TCPClient) Send(payload []byte) bool { return c.core.Send(payload) }

func (c *TCPClient) SendString(s string) bool { return c.core.SendString(s) }

func (c *TCPClient) SendBuffer(b *buffer.Buffer) bool { return c.core.SendBuffer(b) }
