// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import "golang.org/x/sys/unix"

// UnixClient is a stream client endpoint connecting to a Unix-domain
// socket path, sharing streamClientCore with TCPClient.
type UnixClient struct {
	core *streamClientCore
}

// NewUnixClient constructs a Unix-domain client that will connect to path.
func NewUnixClient(path string, opts ...Option) *UnixClient {
	return &UnixClient{core: newStreamClientCore("unix", path, opts...)}
}

func (c *UnixClient) Init() bool {
	if err := validateUnixPath(c.core.addr); err != nil {
		c.core.opts.logger().Printf("gosocket: %v: %q", err, c.core.addr)
		return false
	}
	return c.core.Init()
}

func (c *UnixClient) Connect() bool {
	return c.core.Connect(func() (int, bool, error) {
		fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			return 0, false, err
		}
		err = unix.Connect(fd, &unix.SockaddrUnix{Name: c.core.addr})
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

func (c *UnixClient) Close() { c.core.Close() }

func (c *UnixClient) SetListener(l ClientListener) { c.core.SetListener(l) }

func (c *UnixClient) GetSocketFd() int { return c.core.GetSocketFd() }

func (c *UnixClient) Send(payload []byte) bool { return c.core.Send(payload) }

func (c *UnixClient) SendString(s string) bool { return c.core.SendString(s) }
