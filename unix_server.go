// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

// UnixServer is a stream server endpoint over a filesystem-path (Unix
// domain) listen address. It shares the exact same accept/receive/close
// engine as TCPServer.
type UnixServer struct {
	core *streamServerCore
}

// NewUnixServer constructs a Unix-domain server bound to path.
func NewUnixServer(path string, opts ...Option) *UnixServer {
	return &UnixServer{core: newStreamServerCore("unix", path, opts...)}
}

// Init validates the path length and binds+listens. A second Unix server
// Init'd on the same path while the first is still running fails here at
// bind time.
func (s *UnixServer) Init() bool {
	if err := validateUnixPath(s.core.addr); err != nil {
		s.core.opts.logger().Printf("gosocket: %v: %q", err, s.core.addr)
		return false
	}
	return s.core.Init()
}

func (s *UnixServer) Start() bool { return s.core.Start() }

func (s *UnixServer) Stop() { s.core.Stop() }

func (s *UnixServer) SetListener(l ServerListener) { s.core.SetListener(l) }

func (s *UnixServer) GetSocketFd() int { return s.core.GetSocketFd() }

func (s *UnixServer) Send(fd int, payload []byte) bool { return s.core.Send(fd, payload) }
