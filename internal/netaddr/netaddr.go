// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package netaddr holds address-family helpers shared by the endpoint
// state machines: optional SO_REUSEPORT listeners and idle UDP port
// discovery utilities.
package netaddr

import (
	"net"
	"runtime"

	"github.com/libp2p/go-reuseport"
	"github.com/pkg/errors"
)

// MaxUnixPathLen is the platform-imposed cap on a Unix-domain socket path,
// mirrored from sockaddr_un.sun_path sizing.
var MaxUnixPathLen = defaultMaxUnixPathLen()

func defaultMaxUnixPathLen() int {
	if runtime.GOOS == "linux" {
		return 108
	}
	return 104
}

// Listen opens a stream listener for network, honoring reusePort via
// libp2p/go-reuseport's SO_REUSEPORT support when requested.
func Listen(network, addr string, reusePort bool) (net.Listener, error) {
	if reusePort {
		return reuseport.Listen(network, addr)
	}
	return net.Listen(network, addr)
}

// ListenPacket opens a datagram socket for network, honoring reusePort the
// same way Listen does.
func ListenPacket(network, addr string, reusePort bool) (net.PacketConn, error) {
	if reusePort {
		return reuseport.ListenPacket(network, addr)
	}
	return net.ListenPacket(network, addr)
}

// DefaultIdlePortBase is the starting point idle-port probing begins from
// when the caller doesn't specify one.
const DefaultIdlePortBase uint16 = 10000

// FindIdlePort returns a single UDP port, starting at base, that is free
// to bind at the moment of the probe. Binding is transient: the probe
// socket is closed before the port number is returned, so it can still be
// claimed by a concurrent probe before the caller binds it for real.
func FindIdlePort(base uint16) (uint16, error) {
	for port := base; port < 65535; port++ {
		if probeUDPPort(port) {
			return port, nil
		}
	}
	return 0, errors.New("netaddr: no idle port found above base")
}

// FindIdlePortPair returns two numerically consecutive free UDP ports
// starting at base, both idle at the moment of the probe.
func FindIdlePortPair(base uint16) (uint16, uint16, error) {
	for port := base; port < 65534; port++ {
		if probeUDPPort(port) && probeUDPPort(port+1) {
			return port, port + 1, nil
		}
	}
	return 0, 0, errors.New("netaddr: no idle port pair found above base")
}

func probeUDPPort(port uint16) bool {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: int(port)}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
