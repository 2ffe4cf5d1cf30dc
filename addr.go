// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/lmshao/gosocket/internal/netaddr"
)

// parseHostPort splits "host:port" into its parts. Addressing is IPv4
// dotted-quad + uint16 port; no name resolution is performed, so host must
// already be a literal IP, or empty/"0.0.0.0" meaning all interfaces.
func parseHostPort(addr string) (host string, port uint16, err error) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return "", 0, err
	}
	return h, uint16(n), nil
}

func toSockaddrInet4(host string, port uint16) (*unix.SockaddrInet4, error) {
	if host == "" || host == "0.0.0.0" {
		return &unix.SockaddrInet4{Port: int(port)}, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, ErrUnsupportedNetwork
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, ErrUnsupportedNetwork
	}
	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

func sockaddrToHostPort(sa unix.Sockaddr) (string, uint16) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String(), uint16(a.Port)
	case *unix.SockaddrInet6:
		return net.IP(a.Addr[:]).String(), uint16(a.Port)
	}
	return "", 0
}

func validateUnixPath(path string) error {
	if len(path) == 0 || len(path) >= netaddr.MaxUnixPathLen {
		return ErrPathTooLong
	}
	return nil
}
