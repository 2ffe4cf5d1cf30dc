// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import "github.com/lmshao/gosocket/internal/netaddr"

// FindIdlePort returns a single UDP port free to bind at the moment of the
// probe, starting the search at base. Use DefaultIdlePortBase (10000) when
// no preference.
func FindIdlePort(base uint16) (uint16, error) {
	return netaddr.FindIdlePort(base)
}

// FindIdlePortPair returns two numerically consecutive free UDP ports
// starting the search at base.
func FindIdlePortPair(base uint16) (uint16, uint16, error) {
	return netaddr.FindIdlePortPair(base)
}

// DefaultIdlePortBase is the conventional starting point for idle-port
// probing.
const DefaultIdlePortBase = netaddr.DefaultIdlePortBase
