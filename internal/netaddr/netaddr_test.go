// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netaddr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindIdlePortReturnsABindablePort(t *testing.T) {
	port, err := FindIdlePort(19000)
	require.NoError(t, err)
	require.True(t, port >= 19000)
	require.True(t, probeUDPPort(port), "returned port should still be bindable immediately after")
}

func TestFindIdlePortPairReturnsConsecutivePorts(t *testing.T) {
	p1, p2, err := FindIdlePortPair(19100)
	require.NoError(t, err)
	require.Equal(t, p1+1, p2)
}
