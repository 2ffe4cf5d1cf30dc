// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshao/gosocket/session"
)

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

// scenario 1: TCP echo — server binds :0, client connects, sends "hello",
// server echoes it back, and OnClose fires with the same session
// identity the OnAccept callback saw.
func TestTCPEchoRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var acceptedFd int
	var echoed []byte
	var closedFd int
	closedCh := make(chan struct{})

	srv := NewTCPServer("127.0.0.1:0")
	srv.SetListener(&funcServerListener{
		onAccept: func(s *session.Session) {
			mu.Lock()
			acceptedFd = s.Fd()
			mu.Unlock()
		},
		onReceive: func(s *session.Session, payload []byte) {
			s.Send(payload)
		},
		onClose: func(s *session.Session) {
			mu.Lock()
			closedFd = s.Fd()
			mu.Unlock()
			close(closedCh)
		},
	})
	require.True(t, srv.Init())
	require.True(t, srv.Start())
	defer srv.Stop()

	cli := NewTCPClient(srv.Addr().String())
	cli.SetListener(&funcClientListener{
		onReceive: func(fd int, payload []byte) {
			mu.Lock()
			echoed = append(echoed, payload...)
			mu.Unlock()
		},
	})
	require.True(t, cli.Init())
	require.True(t, cli.Connect())

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return acceptedFd != 0
	})

	require.True(t, cli.Send([]byte("hello")))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return bytes.Equal(echoed, []byte("hello"))
	})

	cli.Close()

	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnClose")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, acceptedFd, closedFd, "OnClose must report the same session fd OnAccept did")
}

// scenario 2: UDP ping/pong preserving host/port identity of the sender.
func TestUDPPingPong(t *testing.T) {
	var mu sync.Mutex
	var gotPing []byte
	var gotPong []byte
	pongCh := make(chan struct{})

	srv := NewUDPServer("127.0.0.1:0")
	srv.SetListener(&funcServerListener{
		onReceive: func(s *session.Session, payload []byte) {
			mu.Lock()
			gotPing = append([]byte(nil), payload...)
			mu.Unlock()
			s.Send([]byte("pong"))
		},
	})
	require.True(t, srv.Init())
	require.True(t, srv.Start())
	defer srv.Stop()

	cli := NewUDPClient(srv.Addr().String())
	cli.SetListener(&funcClientListener{
		onReceive: func(fd int, payload []byte) {
			mu.Lock()
			gotPong = append([]byte(nil), payload...)
			mu.Unlock()
			close(pongCh)
		},
	})
	require.True(t, cli.Init())
	require.True(t, cli.Connect())
	defer cli.Close()

	require.True(t, cli.Send([]byte("ping")))

	select {
	case <-pongCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pong")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "ping", string(gotPing))
	assert.Equal(t, "pong", string(gotPong))
}

// scenario 3: back-to-back sends preserve byte order across the FIFO send
// queue; a slow-reading or busy loop must never interleave chunks.
func TestBackToBackSendsPreserveOrder(t *testing.T) {
	var mu sync.Mutex
	var received []byte
	doneCh := make(chan struct{})

	a := bytes.Repeat([]byte{'A'}, 100000)
	b := bytes.Repeat([]byte{'B'}, 100000)
	c := bytes.Repeat([]byte{'C'}, 100000)
	want := len(a) + len(b) + len(c)

	srv := NewTCPServer("127.0.0.1:0")
	srv.SetListener(&funcServerListener{
		onReceive: func(s *session.Session, payload []byte) {
			mu.Lock()
			received = append(received, payload...)
			n := len(received)
			mu.Unlock()
			if n >= want {
				select {
				case <-doneCh:
				default:
					close(doneCh)
				}
			}
		},
	})
	require.True(t, srv.Init())
	require.True(t, srv.Start())
	defer srv.Stop()

	cli := NewTCPClient(srv.Addr().String())
	cli.SetListener(&funcClientListener{})
	require.True(t, cli.Init())
	require.True(t, cli.Connect())
	defer cli.Close()

	require.True(t, cli.Send(a))
	require.True(t, cli.Send(b))
	require.True(t, cli.Send(c))

	select {
	case <-doneCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for all bytes to arrive")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, want)
	assert.True(t, bytes.Equal(received[:len(a)], a))
	assert.True(t, bytes.Equal(received[len(a):len(a)+len(b)], b))
	assert.True(t, bytes.Equal(received[len(a)+len(b):], c))
}

// scenario 4: a peer that closes its socket delivers OnClose, not OnError,
// exactly once.
func TestPeerResetDeliversOnCloseOnce(t *testing.T) {
	var mu sync.Mutex
	closeCount := 0
	errorCount := 0
	closedCh := make(chan struct{})

	srv := NewTCPServer("127.0.0.1:0")
	srv.SetListener(&funcServerListener{
		onClose: func(s *session.Session) {
			mu.Lock()
			closeCount++
			mu.Unlock()
			close(closedCh)
		},
		onError: func(s *session.Session, reason error) {
			mu.Lock()
			errorCount++
			mu.Unlock()
		},
	})
	require.True(t, srv.Init())
	require.True(t, srv.Start())
	defer srv.Stop()

	cli := NewTCPClient(srv.Addr().String())
	cli.SetListener(&funcClientListener{})
	require.True(t, cli.Init())
	require.True(t, cli.Connect())

	waitFor(t, time.Second, func() bool { return cli.GetSocketFd() >= 0 })
	cli.Close()

	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnClose")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, closeCount)
	assert.Equal(t, 0, errorCount)
}

// scenario 5: Stop under load — once Stop returns, no further callbacks
// fire, even if sends were racing the shutdown.
func TestStopUnderLoadSuppressesFurtherCallbacks(t *testing.T) {
	var mu sync.Mutex
	receivedAfterStop := false
	stopped := false

	srv := NewTCPServer("127.0.0.1:0")
	srv.SetListener(&funcServerListener{
		onReceive: func(s *session.Session, payload []byte) {
			mu.Lock()
			if stopped {
				receivedAfterStop = true
			}
			mu.Unlock()
			s.Send(payload)
		},
	})
	require.True(t, srv.Init())
	require.True(t, srv.Start())

	cli := NewTCPClient(srv.Addr().String())
	cli.SetListener(&funcClientListener{})
	require.True(t, cli.Init())
	require.True(t, cli.Connect())
	defer cli.Close()

	stopCh := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			cli.Send([]byte("load"))
		}
		close(stopCh)
	}()

	<-stopCh
	srv.Stop()
	mu.Lock()
	stopped = true
	mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, receivedAfterStop, "no OnReceive callback may run after Stop returns")
}

// scenario 6: Unix local-path listener exclusivity — a second server
// Init'd on the same path while the first is still running must fail.
func TestUnixListenerPathExclusivity(t *testing.T) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("gosocket-test-%d.sock", time.Now().UnixNano()%1000000))
	defer os.Remove(path)

	first := NewUnixServer(path)
	require.True(t, first.Init())
	require.True(t, first.Start())
	defer first.Stop()

	second := NewUnixServer(path)
	assert.False(t, second.Init(), "a second Init on the same path while the first is running must fail")
}

// funcServerListener adapts plain functions to ServerListener, letting
// each test wire only the callbacks it cares about.
type funcServerListener struct {
	BaseServerListener
	onAccept  func(*session.Session)
	onReceive func(*session.Session, []byte)
	onClose   func(*session.Session)
	onError   func(*session.Session, error)
}

func (f *funcServerListener) OnAccept(s *session.Session) {
	if f.onAccept != nil {
		f.onAccept(s)
	}
}

func (f *funcServerListener) OnReceive(s *session.Session, payload []byte) {
	if f.onReceive != nil {
		f.onReceive(s, payload)
	}
}

func (f *funcServerListener) OnClose(s *session.Session) {
	if f.onClose != nil {
		f.onClose(s)
	}
}

func (f *funcServerListener) OnError(s *session.Session, reason error) {
	if f.onError != nil {
		f.onError(s, reason)
	}
}

// funcClientListener is the client-side equivalent of funcServerListener.
type funcClientListener struct {
	BaseClientListener
	onReceive func(int, []byte)
	onClose   func(int)
	onError   func(int, error)
}

func (f *funcClientListener) OnReceive(fd int, payload []byte) {
	if f.onReceive != nil {
		f.onReceive(fd, payload)
	}
}

func (f *funcClientListener) OnClose(fd int) {
	if f.onClose != nil {
		f.onClose(fd)
	}
}

func (f *funcClientListener) OnError(fd int, reason error) {
	if f.onError != nil {
		f.onError(fd, reason)
	}
}
