// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import "time"

// options collects the functional-option configuration shared by every
// endpoint family.
type options struct {
	Multicore    bool
	ReusePort    bool
	TCPKeepAlive time.Duration
	Logger       Logger
	TaskPoolSize int
	LocalAddr    string
}

// Option configures an endpoint at construction time.
type Option func(*options)

// WithMulticore is accepted for API symmetry but has no effect: every
// endpoint shares a single process-wide reactor thread regardless.
func WithMulticore(enabled bool) Option {
	return func(o *options) { o.Multicore = enabled }
}

// WithReusePort enables SO_REUSEPORT on the endpoint's listen/bind socket.
func WithReusePort(enabled bool) Option {
	return func(o *options) { o.ReusePort = enabled }
}

// WithTCPKeepAlive enables SO_KEEPALIVE on connections accepted by a
// TCPServer when d > 0. The duration itself is not applied as a keep-alive
// interval, and clients ignore this option. Zero leaves keep-alive off.
func WithTCPKeepAlive(d time.Duration) Option {
	return func(o *options) { o.TCPKeepAlive = d }
}

// WithLogger overrides the Logger used by this single endpoint, without
// changing the default installed by SetLogger. The endpoint's Init also
// hands this logger to the shared reactor, which then logs through it for
// every endpoint until another endpoint is Init'd.
func WithLogger(l Logger) Option {
	return func(o *options) { o.Logger = l }
}

// WithTaskPoolSize is a hint for the shared callback-dispatch goroutine
// pool's size; it only has an effect the first time any endpoint in the
// process enqueues a callback.
func WithTaskPoolSize(n int) Option {
	return func(o *options) { o.TaskPoolSize = n }
}

// WithLocalAddr binds a client's local socket to addr (host:port) instead
// of letting the kernel pick one. Only consulted by endpoints that support
// an explicit local bind; others ignore it.
func WithLocalAddr(addr string) Option {
	return func(o *options) { o.LocalAddr = addr }
}

func loadOptions(opts ...Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return defaultLogger
}
