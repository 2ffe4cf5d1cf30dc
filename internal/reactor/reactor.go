// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package reactor implements the single process-wide event-demultiplexing
// engine: one polling goroutine, a registry of fd-keyed handlers, and
// READ -> ERROR -> CLOSE -> WRITE dispatch ordering per readiness report,
// so data already queued at the kernel is drained before any teardown.
package reactor

import (
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lmshao/gosocket/internal/netpoll"
)

// InvalidFD is the sentinel value for a descriptor that does not (or no
// longer) identifies an open socket.
const InvalidFD = -1

// pollTimeout bounds each blocking Wait call so Stop is observed promptly
// without the reactor burning CPU in a tight loop.
const pollTimeout = 100 * time.Millisecond

// Logger is satisfied structurally by github.com/lmshao/gosocket's public
// Logger interface; declared locally so this package has no dependency on
// the root package (which depends on this one).
type Logger interface {
	Printf(format string, args ...interface{})
}

var defaultLogger Logger = log.New(os.Stderr, "[gosocket] ", log.LstdFlags)

// Handler is the unit of registration with the reactor: one instance per
// live registered fd. The reactor reads Fd/Interest only at Register and
// Modify time.
type Handler interface {
	Fd() int
	Interest() netpoll.Event
	OnRead()
	OnWrite()
	OnError(err error)
	OnClose()
}

// Reactor owns the polling primitive, the fd->handler registry and the
// dedicated polling goroutine. There is exactly one live Reactor per
// process in normal use; see Default.
type Reactor struct {
	poller   netpoll.Poller
	mu       sync.RWMutex
	handlers map[int]Handler
	running  int32
	stopCh   chan struct{}
	wg       sync.WaitGroup
	readyMu  sync.Mutex
	readyCV  *sync.Cond
	ready    bool
	logger   Logger
}

// New constructs and starts a Reactor: creates the polling primitive and
// wakeup descriptor, then launches the polling goroutine.
func New() (*Reactor, error) {
	poller, err := netpoll.Open()
	if err != nil {
		return nil, err
	}
	r := &Reactor{
		poller:   poller,
		handlers: make(map[int]Handler),
		stopCh:   make(chan struct{}),
		logger:   defaultLogger,
	}
	r.readyCV = sync.NewCond(&r.readyMu)
	atomic.StoreInt32(&r.running, 1)
	r.wg.Add(1)
	go r.loop()
	r.waitUntilReady()
	return r, nil
}

// SetLogger overrides the reactor's logger.
func (r *Reactor) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

func (r *Reactor) waitUntilReady() {
	r.readyMu.Lock()
	for !r.ready {
		r.readyCV.Wait()
	}
	r.readyMu.Unlock()
}

func (r *Reactor) signalReady() {
	r.readyMu.Lock()
	r.ready = true
	r.readyCV.Broadcast()
	r.readyMu.Unlock()
}

// Register associates handler.Fd() with the poller using handler.Interest().
// Fails if the fd is already registered or the reactor is stopped.
func (r *Reactor) Register(h Handler) bool {
	if atomic.LoadInt32(&r.running) == 0 {
		return false
	}
	fd := h.Fd()
	r.mu.Lock()
	if _, exists := r.handlers[fd]; exists {
		r.mu.Unlock()
		return false
	}
	r.handlers[fd] = h
	r.mu.Unlock()

	if err := r.poller.Register(fd, h.Interest()); err != nil {
		r.mu.Lock()
		delete(r.handlers, fd)
		r.mu.Unlock()
		r.logger.Printf("reactor: register fd=%d failed: %v", fd, err)
		return false
	}
	return true
}

// Modify updates kernel interest for an already-registered fd.
func (r *Reactor) Modify(fd int, interest netpoll.Event) bool {
	r.mu.RLock()
	_, exists := r.handlers[fd]
	r.mu.RUnlock()
	if !exists {
		return false
	}
	if err := r.poller.Modify(fd, interest); err != nil {
		r.logger.Printf("reactor: modify fd=%d failed: %v", fd, err)
		return false
	}
	return true
}

// Remove drops the registry entry and kernel interest for fd. Idempotent:
// removing an unknown fd is a no-op success.
func (r *Reactor) Remove(fd int) bool {
	r.mu.Lock()
	_, exists := r.handlers[fd]
	if exists {
		delete(r.handlers, fd)
	}
	r.mu.Unlock()
	if !exists {
		return true
	}
	if err := r.poller.Remove(fd); err != nil {
		r.logger.Printf("reactor: remove fd=%d failed: %v", fd, err)
	}
	return true
}

// Stop halts the polling goroutine and joins it. Outstanding handlers are
// not closed: endpoints own their descriptors and must close them
// themselves.
func (r *Reactor) Stop() {
	if !atomic.CompareAndSwapInt32(&r.running, 1, 0) {
		return
	}
	close(r.stopCh)
	r.poller.Wake()
	r.wg.Wait()
	r.poller.Close()
}

func (r *Reactor) loop() {
	defer r.wg.Done()
	r.signalReady()
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		events, err := r.poller.Wait(pollTimeout)
		if err != nil {
			if netpoll.IsTransient(err) {
				continue
			}
			r.logger.Printf("reactor: fatal poll error, stopping: %v", err)
			return
		}

		for _, ev := range events {
			r.dispatch(ev.Fd, ev.Events)
		}
	}
}

// dispatch classifies a single fd's reported bits and invokes the
// handler's callbacks, each run to completion before the next, without
// holding the registry lock. READ is always serviced first, even when
// ERROR or CLOSE is also set in the same report: both poller backends can
// report a final payload and a hangup/EOF condition together in one
// event (EPOLLIN|EPOLLRDHUP, or EV_EOF on the same EVFILT_READ kevent as
// the READ bit), and servicing ERROR/CLOSE first would tear the
// connection down — closing the fd and discarding the session — before
// OnRead ever drained that already-arrived data. ERROR/CLOSE are terminal
// for the fd, so WRITE never runs once either has fired; the handlers'
// own close paths are idempotent, so a fatal read error that already
// tore the connection down inside OnRead causes no harm when OnClose or
// OnError runs again immediately after.
func (r *Reactor) dispatch(fd int, events netpoll.Event) {
	r.mu.RLock()
	h, ok := r.handlers[fd]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if events&netpoll.Read != 0 {
		h.OnRead()
	}
	if events&netpoll.Error != 0 {
		h.OnError(nil)
		return
	}
	if events&netpoll.Close != 0 {
		h.OnClose()
		return
	}
	if events&netpoll.Write != 0 {
		h.OnWrite()
	}
}

var (
	defaultInstance *Reactor
	defaultOnce     sync.Once
	defaultErr      error
)

// Default lazily constructs the process-wide reactor singleton on first
// use. Every endpoint in the package obtains its reactor reference through
// this function rather than holding hidden global state of its own.
func Default() (*Reactor, error) {
	defaultOnce.Do(func() {
		defaultInstance, defaultErr = New()
	})
	return defaultInstance, defaultErr
}
