// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sendqueue implements the per-stream-descriptor outbound buffering
// state machine: QueueSend appends chunks, ProcessSendQueue drains them on
// write-readiness, partial writes rewrite only the head chunk.
package sendqueue

import (
	"sync"
	"syscall"

	"github.com/lmshao/gosocket/buffer"
	"github.com/lmshao/gosocket/internal/netpoll"
)

// Writer performs one non-blocking write attempt, mirroring
// syscall.Write/unix.Write's (n, err) contract.
type Writer func(b []byte) (n int, err error)

// Queue is an ordered, mutex-protected sequence of owned byte chunks
// pending write on a stream descriptor. Every Queue owns its own lock,
// guarding both the reactor-thread drain and user-thread enqueue against
// each other and against an in-flight close on another goroutine.
type Queue struct {
	mu      sync.Mutex
	chunks  [][]byte
	write   Writer
	onEmpty func()  // disable WRITE interest
	onFill  func()  // enable WRITE interest
	onError func(error)
}

// New constructs a Queue bound to a non-blocking Writer. onFill is called
// exactly once whenever the queue transitions from empty to non-empty;
// onEmpty is called once it fully drains. onError is called if a write
// fails for a reason other than would-block; the caller is expected to
// drive connection teardown from there.
func New(write Writer, onFill, onEmpty func(), onError func(error)) *Queue {
	return &Queue{write: write, onFill: onFill, onEmpty: onEmpty, onError: onError}
}

// QueueSend appends an owned copy of p. A zero-length payload is a no-op
// success: it is not enqueued and never triggers WRITE interest.
func (q *Queue) QueueSend(p []byte) {
	if len(p) == 0 {
		return
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)

	q.mu.Lock()
	wasEmpty := len(q.chunks) == 0
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()

	if wasEmpty && q.onFill != nil {
		q.onFill()
	}
}

// QueueSendBuffer is the buffer.Buffer-aware overload used by callers that
// already hold a pooled Buffer (e.g. a just-assembled outbound message);
// the chunk is copied out so the caller's Buffer may be released
// immediately after this call.
func (q *Queue) QueueSendBuffer(b *buffer.Buffer) {
	q.QueueSend(b.Data())
}

// ProcessSendQueue drains as much of the queue as can be written without
// blocking. Called on HandleWrite (WRITE readiness).
func (q *Queue) ProcessSendQueue() {
	for {
		q.mu.Lock()
		if len(q.chunks) == 0 {
			q.mu.Unlock()
			return
		}
		head := q.chunks[0]
		q.mu.Unlock()

		n, err := q.write(head)
		switch {
		case err != nil:
			if netpoll.IsTransient(err) || err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return // stop, keep WRITE enabled
			}
			if q.onError != nil {
				q.onError(err)
			}
			return // abandon the drain; ERROR/CLOSE will clean up
		case n == len(head):
			q.mu.Lock()
			q.chunks = q.chunks[1:]
			empty := len(q.chunks) == 0
			q.mu.Unlock()
			if empty {
				if q.onEmpty != nil {
					q.onEmpty()
				}
				return
			}
			continue
		case n > 0:
			q.mu.Lock()
			q.chunks[0] = head[n:]
			q.mu.Unlock()
			return // partial write, stop and wait for next WRITE readiness
		default: // n == 0, no error: treat as would-block
			return
		}
	}
}

// Pending reports whether any chunks remain unwritten.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks) > 0
}

// Reset discards all pending chunks without writing them, used during
// connection teardown.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.chunks = nil
	q.mu.Unlock()
}
