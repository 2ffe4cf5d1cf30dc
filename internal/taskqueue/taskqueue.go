// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package taskqueue implements the per-endpoint callback pipeline: a
// single logical FIFO worker per Queue, backed by a shared bounded
// goroutine pool (github.com/panjf2000/ants) so that many endpoints don't
// each cost a dedicated OS thread just to serialize their callbacks.
package taskqueue

import (
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// defaultPoolSize bounds the number of goroutines the shared drain pool may
// use across every Queue in the process, absent a SetPoolSize call.
const defaultPoolSize = 256

var (
	poolSizeMu sync.Mutex
	poolSize   = defaultPoolSize

	sharedPool *ants.Pool
	poolOnce   sync.Once
)

// SetPoolSize requests a size for the shared drain pool backing every
// endpoint's Queue in the process. Only effective before the pool is first
// constructed, which happens lazily on the first Enqueue call across the
// whole process; a call after that point is a no-op. n <= 0 is ignored.
func SetPoolSize(n int) {
	if n <= 0 {
		return
	}
	poolSizeMu.Lock()
	poolSize = n
	poolSizeMu.Unlock()
}

func shared() *ants.Pool {
	poolOnce.Do(func() {
		poolSizeMu.Lock()
		n := poolSize
		poolSizeMu.Unlock()
		p, err := ants.NewPool(n)
		if err != nil {
			// ants.NewPool only fails on a non-positive size; fall back to
			// an unbounded-by-us pool rather than panic in library code.
			p, _ = ants.NewPool(-1)
		}
		sharedPool = p
	})
	return sharedPool
}

// Task is a unit of callback work. Tasks must not block indefinitely: they
// share the pool's goroutines with every other endpoint's queue.
type Task func()

type taskEntry struct {
	task      Task
	cancelled int32
}

// Handle refers to a previously enqueued, possibly-not-yet-run task.
// Cancel is idempotent and safe to call after the task has already run.
type Handle struct {
	entry *taskEntry
}

// Cancel marks the task as cancelled. If it hasn't run yet, the drain loop
// skips it instead of invoking it.
func (h Handle) Cancel() {
	if h.entry != nil {
		atomic.StoreInt32(&h.entry.cancelled, 1)
	}
}

// Queue is a single endpoint's ordered task pipeline: FIFO, single active
// drain goroutine at a time (so callbacks never interleave), started
// lazily on first Enqueue and stopped for good by Stop.
type Queue struct {
	mu      sync.Mutex
	pending []*taskEntry
	draining bool
	stopped bool
	done    chan struct{}
}

// New constructs an idle Queue. It consumes no goroutine until Enqueue is
// first called.
func New() *Queue {
	return &Queue{done: make(chan struct{})}
}

// Enqueue appends task to the FIFO. Returns a Handle usable to cancel it
// before it runs. If the queue has been stopped, the task is dropped and
// the returned Handle is a no-op.
func (q *Queue) Enqueue(task Task) Handle {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return Handle{}
	}
	e := &taskEntry{task: task}
	q.pending = append(q.pending, e)
	needsDrainer := !q.draining
	if needsDrainer {
		q.draining = true
	}
	q.mu.Unlock()

	if needsDrainer {
		if err := shared().Submit(q.drain); err != nil {
			// Pool saturated or closed: fall back to a dedicated goroutine
			// so the task still runs and ordering is preserved.
			go q.drain()
		}
	}
	return Handle{e}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.stopped {
			q.draining = false
			q.mu.Unlock()
			return
		}
		e := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if atomic.LoadInt32(&e.cancelled) == 0 {
			e.task()
		}
	}
}

// Stop discards any not-yet-run tasks and prevents further Enqueue calls
// from taking effect. It does not block for an in-flight task to finish;
// callers that need that guarantee should enqueue a sentinel task and wait
// on it before calling Stop.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.pending = nil
	q.mu.Unlock()
}
