// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package taskqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueRunsInFIFOOrder(t *testing.T) {
	q := New()
	defer q.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 5)
	for i, v := range order {
		assert.Equal(t, i, v, "tasks must run in enqueue order")
	}
}

func TestCancelSkipsNotYetRunTask(t *testing.T) {
	q := New()
	defer q.Stop()

	block := make(chan struct{})
	var ran1 int32ish
	var wg sync.WaitGroup
	wg.Add(2)

	q.Enqueue(func() {
		<-block
		ran1.set()
		wg.Done()
	})
	h := q.Enqueue(func() {
		t.Error("cancelled task must not run")
		wg.Done()
	})
	h.Cancel()
	q.Enqueue(func() { wg.Done() })

	close(block)
	waitOrTimeout(t, &wg, time.Second)
	assert.True(t, ran1.get())
}

func TestEnqueueAfterStopIsDropped(t *testing.T) {
	q := New()
	ran := false
	q.Stop()
	h := q.Enqueue(func() { ran = true })
	assert.Nil(t, h.entry, "Enqueue after Stop must not schedule anything")
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks to complete")
	}
}

// int32ish is a tiny race-free bool for the cancel test above.
type int32ish struct {
	mu sync.Mutex
	v  bool
}

func (i *int32ish) set() {
	i.mu.Lock()
	i.v = true
	i.mu.Unlock()
}

func (i *int32ish) get() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.v
}
