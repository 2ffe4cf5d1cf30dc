// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sendqueue

import (
	"errors"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueSendOrdersChunksFIFO(t *testing.T) {
	var mu sync.Mutex
	var written []byte
	fillCalls, emptyCalls := 0, 0

	q := New(
		func(b []byte) (int, error) {
			mu.Lock()
			written = append(written, b...)
			mu.Unlock()
			return len(b), nil
		},
		func() { fillCalls++ },
		func() { emptyCalls++ },
		func(error) { t.Fatal("unexpected onError") },
	)

	q.QueueSend([]byte("A"))
	q.QueueSend([]byte("B"))
	q.QueueSend([]byte("C"))
	require.Equal(t, 1, fillCalls, "onFill should only fire on the empty->non-empty transition")

	q.ProcessSendQueue()

	assert.Equal(t, "ABC", string(written))
	assert.Equal(t, 1, emptyCalls)
	assert.False(t, q.Pending())
}

func TestProcessSendQueuePartialWriteStopsAtHead(t *testing.T) {
	calls := 0
	var lastWrite []byte
	q := New(
		func(b []byte) (int, error) {
			calls++
			lastWrite = append([]byte(nil), b...)
			return 2, nil // always short-write 2 bytes
		},
		nil, nil,
		func(error) { t.Fatal("unexpected onError") },
	)

	q.QueueSend([]byte("ABCDEF"))
	q.ProcessSendQueue()

	require.True(t, q.Pending())
	assert.Equal(t, []byte("ABCDEF"), lastWrite)
	assert.Equal(t, 1, calls, "partial write must stop the drain, not loop forever on the same chunk")

	q.ProcessSendQueue()
	assert.Equal(t, 2, calls)
}

func TestProcessSendQueueWouldBlockKeepsChunk(t *testing.T) {
	attempts := 0
	q := New(
		func(b []byte) (int, error) {
			attempts++
			return 0, syscall.EAGAIN
		},
		nil, nil,
		func(error) { t.Fatal("unexpected onError") },
	)
	q.QueueSend([]byte("hello"))
	q.ProcessSendQueue()

	assert.Equal(t, 1, attempts)
	assert.True(t, q.Pending())
}

func TestProcessSendQueueFatalErrorAbandonsDrain(t *testing.T) {
	var gotErr error
	q := New(
		func(b []byte) (int, error) { return 0, errors.New("connection reset") },
		nil, nil,
		func(err error) { gotErr = err },
	)
	q.QueueSend([]byte("hello"))
	q.ProcessSendQueue()

	require.Error(t, gotErr)
	assert.Equal(t, "connection reset", gotErr.Error())
}

func TestQueueSendZeroLengthIsNoop(t *testing.T) {
	fillCalls := 0
	q := New(
		func(b []byte) (int, error) { t.Fatal("should never write"); return 0, nil },
		func() { fillCalls++ },
		nil, nil,
	)
	q.QueueSend(nil)
	q.QueueSend([]byte{})
	assert.Equal(t, 0, fillCalls)
	assert.False(t, q.Pending())
}
