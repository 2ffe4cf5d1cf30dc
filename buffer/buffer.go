// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package buffer provides a dynamic, growable byte buffer: a pooled byte
// array with Data/Size/Capacity/Assign/Append, backed by bytebufferpool so
// repeated receive/send-chunk allocation doesn't churn the garbage
// collector.
package buffer

import "github.com/valyala/bytebufferpool"

// Buffer owns a growable byte array drawn from a shared pool. The zero
// value is not usable; construct one with Get.
type Buffer struct {
	b *bytebufferpool.ByteBuffer
}

// Get returns a Buffer from the shared pool, ready to use and empty.
func Get() *Buffer {
	return &Buffer{b: bytebufferpool.Get()}
}

// Release returns the underlying storage to the pool. After Release, the
// Buffer must not be used again.
func (buf *Buffer) Release() {
	if buf.b != nil {
		bytebufferpool.Put(buf.b)
		buf.b = nil
	}
}

// Data returns the buffer's current contents. The returned slice aliases
// internal storage and is only valid until the next mutating call or Release.
func (buf *Buffer) Data() []byte {
	return buf.b.B
}

// Size returns the number of valid bytes currently held.
func (buf *Buffer) Size() int {
	return buf.b.Len()
}

// Capacity returns the length of the underlying array, valid bytes or not.
func (buf *Buffer) Capacity() int {
	return cap(buf.b.B)
}

// Assign replaces the buffer's contents with a copy of p.
func (buf *Buffer) Assign(p []byte) {
	buf.b.Reset()
	buf.b.Write(p)
}

// Append appends a copy of p to the buffer's current contents.
func (buf *Buffer) Append(p []byte) {
	buf.b.Write(p)
}

// Reset empties the buffer without releasing its storage.
func (buf *Buffer) Reset() {
	buf.b.Reset()
}

// Clone returns a new pooled Buffer holding an independent copy of this
// buffer's current contents. Used when a chunk must outlive the staging
// buffer it was read into.
func (buf *Buffer) Clone() *Buffer {
	out := Get()
	out.Assign(buf.Data())
	return out
}

// FromBytes wraps an existing byte slice without copying, taking ownership
// of it. Used for exact-length receive copies that are already freshly
// allocated and don't need to come from the pool.
func FromBytes(p []byte) *Buffer {
	bb := bytebufferpool.Get()
	bb.B = p
	return &Buffer{b: bb}
}
