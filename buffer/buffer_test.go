// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignAndAppend(t *testing.T) {
	b := Get()
	defer b.Release()

	b.Assign([]byte("hello"))
	assert.Equal(t, "hello", string(b.Data()))
	assert.Equal(t, 5, b.Size())

	b.Append([]byte(" world"))
	assert.Equal(t, "hello world", string(b.Data()))
	assert.Equal(t, 11, b.Size())
	assert.True(t, b.Capacity() >= b.Size())
}

func TestResetEmptiesWithoutReleasing(t *testing.T) {
	b := Get()
	defer b.Release()

	b.Assign([]byte("data"))
	b.Reset()
	assert.Equal(t, 0, b.Size())
	assert.Equal(t, "", string(b.Data()))
}

func TestCloneIsIndependent(t *testing.T) {
	b := Get()
	defer b.Release()
	b.Assign([]byte("original"))

	clone := b.Clone()
	defer clone.Release()

	b.Assign([]byte("mutated"))
	assert.Equal(t, "original", string(clone.Data()))
}
