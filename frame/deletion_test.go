// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"testing"

	"cogentcore.org/vkframe/gpu"
	"cogentcore.org/vkframe/gpu/fakegpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeletionQueueOrder(t *testing.T) {
	var dq DeletionQueue
	var order []int
	for i := range 3 {
		dq.Push(func() { order = append(order, i) })
	}
	assert.Equal(t, 3, dq.Len())
	dq.Flush()
	assert.Equal(t, []int{2, 1, 0}, order)
	assert.Equal(t, 0, dq.Len())

	dq.Flush()
	assert.Len(t, order, 3)
}

func TestOwned(t *testing.T) {
	d := fakegpu.NewDevice()
	buf, err := d.CreateBuffer(&gpu.BufferDescriptor{Label: "scratch", Size: 64, Usage: gpu.BufferUsageStorage})
	require.NoError(t, err)

	o := Own(buf, d.DestroyBuffer)
	assert.Equal(t, buf, o.Get())
	assert.False(t, o.Released())

	var dq DeletionQueue
	o.Defer(&dq)
	assert.Equal(t, []string{"scratch"}, d.Live())
	dq.Flush()
	assert.True(t, o.Released())
	assert.Empty(t, d.Live())

	// releasing again does not destroy twice
	o.Release()
	assert.Empty(t, d.ValidationErrors())
}
