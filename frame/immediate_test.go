// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"testing"
	"time"

	"cogentcore.org/vkframe/gpu"
	"cogentcore.org/vkframe/gpu/fakegpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImmediateUpload(t *testing.T) {
	d := fakegpu.NewDevice()
	d.Latency = time.Millisecond
	buf, err := d.CreateBuffer(&gpu.BufferDescriptor{Label: "params", Size: 8,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageTransferDst})
	require.NoError(t, err)
	bf := NewBuffer(buf)

	im, err := NewImmediate(d)
	require.NoError(t, err)
	for i := range 2 {
		err = im.Submit(func(rec *Recorder) {
			bf.TransitionTo(rec, gpu.StageTransfer, gpu.AccessTransferWrite)
			rec.UpdateBuffer(bf, 0, []byte{byte(i), 2, 3, 4, 5, 6, 7, 8})
			bf.TransitionTo(rec, gpu.StageComputeShader, gpu.AccessUniformRead)
		})
		require.NoError(t, err)

		// Submit returns only after the work completed
		assert.Equal(t, i+1, d.Count(fakegpu.EventComplete))
		assert.Equal(t, []byte{byte(i), 2, 3, 4, 5, 6, 7, 8}, d.Contents(buf))
	}

	im.Destroy()
	d.DestroyBuffer(buf)
	assert.Empty(t, d.Live())
	assert.Empty(t, d.ValidationErrors())
}
