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

func TestRecorderScope(t *testing.T) {
	d := fakegpu.NewDevice()
	cb, _ := d.CreateCommandBuffer("cmd")
	rec := NewRecorder(cb)
	assert.Equal(t, RecorderInitial, rec.State())

	assert.Panics(t, rec.End)
	assert.Panics(t, func() { rec.Dispatch(1, 1, 1) })

	rec.Begin()
	assert.Equal(t, RecorderRecording, rec.State())
	assert.Panics(t, rec.Begin)

	rec.End()
	assert.Equal(t, RecorderExecutable, rec.State())
	assert.Panics(t, func() { rec.Draw(3, 1, 0, 0) })

	cmd := rec.take()
	assert.Equal(t, gpu.CommandBuffer(cb), cmd)
	assert.Equal(t, RecorderPending, rec.State())
	assert.Panics(t, func() { rec.take() }, "submitted twice")

	// a pending recorder can be reused once its work is known complete
	rec.Begin()
	assert.Equal(t, RecorderRecording, rec.State())
	assert.Empty(t, d.ValidationErrors())
}

func TestRecorderBeginResets(t *testing.T) {
	d := fakegpu.NewDevice()
	im := newFakeImage(t, d, "target")
	rec, cb := newOpenRecorder(t, d)
	im.TransitionTo(rec, gpu.StageComputeShader, gpu.AccessShaderWrite, gpu.LayoutGeneral)
	rec.End()
	require.Len(t, cb.Commands(), 1)

	rec.Begin()
	assert.Empty(t, cb.Commands())
}

func TestRecorderLayoutChecks(t *testing.T) {
	d := fakegpu.NewDevice()
	src := newFakeImage(t, d, "src")
	dst := newFakeImage(t, d, "dst")
	rec, cb := newOpenRecorder(t, d)

	assert.Panics(t, func() { rec.BeginRendering(src, gpu.LoadOpLoad) })
	assert.Panics(t, func() {
		rec.Blit(src, gpu.FullRect(src.GPU().Extent()), dst, gpu.FullRect(dst.GPU().Extent()), gpu.FilterNearest)
	})

	src.TransitionTo(rec, gpu.StageColorAttachmentOutput, gpu.AccessColorAttachmentWrite, gpu.LayoutColorAttachmentOptimal)
	rec.BeginRendering(src, gpu.LoadOpLoad)
	rec.EndRendering()

	src.TransitionTo(rec, gpu.StageTransfer, gpu.AccessTransferRead, gpu.LayoutTransferSrcOptimal)
	dst.Discard(rec, gpu.StageTransfer, gpu.AccessTransferWrite, gpu.LayoutTransferDstOptimal)
	rec.Blit(src, gpu.FullRect(src.GPU().Extent()), dst, gpu.Rect{Extent: gpu.Extent2D{Width: 8, Height: 8}}, gpu.FilterNearest)

	cmds := cb.Commands()
	require.Len(t, cmds, 6)
	assert.Equal(t, fakegpu.OpBeginRendering, cmds[1].Op)
	assert.Equal(t, gpu.LoadOpLoad, cmds[1].Rendering.LoadOp)
	assert.Equal(t, fakegpu.OpBlit, cmds[5].Op)
	assert.Equal(t, gpu.FilterNearest, cmds[5].Blit.Filter)
	assert.Equal(t, uint32(8), cmds[5].Blit.DstRegion.Extent.Width)
	assert.Equal(t, uint32(16), cmds[5].Blit.SrcRegion.Extent.Width)
}
