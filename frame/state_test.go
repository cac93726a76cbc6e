// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"path/filepath"
	"testing"

	"cogentcore.org/vkframe/gpu"
	"cogentcore.org/vkframe/gpu/fakegpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeImage(t *testing.T, d *fakegpu.Device, label string) *Image {
	img, err := d.CreateImage(&gpu.ImageDescriptor{Label: label, Extent: gpu.Extent2D{Width: 16, Height: 16},
		Format: gpu.FormatR16G16B16A16Sfloat,
		Usage:  gpu.ImageUsageStorage | gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferSrc})
	require.NoError(t, err)
	return NewImage(img)
}

func newOpenRecorder(t *testing.T, d *fakegpu.Device) (*Recorder, *fakegpu.CommandBuffer) {
	cb, err := d.CreateCommandBuffer("cmd")
	require.NoError(t, err)
	rec := NewRecorder(cb)
	rec.Begin()
	return rec, cb.(*fakegpu.CommandBuffer)
}

// assertPanicsAssertion checks that fn fails a precondition.
func assertPanicsAssertion(t *testing.T, fn func(), contains string) {
	t.Helper()
	defer func() {
		v := recover()
		require.NotNil(t, v, "expected an assertion failure")
		ae, ok := v.(*gpu.AssertionError)
		require.True(t, ok, "panic value %v is not an assertion", v)
		assert.Contains(t, ae.Msg, contains)
		assert.Equal(t, "state.go", filepath.Base(ae.File))
	}()
	fn()
}

func TestTrackerMatchesLastBarrier(t *testing.T) {
	d := fakegpu.NewDevice()
	im := newFakeImage(t, d, "target")
	rec, cb := newOpenRecorder(t, d)

	assert.Equal(t, ImageState{Stages: gpu.StageTopOfPipe, Layout: gpu.LayoutUndefined}, im.State())

	type step struct {
		src, dst   gpu.PipelineStages
		srcA, dstA gpu.Access
		old, new   gpu.ImageLayout
	}
	steps := []step{
		{gpu.StageTopOfPipe, gpu.StageComputeShader, 0, gpu.AccessShaderWrite, gpu.LayoutUndefined, gpu.LayoutGeneral},
		{gpu.StageComputeShader, gpu.StageColorAttachmentOutput, gpu.AccessShaderWrite,
			gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite, gpu.LayoutGeneral, gpu.LayoutColorAttachmentOptimal},
		{gpu.StageAllCommands, gpu.StageTransfer, gpu.AccessMemoryWrite, gpu.AccessTransferRead,
			gpu.LayoutColorAttachmentOptimal, gpu.LayoutTransferSrcOptimal},
	}
	for i, s := range steps {
		im.Transition(rec, s.src, s.dst, s.srcA, s.dstA, s.old, s.new)
		assert.Equal(t, ImageState{Stages: s.dst, Access: s.dstA, Layout: s.new}, im.State())

		cmds := cb.Commands()
		require.Len(t, cmds, i+1)
		b := cmds[i].ImageBarrier
		assert.Equal(t, fakegpu.OpImageBarrier, cmds[i].Op)
		assert.Equal(t, gpu.ImageBarrier{Image: im.GPU(), SrcStages: s.src, DstStages: s.dst,
			SrcAccess: s.srcA, DstAccess: s.dstA, OldLayout: s.old, NewLayout: s.new}, b)
	}
}

func TestIdentityTransitionFails(t *testing.T) {
	d := fakegpu.NewDevice()
	im := newFakeImage(t, d, "target")
	rec, cb := newOpenRecorder(t, d)
	im.TransitionTo(rec, gpu.StageComputeShader, gpu.AccessShaderWrite, gpu.LayoutGeneral)

	assertPanicsAssertion(t, func() {
		im.Transition(rec, gpu.StageComputeShader, gpu.StageComputeShader, gpu.AccessShaderWrite,
			gpu.AccessShaderWrite, gpu.LayoutGeneral, gpu.LayoutGeneral)
	}, "identity transition")
	assertPanicsAssertion(t, func() {
		im.TransitionTo(rec, gpu.StageComputeShader, gpu.AccessShaderRead, gpu.LayoutGeneral)
	}, "identity transition")

	// nothing was emitted by the failed calls
	assert.Len(t, cb.Commands(), 1)
	assert.Equal(t, gpu.LayoutGeneral, im.State().Layout)
}

func TestTransitionPreconditions(t *testing.T) {
	d := fakegpu.NewDevice()
	im := newFakeImage(t, d, "target")
	rec, _ := newOpenRecorder(t, d)
	im.TransitionTo(rec, gpu.StageComputeShader, gpu.AccessShaderWrite, gpu.LayoutGeneral)

	assertPanicsAssertion(t, func() {
		im.Transition(rec, gpu.StageComputeShader, gpu.StageTransfer, gpu.AccessShaderWrite, gpu.AccessTransferRead,
			gpu.LayoutColorAttachmentOptimal, gpu.LayoutTransferSrcOptimal)
	}, "tracked in General")

	assertPanicsAssertion(t, func() {
		im.Transition(rec, gpu.StageTransfer, gpu.StageTransfer, gpu.AccessShaderWrite, gpu.AccessTransferRead,
			gpu.LayoutGeneral, gpu.LayoutTransferSrcOptimal)
	}, "may be in use by ComputeShader")

	assertPanicsAssertion(t, func() {
		im.Transition(rec, gpu.StageComputeShader, gpu.StageTransfer, gpu.AccessShaderRead, gpu.AccessTransferRead,
			gpu.LayoutGeneral, gpu.LayoutTransferSrcOptimal)
	}, "may have ShaderWrite")

	// discarding is allowed from any tracked layout
	im.Transition(rec, gpu.StageComputeShader, gpu.StageTransfer, gpu.AccessShaderWrite, gpu.AccessTransferWrite,
		gpu.LayoutUndefined, gpu.LayoutTransferDstOptimal)
	assert.Equal(t, gpu.LayoutTransferDstOptimal, im.State().Layout)
}

func TestTransitionNeedsOpenScope(t *testing.T) {
	d := fakegpu.NewDevice()
	im := newFakeImage(t, d, "target")
	cb, _ := d.CreateCommandBuffer("cmd")
	rec := NewRecorder(cb)

	assert.Panics(t, func() {
		im.TransitionTo(rec, gpu.StageComputeShader, gpu.AccessShaderWrite, gpu.LayoutGeneral)
	})
	assert.Equal(t, gpu.LayoutUndefined, im.State().Layout)
}

func TestDiscardUsesTrackedScope(t *testing.T) {
	d := fakegpu.NewDevice()
	im := newFakeImage(t, d, "target")
	rec, cb := newOpenRecorder(t, d)

	im.TransitionTo(rec, gpu.StageTransfer, gpu.AccessTransferRead, gpu.LayoutTransferSrcOptimal)
	im.Discard(rec, gpu.StageComputeShader, gpu.AccessShaderWrite, gpu.LayoutGeneral)

	cmds := cb.Commands()
	require.Len(t, cmds, 2)
	b := cmds[1].ImageBarrier
	assert.Equal(t, gpu.StageTransfer, b.SrcStages)
	assert.Equal(t, gpu.Access(0), b.SrcAccess)
	assert.Equal(t, gpu.LayoutUndefined, b.OldLayout)
	assert.Equal(t, gpu.LayoutGeneral, b.NewLayout)
}

func TestPresentableFirstUse(t *testing.T) {
	d := fakegpu.NewDevice()
	sc := fakegpu.NewSwapchain(d, gpu.Extent2D{Width: 8, Height: 8}, 2)
	sw := NewPresentable(sc.Images()[0])
	assert.Equal(t, gpu.StageBottomOfPipe, sw.State().Stages)
	assert.Equal(t, gpu.LayoutUndefined, sw.State().Layout)

	rec, cb := newOpenRecorder(t, d)
	sw.Discard(rec, gpu.StageTransfer, gpu.AccessTransferWrite, gpu.LayoutTransferDstOptimal)
	b := cb.Commands()[0].ImageBarrier
	assert.True(t, b.SrcStages.ChainsAfter(AcquireWaitStages), "first barrier src %s", b.SrcStages)

	// a never used image waits for nothing
	assert.False(t, newFakeImage(t, d, "target").State().Stages.ChainsAfter(AcquireWaitStages))
}

func TestBufferTracking(t *testing.T) {
	d := fakegpu.NewDevice()
	buf, err := d.CreateBuffer(&gpu.BufferDescriptor{Label: "params", Size: 16,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageTransferDst})
	require.NoError(t, err)
	bf := NewBuffer(buf)
	rec, cb := newOpenRecorder(t, d)

	bf.TransitionTo(rec, gpu.StageTransfer, gpu.AccessTransferWrite)
	rec.UpdateBuffer(bf, 0, make([]byte, 16))
	bf.TransitionTo(rec, gpu.StageComputeShader, gpu.AccessUniformRead)
	assert.Equal(t, BufferState{Stages: gpu.StageComputeShader, Access: gpu.AccessUniformRead}, bf.State())

	cmds := cb.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, gpu.AccessTransferWrite, cmds[2].BufferBarrier.SrcAccess)
	assert.Equal(t, gpu.StageTransfer, cmds[2].BufferBarrier.SrcStages)

	assert.Panics(t, func() { rec.UpdateBuffer(bf, 0, make([]byte, 16)) })
	assertPanicsAssertion(t, func() {
		bf.Transition(rec, gpu.StageTransfer, gpu.StageTransfer, 0, gpu.AccessTransferWrite)
	}, "may be in use by ComputeShader")
}
