// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fakegpu

import (
	"testing"
	"time"

	"cogentcore.org/vkframe/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTarget(t *testing.T, d *Device) gpu.Image {
	img, err := d.CreateImage(&gpu.ImageDescriptor{Label: "target", Extent: gpu.Extent2D{Width: 4, Height: 4},
		Format: gpu.FormatR8G8B8A8Unorm, Usage: gpu.ImageUsageStorage | gpu.ImageUsageTransferSrc})
	require.NoError(t, err)
	return img
}

func TestSubmitSignalsFence(t *testing.T) {
	d := NewDevice()
	d.Latency = time.Millisecond
	f, _ := d.CreateFence("fence", false)
	cb, _ := d.CreateCommandBuffer("cmd")
	img := newTarget(t, d)

	require.NoError(t, cb.Begin())
	cb.ImageBarrier(gpu.ImageBarrier{Image: img, SrcStages: gpu.StageTopOfPipe, DstStages: gpu.StageComputeShader,
		DstAccess: gpu.AccessShaderWrite, OldLayout: gpu.LayoutUndefined, NewLayout: gpu.LayoutGeneral})
	require.NoError(t, cb.End())
	require.NoError(t, d.Queue().Submit(&gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}, Fence: f}))

	require.NoError(t, d.WaitFence(f, time.Second))
	assert.Equal(t, gpu.LayoutGeneral, d.Layout(img))
	assert.Empty(t, d.ValidationErrors())

	sig := d.EventsOf(EventFenceSignaled, "fence")
	wait := d.EventsOf(EventWaitFence, "fence")
	require.Len(t, sig, 1)
	require.Len(t, wait, 1)
	assert.Less(t, sig[0].Seq, wait[0].Seq)
	assert.Equal(t, uint64(1), sig[0].Submission)
}

func TestWaitFenceTimeout(t *testing.T) {
	d := NewDevice()
	f, _ := d.CreateFence("never", false)
	err := d.WaitFence(f, 5*time.Millisecond)
	assert.ErrorIs(t, err, gpu.ErrTimeout)
}

func TestLayoutMismatch(t *testing.T) {
	d := NewDevice()
	cb, _ := d.CreateCommandBuffer("cmd")
	img := newTarget(t, d)

	cb.Begin()
	cb.ImageBarrier(gpu.ImageBarrier{Image: img, SrcStages: gpu.StageTopOfPipe, DstStages: gpu.StageTransfer,
		OldLayout: gpu.LayoutGeneral, NewLayout: gpu.LayoutTransferSrcOptimal})
	cb.End()
	d.Queue().Submit(&gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}})
	d.WaitIdle()

	errs := d.ValidationErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "from General but image is in Undefined")
}

func TestCommandBufferStates(t *testing.T) {
	d := NewDevice()
	cb, _ := d.CreateCommandBuffer("cmd")

	cb.Dispatch(1, 1, 1)
	cb.Begin()
	cb.Begin()
	cb.End()
	cb.End()
	d.Queue().Submit(&gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}})
	d.WaitIdle()
	d.Queue().Submit(&gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}})
	d.WaitIdle()

	errs := d.ValidationErrors()
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "while not recording")
	assert.Contains(t, errs[1], "begun while recording")
	assert.Contains(t, errs[2], "ended while not recording")
	assert.Contains(t, errs[3], "not executable")
}

func TestSemaphorePairing(t *testing.T) {
	d := NewDevice()
	sc := NewSwapchain(d, gpu.Extent2D{Width: 8, Height: 8}, 2)
	acq, _ := d.CreateSemaphore("acquired")
	done, _ := d.CreateSemaphore("done")

	// waiting on a semaphore nothing signals
	d.Queue().Submit(&gpu.SubmitInfo{Waits: []gpu.SemaphoreWait{{Semaphore: acq, Stages: gpu.StageTopOfPipe}}})
	require.Len(t, d.ValidationErrors(), 1)

	idx, err := sc.Acquire(acq)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), idx)
	d.Queue().Submit(&gpu.SubmitInfo{Waits: []gpu.SemaphoreWait{{Semaphore: acq, Stages: gpu.StageTopOfPipe}},
		Signals: []gpu.Semaphore{done}})
	// image never left Undefined
	sc.Present(idx, done)
	d.WaitIdle()

	errs := d.ValidationErrors()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[1], "present of swapchain-0 in Undefined")
}

func TestSwapchainFailures(t *testing.T) {
	d := NewDevice()
	sc := NewSwapchain(d, gpu.Extent2D{Width: 8, Height: 8}, 3)
	sc.FailAcquire(1, gpu.ErrOutOfDate)
	sc.FailAcquire(2, gpu.ErrSuboptimal)
	s1, _ := d.CreateSemaphore("s1")

	_, err := sc.Acquire(s1)
	assert.ErrorIs(t, err, gpu.ErrOutOfDate)
	assert.Equal(t, 0, d.Count(EventAcquire))

	idx, err := sc.Acquire(s1)
	assert.ErrorIs(t, err, gpu.ErrSuboptimal)
	assert.Equal(t, uint32(0), idx)
	assert.Equal(t, 1, d.Count(EventAcquire))
}

func TestDestroyWhilePending(t *testing.T) {
	d := NewDevice()
	d.Latency = 20 * time.Millisecond
	f, _ := d.CreateFence("fence", false)
	d.Queue().Submit(&gpu.SubmitInfo{Fence: f})
	d.DestroyFence(f)
	d.WaitIdle()

	errs := d.ValidationErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "destroyed while submission 1 is pending")
	assert.Empty(t, d.Live())
}
