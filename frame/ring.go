// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"errors"
	"fmt"
	"time"

	"cogentcore.org/vkframe/gpu"
)

// FramesInFlight is the number of frames the CPU may record ahead of
// the GPU.
const FramesInFlight = 2

// Slot holds the per-frame objects reused every [FramesInFlight] frames.
type Slot struct {

	// Index is the position of the slot in the ring.
	Index int

	// Recorder records the commands of the frame.
	Recorder *Recorder

	// InFlight is signaled when the last submission of the slot has
	// completed. It is created signaled.
	InFlight gpu.Fence

	// Acquired is signaled when the presentable image is ready to be written.
	Acquired gpu.Semaphore

	// RenderFinished is signaled when the frame's rendering is done.
	RenderFinished gpu.Semaphore

	// deletions run after the slot's fence is next observed signaled.
	deletions DeletionQueue
}

// Defer registers fn to run once the work currently recorded or
// submitted for this slot has completed on the GPU.
func (sl *Slot) Defer(fn func()) {
	sl.deletions.Push(fn)
}

// Ring is the fixed ring of frame slots.
type Ring struct {
	dev   gpu.Device
	slots [FramesInFlight]Slot

	// Timeout bounds each fence wait. A GPU that does not finish a
	// frame in time is a fatal error. Zero waits forever.
	Timeout time.Duration
}

// NewRing creates the objects of all slots on dev.
func NewRing(dev gpu.Device) (*Ring, error) {
	rg := &Ring{dev: dev}
	var err error
	defer func() {
		if err != nil {
			rg.Destroy()
		}
	}()
	for i := range rg.slots {
		sl := &rg.slots[i]
		sl.Index = i
		var cmd gpu.CommandBuffer
		if cmd, err = dev.CreateCommandBuffer(fmt.Sprintf("frame-%d", i)); err != nil {
			return nil, fmt.Errorf("creating command buffer for slot %d: %w", i, err)
		}
		sl.Recorder = NewRecorder(cmd)
		if sl.InFlight, err = dev.CreateFence(fmt.Sprintf("in-flight-%d", i), true); err != nil {
			return nil, fmt.Errorf("creating fence for slot %d: %w", i, err)
		}
		if sl.Acquired, err = dev.CreateSemaphore(fmt.Sprintf("acquired-%d", i)); err != nil {
			return nil, fmt.Errorf("creating semaphore for slot %d: %w", i, err)
		}
		if sl.RenderFinished, err = dev.CreateSemaphore(fmt.Sprintf("render-finished-%d", i)); err != nil {
			return nil, fmt.Errorf("creating semaphore for slot %d: %w", i, err)
		}
	}
	return rg, nil
}

// Slot returns the slot used by frame number counter.
func (rg *Ring) Slot(counter uint64) *Slot {
	return &rg.slots[counter%FramesInFlight]
}

// WaitAndReset blocks until the previous submission of sl has
// completed, resets its fence, and runs its deferred deletions.
// This is the only point where the CPU waits for the GPU.
func (rg *Ring) WaitAndReset(sl *Slot) {
	err := rg.dev.WaitFence(sl.InFlight, rg.Timeout)
	if errors.Is(err, gpu.ErrTimeout) {
		gpu.Assert(false, "slot %d: GPU did not finish within %v", sl.Index, rg.Timeout)
	}
	gpu.IfPanic(err)
	gpu.IfPanic(rg.dev.ResetFence(sl.InFlight))
	sl.deletions.Flush()
}

// Destroy destroys all slot objects, running any pending deletions.
// The device must be idle.
func (rg *Ring) Destroy() {
	for i := range rg.slots {
		sl := &rg.slots[i]
		sl.deletions.Flush()
		if sl.Recorder != nil {
			rg.dev.DestroyCommandBuffer(sl.Recorder.cmd)
			sl.Recorder = nil
		}
		if sl.InFlight != nil {
			rg.dev.DestroyFence(sl.InFlight)
			sl.InFlight = nil
		}
		if sl.Acquired != nil {
			rg.dev.DestroySemaphore(sl.Acquired)
			sl.Acquired = nil
		}
		if sl.RenderFinished != nil {
			rg.dev.DestroySemaphore(sl.RenderFinished)
			sl.RenderFinished = nil
		}
	}
}
