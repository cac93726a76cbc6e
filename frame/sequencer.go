// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"fmt"

	"cogentcore.org/vkframe/gpu"
)

// Sequencer orders acquisition, submission and presentation of
// a frame on the single graphics queue:
//
//	Acquire  signals slot.Acquired
//	Submit   waits slot.Acquired, signals slot.RenderFinished and slot.InFlight
//	Present  waits slot.RenderFinished
type Sequencer struct {
	Queue     gpu.Queue
	Swapchain gpu.Swapchain
}

// AcquireWaitStages is where a frame submission waits for its
// presentable image to be released by the presentation engine.
const AcquireWaitStages = gpu.StageTopOfPipe

// NewSequencer returns a sequencer for the given queue and swapchain.
func NewSequencer(queue gpu.Queue, sc gpu.Swapchain) *Sequencer {
	return &Sequencer{Queue: queue, Swapchain: sc}
}

// Acquire obtains the index of the next presentable image, which may
// be written once sl.Acquired is signaled. A [gpu.ErrSuboptimal]
// error comes with a valid index; any other error means no image was
// acquired and sl.Acquired will not be signaled.
func (sq *Sequencer) Acquire(sl *Slot) (uint32, error) {
	idx, err := sq.Swapchain.Acquire(sl.Acquired)
	if err != nil {
		return idx, fmt.Errorf("acquiring image for slot %d: %w", sl.Index, err)
	}
	return idx, nil
}

// Submit submits the executable recording of sl. The work waits for
// sl.Acquired before it starts, signals sl.RenderFinished once the
// color output is written, and signals sl.InFlight on completion.
// A failed submission cannot be recovered and panics.
func (sq *Sequencer) Submit(sl *Slot) {
	cmd := sl.Recorder.take()
	err := sq.Queue.Submit(&gpu.SubmitInfo{
		Commands:     []gpu.CommandBuffer{cmd},
		Waits:        []gpu.SemaphoreWait{{Semaphore: sl.Acquired, Stages: AcquireWaitStages}},
		Signals:      []gpu.Semaphore{sl.RenderFinished},
		SignalStages: gpu.StageColorAttachmentOutput,
		Fence:        sl.InFlight,
	})
	gpu.IfPanic(err)
}

// Present queues image idx for display once sl.RenderFinished is signaled.
func (sq *Sequencer) Present(sl *Slot, idx uint32) error {
	if err := sq.Swapchain.Present(idx, sl.RenderFinished); err != nil {
		return fmt.Errorf("presenting image %d for slot %d: %w", idx, sl.Index, err)
	}
	return nil
}

// Rearm signals the fence of sl with an empty submission. It is used
// after the fence was reset but no work was submitted for the slot,
// so that the next wait on the slot returns.
func (sq *Sequencer) Rearm(sl *Slot) {
	gpu.IfPanic(sq.Queue.Submit(&gpu.SubmitInfo{Fence: sl.InFlight}))
}
