// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fakegpu

import (
	"time"

	"cogentcore.org/vkframe/gpu"
)

// Submission is the record of one [Queue.Submit] call.
type Submission struct {
	ID           uint64
	Commands     map[string][]Command
	Waits        []string
	WaitStages   []gpu.PipelineStages
	Signals      []string
	SignalStages gpu.PipelineStages
	Fence        string
}

// Queue is the fake graphics queue. Submissions run in order on
// an executor goroutine that lives while work is outstanding.
type Queue struct {
	dev       *Device
	next      uint64
	completed uint64
	running   bool
	work      []*batch
	history   []Submission
}

type batch struct {
	id    uint64
	cmds  []*CommandBuffer
	fence *Fence
}

func (q *Queue) Submit(info *gpu.SubmitInfo) error {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	q.next++
	id := q.next
	sub := Submission{ID: id, Commands: make(map[string][]Command), SignalStages: info.SignalStages}
	b := &batch{id: id}

	for _, w := range info.Waits {
		s := w.Semaphore.(*Semaphore)
		if !s.pending {
			d.invalidLocked("submission %d waits on %s which has no pending signal", id, s.label)
		}
		s.pending = false
		s.submission = id
		sub.Waits = append(sub.Waits, s.label)
		sub.WaitStages = append(sub.WaitStages, w.Stages)
	}

	for _, gcb := range info.Commands {
		cb := gcb.(*CommandBuffer)
		if cb.state != stateExecutable {
			d.invalidLocked("submission %d includes %s which is not executable", id, cb.label)
		}
		cb.state = statePending
		sub.Commands[cb.label] = append([]Command(nil), cb.cmds...)
		q.applyLocked(id, cb)
		b.cmds = append(b.cmds, cb)
	}

	for _, gs := range info.Signals {
		s := gs.(*Semaphore)
		if s.pending {
			d.invalidLocked("submission %d signals %s which already has a pending signal", id, s.label)
		}
		s.pending = true
		s.submission = id
		sub.Signals = append(sub.Signals, s.label)
	}

	if info.Fence != nil {
		f := info.Fence.(*Fence)
		if f.signaled {
			d.invalidLocked("submission %d uses fence %s which is already signaled", id, f.label)
		}
		f.submission = id
		b.fence = f
		sub.Fence = f.label
	}

	q.history = append(q.history, sub)
	d.logLocked(Event{Kind: EventSubmit, Object: sub.Fence, Submission: id})

	d.inflight.Add(1)
	q.work = append(q.work, b)
	if !q.running {
		q.running = true
		go q.run()
	}
	return nil
}

// applyLocked runs the image and buffer effects of cb in submission
// order, checking each use against the actual layouts.
func (q *Queue) applyLocked(id uint64, cb *CommandBuffer) {
	d := q.dev
	for _, c := range cb.cmds {
		switch c.Op {
		case OpImageBarrier:
			ib := c.ImageBarrier
			img := ib.Image.(*Image)
			img.submission = id
			if ib.OldLayout != gpu.LayoutUndefined && ib.OldLayout != img.layout {
				d.invalidLocked("barrier on %s from %s but image is in %s", img.label, ib.OldLayout, img.layout)
			}
			if ib.OldLayout == ib.NewLayout {
				d.invalidLocked("barrier on %s is an identity transition in %s", img.label, ib.NewLayout)
			}
			if ib.SrcStages == 0 || ib.DstStages == 0 {
				d.invalidLocked("barrier on %s has an empty stage mask", img.label)
			}
			img.layout = ib.NewLayout
		case OpBufferBarrier:
			c.BufferBarrier.Buffer.(*Buffer).submission = id
		case OpBindPipeline:
			c.Pipeline.(*Pipeline).submission = id
		case OpBeginRendering:
			img := c.Rendering.Target.(*Image)
			img.submission = id
			if img.layout != c.Rendering.Layout || img.layout != gpu.LayoutColorAttachmentOptimal {
				d.invalidLocked("rendering to %s in %s but image is in %s", img.label, c.Rendering.Layout, img.layout)
			}
			if !img.usageHas(gpu.ImageUsageColorAttachment) {
				d.invalidLocked("rendering to %s without color attachment usage", img.label)
			}
		case OpBlit:
			bl := c.Blit
			src, dst := bl.Src.(*Image), bl.Dst.(*Image)
			src.submission, dst.submission = id, id
			if src.layout != bl.SrcLayout {
				d.invalidLocked("blit source %s in %s but image is in %s", src.label, bl.SrcLayout, src.layout)
			}
			if dst.layout != bl.DstLayout {
				d.invalidLocked("blit destination %s in %s but image is in %s", dst.label, bl.DstLayout, dst.layout)
			}
			if !src.usageHas(gpu.ImageUsageTransferSrc) || !dst.usageHas(gpu.ImageUsageTransferDst) {
				d.invalidLocked("blit from %s to %s without transfer usage", src.label, dst.label)
			}
		case OpUpdateBuffer:
			b := c.Buffer.(*Buffer)
			b.submission = id
			if c.Offset+uint64(len(c.Data)) <= b.size {
				copy(b.data[c.Offset:], c.Data)
			}
		}
	}
}

// run executes batches in order until none are left.
func (q *Queue) run() {
	d := q.dev
	for {
		d.mu.Lock()
		if len(q.work) == 0 {
			q.running = false
			d.mu.Unlock()
			return
		}
		b := q.work[0]
		q.work = q.work[1:]
		lat := d.Latency
		d.mu.Unlock()

		if lat > 0 {
			time.Sleep(lat)
		}

		d.mu.Lock()
		q.completed = b.id
		for _, cb := range b.cmds {
			if cb.state == statePending {
				cb.state = stateInitial
			}
		}
		d.logLocked(Event{Kind: EventComplete, Submission: b.id})
		if b.fence != nil && !b.fence.signaled {
			b.fence.signaled = true
			close(b.fence.done)
			d.logLocked(Event{Kind: EventFenceSignaled, Object: b.fence.label, Submission: b.id})
		}
		d.mu.Unlock()
		d.inflight.Done()
	}
}
