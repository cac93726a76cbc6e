// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"fmt"

	"cogentcore.org/vkframe/gpu"
)

// RecorderStates are the states of a [Recorder].
type RecorderStates int

const (
	// RecorderInitial is a recorder with nothing to submit.
	RecorderInitial RecorderStates = iota

	// RecorderRecording is an open recording scope.
	RecorderRecording

	// RecorderExecutable is a closed scope that may be submitted once.
	RecorderExecutable

	// RecorderPending is a scope handed to the queue.
	RecorderPending
)

func (s RecorderStates) String() string {
	switch s {
	case RecorderInitial:
		return "initial"
	case RecorderRecording:
		return "recording"
	case RecorderExecutable:
		return "executable"
	case RecorderPending:
		return "pending"
	}
	return fmt.Sprintf("RecorderStates(%d)", int(s))
}

// Recorder wraps a command buffer with an explicit begin/end scope.
// Commands can only be appended while the scope is open, and the
// closed scope can be submitted exactly once. Barriers can only be
// appended through [Image] and [Buffer].
type Recorder struct {
	cmd   gpu.CommandBuffer
	state RecorderStates
}

// NewRecorder returns a recorder for the given command buffer.
func NewRecorder(cmd gpu.CommandBuffer) *Recorder {
	return &Recorder{cmd: cmd}
}

// State returns the current state.
func (r *Recorder) State() RecorderStates { return r.state }

// CommandBuffer returns the underlying command buffer.
func (r *Recorder) CommandBuffer() gpu.CommandBuffer { return r.cmd }

// Begin resets the command buffer and opens a new recording scope.
// It is a fatal error to begin while a scope is already open.
func (r *Recorder) Begin() {
	gpu.Assert(r.state != RecorderRecording, "recorder %s: begin while a recording scope is open", r.cmd.Label())
	gpu.IfPanic(r.cmd.Reset())
	gpu.IfPanic(r.cmd.Begin())
	r.state = RecorderRecording
}

// End closes the recording scope, making it submittable once.
func (r *Recorder) End() {
	r.assertOpen("end")
	gpu.IfPanic(r.cmd.End())
	r.state = RecorderExecutable
}

// take hands the executable command buffer to a submission.
func (r *Recorder) take() gpu.CommandBuffer {
	gpu.Assert(r.state == RecorderExecutable, "recorder %s: submit in state %s", r.cmd.Label(), r.state)
	r.state = RecorderPending
	return r.cmd
}

func (r *Recorder) assertOpen(op string) {
	gpu.Assert(r.state == RecorderRecording, "recorder %s: %s outside a recording scope (state %s)", r.cmd.Label(), op, r.state)
}

// BindPipeline binds a compute or graphics pipeline.
func (r *Recorder) BindPipeline(p gpu.Pipeline) {
	r.assertOpen("bind pipeline")
	r.cmd.BindPipeline(p)
}

// Dispatch records a compute dispatch.
func (r *Recorder) Dispatch(x, y, z uint32) {
	r.assertOpen("dispatch")
	r.cmd.Dispatch(x, y, z)
}

// BeginRendering opens a rendering scope on target, which must have
// been transitioned to [gpu.LayoutColorAttachmentOptimal].
func (r *Recorder) BeginRendering(target *Image, load gpu.LoadOp) {
	r.assertOpen("begin rendering")
	gpu.Assert(target.state.Layout == gpu.LayoutColorAttachmentOptimal,
		"rendering to %s in layout %s", target.Label(), target.state.Layout)
	r.cmd.BeginRendering(gpu.RenderingInfo{
		Target: target.img,
		Layout: gpu.LayoutColorAttachmentOptimal,
		LoadOp: load,
		Area:   gpu.FullRect(target.img.Extent()),
	})
}

// EndRendering closes the rendering scope.
func (r *Recorder) EndRendering() {
	r.assertOpen("end rendering")
	r.cmd.EndRendering()
}

// Draw records a non-indexed draw.
func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.assertOpen("draw")
	r.cmd.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// Blit copies srcRegion of src into dstRegion of dst, scaling with the
// given filter. src and dst must be in their transfer layouts.
func (r *Recorder) Blit(src *Image, srcRegion gpu.Rect, dst *Image, dstRegion gpu.Rect, filter gpu.Filter) {
	r.assertOpen("blit")
	gpu.Assert(src.state.Layout == gpu.LayoutTransferSrcOptimal, "blit source %s in layout %s", src.Label(), src.state.Layout)
	gpu.Assert(dst.state.Layout == gpu.LayoutTransferDstOptimal, "blit destination %s in layout %s", dst.Label(), dst.state.Layout)
	r.cmd.BlitImage(gpu.ImageBlit{
		Src:       src.img,
		SrcLayout: gpu.LayoutTransferSrcOptimal,
		SrcRegion: srcRegion,
		Dst:       dst.img,
		DstLayout: gpu.LayoutTransferDstOptimal,
		DstRegion: dstRegion,
		Filter:    filter,
	})
}

// UpdateBuffer writes data into buf at offset from the command stream.
// buf must have been transitioned for transfer writes.
func (r *Recorder) UpdateBuffer(buf *Buffer, offset uint64, data []byte) {
	r.assertOpen("update buffer")
	gpu.Assert(buf.state.Stages.Has(gpu.StageTransfer) && buf.state.Access.Has(gpu.AccessTransferWrite),
		"update of %s in state %s", buf.Label(), buf.state)
	r.cmd.UpdateBuffer(buf.buf, offset, data)
}

func (r *Recorder) imageBarrier(b gpu.ImageBarrier) {
	r.assertOpen("image barrier")
	r.cmd.ImageBarrier(b)
}

func (r *Recorder) bufferBarrier(b gpu.BufferBarrier) {
	r.assertOpen("buffer barrier")
	r.cmd.BufferBarrier(b)
}
