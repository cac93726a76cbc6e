// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"fmt"

	"cogentcore.org/vkframe/gpu"
)

// ImageState is the synchronization state of an image established by
// its most recent barrier: the stages and accesses that may touch it
// since, and its layout.
type ImageState struct {
	Stages gpu.PipelineStages
	Access gpu.Access
	Layout gpu.ImageLayout
}

func (s ImageState) String() string {
	return fmt.Sprintf("{%s %s %s}", s.Layout, s.Stages, s.Access)
}

// BufferState is the synchronization state of a buffer. Buffers have
// no layout.
type BufferState struct {
	Stages gpu.PipelineStages
	Access gpu.Access
}

func (s BufferState) String() string {
	return fmt.Sprintf("{%s %s}", s.Stages, s.Access)
}

// initialStages is the source scope of a resource that was never used.
const initialStages = gpu.StageTopOfPipe

// Image tracks the state of a GPU image. All barriers on the image
// must be emitted through it, so that its state always equals what
// the last barrier established.
type Image struct {
	img   gpu.Image
	state ImageState
}

// NewImage starts tracking img, which must not have been used yet.
func NewImage(img gpu.Image) *Image {
	return &Image{img: img, state: ImageState{Stages: initialStages, Layout: gpu.LayoutUndefined}}
}

// NewPresentable starts tracking a swapchain image. The presentation
// engine may still read it until the acquire wait of the first frame
// that uses it, so its outstanding scope starts as BottomOfPipe,
// which chains the first barrier after [AcquireWaitStages].
func NewPresentable(img gpu.Image) *Image {
	return &Image{img: img, state: ImageState{Stages: gpu.StageBottomOfPipe, Layout: gpu.LayoutUndefined}}
}

// GPU returns the tracked image.
func (im *Image) GPU() gpu.Image { return im.img }

// Label returns the image label.
func (im *Image) Label() string { return im.img.Label() }

// State returns the tracked state.
func (im *Image) State() ImageState { return im.state }

// Transition emits one image barrier into the open recording scope of
// rec and records {dstStages, dstAccess, newLayout} as the new state.
//
// The caller supplies the full barrier. srcStages and srcAccess must
// cover the tracked stages and writes, and oldLayout must be either
// [gpu.LayoutUndefined], discarding the contents, or the tracked
// layout. A transition to the same layout is not allowed.
func (im *Image) Transition(rec *Recorder, srcStages, dstStages gpu.PipelineStages,
	srcAccess, dstAccess gpu.Access, oldLayout, newLayout gpu.ImageLayout) {

	gpu.Assert(oldLayout != newLayout, "identity transition of %s in %s", im.Label(), newLayout)
	gpu.Assert(oldLayout == gpu.LayoutUndefined || oldLayout == im.state.Layout,
		"transition of %s from %s but it is tracked in %s", im.Label(), oldLayout, im.state.Layout)
	gpu.Assert(srcStages != 0 && dstStages != 0, "transition of %s with an empty stage mask", im.Label())
	gpu.Assert(srcStages.Covers(im.state.Stages),
		"transition of %s waits for %s but it may be in use by %s", im.Label(), srcStages, im.state.Stages)
	gpu.Assert(srcAccess.Covers(im.state.Access),
		"transition of %s makes %s available but it may have %s", im.Label(), srcAccess, im.state.Access.Writes())

	rec.imageBarrier(gpu.ImageBarrier{
		Image:     im.img,
		SrcStages: srcStages,
		DstStages: dstStages,
		SrcAccess: srcAccess,
		DstAccess: dstAccess,
		OldLayout: oldLayout,
		NewLayout: newLayout,
	})
	im.state = ImageState{Stages: dstStages, Access: dstAccess, Layout: newLayout}
}

// TransitionTo transitions the image to newLayout for use by dstStages
// with dstAccess, taking the source scope and old layout from the
// tracked state.
func (im *Image) TransitionTo(rec *Recorder, dstStages gpu.PipelineStages, dstAccess gpu.Access, newLayout gpu.ImageLayout) {
	im.Transition(rec, im.state.Stages, dstStages, im.state.Access.Writes(), dstAccess, im.state.Layout, newLayout)
}

// Discard is like [Image.TransitionTo] but starts from
// [gpu.LayoutUndefined], so the current contents need not be kept.
func (im *Image) Discard(rec *Recorder, dstStages gpu.PipelineStages, dstAccess gpu.Access, newLayout gpu.ImageLayout) {
	im.Transition(rec, im.state.Stages, dstStages, im.state.Access.Writes(), dstAccess, gpu.LayoutUndefined, newLayout)
}

// Buffer tracks the access state of a GPU buffer.
type Buffer struct {
	buf   gpu.Buffer
	state BufferState
}

// NewBuffer starts tracking buf, which must not have been used yet.
func NewBuffer(buf gpu.Buffer) *Buffer {
	return &Buffer{buf: buf, state: BufferState{Stages: initialStages}}
}

// GPU returns the tracked buffer.
func (bf *Buffer) GPU() gpu.Buffer { return bf.buf }

// Label returns the buffer label.
func (bf *Buffer) Label() string { return bf.buf.Label() }

// State returns the tracked state.
func (bf *Buffer) State() BufferState { return bf.state }

// Transition emits one buffer barrier into the open recording scope of
// rec and records {dstStages, dstAccess} as the new state. The same
// source scope rules as [Image.Transition] apply.
func (bf *Buffer) Transition(rec *Recorder, srcStages, dstStages gpu.PipelineStages, srcAccess, dstAccess gpu.Access) {
	gpu.Assert(srcStages != 0 && dstStages != 0, "transition of %s with an empty stage mask", bf.Label())
	gpu.Assert(srcStages.Covers(bf.state.Stages),
		"transition of %s waits for %s but it may be in use by %s", bf.Label(), srcStages, bf.state.Stages)
	gpu.Assert(srcAccess.Covers(bf.state.Access),
		"transition of %s makes %s available but it may have %s", bf.Label(), srcAccess, bf.state.Access.Writes())

	rec.bufferBarrier(gpu.BufferBarrier{
		Buffer:    bf.buf,
		SrcStages: srcStages,
		DstStages: dstStages,
		SrcAccess: srcAccess,
		DstAccess: dstAccess,
	})
	bf.state = BufferState{Stages: dstStages, Access: dstAccess}
}

// TransitionTo transitions the buffer for use by dstStages with
// dstAccess, taking the source scope from the tracked state.
func (bf *Buffer) TransitionTo(rec *Recorder, dstStages gpu.PipelineStages, dstAccess gpu.Access) {
	bf.Transition(rec, bf.state.Stages, dstStages, bf.state.Access.Writes(), dstAccess)
}
