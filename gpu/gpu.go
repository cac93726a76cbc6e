// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpu defines the backend-neutral handles, flags and
// interfaces used by the frame synchronization core.
// The Vulkan backend lives in gpu/vkgpu and an instrumented
// in-process backend for tests lives in gpu/fakegpu.
// Backends type-assert handles back to their own concrete types.
package gpu

import (
	"fmt"
	"time"
)

// Extent2D is the size of an image in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Scale returns the extent scaled by s, with each dimension at least 1.
func (e Extent2D) Scale(s float32) Extent2D {
	w := uint32(float32(e.Width) * s)
	h := uint32(float32(e.Height) * s)
	return Extent2D{Width: max(w, 1), Height: max(h, 1)}
}

// Rect is an image region: an offset and an extent.
type Rect struct {
	X, Y   int32
	Extent Extent2D
}

// FullRect returns the region covering all of an image with extent e.
func FullRect(e Extent2D) Rect {
	return Rect{Extent: e}
}

// Handle is implemented by every backend object.
type Handle interface {
	// Label is a debug name for the object.
	Label() string
}

// Fence is a CPU-waitable signal set by the GPU on completion of a submission.
type Fence interface{ Handle }

// Semaphore is a GPU-to-GPU signal.
type Semaphore interface{ Handle }

// Image is a GPU image with a single mip level and array layer.
type Image interface {
	Handle
	Extent() Extent2D
	Format() Format
}

// Buffer is a linear GPU buffer.
type Buffer interface {
	Handle
	Size() uint64
}

// Pipeline is a compiled compute or graphics pipeline, together with
// the resource bindings it was built against.
type Pipeline interface {
	Handle
	BindPoint() BindPoint
}

// ImageDescriptor describes an image to create.
type ImageDescriptor struct {
	Label  string
	Extent Extent2D
	Format Format
	Usage  ImageUsage
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// ComputePipelineDescriptor describes a compute pipeline.
// Code is SPIR-V; the shader sees StorageImages at bindings
// 0..n-1 and UniformBuffers after them, all in set 0.
type ComputePipelineDescriptor struct {
	Label          string
	Code           []byte
	StorageImages  []Image
	UniformBuffers []Buffer
}

// GraphicsPipelineDescriptor describes a graphics pipeline drawing
// a vertex-less triangle list into a single color attachment.
type GraphicsPipelineDescriptor struct {
	Label        string
	VertexCode   []byte
	FragmentCode []byte
	ColorFormat  Format
	Blend        bool
}

// ImageBarrier is an image memory barrier with a layout transition.
type ImageBarrier struct {
	Image     Image
	SrcStages PipelineStages
	DstStages PipelineStages
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
}

func (b ImageBarrier) String() string {
	return fmt.Sprintf("%s: %s -> %s [%s -> %s] [%s -> %s]", b.Image.Label(), b.OldLayout, b.NewLayout,
		b.SrcStages, b.DstStages, b.SrcAccess, b.DstAccess)
}

// BufferBarrier is a buffer memory barrier over the whole buffer.
type BufferBarrier struct {
	Buffer    Buffer
	SrcStages PipelineStages
	DstStages PipelineStages
	SrcAccess Access
	DstAccess Access
}

// ImageBlit copies a region between two images, scaling as needed.
type ImageBlit struct {
	Src       Image
	SrcLayout ImageLayout
	SrcRegion Rect
	Dst       Image
	DstLayout ImageLayout
	DstRegion Rect
	Filter    Filter
}

// RenderingInfo opens a rendering scope on a single color attachment.
type RenderingInfo struct {
	Target Image
	Layout ImageLayout
	LoadOp LoadOp
	Area   Rect

	// ClearColor is used with LoadOpClear.
	ClearColor [4]float32
}

// CommandBuffer records GPU commands. It is used by one goroutine at a time.
type CommandBuffer interface {
	Handle

	// Reset discards all recorded commands.
	Reset() error

	// Begin starts recording for a single submission.
	Begin() error

	// End finishes recording.
	End() error

	ImageBarrier(b ImageBarrier)
	BufferBarrier(b BufferBarrier)
	BindPipeline(p Pipeline)
	Dispatch(x, y, z uint32)
	BeginRendering(info RenderingInfo)
	EndRendering()
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	BlitImage(blit ImageBlit)
	UpdateBuffer(buf Buffer, offset uint64, data []byte)
}

// SemaphoreWait is a semaphore wait in a submission, blocking the given
// stages of the submitted work until the semaphore is signaled.
type SemaphoreWait struct {
	Semaphore Semaphore
	Stages    PipelineStages
}

// SubmitInfo is a single batch submitted to a [Queue].
type SubmitInfo struct {
	Commands []CommandBuffer
	Waits    []SemaphoreWait
	Signals  []Semaphore

	// SignalStages is the stage after which Signals are signaled.
	// Backends that only support whole-batch signaling ignore it.
	SignalStages PipelineStages

	// Fence is signaled when the whole batch completes. May be nil.
	Fence Fence
}

// Queue is the single graphics queue.
type Queue interface {
	Submit(info *SubmitInfo) error
}

// Device creates and destroys GPU objects and owns the queue.
type Device interface {
	// Queue returns the graphics queue, which also presents.
	Queue() Queue

	CreateFence(label string, signaled bool) (Fence, error)
	DestroyFence(f Fence)

	// WaitFence blocks until f is signaled. A timeout <= 0 waits forever.
	// Returns [ErrTimeout] if the timeout expires first.
	WaitFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error

	CreateSemaphore(label string) (Semaphore, error)
	DestroySemaphore(s Semaphore)

	CreateCommandBuffer(label string) (CommandBuffer, error)
	DestroyCommandBuffer(cb CommandBuffer)

	CreateImage(desc *ImageDescriptor) (Image, error)
	DestroyImage(img Image)

	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	DestroyBuffer(buf Buffer)

	CreateComputePipeline(desc *ComputePipelineDescriptor) (Pipeline, error)
	CreateGraphicsPipeline(desc *GraphicsPipelineDescriptor) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error
}

// Swapchain is the set of presentable images of a window surface.
type Swapchain interface {
	Extent() Extent2D
	Format() Format
	Images() []Image

	// Acquire returns the index of the next presentable image and
	// arranges for signal to be signaled once it may be written.
	// [ErrSuboptimal] is returned together with a valid index.
	Acquire(signal Semaphore) (uint32, error)

	// Present queues image index for display once wait is signaled.
	Present(index uint32, wait Semaphore) error
}
