// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine drives the per-frame loop of the renderer: it owns the
// off-screen render target and pipelines, and for every frame records a
// compute pass, a geometry pass and a blit to the swapchain on top of
// the synchronization provided by package frame.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cogentcore.org/vkframe/frame"
	"cogentcore.org/vkframe/gpu"
)

const (
	// TargetFormat is the pixel format of the off-screen render target,
	// as declared by the storage image of the compute shader.
	TargetFormat = gpu.FormatR16G16B16A16Sfloat

	// Workgroup is the edge length of the square local workgroup of
	// the compute shader.
	Workgroup = 16
)

// Context is everything an [Engine] needs from its environment.
// It is built by the application and passed to [New].
type Context struct {
	Device    gpu.Device
	Swapchain gpu.Swapchain

	// Shaders is the SPIR-V code of the pipelines. It may be nil
	// for devices that do not compile shaders.
	Shaders *ShaderSet

	// Config defaults to [Config.Defaults] if nil.
	Config *Config

	// Logger defaults to [slog.Default] if nil.
	Logger *slog.Logger
}

// Engine is the frame orchestrator.
type Engine struct {
	dev    gpu.Device
	sc     gpu.Swapchain
	shader *ShaderSet
	cfg    Config
	log    *slog.Logger

	renderExtent gpu.Extent2D
	offscreen    *frame.Image
	params       *frame.Buffer
	swaps        []*frame.Image
	compute      gpu.Pipeline
	graphics     gpu.Pipeline

	ring      *frame.Ring
	seq       *frame.Sequencer
	imm       *frame.Immediate
	deletions frame.DeletionQueue

	frame       uint64
	start       time.Time
	initialized bool
	terminated  bool
}

// New returns an engine for the given context. Call
// [Engine.Initialize] before the first frame.
func New(ctx *Context) *Engine {
	e := &Engine{dev: ctx.Device, sc: ctx.Swapchain, shader: ctx.Shaders, log: ctx.Logger}
	if ctx.Config != nil {
		e.cfg = *ctx.Config
	} else {
		e.cfg.Defaults()
	}
	if e.shader == nil {
		e.shader = &ShaderSet{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Frame returns the number of frames submitted so far.
func (e *Engine) Frame() uint64 { return e.frame }

// Terminated returns whether [Engine.Terminate] has completed.
func (e *Engine) Terminated() bool { return e.terminated }

// RenderExtent returns the size of the off-screen render target.
func (e *Engine) RenderExtent() gpu.Extent2D { return e.renderExtent }

// Initialize creates all GPU resources for a surface of the given size.
// On error, everything created so far is destroyed again.
func (e *Engine) Initialize(surfaceWidth, surfaceHeight int) (err error) {
	gpu.Assert(!e.initialized, "engine initialized twice")
	if surfaceWidth <= 0 || surfaceHeight <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", surfaceWidth, surfaceHeight)
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			e.deletions.Flush()
		}
	}()

	surface := gpu.Extent2D{Width: uint32(surfaceWidth), Height: uint32(surfaceHeight)}
	e.renderExtent = surface.Scale(e.cfg.RenderScale)

	img, err := e.dev.CreateImage(&gpu.ImageDescriptor{
		Label:  "offscreen",
		Extent: e.renderExtent,
		Format: TargetFormat,
		Usage:  gpu.ImageUsageStorage | gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferSrc,
	})
	if err != nil {
		return fmt.Errorf("creating render target: %w", err)
	}
	frame.Own(img, e.dev.DestroyImage).Defer(&e.deletions)
	e.offscreen = frame.NewImage(img)

	buf, err := e.dev.CreateBuffer(&gpu.BufferDescriptor{
		Label: "frame-params",
		Size:  ParamsSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageTransferDst,
	})
	if err != nil {
		return fmt.Errorf("creating params buffer: %w", err)
	}
	frame.Own(buf, e.dev.DestroyBuffer).Defer(&e.deletions)
	e.params = frame.NewBuffer(buf)

	if e.ring, err = frame.NewRing(e.dev); err != nil {
		return err
	}
	e.ring.Timeout = time.Duration(e.cfg.FenceTimeoutMS) * time.Millisecond
	e.deletions.Push(e.ring.Destroy)

	if e.imm, err = frame.NewImmediate(e.dev); err != nil {
		return err
	}
	e.deletions.Push(e.imm.Destroy)

	if err = e.createPipelines(); err != nil {
		return err
	}

	e.seq = frame.NewSequencer(e.dev.Queue(), e.sc)
	e.swaps = e.swaps[:0]
	for _, si := range e.sc.Images() {
		e.swaps = append(e.swaps, frame.NewPresentable(si))
	}

	e.start = time.Now()
	err = e.imm.Submit(func(rec *frame.Recorder) {
		e.uploadParams(rec)
	})
	if err != nil {
		return fmt.Errorf("uploading initial params: %w", err)
	}

	e.initialized = true
	e.log.Info("engine initialized", "surface", surface, "render", e.renderExtent,
		"format", TargetFormat, "swapchain", len(e.swaps), "framesInFlight", frame.FramesInFlight)
	return nil
}

func (e *Engine) createPipelines() error {
	cp, err := e.dev.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
		Label:          "gradient",
		Code:           e.shader.Compute,
		StorageImages:  []gpu.Image{e.offscreen.GPU()},
		UniformBuffers: []gpu.Buffer{e.params.GPU()},
	})
	if err != nil {
		return fmt.Errorf("creating compute pipeline: %w", err)
	}
	frame.Own(cp, e.dev.DestroyPipeline).Defer(&e.deletions)
	e.compute = cp

	gp, err := e.dev.CreateGraphicsPipeline(&gpu.GraphicsPipelineDescriptor{
		Label:        "triangle",
		VertexCode:   e.shader.Vertex,
		FragmentCode: e.shader.Fragment,
		ColorFormat:  TargetFormat,
		Blend:        true,
	})
	if err != nil {
		return fmt.Errorf("creating graphics pipeline: %w", err)
	}
	frame.Own(gp, e.dev.DestroyPipeline).Defer(&e.deletions)
	e.graphics = gp
	return nil
}

// AdvanceFrame renders and presents one frame.
//
// It waits for the frame slot to be free, acquires a presentable
// image, records and submits the frame and presents it. If no image
// could be acquired the frame is skipped and the error returned. A
// [gpu.ErrSuboptimal] acquire or present still completes the frame,
// and the error is returned afterwards. Failures are never retried.
func (e *Engine) AdvanceFrame() error {
	gpu.Assert(e.initialized, "advance frame before initialize")
	gpu.Assert(!e.terminated, "advance frame after terminate")

	sl := e.ring.Slot(e.frame)
	e.ring.WaitAndReset(sl)

	idx, acqErr := e.seq.Acquire(sl)
	if acqErr != nil && !errors.Is(acqErr, gpu.ErrSuboptimal) {
		e.seq.Rearm(sl)
		e.log.Warn("frame skipped", "frame", e.frame, "err", acqErr)
		return acqErr
	}

	rec := sl.Recorder
	rec.Begin()
	e.recordFrame(rec, idx)
	rec.End()
	e.seq.Submit(sl)
	presErr := e.seq.Present(sl, idx)

	e.log.Debug("frame", "frame", e.frame, "slot", sl.Index, "image", idx)
	e.frame++
	return errors.Join(acqErr, presErr)
}

// Retire arranges for fn to run once the frames submitted so far
// no longer use the GPU, without waiting for the device to be idle.
func (e *Engine) Retire(fn func()) {
	gpu.Assert(e.initialized && !e.terminated, "retire outside the engine lifetime")
	e.ring.Slot(e.frame + frame.FramesInFlight - 1).Defer(fn)
}

// Terminate waits for the GPU to finish all work and destroys every
// resource, in reverse order of creation.
func (e *Engine) Terminate() {
	gpu.Assert(e.initialized, "terminate before initialize")
	gpu.Assert(!e.terminated, "engine terminated twice")
	gpu.IfPanic(e.dev.WaitIdle())
	e.deletions.Flush()
	e.terminated = true
	e.log.Info("engine terminated", "frames", e.frame)
}
