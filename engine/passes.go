// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"time"

	"cogentcore.org/vkframe/frame"
	"cogentcore.org/vkframe/gpu"
)

// recordFrame records one frame, leaving swapchain image idx ready
// for presentation. The off-screen target goes
// undefined -> general -> color attachment -> transfer source,
// and the swapchain image undefined -> transfer destination -> present.
func (e *Engine) recordFrame(rec *frame.Recorder, idx uint32) {
	sw := e.swaps[idx]
	e.uploadParams(rec)
	e.computePass(rec)
	e.geometryPass(rec)
	e.blitPass(rec, sw)
	sw.TransitionTo(rec, gpu.StageBottomOfPipe, 0, gpu.LayoutPresentSrc)
}

// uploadParams writes this frame's [Params] into the params buffer
// and makes them visible to the compute shader.
func (e *Engine) uploadParams(rec *frame.Recorder) {
	p := NewParams(e.frame, time.Since(e.start), e.renderExtent)
	e.params.TransitionTo(rec, gpu.StageTransfer, gpu.AccessTransferWrite)
	rec.UpdateBuffer(e.params, 0, p.Bytes())
	e.params.TransitionTo(rec, gpu.StageComputeShader, gpu.AccessUniformRead)
}

// computePass fills the whole render target from the compute shader.
// The previous contents are discarded.
func (e *Engine) computePass(rec *frame.Recorder) {
	e.offscreen.Discard(rec, gpu.StageComputeShader, gpu.AccessShaderWrite, gpu.LayoutGeneral)
	rec.BindPipeline(e.compute)
	rec.Dispatch(groups(e.renderExtent.Width, Workgroup), groups(e.renderExtent.Height, Workgroup), 1)
}

// geometryPass draws on top of the compute output, which is loaded
// and not cleared.
func (e *Engine) geometryPass(rec *frame.Recorder) {
	e.offscreen.TransitionTo(rec, gpu.StageColorAttachmentOutput,
		gpu.AccessColorAttachmentRead|gpu.AccessColorAttachmentWrite, gpu.LayoutColorAttachmentOptimal)
	rec.BeginRendering(e.offscreen, gpu.LoadOpLoad)
	rec.BindPipeline(e.graphics)
	rec.Draw(3, 1, 0, 0)
	rec.EndRendering()
}

// blitPass copies the render target onto the swapchain image,
// scaling with nearest filtering when the sizes differ.
func (e *Engine) blitPass(rec *frame.Recorder, sw *frame.Image) {
	e.offscreen.TransitionTo(rec, gpu.StageTransfer, gpu.AccessTransferRead, gpu.LayoutTransferSrcOptimal)
	sw.Discard(rec, gpu.StageTransfer, gpu.AccessTransferWrite, gpu.LayoutTransferDstOptimal)
	rec.Blit(e.offscreen, gpu.FullRect(e.renderExtent), sw, gpu.FullRect(sw.GPU().Extent()), gpu.FilterNearest)
}

// groups returns the number of workgroups of size wg covering n.
func groups(n, wg uint32) uint32 {
	return (n + wg - 1) / wg
}
