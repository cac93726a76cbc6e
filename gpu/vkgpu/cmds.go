// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"
	"unsafe"

	"cogentcore.org/vkframe/gpu"
	vk "github.com/goki/vulkan"
)

// CommandBuffer implements [gpu.CommandBuffer] on a primary command
// buffer from the device pool. Rendering scopes are render passes
// with a single color attachment, taken from the device cache.
type CommandBuffer struct {
	dev   *Device
	label string
	cmd   vk.CommandBuffer
}

func (cb *CommandBuffer) Label() string { return cb.label }

func (dv *Device) CreateCommandBuffer(label string) (gpu.CommandBuffer, error) {
	bufs := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(dv.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        dv.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, bufs)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("allocating command buffer %s: %w", label, err)
	}
	return &CommandBuffer{dev: dv, label: label, cmd: bufs[0]}, nil
}

func (dv *Device) DestroyCommandBuffer(gcb gpu.CommandBuffer) {
	cb := gcb.(*CommandBuffer)
	vk.FreeCommandBuffers(dv.Device, dv.pool, 1, []vk.CommandBuffer{cb.cmd})
	cb.cmd = nil
}

func (cb *CommandBuffer) Reset() error {
	return NewError(vk.ResetCommandBuffer(cb.cmd, 0))
}

func (cb *CommandBuffer) Begin() error {
	return NewError(vk.BeginCommandBuffer(cb.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
}

func (cb *CommandBuffer) End() error {
	return NewError(vk.EndCommandBuffer(cb.cmd))
}

func (cb *CommandBuffer) ImageBarrier(b gpu.ImageBarrier) {
	vk.CmdPipelineBarrier(cb.cmd, vk.PipelineStageFlags(b.SrcStages), vk.PipelineStageFlags(b.DstStages),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.Image.(*Image).image,
			SubresourceRange:    colorRange,
		}})
}

func (cb *CommandBuffer) BufferBarrier(b gpu.BufferBarrier) {
	vk.CmdPipelineBarrier(cb.cmd, vk.PipelineStageFlags(b.SrcStages), vk.PipelineStageFlags(b.DstStages),
		0, 0, nil, 1, []vk.BufferMemoryBarrier{{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              b.Buffer.(*Buffer).buffer,
			Size:                vk.DeviceSize(vk.WholeSize),
		}}, 0, nil)
}

func (cb *CommandBuffer) BindPipeline(gp gpu.Pipeline) {
	p := gp.(*Pipeline)
	bp := vkBindPoint(p.bind)
	vk.CmdBindPipeline(cb.cmd, bp, p.pipeline)
	if p.set != nil {
		vk.CmdBindDescriptorSets(cb.cmd, bp, p.layout, 0, 1, []vk.DescriptorSet{p.set}, 0, nil)
	}
}

func (cb *CommandBuffer) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(cb.cmd, x, y, z)
}

// BeginRendering begins a render pass on info.Target, which must be
// in the color attachment layout. The viewport and scissor are set
// to info.Area.
func (cb *CommandBuffer) BeginRendering(info gpu.RenderingInfo) {
	im := info.Target.(*Image)
	rp, err := cb.dev.renderPass(im.format, info.LoadOp)
	if err == nil {
		var fb vk.Framebuffer
		if fb, err = cb.dev.framebuffer(im, rp); err == nil {
			cb.beginRenderPass(rp, fb, info)
			return
		}
	}
	panic(fmt.Errorf("beginning rendering on %s: %w", im.label, err))
}

func (cb *CommandBuffer) beginRenderPass(rp vk.RenderPass, fb vk.Framebuffer, info gpu.RenderingInfo) {
	area := rect2D(info.Area)
	bi := &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea:  area,
	}
	if info.LoadOp == gpu.LoadOpClear {
		bi.ClearValueCount = 1
		bi.PClearValues = []vk.ClearValue{vk.NewClearValue(info.ClearColor[:])}
	}
	vk.CmdBeginRenderPass(cb.cmd, bi, vk.SubpassContentsInline)
	vk.CmdSetViewport(cb.cmd, 0, 1, []vk.Viewport{{
		X:        float32(area.Offset.X),
		Y:        float32(area.Offset.Y),
		Width:    float32(area.Extent.Width),
		Height:   float32(area.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(cb.cmd, 0, 1, []vk.Rect2D{area})
}

func (cb *CommandBuffer) EndRendering() {
	vk.CmdEndRenderPass(cb.cmd)
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb.cmd, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (cb *CommandBuffer) BlitImage(b gpu.ImageBlit) {
	vk.CmdBlitImage(cb.cmd,
		b.Src.(*Image).image, vk.ImageLayout(b.SrcLayout),
		b.Dst.(*Image).image, vk.ImageLayout(b.DstLayout),
		1, []vk.ImageBlit{{
			SrcSubresource: colorLayers,
			SrcOffsets:     blitOffsets(b.SrcRegion),
			DstSubresource: colorLayers,
			DstOffsets:     blitOffsets(b.DstRegion),
		}}, vk.Filter(b.Filter))
}

// UpdateBuffer writes data inline in the command stream. The offset
// and length must be multiples of 4, and data at most 64 KiB.
func (cb *CommandBuffer) UpdateBuffer(gb gpu.Buffer, offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdUpdateBuffer(cb.cmd, gb.(*Buffer).buffer, vk.DeviceSize(offset), vk.DeviceSize(len(data)),
		unsafe.Pointer(&data[0]))
}

// blitOffsets returns the corner offsets of r for a blit.
func blitOffsets(r gpu.Rect) [2]vk.Offset3D {
	return [2]vk.Offset3D{
		{X: r.X, Y: r.Y, Z: 0},
		{X: r.X + int32(r.Extent.Width), Y: r.Y + int32(r.Extent.Height), Z: 1},
	}
}

func rect2D(r gpu.Rect) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
	}
}

func vkBindPoint(bp gpu.BindPoint) vk.PipelineBindPoint {
	if bp == gpu.BindCompute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}
