// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"
	"log/slog"

	"cogentcore.org/vkframe/gpu"
	vk "github.com/goki/vulkan"
)

// colorRange is the whole of a single-level color image.
var colorRange = vk.ImageSubresourceRange{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LevelCount: 1,
	LayerCount: 1,
}

var colorLayers = vk.ImageSubresourceLayers{
	AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	LayerCount: 1,
}

// Image implements [gpu.Image]. It owns its view and, unless it
// belongs to a swapchain, its image and memory.
type Image struct {
	label     string
	extent    gpu.Extent2D
	format    gpu.Format
	image     vk.Image
	view      vk.ImageView
	memory    vk.DeviceMemory
	swapchain bool

	// framebuffers wrapping the view, by render pass.
	framebuffers map[vk.RenderPass]vk.Framebuffer
}

func (im *Image) Label() string        { return im.label }
func (im *Image) Extent() gpu.Extent2D { return im.extent }
func (im *Image) Format() gpu.Format   { return im.format }
func (im *Image) Handle() vk.Image     { return im.image }
func (im *Image) View() vk.ImageView   { return im.view }

func (dv *Device) CreateImage(desc *gpu.ImageDescriptor) (gpu.Image, error) {
	var img vk.Image
	ret := vk.CreateImage(dv.Device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("creating image %s: %w", desc.Label, err)
	}
	im := &Image{label: desc.Label, extent: desc.Extent, format: desc.Format, image: img}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dv.Device, img, &reqs)
	reqs.Deref()
	im.memory, ret = dv.allocate(reqs)
	if err := NewError(ret); err != nil {
		dv.DestroyImage(im)
		return nil, fmt.Errorf("allocating image %s: %w", desc.Label, err)
	}
	vk.BindImageMemory(dv.Device, img, im.memory, 0)

	if err := dv.makeView(im); err != nil {
		dv.DestroyImage(im)
		return nil, err
	}
	return im, nil
}

// makeView makes the standard 2D view of im.
func (dv *Device) makeView(im *Image) error {
	var view vk.ImageView
	ret := vk.CreateImageView(dv.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    im.image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(im.format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorRange,
	}, nil, &view)
	if err := NewError(ret); err != nil {
		return fmt.Errorf("creating view of %s: %w", im.label, err)
	}
	im.view = view
	return nil
}

// DestroyImage destroys an image made by [Device.CreateImage].
// Swapchain images are owned by their [Swapchain].
func (dv *Device) DestroyImage(gi gpu.Image) {
	im := gi.(*Image)
	if im.swapchain {
		slog.Error("vkgpu: swapchain images cannot be destroyed directly", "image", im.label)
		return
	}
	dv.destroyImage(im)
}

func (dv *Device) destroyImage(im *Image) {
	for rp, fb := range im.framebuffers {
		vk.DestroyFramebuffer(dv.Device, fb, nil)
		delete(im.framebuffers, rp)
	}
	if im.view != nil {
		vk.DestroyImageView(dv.Device, im.view, nil)
		im.view = nil
	}
	if im.swapchain {
		return
	}
	if im.image != nil {
		vk.DestroyImage(dv.Device, im.image, nil)
		im.image = nil
	}
	if im.memory != vk.NullDeviceMemory {
		vk.FreeMemory(dv.Device, im.memory, nil)
		im.memory = vk.NullDeviceMemory
	}
}

// Buffer implements [gpu.Buffer] on device-local memory. Its contents
// are written with [gpu.CommandBuffer.UpdateBuffer].
type Buffer struct {
	label  string
	size   uint64
	buffer vk.Buffer
	memory vk.DeviceMemory
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return b.size }

func (dv *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(dv.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(desc.Usage),
		Size:        vk.DeviceSize(desc.Size),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("creating buffer %s: %w", desc.Label, err)
	}
	b := &Buffer{label: desc.Label, size: desc.Size, buffer: buffer}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dv.Device, buffer, &reqs)
	reqs.Deref()
	b.memory, ret = dv.allocate(reqs)
	if err := NewError(ret); err != nil {
		dv.DestroyBuffer(b)
		return nil, fmt.Errorf("allocating buffer %s: %w", desc.Label, err)
	}
	vk.BindBufferMemory(dv.Device, buffer, b.memory, 0)
	return b, nil
}

func (dv *Device) DestroyBuffer(gb gpu.Buffer) {
	b := gb.(*Buffer)
	if b.buffer != vk.NullBuffer {
		vk.DestroyBuffer(dv.Device, b.buffer, nil)
		b.buffer = vk.NullBuffer
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(dv.Device, b.memory, nil)
		b.memory = vk.NullDeviceMemory
	}
}

// allocate allocates device-local memory meeting reqs.
func (dv *Device) allocate(reqs vk.MemoryRequirements) (vk.DeviceMemory, vk.Result) {
	memType, ok := FindRequiredMemoryTypeFallback(dv.GPU.MemoryProps,
		vk.MemoryPropertyFlagBits(reqs.MemoryTypeBits), vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		return vk.NullDeviceMemory, vk.ErrorOutOfDeviceMemory
	}
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(dv.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &mem)
	return mem, ret
}

// FindRequiredMemoryType returns the first memory type allowed by
// deviceRequirements that has any of the hostRequirements properties.
func FindRequiredMemoryType(props vk.PhysicalDeviceMemoryProperties,
	deviceRequirements, hostRequirements vk.MemoryPropertyFlagBits) (uint32, bool) {

	for i := uint32(0); i < props.MemoryTypeCount && i < vk.MaxMemoryTypes; i++ {
		if deviceRequirements&(vk.MemoryPropertyFlagBits(1)<<i) != 0 {
			props.MemoryTypes[i].Deref()
			flags := props.MemoryTypes[i].PropertyFlags
			if flags&vk.MemoryPropertyFlags(hostRequirements) != 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// FindRequiredMemoryTypeFallback is like [FindRequiredMemoryType] but
// falls back to any allowed type.
func FindRequiredMemoryTypeFallback(props vk.PhysicalDeviceMemoryProperties,
	deviceRequirements, hostRequirements vk.MemoryPropertyFlagBits) (uint32, bool) {

	if i, ok := FindRequiredMemoryType(props, deviceRequirements, hostRequirements); ok {
		return i, true
	}
	for i := uint32(0); i < props.MemoryTypeCount && i < vk.MaxMemoryTypes; i++ {
		if deviceRequirements&(vk.MemoryPropertyFlagBits(1)<<i) != 0 {
			return i, true
		}
	}
	return 0, false
}
