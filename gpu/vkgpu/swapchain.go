// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cogentcore.org/vkframe/gpu"
	vk "github.com/goki/vulkan"
)

// PresentMode selects how presented images are queued for display.
type PresentMode int32

const (
	// PresentFIFO waits for vertical blank and never tears.
	// It is always supported.
	PresentFIFO PresentMode = PresentMode(vk.PresentModeFifo)

	// PresentMailbox replaces the queued image with newer ones.
	PresentMailbox PresentMode = PresentMode(vk.PresentModeMailbox)

	// PresentImmediate does not wait and may tear.
	PresentImmediate PresentMode = PresentMode(vk.PresentModeImmediate)
)

func (m PresentMode) String() string {
	switch m {
	case PresentFIFO:
		return "fifo"
	case PresentMailbox:
		return "mailbox"
	case PresentImmediate:
		return "immediate"
	}
	return fmt.Sprintf("PresentMode(%d)", int32(m))
}

// ParsePresentMode returns the present mode named s, ignoring case.
func ParsePresentMode(s string) (PresentMode, error) {
	switch strings.ToLower(s) {
	case "fifo", "vsync":
		return PresentFIFO, nil
	case "mailbox":
		return PresentMailbox, nil
	case "immediate":
		return PresentImmediate, nil
	}
	return PresentFIFO, fmt.Errorf("unknown present mode %q", s)
}

// Swapchain implements [gpu.Swapchain] on a window surface. Its images
// are created with color attachment and transfer destination usage.
type Swapchain struct {
	dev       *Device
	surface   vk.Surface
	swapchain vk.Swapchain
	extent    gpu.Extent2D
	format    gpu.Format
	mode      PresentMode
	images    []gpu.Image
}

var _ gpu.Swapchain = (*Swapchain)(nil)

// NewSwapchain creates a swapchain on surface. size is used when the
// surface leaves the extent to the application. mode falls back to
// [PresentFIFO] if the surface does not support it.
func NewSwapchain(dv *Device, surface vk.Surface, size gpu.Extent2D, mode PresentMode) (*Swapchain, error) {
	gp := dv.GPU.GPU
	var caps vk.SurfaceCapabilities
	if err := NewError(vk.GetPhysicalDeviceSurfaceCapabilities(gp, surface, &caps)); err != nil {
		return nil, fmt.Errorf("reading surface capabilities: %w", err)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	format, err := surfaceFormat(gp, surface)
	if err != nil {
		return nil, err
	}

	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		extent.Width = clamp(size.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
		extent.Height = clamp(size.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	}

	if !supportsPresentMode(gp, surface, mode) {
		slog.Warn("vkgpu: present mode not supported, using fifo", "mode", mode)
		mode = PresentFIFO
	}

	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}

	usage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit)
	if caps.SupportedUsageFlags&usage != usage {
		return nil, errors.New("vulkan error: surface images cannot be blitted to")
	}

	transform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&transform == 0 {
		transform = caps.CurrentTransform
	}

	// one of these is guaranteed to be set
	alpha := vk.CompositeAlphaOpaqueBit
	for _, a := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(a) != 0 {
			alpha = a
			break
		}
	}

	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(dv.Device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    count,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageUsage:       usage,
		PreTransform:     transform,
		CompositeAlpha:   alpha,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		PresentMode:      vk.PresentMode(mode),
		OldSwapchain:     vk.NullSwapchain,
		Clipped:          vk.True,
	}, nil, &swapchain)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("creating swapchain: %w", err)
	}
	sc := &Swapchain{
		dev:       dv,
		surface:   surface,
		swapchain: swapchain,
		extent:    gpu.Extent2D{Width: extent.Width, Height: extent.Height},
		format:    gpu.Format(format.Format),
		mode:      mode,
	}

	var n uint32
	if err := NewError(vk.GetSwapchainImages(dv.Device, swapchain, &n, nil)); err != nil {
		sc.Destroy()
		return nil, err
	}
	images := make([]vk.Image, n)
	if err := NewError(vk.GetSwapchainImages(dv.Device, swapchain, &n, images)); err != nil {
		sc.Destroy()
		return nil, err
	}
	for i, img := range images {
		im := &Image{
			label:     fmt.Sprintf("swapchain-%d", i),
			extent:    sc.extent,
			format:    sc.format,
			image:     img,
			swapchain: true,
		}
		if err := dv.makeView(im); err != nil {
			sc.Destroy()
			return nil, err
		}
		sc.images = append(sc.images, im)
	}
	slog.Info("vkgpu: swapchain created", "extent", sc.extent, "format", sc.format,
		"images", len(sc.images), "mode", mode)
	return sc, nil
}

func (sc *Swapchain) Extent() gpu.Extent2D     { return sc.extent }
func (sc *Swapchain) Format() gpu.Format       { return sc.format }
func (sc *Swapchain) Images() []gpu.Image      { return sc.images }
func (sc *Swapchain) PresentMode() PresentMode { return sc.mode }

func (sc *Swapchain) Acquire(signal gpu.Semaphore) (uint32, error) {
	var idx uint32
	ret := vk.AcquireNextImage(sc.dev.Device, sc.swapchain, vk.MaxUint64,
		signal.(*Semaphore).sem, vk.NullFence, &idx)
	return idx, NewError(ret)
}

func (sc *Swapchain) Present(index uint32, wait gpu.Semaphore) error {
	ret := vk.QueuePresent(sc.dev.queue.queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(*Semaphore).sem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.swapchain},
		PImageIndices:      []uint32{index},
	})
	return NewError(ret)
}

// Destroy destroys the image views and the swapchain. The device
// must be idle.
func (sc *Swapchain) Destroy() {
	for _, gi := range sc.images {
		sc.dev.destroyImage(gi.(*Image))
	}
	sc.images = nil
	if sc.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(sc.dev.Device, sc.swapchain, nil)
		sc.swapchain = vk.NullSwapchain
	}
}

// surfaceFormat prefers 8 bit BGRA in sRGB, and otherwise takes the
// first format the surface offers.
func surfaceFormat(gp vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceFormat, error) {
	var n uint32
	vk.GetPhysicalDeviceSurfaceFormats(gp, surface, &n, nil)
	if n == 0 {
		return vk.SurfaceFormat{}, errors.New("vulkan error: surface has no pixel formats")
	}
	formats := make([]vk.SurfaceFormat, n)
	vk.GetPhysicalDeviceSurfaceFormats(gp, surface, &n, formats)
	for i := range formats {
		formats[i].Deref()
	}
	return chooseFormat(formats), nil
}

func chooseFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: formats[0].ColorSpace}
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Srgb {
			return f
		}
	}
	return formats[0]
}

func supportsPresentMode(gp vk.PhysicalDevice, surface vk.Surface, mode PresentMode) bool {
	if mode == PresentFIFO {
		return true
	}
	var n uint32
	vk.GetPhysicalDeviceSurfacePresentModes(gp, surface, &n, nil)
	modes := make([]vk.PresentMode, n)
	vk.GetPhysicalDeviceSurfacePresentModes(gp, surface, &n, modes)
	for _, m := range modes {
		if PresentMode(m) == mode {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi uint32) uint32 {
	return max(lo, min(v, hi))
}
