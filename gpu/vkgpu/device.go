// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"errors"
	"fmt"
	"time"

	"cogentcore.org/vkframe/gpu"
	vk "github.com/goki/vulkan"
)

// Device is a logical device with a single queue family that supports
// both graphics and presentation to a surface. It implements [gpu.Device].
type Device struct {
	GPU *GPU

	// Device is the logical device.
	Device vk.Device

	// QueueIndex is the queue family of the queue.
	QueueIndex uint32

	queue *Queue
	pool  vk.CommandPool

	// renderPasses caches render passes by attachment format and load op.
	renderPasses map[renderPassKey]vk.RenderPass
}

var _ gpu.Device = (*Device)(nil)

// NewDevice creates a logical device on gp whose queue can present
// to surface.
func NewDevice(gp *GPU, surface vk.Surface) (*Device, error) {
	dv := &Device{GPU: gp, renderPasses: make(map[renderPassKey]vk.RenderPass)}
	found := false
	for i, qp := range queueFamilies(gp.GPU) {
		if qp.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(gp.GPU, uint32(i), surface, &present)
		if present.B() {
			dv.QueueIndex = uint32(i)
			found = true
			break
		}
	}
	if !found {
		return nil, errors.New("vulkan error: no queue with graphics and present capabilities")
	}

	var device vk.Device
	ret := vk.CreateDevice(gp.GPU, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: dv.QueueIndex,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(gp.DeviceExts)),
		PpEnabledExtensionNames: safeStrings(gp.DeviceExts),
		EnabledLayerCount:       uint32(len(gp.ValidationLayers)),
		PpEnabledLayerNames:     safeStrings(gp.ValidationLayers),
	}, nil, &device)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}
	dv.Device = device

	var queue vk.Queue
	vk.GetDeviceQueue(dv.Device, dv.QueueIndex, 0, &queue)
	dv.queue = &Queue{queue: queue}

	var pool vk.CommandPool
	ret = vk.CreateCommandPool(dv.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dv.QueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if err := NewError(ret); err != nil {
		dv.Destroy()
		return nil, fmt.Errorf("creating command pool: %w", err)
	}
	dv.pool = pool
	return dv, nil
}

// Destroy waits for the device to be idle and destroys it.
// Everything created on it must have been destroyed first.
func (dv *Device) Destroy() {
	if dv.Device == nil {
		return
	}
	vk.DeviceWaitIdle(dv.Device)
	for k, rp := range dv.renderPasses {
		vk.DestroyRenderPass(dv.Device, rp, nil)
		delete(dv.renderPasses, k)
	}
	if dv.pool != nil {
		vk.DestroyCommandPool(dv.Device, dv.pool, nil)
		dv.pool = nil
	}
	vk.DestroyDevice(dv.Device, nil)
	dv.Device = nil
}

func (dv *Device) Queue() gpu.Queue { return dv.queue }

func (dv *Device) WaitIdle() error {
	return NewError(vk.DeviceWaitIdle(dv.Device))
}

// Fence implements [gpu.Fence].
type Fence struct {
	label string
	fence vk.Fence
}

func (f *Fence) Label() string { return f.label }

func (dv *Device) CreateFence(label string, signaled bool) (gpu.Fence, error) {
	info := &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := NewError(vk.CreateFence(dv.Device, info, nil, &fence)); err != nil {
		return nil, fmt.Errorf("creating fence %s: %w", label, err)
	}
	return &Fence{label: label, fence: fence}, nil
}

func (dv *Device) DestroyFence(gf gpu.Fence) {
	f := gf.(*Fence)
	vk.DestroyFence(dv.Device, f.fence, nil)
	f.fence = vk.NullFence
}

func (dv *Device) WaitFence(gf gpu.Fence, timeout time.Duration) error {
	f := gf.(*Fence)
	ns := uint64(vk.MaxUint64)
	if timeout > 0 {
		ns = uint64(timeout.Nanoseconds())
	}
	if err := NewError(vk.WaitForFences(dv.Device, 1, []vk.Fence{f.fence}, vk.True, ns)); err != nil {
		return fmt.Errorf("waiting for fence %s: %w", f.label, err)
	}
	return nil
}

func (dv *Device) ResetFence(gf gpu.Fence) error {
	f := gf.(*Fence)
	return NewError(vk.ResetFences(dv.Device, 1, []vk.Fence{f.fence}))
}

// Semaphore implements [gpu.Semaphore].
type Semaphore struct {
	label string
	sem   vk.Semaphore
}

func (s *Semaphore) Label() string { return s.label }

func (dv *Device) CreateSemaphore(label string) (gpu.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(dv.Device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("creating semaphore %s: %w", label, err)
	}
	return &Semaphore{label: label, sem: sem}, nil
}

func (dv *Device) DestroySemaphore(gs gpu.Semaphore) {
	s := gs.(*Semaphore)
	vk.DestroySemaphore(dv.Device, s.sem, nil)
	s.sem = nil
}

// Queue implements [gpu.Queue] on the single device queue.
type Queue struct {
	queue vk.Queue
}

// Submit submits one batch. Signal semaphores are signaled when the
// whole batch completes, so SignalStages is not used.
func (q *Queue) Submit(info *gpu.SubmitInfo) error {
	si := vk.SubmitInfo{SType: vk.StructureTypeSubmitInfo}
	for _, c := range info.Commands {
		si.PCommandBuffers = append(si.PCommandBuffers, c.(*CommandBuffer).cmd)
	}
	si.CommandBufferCount = uint32(len(si.PCommandBuffers))
	for _, w := range info.Waits {
		si.PWaitSemaphores = append(si.PWaitSemaphores, w.Semaphore.(*Semaphore).sem)
		si.PWaitDstStageMask = append(si.PWaitDstStageMask, vk.PipelineStageFlags(w.Stages))
	}
	si.WaitSemaphoreCount = uint32(len(si.PWaitSemaphores))
	for _, s := range info.Signals {
		si.PSignalSemaphores = append(si.PSignalSemaphores, s.(*Semaphore).sem)
	}
	si.SignalSemaphoreCount = uint32(len(si.PSignalSemaphores))

	fence := vk.NullFence
	if info.Fence != nil {
		fence = info.Fence.(*Fence).fence
	}
	if err := NewError(vk.QueueSubmit(q.queue, 1, []vk.SubmitInfo{si}, fence)); err != nil {
		return fmt.Errorf("queue submit: %w", err)
	}
	return nil
}
