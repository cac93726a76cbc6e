// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vkgpu implements the gpu interfaces on Vulkan, through
// github.com/goki/vulkan, with glfw providing the loader and the
// window surface.
package vkgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Masterminds/semver/v3"
	vk "github.com/goki/vulkan"
)

// MinAPIVersion is the oldest Vulkan API version accepted by default.
const MinAPIVersion = "1.1"

// validationLayer is the standard Khronos validation layer.
const validationLayer = "VK_LAYER_KHRONOS_validation"

// GPU is a Vulkan instance together with the physical device used
// for rendering.
type GPU struct {

	// Instance is the Vulkan instance.
	Instance vk.Instance

	// GPU is the selected physical device.
	GPU vk.PhysicalDevice

	// Name is the name of the physical device.
	Name string

	// APIVersion is the API version the device supports.
	APIVersion *semver.Version

	// MemoryProps are the memory properties of the device.
	MemoryProps vk.PhysicalDeviceMemoryProperties

	// InstanceExts are the enabled instance extensions.
	InstanceExts []string

	// DeviceExts are the device extensions enabled on every [Device].
	DeviceExts []string

	// ValidationLayers are the enabled layers, if any.
	ValidationLayers []string

	instanceFlags vk.InstanceCreateFlags
}

// Options configure [NewGPU].
type Options struct {

	// AppName is reported to the driver.
	AppName string

	// InstanceExts are additional instance extensions, typically
	// from [WindowExtensions].
	InstanceExts []string

	// Validation enables the Khronos validation layer if it is installed.
	Validation bool

	// MinAPIVersion is the oldest acceptable device API version,
	// defaulting to [MinAPIVersion].
	MinAPIVersion string
}

// NewGPU creates the Vulkan instance and selects the first physical
// device with a graphics queue whose API version is recent enough.
func NewGPU(opts *Options) (gp *GPU, err error) {
	minVer := opts.MinAPIVersion
	if minVer == "" {
		minVer = MinAPIVersion
	}
	constraint, err := semver.NewConstraint(">= " + minVer)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum API version %q: %w", minVer, err)
	}
	req, err := semver.NewVersion(minVer)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum API version %q: %w", minVer, err)
	}

	gp = &GPU{
		InstanceExts: slices.Clone(opts.InstanceExts),
		DeviceExts:   []string{vk.KhrSwapchainExtensionName},
	}
	platformDefaults(gp)
	if opts.Validation {
		if hasLayer(validationLayer) {
			gp.ValidationLayers = []string{validationLayer}
		} else {
			slog.Warn("vulkan validation layer is not installed", "layer", validationLayer)
		}
	}

	var inst vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		Flags: gp.instanceFlags,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   safeString(opts.AppName),
			ApplicationVersion: vk.MakeVersion(1, 0, 0),
			PEngineName:        safeString("vkframe"),
			EngineVersion:      vk.MakeVersion(1, 0, 0),
			ApiVersion:         vk.MakeVersion(int(req.Major()), int(req.Minor()), 0),
		},
		EnabledExtensionCount:   uint32(len(gp.InstanceExts)),
		PpEnabledExtensionNames: safeStrings(gp.InstanceExts),
		EnabledLayerCount:       uint32(len(gp.ValidationLayers)),
		PpEnabledLayerNames:     safeStrings(gp.ValidationLayers),
	}, nil, &inst)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("creating vulkan instance: %w", err)
	}
	gp.Instance = inst
	if err := vk.InitInstance(inst); err != nil {
		gp.Destroy()
		return nil, fmt.Errorf("loading instance functions: %w", err)
	}
	if err := gp.selectDevice(constraint); err != nil {
		gp.Destroy()
		return nil, err
	}
	slog.Info("vulkan device selected", "name", gp.Name, "api", gp.APIVersion, "validation", len(gp.ValidationLayers) > 0)
	return gp, nil
}

func (gp *GPU) selectDevice(constraint *semver.Constraints) error {
	var n uint32
	if err := NewError(vk.EnumeratePhysicalDevices(gp.Instance, &n, nil)); err != nil {
		return fmt.Errorf("enumerating devices: %w", err)
	}
	if n == 0 {
		return errors.New("vulkan error: no GPU devices found")
	}
	devs := make([]vk.PhysicalDevice, n)
	if err := NewError(vk.EnumeratePhysicalDevices(gp.Instance, &n, devs)); err != nil {
		return fmt.Errorf("enumerating devices: %w", err)
	}

	var rejected []error
	for _, pd := range devs {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		name := vk.ToString(props.DeviceName[:])
		ver := APIVersion(props.ApiVersion)
		if !constraint.Check(ver) {
			rejected = append(rejected, fmt.Errorf("%s: API version %s does not satisfy %s", name, ver, constraint))
			continue
		}
		if _, ok := graphicsQueue(pd); !ok {
			rejected = append(rejected, fmt.Errorf("%s: no graphics queue", name))
			continue
		}
		gp.GPU = pd
		gp.Name = name
		gp.APIVersion = ver
		vk.GetPhysicalDeviceMemoryProperties(pd, &gp.MemoryProps)
		gp.MemoryProps.Deref()
		return nil
	}
	return fmt.Errorf("no suitable GPU: %w", errors.Join(rejected...))
}

// Destroy destroys the instance. All devices and surfaces must have
// been destroyed first.
func (gp *GPU) Destroy() {
	if gp.Instance == nil {
		return
	}
	vk.DestroyInstance(gp.Instance, nil)
	gp.Instance = nil
}

// DestroySurface destroys a surface made by [NewSurface].
func (gp *GPU) DestroySurface(s vk.Surface) {
	if s != vk.NullSurface {
		vk.DestroySurface(gp.Instance, s, nil)
	}
}

// APIVersion decodes a packed Vulkan version number.
func APIVersion(v uint32) *semver.Version {
	return semver.New(uint64(v>>22&0x7f), uint64(v>>12&0x3ff), uint64(v&0xfff), "", "")
}

func hasLayer(name string) bool {
	var n uint32
	if vk.EnumerateInstanceLayerProperties(&n, nil) != vk.Success {
		return false
	}
	props := make([]vk.LayerProperties, n)
	if vk.EnumerateInstanceLayerProperties(&n, props) != vk.Success {
		return false
	}
	for _, p := range props {
		p.Deref()
		if vk.ToString(p.LayerName[:]) == name {
			return true
		}
	}
	return false
}

// graphicsQueue returns the first queue family of pd with graphics support.
func graphicsQueue(pd vk.PhysicalDevice) (uint32, bool) {
	for i, qp := range queueFamilies(pd) {
		if qp.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func queueFamilies(pd vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var n uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, nil)
	props := make([]vk.QueueFamilyProperties, n)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, props)
	for i := range props {
		props[i].Deref()
	}
	return props
}
