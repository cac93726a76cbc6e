// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build (darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd

package vkgpu

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

// Init initializes glfw and the Vulkan loader. It must be called on
// the main thread before anything else in this package.
func Init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initializing glfw: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("no Vulkan loader found")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return fmt.Errorf("initializing vulkan: %w", err)
	}
	return nil
}

// Terminate shuts down glfw. It must be called last, on the main thread.
func Terminate() {
	glfw.Terminate()
}

// NewWindow opens a window without a client API, for Vulkan rendering.
func NewWindow(title string, width, height int) (*glfw.Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	w, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}
	return w, nil
}

// WindowExtensions returns the instance extensions needed to present
// to glfw windows.
func WindowExtensions(w *glfw.Window) []string {
	return w.GetRequiredInstanceExtensions()
}

// NewSurface creates the Vulkan surface of window w. It is destroyed
// with [GPU.DestroySurface].
func NewSurface(gp *GPU, w *glfw.Window) (vk.Surface, error) {
	ptr, err := w.CreateWindowSurface(gp.Instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("creating window surface: %w", err)
	}
	return vk.SurfaceFromPointer(ptr), nil
}
