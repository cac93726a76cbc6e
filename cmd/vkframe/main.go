// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vkframe opens a window and renders into it with the frame
// engine until the window is closed.
package main

import (
	"log/slog"
	"os"
	"runtime"

	corelogx "cogentcore.org/core/base/logx"
	"cogentcore.org/core/cli"
	"cogentcore.org/vkframe/engine"
	"cogentcore.org/vkframe/gpu"
	"cogentcore.org/vkframe/gpu/vkgpu"
	"cogentcore.org/vkframe/logx"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// glfw and the presentation queue must stay on the main thread
	runtime.LockOSThread()
}

// Config is the configuration of vkframe. It is read from vkframe.toml
// when that file exists, and then from the command line.
type Config struct {
	engine.Config

	// Title is the window title.
	Title string `toml:"title" default:"vkframe"`

	// Width is the initial window width.
	Width int `toml:"width" default:"1280"`

	// Height is the initial window height.
	Height int `toml:"height" default:"720"`

	// Validation enables the Vulkan validation layer.
	Validation bool `toml:"validation"`

	// Present is the present mode: fifo, mailbox or immediate.
	Present string `toml:"present" default:"fifo"`

	// Frames exits after this many frames. Zero runs until the
	// window is closed.
	Frames uint64 `toml:"frames"`
}

func main() {
	opts := cli.DefaultOptions("vkframe", "Render frames into a window with the vkframe engine.")
	opts.DefaultFiles = []string{"vkframe.toml"}
	cli.Run(opts, &Config{}, &cli.Cmd[*Config]{
		Func: Run,
		Name: "run",
		Doc:  "Run opens the window and renders into it until it is closed.",
		Root: true,
	})
}

// Run opens the window and renders into it until it is closed.
func Run(c *Config) (err error) {
	defer gpu.CheckErr(&err)
	logx.UserLevel = corelogx.UserLevel
	logx.SetDefaultLogger()

	if err := c.Validate(); err != nil {
		return err
	}
	mode, err := vkgpu.ParsePresentMode(c.Present)
	if err != nil {
		return err
	}
	shaders, err := engine.LoadShaders(c.Shaders)
	if err != nil {
		return err
	}

	if err := vkgpu.Init(); err != nil {
		return err
	}
	defer vkgpu.Terminate()

	window, err := vkgpu.NewWindow(c.Title, c.Width, c.Height)
	if err != nil {
		return err
	}
	defer window.Destroy()

	gp, err := vkgpu.NewGPU(&vkgpu.Options{
		AppName:      c.Title,
		InstanceExts: vkgpu.WindowExtensions(window),
		Validation:   c.Validation,
	})
	if err != nil {
		return err
	}
	defer gp.Destroy()

	surface, err := vkgpu.NewSurface(gp, window)
	if err != nil {
		return err
	}
	defer gp.DestroySurface(surface)

	dev, err := vkgpu.NewDevice(gp, surface)
	if err != nil {
		return err
	}
	defer dev.Destroy()

	fw, fh := window.GetFramebufferSize()
	sc, err := vkgpu.NewSwapchain(dev, surface, gpu.Extent2D{Width: uint32(fw), Height: uint32(fh)}, mode)
	if err != nil {
		return err
	}
	defer sc.Destroy()

	eng := engine.New(&engine.Context{
		Device:    dev,
		Swapchain: sc,
		Shaders:   shaders,
		Config:    &c.Config,
	})
	size := sc.Extent()
	if err := eng.Initialize(int(size.Width), int(size.Height)); err != nil {
		return err
	}

	slog.Info("rendering", "gpu", gp.Name, "api", gp.APIVersion, "present", sc.PresentMode())
	more := func() bool {
		glfw.PollEvents()
		return !window.ShouldClose()
	}
	if err := eng.Run(more, c.Frames); err != nil {
		if !eng.Terminated() {
			// nothing may be released while the device state is unknown
			slog.Error("rendering failed", "err", err)
			os.Exit(1)
		}
		return err
	}
	return nil
}
