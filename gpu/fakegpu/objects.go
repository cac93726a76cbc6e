// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fakegpu

import "cogentcore.org/vkframe/gpu"

// Fence is a fake fence. done is closed while signaled.
type Fence struct {
	label      string
	signaled   bool
	done       chan struct{}
	submission uint64
}

func (f *Fence) Label() string { return f.label }

// Semaphore is a fake binary semaphore. pending is set between a
// signal operation and the wait that consumes it.
type Semaphore struct {
	label      string
	pending    bool
	submission uint64
}

func (s *Semaphore) Label() string { return s.label }

// Image is a fake image. layout is the layout the image is actually in,
// as established by the barriers of all submissions so far.
type Image struct {
	label      string
	extent     gpu.Extent2D
	format     gpu.Format
	usage      gpu.ImageUsage
	layout     gpu.ImageLayout
	swapchain  bool
	submission uint64
}

func (im *Image) Label() string        { return im.label }
func (im *Image) Extent() gpu.Extent2D { return im.extent }
func (im *Image) Format() gpu.Format   { return im.format }

func (im *Image) usageHas(u gpu.ImageUsage) bool { return im.usage&u == u }

// Buffer is a fake buffer holding its contents in memory.
type Buffer struct {
	label      string
	size       uint64
	usage      gpu.BufferUsage
	data       []byte
	submission uint64
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return b.size }

// Pipeline is a fake pipeline.
type Pipeline struct {
	label      string
	bind       gpu.BindPoint
	format     gpu.Format
	submission uint64
}

func (p *Pipeline) Label() string            { return p.label }
func (p *Pipeline) BindPoint() gpu.BindPoint { return p.bind }

// Layout returns the layout im is actually in after all submissions so far.
func (d *Device) Layout(img gpu.Image) gpu.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	return img.(*Image).layout
}

// Contents returns a copy of the buffer contents as of the last
// completed or pending submission.
func (d *Device) Contents(buf gpu.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), buf.(*Buffer).data...)
}
