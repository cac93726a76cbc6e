// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fakegpu

import (
	"errors"
	"fmt"

	"cogentcore.org/vkframe/gpu"
)

// Swapchain is a fake swapchain handing out its images round-robin.
type Swapchain struct {
	dev      *Device
	extent   gpu.Extent2D
	format   gpu.Format
	images   []gpu.Image
	acquired []bool
	next     uint32

	acquires     int
	presents     int
	failAcquire  map[int]error
	failPresents map[int]error
}

var _ gpu.Swapchain = (*Swapchain)(nil)

// NewSwapchain returns a swapchain of n images with the given extent.
func NewSwapchain(d *Device, extent gpu.Extent2D, n int) *Swapchain {
	sc := &Swapchain{dev: d, extent: extent, format: gpu.FormatB8G8R8A8Srgb,
		failAcquire: make(map[int]error), failPresents: make(map[int]error)}
	for i := range n {
		sc.images = append(sc.images, &Image{label: fmt.Sprintf("swapchain-%d", i), extent: extent, format: sc.format,
			usage: gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferDst, swapchain: true})
	}
	sc.acquired = make([]bool, n)
	return sc
}

// FailAcquire makes the given 1-based acquire call return err.
// [gpu.ErrSuboptimal] still acquires an image.
func (sc *Swapchain) FailAcquire(call int, err error) {
	sc.dev.mu.Lock()
	defer sc.dev.mu.Unlock()
	sc.failAcquire[call] = err
}

// FailPresent makes the given 1-based present call return err.
func (sc *Swapchain) FailPresent(call int, err error) {
	sc.dev.mu.Lock()
	defer sc.dev.mu.Unlock()
	sc.failPresents[call] = err
}

func (sc *Swapchain) Extent() gpu.Extent2D { return sc.extent }
func (sc *Swapchain) Format() gpu.Format   { return sc.format }
func (sc *Swapchain) Images() []gpu.Image  { return sc.images }

func (sc *Swapchain) Acquire(signal gpu.Semaphore) (uint32, error) {
	d := sc.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	sc.acquires++
	err := sc.failAcquire[sc.acquires]
	if err != nil && !errors.Is(err, gpu.ErrSuboptimal) {
		return 0, err
	}

	n := uint32(len(sc.images))
	idx := sc.next
	for range n {
		if !sc.acquired[idx] {
			break
		}
		idx = (idx + 1) % n
	}
	if sc.acquired[idx] {
		d.invalidLocked("acquire with all %d swapchain images already acquired", n)
	}
	sc.acquired[idx] = true
	sc.next = (idx + 1) % n

	s := signal.(*Semaphore)
	if s.pending {
		d.invalidLocked("acquire signals %s which already has a pending signal", s.label)
	}
	s.pending = true
	d.logLocked(Event{Kind: EventAcquire, Object: sc.images[idx].Label(), Index: idx})
	return idx, err
}

func (sc *Swapchain) Present(index uint32, wait gpu.Semaphore) error {
	d := sc.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	sc.presents++
	if int(index) >= len(sc.images) || !sc.acquired[index] {
		d.invalidLocked("present of image %d which is not acquired", index)
		return nil
	}
	img := sc.images[index].(*Image)
	if img.layout != gpu.LayoutPresentSrc {
		d.invalidLocked("present of %s in %s", img.label, img.layout)
	}
	s := wait.(*Semaphore)
	if !s.pending {
		d.invalidLocked("present waits on %s which has no pending signal", s.label)
	}
	s.pending = false
	sc.acquired[index] = false
	d.logLocked(Event{Kind: EventPresent, Object: img.label, Index: index})
	return sc.failPresents[sc.presents]
}
