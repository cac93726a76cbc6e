// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakegpu is an in-process [gpu.Device] that executes submissions
// on its own goroutine and records everything that happens to it.
// It checks the usage rules a validation layer would check (fence and
// semaphore signaling, command buffer states, image layouts at the point
// of use, destruction of objects still in use) and reports violations
// through [Device.ValidationErrors] instead of crashing.
package fakegpu

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"cogentcore.org/vkframe/gpu"
)

// EventKind is the kind of a recorded [Event].
type EventKind int

const (
	EventCreate EventKind = iota
	EventDestroy
	EventWaitFence
	EventResetFence
	EventFenceSignaled
	EventBegin
	EventEnd
	EventSubmit
	EventComplete
	EventAcquire
	EventPresent
	EventWaitIdle
)

var eventNames = [...]string{"create", "destroy", "wait-fence", "reset-fence", "fence-signaled",
	"begin", "end", "submit", "complete", "acquire", "present", "wait-idle"}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one entry of the device log. Seq is strictly increasing
// across all events of a device, in the order they happened.
type Event struct {
	Seq    uint64
	Kind   EventKind
	Object string

	// Submission is the submission id for submit, complete and
	// fence-signaled events.
	Submission uint64

	// Index is the image index for acquire and present events.
	Index uint32
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %s %s sub=%d idx=%d", e.Seq, e.Kind, e.Object, e.Submission, e.Index)
}

// Device is an instrumented fake GPU device with a single queue.
type Device struct {

	// Latency is how long the executor takes to run each submission.
	// Set before the first submission.
	Latency time.Duration

	mu         sync.Mutex
	seq        uint64
	events     []Event
	validation []string
	live       map[any]string
	queue      *Queue
	inflight   sync.WaitGroup
}

// NewDevice returns a new fake device.
func NewDevice() *Device {
	d := &Device{live: make(map[any]string)}
	d.queue = &Queue{dev: d}
	return d
}

var _ gpu.Device = (*Device)(nil)

// logLocked appends an event. d.mu must be held.
func (d *Device) logLocked(ev Event) Event {
	d.seq++
	ev.Seq = d.seq
	d.events = append(d.events, ev)
	return ev
}

// invalidLocked records a validation error. d.mu must be held.
func (d *Device) invalidLocked(format string, args ...any) {
	d.validation = append(d.validation, fmt.Sprintf(format, args...))
}

func (d *Device) createLocked(obj any, label string) {
	d.live[obj] = label
	d.logLocked(Event{Kind: EventCreate, Object: label})
}

func (d *Device) destroyLocked(obj any, label string) bool {
	if _, ok := d.live[obj]; !ok {
		d.invalidLocked("destroy of %s which is not alive", label)
		return false
	}
	delete(d.live, obj)
	d.logLocked(Event{Kind: EventDestroy, Object: label})
	return true
}

// inUseLocked reports whether submission id has not yet completed.
func (d *Device) inUseLocked(id uint64) bool {
	return id > d.queue.completed
}

// Events returns a copy of the event log.
func (d *Device) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// EventsOf returns the events of the given kind, restricted to
// the given object label unless it is empty.
func (d *Device) EventsOf(kind EventKind, object string) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var evs []Event
	for _, ev := range d.events {
		if ev.Kind == kind && (object == "" || ev.Object == object) {
			evs = append(evs, ev)
		}
	}
	return evs
}

// Count returns the number of events of the given kind.
func (d *Device) Count(kind EventKind) int {
	return len(d.EventsOf(kind, ""))
}

// ValidationErrors returns all usage errors detected so far.
func (d *Device) ValidationErrors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.validation...)
}

// Live returns the sorted labels of all objects created on the
// device and not yet destroyed. Swapchain images are not included.
func (d *Device) Live() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	lbls := make([]string, 0, len(d.live))
	for _, l := range d.live {
		lbls = append(lbls, l)
	}
	sort.Strings(lbls)
	return lbls
}

// Submissions returns a copy of every submission made so far.
func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Submission(nil), d.queue.history...)
}

func (d *Device) Queue() gpu.Queue { return d.queue }

func (d *Device) CreateFence(label string, signaled bool) (gpu.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := &Fence{label: label, done: make(chan struct{})}
	if signaled {
		f.signaled = true
		close(f.done)
	}
	d.createLocked(f, label)
	return f, nil
}

func (d *Device) DestroyFence(gf gpu.Fence) {
	f := gf.(*Fence)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUseLocked(f.submission) {
		d.invalidLocked("fence %s destroyed while submission %d is pending", f.label, f.submission)
	}
	d.destroyLocked(f, f.label)
}

func (d *Device) WaitFence(gf gpu.Fence, timeout time.Duration) error {
	f := gf.(*Fence)
	d.mu.Lock()
	done := f.done
	d.mu.Unlock()

	if timeout > 0 {
		select {
		case <-done:
		case <-time.After(timeout):
			return fmt.Errorf("waiting for fence %s: %w", f.label, gpu.ErrTimeout)
		}
	} else {
		<-done
	}

	d.mu.Lock()
	d.logLocked(Event{Kind: EventWaitFence, Object: f.label, Submission: f.submission})
	d.mu.Unlock()
	return nil
}

func (d *Device) ResetFence(gf gpu.Fence) error {
	f := gf.(*Fence)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUseLocked(f.submission) {
		d.invalidLocked("fence %s reset while submission %d is pending", f.label, f.submission)
	}
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
	d.logLocked(Event{Kind: EventResetFence, Object: f.label})
	return nil
}

func (d *Device) CreateSemaphore(label string) (gpu.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Semaphore{label: label}
	d.createLocked(s, label)
	return s, nil
}

func (d *Device) DestroySemaphore(gs gpu.Semaphore) {
	s := gs.(*Semaphore)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUseLocked(s.submission) {
		d.invalidLocked("semaphore %s destroyed while submission %d is pending", s.label, s.submission)
	}
	d.destroyLocked(s, s.label)
}

func (d *Device) CreateCommandBuffer(label string) (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb := &CommandBuffer{dev: d, label: label}
	d.createLocked(cb, label)
	return cb, nil
}

func (d *Device) DestroyCommandBuffer(gcb gpu.CommandBuffer) {
	cb := gcb.(*CommandBuffer)
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb.state == statePending {
		d.invalidLocked("command buffer %s destroyed while pending", cb.label)
	}
	d.destroyLocked(cb, cb.label)
}

func (d *Device) CreateImage(desc *gpu.ImageDescriptor) (gpu.Image, error) {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return nil, fmt.Errorf("fakegpu: image %s has empty extent %v", desc.Label, desc.Extent)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	img := &Image{label: desc.Label, extent: desc.Extent, format: desc.Format, usage: desc.Usage}
	d.createLocked(img, desc.Label)
	return img, nil
}

func (d *Device) DestroyImage(gi gpu.Image) {
	img := gi.(*Image)
	d.mu.Lock()
	defer d.mu.Unlock()
	if img.swapchain {
		d.invalidLocked("swapchain image %s destroyed by the application", img.label)
		return
	}
	if d.inUseLocked(img.submission) {
		d.invalidLocked("image %s destroyed while submission %d is pending", img.label, img.submission)
	}
	d.destroyLocked(img, img.label)
}

func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("fakegpu: buffer %s has zero size", desc.Label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &Buffer{label: desc.Label, size: desc.Size, usage: desc.Usage, data: make([]byte, desc.Size)}
	d.createLocked(b, desc.Label)
	return b, nil
}

func (d *Device) DestroyBuffer(gb gpu.Buffer) {
	b := gb.(*Buffer)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUseLocked(b.submission) {
		d.invalidLocked("buffer %s destroyed while submission %d is pending", b.label, b.submission)
	}
	d.destroyLocked(b, b.label)
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &Pipeline{label: desc.Label, bind: gpu.BindCompute}
	for _, img := range desc.StorageImages {
		if img.(*Image).usage&gpu.ImageUsageStorage == 0 {
			return nil, fmt.Errorf("fakegpu: pipeline %s binds image %s without storage usage", desc.Label, img.Label())
		}
	}
	d.createLocked(p, desc.Label)
	return p, nil
}

func (d *Device) CreateGraphicsPipeline(desc *gpu.GraphicsPipelineDescriptor) (gpu.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &Pipeline{label: desc.Label, bind: gpu.BindGraphics, format: desc.ColorFormat}
	d.createLocked(p, desc.Label)
	return p, nil
}

func (d *Device) DestroyPipeline(gp gpu.Pipeline) {
	p := gp.(*Pipeline)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inUseLocked(p.submission) {
		d.invalidLocked("pipeline %s destroyed while submission %d is pending", p.label, p.submission)
	}
	d.destroyLocked(p, p.label)
}

func (d *Device) WaitIdle() error {
	d.inflight.Wait()
	d.mu.Lock()
	d.logLocked(Event{Kind: EventWaitIdle})
	d.mu.Unlock()
	return nil
}
