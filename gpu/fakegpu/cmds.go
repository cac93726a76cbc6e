// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fakegpu

import (
	"fmt"

	"cogentcore.org/vkframe/gpu"
)

// Op is the kind of a recorded [Command].
type Op int

const (
	OpImageBarrier Op = iota
	OpBufferBarrier
	OpBindPipeline
	OpDispatch
	OpBeginRendering
	OpEndRendering
	OpDraw
	OpBlit
	OpUpdateBuffer
)

var opNames = [...]string{"image-barrier", "buffer-barrier", "bind-pipeline", "dispatch",
	"begin-rendering", "end-rendering", "draw", "blit", "update-buffer"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is one recorded command. Only the fields of its Op are set.
type Command struct {
	Op            Op
	ImageBarrier  gpu.ImageBarrier
	BufferBarrier gpu.BufferBarrier
	Pipeline      gpu.Pipeline
	Groups        [3]uint32
	Rendering     gpu.RenderingInfo
	Vertices      uint32
	Blit          gpu.ImageBlit
	Buffer        gpu.Buffer
	Offset        uint64
	Data          []byte
}

type cbState int

const (
	stateInitial cbState = iota
	stateRecording
	stateExecutable
	statePending
)

// CommandBuffer is a fake command buffer that records [Command]s.
type CommandBuffer struct {
	dev       *Device
	label     string
	state     cbState
	cmds      []Command
	rendering bool
	compute   *Pipeline
	graphics  *Pipeline
}

func (cb *CommandBuffer) Label() string { return cb.label }

// Commands returns a copy of the commands recorded since the last Begin.
func (cb *CommandBuffer) Commands() []Command {
	cb.dev.mu.Lock()
	defer cb.dev.mu.Unlock()
	return append([]Command(nil), cb.cmds...)
}

func (cb *CommandBuffer) Reset() error {
	cb.dev.mu.Lock()
	defer cb.dev.mu.Unlock()
	if cb.state == statePending {
		cb.dev.invalidLocked("command buffer %s reset while pending", cb.label)
		return nil
	}
	cb.resetLocked()
	return nil
}

func (cb *CommandBuffer) resetLocked() {
	cb.state = stateInitial
	cb.cmds = nil
	cb.rendering = false
	cb.compute = nil
	cb.graphics = nil
}

func (cb *CommandBuffer) Begin() error {
	cb.dev.mu.Lock()
	defer cb.dev.mu.Unlock()
	switch cb.state {
	case stateRecording:
		cb.dev.invalidLocked("command buffer %s begun while recording", cb.label)
	case statePending:
		cb.dev.invalidLocked("command buffer %s begun while pending", cb.label)
	}
	cb.resetLocked()
	cb.state = stateRecording
	cb.dev.logLocked(Event{Kind: EventBegin, Object: cb.label})
	return nil
}

func (cb *CommandBuffer) End() error {
	cb.dev.mu.Lock()
	defer cb.dev.mu.Unlock()
	if cb.state != stateRecording {
		cb.dev.invalidLocked("command buffer %s ended while not recording", cb.label)
		return nil
	}
	if cb.rendering {
		cb.dev.invalidLocked("command buffer %s ended inside a rendering scope", cb.label)
	}
	cb.state = stateExecutable
	cb.dev.logLocked(Event{Kind: EventEnd, Object: cb.label})
	return nil
}

// record appends c, checking that recording is open and that the
// rendering scope matches what the command requires.
func (cb *CommandBuffer) record(c Command, insideRendering bool) {
	cb.dev.mu.Lock()
	defer cb.dev.mu.Unlock()
	if cb.state != stateRecording {
		cb.dev.invalidLocked("%s recorded into %s while not recording", c.Op, cb.label)
		return
	}
	if cb.rendering != insideRendering {
		if insideRendering {
			cb.dev.invalidLocked("%s recorded into %s outside a rendering scope", c.Op, cb.label)
		} else {
			cb.dev.invalidLocked("%s recorded into %s inside a rendering scope", c.Op, cb.label)
		}
	}
	switch c.Op {
	case OpBindPipeline:
		p := c.Pipeline.(*Pipeline)
		if p.bind == gpu.BindCompute {
			cb.compute = p
		} else {
			cb.graphics = p
		}
	case OpDispatch:
		if cb.compute == nil {
			cb.dev.invalidLocked("dispatch in %s without a compute pipeline", cb.label)
		}
	case OpDraw:
		if cb.graphics == nil {
			cb.dev.invalidLocked("draw in %s without a graphics pipeline", cb.label)
		}
	case OpBeginRendering:
		cb.rendering = true
	case OpEndRendering:
		cb.rendering = false
	case OpUpdateBuffer:
		b := c.Buffer.(*Buffer)
		n := uint64(len(c.Data))
		if n == 0 || n > 65536 || n%4 != 0 || c.Offset%4 != 0 || c.Offset+n > b.size {
			cb.dev.invalidLocked("update of %s with %d bytes at %d is out of range", b.label, n, c.Offset)
		}
		if b.usage&gpu.BufferUsageTransferDst == 0 {
			cb.dev.invalidLocked("update of %s without transfer-dst usage", b.label)
		}
	}
	cb.cmds = append(cb.cmds, c)
}

func (cb *CommandBuffer) ImageBarrier(b gpu.ImageBarrier) {
	cb.record(Command{Op: OpImageBarrier, ImageBarrier: b}, false)
}

func (cb *CommandBuffer) BufferBarrier(b gpu.BufferBarrier) {
	cb.record(Command{Op: OpBufferBarrier, BufferBarrier: b}, false)
}

func (cb *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	cb.dev.mu.Lock()
	inside := cb.rendering
	cb.dev.mu.Unlock()
	cb.record(Command{Op: OpBindPipeline, Pipeline: p}, inside)
}

func (cb *CommandBuffer) Dispatch(x, y, z uint32) {
	cb.record(Command{Op: OpDispatch, Groups: [3]uint32{x, y, z}}, false)
}

func (cb *CommandBuffer) BeginRendering(info gpu.RenderingInfo) {
	cb.record(Command{Op: OpBeginRendering, Rendering: info}, false)
}

func (cb *CommandBuffer) EndRendering() {
	cb.record(Command{Op: OpEndRendering}, true)
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.record(Command{Op: OpDraw, Vertices: vertexCount}, true)
}

func (cb *CommandBuffer) BlitImage(blit gpu.ImageBlit) {
	cb.record(Command{Op: OpBlit, Blit: blit}, false)
}

func (cb *CommandBuffer) UpdateBuffer(buf gpu.Buffer, offset uint64, data []byte) {
	cb.record(Command{Op: OpUpdateBuffer, Buffer: buf, Offset: offset, Data: append([]byte(nil), data...)}, false)
}
