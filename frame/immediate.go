// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"fmt"

	"cogentcore.org/vkframe/gpu"
)

// Immediate runs one-off units of GPU work synchronously, outside the
// frame ring, such as uploads at startup.
type Immediate struct {
	dev   gpu.Device
	rec   *Recorder
	fence gpu.Fence
}

// NewImmediate creates the private command buffer and fence.
func NewImmediate(dev gpu.Device) (*Immediate, error) {
	cmd, err := dev.CreateCommandBuffer("immediate")
	if err != nil {
		return nil, fmt.Errorf("creating immediate command buffer: %w", err)
	}
	fence, err := dev.CreateFence("immediate", false)
	if err != nil {
		dev.DestroyCommandBuffer(cmd)
		return nil, fmt.Errorf("creating immediate fence: %w", err)
	}
	return &Immediate{dev: dev, rec: NewRecorder(cmd), fence: fence}, nil
}

// Submit records work into a fresh scope, submits it and blocks until
// it has completed on the GPU.
func (im *Immediate) Submit(work func(rec *Recorder)) error {
	im.rec.Begin()
	work(im.rec)
	im.rec.End()
	err := im.dev.Queue().Submit(&gpu.SubmitInfo{
		Commands: []gpu.CommandBuffer{im.rec.take()},
		Fence:    im.fence,
	})
	if err != nil {
		return fmt.Errorf("immediate submit: %w", err)
	}
	if err := im.dev.WaitFence(im.fence, 0); err != nil {
		return fmt.Errorf("immediate wait: %w", err)
	}
	return im.dev.ResetFence(im.fence)
}

// Destroy destroys the command buffer and fence. No submission may be pending.
func (im *Immediate) Destroy() {
	im.dev.DestroyFence(im.fence)
	im.dev.DestroyCommandBuffer(im.rec.cmd)
}
