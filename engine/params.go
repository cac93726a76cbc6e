// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/binary"
	"time"

	"cogentcore.org/vkframe/gpu"
	"github.com/chewxy/math32"
)

// ParamsSize is the size in bytes of [Params] as seen by the shaders.
const ParamsSize = 32

// Params are the per-frame values read by the compute shader from
// a uniform buffer (set 0, binding 1). The layout is std140.
type Params struct {

	// Tint is an animated color the gradient is modulated with.
	Tint [4]float32

	// Time is the time since the engine was initialized, in seconds.
	Time float32

	// Frame is the frame counter, truncated to 32 bits.
	Frame uint32

	// Size is the size of the off-screen render target.
	Size [2]uint32
}

// NewParams returns the parameters of the given frame.
func NewParams(frame uint64, elapsed time.Duration, size gpu.Extent2D) Params {
	t := float32(elapsed.Seconds())
	third := 2 * math32.Pi / 3
	return Params{
		Tint: [4]float32{
			0.5 + 0.5*math32.Sin(t),
			0.5 + 0.5*math32.Sin(t+third),
			0.5 + 0.5*math32.Sin(t+2*third),
			1,
		},
		Time:  t,
		Frame: uint32(frame),
		Size:  [2]uint32{size.Width, size.Height},
	}
}

// Bytes returns the std140 encoding of p.
func (p *Params) Bytes() []byte {
	b := make([]byte, ParamsSize)
	le := binary.LittleEndian
	for i, c := range p.Tint {
		le.PutUint32(b[4*i:], math32.Float32bits(c))
	}
	le.PutUint32(b[16:], math32.Float32bits(p.Time))
	le.PutUint32(b[20:], p.Frame)
	le.PutUint32(b[24:], p.Size[0])
	le.PutUint32(b[28:], p.Size[1])
	return b
}
