// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"cogentcore.org/vkframe/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	p := NewParams(7, 0, gpu.Extent2D{Width: 640, Height: 480})
	assert.Equal(t, uint32(7), p.Frame)
	assert.Zero(t, p.Time)
	assert.InDelta(t, 0.5, p.Tint[0], 1e-6)
	assert.Equal(t, float32(1), p.Tint[3])
	for _, c := range p.Tint {
		assert.GreaterOrEqual(t, c, float32(0))
		assert.LessOrEqual(t, c, float32(1))
	}

	p = NewParams(1<<32+3, 1500*time.Millisecond, gpu.Extent2D{Width: 640, Height: 480})
	assert.Equal(t, uint32(3), p.Frame)
	assert.InDelta(t, 1.5, p.Time, 1e-6)
}

func TestParamsBytes(t *testing.T) {
	p := NewParams(9, 2*time.Second, gpu.Extent2D{Width: 320, Height: 200})
	b := p.Bytes()
	require.Len(t, b, ParamsSize)
	le := binary.LittleEndian
	assert.Equal(t, p.Tint[1], math.Float32frombits(le.Uint32(b[4:])))
	assert.Equal(t, float32(2), math.Float32frombits(le.Uint32(b[16:])))
	assert.Equal(t, uint32(9), le.Uint32(b[20:]))
	assert.Equal(t, uint32(320), le.Uint32(b[24:]))
	assert.Equal(t, uint32(200), le.Uint32(b[28:]))
}
