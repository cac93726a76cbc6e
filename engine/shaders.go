// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/binary"
	"fmt"
	"os"
)

//go:generate glslc -fshader-stage=compute --target-env=vulkan1.1 -O -o ../shaders/gradient.comp.spv ../shaders/gradient.comp
//go:generate glslc -fshader-stage=vertex --target-env=vulkan1.1 -O -o ../shaders/triangle.vert.spv ../shaders/triangle.vert
//go:generate glslc -fshader-stage=fragment --target-env=vulkan1.1 -O -o ../shaders/triangle.frag.spv ../shaders/triangle.frag

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// ShaderSet holds the SPIR-V code of the compute and graphics pipelines.
type ShaderSet struct {
	Compute  []byte
	Vertex   []byte
	Fragment []byte
}

// LoadShaders reads and checks the SPIR-V files named by paths.
func LoadShaders(paths ShaderPaths) (*ShaderSet, error) {
	ss := &ShaderSet{}
	for _, sh := range []struct {
		name string
		dst  *[]byte
	}{
		{paths.Compute, &ss.Compute},
		{paths.Vertex, &ss.Vertex},
		{paths.Fragment, &ss.Fragment},
	} {
		b, err := os.ReadFile(sh.name)
		if err != nil {
			return nil, fmt.Errorf("loading shader: %w", err)
		}
		if err := CheckSPIRV(b); err != nil {
			return nil, fmt.Errorf("shader %s: %w", sh.name, err)
		}
		*sh.dst = b
	}
	return ss, nil
}

// CheckSPIRV returns an error if b is not a SPIR-V module.
func CheckSPIRV(b []byte) error {
	if len(b) < 20 || len(b)%4 != 0 {
		return fmt.Errorf("%d bytes is not a whole SPIR-V module", len(b))
	}
	if m := binary.LittleEndian.Uint32(b); m != spirvMagic {
		return fmt.Errorf("bad SPIR-V magic %#08x", m)
	}
	return nil
}
