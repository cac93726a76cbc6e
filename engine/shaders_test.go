// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirv(words int) []byte {
	b := make([]byte, 4*words)
	binary.LittleEndian.PutUint32(b, spirvMagic)
	return b
}

func TestCheckSPIRV(t *testing.T) {
	assert.NoError(t, CheckSPIRV(spirv(5)))
	assert.Error(t, CheckSPIRV(spirv(4)))
	assert.Error(t, CheckSPIRV(append(spirv(5), 0)))
	assert.Error(t, CheckSPIRV(make([]byte, 20)))
}

func TestLoadShaders(t *testing.T) {
	dir := t.TempDir()
	paths := ShaderPaths{
		Compute:  filepath.Join(dir, "c.spv"),
		Vertex:   filepath.Join(dir, "v.spv"),
		Fragment: filepath.Join(dir, "f.spv"),
	}
	for i, f := range []string{paths.Compute, paths.Vertex, paths.Fragment} {
		require.NoError(t, os.WriteFile(f, spirv(5+i), 0666))
	}
	ss, err := LoadShaders(paths)
	require.NoError(t, err)
	assert.Len(t, ss.Compute, 20)
	assert.Len(t, ss.Vertex, 24)
	assert.Len(t, ss.Fragment, 28)

	require.NoError(t, os.WriteFile(paths.Vertex, []byte("not spirv, not at all"), 0666))
	_, err = LoadShaders(paths)
	assert.ErrorContains(t, err, "v.spv")

	paths.Fragment = filepath.Join(dir, "missing.spv")
	_, err = LoadShaders(paths)
	assert.Error(t, err)
}

func TestComputeShaderLayout(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("..", "shaders", "gradient.comp"))
	require.NoError(t, err)
	src := string(b)
	assert.Contains(t, src, fmt.Sprintf("local_size_x = %d, local_size_y = %d", Workgroup, Workgroup))
	assert.Contains(t, src, fmt.Sprintf("binding = 0, %s)", TargetFormat))
}
