// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"os"

	"cogentcore.org/core/cli"
	"github.com/pelletier/go-toml/v2"
)

// Config has the settings of an [Engine]. Its default values are given
// by the default struct tags.
type Config struct {

	// RenderScale scales the surface size to get the size of the
	// off-screen render target.
	RenderScale float32 `toml:"render_scale" default:"1"`

	// FenceTimeoutMS bounds each wait for a frame slot, in milliseconds.
	// A GPU that does not finish a frame in time is a fatal error.
	// Zero waits forever.
	FenceTimeoutMS int `toml:"fence_timeout_ms"`

	// Shaders are the SPIR-V files of the pipelines. The compute shader
	// must write a [TargetFormat] storage image with a [Workgroup]
	// square local size.
	Shaders ShaderPaths `toml:"shaders"`
}

// ShaderPaths are the file names of the compiled shaders.
type ShaderPaths struct {
	Compute  string `toml:"compute" default:"shaders/gradient.comp.spv"`
	Vertex   string `toml:"vertex" default:"shaders/triangle.vert.spv"`
	Fragment string `toml:"fragment" default:"shaders/triangle.frag.spv"`
}

// Defaults resets c to the values of its default tags.
func (c *Config) Defaults() {
	*c = Config{}
	cli.SetFromDefaults(c)
}

// Validate checks that the values are usable.
func (c *Config) Validate() error {
	if c.RenderScale <= 0 || c.RenderScale > 4 {
		return fmt.Errorf("render_scale %g is out of range (0, 4]", c.RenderScale)
	}
	if c.FenceTimeoutMS < 0 {
		return fmt.Errorf("fence_timeout_ms %d is negative", c.FenceTimeoutMS)
	}
	return nil
}

// OpenConfig sets c to its defaults and then applies the given TOML file.
func OpenConfig(c *Config, file string) error {
	c.Defaults()
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return ReadConfig(c, b)
}

// ReadConfig applies the TOML data b on top of the current values of c.
func ReadConfig(c *Config, b []byte) error {
	if err := toml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return c.Validate()
}

// SaveConfig writes c to the given file as TOML.
func SaveConfig(c *Config, file string) error {
	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(file, b, 0666)
}
