// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"fmt"
	"strings"

	"cogentcore.org/vkframe/gpu"
	vk "github.com/goki/vulkan"
)

// NewError returns the error for a Vulkan result code, or nil on success.
// Results with a [gpu] sentinel error map to that sentinel.
func NewError(ret vk.Result) error {
	switch ret {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return gpu.ErrSuboptimal
	case vk.ErrorOutOfDate:
		return gpu.ErrOutOfDate
	case vk.Timeout:
		return gpu.ErrTimeout
	case vk.ErrorDeviceLost:
		return gpu.ErrDeviceLost
	}
	return fmt.Errorf("vulkan error: %w (%d)", vk.Error(ret), ret)
}

// safeString returns s terminated with a NUL, as Vulkan expects.
func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
