// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin

package vkgpu

import vk "github.com/goki/vulkan"

// enumeratePortability is VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR.
const enumeratePortability = 0x00000001

// platformDefaults adds the portability extensions MoltenVK needs.
func platformDefaults(gp *GPU) {
	gp.DeviceExts = append(gp.DeviceExts, "VK_KHR_portability_subset")
	gp.InstanceExts = append(gp.InstanceExts, vk.KhrGetPhysicalDeviceProperties2ExtensionName,
		vk.KhrPortabilityEnumerationExtensionName)
	gp.instanceFlags |= enumeratePortability
}
