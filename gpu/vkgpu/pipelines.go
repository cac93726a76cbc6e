// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"cogentcore.org/vkframe/gpu"
	vk "github.com/goki/vulkan"
)

// Pipeline implements [gpu.Pipeline]. It owns its layout and, for
// compute pipelines, a descriptor pool with the one set the resources
// of the descriptor are bound through.
type Pipeline struct {
	label     string
	bind      gpu.BindPoint
	pipeline  vk.Pipeline
	layout    vk.PipelineLayout
	setLayout vk.DescriptorSetLayout
	pool      vk.DescriptorPool
	set       vk.DescriptorSet
}

func (p *Pipeline) Label() string            { return p.label }
func (p *Pipeline) BindPoint() gpu.BindPoint { return p.bind }

func (dv *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gp gpu.Pipeline, err error) {
	p := &Pipeline{label: desc.Label, bind: gpu.BindCompute}
	defer func() {
		if err != nil {
			dv.DestroyPipeline(p)
			err = fmt.Errorf("creating compute pipeline %s: %w", desc.Label, err)
		}
	}()
	if err = dv.makeDescriptorSet(p, desc.StorageImages, desc.UniformBuffers); err != nil {
		return nil, err
	}
	if err = dv.makeLayout(p); err != nil {
		return nil, err
	}
	module, err := dv.shaderModule(desc.Code)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(dv.Device, module, nil)

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateComputePipelines(dv.Device, nil, 1, []vk.ComputePipelineCreateInfo{{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Layout: p.layout,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module,
			PName:  safeString("main"),
		},
	}}, nil, pipelines)
	if err = NewError(ret); err != nil {
		return nil, err
	}
	p.pipeline = pipelines[0]
	return p, nil
}

func (dv *Device) CreateGraphicsPipeline(desc *gpu.GraphicsPipelineDescriptor) (gp gpu.Pipeline, err error) {
	p := &Pipeline{label: desc.Label, bind: gpu.BindGraphics}
	defer func() {
		if err != nil {
			dv.DestroyPipeline(p)
			err = fmt.Errorf("creating graphics pipeline %s: %w", desc.Label, err)
		}
	}()
	if err = dv.makeLayout(p); err != nil {
		return nil, err
	}
	rp, err := dv.renderPass(desc.ColorFormat, gpu.LoadOpLoad)
	if err != nil {
		return nil, err
	}
	vert, err := dv.shaderModule(desc.VertexCode)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(dv.Device, vert, nil)
	frag, err := dv.shaderModule(desc.FragmentCode)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(dv.Device, frag, nil)

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(dv.Device, nil, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: 2,
		PStages: []vk.PipelineShaderStageCreateInfo{
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageVertexBit,
				Module: vert,
				PName:  safeString("main"),
			},
			{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageFragmentBit,
				Module: frag,
				PName:  safeString("main"),
			},
		},
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: colorBlend(desc.Blend),
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
		},
		Layout:     p.layout,
		RenderPass: rp,
	}}, nil, pipelines)
	if err = NewError(ret); err != nil {
		return nil, err
	}
	p.pipeline = pipelines[0]
	return p, nil
}

// colorBlend returns premultiplied alpha blending, or none.
func colorBlend(alphaBlend bool) *vk.PipelineColorBlendStateCreateInfo {
	cb := vk.PipelineColorBlendAttachmentState{ColorWriteMask: 0xF}
	if alphaBlend {
		cb.BlendEnable = vk.True
		cb.SrcColorBlendFactor = vk.BlendFactorOne
		cb.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		cb.ColorBlendOp = vk.BlendOpAdd
		cb.SrcAlphaBlendFactor = vk.BlendFactorOne
		cb.DstAlphaBlendFactor = vk.BlendFactorZero
		cb.AlphaBlendOp = vk.BlendOpAdd
	}
	return &vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{cb},
	}
}

func (dv *Device) DestroyPipeline(gp gpu.Pipeline) {
	p := gp.(*Pipeline)
	if p.pipeline != nil {
		vk.DestroyPipeline(dv.Device, p.pipeline, nil)
		p.pipeline = nil
	}
	if p.layout != nil {
		vk.DestroyPipelineLayout(dv.Device, p.layout, nil)
		p.layout = nil
	}
	if p.pool != nil {
		vk.DestroyDescriptorPool(dv.Device, p.pool, nil)
		p.pool = nil
		p.set = nil
	}
	if p.setLayout != nil {
		vk.DestroyDescriptorSetLayout(dv.Device, p.setLayout, nil)
		p.setLayout = nil
	}
}

// makeDescriptorSet creates the set layout, pool and set of p and
// writes the images and buffers into it: storage images at bindings
// 0..n-1 in the general layout, then the uniform buffers.
func (dv *Device) makeDescriptorSet(p *Pipeline, images []gpu.Image, buffers []gpu.Buffer) error {
	var binds []vk.DescriptorSetLayoutBinding
	var writes []vk.WriteDescriptorSet
	var sizes []vk.DescriptorPoolSize
	add := func(typ vk.DescriptorType, n int) {
		if n > 0 {
			sizes = append(sizes, vk.DescriptorPoolSize{Type: typ, DescriptorCount: uint32(n)})
		}
	}
	for _, gi := range images {
		b := uint32(len(binds))
		binds = append(binds, vk.DescriptorSetLayoutBinding{
			Binding:         b,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		})
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstBinding:      b,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageView:   gi.(*Image).view,
				ImageLayout: vk.ImageLayoutGeneral,
			}},
		})
	}
	for _, gb := range buffers {
		b := uint32(len(binds))
		binds = append(binds, vk.DescriptorSetLayoutBinding{
			Binding:         b,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		})
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstBinding:      b,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: gb.(*Buffer).buffer,
				Range:  vk.DeviceSize(vk.WholeSize),
			}},
		})
	}
	add(vk.DescriptorTypeStorageImage, len(images))
	add(vk.DescriptorTypeUniformBuffer, len(buffers))

	var setLayout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(dv.Device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(binds)),
		PBindings:    binds,
	}, nil, &setLayout)
	if err := NewError(ret); err != nil {
		return err
	}
	p.setLayout = setLayout
	if len(binds) == 0 {
		return nil
	}

	var pool vk.DescriptorPool
	ret = vk.CreateDescriptorPool(dv.Device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if err := NewError(ret); err != nil {
		return err
	}
	p.pool = pool

	var set vk.DescriptorSet
	ret = vk.AllocateDescriptorSets(dv.Device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{setLayout},
	}, &set)
	if err := NewError(ret); err != nil {
		return err
	}
	p.set = set
	for i := range writes {
		writes[i].DstSet = set
	}
	vk.UpdateDescriptorSets(dv.Device, uint32(len(writes)), writes, 0, nil)
	return nil
}

// makeLayout creates the pipeline layout of p, with its descriptor
// set layout if it has one.
func (dv *Device) makeLayout(p *Pipeline) error {
	info := &vk.PipelineLayoutCreateInfo{SType: vk.StructureTypePipelineLayoutCreateInfo}
	if p.setLayout != nil {
		info.SetLayoutCount = 1
		info.PSetLayouts = []vk.DescriptorSetLayout{p.setLayout}
	}
	var layout vk.PipelineLayout
	if err := NewError(vk.CreatePipelineLayout(dv.Device, info, nil, &layout)); err != nil {
		return err
	}
	p.layout = layout
	return nil
}

func (dv *Device) shaderModule(code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.New("missing or truncated SPIR-V code")
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(dv.Device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	return module, nil
}

// sliceUint32 reinterprets SPIR-V bytes as words.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

type renderPassKey struct {
	format gpu.Format
	load   gpu.LoadOp
}

// renderPass returns the cached render pass for one color attachment
// of the given format that starts and ends in the color attachment
// layout. Layout changes are left to explicit barriers.
func (dv *Device) renderPass(format gpu.Format, load gpu.LoadOp) (vk.RenderPass, error) {
	key := renderPassKey{format, load}
	if rp, ok := dv.renderPasses[key]; ok {
		return rp, nil
	}
	var rp vk.RenderPass
	ret := vk.CreateRenderPass(dv.Device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments: []vk.AttachmentDescription{{
			Format:         vk.Format(format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOp(load),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		}},
		SubpassCount: 1,
		PSubpasses: []vk.SubpassDescription{{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: 1,
			PColorAttachments: []vk.AttachmentReference{{
				Attachment: 0,
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}},
		}},
	}, nil, &rp)
	if err := NewError(ret); err != nil {
		return nil, fmt.Errorf("creating render pass for %s: %w", format, err)
	}
	dv.renderPasses[key] = rp
	return rp, nil
}

// framebuffer returns the framebuffer of im for render pass rp,
// creating it on first use.
func (dv *Device) framebuffer(im *Image, rp vk.RenderPass) (vk.Framebuffer, error) {
	if fb, ok := im.framebuffers[rp]; ok {
		return fb, nil
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(dv.Device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{im.view},
		Width:           im.extent.Width,
		Height:          im.extent.Height,
		Layers:          1,
	}, nil, &fb)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	if im.framebuffers == nil {
		im.framebuffers = make(map[vk.RenderPass]vk.Framebuffer)
	}
	im.framebuffers[rp] = fb
	return fb, nil
}
