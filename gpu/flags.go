// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"strings"
)

// PipelineStages is a set of pipeline stages used as the source or
// destination scope of a barrier or a semaphore wait.
// Bit values match VkPipelineStageFlagBits.
type PipelineStages uint32

const (
	StageTopOfPipe              PipelineStages = 0x00000001
	StageDrawIndirect           PipelineStages = 0x00000002
	StageVertexInput            PipelineStages = 0x00000004
	StageVertexShader           PipelineStages = 0x00000008
	StageFragmentShader         PipelineStages = 0x00000080
	StageEarlyFragmentTests     PipelineStages = 0x00000100
	StageLateFragmentTests      PipelineStages = 0x00000200
	StageColorAttachmentOutput  PipelineStages = 0x00000400
	StageComputeShader          PipelineStages = 0x00000800
	StageTransfer               PipelineStages = 0x00001000
	StageBottomOfPipe           PipelineStages = 0x00002000
	StageHost                   PipelineStages = 0x00004000
	StageAllGraphics            PipelineStages = 0x00008000
	StageAllCommands            PipelineStages = 0x00010000
)

// graphicsStages are the stages included in StageAllGraphics.
const graphicsStages = StageTopOfPipe | StageDrawIndirect | StageVertexInput | StageVertexShader |
	StageFragmentShader | StageEarlyFragmentTests | StageLateFragmentTests |
	StageColorAttachmentOutput

var stageNames = []struct {
	bit  PipelineStages
	name string
}{
	{StageTopOfPipe, "TopOfPipe"},
	{StageDrawIndirect, "DrawIndirect"},
	{StageVertexInput, "VertexInput"},
	{StageVertexShader, "VertexShader"},
	{StageFragmentShader, "FragmentShader"},
	{StageEarlyFragmentTests, "EarlyFragmentTests"},
	{StageLateFragmentTests, "LateFragmentTests"},
	{StageColorAttachmentOutput, "ColorAttachmentOutput"},
	{StageComputeShader, "ComputeShader"},
	{StageTransfer, "Transfer"},
	{StageBottomOfPipe, "BottomOfPipe"},
	{StageHost, "Host"},
	{StageAllGraphics, "AllGraphics"},
	{StageAllCommands, "AllCommands"},
}

// Has returns whether all bits of o are set in s.
func (s PipelineStages) Has(o PipelineStages) bool {
	return s&o == o
}

// expand replaces the AllCommands and AllGraphics meta stages
// with the concrete stages they stand for.
func (s PipelineStages) expand() PipelineStages {
	if s.Has(StageAllCommands) {
		return ^PipelineStages(0)
	}
	if s.Has(StageAllGraphics) {
		s |= graphicsStages
	}
	return s
}

// Covers returns whether a barrier with source scope s waits for
// all work executing in stages o. AllCommands covers everything and
// AllGraphics covers every graphics stage. BottomOfPipe as a
// source scope covers all stages that logically precede it.
// TopOfPipe and BottomOfPipe in o perform no work and need no cover.
func (s PipelineStages) Covers(o PipelineStages) bool {
	o &^= StageTopOfPipe | StageBottomOfPipe
	if o == 0 {
		return true
	}
	if s.Has(StageBottomOfPipe) {
		return true
	}
	return s.expand().Has(o.expand() &^ (StageAllCommands | StageAllGraphics))
}

// ChainsAfter returns whether a barrier with source scope s is ordered
// after a semaphore wait whose destination scope is wait. TopOfPipe
// names no work as a source scope but all work as a destination
// scope, and the reverse holds for BottomOfPipe.
func (s PipelineStages) ChainsAfter(wait PipelineStages) bool {
	first := s &^ StageTopOfPipe
	if first.Has(StageBottomOfPipe) {
		first = StageAllCommands
	}
	second := wait &^ StageBottomOfPipe
	if second.Has(StageTopOfPipe) {
		second = StageAllCommands
	}
	return first.expand()&second.expand() != 0
}

func (s PipelineStages) String() string {
	if s == 0 {
		return "None"
	}
	var parts []string
	for _, sn := range stageNames {
		if s&sn.bit != 0 {
			parts = append(parts, sn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Access is a set of memory access types used in barriers.
// Bit values match VkAccessFlagBits.
type Access uint32

const (
	AccessIndirectCommandRead         Access = 0x00000001
	AccessIndexRead                   Access = 0x00000002
	AccessVertexAttributeRead         Access = 0x00000004
	AccessUniformRead                 Access = 0x00000008
	AccessInputAttachmentRead         Access = 0x00000010
	AccessShaderRead                  Access = 0x00000020
	AccessShaderWrite                 Access = 0x00000040
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
	AccessHostRead                    Access = 0x00002000
	AccessHostWrite                   Access = 0x00004000
	AccessMemoryRead                  Access = 0x00008000
	AccessMemoryWrite                 Access = 0x00010000

	// AccessWrites is every access type that writes memory.
	AccessWrites = AccessShaderWrite | AccessColorAttachmentWrite | AccessDepthStencilAttachmentWrite |
		AccessTransferWrite | AccessHostWrite | AccessMemoryWrite
)

var accessNames = []struct {
	bit  Access
	name string
}{
	{AccessIndirectCommandRead, "IndirectCommandRead"},
	{AccessIndexRead, "IndexRead"},
	{AccessVertexAttributeRead, "VertexAttributeRead"},
	{AccessUniformRead, "UniformRead"},
	{AccessInputAttachmentRead, "InputAttachmentRead"},
	{AccessShaderRead, "ShaderRead"},
	{AccessShaderWrite, "ShaderWrite"},
	{AccessColorAttachmentRead, "ColorAttachmentRead"},
	{AccessColorAttachmentWrite, "ColorAttachmentWrite"},
	{AccessDepthStencilAttachmentRead, "DepthStencilAttachmentRead"},
	{AccessDepthStencilAttachmentWrite, "DepthStencilAttachmentWrite"},
	{AccessTransferRead, "TransferRead"},
	{AccessTransferWrite, "TransferWrite"},
	{AccessHostRead, "HostRead"},
	{AccessHostWrite, "HostWrite"},
	{AccessMemoryRead, "MemoryRead"},
	{AccessMemoryWrite, "MemoryWrite"},
}

// Has returns whether all bits of o are set in a.
func (a Access) Has(o Access) bool {
	return a&o == o
}

// Writes returns only the write bits of a.
func (a Access) Writes() Access {
	return a & AccessWrites
}

// Covers returns whether a source access scope a makes all writes
// in o available. MemoryWrite covers every write.
func (a Access) Covers(o Access) bool {
	w := o.Writes()
	if w == 0 || a.Has(AccessMemoryWrite) {
		return true
	}
	return a.Has(w)
}

func (a Access) String() string {
	if a == 0 {
		return "None"
	}
	var parts []string
	for _, an := range accessNames {
		if a&an.bit != 0 {
			parts = append(parts, an.name)
		}
	}
	return strings.Join(parts, "|")
}

// ImageLayout is the memory layout of an image.
// Values match VkImageLayout.
type ImageLayout int32

const (
	LayoutUndefined                     ImageLayout = 0
	LayoutGeneral                       ImageLayout = 1
	LayoutColorAttachmentOptimal        ImageLayout = 2
	LayoutDepthStencilAttachmentOptimal ImageLayout = 3
	LayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	LayoutShaderReadOnlyOptimal         ImageLayout = 5
	LayoutTransferSrcOptimal            ImageLayout = 6
	LayoutTransferDstOptimal            ImageLayout = 7
	LayoutPreinitialized                ImageLayout = 8
	LayoutPresentSrc                    ImageLayout = 1000001002
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutGeneral:
		return "General"
	case LayoutColorAttachmentOptimal:
		return "ColorAttachmentOptimal"
	case LayoutDepthStencilAttachmentOptimal:
		return "DepthStencilAttachmentOptimal"
	case LayoutDepthStencilReadOnlyOptimal:
		return "DepthStencilReadOnlyOptimal"
	case LayoutShaderReadOnlyOptimal:
		return "ShaderReadOnlyOptimal"
	case LayoutTransferSrcOptimal:
		return "TransferSrcOptimal"
	case LayoutTransferDstOptimal:
		return "TransferDstOptimal"
	case LayoutPreinitialized:
		return "Preinitialized"
	case LayoutPresentSrc:
		return "PresentSrc"
	}
	return fmt.Sprintf("ImageLayout(%d)", int32(l))
}

// Format is a pixel format. Values match VkFormat.
type Format int32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16G16B16A16Sfloat Format = 97
	FormatR32G32B32A32Sfloat Format = 109
)

var formatNames = map[Format]string{
	FormatUndefined:          "undefined",
	FormatR8G8B8A8Unorm:      "rgba8",
	FormatR8G8B8A8Srgb:       "rgba8-srgb",
	FormatB8G8R8A8Unorm:      "bgra8",
	FormatB8G8R8A8Srgb:       "bgra8-srgb",
	FormatR16G16B16A16Sfloat: "rgba16f",
	FormatR32G32B32A32Sfloat: "rgba32f",
}

func (f Format) String() string {
	if nm, ok := formatNames[f]; ok {
		return nm
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

// MarshalText implements [encoding.TextMarshaler].
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler], accepting
// the short names returned by [Format.String].
func (f *Format) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for fv, nm := range formatNames {
		if nm == s {
			*f = fv
			return nil
		}
	}
	return fmt.Errorf("gpu: unknown format %q", s)
}

// ImageUsage is a set of image usages. Values match VkImageUsageFlagBits.
type ImageUsage uint32

const (
	ImageUsageTransferSrc     ImageUsage = 0x01
	ImageUsageTransferDst     ImageUsage = 0x02
	ImageUsageSampled         ImageUsage = 0x04
	ImageUsageStorage         ImageUsage = 0x08
	ImageUsageColorAttachment ImageUsage = 0x10
)

// BufferUsage is a set of buffer usages. Values match VkBufferUsageFlagBits.
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x01
	BufferUsageTransferDst BufferUsage = 0x02
	BufferUsageUniform     BufferUsage = 0x10
	BufferUsageStorage     BufferUsage = 0x20
)

// Filter is the sampling filter used by blits.
type Filter int32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

// LoadOp specifies what happens to attachment contents when
// a rendering scope begins.
type LoadOp int32

const (
	// LoadOpLoad preserves the existing contents.
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

// BindPoint is the kind of pipeline.
type BindPoint int32

const (
	BindGraphics BindPoint = 0
	BindCompute  BindPoint = 1
)

func (b BindPoint) String() string {
	if b == BindCompute {
		return "compute"
	}
	return "graphics"
}
