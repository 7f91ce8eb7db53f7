package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
)

// pipeline is a graphics or compute pipeline and the signature it was
// built for.
type pipeline struct {
	dev       *Device
	label     string
	handle    vk.Pipeline
	signature *rootSignature
	bindPoint vk.PipelineBindPoint
}

var _ gpu.Pipeline = (*pipeline)(nil)

func (p *pipeline) Label() string { return p.label }

func (p *pipeline) Compute() bool {
	return p.bindPoint == vk.PipelineBindPointCompute
}

func (p *pipeline) Release() {
	if p.handle != nil {
		vk.DestroyPipeline(p.dev.handle, p.handle, nil)
		p.handle = nil
	}
}

// shaderModule wraps SPIR-V bytecode. The module can be destroyed once the
// pipeline is created.
func (d *Device) shaderModule(code gpu.Bytecode) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V of %d bytes", len(code))
	}
	var module vk.ShaderModule
	res := vk.CreateShaderModule(d.handle, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    shader.Words(code),
	}, nil, &module)
	if err := check("vkCreateShaderModule", res); err != nil {
		return nil, err
	}
	return module, nil
}

type stageModules struct {
	dev     *Device
	modules []vk.ShaderModule
	infos   []vk.PipelineShaderStageCreateInfo
}

func (s *stageModules) add(stage vk.ShaderStageFlagBits, src gpu.ShaderStage) error {
	module, err := s.dev.shaderModule(src.Bytecode)
	if err != nil {
		return err
	}
	s.modules = append(s.modules, module)
	s.infos = append(s.infos, vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: module,
		PName:  safeString(src.EntryPoint),
	})
	return nil
}

func (s *stageModules) release() {
	for _, m := range s.modules {
		vk.DestroyShaderModule(s.dev.handle, m, nil)
	}
}

func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	op := "graphics pipeline " + desc.Label
	sig, err := asSignature(desc.Signature)
	if err != nil {
		return nil, core.NewResourceCreationError(op, err)
	}
	if len(desc.RTVFormats) == 0 && desc.DSVFormat == gpu.FormatUnknown {
		return nil, core.NewResourceCreationError(op, errors.New("no render targets"))
	}
	rp, err := d.passes.compatible(desc.RTVFormats, desc.DSVFormat)
	if err != nil {
		return nil, err
	}

	stages := &stageModules{dev: d}
	defer stages.release()
	if err := stages.add(vk.ShaderStageVertexBit, desc.VS); err != nil {
		return nil, core.NewResourceCreationError(op+" vertex shader", err)
	}
	if desc.PS.Bytecode != nil {
		if err := stages.add(vk.ShaderStageFragmentBit, desc.PS); err != nil {
			return nil, core.NewResourceCreationError(op+" pixel shader", err)
		}
	}

	// Vertex input, one interleaved stream at binding 0.
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if len(desc.InputLayout) > 0 {
		attributes := make([]vk.VertexInputAttributeDescription, len(desc.InputLayout))
		for i, e := range desc.InputLayout {
			format := toFormat(e.Format)
			if format == vk.FormatUndefined {
				return nil, core.NewResourceCreationError(op, fmt.Errorf("input %s: unsupported format %s", e.Semantic, e.Format))
			}
			attributes[i] = vk.VertexInputAttributeDescription{
				Location: uint32(i),
				Binding:  0,
				Format:   format,
				Offset:   e.Offset,
			}
		}
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInput.PVertexAttributeDescriptions = attributes
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpAlways,
	}
	if desc.Depth.Test {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = toCompare(desc.Depth.Compare)
	}
	if desc.Depth.Write {
		depthStencil.DepthWriteEnable = vk.True
	}

	// Every target is written as is, integer targets cannot blend.
	blends := make([]vk.PipelineColorBlendAttachmentState, len(desc.RTVFormats))
	for i := range blends {
		blends[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable: vk.False,
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
		}
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}

	handles := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(d.handle, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages.infos)),
		PStages:           stages.infos,
		PVertexInputState: &vertexInput,
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
			CullMode:    toCull(desc.Cull),
			FrontFace:   vk.FrontFaceClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			MinSampleShading:     1.0,
		},
		PDepthStencilState: &depthStencil,
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: uint32(len(blends)),
			PAttachments:    blends,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		},
		Layout:            sig.pipelineLayout,
		RenderPass:        rp,
		Subpass:           0,
		BasePipelineIndex: -1,
	}}, nil, handles)
	if err := creation(op, "vkCreateGraphicsPipelines", res); err != nil {
		return nil, err
	}
	core.LogDebug("%s created", op)
	return &pipeline{dev: d, label: desc.Label, handle: handles[0], signature: sig, bindPoint: vk.PipelineBindPointGraphics}, nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	op := "compute pipeline " + desc.Label
	sig, err := asSignature(desc.Signature)
	if err != nil {
		return nil, core.NewResourceCreationError(op, err)
	}
	stages := &stageModules{dev: d}
	defer stages.release()
	if err := stages.add(vk.ShaderStageComputeBit, desc.CS); err != nil {
		return nil, core.NewResourceCreationError(op, err)
	}

	handles := make([]vk.Pipeline, 1)
	res := vk.CreateComputePipelines(d.handle, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{{
		SType:             vk.StructureTypeComputePipelineCreateInfo,
		Stage:             stages.infos[0],
		Layout:            sig.pipelineLayout,
		BasePipelineIndex: -1,
	}}, nil, handles)
	if err := creation(op, "vkCreateComputePipelines", res); err != nil {
		return nil, err
	}
	core.LogDebug("%s created", op)
	return &pipeline{dev: d, label: desc.Label, handle: handles[0], signature: sig, bindPoint: vk.PipelineBindPointCompute}, nil
}
