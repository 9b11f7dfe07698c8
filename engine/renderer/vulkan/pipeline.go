package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// maxPushConstantRanges bounds the ranges of one layout. Only 128 bytes of
// push constants are guaranteed, at 4 byte alignment.
const maxPushConstantRanges = 32

var entryPoint = safeString("main")

func (d *Device) CreatePipelineLayout(desc gpu.PipelineLayoutDesc) (gpu.PipelineLayout, error) {
	if len(desc.PushConstants) > maxPushConstantRanges {
		return gpu.Null, fmt.Errorf("cannot have more than %d push constant ranges, got %d", maxPushConstantRanges, len(desc.PushConstants))
	}
	setLayouts := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		layout, ok := lookup(d, d.handles.setLayouts, uint64(l))
		if !ok {
			return gpu.Null, fmt.Errorf("pipeline layout set %d: %w", i, core.ErrUnknownHandle)
		}
		setLayouts[i] = layout
	}
	ranges := make([]vk.PushConstantRange, len(desc.PushConstants))
	for i, r := range desc.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: toShaderStage(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if err := check("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.device, &info, nil, &layout)); err != nil {
		return gpu.Null, err
	}
	return gpu.PipelineLayout(register(d, d.handles.pipeLayouts, layout)), nil
}

func (d *Device) stage(module gpu.ShaderModule, stage vk.ShaderStageFlagBits) (vk.PipelineShaderStageCreateInfo, error) {
	m, ok := lookup(d, d.handles.shaders, uint64(module))
	if !ok {
		return vk.PipelineShaderStageCreateInfo{}, fmt.Errorf("shader module %#x: %w", uint64(module), core.ErrUnknownHandle)
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: m,
		PName:  entryPoint,
	}, nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	layout, ok := lookup(d, d.handles.pipeLayouts, uint64(desc.Layout))
	if !ok {
		return gpu.Null, fmt.Errorf("compute pipeline layout: %w", core.ErrUnknownHandle)
	}
	stage, err := d.stage(desc.Shader, vk.ShaderStageComputeBit)
	if err != nil {
		return gpu.Null, err
	}
	info := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              stage,
		Layout:             layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := check("vkCreateComputePipelines", vk.CreateComputePipelines(d.device, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines)); err != nil {
		return gpu.Null, err
	}
	core.LogDebug("compute pipeline created")
	return gpu.Pipeline(register(d, d.handles.pipelines, pipelines[0])), nil
}

func blendAttachment(mode gpu.BlendMode) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
		ColorBlendOp: vk.BlendOpAdd,
		AlphaBlendOp: vk.BlendOpAdd,
	}
	switch mode {
	case gpu.BlendAlpha:
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorZero
	case gpu.BlendAdditive:
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOne
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorZero
	default:
		state.BlendEnable = vk.False
	}
	return state
}

// CreateGraphicsPipeline builds a pipeline for dynamic rendering. Vertices
// are pulled from buffers through device addresses, so there is no vertex
// input state. Viewport and scissor are dynamic.
func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	layout, ok := lookup(d, d.handles.pipeLayouts, uint64(desc.Layout))
	if !ok {
		return gpu.Null, fmt.Errorf("graphics pipeline layout: %w", core.ErrUnknownHandle)
	}
	vert, err := d.stage(desc.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return gpu.Null, err
	}
	frag, err := d.stage(desc.FragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		return gpu.Null, err
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	// The projection flips Y, which keeps counter-clockwise winding
	// counter-clockwise in framebuffer space.
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                toCullMode(desc.Cull),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  vk.SampleCount1Bit,
		SampleShadingEnable:   vk.False,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthCompareOp:        vk.CompareOpNever,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = toCompareOp(desc.DepthCompare)
	}
	if desc.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment(desc.Blend)},
	}
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    1,
		PColorAttachmentFormats: []vk.Format{toFormat(desc.ColorFormat)},
		DepthAttachmentFormat:   toFormat(desc.DepthFormat),
		StencilAttachmentFormat: vk.FormatUndefined,
	}
	cRenderingInfo, _ := renderingInfo.PassRef()
	defer renderingInfo.Free()

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(cRenderingInfo),
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vert, frag},
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          vk.NullRenderPass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := check("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(d.device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)); err != nil {
		return gpu.Null, err
	}
	core.LogDebug("graphics pipeline created")
	return gpu.Pipeline(register(d, d.handles.pipelines, pipelines[0])), nil
}
