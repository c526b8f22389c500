package pipeline

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
)

// Mode selects which pipeline a frame's draw calls bind, per §6's rendering
// modes exposed to the host.
type Mode int

const (
	ModeNormal Mode = iota
	ModeUV
	ModeWireframe
	ModeMeshShader
)

// Variant bundles one pipeline with the layout it was built against.
type Variant struct {
	Layout   vk.PipelineLayout
	Pipeline vk.Pipeline
}

// Set is the full pipeline collection Cardinal draws with: the shared render
// pass, the PBR pipeline, and the two debug pipelines (UV, wireframe), each
// built from the teacher's PipelineBuilder shape generalized with a real
// vertex input, depth testing, and descriptor set layouts the teacher's flat
// triangle demo never needed.
type Set struct {
	ctx *device.Context

	RenderPass vk.RenderPass
	Layouts    DescriptorSetLayouts

	PBR       Variant
	UV        Variant
	Wireframe Variant

	shaders map[Mode]ShaderSet
}

// BuildInfo names the SPIR-V files for each pipeline variant, resolved
// relative to CARDINAL_SHADERS_DIR.
type BuildInfo struct {
	PBRVert, PBRFrag             string
	UVVert, UVFrag               string
	WireframeVert, WireframeFrag string
}

// New builds the render pass and all three pipeline variants against it.
func New(ctx *device.Context, shadersDir string, info BuildInfo, colorFormat, depthFormat vk.Format, maxTextures uint32) (*Set, error) {
	if ctx.Properties.Limits.MaxPushConstantsSize < pushConstantSize {
		return nil, fmt.Errorf("pipeline: device only supports %d push-constant bytes, need %d",
			ctx.Properties.Limits.MaxPushConstantsSize, pushConstantSize)
	}

	renderPass, err := CreateRenderPass(ctx, colorFormat, depthFormat)
	if err != nil {
		return nil, err
	}

	layouts, err := CreateDescriptorSetLayouts(ctx, maxTextures)
	if err != nil {
		vk.DestroyRenderPass(ctx.Device, renderPass, nil)
		return nil, err
	}

	s := &Set{ctx: ctx, RenderPass: renderPass, Layouts: layouts, shaders: map[Mode]ShaderSet{}}

	pbrShaders, err := LoadShaderSet(ctx, shadersDir, info.PBRVert, info.PBRFrag)
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("pipeline: pbr shaders: %w", err)
	}
	s.shaders[ModeNormal] = pbrShaders
	s.PBR, err = s.build(pbrShaders, layouts.PBR, true, vk.PolygonModeFill)
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("pipeline: build pbr: %w", err)
	}

	uvShaders, err := LoadShaderSet(ctx, shadersDir, info.UVVert, info.UVFrag)
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("pipeline: uv shaders: %w", err)
	}
	s.shaders[ModeUV] = uvShaders
	s.UV, err = s.build(uvShaders, layouts.Simple, true, vk.PolygonModeFill)
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("pipeline: build uv: %w", err)
	}

	wireShaders, err := LoadShaderSet(ctx, shadersDir, info.WireframeVert, info.WireframeFrag)
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("pipeline: wireframe shaders: %w", err)
	}
	s.shaders[ModeWireframe] = wireShaders
	s.Wireframe, err = s.build(wireShaders, layouts.Simple, true, vk.PolygonModeLine)
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("pipeline: build wireframe: %w", err)
	}

	return s, nil
}

// build assembles one graphics pipeline against s.RenderPass, with a
// dynamic viewport/scissor (so window resize never requires a pipeline
// rebuild) and depth testing enabled — unlike the teacher's
// PipelineDepthStencilStateCreateInfo, which is created but left
// unconfigured.
func (s *Set) build(shaders ShaderSet, setLayout vk.DescriptorSetLayout, depthTest bool, polygonMode vk.PolygonMode) (Variant, error) {
	var layout vk.PipelineLayout
	pcRange := pushConstantRange()
	ret := vk.CreatePipelineLayout(s.ctx.Device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pcRange},
	}, nil, &layout)
	if ret != vk.Success {
		return Variant{}, fmt.Errorf("create pipeline layout: result %d", ret)
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(VertexBindingDescription())),
		PVertexBindingDescriptions:      VertexBindingDescription(),
		VertexAttributeDescriptionCount: uint32(len(VertexAttributeDescriptions())),
		PVertexAttributeDescriptions:    VertexAttributeDescriptions(),
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	// Viewport and scissor are dynamic: the swapchain's extent changes on
	// resize without forcing a pipeline rebuild, only a new Recreate().
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: polygonMode,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
		BlendEnable: vk.False,
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(depthTest),
		DepthWriteEnable:      vkBool(depthTest),
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             shaders.stages(),
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlend,
		PDepthStencilState:  &depthStencil,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          s.RenderPass,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	ret = vk.CreateGraphicsPipelines(s.ctx.Device, nil, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if ret != vk.Success {
		vk.DestroyPipelineLayout(s.ctx.Device, layout, nil)
		return Variant{}, fmt.Errorf("create graphics pipeline: result %d", ret)
	}

	return Variant{Layout: layout, Pipeline: pipelines[0]}, nil
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// ForMode returns the variant a frame in Mode m should bind. ModeMeshShader
// is always demoted to the PBR variant, whether or not mesh shading is
// advertised, since no mesh-shader pipeline is built, per §6
// ("a request to set this mode is rejected or silently demoted to normal").
func (s *Set) ForMode(m Mode, meshShaderSupported bool) Variant {
	switch m {
	case ModeUV:
		return s.UV
	case ModeWireframe:
		return s.Wireframe
	case ModeMeshShader:
		if meshShaderSupported {
			// No dedicated mesh-shader pipeline is built (§1 Non-goals: "mesh-
			// shader variants beyond a placeholder pipeline"); demote to PBR.
			return s.PBR
		}
		return s.PBR
	default:
		return s.PBR
	}
}

func (s *Set) Destroy() {
	destroyVariant := func(v Variant) {
		if v.Pipeline != nil {
			vk.DestroyPipeline(s.ctx.Device, v.Pipeline, nil)
		}
		if v.Layout != nil {
			vk.DestroyPipelineLayout(s.ctx.Device, v.Layout, nil)
		}
	}
	destroyVariant(s.PBR)
	destroyVariant(s.UV)
	destroyVariant(s.Wireframe)
	for _, sh := range s.shaders {
		sh.Destroy(s.ctx)
	}
	s.Layouts.Destroy(s.ctx)
	if s.RenderPass != nil {
		vk.DestroyRenderPass(s.ctx.Device, s.RenderPass, nil)
	}
}
