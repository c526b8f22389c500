package pipeline

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
)

// Bindings, per §4.10: binding 0 is the camera uniform buffer (vertex +
// fragment), binding 1 is the lighting buffer (fragment), binding 2 is the
// combined-image-sampler array (fragment). The UV/wireframe layouts only use
// binding 0.
const (
	bindingCamera   = 0
	bindingLighting = 1
	bindingTextures = 2
)

// CameraUniform is the binding-0 uniform buffer contents: view and projection
// matrices (column-major, already through mathx.VulkanProjection) plus the eye
// position used for specular terms.
type CameraUniform struct {
	View [16]float32
	Proj [16]float32
	Eye  [4]float32 // w unused, kept for std140 vec4 alignment
}

// LightingUniform is the binding-1 buffer: one directional light plus an
// ambient term, matching §4.10's "one directional light + ambient".
type LightingUniform struct {
	Direction [4]float32 // w unused
	Color     [4]float32 // w = intensity
	Ambient   [4]float32 // w unused
}

// PushConstants carries per-draw data that changes every mesh: the model
// matrix, material factors, and the texture-index table mapped by C11
// (base color, metallic-roughness, normal, occlusion), plus the
// supports_descriptor_indexing flag the fragment shader uses to decide
// whether it may index the sampler array dynamically or must branch on a
// fixed slot count. 144 bytes total: above the 128-byte range every
// conformant implementation guarantees, but within the 256 bytes desktop
// drivers commonly support in practice.
type PushConstants struct {
	Model                   [16]float32
	BaseColorFactor         [4]float32
	EmissiveAndMetallic     [4]float32 // xyz = emissive factor, w = metallic factor
	RoughnessAndOcclusion   [4]float32 // x = roughness factor, y = occlusion strength, zw unused
	TextureIndices          [4]int32   // baseColor, metallicRoughness, normal, occlusion; -1 = no texture
	SupportsDescriptorIndex int32
	_pad                    [3]int32
}

// pushConstantRange is the pipeline-layout range every Cardinal pipeline
// variant declares for PushConstants, visible to both shader stages since the
// vertex stage reads Model and the fragment stage reads the material fields.
func pushConstantRange() vk.PushConstantRange {
	return vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		Offset:     0,
		Size:       uint32(pushConstantSize),
	}
}

const pushConstantSize = 4 * (16 + 4 + 4 + 4 + 4 + 1 + 3)

// DescriptorSetLayouts holds the two layouts every pipeline variant binds
// against: pbr uses all three bindings, simple (UV/wireframe) only binding 0.
type DescriptorSetLayouts struct {
	PBR    vk.DescriptorSetLayout
	Simple vk.DescriptorSetLayout
}

// CreateDescriptorSetLayouts builds the PBR and simple-pipeline descriptor
// set layouts. maxTextures bounds the combined-image-sampler array's
// descriptor count.
func CreateDescriptorSetLayouts(ctx *device.Context, maxTextures uint32) (DescriptorSetLayouts, error) {
	cameraBinding := vk.DescriptorSetLayoutBinding{
		Binding:         bindingCamera,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}

	simple, err := createLayout(ctx, []vk.DescriptorSetLayoutBinding{cameraBinding})
	if err != nil {
		return DescriptorSetLayouts{}, fmt.Errorf("pipeline: simple descriptor layout: %w", err)
	}

	lightingBinding := vk.DescriptorSetLayoutBinding{
		Binding:         bindingLighting,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}
	texturesBinding := vk.DescriptorSetLayoutBinding{
		Binding:         bindingTextures,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: maxTextures,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}
	pbr, err := createLayout(ctx, []vk.DescriptorSetLayoutBinding{cameraBinding, lightingBinding, texturesBinding})
	if err != nil {
		vk.DestroyDescriptorSetLayout(ctx.Device, simple, nil)
		return DescriptorSetLayouts{}, fmt.Errorf("pipeline: pbr descriptor layout: %w", err)
	}

	return DescriptorSetLayouts{PBR: pbr, Simple: simple}, nil
}

func createLayout(ctx *device.Context, bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(ctx.Device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &layout)
	if ret != vk.Success {
		return nil, fmt.Errorf("result %d", ret)
	}
	return layout, nil
}

func (l DescriptorSetLayouts) Destroy(ctx *device.Context) {
	if l.PBR != nil {
		vk.DestroyDescriptorSetLayout(ctx.Device, l.PBR, nil)
	}
	if l.Simple != nil {
		vk.DestroyDescriptorSetLayout(ctx.Device, l.Simple, nil)
	}
}

// CreateDescriptorPool sizes a pool proportional to framesInFlight and
// maxTextures, per §4.10 ("descriptor pool sizing is proportional to the
// number of frames in flight and the maximum textures allowed"). One PBR set
// and one simple set are allocated per frame in flight.
func CreateDescriptorPool(ctx *device.Context, framesInFlight, maxTextures uint32) (vk.DescriptorPool, error) {
	sets := framesInFlight * 2 // one PBR set + one simple set per frame
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: framesInFlight * 2}, // camera: pbr+simple
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: framesInFlight},     // lighting: pbr only
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: framesInFlight * maxTextures},
	}

	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(ctx.Device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       sets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}, nil, &pool)
	if ret != vk.Success {
		return nil, fmt.Errorf("pipeline: create descriptor pool: result %d", ret)
	}
	return pool, nil
}
