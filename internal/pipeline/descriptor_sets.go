package pipeline

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
)

// FrameDescriptors holds the one PBR set and one simple (UV/wireframe) set
// allocated for a single frame-in-flight slot, grounded on the daoshengmu
// gltf renderer's per-swapchain-image descriptor set array.
type FrameDescriptors struct {
	PBR    vk.DescriptorSet
	Simple vk.DescriptorSet
}

// AllocatePerFrame allocates one FrameDescriptors per frame in flight from
// pool.
func AllocatePerFrame(ctx *device.Context, pool vk.DescriptorPool, layouts DescriptorSetLayouts, framesInFlight int) ([]FrameDescriptors, error) {
	out := make([]FrameDescriptors, framesInFlight)
	for i := 0; i < framesInFlight; i++ {
		pbr, err := allocateSet(ctx, pool, layouts.PBR)
		if err != nil {
			return nil, fmt.Errorf("pipeline: allocate pbr descriptor set %d: %w", i, err)
		}
		simple, err := allocateSet(ctx, pool, layouts.Simple)
		if err != nil {
			return nil, fmt.Errorf("pipeline: allocate simple descriptor set %d: %w", i, err)
		}
		out[i] = FrameDescriptors{PBR: pbr, Simple: simple}
	}
	return out, nil
}

func allocateSet(ctx *device.Context, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(ctx.Device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &set)
	if ret != vk.Success {
		return nil, fmt.Errorf("result %d", ret)
	}
	return set, nil
}

// UpdateSimple binds the camera uniform buffer to a UV/wireframe descriptor
// set's binding 0.
func UpdateSimple(ctx *device.Context, set vk.DescriptorSet, cameraBuf vk.Buffer, cameraSize vk.DeviceSize) {
	vk.UpdateDescriptorSets(ctx.Device, 1, []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      bindingCamera,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{{Buffer: cameraBuf, Offset: 0, Range: cameraSize}},
		},
	}, 0, nil)
}

// UpdatePBR binds the camera and lighting uniform buffers plus the full
// texture-view array (sampler shared across all of them, per §4.11) to a PBR
// descriptor set's three bindings. Index 0 of views is always the 1x1
// placeholder texture C11 keeps resident.
func UpdatePBR(ctx *device.Context, set vk.DescriptorSet, cameraBuf vk.Buffer, cameraSize vk.DeviceSize,
	lightingBuf vk.Buffer, lightingSize vk.DeviceSize, views []vk.ImageView, sampler vk.Sampler) {

	imageInfos := make([]vk.DescriptorImageInfo, len(views))
	for i, v := range views {
		imageInfos[i] = vk.DescriptorImageInfo{
			Sampler:     sampler,
			ImageView:   v,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      bindingCamera,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{{Buffer: cameraBuf, Offset: 0, Range: cameraSize}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      bindingLighting,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{{Buffer: lightingBuf, Offset: 0, Range: lightingSize}},
		},
	}
	if len(imageInfos) > 0 {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      bindingTextures,
			DescriptorCount: uint32(len(imageInfos)),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      imageInfos,
		})
	}

	vk.UpdateDescriptorSets(ctx.Device, uint32(len(writes)), writes, 0, nil)
}
