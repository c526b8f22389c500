// Package texture implements component C11: the placeholder texture, shared
// sampler, and content-hashed material cache described in spec §4.11.
// Grounded on the teacher's context.go (Texture struct, Destroy/DestroyImage)
// and the daoshengmu-vulkan-gltf renderer's CreateTexture/sampler-creation
// pattern, generalized from linear-tiled host-visible images to a device-local
// image uploaded through a staging buffer via commands.Uploader.
package texture

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/commands"
	"github.com/markusmaurer/cardinal/internal/device"
	"github.com/markusmaurer/cardinal/internal/memalloc"
)

// Texture is one device-local sampled image plus its view. Index 0 in a
// Cache is always the 1x1 opaque-white placeholder.
type Texture struct {
	image  *memalloc.Image
	View   vk.ImageView
	Width  uint32
	Height uint32
}

// NoTextureIndex is the sentinel a material's texture-index table uses when
// the importer recorded no texture for that slot, per §4.11 ("a missing
// texture resolves to 'no texture' ... so the shader falls back to the
// material factors").
const NoTextureIndex int32 = -1

const placeholderFormat = vk.FormatR8g8b8a8Unorm

// Cache owns every resident texture, a single shared sampler, and the
// placeholder always at index 0.
type Cache struct {
	ctx      *device.Context
	alloc    *memalloc.Allocator
	uploader *commands.Uploader

	Sampler  vk.Sampler
	textures []*Texture
}

// New creates the shared sampler (trilinear filtering, anisotropy enabled
// when the device reports it) and the 1x1 opaque-white placeholder at
// index 0.
func New(ctx *device.Context, alloc *memalloc.Allocator, uploader *commands.Uploader) (*Cache, error) {
	sampler, err := createSampler(ctx)
	if err != nil {
		return nil, err
	}
	c := &Cache{ctx: ctx, alloc: alloc, uploader: uploader, Sampler: sampler}

	placeholder, err := c.upload([]byte{0xff, 0xff, 0xff, 0xff}, 1, 1)
	if err != nil {
		vk.DestroySampler(ctx.Device, sampler, nil)
		return nil, fmt.Errorf("texture: create placeholder: %w", err)
	}
	c.textures = append(c.textures, placeholder)
	return c, nil
}

func createSampler(ctx *device.Context) (vk.Sampler, error) {
	anisotropyEnabled := vk.False
	maxAnisotropy := float32(1.0)
	if ctx.Properties.Limits.MaxSamplerAnisotropy > 1.0 {
		anisotropyEnabled = vk.True
		maxAnisotropy = ctx.Properties.Limits.MaxSamplerAnisotropy
	}

	var sampler vk.Sampler
	ret := vk.CreateSampler(ctx.Device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        anisotropyEnabled,
		MaxAnisotropy:           maxAnisotropy,
		CompareOp:               vk.CompareOpNever,
		BorderColor:             vk.BorderColorFloatOpaqueWhite,
		UnnormalizedCoordinates: vk.False,
	}, nil, &sampler)
	if ret != vk.Success {
		return nil, fmt.Errorf("texture: create sampler: result %d", ret)
	}
	return sampler, nil
}

// Add uploads rgba (tightly packed, 4 bytes/pixel) as a new texture and
// returns its index (>= 1; index 0 is always the placeholder). The returned
// index, incremented by the importer's raw texture index per §4.11, is what
// a material's push-constant texture-index table stores.
func (c *Cache) Add(rgba []byte, width, height uint32) (int32, error) {
	tex, err := c.upload(rgba, width, height)
	if err != nil {
		return NoTextureIndex, err
	}
	c.textures = append(c.textures, tex)
	return int32(len(c.textures) - 1), nil
}

func (c *Cache) upload(rgba []byte, width, height uint32) (*Texture, error) {
	size := vk.DeviceSize(len(rgba))
	staging, err := c.alloc.AllocateBuffer(size, vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, fmt.Errorf("texture: stage: %w", err)
	}
	defer c.alloc.FreeBuffer(staging)
	if err := c.alloc.UploadHostVisible(staging, rgba); err != nil {
		return nil, fmt.Errorf("texture: stage upload: %w", err)
	}

	img, err := c.alloc.AllocateImage(&vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    placeholderFormat,
		Extent:    vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels: 1, ArrayLayers: 1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) | vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, fmt.Errorf("texture: create image: %w", err)
	}

	subresource := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}

	err = c.uploader.Submit(func(cmd vk.CommandBuffer) error {
		transition(cmd, img.Handle, subresource,
			vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
			0, vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

		vk.CmdCopyBufferToImage(cmd, staging.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
		}})

		transition(cmd, img.Handle, subresource,
			vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))
		return nil
	})
	if err != nil {
		c.alloc.FreeImage(img)
		return nil, fmt.Errorf("texture: upload: %w", err)
	}

	var view vk.ImageView
	ret := vk.CreateImageView(c.ctx.Device, &vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            img.Handle,
		ViewType:         vk.ImageViewType2d,
		Format:           placeholderFormat,
		SubresourceRange: subresource,
	}, nil, &view)
	if ret != vk.Success {
		c.alloc.FreeImage(img)
		return nil, fmt.Errorf("texture: create image view: result %d", ret)
	}

	return &Texture{image: img, View: view, Width: width, Height: height}, nil
}

func transition(cmd vk.CommandBuffer, img vk.Image, subresource vk.ImageSubresourceRange,
	oldLayout, newLayout vk.ImageLayout, srcAccess, dstAccess vk.AccessFlags,
	srcStage, dstStage vk.PipelineStageFlags) {
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    subresource,
	}})
}

// Views returns the image views of every resident texture in index order,
// suitable for pipeline.UpdatePBR's combined-image-sampler array.
func (c *Cache) Views() []vk.ImageView {
	views := make([]vk.ImageView, len(c.textures))
	for i, t := range c.textures {
		views[i] = t.View
	}
	return views
}

func (c *Cache) Destroy() {
	for _, t := range c.textures {
		vk.DestroyImageView(c.ctx.Device, t.View, nil)
		c.alloc.FreeImage(t.image)
	}
	if c.Sampler != nil {
		vk.DestroySampler(c.ctx.Device, c.Sampler, nil)
	}
}
