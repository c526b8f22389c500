// Package swapchain implements component C7: swapchain creation, per-image view
// and framebuffer setup, and resize/recreate. Grounded on the teacher's
// swapchain.go (NewCoreSwapchain, CreateFrameImageView, CreateFrameBuffer),
// generalized from a hardcoded depth format and "create once" lifecycle to the
// §4.7 candidate-format search and an explicit Recreate path driven by
// vkutil.ClassRecoverableSurface results.
package swapchain

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
	"github.com/markusmaurer/cardinal/internal/vkutil"
)

// depthCandidates are tried in order of precision; the first one the physical
// device supports as an optimal-tiling depth-stencil attachment wins.
var depthCandidates = []vk.Format{
	vk.FormatD32SfloatS8Uint,
	vk.FormatD32Sfloat,
	vk.FormatD24UnormS8Uint,
	vk.FormatD16UnormS8Uint,
	vk.FormatD16Unorm,
}

// Swapchain owns the presentable images, their views, the depth buffer, and the
// per-image framebuffers tied to a render pass.
type Swapchain struct {
	ctx *device.Context

	handle      vk.Swapchain
	surface     vk.Surface
	format      vk.SurfaceFormat
	depthFormat vk.Format
	extent      vk.Extent2D

	images       []vk.Image
	imageViews   []vk.ImageView
	framebuffers []vk.Framebuffer

	depthImage  vk.Image
	depthMemory vk.DeviceMemory
	depthView   vk.ImageView

	minImageCount uint32
}

// New creates a swapchain for ctx's surface, requesting desiredDepth presentable
// images (clamped to the surface's min/max). renderPass is used immediately to
// build the initial framebuffer set; pass vk.RenderPass(nil) to defer framebuffer
// creation until CreateFramebuffers is called once the render pass exists.
func New(ctx *device.Context, desiredDepth int, renderPass vk.RenderPass) (*Swapchain, error) {
	s := &Swapchain{ctx: ctx, surface: ctx.Surface}
	if err := s.create(desiredDepth, vk.NullSwapchain); err != nil {
		return nil, err
	}
	if renderPass != nil {
		if err := s.CreateFramebuffers(renderPass); err != nil {
			s.Destroy()
			return nil, err
		}
	}
	return s, nil
}

func (s *Swapchain) create(desiredDepth int, old vk.Swapchain) error {
	var caps vk.SurfaceCapabilities
	vk.GetPhysicalDeviceSurfaceCapabilities(s.ctx.Physical, s.surface, &caps)
	caps.Deref()
	caps.CurrentExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(s.ctx.Physical, s.surface, &formatCount, nil)
	if formatCount == 0 {
		return fmt.Errorf("swapchain: no surface formats available")
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(s.ctx.Physical, s.surface, &formatCount, formats)
	formats[0].Deref()
	format := formats[0]
	if format.Format == vk.FormatUndefined {
		format.Format = vk.FormatB8g8r8a8Srgb
		format.ColorSpace = vk.ColorSpaceSrgbNonlinear
	}
	for _, f := range formats {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			format = f
			break
		}
	}
	s.format = format
	s.depthFormat = s.pickDepthFormat()

	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		return fmt.Errorf("swapchain: surface reports no fixed extent; caller must supply one")
	}
	if extent.Width == 0 || extent.Height == 0 {
		return fmt.Errorf("swapchain: %w", vkutil.ErrExtentZero)
	}
	s.extent = extent

	count := uint32(desiredDepth)
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	s.minImageCount = count

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, candidate := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(candidate) != 0 {
			compositeAlpha = candidate
			break
		}
	}

	var handle vk.Swapchain
	ret := vk.CreateSwapchain(s.ctx.Device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    count,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		ImageSharingMode: vk.SharingModeExclusive,
		PresentMode:      vk.PresentModeFifo,
		OldSwapchain:     old,
		Clipped:          vk.True,
	}, nil, &handle)
	if ret != vk.Success {
		return fmt.Errorf("swapchain: create: result %d", ret)
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(s.ctx.Device, old, nil)
	}
	s.handle = handle

	var imageCount uint32
	vk.GetSwapchainImages(s.ctx.Device, handle, &imageCount, nil)
	s.images = make([]vk.Image, imageCount)
	vk.GetSwapchainImages(s.ctx.Device, handle, &imageCount, s.images)

	s.imageViews = make([]vk.ImageView, imageCount)
	for i := range s.images {
		view, err := s.createImageView(s.images[i], format.Format, vk.ImageAspectColorBit)
		if err != nil {
			return err
		}
		s.imageViews[i] = view
	}

	if err := s.createDepthResources(); err != nil {
		return err
	}
	return nil
}

func (s *Swapchain) pickDepthFormat() vk.Format {
	for _, f := range depthCandidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(s.ctx.Physical, f, &props)
		props.Deref()
		if props.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return f
		}
	}
	return vk.FormatD16Unorm
}

func (s *Swapchain) createImageView(img vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(s.ctx.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if ret != vk.Success {
		return nil, fmt.Errorf("swapchain: create image view: result %d", ret)
	}
	return view, nil
}

func (s *Swapchain) createDepthResources() error {
	var image vk.Image
	ret := vk.CreateImage(s.ctx.Device, &vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   vk.ImageType2d,
		Format:      s.depthFormat,
		Extent:      vk.Extent3D{Width: s.extent.Width, Height: s.extent.Height, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &image)
	if ret != vk.Success {
		return fmt.Errorf("swapchain: create depth image: result %d", ret)
	}
	s.depthImage = image

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(s.ctx.Device, image, &req)
	req.Deref()

	typeIndex, ok := vk.FindMemoryTypeIndex(s.ctx.Physical, req.MemoryTypeBits, vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit))
	if !ok {
		return fmt.Errorf("swapchain: no device-local memory type for depth image")
	}

	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(s.ctx.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if ret != vk.Success {
		return fmt.Errorf("swapchain: allocate depth memory: result %d", ret)
	}
	s.depthMemory = mem
	vk.BindImageMemory(s.ctx.Device, image, mem, 0)

	view, err := s.createImageView(image, s.depthFormat, vk.ImageAspectDepthBit)
	if err != nil {
		return err
	}
	s.depthView = view
	return nil
}

// CreateFramebuffers builds one framebuffer per swapchain image, each attaching
// that image's color view plus the shared depth view.
func (s *Swapchain) CreateFramebuffers(renderPass vk.RenderPass) error {
	s.destroyFramebuffers()
	s.framebuffers = make([]vk.Framebuffer, len(s.imageViews))
	for i, colorView := range s.imageViews {
		attachments := []vk.ImageView{colorView, s.depthView}
		var fb vk.Framebuffer
		ret := vk.CreateFramebuffer(s.ctx.Device, &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           s.extent.Width,
			Height:          s.extent.Height,
			Layers:          1,
		}, nil, &fb)
		if ret != vk.Success {
			return fmt.Errorf("swapchain: create framebuffer %d: result %d", i, ret)
		}
		s.framebuffers[i] = fb
	}
	return nil
}

// Recreate tears down and rebuilds the swapchain against the current surface
// extent, reusing the old swapchain handle for a non-flickering transition as
// the Vulkan spec allows. Called after an ErrorOutOfDate/Suboptimal result or a
// framebuffer-resize notification.
func (s *Swapchain) Recreate(renderPass vk.RenderPass) error {
	vk.DeviceWaitIdle(s.ctx.Device)
	s.destroyImageResources()
	old := s.handle
	if err := s.create(int(s.minImageCount), old); err != nil {
		return err
	}
	return s.CreateFramebuffers(renderPass)
}

func (s *Swapchain) destroyFramebuffers() {
	for _, fb := range s.framebuffers {
		vk.DestroyFramebuffer(s.ctx.Device, fb, nil)
	}
	s.framebuffers = nil
}

func (s *Swapchain) destroyImageResources() {
	s.destroyFramebuffers()
	if s.depthView != nil {
		vk.DestroyImageView(s.ctx.Device, s.depthView, nil)
		s.depthView = nil
	}
	if s.depthImage != nil {
		vk.DestroyImage(s.ctx.Device, s.depthImage, nil)
		s.depthImage = nil
	}
	if s.depthMemory != nil {
		vk.FreeMemory(s.ctx.Device, s.depthMemory, nil)
		s.depthMemory = nil
	}
	for _, v := range s.imageViews {
		vk.DestroyImageView(s.ctx.Device, v, nil)
	}
	s.imageViews = nil
	s.images = nil
}

// Destroy releases every resource owned by the swapchain, including the
// swapchain handle itself.
func (s *Swapchain) Destroy() {
	s.destroyImageResources()
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.ctx.Device, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
}

func (s *Swapchain) Handle() vk.Swapchain          { return s.handle }
func (s *Swapchain) Extent() vk.Extent2D           { return s.extent }
func (s *Swapchain) Format() vk.Format             { return s.format.Format }
func (s *Swapchain) DepthFormat() vk.Format        { return s.depthFormat }
func (s *Swapchain) ImageCount() int               { return len(s.images) }
func (s *Swapchain) Framebuffer(i int) vk.Framebuffer { return s.framebuffers[i] }
