// Package memalloc implements component C5: device memory allocation for
// buffers and images, plus a host-upload helper for staging data into
// device-local memory. Grounded on the teacher's extensions.go
// (FindRequiredMemoryType, CreateBuffer) and
// original_source/engine/src/renderer/vulkan_allocator.c, generalized from a
// single host-visible buffer helper to separate AllocateBuffer/AllocateImage
// paths each taking an explicit memory-property requirement, with running
// allocated/freed byte totals for leak detection at shutdown.
package memalloc

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
	"github.com/markusmaurer/cardinal/internal/logging"
)

// Buffer pairs a buffer handle with the device memory backing it.
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
}

// Image pairs an image handle with the device memory backing it.
type Image struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
}

// Allocator creates buffers and images with bound device memory, and tracks
// cumulative allocated/freed bytes so Shutdown can warn about leaks, mirroring
// vk_allocator_init/vk_allocator_shutdown's total_device_mem_allocated /
// total_device_mem_freed bookkeeping.
type Allocator struct {
	ctx *device.Context
	log *logging.Logger

	mu      sync.Mutex
	allocated uint64
	freed     uint64
}

func New(ctx *device.Context, log *logging.Logger) *Allocator {
	log.Infof("memalloc: initialized (maintenance4=%v)", ctx.Features.Maintenance4)
	return &Allocator{ctx: ctx, log: log}
}

func findMemoryType(props vk.PhysicalDeviceMemoryProperties, typeFilter uint32, required vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if typeFilter&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		if props.MemoryTypes[i].PropertyFlags&required == required {
			return i, true
		}
	}
	return 0, false
}

// AllocateBuffer creates a buffer of size with usage, backed by memory
// satisfying required (e.g. DeviceLocal for vertex/index/uniform buffers,
// HostVisible|HostCoherent for staging buffers).
func (a *Allocator) AllocateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlagBits, required vk.MemoryPropertyFlagBits) (*Buffer, error) {
	var handle vk.Buffer
	ret := vk.CreateBuffer(a.ctx.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &handle)
	if ret != vk.Success {
		return nil, fmt.Errorf("memalloc: create buffer: result %d", ret)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.ctx.Device, handle, &req)
	req.Deref()
	if req.Size == 0 {
		vk.DestroyBuffer(a.ctx.Device, handle, nil)
		return nil, fmt.Errorf("memalloc: buffer reports zero-size memory requirements")
	}

	typeIndex, ok := findMemoryType(a.ctx.MemoryProperties, req.MemoryTypeBits, vk.MemoryPropertyFlags(required))
	if !ok {
		vk.DestroyBuffer(a.ctx.Device, handle, nil)
		return nil, fmt.Errorf("memalloc: no memory type satisfies 0x%x for buffer", required)
	}

	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(a.ctx.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if ret != vk.Success {
		vk.DestroyBuffer(a.ctx.Device, handle, nil)
		return nil, fmt.Errorf("memalloc: allocate buffer memory: result %d", ret)
	}

	if ret := vk.BindBufferMemory(a.ctx.Device, handle, mem, 0); ret != vk.Success {
		vk.FreeMemory(a.ctx.Device, mem, nil)
		vk.DestroyBuffer(a.ctx.Device, handle, nil)
		return nil, fmt.Errorf("memalloc: bind buffer memory: result %d", ret)
	}

	a.mu.Lock()
	a.allocated += uint64(req.Size)
	a.mu.Unlock()

	return &Buffer{Handle: handle, Memory: mem, Size: req.Size}, nil
}

// AllocateImage creates an image per ci and binds memory satisfying required.
func (a *Allocator) AllocateImage(ci *vk.ImageCreateInfo, required vk.MemoryPropertyFlagBits) (*Image, error) {
	var handle vk.Image
	ret := vk.CreateImage(a.ctx.Device, ci, nil, &handle)
	if ret != vk.Success {
		return nil, fmt.Errorf("memalloc: create image: result %d", ret)
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(a.ctx.Device, handle, &req)
	req.Deref()
	if req.Size == 0 {
		vk.DestroyImage(a.ctx.Device, handle, nil)
		return nil, fmt.Errorf("memalloc: image reports zero-size memory requirements")
	}

	typeIndex, ok := findMemoryType(a.ctx.MemoryProperties, req.MemoryTypeBits, vk.MemoryPropertyFlags(required))
	if !ok {
		vk.DestroyImage(a.ctx.Device, handle, nil)
		return nil, fmt.Errorf("memalloc: no memory type satisfies 0x%x for image", required)
	}

	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(a.ctx.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if ret != vk.Success {
		vk.DestroyImage(a.ctx.Device, handle, nil)
		return nil, fmt.Errorf("memalloc: allocate image memory: result %d", ret)
	}

	if ret := vk.BindImageMemory(a.ctx.Device, handle, mem, 0); ret != vk.Success {
		vk.FreeMemory(a.ctx.Device, mem, nil)
		vk.DestroyImage(a.ctx.Device, handle, nil)
		return nil, fmt.Errorf("memalloc: bind image memory: result %d", ret)
	}

	a.mu.Lock()
	a.allocated += uint64(req.Size)
	a.mu.Unlock()

	return &Image{Handle: handle, Memory: mem, Size: req.Size}, nil
}

// FreeBuffer destroys b's buffer handle and backing memory.
func (a *Allocator) FreeBuffer(b *Buffer) {
	if b == nil {
		return
	}
	vk.FreeMemory(a.ctx.Device, b.Memory, nil)
	vk.DestroyBuffer(a.ctx.Device, b.Handle, nil)
	a.mu.Lock()
	a.freed += uint64(b.Size)
	a.mu.Unlock()
}

// FreeImage destroys im's image handle and backing memory.
func (a *Allocator) FreeImage(im *Image) {
	if im == nil {
		return
	}
	vk.FreeMemory(a.ctx.Device, im.Memory, nil)
	vk.DestroyImage(a.ctx.Device, im.Handle, nil)
	a.mu.Lock()
	a.freed += uint64(im.Size)
	a.mu.Unlock()
}

// UploadHostVisible maps b's memory, copies data into it, and unmaps. Only
// valid for buffers allocated with HostVisible|HostCoherent.
func (a *Allocator) UploadHostVisible(b *Buffer, data []byte) error {
	var ptr unsafe.Pointer
	ret := vk.MapMemory(a.ctx.Device, b.Memory, 0, vk.DeviceSize(len(data)), 0, &ptr)
	if ret != vk.Success {
		return fmt.Errorf("memalloc: map memory: result %d", ret)
	}
	n := vk.Memcopy(ptr, data)
	vk.UnmapMemory(a.ctx.Device, b.Memory)
	if n != len(data) {
		return fmt.Errorf("memalloc: short copy into mapped memory: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// Shutdown logs cumulative allocated/freed totals and warns if they don't
// match, mirroring vk_allocator_shutdown's leak-detection log line.
func (a *Allocator) Shutdown() {
	a.mu.Lock()
	allocated, freed := a.allocated, a.freed
	a.mu.Unlock()

	a.log.Infof("memalloc: shutdown allocated=%d freed=%d net=%d", allocated, freed, allocated-freed)
	if allocated > freed {
		a.log.Warnf("memalloc: possible leak: %d bytes not freed", allocated-freed)
	}
}
