// Package commands implements component C9 (the per-frame command/submit
// driver) and component C13 (the multi-threaded secondary command buffer
// subsystem plus barrier validation). Grounded on the teacher's instance.go
// (submit_pipeline, setup_command, acquire_next_image, present_image, Update),
// pools.go (CorePool), managers.go (CommandBufferManager, FenceManager), and
// original_source's vulkan_barrier_validation.c/h and vulkan_mt.c/h.
package commands

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
)

// Pool wraps one command pool tied to a single queue family, used either as
// the per-frame primary pool or as a per-thread secondary pool in the
// multi-threaded recording subsystem. Not safe for concurrent use from more
// than one goroutine, mirroring the teacher's CorePool / "one manager per
// thread" note on CommandBufferManager.
type Pool struct {
	ctx    *device.Context
	handle vk.CommandPool
}

// NewPool creates a command pool against familyIndex with the
// reset-individual-buffer flag set, so callers can reset single buffers
// instead of the whole pool.
func NewPool(ctx *device.Context, familyIndex uint32) (*Pool, error) {
	var handle vk.CommandPool
	ret := vk.CreateCommandPool(ctx.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: familyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &handle)
	if ret != vk.Success {
		return nil, fmt.Errorf("commands: create pool: result %d", ret)
	}
	return &Pool{ctx: ctx, handle: handle}, nil
}

func (p *Pool) Handle() vk.CommandPool { return p.handle }

// Reset recycles every buffer allocated from this pool back to the initial
// state without freeing the pool's backing memory.
func (p *Pool) Reset() error {
	ret := vk.ResetCommandPool(p.ctx.Device, p.handle, vk.CommandPoolResetFlags(0))
	if ret != vk.Success {
		return fmt.Errorf("commands: reset pool: result %d", ret)
	}
	return nil
}

func (p *Pool) Destroy() {
	if p.handle != nil {
		vk.DestroyCommandPool(p.ctx.Device, p.handle, nil)
		p.handle = nil
	}
}

// BufferManager allocates command buffers from one pool and recycles them
// across frames, grounded on the teacher's CommandBufferManager: the first
// Reset call of a frame marks every previously-issued buffer as available
// again, and subsequent NewCommandBuffer calls hand those back out before
// allocating fresh ones.
type BufferManager struct {
	ctx     *device.Context
	pool    *Pool
	level   vk.CommandBufferLevel
	buffers []vk.CommandBuffer
	count   uint32
}

// NewBufferManager creates its own backing pool against familyIndex.
func NewBufferManager(ctx *device.Context, level vk.CommandBufferLevel, familyIndex uint32) (*BufferManager, error) {
	pool, err := NewPool(ctx, familyIndex)
	if err != nil {
		return nil, err
	}
	return &BufferManager{ctx: ctx, pool: pool, level: level}, nil
}

// Reset marks every buffer issued so far as recyclable. Call once at the start
// of each frame before requesting buffers for that frame.
func (m *BufferManager) Reset() { m.count = 0 }

// NewCommandBuffer returns a recycled buffer (reset to the initial state) if
// one is available, otherwise allocates a new one from the pool.
func (m *BufferManager) NewCommandBuffer() (vk.CommandBuffer, error) {
	if m.count < uint32(len(m.buffers)) {
		buf := m.buffers[m.count]
		m.count++
		ret := vk.ResetCommandBuffer(buf, vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit))
		if ret != vk.Success {
			return nil, fmt.Errorf("commands: reset buffer: result %d", ret)
		}
		return buf, nil
	}
	allocated := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(m.ctx.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        m.pool.handle,
		Level:              m.level,
		CommandBufferCount: 1,
	}, allocated)
	if ret != vk.Success {
		return nil, fmt.Errorf("commands: allocate buffer: result %d", ret)
	}
	buf := allocated[0]
	m.buffers = append(m.buffers, buf)
	m.count++
	return buf, nil
}

func (m *BufferManager) Destroy() {
	if len(m.buffers) > 0 {
		vk.FreeCommandBuffers(m.ctx.Device, m.pool.handle, uint32(len(m.buffers)), m.buffers)
	}
	m.pool.Destroy()
}

// FenceManager tracks the fences issued during a frame so the frame driver can
// wait on all of them at once before reusing their resources. Not thread-safe;
// the multi-threaded recording subsystem gives each worker its own instance,
// mirroring the teacher's per-thread FenceManager note.
type FenceManager struct {
	ctx    *device.Context
	fences []vk.Fence
	count  uint32
}

func NewFenceManager(ctx *device.Context) *FenceManager {
	return &FenceManager{ctx: ctx}
}

// Reset waits for every outstanding fence to signal, then marks them all
// recyclable. After Reset returns, resources used by the prior frame are safe
// to reuse or free.
func (f *FenceManager) Reset() error {
	if f.count > 0 {
		if ret := vk.WaitForFences(f.ctx.Device, f.count, f.fences, vk.True, vk.MaxUint64); ret != vk.Success {
			return fmt.Errorf("commands: wait fences: result %d", ret)
		}
		if ret := vk.ResetFences(f.ctx.Device, f.count, f.fences); ret != vk.Success {
			return fmt.Errorf("commands: reset fences: result %d", ret)
		}
	}
	f.count = 0
	return nil
}

// NewFence returns a recycled fence or creates a new unsignaled one.
func (f *FenceManager) NewFence() (vk.Fence, error) {
	if f.count < uint32(len(f.fences)) {
		fence := f.fences[f.count]
		f.count++
		return fence, nil
	}
	var fence vk.Fence
	ret := vk.CreateFence(f.ctx.Device, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}, nil, &fence)
	if ret != vk.Success {
		return nil, fmt.Errorf("commands: create fence: result %d", ret)
	}
	f.fences = append(f.fences, fence)
	f.count++
	return fence, nil
}

func (f *FenceManager) ActiveFences() []vk.Fence { return f.fences[:f.count] }

func (f *FenceManager) Destroy() {
	f.Reset()
	for _, fence := range f.fences {
		vk.DestroyFence(f.ctx.Device, fence, nil)
	}
}
