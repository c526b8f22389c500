package commands

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
)

// Uploader runs one-time command buffers on the graphics queue and blocks
// until the device is idle, per §4.9's immediate_submit(record_fn) — used by
// texture and scene uploads (C11/C12) to copy staging buffers into
// device-local memory outside the per-frame submit/present cycle.
type Uploader struct {
	ctx  *device.Context
	pool *Pool
}

// NewUploader creates its own single-buffer command pool against the
// graphics queue family.
func NewUploader(ctx *device.Context) (*Uploader, error) {
	pool, err := NewPool(ctx, ctx.GraphicsFamily)
	if err != nil {
		return nil, err
	}
	return &Uploader{ctx: ctx, pool: pool}, nil
}

// Submit allocates a primary command buffer, invokes record to fill it,
// submits it on the graphics queue, and waits for the queue to go idle before
// freeing the buffer, so the caller's staging resources are safe to destroy
// immediately after Submit returns.
func (u *Uploader) Submit(record func(cmd vk.CommandBuffer) error) error {
	allocated := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(u.ctx.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        u.pool.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, allocated)
	if ret != vk.Success {
		return fmt.Errorf("commands: immediate submit: allocate buffer: result %d", ret)
	}
	cmd := allocated[0]
	defer vk.FreeCommandBuffers(u.ctx.Device, u.pool.handle, 1, []vk.CommandBuffer{cmd})

	if ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}); ret != vk.Success {
		return fmt.Errorf("commands: immediate submit: begin buffer: result %d", ret)
	}

	if err := record(cmd); err != nil {
		return fmt.Errorf("commands: immediate submit: record: %w", err)
	}

	if ret := vk.EndCommandBuffer(cmd); ret != vk.Success {
		return fmt.Errorf("commands: immediate submit: end buffer: result %d", ret)
	}

	ret = vk.QueueSubmit(u.ctx.GraphicsQueue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, nil)
	if ret != vk.Success {
		return fmt.Errorf("commands: immediate submit: queue submit: result %d", ret)
	}
	if ret := vk.QueueWaitIdle(u.ctx.GraphicsQueue); ret != vk.Success {
		return fmt.Errorf("commands: immediate submit: queue wait idle: result %d", ret)
	}
	return nil
}

func (u *Uploader) Destroy() {
	u.pool.Destroy()
}
