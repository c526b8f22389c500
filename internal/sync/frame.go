// Package sync implements component C8: per-frame fences and binary semaphores,
// the timeline semaphore used for cross-queue dependencies, and a pool that
// recycles timeline semaphores instead of creating/destroying them every frame.
// Grounded on the teacher's instance.go (PerFrame, NewPerFrame, the
// recycled_semaphores free list) and original_source's vulkan_timeline_pool.c /
// vulkan_timeline_debug.c, generalized from a single hardcoded in-flight frame to
// an N-deep FrameSync ring per §4.8.
package sync

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/atomics"
	"github.com/markusmaurer/cardinal/internal/device"
)

// Frame holds the synchronization objects for one in-flight frame slot: a fence
// the CPU waits on before reusing the slot's command buffer, and the pair of
// binary semaphores that order acquire -> submit -> present on the GPU timeline.
type Frame struct {
	Fence           vk.Fence
	ImageAcquired   vk.Semaphore
	RenderFinished  vk.Semaphore
}

// FrameSync owns one Frame per in-flight slot, the single device-wide timeline
// semaphore that is the sole cross-thread/cross-frame synchronization
// primitive (§5), and a free list of binary semaphores recycled from retired
// swapchain images, mirroring the teacher's recycled_semaphores slice.
type FrameSync struct {
	ctx    *device.Context
	frames []Frame
	free   []vk.Semaphore

	timeline          *GlobalTimeline
	currentFrameValue atomics.Counter64
}

// NewFrameSync creates depth Frame slots, each with a signaled fence (so the
// first wait on slot 0 doesn't block) and two unsignaled binary semaphores,
// plus the one timeline semaphore §3 lists as a FrameSync field.
func NewFrameSync(ctx *device.Context, depth int) (*FrameSync, error) {
	timeline, err := NewGlobalTimeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: frame sync timeline: %w", err)
	}
	fs := &FrameSync{ctx: ctx, frames: make([]Frame, depth), timeline: timeline}
	for i := range fs.frames {
		var fence vk.Fence
		ret := vk.CreateFence(ctx.Device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &fence)
		if ret != vk.Success {
			fs.Destroy()
			return nil, fmt.Errorf("sync: create fence %d: result %d", i, ret)
		}

		var acquired, finished vk.Semaphore
		if ret := vk.CreateSemaphore(ctx.Device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &acquired); ret != vk.Success {
			fs.Destroy()
			return nil, fmt.Errorf("sync: create acquire semaphore %d: result %d", i, ret)
		}
		if ret := vk.CreateSemaphore(ctx.Device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &finished); ret != vk.Success {
			fs.Destroy()
			return nil, fmt.Errorf("sync: create finished semaphore %d: result %d", i, ret)
		}

		fs.frames[i] = Frame{Fence: fence, ImageAcquired: acquired, RenderFinished: finished}
	}
	return fs, nil
}

// Wait blocks the calling goroutine until slot's fence signals, then resets it
// for reuse by the next submission into that slot.
func (fs *FrameSync) Wait(slot int) error {
	f := &fs.frames[slot]
	ret := vk.WaitForFences(fs.ctx.Device, 1, []vk.Fence{f.Fence}, vk.True, vk.MaxUint64)
	if ret != vk.Success {
		return fmt.Errorf("sync: wait for fence %d: result %d", slot, ret)
	}
	if ret := vk.ResetFences(fs.ctx.Device, 1, []vk.Fence{f.Fence}); ret != vk.Success {
		return fmt.Errorf("sync: reset fence %d: result %d", slot, ret)
	}
	return nil
}

// At returns the Frame for a given in-flight slot index.
func (fs *FrameSync) At(slot int) *Frame { return &fs.frames[slot] }

// RecycleSemaphore returns a retired image-acquired semaphore to the free list
// instead of destroying it, mirroring the teacher's recycled_semaphores reuse.
func (fs *FrameSync) RecycleSemaphore(sem vk.Semaphore) {
	fs.free = append(fs.free, sem)
}

// TakeRecycled pops a semaphore from the free list, or creates a fresh one if
// the list is empty.
func (fs *FrameSync) TakeRecycled() (vk.Semaphore, error) {
	if n := len(fs.free); n > 0 {
		sem := fs.free[n-1]
		fs.free = fs.free[:n-1]
		return sem, nil
	}
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(fs.ctx.Device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &sem)
	if ret != vk.Success {
		return nil, fmt.Errorf("sync: create recycled semaphore: result %d", ret)
	}
	return sem, nil
}

// TimelineSemaphore returns the one device-wide timeline semaphore §3 and
// §4.8 require FrameSync to own, so the frame driver can pass it to a
// Synchronization2 submit.
func (fs *FrameSync) TimelineSemaphore() vk.Semaphore { return fs.timeline.Semaphore() }

// NextTimelineValue implements §4.8's next_timeline_value(): an atomic
// fetch-and-add reserving the value the next submit must signal (§4.9 step
// 4's signal_after_render).
func (fs *FrameSync) NextTimelineValue() uint64 { return fs.timeline.Next() }

// CurrentFrameValue returns current_frame_value, the highest timeline value a
// completed RenderFrame call has signalled (§3, §8 scenario 1).
func (fs *FrameSync) CurrentFrameValue() uint64 { return uint64(fs.currentFrameValue.Load()) }

// AdvanceFrameValue implements §4.9 step 10's current_frame_value =
// signal_after_render, recorded once the submit that signals v has been
// issued.
func (fs *FrameSync) AdvanceFrameValue(v uint64) { fs.currentFrameValue.Store(int64(v)) }

// WaitTimeline implements §4.8's wait_timeline(v, timeout): blocks until the
// timeline semaphore reaches v or the device reports a failure.
func (fs *FrameSync) WaitTimeline(v uint64, timeoutNs uint64) error { return fs.timeline.Wait(v, timeoutNs) }

// IsTimelineReached implements §4.8's is_reached(v) without blocking.
func (fs *FrameSync) IsTimelineReached(v uint64) (bool, error) { return fs.timeline.IsReached(v) }

// Destroy releases every fence and semaphore owned by this FrameSync,
// including the timeline semaphore and the recycle free list.
func (fs *FrameSync) Destroy() {
	for _, f := range fs.frames {
		if f.Fence != nil {
			vk.DestroyFence(fs.ctx.Device, f.Fence, nil)
		}
		if f.ImageAcquired != nil {
			vk.DestroySemaphore(fs.ctx.Device, f.ImageAcquired, nil)
		}
		if f.RenderFinished != nil {
			vk.DestroySemaphore(fs.ctx.Device, f.RenderFinished, nil)
		}
	}
	for _, sem := range fs.free {
		vk.DestroySemaphore(fs.ctx.Device, sem, nil)
	}
	fs.free = nil
	if fs.timeline != nil {
		fs.timeline.Destroy()
		fs.timeline = nil
	}
}
