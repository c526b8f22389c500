package sync

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/atomics"
	"github.com/markusmaurer/cardinal/internal/device"
)

// GlobalTimeline wraps one timeline semaphore used for cross-queue ordering
// (e.g. transfer-queue upload completion gating a graphics-queue draw), handing
// out strictly increasing values from a single counter so waiters never race
// the signaler over what "next" means. Grounded on vulkan_sync_manager.h's
// global_timeline_counter and wait/signal pair.
type GlobalTimeline struct {
	ctx       *device.Context
	semaphore vk.Semaphore
	counter   atomics.FetchAddU64

	waitCount   atomics.Counter64
	signalCount atomics.Counter64
}

// NewGlobalTimeline creates the backing timeline semaphore starting at value 0.
func NewGlobalTimeline(ctx *device.Context) (*GlobalTimeline, error) {
	sem, err := createTimelineSemaphore(ctx)
	if err != nil {
		return nil, err
	}
	return &GlobalTimeline{ctx: ctx, semaphore: sem}, nil
}

func (g *GlobalTimeline) Semaphore() vk.Semaphore { return g.semaphore }

// Next reserves and returns the next strictly increasing timeline value a
// caller should signal after submitting the work it guards.
func (g *GlobalTimeline) Next() uint64 { return g.counter.Next(1) }

// Wait blocks until the timeline semaphore reaches value, or returns an error
// after timeoutNs nanoseconds (vk.MaxUint64 for unbounded).
func (g *GlobalTimeline) Wait(value uint64, timeoutNs uint64) error {
	info := vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    []vk.Semaphore{g.semaphore},
		PValues:        []uint64{value},
	}
	ret := vk.WaitSemaphores(g.ctx.Device, &info, timeoutNs)
	g.waitCount.Inc()
	if ret != vk.Success {
		return fmt.Errorf("sync: wait timeline value %d: result %d", value, ret)
	}
	return nil
}

// Signal sets the timeline semaphore to value from the host side (used by
// staging uploads completed on a non-Vulkan thread, or test fakes).
func (g *GlobalTimeline) Signal(value uint64) error {
	ret := vk.SignalSemaphore(g.ctx.Device, &vk.SemaphoreSignalInfo{
		SType:     vk.StructureTypeSemaphoreSignalInfo,
		Semaphore: g.semaphore,
		Value:     value,
	})
	g.signalCount.Inc()
	if ret != vk.Success {
		return fmt.Errorf("sync: signal timeline value %d: result %d", value, ret)
	}
	return nil
}

// CurrentValue queries the semaphore's counter value directly from the driver.
func (g *GlobalTimeline) CurrentValue() (uint64, error) {
	var value uint64
	ret := vk.GetSemaphoreCounterValue(g.ctx.Device, g.semaphore, &value)
	if ret != vk.Success {
		return 0, fmt.Errorf("sync: get timeline value: result %d", ret)
	}
	return value, nil
}

// IsReached reports whether the timeline has reached value without blocking.
func (g *GlobalTimeline) IsReached(value uint64) (bool, error) {
	current, err := g.CurrentValue()
	if err != nil {
		return false, err
	}
	return current >= value, nil
}

// Stats returns the cumulative wait/signal counts, used by the debug HUD.
func (g *GlobalTimeline) Stats() (waits, signals uint64) {
	return uint64(g.waitCount.Load()), uint64(g.signalCount.Load())
}

// Destroy releases the backing semaphore.
func (g *GlobalTimeline) Destroy() {
	if g.semaphore != nil {
		vk.DestroySemaphore(g.ctx.Device, g.semaphore, nil)
		g.semaphore = nil
	}
}
