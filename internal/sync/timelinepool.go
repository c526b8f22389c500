package sync

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/atomics"
	"github.com/markusmaurer/cardinal/internal/device"
	"github.com/markusmaurer/cardinal/internal/logging"
)

// timelineEntry is one pooled timeline semaphore. inUse and lastSignaled are
// only valid while holding the pool's mutex; creationTime records when the
// semaphore was created so idle cleanup can find candidates past maxIdle.
type timelineEntry struct {
	semaphore    vk.Semaphore
	inUse        bool
	lastSignaled uint64
	creationTime time.Time
}

// TimelineAllocation is what Allocate hands back: the semaphore to use plus its
// pool index, needed later to Deallocate it back into the free list.
type TimelineAllocation struct {
	Semaphore vk.Semaphore
	index     int
	FromCache bool
}

// TimelinePool recycles timeline semaphores across frames and transfer
// operations rather than creating/destroying one per use, grounded on
// vulkan_timeline_pool.c. maxSize of 0 means unbounded.
type TimelinePool struct {
	ctx *device.Context
	log *logging.Logger

	mu      sync.Mutex
	entries []timelineEntry
	maxSize int

	activeCount atomics.Counter32
	allocations atomics.Counter64
	deallocations atomics.Counter64
	cacheHits     atomics.Counter64
	cacheMisses   atomics.Counter64

	autoCleanup bool
	maxIdle     time.Duration
}

const defaultMaxIdle = 5 * time.Second

// NewTimelinePool pre-allocates initialSize timeline semaphores, up to maxSize
// (0 for unbounded). Auto-cleanup of idle semaphores is enabled by default with
// a 5 second idle window, matching the original pool's default.
func NewTimelinePool(ctx *device.Context, initialSize, maxSize int, log *logging.Logger) (*TimelinePool, error) {
	if initialSize <= 0 {
		return nil, fmt.Errorf("sync: timeline pool initial size must be positive")
	}
	p := &TimelinePool{
		ctx:         ctx,
		log:         log,
		maxSize:     maxSize,
		autoCleanup: true,
		maxIdle:     defaultMaxIdle,
	}
	now := time.Now()
	for i := 0; i < initialSize; i++ {
		sem, err := createTimelineSemaphore(ctx)
		if err != nil {
			log.Warnf("sync: failed to pre-allocate timeline semaphore %d: %v", i, err)
			break
		}
		p.entries = append(p.entries, timelineEntry{semaphore: sem, creationTime: now})
	}
	log.Infof("sync: timeline pool initialized with %d/%d semaphores (max=%d)", len(p.entries), initialSize, maxSize)
	return p, nil
}

func createTimelineSemaphore(ctx *device.Context) (vk.Semaphore, error) {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(ctx.Device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}, nil, &sem)
	if ret != vk.Success {
		return nil, fmt.Errorf("sync: create timeline semaphore: result %d", ret)
	}
	return sem, nil
}

// Allocate returns an unused pooled semaphore (a cache hit), or creates a new
// one if every pooled semaphore is busy and the pool has room left to grow (a
// cache miss). Returns an error if the pool is at maxSize and nothing is free.
func (p *TimelinePool) Allocate() (TimelineAllocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.entries {
		e := &p.entries[i]
		if !e.inUse && e.semaphore != nil {
			e.inUse = true
			p.activeCount.Inc()
			p.allocations.Inc()
			p.cacheHits.Inc()
			return TimelineAllocation{Semaphore: e.semaphore, index: i, FromCache: true}, nil
		}
	}

	if p.maxSize > 0 && len(p.entries) >= p.maxSize {
		return TimelineAllocation{}, fmt.Errorf("sync: timeline pool exhausted (%d/%d)", len(p.entries), p.maxSize)
	}
	sem, err := createTimelineSemaphore(p.ctx)
	if err != nil {
		return TimelineAllocation{}, err
	}
	p.entries = append(p.entries, timelineEntry{semaphore: sem, inUse: true, creationTime: time.Now()})
	p.activeCount.Inc()
	p.allocations.Inc()
	p.cacheMisses.Inc()
	return TimelineAllocation{Semaphore: sem, index: len(p.entries) - 1, FromCache: false}, nil
}

// Deallocate returns an allocation to the free list, recording the timeline
// value it last signaled on the entry; CleanupIdle does not consult that value.
func (p *TimelinePool) Deallocate(a TimelineAllocation, lastValue uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a.index < 0 || a.index >= len(p.entries) {
		return
	}
	e := &p.entries[a.index]
	if !e.inUse {
		return
	}
	e.inUse = false
	e.lastSignaled = lastValue
	p.activeCount.Dec()
	p.deallocations.Inc()
}

// CleanupIdle destroys pooled semaphores that are not in use and were created
// longer ago than the configured idle window, returning the count destroyed.
// Age is measured from creation; the time since an entry was last released is
// not tracked, so a recently released old entry is destroyed too. Intended to be
// called periodically (e.g. once per second) from the frame driver, not on the
// hot path.
func (p *TimelinePool) CleanupIdle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.autoCleanup {
		return 0
	}
	now := time.Now()
	cleaned := 0
	for i := range p.entries {
		e := &p.entries[i]
		if !e.inUse && e.semaphore != nil && now.Sub(e.creationTime) > p.maxIdle {
			vk.DestroySemaphore(p.ctx.Device, e.semaphore, nil)
			e.semaphore = nil
			cleaned++
		}
	}
	if cleaned > 0 {
		p.log.Debugf("sync: timeline pool cleaned up %d idle semaphores", cleaned)
	}
	return cleaned
}

// ConfigureCleanup changes the idle-eviction policy at runtime.
func (p *TimelinePool) ConfigureCleanup(enabled bool, maxIdle time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoCleanup = enabled
	p.maxIdle = maxIdle
	p.log.Infof("sync: timeline pool auto-cleanup=%v max-idle=%s", enabled, maxIdle)
}

// Stats is a point-in-time snapshot of pool activity, used for the debug HUD
// (component C8's "pool statistics" requirement).
type Stats struct {
	ActiveCount     int32
	TotalAllocations int64
	CacheHitRate    float64
}

func (p *TimelinePool) Stats() Stats {
	allocs := p.allocations.Load()
	hits := p.cacheHits.Load()
	rate := 0.0
	if allocs > 0 {
		rate = float64(hits) / float64(allocs)
	}
	return Stats{
		ActiveCount:      p.activeCount.Load(),
		TotalAllocations: allocs,
		CacheHitRate:     rate,
	}
}

// ResetStats zeroes the allocation/deallocation/hit/miss counters without
// touching pooled semaphores, matching vulkan_timeline_pool_reset_stats.
func (p *TimelinePool) ResetStats() {
	p.allocations.Store(0)
	p.deallocations.Store(0)
	p.cacheHits.Store(0)
	p.cacheMisses.Store(0)
}

// Destroy releases every pooled semaphore, used and unused alike.
func (p *TimelinePool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.semaphore != nil {
			vk.DestroySemaphore(p.ctx.Device, e.semaphore, nil)
		}
	}
	p.entries = nil
}
