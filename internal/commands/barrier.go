package commands

import (
	"sync"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/atomics"
	"github.com/markusmaurer/cardinal/internal/logging"
)

// AccessKind is how a resource is touched by a recorded command.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessReadWrite
)

// ResourceKind names what sort of resource an access targets, for log context.
type ResourceKind int

const (
	ResourceBuffer ResourceKind = iota
	ResourceImage
	ResourceDescriptorSet
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceBuffer:
		return "buffer"
	case ResourceImage:
		return "image"
	case ResourceDescriptorSet:
		return "descriptor-set"
	default:
		return "unknown"
	}
}

// access is one tracked resource touch, recorded so the validator can spot two
// threads writing the same resource without an intervening barrier.
type access struct {
	resourceID uint64
	kind       ResourceKind
	accessKind AccessKind
	threadID   uint32
	recordedAt time.Time
	cmdBuffer  vk.CommandBuffer
}

// BarrierValidator is a development-time aid (never a hard gate on
// correctness) that tracks resource accesses across command buffers recorded
// by different threads and logs when an access conflicts with a tracked access
// to the same resource from another thread. Barriers are not recorded, so a
// barrier between the two accesses does not suppress the report; Clear is the
// only way to drop tracked accesses. Grounded on
// original_source/engine/src/renderer/vulkan_barrier_validation.c: the
// original likewise only logs and counts, it never blocks recording, since
// false positives are expected without full execution-order knowledge.
type BarrierValidator struct {
	log *logging.Logger

	mu         sync.Mutex
	accesses   []access
	maxTracked int
	strict     bool
	enabled    bool

	totalAccesses  atomics.Counter64
	validationErrs atomics.Counter64
	raceConditions atomics.Counter64
}

// NewBarrierValidator creates a validator holding at most maxTracked accesses
// in its ring buffer (oldest evicted first). Outside strict mode, a
// same-resource overlap across threads is flagged when at least one side is a
// write; strict mode also flags read/read overlaps.
func NewBarrierValidator(maxTracked int, strict bool, log *logging.Logger) *BarrierValidator {
	if maxTracked <= 0 {
		maxTracked = 4096
	}
	return &BarrierValidator{log: log, maxTracked: maxTracked, strict: strict, enabled: true}
}

func (v *BarrierValidator) SetEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = enabled
}

// TrackAccess records a resource touch. When the ring buffer is full, the
// oldest entry is evicted to make room — tracking never blocks a recording
// thread and never grows unbounded.
func (v *BarrierValidator) TrackAccess(resourceID uint64, kind ResourceKind, accessKind AccessKind, threadID uint32, cmd vk.CommandBuffer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.enabled {
		return
	}
	v.totalAccesses.Inc()

	if conflict := v.findConflictLocked(resourceID, accessKind, threadID); conflict != nil {
		v.raceConditions.Inc()
		v.validationErrs.Inc()
		v.log.Warnf("commands: possible unsynchronized %s access to resource %d: thread %d vs thread %d",
			kind, resourceID, threadID, conflict.threadID)
	}

	entry := access{resourceID: resourceID, kind: kind, accessKind: accessKind, threadID: threadID, recordedAt: time.Now(), cmdBuffer: cmd}
	if len(v.accesses) >= v.maxTracked {
		v.accesses = append(v.accesses[1:], entry)
	} else {
		v.accesses = append(v.accesses, entry)
	}
}

// findConflictLocked looks for a prior access to the same resource from a
// different thread where at least one side is a write (or, in strict mode,
// any overlap at all).
func (v *BarrierValidator) findConflictLocked(resourceID uint64, kind AccessKind, threadID uint32) *access {
	for i := range v.accesses {
		a := &v.accesses[i]
		if a.resourceID != resourceID || a.threadID == threadID {
			continue
		}
		writeInvolved := a.accessKind != AccessRead || kind != AccessRead
		if v.strict || writeInvolved {
			return a
		}
	}
	return nil
}

// CheckRaceCondition reports whether threadA and threadB have any conflicting
// accesses to a common resource currently tracked.
func (v *BarrierValidator) CheckRaceCondition(threadA, threadB uint32) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.accesses {
		a := &v.accesses[i]
		if a.threadID != threadA {
			continue
		}
		for j := range v.accesses {
			b := &v.accesses[j]
			if b.threadID != threadB || b.resourceID != a.resourceID {
				continue
			}
			if a.accessKind != AccessRead || b.accessKind != AccessRead {
				return true
			}
		}
	}
	return false
}

// Stats is a snapshot of validator activity for the debug HUD.
type Stats struct {
	TotalAccesses   int64
	ValidationErrors int64
	RaceConditions  int64
}

func (v *BarrierValidator) Stats() Stats {
	return Stats{
		TotalAccesses:    v.totalAccesses.Load(),
		ValidationErrors: v.validationErrs.Load(),
		RaceConditions:   v.raceConditions.Load(),
	}
}

// Clear discards every tracked access without resetting the statistics
// counters, mirroring cardinal_barrier_validation_clear_accesses.
func (v *BarrierValidator) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accesses = nil
}
