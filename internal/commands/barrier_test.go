package commands

import (
	"testing"

	"github.com/markusmaurer/cardinal/internal/logging"
)

func TestResourceKindStrings(t *testing.T) {
	cases := map[ResourceKind]string{
		ResourceBuffer:        "buffer",
		ResourceImage:         "image",
		ResourceDescriptorSet: "descriptor-set",
		ResourceKind(99):      "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("ResourceKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestTrackAccessNoConflictOnReadsFromDifferentThreads(t *testing.T) {
	v := NewBarrierValidator(0, false, logging.Nop())
	v.TrackAccess(1, ResourceBuffer, AccessRead, 1, nil)
	v.TrackAccess(1, ResourceBuffer, AccessRead, 2, nil)

	stats := v.Stats()
	if stats.RaceConditions != 0 {
		t.Fatalf("RaceConditions = %d, want 0 for two reads from different threads in non-strict mode", stats.RaceConditions)
	}
}

func TestTrackAccessFlagsWriteWriteConflict(t *testing.T) {
	v := NewBarrierValidator(0, false, logging.Nop())
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 1, nil)
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 2, nil)

	stats := v.Stats()
	if stats.RaceConditions != 1 {
		t.Fatalf("RaceConditions = %d, want 1 for a write/write conflict across threads", stats.RaceConditions)
	}
}

func TestTrackAccessIgnoresSameThread(t *testing.T) {
	v := NewBarrierValidator(0, false, logging.Nop())
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 1, nil)
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 1, nil)

	if got := v.Stats().RaceConditions; got != 0 {
		t.Fatalf("RaceConditions = %d, want 0 when both accesses come from the same thread", got)
	}
}

func TestTrackAccessStrictModeFlagsReadReadOverlap(t *testing.T) {
	v := NewBarrierValidator(0, true, logging.Nop())
	v.TrackAccess(1, ResourceBuffer, AccessRead, 1, nil)
	v.TrackAccess(1, ResourceBuffer, AccessRead, 2, nil)

	if got := v.Stats().RaceConditions; got != 1 {
		t.Fatalf("RaceConditions = %d, want 1 in strict mode for a read/read overlap across threads", got)
	}
}

func TestTrackAccessDisabledDoesNothing(t *testing.T) {
	v := NewBarrierValidator(0, false, logging.Nop())
	v.SetEnabled(false)
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 1, nil)
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 2, nil)

	stats := v.Stats()
	if stats.TotalAccesses != 0 {
		t.Fatalf("TotalAccesses = %d, want 0 while disabled", stats.TotalAccesses)
	}
}

func TestRingBufferEvictsOldestEntry(t *testing.T) {
	v := NewBarrierValidator(1, false, logging.Nop())
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 1, nil)
	// Resource 1's only tracked access should be evicted, so no conflict.
	v.TrackAccess(2, ResourceBuffer, AccessWrite, 2, nil)
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 3, nil)

	if got := v.Stats().RaceConditions; got != 0 {
		t.Fatalf("RaceConditions = %d, want 0 once the conflicting entry has been evicted from a size-1 ring", got)
	}
}

func TestCheckRaceConditionDetectsCrossThreadWrite(t *testing.T) {
	v := NewBarrierValidator(0, false, logging.Nop())
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 1, nil)
	v.TrackAccess(1, ResourceBuffer, AccessRead, 2, nil)

	if !v.CheckRaceCondition(1, 2) {
		t.Fatalf("CheckRaceCondition(1, 2) = false, want true for a write-vs-read on the same resource")
	}
	if v.CheckRaceCondition(2, 3) {
		t.Fatalf("CheckRaceCondition(2, 3) = true, want false: thread 3 never touched anything")
	}
}

func TestClearResetsAccessesNotStats(t *testing.T) {
	v := NewBarrierValidator(0, false, logging.Nop())
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 1, nil)
	v.TrackAccess(1, ResourceBuffer, AccessWrite, 2, nil)

	before := v.Stats()
	v.Clear()
	after := v.Stats()
	if after.TotalAccesses != before.TotalAccesses {
		t.Fatalf("Clear() changed TotalAccesses: before=%d after=%d, want unchanged", before.TotalAccesses, after.TotalAccesses)
	}
	if v.CheckRaceCondition(1, 2) {
		t.Fatalf("CheckRaceCondition still reports a conflict after Clear()")
	}
}
