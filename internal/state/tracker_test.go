package state

import (
	"sync"
	"testing"
	"time"
)

func TestFullLifecycle(t *testing.T) {
	tr := New()
	const owner = uint64(1)

	if !tr.TryAcquireLoading("mesh:1", owner) {
		t.Fatalf("TryAcquireLoading failed on a fresh resource")
	}
	if got := tr.Status("mesh:1"); got != Loading {
		t.Fatalf("Status = %s, want loading", got)
	}
	if err := tr.Complete("mesh:1", owner); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !tr.IsSafeToAccess("mesh:1") {
		t.Fatalf("IsSafeToAccess = false after Complete")
	}
	if err := tr.Release("mesh:1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := tr.Status("mesh:1"); got != Unloading {
		t.Fatalf("Status = %s, want unloading", got)
	}
	if err := tr.Done("mesh:1"); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if got := tr.Status("mesh:1"); got != Unloaded {
		t.Fatalf("Status = %s, want unloaded", got)
	}
}

func TestTryAcquireLoadingRejectsConcurrentLoad(t *testing.T) {
	tr := New()
	if !tr.TryAcquireLoading("mesh:1", 1) {
		t.Fatalf("first TryAcquireLoading failed")
	}
	if tr.TryAcquireLoading("mesh:1", 2) {
		t.Fatalf("second TryAcquireLoading on an already-loading resource unexpectedly succeeded")
	}
}

func TestTryAcquireLoadingAllowedFromError(t *testing.T) {
	tr := New()
	tr.TryAcquireLoading("mesh:1", 1)
	if err := tr.Fail("mesh:1", 1); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if got := tr.Status("mesh:1"); got != Error {
		t.Fatalf("Status = %s, want error", got)
	}
	if !tr.TryAcquireLoading("mesh:1", 2) {
		t.Fatalf("TryAcquireLoading should be allowed to retry from the error state")
	}
}

func TestCompleteRejectsWrongOwner(t *testing.T) {
	tr := New()
	tr.TryAcquireLoading("mesh:1", 1)
	if err := tr.Complete("mesh:1", 2); err == nil {
		t.Fatalf("Complete succeeded with the wrong owner tag")
	}
	if got := tr.Status("mesh:1"); got != Loading {
		t.Fatalf("Status changed to %s despite a rejected Complete call", got)
	}
}

func TestCompleteRejectsWhenNotLoading(t *testing.T) {
	tr := New()
	if err := tr.Complete("mesh:1", 1); err == nil {
		t.Fatalf("Complete succeeded on a resource that was never loading")
	}
}

func TestReleaseRequiresLoaded(t *testing.T) {
	tr := New()
	if err := tr.Release("mesh:1"); err == nil {
		t.Fatalf("Release succeeded on an unloaded resource")
	}
}

func TestWaitForReachesTarget(t *testing.T) {
	tr := New()
	tr.TryAcquireLoading("mesh:1", 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		tr.Complete("mesh:1", 1)
	}()

	ok := tr.WaitFor("mesh:1", Loaded, time.Second)
	wg.Wait()
	if !ok {
		t.Fatalf("WaitFor did not observe the Loaded transition within the timeout")
	}
}

func TestWaitForTimesOut(t *testing.T) {
	tr := New()
	tr.TryAcquireLoading("mesh:1", 1)

	ok := tr.WaitFor("mesh:1", Loaded, 20*time.Millisecond)
	if ok {
		t.Fatalf("WaitFor reported success despite no transition ever happening")
	}
}

func TestStatusOfUnknownIDIsUnloaded(t *testing.T) {
	tr := New()
	if got := tr.Status("never-seen"); got != Unloaded {
		t.Fatalf("Status(unknown) = %s, want unloaded", got)
	}
}
