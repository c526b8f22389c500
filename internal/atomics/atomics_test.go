package atomics

import (
	"sync"
	"testing"
)

func TestCounter32IncDec(t *testing.T) {
	var c Counter32
	c.Inc()
	c.Inc()
	c.Dec()
	if got := c.Load(); got != 1 {
		t.Fatalf("Load() = %d, want 1", got)
	}
}

func TestCounter32CompareAndSwap(t *testing.T) {
	var c Counter32
	c.Store(5)
	if ok := c.CompareAndSwap(4, 9); ok {
		t.Fatalf("CompareAndSwap succeeded against the wrong old value")
	}
	if ok := c.CompareAndSwap(5, 9); !ok {
		t.Fatalf("CompareAndSwap failed against the correct old value")
	}
	if got := c.Load(); got != 9 {
		t.Fatalf("Load() = %d, want 9", got)
	}
}

func TestCounter64Concurrent(t *testing.T) {
	var c Counter64
	var wg sync.WaitGroup
	const goroutines, perGoroutine = 50, 100
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	if got := c.Load(); got != goroutines*perGoroutine {
		t.Fatalf("Load() = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestFetchAddU64Sequence(t *testing.T) {
	var f FetchAddU64
	a := f.Next(1)
	b := f.Next(1)
	if b != a+1 {
		t.Fatalf("sequence not strictly increasing: a=%d b=%d", a, b)
	}
}

func TestFlagTestAndSet(t *testing.T) {
	var f Flag
	if !f.TestAndSet() {
		t.Fatalf("first TestAndSet on a fresh Flag should report wasFalse=true")
	}
	if f.TestAndSet() {
		t.Fatalf("second TestAndSet should report wasFalse=false, flag already set")
	}
	if !f.Get() {
		t.Fatalf("Get() = false after TestAndSet, want true")
	}
	f.Set(false)
	if f.Get() {
		t.Fatalf("Get() = true after Set(false)")
	}
}
