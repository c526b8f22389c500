package memory

import "testing"

func TestDynamicAllocFreeRoundTrip(t *testing.T) {
	d := NewDynamic(0)
	h, data, err := d.Alloc(64, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(data) != 64 {
		t.Fatalf("len(data) = %d, want 64", len(data))
	}
	if size, ok := d.Size(h); !ok || size != 64 {
		t.Fatalf("Size(h) = (%d, %v), want (64, true)", size, ok)
	}
	d.Free(h)
	if _, ok := d.Size(h); ok {
		t.Fatalf("Size(h) still reports ok after Free")
	}
}

func TestDynamicAllocRejectsNonPositiveSize(t *testing.T) {
	d := NewDynamic(0)
	if _, _, err := d.Alloc(0, 8); err == nil {
		t.Fatalf("Alloc(0, ...) succeeded, want an error")
	}
	if _, _, err := d.Alloc(-1, 8); err == nil {
		t.Fatalf("Alloc(-1, ...) succeeded, want an error")
	}
}

func TestDynamicFreeUnknownHandleIsNoOp(t *testing.T) {
	d := NewDynamic(0)
	d.Free(Handle(9999)) // must not panic
}

func TestDynamicReallocPreservesPrefixAndGrows(t *testing.T) {
	d := NewDynamic(0)
	h, data, _ := d.Alloc(4, 1)
	copy(data, []byte{1, 2, 3, 4})

	grown, err := d.Realloc(h, 8)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if len(grown) != 8 {
		t.Fatalf("len(grown) = %d, want 8", len(grown))
	}
	for i, want := range []byte{1, 2, 3, 4} {
		if grown[i] != want {
			t.Fatalf("grown[%d] = %d, want %d", i, grown[i], want)
		}
	}
	// The old handle was freed by Realloc.
	if _, ok := d.Size(h); ok {
		t.Fatalf("old handle still live after Realloc")
	}
}

func TestDynamicReallocShrinks(t *testing.T) {
	d := NewDynamic(0)
	h, data, _ := d.Alloc(8, 1)
	copy(data, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	shrunk, err := d.Realloc(h, 3)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if len(shrunk) != 3 {
		t.Fatalf("len(shrunk) = %d, want 3", len(shrunk))
	}
	for i, want := range []byte{1, 2, 3} {
		if shrunk[i] != want {
			t.Fatalf("shrunk[%d] = %d, want %d", i, shrunk[i], want)
		}
	}
}

func TestDynamicReallocUnknownHandle(t *testing.T) {
	d := NewDynamic(0)
	if _, err := d.Realloc(Handle(123), 8); err == nil {
		t.Fatalf("Realloc on an unknown handle succeeded, want an error")
	}
}

func TestDynamicReset(t *testing.T) {
	d := NewDynamic(0)
	h, _, _ := d.Alloc(16, 1)
	d.Reset()
	if _, ok := d.Size(h); ok {
		t.Fatalf("Size(h) still reports ok after Reset")
	}
}

func TestBumpAllocAdvancesOffsetAndFailsPastCapacity(t *testing.T) {
	b := NewBump(16)
	_, data, err := b.Alloc(10, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(data) != 10 {
		t.Fatalf("len(data) = %d, want 10", len(data))
	}
	if b.Used() != 10 {
		t.Fatalf("Used() = %d, want 10", b.Used())
	}
	if _, _, err := b.Alloc(10, 1); err != ErrOutOfCapacity {
		t.Fatalf("Alloc past capacity = %v, want ErrOutOfCapacity", err)
	}
}

func TestBumpAlignment(t *testing.T) {
	b := NewBump(64)
	_, _, _ = b.Alloc(3, 1) // offset now 3
	_, data, err := b.Alloc(8, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("len(data) = %d, want 8", len(data))
	}
	if b.Used() != 16 {
		t.Fatalf("Used() = %d, want 16 (aligned offset 8 + size 8)", b.Used())
	}
}

func TestBumpResetRewindsOffset(t *testing.T) {
	b := NewBump(16)
	b.Alloc(10, 1)
	b.Reset()
	if b.Used() != 0 {
		t.Fatalf("Used() = %d after Reset, want 0", b.Used())
	}
}

func TestBumpDefaultCapacity(t *testing.T) {
	b := NewBump(0)
	if b.Capacity() != 4<<20 {
		t.Fatalf("Capacity() = %d, want default 4 MiB", b.Capacity())
	}
}

func TestBumpFreeIsNoOp(t *testing.T) {
	b := NewBump(16)
	h, _, _ := b.Alloc(8, 1)
	b.Free(h) // must not panic or affect Used()
	if b.Used() != 8 {
		t.Fatalf("Used() = %d after Free, want unchanged 8", b.Used())
	}
}
