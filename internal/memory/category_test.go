package memory

import "testing"

func TestCategoryViewTracksAllocStats(t *testing.T) {
	r := NewRegistry(0)
	v := r.View(CategoryTextures)

	h1, _, err := v.Alloc(100, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	v.Alloc(50, 8)

	stats := v.Stats()
	if stats.TotalAllocated != 150 || stats.CurrentUsage != 150 || stats.AllocCount != 2 {
		t.Fatalf("stats after two allocs = %+v, want Total=150 Current=150 AllocCount=2", stats)
	}
	if stats.PeakUsage != 150 {
		t.Fatalf("PeakUsage = %d, want 150", stats.PeakUsage)
	}

	v.Free(h1)
	stats = v.Stats()
	if stats.CurrentUsage != 50 || stats.FreeCount != 1 {
		t.Fatalf("stats after Free = %+v, want Current=50 FreeCount=1", stats)
	}
	// Peak usage must not drop on free.
	if stats.PeakUsage != 150 {
		t.Fatalf("PeakUsage dropped after Free: %d, want still 150", stats.PeakUsage)
	}
}

func TestCategoryViewReallocAdjustsUsage(t *testing.T) {
	r := NewRegistry(0)
	v := r.View(CategoryMeshes)

	h, _, _ := v.Alloc(10, 1)
	if _, err := v.Realloc(h, 30); err != nil {
		t.Fatalf("Realloc grow: %v", err)
	}
	if got := v.Stats().CurrentUsage; got != 30 {
		t.Fatalf("CurrentUsage after grow = %d, want 30", got)
	}
}

func TestCategoriesAreIndependent(t *testing.T) {
	r := NewRegistry(0)
	tex := r.View(CategoryTextures)
	mesh := r.View(CategoryMeshes)

	tex.Alloc(100, 1)
	if got := mesh.Stats().TotalAllocated; got != 0 {
		t.Fatalf("mesh category saw textures allocations: TotalAllocated = %d, want 0", got)
	}
}

func TestAllStatsCoversEveryCategory(t *testing.T) {
	r := NewRegistry(0)
	all := r.AllStats()
	if len(all) != int(categoryCount) {
		t.Fatalf("AllStats returned %d entries, want %d", len(all), categoryCount)
	}
}

func TestCategoryStringNames(t *testing.T) {
	if CategoryEngine.String() != "engine" {
		t.Fatalf("CategoryEngine.String() = %q, want \"engine\"", CategoryEngine.String())
	}
	if Category(999).String() != "unknown" {
		t.Fatalf("out-of-range Category.String() = %q, want \"unknown\"", Category(999).String())
	}
}

func TestFreeClampsBelowZero(t *testing.T) {
	r := NewRegistry(0)
	v := r.View(CategoryAssets)
	h, _, _ := v.Alloc(10, 1)
	v.Free(h)
	v.Free(h) // sizeOf now returns !ok -> size 0, must not underflow CurrentUsage
	if got := v.Stats().CurrentUsage; got != 0 {
		t.Fatalf("CurrentUsage = %d after double free, want clamped to 0", got)
	}
}
