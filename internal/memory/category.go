package memory

import "sync"

// CategoryView wraps an underlying Allocator and attributes every alloc/realloc/free
// to one Category's Stats. This is the façade callers actually hold — they never talk
// to Dynamic or Bump directly outside of Registry's construction.
type CategoryView struct {
	mu    sync.Mutex
	under Allocator
	cat   Category
	sizeOf func(Handle) (int, bool)
	stats Stats
}

func newCategoryView(under Allocator, cat Category, sizeOf func(Handle) (int, bool)) *CategoryView {
	return &CategoryView{under: under, cat: cat, sizeOf: sizeOf}
}

func (v *CategoryView) Category() Category { return v.cat }

func (v *CategoryView) Alloc(size, alignment int) (Handle, []byte, error) {
	h, data, err := v.under.Alloc(size, alignment)
	if err != nil {
		return h, data, err
	}
	v.mu.Lock()
	v.stats.TotalAllocated += uint64(size)
	v.stats.CurrentUsage += uint64(size)
	if v.stats.CurrentUsage > v.stats.PeakUsage {
		v.stats.PeakUsage = v.stats.CurrentUsage
	}
	v.stats.AllocCount++
	v.mu.Unlock()
	return h, data, nil
}

func (v *CategoryView) Realloc(h Handle, newSize int) ([]byte, error) {
	oldSize := 0
	if v.sizeOf != nil {
		oldSize, _ = v.sizeOf(h)
	}
	data, err := v.under.Realloc(h, newSize)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	delta := int64(newSize) - int64(oldSize)
	if delta > 0 {
		v.stats.TotalAllocated += uint64(delta)
		v.stats.CurrentUsage += uint64(delta)
	} else {
		v.stats.CurrentUsage -= uint64(-delta)
	}
	if v.stats.CurrentUsage > v.stats.PeakUsage {
		v.stats.PeakUsage = v.stats.CurrentUsage
	}
	v.mu.Unlock()
	return data, nil
}

func (v *CategoryView) Free(h Handle) {
	size := 0
	if v.sizeOf != nil {
		size, _ = v.sizeOf(h)
	}
	v.under.Free(h)
	v.mu.Lock()
	if uint64(size) > v.stats.CurrentUsage {
		v.stats.CurrentUsage = 0
	} else {
		v.stats.CurrentUsage -= uint64(size)
	}
	v.stats.FreeCount++
	v.mu.Unlock()
}

func (v *CategoryView) Reset() { v.under.Reset() }

// Stats returns a snapshot of this category's accounting.
func (v *CategoryView) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// Registry owns the default allocator set described in §4.2: one global dynamic
// allocator, one global bump allocator, and one CategoryView per Category backed by
// the dynamic allocator.
type Registry struct {
	Dynamic *Dynamic
	Bump    *Bump
	views   [categoryCount]*CategoryView
}

// NewRegistry builds the default allocator set. bumpCapacity of 0 uses the 4 MiB
// default.
func NewRegistry(bumpCapacity int) *Registry {
	r := &Registry{
		Dynamic: NewDynamic(256),
		Bump:    NewBump(bumpCapacity),
	}
	for c := Category(0); c < categoryCount; c++ {
		r.views[c] = newCategoryView(r.Dynamic, c, r.Dynamic.Size)
	}
	return r
}

// View returns the categorized allocator façade for cat.
func (r *Registry) View(cat Category) *CategoryView { return r.views[cat] }

// AllStats returns a snapshot of every category's stats, keyed by category.
func (r *Registry) AllStats() map[Category]Stats {
	out := make(map[Category]Stats, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out[c] = r.views[c].Stats()
	}
	return out
}
