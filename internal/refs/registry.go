// Package refs implements Cardinal's content-addressed shared-resource table
// (component C3): a hash table keyed by a canonical string identifier, separate
// chaining, atomic reference counts. Grounded on spec.md §4.3 and
// original_source/engine/src/core/ref_counting.c; in Go the "next-pointer" bucket
// chain from the design notes' "pointer-graph-to-index" guidance becomes a plain
// slice per bucket, and "atomic reference count" becomes an atomics.Counter32.
package refs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/markusmaurer/cardinal/internal/atomics"
)

// Destructor is invoked with the payload when an entry's count drops to zero.
type Destructor func(payload interface{})

// Entry is one resource's registry record. The identifier, payload, and destructor
// are immutable after creation; only the count and liveness mutate.
type Entry struct {
	ID         string
	Payload    interface{}
	Size       int
	destructor Destructor
	count      atomics.Counter32
}

// Count returns the current reference count.
func (e *Entry) Count() int32 { return e.count.Load() }

const defaultBuckets = 1009 // caller-supplied prime per §4.3; this is the default.

// Registry is the hash table. The bucket slice is protected by mu for structural
// changes (insert/unlink) and for lookups; count updates on an already-found Entry
// are lock-free atomics. Acquire holds mu only for its bucket lookup, and Release
// takes it only to unlink an entry whose count reached zero.
type Registry struct {
	mu      sync.Mutex
	buckets [][]*Entry
	total   atomics.Counter64
}

// New constructs a Registry with the given bucket count (0 uses the default of 1009).
func New(buckets int) *Registry {
	if buckets <= 0 {
		buckets = defaultBuckets
	}
	return &Registry{buckets: make([][]*Entry, buckets)}
}

func (r *Registry) bucketIndex(id string) int {
	h := fnv1a64(id)
	return int(h % uint64(len(r.buckets)))
}

func fnv1a64(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

func (r *Registry) findLocked(bi int, id string) *Entry {
	for _, e := range r.buckets[bi] {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Create inserts a new entry for id, or — if id already exists — bumps its count and
// returns the existing entry. The destructor and payload of an already-existing
// entry are left untouched; callers receive the *existing* entry's fields.
func (r *Registry) Create(id string, payload interface{}, size int, destructor Destructor) *Entry {
	id = canonical(id)
	bi := r.bucketIndex(id)

	r.mu.Lock()
	if e := r.findLocked(bi, id); e != nil {
		r.mu.Unlock()
		e.count.Inc()
		return e
	}
	e := &Entry{ID: id, Payload: payload, Size: size, destructor: destructor}
	e.count.Store(1)
	r.buckets[bi] = append(r.buckets[bi], e)
	r.mu.Unlock()

	r.total.Inc()
	return e
}

// Acquire looks up id, bumps its count, and returns the entry. It returns nil if id
// is absent.
func (r *Registry) Acquire(id string) *Entry {
	id = canonical(id)
	bi := r.bucketIndex(id)

	r.mu.Lock()
	e := r.findLocked(bi, id)
	r.mu.Unlock()
	if e == nil {
		return nil
	}
	e.count.Inc()
	return e
}

// Release atomically decrements e's count. Exactly one caller observes the
// transition to zero (the atomic decrement guarantees this even under concurrent
// releases); that caller unlinks the entry from its bucket *before* invoking the
// destructor, so the registry lock is never held while a (possibly slow) destructor
// runs — the locking discipline §5 requires.
func (r *Registry) Release(e *Entry) {
	if e == nil {
		return
	}
	n := e.count.Dec()
	if n != 0 {
		return
	}
	r.unlink(e)
	if e.destructor != nil {
		e.destructor(e.Payload)
	}
}

func (r *Registry) unlink(e *Entry) {
	bi := r.bucketIndex(e.ID)
	r.mu.Lock()
	bucket := r.buckets[bi]
	for i, cand := range bucket {
		if cand == e {
			r.buckets[bi] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	r.total.Dec()
}

// Exists reports whether id currently has a live entry.
func (r *Registry) Exists(id string) bool {
	id = canonical(id)
	bi := r.bucketIndex(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(bi, id) != nil
}

// Total returns the number of live entries across all buckets.
func (r *Registry) Total() int64 { return r.total.Load() }

// DebugDump renders every live entry as "id=count" lines, for diagnostics.
func (r *Registry) DebugDump() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for _, bucket := range r.buckets {
		for _, e := range bucket {
			fmt.Fprintf(&b, "%s=%d\n", e.ID, e.Count())
		}
	}
	return b.String()
}

func canonical(id string) string {
	return strings.TrimSpace(id)
}
