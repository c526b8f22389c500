package texture

import (
	"fmt"
	"math"

	"github.com/markusmaurer/cardinal/internal/refs"
)

// Material is the CPU-side tuple §3 describes: texture indices (into a
// Cache, NoTextureIndex when absent), scalar factors, and one UV transform
// (offset + scale) shared by every texture slot.
type Material struct {
	BaseColorTexture         int32
	MetallicRoughnessTexture int32
	NormalTexture            int32
	OcclusionTexture         int32
	EmissiveTexture          int32

	BaseColorFactor [4]float32
	EmissiveFactor  [3]float32
	MetallicFactor  float32
	RoughnessFactor float32

	// UVTransform is [offsetX, offsetY, scaleX, scaleY] applied uniformly to
	// every texture slot's UV coordinates; per-texture transforms beyond a
	// single shared one are not modeled (no importer in the pack needs them).
	UVTransform [4]float32
}

// MaterialCache deduplicates materials by content hash through the shared ref
// registry (C3), per §4.11: identical materials across meshes share one
// entry, and the registry's reference count tracks how many meshes still use
// it.
type MaterialCache struct {
	registry *refs.Registry
}

// NewMaterialCache wraps an existing registry; Cardinal shares one registry
// instance across materials, textures, and any other content-addressed
// resource, matching the registry's role as a single process-wide cache (§9
// "Globals").
func NewMaterialCache(registry *refs.Registry) *MaterialCache {
	return &MaterialCache{registry: registry}
}

// Acquire hashes m's texture indices, factors, and UV transform into a
// 192-bit triple identifier (three independent 64-bit FNV-1a runs over
// disjoint byte views of m, matching §3's "(texture_hash, factor_hash,
// transform_hash)") and returns the shared *refs.Entry for that identifier,
// creating one on first use. The caller must Release the entry when it no
// longer references the material.
func (c *MaterialCache) Acquire(m Material) *refs.Entry {
	id := materialID(m)
	if e := c.registry.Acquire(id); e != nil {
		return e
	}
	dup := m
	return c.registry.Create(id, &dup, int(materialSize), nil)
}

// Release decrements e's reference count, freeing the cache slot once no
// mesh references it any longer.
func (c *MaterialCache) Release(e *refs.Entry) {
	c.registry.Release(e)
}

const materialSize = 4 * (5 + 4 + 3 + 1 + 1 + 4)

func materialID(m Material) string {
	textureHash := fnv1a64Ints(m.BaseColorTexture, m.MetallicRoughnessTexture, m.NormalTexture, m.OcclusionTexture, m.EmissiveTexture)
	factorHash := fnv1a64Floats(m.BaseColorFactor[0], m.BaseColorFactor[1], m.BaseColorFactor[2], m.BaseColorFactor[3],
		m.EmissiveFactor[0], m.EmissiveFactor[1], m.EmissiveFactor[2], m.MetallicFactor, m.RoughnessFactor)
	transformHash := fnv1a64Floats(m.UVTransform[0], m.UVTransform[1], m.UVTransform[2], m.UVTransform[3])
	return fmt.Sprintf("material:%016x:%016x:%016x", textureHash, factorHash, transformHash)
}

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

func fnv1a64Ints(values ...int32) uint64 {
	h := uint64(fnvOffset64)
	for _, v := range values {
		u := uint32(v)
		for i := 0; i < 4; i++ {
			h ^= uint64(byte(u >> (8 * i)))
			h *= fnvPrime64
		}
	}
	return h
}

func fnv1a64Floats(values ...float32) uint64 {
	h := uint64(fnvOffset64)
	for _, v := range values {
		u := math.Float32bits(v)
		for i := 0; i < 4; i++ {
			h ^= uint64(byte(u >> (8 * i)))
			h *= fnvPrime64
		}
	}
	return h
}
