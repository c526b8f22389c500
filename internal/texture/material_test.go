package texture

import (
	"testing"

	"github.com/markusmaurer/cardinal/internal/refs"
)

func baseMaterial() Material {
	return Material{
		BaseColorTexture:         1,
		MetallicRoughnessTexture: NoTextureIndex,
		NormalTexture:            NoTextureIndex,
		OcclusionTexture:         NoTextureIndex,
		EmissiveTexture:          NoTextureIndex,
		BaseColorFactor:          [4]float32{1, 1, 1, 1},
		MetallicFactor:           1,
		RoughnessFactor:          1,
		UVTransform:              [4]float32{0, 0, 1, 1},
	}
}

func TestAcquireDeduplicatesIdenticalMaterials(t *testing.T) {
	c := NewMaterialCache(refs.New(0))
	a := c.Acquire(baseMaterial())
	b := c.Acquire(baseMaterial())
	if a != b {
		t.Fatalf("two Acquire calls with identical materials returned different entries")
	}
	if a.Count() != 2 {
		t.Fatalf("count = %d, want 2 after two acquisitions", a.Count())
	}
}

func TestAcquireDistinguishesDifferentMaterials(t *testing.T) {
	c := NewMaterialCache(refs.New(0))
	a := c.Acquire(baseMaterial())

	other := baseMaterial()
	other.BaseColorTexture = 2
	b := c.Acquire(other)

	if a == b {
		t.Fatalf("materials differing only in BaseColorTexture hashed to the same entry")
	}
}

func TestAcquireDistinguishesFactorsAndTransform(t *testing.T) {
	c := NewMaterialCache(refs.New(0))
	a := c.Acquire(baseMaterial())

	factorChanged := baseMaterial()
	factorChanged.RoughnessFactor = 0.5
	if c.Acquire(factorChanged) == a {
		t.Fatalf("changing RoughnessFactor did not change the material identifier")
	}

	transformChanged := baseMaterial()
	transformChanged.UVTransform = [4]float32{0.5, 0, 1, 1}
	if c.Acquire(transformChanged) == a {
		t.Fatalf("changing UVTransform did not change the material identifier")
	}
}

func TestReleaseDropsLastReference(t *testing.T) {
	c := NewMaterialCache(refs.New(0))
	e := c.Acquire(baseMaterial())
	c.Release(e)
	if e.Count() != 0 {
		t.Fatalf("count = %d after releasing the only reference, want 0", e.Count())
	}

	// Acquiring the same material again should create a fresh entry now that
	// the previous one was unlinked.
	again := c.Acquire(baseMaterial())
	if again == e {
		t.Fatalf("Acquire reused an unlinked entry instead of creating a new one")
	}
}
