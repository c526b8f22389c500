package pipeline

import (
	"testing"
	"unsafe"
)

func TestVertexSizeMatchesStructLayout(t *testing.T) {
	var v Vertex
	if got := int(unsafe.Sizeof(v)); got != VertexSize {
		t.Fatalf("unsafe.Sizeof(Vertex{}) = %d, VertexSize const = %d, want equal", got, VertexSize)
	}
}

func TestVertexBindingDescriptionStride(t *testing.T) {
	bindings := VertexBindingDescription()
	if len(bindings) != 1 {
		t.Fatalf("len(bindings) = %d, want 1", len(bindings))
	}
	if int(bindings[0].Stride) != VertexSize {
		t.Fatalf("Stride = %d, want %d", bindings[0].Stride, VertexSize)
	}
}

func TestVertexAttributeDescriptionsOffsetsAreMonotonic(t *testing.T) {
	attrs := VertexAttributeDescriptions()
	if len(attrs) != 4 {
		t.Fatalf("len(attrs) = %d, want 4", len(attrs))
	}
	var lastOffset uint32
	for i, a := range attrs {
		if i > 0 && a.Offset <= lastOffset {
			t.Fatalf("attribute %d offset %d does not advance past previous offset %d", i, a.Offset, lastOffset)
		}
		lastOffset = a.Offset
	}
	// Tangent is the last attribute (4 floats) and must fit within the stride.
	if attrs[3].Offset+4*4 != uint32(VertexSize) {
		t.Fatalf("tangent attribute end = %d, want to exactly fill the %d-byte stride", attrs[3].Offset+4*4, VertexSize)
	}
}
