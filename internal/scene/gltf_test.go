package scene

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/markusmaurer/cardinal/internal/texture"
)

func TestAppendFloat32sPacksLittleEndian(t *testing.T) {
	buf := appendFloat32s(nil, 1.5, -2.25)
	if len(buf) != 8 {
		t.Fatalf("len(buf) = %d, want 8", len(buf))
	}
	got0 := math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	got1 := math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
	if got0 != 1.5 || got1 != -2.25 {
		t.Fatalf("decoded = (%v, %v), want (1.5, -2.25)", got0, got1)
	}
}

func TestAppendFloat32sAppendsToExistingBuffer(t *testing.T) {
	buf := []byte{0xAA}
	buf = appendFloat32s(buf, 0)
	if len(buf) != 5 {
		t.Fatalf("len(buf) = %d, want 5 (1 prefix byte + 4 for the float)", len(buf))
	}
	if buf[0] != 0xAA {
		t.Fatalf("appendFloat32s clobbered the existing prefix byte")
	}
}

func TestResolveTexIndexValid(t *testing.T) {
	texIndex := []int32{5, 7, 9}
	if got := resolveTexIndex(texIndex, 1); got != 7 {
		t.Fatalf("resolveTexIndex(1) = %d, want 7", got)
	}
}

func TestResolveTexIndexOutOfRange(t *testing.T) {
	texIndex := []int32{5, 7, 9}
	if got := resolveTexIndex(texIndex, -1); got != texture.NoTextureIndex {
		t.Fatalf("resolveTexIndex(-1) = %d, want NoTextureIndex", got)
	}
	if got := resolveTexIndex(texIndex, 3); got != texture.NoTextureIndex {
		t.Fatalf("resolveTexIndex(3) = %d, want NoTextureIndex", got)
	}
}
