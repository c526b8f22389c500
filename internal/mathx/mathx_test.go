package mathx

import (
	"math"
	"testing"

	lin "github.com/xlab/linmath"
)

func closeTo(a, b, eps float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestVulkanProjectionFlipsY(t *testing.T) {
	var proj, fixedUp lin.Mat4x4
	proj.Identity()
	VulkanProjection(&fixedUp, &proj)

	// The Y scale factor introduced by the fixup should be negative somewhere
	// in the resulting matrix's diagonal-ish structure; at minimum the fixup
	// must not leave the matrix identical to the unmodified input.
	same := true
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if fixedUp[row][col] != proj[row][col] {
				same = false
			}
		}
	}
	if same {
		t.Fatalf("VulkanProjection left the matrix unchanged from its GL-convention input")
	}
}

func TestModelIdentityTransform(t *testing.T) {
	tr := Transform{
		Translation: [3]float32{0, 0, 0},
		Rotation:    [4]float32{0, 0, 0, 1},
		Scale:       [3]float32{1, 1, 1},
	}
	m := Model(tr)

	want := [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	for i := range want {
		if !closeTo(m[i], want[i], 1e-5) {
			t.Fatalf("Model(identity transform)[%d] = %v, want %v", i, m[i], want[i])
		}
	}
}

func TestModelAppliesTranslation(t *testing.T) {
	tr := Transform{
		Translation: [3]float32{1, 2, 3},
		Rotation:    [4]float32{0, 0, 0, 1},
		Scale:       [3]float32{1, 1, 1},
	}
	m := Model(tr)
	// linmath's Mat4x4 is column-major (m[col][row]) and flatten writes it
	// column by column, so the translation column lands at indices 12, 13, 14.
	if !closeTo(m[12], 1, 1e-5) || !closeTo(m[13], 2, 1e-5) || !closeTo(m[14], 3, 1e-5) {
		t.Fatalf("Model did not place the translation where expected: %v", m)
	}
}

func TestNewCameraEyeUniform(t *testing.T) {
	cam := NewCamera(
		lin.Vec3{0, 1.5, 4}, lin.Vec3{0, 0, 0}, lin.Vec3{0, 1, 0},
		float32(math.Pi/4), 16.0/9.0, 0.1, 100.0,
	)
	_, _, eye := cam.Uniform()
	if eye != [4]float32{0, 1.5, 4, 1} {
		t.Fatalf("Uniform() eye = %v, want {0 1.5 4 1}", eye)
	}
}
