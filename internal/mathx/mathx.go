// Package mathx builds the model/view/projection matrices component C10's
// pipelines consume as push/uniform data, plus the Vulkan clip-space fixup.
// Grounded on the teacher's math.go (VulkanProjectionMat) and
// daoshengmu-vulkan-gltf's uniform.go (Perspective/LookAt/Rotate/Mult call
// shapes), both built on github.com/xlab/linmath.
package mathx

import lin "github.com/xlab/linmath"

// VulkanProjection converts an OpenGL-convention projection matrix (Y up,
// [-1,1] depth) into Vulkan's (Y down, [0,1] depth), unchanged from the
// teacher's VulkanProjectionMat.
func VulkanProjection(out *lin.Mat4x4, proj *lin.Mat4x4) {
	out.Fill(1.0)
	out.ScaleAniso(out, 1.0, -1.0, 1.0)
	out.ScaleAniso(out, 1.0, 1.0, 0.5)
	out.Translate(0.0, 0.0, 1.0)
	out.Mult(out, proj)
}

// Camera holds the view/projection pair a frame's CameraUniform is built
// from, already fixed up for Vulkan's clip space.
type Camera struct {
	View       lin.Mat4x4
	Projection lin.Mat4x4
	Eye        lin.Vec3
}

// NewCamera builds a look-at view matrix and a perspective projection fixed
// up for Vulkan, mirroring VulkanRenderInfo's projectionMatrix/viewMatrix
// setup in the uniform.go example.
func NewCamera(eye, center, up lin.Vec3, fovYRadians, aspect, near, far float32) Camera {
	var c Camera
	c.Eye = eye
	c.View.LookAt(&eye, &center, &up)

	var raw lin.Mat4x4
	raw.Perspective(fovYRadians, aspect, near, far)
	VulkanProjection(&c.Projection, &raw)
	return c
}

// Uniform packs View/Projection/Eye into the 16/16/4 float32 layout
// pipeline.CameraUniform expects.
func (c Camera) Uniform() (view [16]float32, proj [16]float32, eye [4]float32) {
	copy(view[:], flatten(&c.View))
	copy(proj[:], flatten(&c.Projection))
	eye = [4]float32{c.Eye[0], c.Eye[1], c.Eye[2], 1}
	return
}

func flatten(m *lin.Mat4x4) []float32 {
	out := make([]float32, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row*4+col] = m[row][col]
		}
	}
	return out
}

// Transform is a node's local TRS, matching scene.Node's fields; Model
// composes it into a column-major 4x4 matrix via translate*rotate*scale
// composition, the order every glTF-derived scene graph assumes.
type Transform struct {
	Translation [3]float32
	Rotation    [4]float32 // quaternion x,y,z,w
	Scale       [3]float32
}

// Model builds the model matrix for t, applied to a pipeline's push-constant
// Model field before a mesh's draw call. The quaternion-to-matrix step is
// the standard column-major formula rather than a linmath Quat method, since
// the pack's one linmath usage example never exercises rotation via
// quaternions.
func Model(t Transform) [16]float32 {
	var m lin.Mat4x4
	m.Identity()
	rot := quatToMat4(t.Rotation)

	m.Mult(&m, &rot)
	m.ScaleAniso(&m, t.Scale[0], t.Scale[1], t.Scale[2])
	// linmath's Translate resets the matrix, so the translation column is set directly.
	m[3][0], m[3][1], m[3][2] = t.Translation[0], t.Translation[1], t.Translation[2]

	return flattenArray(&m)
}

func quatToMat4(q [4]float32) lin.Mat4x4 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	var m lin.Mat4x4
	m[0][0] = 1 - 2*(y*y+z*z)
	m[0][1] = 2 * (x*y + z*w)
	m[0][2] = 2 * (x*z - y*w)
	m[0][3] = 0
	m[1][0] = 2 * (x*y - z*w)
	m[1][1] = 1 - 2*(x*x+z*z)
	m[1][2] = 2 * (y*z + x*w)
	m[1][3] = 0
	m[2][0] = 2 * (x*z + y*w)
	m[2][1] = 2 * (y*z - x*w)
	m[2][2] = 1 - 2*(x*x+y*y)
	m[2][3] = 0
	m[3][0], m[3][1], m[3][2] = 0, 0, 0
	m[3][3] = 1
	return m
}

func flattenArray(m *lin.Mat4x4) [16]float32 {
	var out [16]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row*4+col] = m[row][col]
		}
	}
	return out
}
