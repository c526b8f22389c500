package pipeline

import vk "github.com/vulkan-go/vulkan"

// Vertex is the fixed per-vertex layout every Cardinal mesh is uploaded in,
// matching the attribute set the PBR pipeline's vertex shader declares.
// Scene upload (C12) packs CPU mesh data into slices of this exact layout
// before staging it to a device-local buffer.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
	Tangent  [4]float32 // xyz = tangent, w = bitangent handedness
}

// VertexSize is the byte stride of one Vertex, used both for the binding
// description below and for sizing vertex buffers in C12.
const VertexSize = 4 * (3 + 3 + 2 + 4)

const (
	vertexLocationPosition = 0
	vertexLocationNormal   = 1
	vertexLocationUV       = 2
	vertexLocationTangent  = 3
)

// VertexBindingDescription describes the single interleaved vertex buffer
// binding every Cardinal pipeline variant consumes.
func VertexBindingDescription() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    uint32(VertexSize),
			InputRate: vk.VertexInputRateVertex,
		},
	}
}

// VertexAttributeDescriptions describes the position/normal/uv/tangent
// attributes packed into Vertex, in byte order.
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{Location: vertexLocationPosition, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: vertexLocationNormal, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 4 * 3},
		{Location: vertexLocationUV, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 4 * 6},
		{Location: vertexLocationTangent, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: 4 * 8},
	}
}
