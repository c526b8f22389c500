// Package scene implements the read-only side of component C12 (scene
// upload): a glTF/GLB loader producing the §3 Scene data model, and GPU
// upload of each mesh into a vertex/index buffer pair via staging. The
// glTF/GLB format itself is an out-of-scope external collaborator (§1); this
// package only maps github.com/qmuntal/gltf's node/mesh/material graph into
// Cardinal's own types, grounded on mrigankad-gorenderengine's
// scene/gltf_loader.go, which does the same mapping against a different
// target renderer.
package scene

import "github.com/markusmaurer/cardinal/internal/texture"

// Node is one entry in the imported scene graph: a local transform, an
// optional mesh reference, and child node indices.
type Node struct {
	Name        string
	Translation [3]float32
	Rotation    [4]float32 // x, y, z, w
	Scale       [3]float32
	MeshIndex   int // -1 if this node carries no mesh
	Children    []int
}

// Mesh is one CPU-side primitive: an interleaved vertex slice matching
// pipeline.Vertex's layout byte-for-byte, an optional index slice, and the
// material it was authored with.
type Mesh struct {
	Name          string
	Vertices      []byte // packed pipeline.Vertex records
	VertexCount   uint32
	Indices       []uint32
	MaterialIndex int // -1 if unassigned
}

// Scene is the full §3 "Scene (input)" data model: an ordered sequence of
// meshes, materials, textures (already uploaded into the given
// texture.Cache), and nodes, consumed read-only by GPU upload.
type Scene struct {
	Meshes    []Mesh
	Materials []texture.Material
	Roots     []int
	Nodes     []Node
}

const noIndex = -1
