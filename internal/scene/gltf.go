package scene

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/markusmaurer/cardinal/internal/texture"
)

// Load opens a .gltf or .glb file, uploads every referenced image into cache,
// and returns the mapped Scene. Mirrors mrigankad-gorenderengine's
// LoadGLTF: textures first, then materials referencing them, then mesh
// primitives, then the node hierarchy.
func Load(path string, cache *texture.Cache) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: open %q: %w", path, err)
	}
	dir := filepath.Dir(path)

	texIndex, err := loadTextures(doc, dir, cache)
	if err != nil {
		return nil, err
	}

	s := &Scene{}
	s.Materials = loadMaterials(doc, texIndex)

	meshStart := make([]int, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		meshStart[mi] = len(s.Meshes)
		for pi, prim := range gm.Primitives {
			m, err := loadPrimitive(doc, gm.Name, pi, prim)
			if err != nil {
				return nil, fmt.Errorf("scene: mesh %d primitive %d: %w", mi, pi, err)
			}
			s.Meshes = append(s.Meshes, m)
		}
	}

	s.Nodes = make([]Node, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		n := Node{Name: gn.Name, MeshIndex: noIndex}
		t := gn.TranslationOrDefault()
		n.Translation = [3]float32{float32(t[0]), float32(t[1]), float32(t[2])}
		sc := gn.ScaleOrDefault()
		n.Scale = [3]float32{float32(sc[0]), float32(sc[1]), float32(sc[2])}
		r := gn.RotationOrDefault()
		n.Rotation = [4]float32{float32(r[0]), float32(r[1]), float32(r[2]), float32(r[3])}
		if gn.Mesh != nil && int(*gn.Mesh) < len(meshStart) {
			// A glTF mesh with multiple primitives maps to multiple Cardinal
			// Mesh entries; a node references only the first — callers that
			// need every primitive iterate doc.Meshes[*gn.Mesh].Primitives
			// length via meshStart spacing, which the Non-goal on asset
			// baking keeps out of scope for anything beyond single-primitive
			// meshes.
			n.MeshIndex = meshStart[*gn.Mesh]
		}
		n.Children = make([]int, len(gn.Children))
		for i, c := range gn.Children {
			n.Children[i] = int(c)
		}
		s.Nodes[i] = n
	}

	if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
		for _, root := range doc.Scenes[*doc.Scene].Nodes {
			s.Roots = append(s.Roots, int(root))
		}
	} else {
		hasParent := make([]bool, len(s.Nodes))
		for _, gn := range doc.Nodes {
			for _, c := range gn.Children {
				if int(c) < len(hasParent) {
					hasParent[c] = true
				}
			}
		}
		for i := range s.Nodes {
			if !hasParent[i] {
				s.Roots = append(s.Roots, i)
			}
		}
	}

	return s, nil
}

// loadTextures decodes every referenced image into cache and returns the
// glTF texture index -> cache index mapping (texture.NoTextureIndex for
// textures with no image source or whose image could not be read or
// decoded). A failed upload into cache still aborts the load.
func loadTextures(doc *gltf.Document, dir string, cache *texture.Cache) ([]int32, error) {
	texIndex := make([]int32, len(doc.Textures))
	for i := range texIndex {
		texIndex[i] = texture.NoTextureIndex
	}

	for i, gt := range doc.Textures {
		if gt.Source == nil {
			continue
		}
		img := doc.Images[*gt.Source]

		var raw []byte
		var err error
		if img.BufferView != nil {
			raw, err = modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		} else if img.URI != "" {
			raw, err = gltf.ReadResource(doc, img.URI, dir)
		} else {
			continue
		}
		if err != nil {
			continue
		}

		rgba, width, height, err := decodeRGBA(raw)
		if err != nil {
			continue
		}
		idx, err := cache.Add(rgba, width, height)
		if err != nil {
			return nil, fmt.Errorf("scene: upload image %d: %w", *gt.Source, err)
		}
		texIndex[i] = idx
	}
	return texIndex, nil
}

func decodeRGBA(data []byte) ([]byte, uint32, uint32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out.Pix, uint32(b.Dx()), uint32(b.Dy()), nil
}

func loadMaterials(doc *gltf.Document, texIndex []int32) []texture.Material {
	materials := make([]texture.Material, len(doc.Materials))
	for i, gm := range doc.Materials {
		m := texture.Material{
			BaseColorTexture:         texture.NoTextureIndex,
			MetallicRoughnessTexture: texture.NoTextureIndex,
			NormalTexture:            texture.NoTextureIndex,
			OcclusionTexture:         texture.NoTextureIndex,
			EmissiveTexture:          texture.NoTextureIndex,
			BaseColorFactor:          [4]float32{1, 1, 1, 1},
			MetallicFactor:           1,
			RoughnessFactor:          1,
			UVTransform:              [4]float32{0, 0, 1, 1},
		}
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			m.BaseColorFactor = [4]float32{float32(cf[0]), float32(cf[1]), float32(cf[2]), float32(cf[3])}
			m.MetallicFactor = float32(pbr.MetallicFactorOrDefault())
			m.RoughnessFactor = float32(pbr.RoughnessFactorOrDefault())
			if pbr.BaseColorTexture != nil {
				m.BaseColorTexture = resolveTexIndex(texIndex, pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				m.MetallicRoughnessTexture = resolveTexIndex(texIndex, pbr.MetallicRoughnessTexture.Index)
			}
		}
		ef := gm.EmissiveFactorOrDefault()
		m.EmissiveFactor = [3]float32{float32(ef[0]), float32(ef[1]), float32(ef[2])}
		if gm.NormalTexture != nil {
			// §9's open question on missing-texture policy: a present
			// NormalTexture reference with no decodable image still resolves
			// to NoTextureIndex via texIndex, so no placeholder is
			// substituted for a normal map — matching the source's
			// deliberate no-texture choice for normals/metallic-roughness.
			m.NormalTexture = resolveTexIndex(texIndex, gm.NormalTexture.Index)
		}
		if gm.OcclusionTexture != nil {
			m.OcclusionTexture = resolveTexIndex(texIndex, gm.OcclusionTexture.Index)
		}
		if gm.EmissiveTexture != nil {
			m.EmissiveTexture = resolveTexIndex(texIndex, gm.EmissiveTexture.Index)
		}
		materials[i] = m
	}
	return materials
}

func resolveTexIndex(texIndex []int32, idx int32) int32 {
	if int(idx) < 0 || int(idx) >= len(texIndex) {
		return texture.NoTextureIndex
	}
	return texIndex[idx]
}

func loadPrimitive(doc *gltf.Document, meshName string, primIdx int, prim *gltf.Primitive) (Mesh, error) {
	name := fmt.Sprintf("%s_p%d", meshName, primIdx)

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return Mesh{}, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return Mesh{}, fmt.Errorf("positions: %w", err)
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, _ = modeler.ReadNormal(doc, doc.Accessors[idx], nil)
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, _ = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
	}
	var tangents [][4]float32
	if idx, ok := prim.Attributes[gltf.TANGENT]; ok {
		tangents, _ = modeler.ReadTangent(doc, doc.Accessors[idx], nil)
	}

	buf := make([]byte, 0, len(positions)*VertexSize)
	for i, p := range positions {
		normal := [3]float32{0, 1, 0}
		if i < len(normals) {
			normal = normals[i]
		}
		uv := [2]float32{0, 0}
		if i < len(uvs) {
			uv = uvs[i]
		}
		tangent := [4]float32{1, 0, 0, 1}
		if i < len(tangents) {
			tangent = tangents[i]
		}
		buf = appendFloat32s(buf, p[0], p[1], p[2])
		buf = appendFloat32s(buf, normal[0], normal[1], normal[2])
		buf = appendFloat32s(buf, uv[0], uv[1])
		buf = appendFloat32s(buf, tangent[0], tangent[1], tangent[2], tangent[3])
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return Mesh{}, fmt.Errorf("indices: %w", err)
		}
	}

	materialIdx := noIndex
	if prim.Material != nil {
		materialIdx = int(*prim.Material)
	}

	return Mesh{
		Name:          name,
		Vertices:      buf,
		VertexCount:   uint32(len(positions)),
		Indices:       indices,
		MaterialIndex: materialIdx,
	}, nil
}

// VertexSize mirrors pipeline.VertexSize; duplicated as a constant here (not
// imported from internal/pipeline) to keep the loader's only dependency on
// the renderer side the texture cache it uploads into.
const VertexSize = 4 * (3 + 3 + 2 + 4)

func appendFloat32s(buf []byte, values ...float32) []byte {
	var tmp [4]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
		buf = append(buf, tmp[:]...)
	}
	return buf
}
