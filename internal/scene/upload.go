package scene

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/commands"
	"github.com/markusmaurer/cardinal/internal/device"
	"github.com/markusmaurer/cardinal/internal/logging"
	"github.com/markusmaurer/cardinal/internal/memalloc"
	"github.com/markusmaurer/cardinal/internal/refs"
	"github.com/markusmaurer/cardinal/internal/texture"
)

// GpuMesh is one mesh's device-resident vertex buffer and optional index
// buffer, the upload half of §3's Scene data model ("each mesh also has a
// GPU-resident vertex/index buffer pair once uploaded").
type GpuMesh struct {
	Vertices    *memalloc.Buffer
	VertexCount uint32

	Indices    *memalloc.Buffer // nil if the mesh has no index buffer
	IndexCount uint32

	Material *refs.Entry // nil if the mesh referenced no material
}

// GpuScene is everything resident on the device for one imported Scene: one
// GpuMesh per Mesh, and the node graph copied through unchanged so draw
// traversal can walk it.
type GpuScene struct {
	Meshes []GpuMesh
	Nodes  []Node
	Roots  []int
}

// Uploader stages each Scene mesh through a host-visible buffer into
// device-local vertex/index buffers, and acquires a material cache entry per
// mesh, per §4.12.
type Uploader struct {
	ctx      *device.Context
	alloc    *memalloc.Allocator
	uploader *commands.Uploader
	mats     *texture.MaterialCache
	log      *logging.Logger
}

func NewUploader(ctx *device.Context, alloc *memalloc.Allocator, u *commands.Uploader, mats *texture.MaterialCache, log *logging.Logger) *Uploader {
	return &Uploader{ctx: ctx, alloc: alloc, uploader: u, mats: mats, log: log}
}

// Upload stages every mesh in s onto the device. A mesh with VertexCount == 0
// is rejected and logged rather than producing an empty buffer, per §8's
// "Zero-length vertex count: upload is rejected with a logged error; no
// buffer created" edge case; the rest of the scene still uploads.
func (u *Uploader) Upload(s *Scene) (*GpuScene, error) {
	out := &GpuScene{Nodes: s.Nodes, Roots: s.Roots}
	for i, m := range s.Meshes {
		if m.VertexCount == 0 {
			u.log.Warnf("scene: mesh %q (index %d) has zero vertices, skipping upload", m.Name, i)
			continue
		}
		gm, err := u.uploadMesh(s, m)
		if err != nil {
			u.destroyPartial(out)
			return nil, fmt.Errorf("scene: upload mesh %q: %w", m.Name, err)
		}
		out.Meshes = append(out.Meshes, gm)
	}
	return out, nil
}

func (u *Uploader) uploadMesh(s *Scene, m Mesh) (GpuMesh, error) {
	vb, err := u.uploadBuffer(m.Vertices, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return GpuMesh{}, fmt.Errorf("vertices: %w", err)
	}

	gm := GpuMesh{Vertices: vb, VertexCount: m.VertexCount}

	if len(m.Indices) > 0 {
		raw := indicesToBytes(m.Indices)
		ib, err := u.uploadBuffer(raw, vk.BufferUsageIndexBufferBit)
		if err != nil {
			u.alloc.FreeBuffer(vb)
			return GpuMesh{}, fmt.Errorf("indices: %w", err)
		}
		gm.Indices = ib
		gm.IndexCount = uint32(len(m.Indices))
	}

	if m.MaterialIndex >= 0 && m.MaterialIndex < len(s.Materials) {
		gm.Material = u.mats.Acquire(s.Materials[m.MaterialIndex])
	}

	return gm, nil
}

func (u *Uploader) uploadBuffer(data []byte, usage vk.BufferUsageFlagBits) (*memalloc.Buffer, error) {
	size := vk.DeviceSize(len(data))

	staging, err := u.alloc.AllocateBuffer(size, vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}
	defer u.alloc.FreeBuffer(staging)
	if err := u.alloc.UploadHostVisible(staging, data); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	dst, err := u.alloc.AllocateBuffer(size, usage|vk.BufferUsageTransferDstBit, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, fmt.Errorf("device buffer: %w", err)
	}

	err = u.uploader.Submit(func(cmd vk.CommandBuffer) error {
		vk.CmdCopyBuffer(cmd, staging.Handle, dst.Handle, 1, []vk.BufferCopy{{
			SrcOffset: 0, DstOffset: 0, Size: size,
		}})
		return nil
	})
	if err != nil {
		u.alloc.FreeBuffer(dst)
		return nil, fmt.Errorf("copy: %w", err)
	}

	return dst, nil
}

func indicesToBytes(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, v := range indices {
		out[i*4+0] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
	return out
}

// Clear waits for the device to go idle, then destroys every GpuMesh's
// buffers and releases its material reference, leaving gs with zero live
// meshes, per §4.12's clear_scene postcondition ("the number of live GpuMesh
// is 0").
func (u *Uploader) Clear(gs *GpuScene) {
	vk.DeviceWaitIdle(u.ctx.Device)
	u.destroyPartial(gs)
	gs.Meshes = nil
	gs.Nodes = nil
	gs.Roots = nil
}

func (u *Uploader) destroyPartial(gs *GpuScene) {
	for _, m := range gs.Meshes {
		u.alloc.FreeBuffer(m.Vertices)
		if m.Indices != nil {
			u.alloc.FreeBuffer(m.Indices)
		}
		if m.Material != nil {
			u.mats.Release(m.Material)
		}
	}
}
