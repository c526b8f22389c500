package pipeline

import (
	"fmt"
	"os"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/markusmaurer/cardinal/internal/device"
)

// LoadShaderModule reads a SPIR-V file from path and creates a shader module,
// generalizing the teacher's CoreShader.LoadShaderModule (which silently
// returned on a read error and os.Exit(1)'d on module-creation failure) to
// return an error both callers can act on.
func LoadShaderModule(ctx *device.Context, path string) (vk.ShaderModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read shader %q: %w", path, err)
	}

	var module vk.ShaderModule
	ret := vk.CreateShaderModule(ctx.Device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}, nil, &module)
	if ret != vk.Success {
		return nil, fmt.Errorf("pipeline: create shader module %q: result %d", path, ret)
	}
	return module, nil
}

// sliceUint32 reinterprets a byte slice as the uint32 slice CreateInfo.PCode
// expects, matching the cast every vulkan-go binding user in the pack applies
// to a freshly-read SPIR-V blob rather than copying word by word.
func sliceUint32(data []byte) []uint32 {
	const maxLen = 0x7fffffff
	return (*[maxLen / 4]uint32)(unsafe.Pointer(&data[0]))[: len(data)/4 : len(data)/4]
}

// Stage is one shader module bound to a pipeline stage, loaded from a path
// under the shaders directory.
type Stage struct {
	Module vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
}

// ShaderSet is the vertex+fragment module pair that backs one pipeline
// variant, mirroring the teacher's ShaderProgram.
type ShaderSet struct {
	Vertex   vk.ShaderModule
	Fragment vk.ShaderModule
}

// LoadShaderSet loads the vertex and fragment SPIR-V files named vertPath and
// fragPath, both resolved relative to dir (CARDINAL_SHADERS_DIR).
func LoadShaderSet(ctx *device.Context, dir, vertPath, fragPath string) (ShaderSet, error) {
	vert, err := LoadShaderModule(ctx, dir+"/"+vertPath)
	if err != nil {
		return ShaderSet{}, err
	}
	frag, err := LoadShaderModule(ctx, dir+"/"+fragPath)
	if err != nil {
		vk.DestroyShaderModule(ctx.Device, vert, nil)
		return ShaderSet{}, err
	}
	return ShaderSet{Vertex: vert, Fragment: frag}, nil
}

func (s ShaderSet) stages() []vk.PipelineShaderStageCreateInfo {
	return []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(vk.ShaderStageVertexBit),
			Module: s.Vertex,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit),
			Module: s.Fragment,
			PName:  safeString("main"),
		},
	}
}

func (s ShaderSet) Destroy(ctx *device.Context) {
	if s.Vertex != nil {
		vk.DestroyShaderModule(ctx.Device, s.Vertex, nil)
	}
	if s.Fragment != nil {
		vk.DestroyShaderModule(ctx.Device, s.Fragment, nil)
	}
}

func safeString(s string) string {
	return s + "\x00"
}
