package vkrt

import (
	"os"

	vk "github.com/vulkan-go/vulkan"
)

// ShaderModule wraps a VkShaderModule built from a kernel's SPIR-V binary,
// as embedded in the serialized module format (spec.md §6).
type ShaderModule struct {
	Device         *Device
	Description    string
	VKShaderModule vk.ShaderModule
}

// LoadShaderModuleFromBytes builds a shader module from a SPIR-V binary held
// as raw bytes (as read from a .spv file). Kernels of a deserialized Module
// are materialized through LoadShaderModuleFromWords instead.
func (d *Device) LoadShaderModuleFromBytes(data []byte, description string) (*ShaderModule, error) {
	var vkModule vk.ShaderModule
	if err := checkResult("vkCreateShaderModule", vk.CreateShaderModule(d.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}, nil, &vkModule)); err != nil {
		return nil, err
	}

	return &ShaderModule{Device: d, Description: description, VKShaderModule: vkModule}, nil
}

// LoadShaderModuleFromFile is a convenience wrapper for tooling that loads a
// standalone .spv file rather than a serialized Module.
func (d *Device) LoadShaderModuleFromFile(path string) (*ShaderModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return d.LoadShaderModuleFromBytes(data, path)
}

// LoadShaderModuleFromWords builds a shader module directly from the SPIR-V
// word array a deserialized Module's smap entry already holds, skipping the
// byte round-trip LoadShaderModuleFromBytes needs for on-disk data.
func (d *Device) LoadShaderModuleFromWords(words []uint32, description string) (*ShaderModule, error) {
	var vkModule vk.ShaderModule
	if err := checkResult("vkCreateShaderModule", vk.CreateShaderModule(d.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(words)) * 4,
		PCode:    words,
	}, nil, &vkModule)); err != nil {
		return nil, err
	}

	return &ShaderModule{Device: d, Description: description, VKShaderModule: vkModule}, nil
}

func (s *ShaderModule) VKPipelineShaderStageCreateInfo(entryPoint string) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageComputeBit,
		Module: s.VKShaderModule,
		PName:  safeString(entryPoint),
	}
}

func (s *ShaderModule) Destroy() {
	vk.DestroyShaderModule(s.Device.VKDevice, s.VKShaderModule, nil)
}
