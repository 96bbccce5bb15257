package vkrt

import (
	vk "github.com/vulkan-go/vulkan"
)

// PipelineLayout wraps a VkPipelineLayout: the descriptor set layout plus a
// single push-constant range sized for the kernel's POD arguments (spec.md
// §4.2, "push constants up to maxPushConstantsSize").
type PipelineLayout struct {
	Device           *Device
	VKPipelineLayout vk.PipelineLayout
}

func (d *Device) CreatePipelineLayout(descriptorSetLayout *DescriptorSetLayout, pushConstantSize uint32) (*PipelineLayout, error) {
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{descriptorSetLayout.VKLayout},
	}

	if pushConstantSize > 0 {
		createInfo.PushConstantRangeCount = 1
		createInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Offset:     0,
			Size:       pushConstantSize,
		}}
	}

	var vkLayout vk.PipelineLayout
	if err := checkResult("vkCreatePipelineLayout",
		vk.CreatePipelineLayout(d.VKDevice, &createInfo, nil, &vkLayout)); err != nil {
		return nil, err
	}
	return &PipelineLayout{Device: d, VKPipelineLayout: vkLayout}, nil
}

func (p *PipelineLayout) Destroy() {
	vk.DestroyPipelineLayout(p.Device.VKDevice, p.VKPipelineLayout, nil)
}
