package vkrt

import (
	vk "github.com/vulkan-go/vulkan"
)

// DescriptorSetLayout describes the argument bindings a kernel's entry
// point expects: one storage-buffer binding per BufferObject argument,
// plus a uniform-buffer binding when kUseUBO falls back POD arguments out
// of push constants (spec.md §4.2, §4.6).
type DescriptorSetLayout struct {
	Device   *Device
	VKLayout vk.DescriptorSetLayout
	Bindings []vk.DescriptorSetLayoutBinding
}

func (d *Device) NewDescriptorSetLayout() *DescriptorSetLayout {
	return &DescriptorSetLayout{Device: d}
}

func (l *DescriptorSetLayout) AddBinding(binding vk.DescriptorSetLayoutBinding) {
	l.Bindings = append(l.Bindings, binding)
}

// Create builds the layout. usePushDescriptor marks it for use with the
// immediate launch protocol's vkCmdPushDescriptorSetWithTemplateKHR, which requires the
// VK_DESCRIPTOR_SET_LAYOUT_CREATE_PUSH_DESCRIPTOR_BIT_KHR flag (spec.md
// §4.6).
func (l *DescriptorSetLayout) Create(usePushDescriptor bool) error {
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(l.Bindings)),
		PBindings:    l.Bindings,
	}
	if usePushDescriptor {
		createInfo.Flags = vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreatePushDescriptorBitKhr)
	}

	var vkLayout vk.DescriptorSetLayout
	if err := checkResult("vkCreateDescriptorSetLayout",
		vk.CreateDescriptorSetLayout(l.Device.VKDevice, &createInfo, nil, &vkLayout)); err != nil {
		return err
	}
	l.VKLayout = vkLayout
	return nil
}

func (l *DescriptorSetLayout) Destroy() {
	vk.DestroyDescriptorSetLayout(l.Device.VKDevice, l.VKLayout, nil)
}
