package vkrt

import (
	vk "github.com/vulkan-go/vulkan"
)

// DescriptorSet binds buffer arguments to a kernel's entry point. Under the
// deferred protocol it is preallocated once per pipeline and updated via
// Write before every launch that targets a new buffer set; under the
// immediate protocol descriptor sets are never allocated at all (spec.md
// §4.6 — push descriptors write straight into the command buffer).
type DescriptorSet struct {
	Device          *Device
	Pool            *DescriptorPool
	VKDescriptorSet vk.DescriptorSet
	writes          []vk.WriteDescriptorSet
}

func (du *DescriptorSet) AddBuffer(dstBinding int, dtype vk.DescriptorType, b *Buffer) {
	info := vk.DescriptorBufferInfo{
		Buffer: b.VKBuffer,
		Offset: 0,
		Range:  vk.DeviceSize(b.Size),
	}
	du.writes = append(du.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      uint32(dstBinding),
		DescriptorCount: 1,
		DescriptorType:  dtype,
		PBufferInfo:     []vk.DescriptorBufferInfo{info},
	})
}

// Write pushes the accumulated buffer bindings to the device via
// vkUpdateDescriptorSets (the deferred protocol's update path).
func (du *DescriptorSet) Write() {
	for i := range du.writes {
		du.writes[i].DstSet = du.VKDescriptorSet
	}
	vk.UpdateDescriptorSets(du.Device.VKDevice, uint32(len(du.writes)), du.writes, 0, nil)
	Metrics.DescriptorWrites.WithLabelValues(du.Device.PhysicalDevice.DeviceName, "").Inc()
	du.writes = du.writes[:0]
}
