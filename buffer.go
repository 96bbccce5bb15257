package vkrt

import (
	vk "github.com/vulkan-go/vulkan"
)

// Buffer wraps a VkBuffer. The runtime allocates two kinds: host-visible
// staging buffers and device-local compute buffers (spec.md §4.2).
type Buffer struct {
	Device   *Device
	VKBuffer vk.Buffer
	Size     uint64
}

func (d *Device) CreateBuffer(sizeInBytes uint64) (*Buffer, error) {
	return d.CreateBufferWithOptions(sizeInBytes, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit), vk.SharingModeExclusive)
}

func (d *Device) CreateBufferWithOptions(sizeInBytes uint64, usage vk.BufferUsageFlags, sharing vk.SharingMode) (*Buffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(sizeInBytes),
		Usage:       usage,
		SharingMode: sharing,
	}

	var vkBuffer vk.Buffer
	if err := checkResult("vkCreateBuffer", vk.CreateBuffer(d.VKDevice, &bufferCreateInfo, nil, &vkBuffer)); err != nil {
		return nil, err
	}

	return &Buffer{Device: d, VKBuffer: vkBuffer, Size: sizeInBytes}, nil
}

func (b *Buffer) MemoryRequirements() AllocationRequirements {
	var mr vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.Device.VKDevice, b.VKBuffer, &mr)
	mr.Deref()
	return AllocationRequirements{Size: uint64(mr.Size), MemoryTypeBits: mr.MemoryTypeBits}
}

// RequiresDedicatedAllocation reports whether the driver prefers this
// buffer to own its own VkDeviceMemory, queried through
// VK_KHR_get_memory_requirements2 when the device context enables it
// (spec.md §4.2's dedicated-allocation path). Callers that did not request
// the extended struct always get false, matching a plain allocation.
func (b *Buffer) RequiresDedicatedAllocation(dc *DeviceContext) bool {
	if dc == nil || !dc.SupportsDedicatedAllocation() {
		return false
	}
	info := vk.BufferMemoryRequirementsInfo2{
		SType:  vk.StructureTypeBufferMemoryRequirementsInfo2,
		Buffer: b.VKBuffer,
	}
	dedicated := vk.MemoryDedicatedRequirements{
		SType: vk.StructureTypeMemoryDedicatedRequirements,
	}
	reqs2 := vk.MemoryRequirements2{
		SType: vk.StructureTypeMemoryRequirements2,
		PNext: unsafePointer(&dedicated),
	}
	vk.GetBufferMemoryRequirements2(b.Device.VKDevice, &info, &reqs2)
	dedicated.Deref()
	return dedicated.PrefersDedicatedAllocation == vk.True || dedicated.RequiresDedicatedAllocation == vk.True
}

func (b *Buffer) DSInfo(offset uint64) vk.DescriptorBufferInfo {
	return vk.DescriptorBufferInfo{
		Buffer: b.VKBuffer,
		Offset: vk.DeviceSize(offset),
		Range:  vk.DeviceSize(b.Size),
	}
}

func (b *Buffer) Bind(memory *DeviceMemory, offset uint64) error {
	return checkResult("vkBindBufferMemory",
		vk.BindBufferMemory(b.Device.VKDevice, b.VKBuffer, memory.VKDeviceMemory, vk.DeviceSize(offset)))
}

func (b *Buffer) Destroy() {
	vk.DestroyBuffer(b.Device.VKDevice, b.VKBuffer, nil)
}
