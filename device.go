package vkrt

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Device wraps a logical VkDevice.
type Device struct {
	PhysicalDevice *PhysicalDevice
	VKDevice       vk.Device
}

func (d *Device) Destroy() {
	vk.DestroyDevice(d.VKDevice, nil)
}

func (d *Device) String() string {
	return fmt.Sprintf("{PhysicalDevice: %s}", d.PhysicalDevice)
}

func (d *Device) WaitIdle() error {
	return checkResult("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.VKDevice))
}

func (d *Device) GetQueue(qf *QueueFamily) *Queue {
	var vkQueue vk.Queue
	vk.GetDeviceQueue(d.VKDevice, uint32(qf.Index), 0, &vkQueue)
	return &Queue{Device: d, QueueFamily: qf, VKQueue: vkQueue}
}

// AllocationRequirements mirrors the size/type-bits pair a VkBuffer or
// VkImage reports via vkGetXMemoryRequirements.
type AllocationRequirements struct {
	Size           uint64
	MemoryTypeBits uint32
}

// Allocate allocates sizeInBytes of device memory at the given type index.
func (d *Device) Allocate(sizeInBytes uint64, memoryTypeIndex uint32) (*DeviceMemory, error) {
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(sizeInBytes),
		MemoryTypeIndex: memoryTypeIndex,
	}

	var mem vk.DeviceMemory
	if err := checkResult("vkAllocateMemory", vk.AllocateMemory(d.VKDevice, &allocInfo, nil, &mem)); err != nil {
		return nil, err
	}
	return &DeviceMemory{Device: d, VKDeviceMemory: mem, Size: sizeInBytes}, nil
}

// AllocateDedicated allocates memory dedicated to a single buffer, via the
// VK_KHR_dedicated_allocation pNext chain (spec.md §4.2).
func (d *Device) AllocateDedicated(sizeInBytes uint64, memoryTypeIndex uint32, buffer vk.Buffer) (*DeviceMemory, error) {
	dedicated := vk.MemoryDedicatedAllocateInfo{
		SType:  vk.StructureTypeMemoryDedicatedAllocateInfo,
		Buffer: buffer,
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           unsafePointer(&dedicated),
		AllocationSize:  vk.DeviceSize(sizeInBytes),
		MemoryTypeIndex: memoryTypeIndex,
	}

	var mem vk.DeviceMemory
	if err := checkResult("vkAllocateMemory", vk.AllocateMemory(d.VKDevice, &allocInfo, nil, &mem)); err != nil {
		return nil, err
	}
	return &DeviceMemory{Device: d, VKDeviceMemory: mem, Size: sizeInBytes}, nil
}
