package vkrt

import (
	"sync/atomic"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// DeviceMemory wraps a VkDeviceMemory allocation, either host-visible
// (staging) or device-local (compute), per the memory type it was allocated
// against (spec.md §4.1 step 9).
type DeviceMemory struct {
	Device         *Device
	VKDeviceMemory vk.DeviceMemory
	Size           uint64
	MapCount       int32
	Ptr            unsafe.Pointer
	HostCoherent   bool
}

func (d *DeviceMemory) IsMapped() bool {
	return atomic.LoadInt32(&d.MapCount) > 0
}

func (d *DeviceMemory) Destroy() {
	vk.FreeMemory(d.Device.VKDevice, d.VKDeviceMemory, nil)
}

func (d *DeviceMemory) Map() (unsafe.Pointer, error) {
	return d.MapWithSize(d.Size)
}

func (d *DeviceMemory) MapWithSize(size uint64) (unsafe.Pointer, error) {
	var res unsafe.Pointer
	if err := checkResult("vkMapMemory",
		vk.MapMemory(d.Device.VKDevice, d.VKDeviceMemory, 0, vk.DeviceSize(size), 0, &res)); err != nil {
		return nil, err
	}
	atomic.AddInt32(&d.MapCount, 1)
	d.Ptr = res
	return res, nil
}

func (d *DeviceMemory) Unmap() {
	d.Ptr = nil
	vk.UnmapMemory(d.Device.VKDevice, d.VKDeviceMemory)
	atomic.AddInt32(&d.MapCount, -1)
}

// CopyIn copies data into this memory's persistent mapping at offset 0 and
// flushes if the memory is not HOST_COHERENT. Staging memory is mapped once
// at creation and stays mapped until destruction (spec.md §4.3), so this
// writes through the existing Ptr the same way writeKernelScalars does for
// UBO buffers, rather than mapping and unmapping again.
func (d *DeviceMemory) CopyIn(data []byte) error {
	copy(ToBytes(d.Ptr, len(data)), data)
	if !d.HostCoherent {
		return d.Flush(uint64(len(data)))
	}
	return nil
}

// CopyOut invalidates this memory's persistent mapping if it is not
// HOST_COHERENT, then copies out of it at offset 0.
func (d *DeviceMemory) CopyOut(out []byte) error {
	if !d.HostCoherent {
		if err := d.Invalidate(uint64(len(out))); err != nil {
			return err
		}
	}
	copy(out, ToBytes(d.Ptr, len(out)))
	return nil
}

// Flush makes host writes visible to the device, for memory that is not
// HOST_COHERENT.
func (d *DeviceMemory) Flush(size uint64) error {
	ranges := []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: d.VKDeviceMemory,
		Offset: 0,
		Size:   vk.DeviceSize(size),
	}}
	return checkResult("vkFlushMappedMemoryRanges", vk.FlushMappedMemoryRanges(d.Device.VKDevice, 1, ranges))
}

// Invalidate makes device writes visible to the host, for memory that is
// not HOST_COHERENT.
func (d *DeviceMemory) Invalidate(size uint64) error {
	ranges := []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: d.VKDeviceMemory,
		Offset: 0,
		Size:   vk.DeviceSize(size),
	}}
	return checkResult("vkInvalidateMappedMemoryRanges", vk.InvalidateMappedMemoryRanges(d.Device.VKDevice, 1, ranges))
}
