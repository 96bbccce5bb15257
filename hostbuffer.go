package vkrt

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// HostBuffer pairs a VkBuffer with the VkDeviceMemory bound to it. Staging
// and UBO buffers are allocated from a host-visible memory type; workspace
// blocks (CreateComputeBuffer) use a device-local one. ThreadEntry caches
// staging and UBO buffers keyed by device index, growing an entry when a
// larger size is requested, so repeated copies reuse staging memory
// (spec.md §4.4).
type HostBuffer struct {
	Buffer *Buffer
	Memory *DeviceMemory
}

func (h *HostBuffer) Destroy() {
	if h.Memory != nil {
		h.Memory.Destroy()
	}
	if h.Buffer != nil {
		h.Buffer.Destroy()
	}
}

// CreateAndBindBufferAndMemory creates a buffer of the given usage, finds a
// memory type matching mprops among memoryTypeBits, allocates, and binds.
func (d *Device) CreateAndBindBufferAndMemory(size uint64, usage vk.BufferUsageFlags, mprops vk.MemoryPropertyFlagBits, minHeapSize uint64, rank func(vk.MemoryPropertyFlagBits) int) (*Buffer, *DeviceMemory, error) {
	buffer, err := d.CreateBufferWithOptions(size, usage, vk.SharingModeExclusive)
	if err != nil {
		return nil, nil, err
	}

	req := buffer.MemoryRequirements()
	typeIndex, ok := d.PhysicalDevice.FindMemoryType(req.MemoryTypeBits, mprops, minHeapSize, rank)
	if !ok {
		buffer.Destroy()
		return nil, nil, fmt.Errorf("no memory type satisfies required properties %d with %d heap floor", mprops, minHeapSize)
	}

	memory, err := d.Allocate(req.Size, typeIndex)
	if err != nil {
		buffer.Destroy()
		return nil, nil, err
	}
	memory.HostCoherent = mprops&vk.MemoryPropertyHostCoherentBit != 0

	if err := buffer.Bind(memory, 0); err != nil {
		memory.Destroy()
		buffer.Destroy()
		return nil, nil, err
	}
	return buffer, memory, nil
}

// CreateStagingBuffer creates a host-visible, host-cached-preferred
// buffer usable as either a transfer source or destination, ranked by
// rankStagingMemoryType (spec.md §4.1 step 9, §4.4).
func (d *Device) CreateStagingBuffer(size uint64, usage vk.BufferUsageFlags) (*HostBuffer, error) {
	buffer, memory, err := d.CreateAndBindBufferAndMemory(size, usage,
		vk.MemoryPropertyHostVisibleBit, 0, rankStagingMemoryType)
	if err != nil {
		return nil, err
	}
	return &HostBuffer{Buffer: buffer, Memory: memory}, nil
}

// CreateComputeBuffer creates a device-local storage buffer ranked by
// rankComputeMemoryType, with the ≥1 KiB heap floor from spec.md §4.1 step
// 9 applied.
func (d *Device) CreateComputeBuffer(size uint64) (*HostBuffer, error) {
	usage := vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit)
	buffer, memory, err := d.CreateAndBindBufferAndMemory(size, usage,
		vk.MemoryPropertyDeviceLocalBit, 1024, rankComputeMemoryType)
	if err != nil {
		return nil, err
	}
	return &HostBuffer{Buffer: buffer, Memory: memory}, nil
}
