package vkrt

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// MaxDevices bounds the DeviceAPI's device vector (spec.md §3).
const MaxDevices = 8

// DeviceContext is immutable after Init except QueueMutex's protected
// state (spec.md §3). It bundles a logical device with the queue, chosen
// memory types, and capability map derived from probing at startup.
type DeviceContext struct {
	Index          int
	PhysicalDevice *PhysicalDevice
	Device         *Device
	QueueFamily    *QueueFamily
	Queue          *Queue
	QueueMutex     sync.Mutex

	StagingMemoryTypeIndex uint32
	ComputeMemoryTypeIndex uint32
	CoherentStaging        bool

	Target *Target
}

// UseImmediate reports which kernel-launch protocol this device uses.
// Invariant (spec.md §3): true iff the device supports both
// VK_KHR_push_descriptor and VK_KHR_descriptor_update_template (and the
// disable env var was not set).
func (dc *DeviceContext) UseImmediate() bool {
	return dc.Target.SupportsPushDescriptor
}

func (dc *DeviceContext) SupportsDedicatedAllocation() bool {
	return dc.Target.SupportsDedicatedAllocation
}

// InitDeviceContext performs spec.md §4.1 steps 6-10 for one physical
// device: extension selection, feature2 chaining, capability discovery,
// and memory-type selection. Returns ok == false (not an error) for
// devices with no usable compute queue family, so callers can skip them
// while still enumerating the rest (spec.md §4.1 step 5: "skip devices
// with no compute queue").
func InitDeviceContext(index int, pd *PhysicalDevice, instanceHasProperties2 bool) (*DeviceContext, bool, error) {
	families, err := pd.QueueFamilies()
	if err != nil {
		return nil, false, err
	}
	qf, ok := selectComputeQueueFamily(families)
	if !ok {
		return nil, false, nil
	}

	supportedExtNames, err := pd.SupportedExtensionNames()
	if err != nil {
		return nil, false, err
	}
	enableExts := deviceExtensionsToEnable(newExtensionSet(supportedExtNames))

	target, err := GetDeviceDescription(pd, enableExts, instanceHasProperties2)
	if err != nil {
		return nil, false, err
	}

	options := buildCreateDeviceOptions(pd, enableExts, target, instanceHasProperties2)

	device, err := pd.CreateLogicalDeviceWithOptions(qf, options)
	if err != nil {
		return nil, false, err
	}

	dc := &DeviceContext{
		Index:          index,
		PhysicalDevice: pd,
		Device:         device,
		QueueFamily:    qf,
		Queue:          device.GetQueue(qf),
		Target:         target,
	}

	if err := dc.selectMemoryTypes(); err != nil {
		device.Destroy()
		return nil, false, err
	}

	return dc, true, nil
}

// selectMemoryTypes implements spec.md §4.1 step 9: probe with staging and
// compute buffer usages, then select the staging and compute memory type
// indices. Failure to find either is fatal to initialization.
func (dc *DeviceContext) selectMemoryTypes() error {
	device := dc.Device

	stagingProbe, err := device.CreateBufferWithOptions(1,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit|vk.BufferUsageTransferDstBit), vk.SharingModeExclusive)
	if err != nil {
		return err
	}
	defer stagingProbe.Destroy()
	stagingReq := stagingProbe.MemoryRequirements()

	computeProbe, err := device.CreateBufferWithOptions(1,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit|vk.BufferUsageTransferDstBit|vk.BufferUsageStorageBufferBit), vk.SharingModeExclusive)
	if err != nil {
		return err
	}
	defer computeProbe.Destroy()
	computeReq := computeProbe.MemoryRequirements()

	stagingIndex, ok := dc.PhysicalDevice.FindMemoryType(stagingReq.MemoryTypeBits,
		vk.MemoryPropertyHostVisibleBit, 1024, rankStagingMemoryType)
	if !ok {
		return fmt.Errorf("no host-visible memory type satisfies the staging buffer")
	}
	dc.StagingMemoryTypeIndex = stagingIndex
	dc.CoherentStaging = dc.memoryTypeIsCoherent(stagingIndex)

	computeIndex, ok := dc.PhysicalDevice.FindMemoryType(computeReq.MemoryTypeBits,
		vk.MemoryPropertyDeviceLocalBit, 1024, rankComputeMemoryType)
	if !ok {
		return fmt.Errorf("no device-local memory type satisfies the compute buffer")
	}
	dc.ComputeMemoryTypeIndex = computeIndex

	return nil
}

func (dc *DeviceContext) memoryTypeIsCoherent(index uint32) bool {
	mp := dc.PhysicalDevice.VKPhysicalDeviceMemoryProperties()
	mp.Deref()
	mt := mp.MemoryTypes[index]
	mt.Deref()
	return vk.MemoryPropertyFlagBits(mt.PropertyFlags)&vk.MemoryPropertyHostCoherentBit != 0
}

// buildCreateDeviceOptions chains the 8-bit/16-bit storage and float16/int8
// feature structs into VkPhysicalDeviceFeatures2 when the instance supports
// properties2 (spec.md §4.1 step 8), enabling only features both supported
// by the driver and requested by the capability map.
func buildCreateDeviceOptions(pd *PhysicalDevice, enabledExtensions []string, target *Target, instanceHasProperties2 bool) *CreateDeviceOptions {
	baseFeatures := pd.VKPhysicalDeviceFeatures()
	baseFeatures.Deref()

	opts := &CreateDeviceOptions{
		EnabledExtensions: enabledExtensions,
	}

	if !instanceHasProperties2 ||
		!target.Supports8BitStorage && !target.Supports16BitStorage && !target.SupportsFloat16 && !target.SupportsInt8 {
		opts.Features = &baseFeatures
		return opts
	}

	storage8 := vk.PhysicalDevice8BitStorageFeatures{
		SType:                            vk.StructureTypePhysicalDevice8bitStorageFeatures,
		StorageBuffer8BitAccess:          boolToVk(target.Supports8BitStorage),
		UniformAndStorageBuffer8BitAccess: boolToVk(target.Supports8BitStorage),
	}
	storage16 := vk.PhysicalDevice16BitStorageFeatures{
		SType:                             vk.StructureTypePhysicalDevice16bitStorageFeatures,
		PNext:                             unsafePointer(&storage8),
		StorageBuffer16BitAccess:          boolToVk(target.Supports16BitStorage),
		UniformAndStorageBuffer16BitAccess: boolToVk(target.Supports16BitStorage),
	}
	float16Int8 := vk.PhysicalDeviceFloat16Int8FeaturesKHR{
		SType:         vk.StructureTypePhysicalDeviceFloat16Int8FeaturesKhr,
		PNext:         unsafePointer(&storage16),
		ShaderFloat16: boolToVk(target.SupportsFloat16),
		ShaderInt8:    boolToVk(target.SupportsInt8),
	}

	opts.UseFeatures2 = true
	opts.FeaturesPNext = vk.PhysicalDeviceFeatures2{
		SType:    vk.StructureTypePhysicalDeviceFeatures2,
		PNext:    unsafePointer(&float16Int8),
		Features: baseFeatures,
	}
	return opts
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
