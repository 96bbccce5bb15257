package vkrt

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// PhysicalDevice wraps a VkPhysicalDevice handle and the subset of its
// properties queried eagerly at enumeration time.
type PhysicalDevice struct {
	Instance                   *Instance
	DeviceName                 string
	VKPhysicalDevice           vk.PhysicalDevice
	VKPhysicalDeviceProperties vk.PhysicalDeviceProperties
}

func (p *PhysicalDevice) String() string {
	return p.DeviceName
}

// QueueFamilySlice is a filterable list of queue families.
type QueueFamilySlice []*QueueFamily

func (ql QueueFamilySlice) Filter(f func(q *QueueFamily) bool) QueueFamilySlice {
	ret := make(QueueFamilySlice, 0, len(ql))
	for _, q := range ql {
		if f(q) {
			ret = append(ret, q)
		}
	}
	return ret
}

func (ql QueueFamilySlice) FilterCompute() QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool { return q.IsCompute() })
}

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Index                   int
	PhysicalDevice          *PhysicalDevice
	VKQueueFamilyProperties vk.QueueFamilyProperties
}

func (q *QueueFamily) IsCompute() bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0
}

func (q *QueueFamily) IsGraphics() bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
}

func (q *QueueFamily) IsTransfer() bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(vk.QueueTransferBit) != 0
}

func (q *QueueFamily) String() string {
	return fmt.Sprintf("{Index: %d Compute: %v Graphics: %v}", q.Index, q.IsCompute(), q.IsGraphics())
}

// QueueFamilies enumerates this device's queue families.
func (p *PhysicalDevice) QueueFamilies() (QueueFamilySlice, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &count, nil)
	if count == 0 {
		return nil, nil
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &count, props)

	ret := make(QueueFamilySlice, count)
	for i, qp := range props {
		qp.Deref()
		ret[i] = &QueueFamily{Index: i, PhysicalDevice: p, VKQueueFamilyProperties: qp}
	}
	return ret, nil
}

// selectComputeQueueFamily applies spec.md §4.1 step 5's tie-break: prefer a
// compute-only family (compute set, graphics clear); otherwise the first
// family that has both compute and graphics. Devices with no compute queue
// return ok == false and must be skipped by the caller.
func selectComputeQueueFamily(families QueueFamilySlice) (*QueueFamily, bool) {
	var computeOnly, computeAndGraphics *QueueFamily
	for _, f := range families {
		if !f.IsCompute() {
			continue
		}
		if !f.IsGraphics() {
			if computeOnly == nil {
				computeOnly = f
			}
			continue
		}
		if computeAndGraphics == nil {
			computeAndGraphics = f
		}
	}
	if computeOnly != nil {
		return computeOnly, true
	}
	if computeAndGraphics != nil {
		return computeAndGraphics, true
	}
	return nil, false
}

type CreateDeviceOptions struct {
	EnabledExtensions []string
	EnabledLayers     []string
	Features          *vk.PhysicalDeviceFeatures
	FeaturesPNext     vk.PhysicalDeviceFeatures2
	UseFeatures2      bool
}

// CreateLogicalDeviceWithOptions creates a logical device with a single
// queue from qf, enabling the requested extensions/layers and device
// features (spec.md §4.1 step 8).
func (p *PhysicalDevice) CreateLogicalDeviceWithOptions(qf *QueueFamily, options *CreateDeviceOptions) (*Device, error) {
	queueCreateInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(qf.Index),
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueCreateInfo},
	}

	if options != nil {
		if options.EnabledExtensions != nil {
			deviceCreateInfo.EnabledExtensionCount = uint32(len(options.EnabledExtensions))
			deviceCreateInfo.PpEnabledExtensionNames = safeStrings(options.EnabledExtensions)
		}
		if options.EnabledLayers != nil {
			deviceCreateInfo.EnabledLayerCount = uint32(len(options.EnabledLayers))
			deviceCreateInfo.PpEnabledLayerNames = safeStrings(options.EnabledLayers)
		}
		if options.UseFeatures2 {
			deviceCreateInfo.PNext = unsafe.Pointer(&options.FeaturesPNext)
		} else if options.Features != nil {
			deviceCreateInfo.PEnabledFeatures = []vk.PhysicalDeviceFeatures{*options.Features}
		}
	}

	var vkDevice vk.Device
	if err := checkResult("vkCreateDevice",
		vk.CreateDevice(p.VKPhysicalDevice, &deviceCreateInfo, nil, &vkDevice)); err != nil {
		return nil, err
	}

	return &Device{PhysicalDevice: p, VKDevice: vkDevice}, nil
}

func (p *PhysicalDevice) VKPhysicalDeviceFeatures() vk.PhysicalDeviceFeatures {
	var f vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(p.VKPhysicalDevice, &f)
	return f
}

func (p *PhysicalDevice) VKPhysicalDeviceMemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var mp vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(p.VKPhysicalDevice, &mp)
	return mp
}

// FindMemoryType returns the index of a memory type matching memoryTypeBits
// and satisfying all of requiredProperties, ranked by rank (higher wins);
// candidates on a heap smaller than minHeapSize are excluded (spec.md §4.1
// step 9: "heap ≥ 1 KiB"). Returns ok == false if nothing qualifies.
func (p *PhysicalDevice) FindMemoryType(memoryTypeBits uint32, requiredProperties vk.MemoryPropertyFlagBits, minHeapSize uint64, rank func(vk.MemoryPropertyFlagBits) int) (index uint32, ok bool) {
	mp := p.VKPhysicalDeviceMemoryProperties()
	mp.Deref()

	bestRank := -1
	bestIndex := uint32(0)
	found := false

	for i := uint32(0); i < mp.MemoryTypeCount; i++ {
		mt := mp.MemoryTypes[i]
		mt.Deref()

		if memoryTypeBits&(1<<i) == 0 {
			continue
		}
		flags := vk.MemoryPropertyFlagBits(mt.PropertyFlags)
		if flags&requiredProperties != requiredProperties {
			continue
		}

		heap := mp.MemoryHeaps[mt.HeapIndex]
		heap.Deref()
		if uint64(heap.Size) < minHeapSize {
			continue
		}

		r := rank(flags)
		if !found || r > bestRank {
			bestRank = r
			bestIndex = i
			found = true
		}
	}
	return bestIndex, found
}

// rankStagingMemoryType scores a host-visible candidate for the staging
// buffer memory type: host-cached memory (fast CPU reads after a D→H copy)
// ranks above merely host-visible memory (spec.md §4.1 step 9).
func rankStagingMemoryType(flags vk.MemoryPropertyFlagBits) int {
	if flags&vk.MemoryPropertyHostCachedBit != 0 {
		return 1
	}
	return 0
}

// rankComputeMemoryType scores a device-local candidate for the compute
// buffer memory type: memory that is device-local and NOT also host-visible
// (pure VRAM, as opposed to a shared/unified heap) ranks higher.
func rankComputeMemoryType(flags vk.MemoryPropertyFlagBits) int {
	if flags&vk.MemoryPropertyHostVisibleBit == 0 {
		return 1
	}
	return 0
}

func (p *PhysicalDevice) SupportedExtensions() ([]vk.ExtensionProperties, error) {
	var count uint32
	if err := checkResult("vkEnumerateDeviceExtensionProperties",
		vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, nil)); err != nil {
		return nil, err
	}
	ext := make([]vk.ExtensionProperties, count)
	if err := checkResult("vkEnumerateDeviceExtensionProperties",
		vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, ext)); err != nil {
		return nil, err
	}
	return ext, nil
}

// SupportedExtensionNames is a convenience wrapper over SupportedExtensions
// returning just the extension name strings.
func (p *PhysicalDevice) SupportedExtensionNames() ([]string, error) {
	exts, err := p.SupportedExtensions()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(exts))
	for i, e := range exts {
		e.Deref()
		names[i] = vk.ToString(e.ExtensionName[:])
	}
	return names, nil
}
