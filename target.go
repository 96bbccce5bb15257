package vkrt

import (
	"fmt"

	units "github.com/docker/go-units"
	vk "github.com/vulkan-go/vulkan"
)

// SPIR-V version constants, encoded as (major<<16 | minor<<8), the layout
// of the version word in a SPIR-V module header; compared only against each
// other within this package.
const (
	spirv10 = 1<<16 | 0<<8
	spirv13 = 1<<16 | 3<<8
	spirv14 = 1<<16 | 4<<8
	spirv15 = 1<<16 | 5<<8
)

// Target is the capability map GetDeviceDescription builds for one physical
// device (spec.md §3, §4.1). It is immutable once built.
type Target struct {
	DeviceName   string
	DriverName   string
	DriverVersion Version

	APIVersion        Version
	ConformanceClamped bool
	MaxSPIRVVersion   uint32

	SupportsFloat16 bool
	SupportsFloat64 bool
	SupportsInt8    bool
	SupportsInt16   bool
	SupportsInt64   bool

	Supports8BitStorage  bool
	Supports16BitStorage bool

	ThreadWarpSize              uint32
	SupportedSubgroupOperations vk.SubgroupFeatureFlagBits
	MaxWorkgroupInvocations     uint32
	MaxWorkgroupSize            [3]uint32
	MaxComputeSharedMemoryBytes uint32
	MaxPushConstantsSize        uint32
	MaxUBORange                 uint32
	MaxSSBORange                uint32
	MaxPerStageSSBOs            uint32

	SupportsPushDescriptor       bool
	SupportsDedicatedAllocation  bool
}

func (t *Target) String() string {
	return fmt.Sprintf("%s (driver %s, API %s, shared mem %s, max push const %s)",
		t.DeviceName, t.DriverVersion, t.APIVersion,
		units.BytesSize(float64(t.MaxComputeSharedMemoryBytes)),
		units.BytesSize(float64(t.MaxPushConstantsSize)))
}

// extensionSet is a lookup-friendly view over a device's supported
// extension name list.
type extensionSet map[string]bool

func newExtensionSet(names []string) extensionSet {
	s := make(extensionSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func (s extensionSet) has(names ...string) bool {
	for _, n := range names {
		if !s[n] {
			return false
		}
	}
	return true
}

const (
	extDriverProperties          = "VK_KHR_driver_properties"
	extStorageBufferStorageClass = "VK_KHR_storage_buffer_storage_class"
	ext8BitStorage                = "VK_KHR_8bit_storage"
	ext16BitStorage                = "VK_KHR_16bit_storage"
	extFloat16Int8                = "VK_KHR_shader_float16_int8"
	extPushDescriptor             = "VK_KHR_push_descriptor"
	extDescriptorUpdateTemplate   = "VK_KHR_descriptor_update_template"
	extGetMemoryRequirements2     = "VK_KHR_get_memory_requirements2"
	extDedicatedAllocation        = "VK_KHR_dedicated_allocation"
	extSPIRV14                    = "VK_KHR_spirv_1_4"
	extGetPhysicalDeviceProps2    = "VK_KHR_get_physical_device_properties2"
)

// deviceExtensionsToEnable computes the supported subset of the extensions
// spec.md §4.1 step 6 names, given the device's full supported set.
func deviceExtensionsToEnable(supported extensionSet) []string {
	candidates := []string{
		extDriverProperties,
		extStorageBufferStorageClass,
		ext8BitStorage,
		ext16BitStorage,
		extFloat16Int8,
		extPushDescriptor,
		extDescriptorUpdateTemplate,
		extGetMemoryRequirements2,
		extDedicatedAllocation,
		extSPIRV14,
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if supported[c] {
			out = append(out, c)
		}
	}
	return out
}

// maxSPIRVVersion implements spec.md §4.1's table: 1.5 if API >= 1.2; 1.4 if
// VK_KHR_spirv_1_4 is present; 1.3 if API >= 1.1; else 1.0. Monotone in
// (apiVersion, hasSPIRV14) as required by §8.
func maxSPIRVVersion(apiVersion Version, hasSPIRV14 bool) uint32 {
	switch {
	case apiVersion.Major > 1 || (apiVersion.Major == 1 && apiVersion.Minor >= 2):
		return spirv15
	case hasSPIRV14:
		return spirv14
	case apiVersion.Major == 1 && apiVersion.Minor >= 1:
		return spirv13
	default:
		return spirv10
	}
}

// GetDeviceDescription builds the capability map for pd given the set of
// device extensions the caller has decided to enable (spec.md §4.1 step 7).
// instanceHasProperties2 controls whether properties2/features2 chaining is
// attempted; devices on instances without VK_KHR_get_physical_device_properties2
// fall back to the plain v1.0 queries.
func GetDeviceDescription(pd *PhysicalDevice, enabledExtensions []string, instanceHasProperties2 bool) (*Target, error) {
	supported, err := pd.SupportedExtensionNames()
	if err != nil {
		return nil, err
	}
	set := newExtensionSet(supported)

	props := pd.VKPhysicalDeviceProperties
	apiVersion := versionFromVK(props.ApiVersion)

	t := &Target{
		DeviceName:                  pd.DeviceName,
		APIVersion:                  apiVersion,
		DriverVersion:               versionFromVK(props.DriverVersion),
		MaxComputeSharedMemoryBytes: props.Limits.MaxComputeSharedMemorySize,
		MaxPushConstantsSize:        props.Limits.MaxPushConstantsSize,
		MaxUBORange:                 props.Limits.MaxUniformBufferRange,
		MaxSSBORange:                props.Limits.MaxStorageBufferRange,
		MaxPerStageSSBOs:            props.Limits.MaxPerStageDescriptorStorageBuffers,
		ThreadWarpSize:              1,
	}
	t.MaxWorkgroupInvocations = props.Limits.MaxComputeWorkGroupInvocations
	t.MaxWorkgroupSize = [3]uint32{
		props.Limits.MaxComputeWorkGroupSize[0],
		props.Limits.MaxComputeWorkGroupSize[1],
		props.Limits.MaxComputeWorkGroupSize[2],
	}

	if instanceHasProperties2 {
		applyProperties2(pd, t, set)
	}

	if set.has(extDriverProperties) {
		t.ConformanceClamped = true
	}

	hasSPIRV14 := set.has(extSPIRV14)
	t.MaxSPIRVVersion = maxSPIRVVersion(t.APIVersion, hasSPIRV14)

	t.SupportsPushDescriptor = set.has(extPushDescriptor, extDescriptorUpdateTemplate) &&
		!envBool(EnvDisablePushDescriptor)
	t.SupportsDedicatedAllocation = set.has(extGetMemoryRequirements2, extDedicatedAllocation) &&
		!envBool(EnvDisableDedicatedAllocs)

	t.Supports8BitStorage = set.has(ext8BitStorage)
	t.Supports16BitStorage = set.has(ext16BitStorage)

	features := pd.VKPhysicalDeviceFeatures()
	features.Deref()
	t.SupportsFloat64 = features.ShaderFloat64 == vk.True
	t.SupportsInt64 = features.ShaderInt64 == vk.True
	if set.has(extFloat16Int8) {
		t.SupportsFloat16 = true
		t.SupportsInt8 = true
	}

	return t, nil
}

// applyProperties2 chains VkPhysicalDeviceSubgroupProperties (and, when
// available, the driver-properties conformance version) into the query, as
// spec.md §4.1 describes for the properties2 path.
func applyProperties2(pd *PhysicalDevice, t *Target, supported extensionSet) {
	subgroup := vk.PhysicalDeviceSubgroupProperties{
		SType: vk.StructureTypePhysicalDeviceSubgroupProperties,
	}
	props2 := vk.PhysicalDeviceProperties2{
		SType: vk.StructureTypePhysicalDeviceProperties2,
		PNext: unsafePointer(&subgroup),
	}
	vk.GetPhysicalDeviceProperties2(pd.VKPhysicalDevice, &props2)
	subgroup.Deref()

	t.ThreadWarpSize = maxUint32(subgroup.SubgroupSize, 1)
	if subgroup.SupportedStages&vk.ShaderStageFlags(vk.ShaderStageComputeBit) != 0 {
		t.SupportedSubgroupOperations = vk.SubgroupFeatureFlagBits(subgroup.SupportedOperations)
	}

	if !supported.has(extDriverProperties) {
		return
	}
	driverProps := vk.PhysicalDeviceDriverProperties{
		SType: vk.StructureTypePhysicalDeviceDriverProperties,
	}
	props2b := vk.PhysicalDeviceProperties2{
		SType: vk.StructureTypePhysicalDeviceProperties2,
		PNext: unsafePointer(&driverProps),
	}
	vk.GetPhysicalDeviceProperties2(pd.VKPhysicalDevice, &props2b)
	driverProps.Deref()

	t.DriverName = vk.ToString(driverProps.DriverName[:])

	cv := driverProps.ConformanceVersion
	cv.Deref()
	clamped := Version{Major: int(cv.Major), Minor: int(cv.Minor), Patch: 0}
	if clamped.Major > 0 && versionLess(clamped, t.APIVersion) {
		t.APIVersion = clamped
	}
}

func versionLess(a, b Version) bool {
	if a.Major != b.Major {
		return a.Major < b.Major
	}
	return a.Minor < b.Minor
}

func maxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
