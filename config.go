package vkrt

import "os"

// Environment variables recognized by the runtime (spec.md §6). All are
// booleans: "set and non-empty" is true, anything else (unset or empty) is
// false.
const (
	EnvEnableValidationLayers  = "VULKAN_ENABLE_VALIDATION_LAYERS"
	EnvDisablePushDescriptor   = "VULKAN_DISABLE_PUSH_DESCRIPTOR"
	EnvDisableDedicatedAllocs  = "VULKAN_DISABLE_DEDICATED_ALLOCATION"
)

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	return ok && v != ""
}
