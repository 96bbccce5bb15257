package vkrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestEnvBool(t *testing.T) {
	t.Run("unset is false", func(t *testing.T) {
		t.Setenv("VKRT_TEST_UNSET_VAR", "")
		assert.False(t, envBool("VKRT_TEST_TRULY_UNSET_VAR"))
	})

	t.Run("empty string is false", func(t *testing.T) {
		t.Setenv(EnvDisablePushDescriptor, "")
		assert.False(t, envBool(EnvDisablePushDescriptor))
	})

	t.Run("any non-empty value is true", func(t *testing.T) {
		t.Setenv(EnvDisablePushDescriptor, "1")
		assert.True(t, envBool(EnvDisablePushDescriptor))
	})
}

func TestPreferredValidationLayer(t *testing.T) {
	t.Run("prefers the Khronos layer", func(t *testing.T) {
		layer, ok := preferredValidationLayer([]string{
			"VK_LAYER_LUNARG_standard_validation",
			"VK_LAYER_KHRONOS_validation",
		})
		assert.True(t, ok)
		assert.Equal(t, "VK_LAYER_KHRONOS_validation", layer)
	})

	t.Run("falls back to a LunarG layer", func(t *testing.T) {
		layer, ok := preferredValidationLayer([]string{"VK_LAYER_LUNARG_standard_validation"})
		assert.True(t, ok)
		assert.Equal(t, "VK_LAYER_LUNARG_standard_validation", layer)
	})

	t.Run("none available", func(t *testing.T) {
		_, ok := preferredValidationLayer([]string{"VK_LAYER_totally_unrelated"})
		assert.False(t, ok)
	})
}

func TestVersionFromVK(t *testing.T) {
	packed := vk.MakeVersion(1, 2, 3)
	v := versionFromVK(packed)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, v)
}
