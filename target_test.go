package vkrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxSPIRVVersion(t *testing.T) {
	t.Run("1.0 baseline", func(t *testing.T) {
		assert.Equal(t, spirv10, maxSPIRVVersion(Version{Major: 1, Minor: 0}, false))
	})

	t.Run("1.1 without spirv_1_4", func(t *testing.T) {
		assert.Equal(t, spirv13, maxSPIRVVersion(Version{Major: 1, Minor: 1}, false))
	})

	t.Run("1.1 with spirv_1_4", func(t *testing.T) {
		assert.Equal(t, spirv14, maxSPIRVVersion(Version{Major: 1, Minor: 1}, true))
	})

	t.Run("1.2 always 1.5 regardless of extension", func(t *testing.T) {
		assert.Equal(t, spirv15, maxSPIRVVersion(Version{Major: 1, Minor: 2}, false))
		assert.Equal(t, spirv15, maxSPIRVVersion(Version{Major: 1, Minor: 2}, true))
	})

	t.Run("monotone across the whole table", func(t *testing.T) {
		table := []struct {
			v    Version
			ext  bool
		}{
			{Version{1, 0, 0}, false},
			{Version{1, 0, 0}, true},
			{Version{1, 1, 0}, false},
			{Version{1, 1, 0}, true},
			{Version{1, 2, 0}, false},
			{Version{2, 0, 0}, false},
		}
		// Monotone in the product order: whenever hi has an API version no
		// lower than lo's and has the extension if lo does, it must not
		// report a lower SPIR-V version.
		for _, lo := range table {
			for _, hi := range table {
				if versionLess(hi.v, lo.v) || (lo.ext && !hi.ext) {
					continue
				}
				assert.GreaterOrEqual(t, maxSPIRVVersion(hi.v, hi.ext), maxSPIRVVersion(lo.v, lo.ext), "regression from %+v to %+v", lo, hi)
			}
		}
	})
}

func TestVersionLess(t *testing.T) {
	assert.True(t, versionLess(Version{Major: 1, Minor: 1}, Version{Major: 1, Minor: 2}))
	assert.True(t, versionLess(Version{Major: 1, Minor: 2}, Version{Major: 2, Minor: 0}))
	assert.False(t, versionLess(Version{Major: 1, Minor: 2}, Version{Major: 1, Minor: 1}))
	assert.False(t, versionLess(Version{Major: 1, Minor: 1}, Version{Major: 1, Minor: 1}))
}

func TestDeviceExtensionsToEnable(t *testing.T) {
	supported := newExtensionSet([]string{extPushDescriptor, extDescriptorUpdateTemplate, "VK_UNRELATED_ext"})
	enabled := deviceExtensionsToEnable(supported)
	assert.Contains(t, enabled, extPushDescriptor)
	assert.Contains(t, enabled, extDescriptorUpdateTemplate)
	assert.NotContains(t, enabled, "VK_UNRELATED_ext")
}

func TestVersionString(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patch: 3}
	assert.Equal(t, "1.2.3", v.String())
}
