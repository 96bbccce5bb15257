package vkrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestRankStagingMemoryType(t *testing.T) {
	assert.Equal(t, 1, rankStagingMemoryType(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCachedBit))
	assert.Equal(t, 0, rankStagingMemoryType(vk.MemoryPropertyHostVisibleBit))
}

func TestRankComputeMemoryType(t *testing.T) {
	assert.Equal(t, 1, rankComputeMemoryType(vk.MemoryPropertyDeviceLocalBit))
	assert.Equal(t, 0, rankComputeMemoryType(vk.MemoryPropertyDeviceLocalBit|vk.MemoryPropertyHostVisibleBit))
}

func queueFamily(index int, flags vk.QueueFlagBits) *QueueFamily {
	return &QueueFamily{
		Index:                   index,
		VKQueueFamilyProperties: vk.QueueFamilyProperties{QueueFlags: vk.QueueFlags(flags)},
	}
}

func TestSelectComputeQueueFamily(t *testing.T) {
	t.Run("prefers compute-only over compute+graphics", func(t *testing.T) {
		families := QueueFamilySlice{
			queueFamily(0, vk.QueueGraphicsBit|vk.QueueComputeBit),
			queueFamily(1, vk.QueueComputeBit),
		}
		qf, ok := selectComputeQueueFamily(families)
		assert.True(t, ok)
		assert.Equal(t, 1, qf.Index)
	})

	t.Run("falls back to the first compute+graphics family", func(t *testing.T) {
		families := QueueFamilySlice{
			queueFamily(0, vk.QueueTransferBit),
			queueFamily(1, vk.QueueGraphicsBit|vk.QueueComputeBit),
		}
		qf, ok := selectComputeQueueFamily(families)
		assert.True(t, ok)
		assert.Equal(t, 1, qf.Index)
	})

	t.Run("no compute queue family at all", func(t *testing.T) {
		families := QueueFamilySlice{queueFamily(0, vk.QueueTransferBit)}
		_, ok := selectComputeQueueFamily(families)
		assert.False(t, ok)
	})
}

func TestQueueFamilySliceFilterCompute(t *testing.T) {
	families := QueueFamilySlice{
		queueFamily(0, vk.QueueTransferBit),
		queueFamily(1, vk.QueueComputeBit),
	}
	computeOnly := families.FilterCompute()
	assert.Len(t, computeOnly, 1)
	assert.Equal(t, 1, computeOnly[0].Index)
}
