package vkrt

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Queue wraps a VkQueue. The runtime creates exactly one queue per device,
// from the selected compute queue family (spec.md §4.1 step 5/8).
type Queue struct {
	Device      *Device
	QueueFamily *QueueFamily
	VKQueue     vk.Queue
}

func (q *Queue) WaitIdle() error {
	return checkResult("vkQueueWaitIdle", vk.QueueWaitIdle(q.VKQueue))
}

// SubmitWithFence submits buffers for execution, signaling fence on
// completion. The caller is responsible for waiting on the fence; this is
// the building block Stream.synchronize uses (spec.md §4.5).
func (q *Queue) SubmitWithFence(fence *Fence, buffers ...*CommandBuffer) error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(buffers)),
	}

	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}
	submitInfo.PCommandBuffers = b

	var vkFence vk.Fence
	if fence != nil {
		vkFence = fence.VKFence
	}

	return checkResult("vkQueueSubmit", vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, vkFence))
}

func (q *Queue) String() string {
	return fmt.Sprintf("{Device: %s QueueFamily: %s}", q.Device.String(), q.QueueFamily.String())
}
