package vkrt

import (
	"math"

	vk "github.com/vulkan-go/vulkan"
)

// Fence wraps a VkFence. Each Stream owns exactly one, reused across
// launches (spec.md §4.5).
type Fence struct {
	Device  *Device
	VKFence vk.Fence
}

func (d *Device) CreateFence(signaled bool) (*Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var vkFence vk.Fence
	if err := checkResult("vkCreateFence", vk.CreateFence(d.VKDevice, &fenceCreateInfo, nil, &vkFence)); err != nil {
		return nil, err
	}
	return &Fence{Device: d, VKFence: vkFence}, nil
}

// Wait blocks until the fence is signaled. The runtime never applies a
// timeout to a fence wait (spec.md §4.5): a hung GPU hangs the caller too.
func (f *Fence) Wait() error {
	return checkResult("vkWaitForFences",
		vk.WaitForFences(f.Device.VKDevice, 1, []vk.Fence{f.VKFence}, vk.True, math.MaxUint64))
}

func (f *Fence) Reset() error {
	return checkResult("vkResetFences", vk.ResetFences(f.Device.VKDevice, 1, []vk.Fence{f.VKFence}))
}

func (f *Fence) Status() vk.Result {
	return vk.GetFenceStatus(f.Device.VKDevice, f.VKFence)
}

func (f *Fence) Destroy() {
	vk.DestroyFence(f.Device.VKDevice, f.VKFence, nil)
}
