package vkrt

import (
	vk "github.com/vulkan-go/vulkan"
)

// CommandBuffer wraps a single primary VkCommandBuffer. Not every Vulkan
// command is exposed here; callers that need something exotic can still
// reach VKCommandBuffer directly.
type CommandBuffer struct {
	VKCommandBuffer vk.CommandBuffer
}

func (c *CommandBuffer) Reset() error {
	return checkResult("vkResetCommandBuffer", vk.ResetCommandBuffer(c.VKCommandBuffer, 0))
}

func (c *CommandBuffer) VK() vk.CommandBuffer {
	return c.VKCommandBuffer
}

func (c *CommandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	return checkResult("vkBeginCommandBuffer", vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

// BeginOneTime begins recording a buffer that will be submitted exactly
// once before being re-recorded (the shape every Stream buffer takes).
func (c *CommandBuffer) BeginOneTime() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return checkResult("vkBeginCommandBuffer", vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

func (c *CommandBuffer) CmdBindPipeline(p *VulkanPipeline) {
	vk.CmdBindPipeline(c.VKCommandBuffer, vk.PipelineBindPointCompute, p.VKPipeline)
}

func (c *CommandBuffer) CmdBindDescriptorSets(layout *PipelineLayout, firstSet int, descriptorSets ...*DescriptorSet) {
	sets := make([]vk.DescriptorSet, len(descriptorSets))
	for i := range descriptorSets {
		sets[i] = descriptorSets[i].VKDescriptorSet
	}
	vk.CmdBindDescriptorSets(c.VKCommandBuffer, vk.PipelineBindPointCompute,
		layout.VKPipelineLayout, uint32(firstSet), uint32(len(descriptorSets)), sets, 0, nil)
}

func (c *CommandBuffer) CmdPushConstants(layout *PipelineLayout, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.VKCommandBuffer, layout.VKPipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(len(data)), unsafePointer(&data[0]))
}

func (c *CommandBuffer) CmdDispatch(x, y, z uint32) {
	vk.CmdDispatch(c.VKCommandBuffer, x, y, z)
}

func (c *CommandBuffer) CmdCopyBuffer(src, dst *Buffer, size uint64) {
	vk.CmdCopyBuffer(c.VKCommandBuffer, src.VKBuffer, dst.VKBuffer, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
}

// CmdBufferMemoryBarrier inserts a full memory barrier between the given
// pipeline stages, covering the whole of buf (spec.md §4.6's "barrier
// between the write and the dispatch" requirement).
func (c *CommandBuffer) CmdBufferMemoryBarrier(buf *Buffer, srcStage, dstStage vk.PipelineStageFlagBits, srcAccess, dstAccess vk.AccessFlagBits) {
	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buf.VKBuffer,
		Offset:              0,
		Size:                vk.DeviceSize(buf.Size),
	}
	vk.CmdPipelineBarrier(c.VKCommandBuffer,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage),
		0, 0, nil, 1, []vk.BufferMemoryBarrier{barrier}, 0, nil)
}

// CmdMemoryBarrier inserts a global (not buffer-scoped) memory barrier, used
// for the post-dispatch SHADER_R/W -> (TRANSFER_R/W | SHADER_R/W) barrier
// spec.md §4.6 describes and the device-to-device copy barrier of §4.4.
func (c *CommandBuffer) CmdMemoryBarrier(srcStage, dstStage vk.PipelineStageFlagBits, srcAccess, dstAccess vk.AccessFlagBits) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(srcAccess),
		DstAccessMask: vk.AccessFlags(dstAccess),
	}
	vk.CmdPipelineBarrier(c.VKCommandBuffer,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage),
		0, 1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

func (c *CommandBuffer) End() error {
	return checkResult("vkEndCommandBuffer", vk.EndCommandBuffer(c.VKCommandBuffer))
}
