package vkrt

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// VulkanPipeline bundles every resource a single (device, kernel) pipeline
// owns. Construction is lazy and memoized by PipelineCache; teardown must
// run in the exact reverse of construction order: descriptor update
// template, then pipeline, then pipeline layout, then descriptor pool,
// then descriptor set layout, then shader module (spec.md §4.8).
type VulkanPipeline struct {
	Device              *Device
	ShaderModule        *ShaderModule
	DescriptorSetLayout *DescriptorSetLayout
	DescriptorPool      *DescriptorPool // nil under the immediate protocol
	DescriptorSet       *DescriptorSet  // nil under the immediate protocol
	PipelineLayout      *PipelineLayout
	VKPipeline          vk.Pipeline
	UpdateTemplate      vk.DescriptorUpdateTemplate // zero value if unused
	UseUBO              bool
	PushConstantSize    uint32
	NumBufferArgs       int
}

func (d *Device) createComputePipeline(layout *PipelineLayout, stage vk.PipelineShaderStageCreateInfo) (vk.Pipeline, error) {
	createInfo := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stage,
		Layout: layout.VKPipelineLayout,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := checkResult("vkCreateComputePipelines",
		vk.CreateComputePipelines(d.VKDevice, nil, 1, []vk.ComputePipelineCreateInfo{createInfo}, nil, pipelines)); err != nil {
		return nil, err
	}
	return pipelines[0], nil
}

// Destroy releases every resource this pipeline owns, in the mandated
// reverse-of-construction order.
func (p *VulkanPipeline) Destroy() {
	if p.UpdateTemplate != nil {
		vk.DestroyDescriptorUpdateTemplate(p.Device.VKDevice, p.UpdateTemplate, nil)
	}
	if p.VKPipeline != nil {
		vk.DestroyPipeline(p.Device.VKDevice, p.VKPipeline, nil)
	}
	if p.PipelineLayout != nil {
		p.PipelineLayout.Destroy()
	}
	if p.DescriptorPool != nil {
		p.DescriptorPool.Destroy()
	}
	if p.DescriptorSetLayout != nil {
		p.DescriptorSetLayout.Destroy()
	}
	if p.ShaderModule != nil {
		p.ShaderModule.Destroy()
	}
}

type pipelineCacheKey struct {
	device *Device
	kernel string
}

// PipelineCache memoizes the lazy per-(device, kernel) VulkanPipeline
// construction described by spec.md §4.2: the first launch of a kernel on
// a device pays for pipeline construction, every subsequent launch reuses
// it. A single mutex guards the whole cache; contention only matters on
// cold start, so a coarser per-key lock would be needless complexity.
type PipelineCache struct {
	mu        sync.Mutex
	pipelines map[pipelineCacheKey]*VulkanPipeline
}

func NewPipelineCache() *PipelineCache {
	return &PipelineCache{pipelines: make(map[pipelineCacheKey]*VulkanPipeline)}
}

// GetOrBuild returns the cached pipeline for (device, kernel), building it
// via build if this is the first request.
func (c *PipelineCache) GetOrBuild(device *Device, kernel string, build func() (*VulkanPipeline, error)) (*VulkanPipeline, error) {
	key := pipelineCacheKey{device: device, kernel: kernel}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}

	p, err := build()
	if err != nil {
		return nil, fmt.Errorf("build pipeline for kernel %q: %w", kernel, err)
	}
	c.pipelines[key] = p
	Metrics.PipelineBuilds.WithLabelValues(device.PhysicalDevice.DeviceName, kernel).Inc()
	return p, nil
}

// DestroyAllForDevice tears down and forgets every pipeline built for
// device, called during DeviceAPI shutdown before the device itself is
// destroyed (spec.md §4.8).
func (c *PipelineCache) DestroyAllForDevice(device *Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, p := range c.pipelines {
		if key.device != device {
			continue
		}
		p.Destroy()
		delete(c.pipelines, key)
	}
}
