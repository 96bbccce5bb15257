package vkrt

import (
	vk "github.com/vulkan-go/vulkan"
)

// DescriptorPool backs the deferred launch protocol's preallocated
// descriptor sets: one pool per (device, kernel) pipeline, from which a
// single set is allocated once and reused by every launch of that kernel
// (spec.md §4.6).
type DescriptorPool struct {
	Device    *Device
	VKPool    vk.DescriptorPool
	poolSizes []vk.DescriptorPoolSize
}

func (d *Device) NewDescriptorPool() *DescriptorPool {
	return &DescriptorPool{Device: d}
}

func (p *DescriptorPool) AddPoolSize(dtype vk.DescriptorType, count int) {
	p.poolSizes = append(p.poolSizes, vk.DescriptorPoolSize{
		Type:            dtype,
		DescriptorCount: uint32(count),
	})
}

func (p *DescriptorPool) Create(maxSets int) error {
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(maxSets),
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		PoolSizeCount: uint32(len(p.poolSizes)),
		PPoolSizes:    p.poolSizes,
	}

	var vkPool vk.DescriptorPool
	if err := checkResult("vkCreateDescriptorPool",
		vk.CreateDescriptorPool(p.Device.VKDevice, &createInfo, nil, &vkPool)); err != nil {
		return err
	}
	p.VKPool = vkPool
	return nil
}

func (p *DescriptorPool) Allocate(layout *DescriptorSetLayout) (*DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.VKPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.VKLayout},
	}

	var vkSet vk.DescriptorSet
	if err := checkResult("vkAllocateDescriptorSets",
		vk.AllocateDescriptorSets(p.Device.VKDevice, &allocateInfo, &vkSet)); err != nil {
		return nil, err
	}

	return &DescriptorSet{Device: p.Device, Pool: p, VKDescriptorSet: vkSet}, nil
}

func (p *DescriptorPool) Reset() error {
	return checkResult("vkResetDescriptorPool", vk.ResetDescriptorPool(p.Device.VKDevice, p.VKPool, 0))
}

func (p *DescriptorPool) Destroy() {
	vk.DestroyDescriptorPool(p.Device.VKDevice, p.VKPool, nil)
}
