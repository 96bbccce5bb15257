package vkrt

import (
	vk "github.com/vulkan-go/vulkan"
)

// WrappedFunction is the callable GetFunction returns for one kernel name.
// A miss in Module.fmap yields a WrappedFunction with found == false whose
// Call is a no-op (spec.md §7: "GetFunction on unknown name returns an
// empty callable, a normal non-error signal").
type WrappedFunction struct {
	module *Module
	name   string
	found  bool

	info          *FunctionInfo
	shaderWords   []uint32
	useUBO        bool
	numBufferArgs int
	numPodArgs    int
}

// Call binds args, fetches or builds the (device, kernel) pipeline, and
// dispatches via whichever of the two launch protocols dc selects, per
// spec.md §4.6. te supplies the per-thread Stream and UBO/staging caches;
// the caller is responsible for pinning a ThreadEntry for the lifetime of
// the call (see Pin).
func (wf *WrappedFunction) Call(te *ThreadEntry, dc *DeviceContext, args KernelArgs) error {
	if !wf.found {
		return nil
	}
	if len(args.Buffers) != wf.numBufferArgs {
		fatalf("kernel %q: got %d buffer args, want %d", wf.name, len(args.Buffers), wf.numBufferArgs)
	}
	if len(args.Pod) != wf.numPodArgs {
		fatalf("kernel %q: got %d pod args, want %d", wf.name, len(args.Pod), wf.numPodArgs)
	}

	pipeline, err := wf.module.pipelines.GetOrBuild(dc.Device, wf.name, func() (*VulkanPipeline, error) {
		return wf.buildPipeline(dc)
	})
	if err != nil {
		return err
	}

	stream, err := te.StreamFor(dc)
	if err != nil {
		return err
	}

	gx, gy, gz := GridDim(wf.info.ThreadAxisTags, args.Pod)
	podBytes := argUnion64ToBytes(args.Pod)

	var ubo *HostBuffer
	if wf.useUBO {
		size := uint64(len(podBytes))
		if size == 0 {
			size = 1
		}
		ubo, err = te.uboBuffer(dc, size)
		if err != nil {
			return err
		}
	}

	if dc.UseImmediate() {
		infos := make([]vk.DescriptorBufferInfo, 0, wf.numBufferArgs+1)
		for _, b := range args.Buffers {
			infos = append(infos, b.DSInfo(0))
		}
		if wf.useUBO {
			infos = append(infos, ubo.Buffer.DSInfo(0))
		}
		return wf.launchImmediate(stream, pipeline, infos, podBytes, ubo, gx, gy, gz)
	}
	return wf.launchDeferred(stream, pipeline, args.Buffers, podBytes, ubo, gx, gy, gz)
}

func (wf *WrappedFunction) launchImmediate(stream *Stream, pipeline *VulkanPipeline, infos []vk.DescriptorBufferInfo, podBytes []byte, ubo *HostBuffer, gx, gy, gz uint32) error {
	return stream.Launch(func(cmd *CommandBuffer) error {
		cmd.CmdBindPipeline(pipeline)
		vk.CmdPushDescriptorSetWithTemplateKHR(cmd.VKCommandBuffer, pipeline.UpdateTemplate,
			pipeline.PipelineLayout.VKPipelineLayout, 0, unsafePointer(&infos[0]))

		if err := writeKernelScalars(pipeline, cmd, podBytes, ubo); err != nil {
			return err
		}

		cmd.CmdDispatch(gx, gy, gz)
		cmd.CmdMemoryBarrier(
			vk.PipelineStageComputeShaderBit,
			vk.PipelineStageTransferBit|vk.PipelineStageComputeShaderBit,
			vk.AccessShaderReadBit|vk.AccessShaderWriteBit,
			vk.AccessTransferReadBit|vk.AccessTransferWriteBit|vk.AccessShaderReadBit|vk.AccessShaderWriteBit)
		return nil
	})
}

// launchDeferred registers the descriptor-set update (when the
// (set, buffers) token hasn't been seen since the last Synchronize) and the
// recording closure separately, matching spec.md §4.6's deferred protocol:
// the update is CPU-side and runs outside the command buffer, the dispatch
// is recorded into it.
func (wf *WrappedFunction) launchDeferred(stream *Stream, pipeline *VulkanPipeline, buffers []*Buffer, podBytes []byte, ubo *HostBuffer, gx, gy, gz uint32) error {
	set := pipeline.DescriptorSet

	tokenBuffers := make([]vk.Buffer, 0, len(buffers)+1)
	for _, b := range buffers {
		tokenBuffers = append(tokenBuffers, b.VKBuffer)
	}
	if ubo != nil {
		tokenBuffers = append(tokenBuffers, ubo.Buffer.VKBuffer)
	}

	writeFn := func() error {
		for i, b := range buffers {
			set.AddBuffer(i, vk.DescriptorTypeStorageBuffer, b)
		}
		if ubo != nil {
			set.AddBuffer(wf.numBufferArgs, vk.DescriptorTypeUniformBuffer, ubo.Buffer)
		}
		set.Write()
		return nil
	}

	kernelFn := func(cmd *CommandBuffer) error {
		cmd.CmdBindPipeline(pipeline)
		cmd.CmdBindDescriptorSets(pipeline.PipelineLayout, 0, set)

		if err := writeKernelScalars(pipeline, cmd, podBytes, ubo); err != nil {
			return err
		}

		cmd.CmdDispatch(gx, gy, gz)
		cmd.CmdMemoryBarrier(
			vk.PipelineStageComputeShaderBit,
			vk.PipelineStageTransferBit|vk.PipelineStageComputeShaderBit,
			vk.AccessShaderReadBit|vk.AccessShaderWriteBit,
			vk.AccessTransferReadBit|vk.AccessTransferWriteBit|vk.AccessShaderReadBit|vk.AccessShaderWriteBit)
		return nil
	}
	return stream.LaunchDeferred(set, tokenBuffers, writeFn, kernelFn)
}

// writeKernelScalars delivers a kernel's packed POD arguments either via
// push constants or, under kUseUBO, by copying into the UBO host mapping
// (spec.md §4.6 step c).
func writeKernelScalars(pipeline *VulkanPipeline, cmd *CommandBuffer, podBytes []byte, ubo *HostBuffer) error {
	if pipeline.UseUBO {
		if len(podBytes) == 0 {
			return nil
		}
		copy(ToBytes(ubo.Memory.Ptr, len(podBytes)), podBytes)
		if !ubo.Memory.HostCoherent {
			return ubo.Memory.Flush(uint64(len(podBytes)))
		}
		return nil
	}
	if len(podBytes) > 0 {
		cmd.CmdPushConstants(pipeline.PipelineLayout, podBytes)
	}
	return nil
}

// buildPipeline implements PipelineCache.get_or_build's 11-step algorithm
// (spec.md §4.5) for this kernel on dc. On any failure it tears down
// whatever it already created, in reverse order of successful creation.
func (wf *WrappedFunction) buildPipeline(dc *DeviceContext) (*VulkanPipeline, error) {
	device := dc.Device
	immediate := dc.UseImmediate()

	shaderModule, err := device.LoadShaderModuleFromWords(wf.shaderWords, wf.name)
	if err != nil {
		return nil, err
	}

	layout := device.NewDescriptorSetLayout()
	for i := 0; i < wf.numBufferArgs; i++ {
		layout.AddBinding(vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		})
	}
	nbytesScalars := uint32(wf.numPodArgs) * 8
	if wf.useUBO {
		layout.AddBinding(vk.DescriptorSetLayoutBinding{
			Binding:         uint32(wf.numBufferArgs),
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		})
	}

	if err := layout.Create(immediate); err != nil {
		shaderModule.Destroy()
		return nil, err
	}

	var pool *DescriptorPool
	var set *DescriptorSet
	if !immediate {
		pool = device.NewDescriptorPool()
		storageCount := wf.numBufferArgs
		if storageCount == 0 {
			storageCount = 1
		}
		pool.AddPoolSize(vk.DescriptorTypeStorageBuffer, storageCount)
		if wf.useUBO {
			pool.AddPoolSize(vk.DescriptorTypeUniformBuffer, 1)
		}
		if err := pool.Create(1); err != nil {
			layout.Destroy()
			shaderModule.Destroy()
			return nil, err
		}
		set, err = pool.Allocate(layout)
		if err != nil {
			pool.Destroy()
			layout.Destroy()
			shaderModule.Destroy()
			return nil, err
		}
	}

	pushConstantSize := uint32(0)
	if nbytesScalars > 0 && !wf.useUBO {
		pushConstantSize = nbytesScalars
		if pushConstantSize > dc.Target.MaxPushConstantsSize {
			fatalf("kernel %q: push constants size %d exceeds device limit %d", wf.name, pushConstantSize, dc.Target.MaxPushConstantsSize)
		}
	}

	pipelineLayout, err := device.CreatePipelineLayout(layout, pushConstantSize)
	if err != nil {
		if pool != nil {
			pool.Destroy()
		}
		layout.Destroy()
		shaderModule.Destroy()
		return nil, err
	}

	stage := shaderModule.VKPipelineShaderStageCreateInfo(wf.name)
	vkPipeline, err := device.createComputePipeline(pipelineLayout, stage)
	if err != nil {
		pipelineLayout.Destroy()
		if pool != nil {
			pool.Destroy()
		}
		layout.Destroy()
		shaderModule.Destroy()
		return nil, err
	}

	var updateTemplate vk.DescriptorUpdateTemplate
	if immediate {
		updateTemplate, err = createPushDescriptorUpdateTemplate(device, pipelineLayout, layout, wf.numBufferArgs, wf.useUBO)
		if err != nil {
			vk.DestroyPipeline(device.VKDevice, vkPipeline, nil)
			pipelineLayout.Destroy()
			layout.Destroy()
			shaderModule.Destroy()
			return nil, err
		}
	}

	return &VulkanPipeline{
		Device:              device,
		ShaderModule:        shaderModule,
		DescriptorSetLayout: layout,
		DescriptorPool:      pool,
		DescriptorSet:       set,
		PipelineLayout:      pipelineLayout,
		VKPipeline:          vkPipeline,
		UpdateTemplate:      updateTemplate,
		UseUBO:              wf.useUBO,
		PushConstantSize:    pushConstantSize,
		NumBufferArgs:       wf.numBufferArgs,
	}, nil
}

// createPushDescriptorUpdateTemplate builds the template the immediate
// protocol pushes a []vk.DescriptorBufferInfo array through in one call,
// entries laid out offset = i*sizeof(VkDescriptorBufferInfo), stride =
// sizeof(VkDescriptorBufferInfo) (spec.md §4.5 step 10).
func createPushDescriptorUpdateTemplate(device *Device, layout *PipelineLayout, setLayout *DescriptorSetLayout, numBufferArgs int, useUBO bool) (vk.DescriptorUpdateTemplate, error) {
	const dbiSize = uint64(24) // sizeof(VkDescriptorBufferInfo): buffer handle + 2x uint64

	entryCount := numBufferArgs
	if useUBO {
		entryCount++
	}
	entries := make([]vk.DescriptorUpdateTemplateEntry, entryCount)
	for i := 0; i < numBufferArgs; i++ {
		entries[i] = vk.DescriptorUpdateTemplateEntry{
			DstBinding:      uint32(i),
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			Offset:          uint(uint64(i) * dbiSize),
			Stride:          uint(dbiSize),
		}
	}
	if useUBO {
		entries[numBufferArgs] = vk.DescriptorUpdateTemplateEntry{
			DstBinding:      uint32(numBufferArgs),
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			Offset:          uint(uint64(numBufferArgs) * dbiSize),
			Stride:          uint(dbiSize),
		}
	}

	createInfo := vk.DescriptorUpdateTemplateCreateInfo{
		SType:                      vk.StructureTypeDescriptorUpdateTemplateCreateInfo,
		DescriptorUpdateEntryCount: uint32(len(entries)),
		PDescriptorUpdateEntries:   entries,
		TemplateType:               vk.DescriptorUpdateTemplateTypePushDescriptorsKhr,
		DescriptorSetLayout:        setLayout.VKLayout,
		PipelineBindPoint:          vk.PipelineBindPointCompute,
		PipelineLayout:             layout.VKPipelineLayout,
		Set:                        0,
	}

	var tmpl vk.DescriptorUpdateTemplate
	if err := checkResult("vkCreateDescriptorUpdateTemplate",
		vk.CreateDescriptorUpdateTemplate(device.VKDevice, &createInfo, nil, &tmpl)); err != nil {
		return nil, err
	}
	return tmpl, nil
}
