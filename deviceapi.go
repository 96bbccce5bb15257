package vkrt

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// Device attribute kinds answered by DeviceAPI.GetAttr (spec.md §6).
type DeviceAttr int

const (
	AttrMaxThreadsPerBlock DeviceAttr = iota
	AttrMaxSharedMemoryPerBlock
	AttrWarpSize
	AttrComputeVersion
	AttrDeviceName
	AttrAPIVersionHeader
	AttrDriverVersion
	AttrMaxThreadDimensions
	AttrExist
	AttrMaxRegistersPerBlock
	AttrMaxClockRate
	AttrMultiProcessorCount
)

// DeviceAPI is the process-wide façade spec.md §2/§9 describes: owns the
// Vulkan instance and the bounded vector of DeviceContexts, and exposes
// alloc/free, copy, stream-sync, and attribute queries. It is an explicit
// singleton, not a leaked static — Shutdown must run before process exit,
// because some drivers crash at exit unless vkDestroyInstance was called.
type DeviceAPI struct {
	instance *Instance
	contexts []*DeviceContext

	mu      sync.Mutex
	modules []*Module
}

var (
	singletonMu sync.Mutex
	singleton   *DeviceAPI
)

// InitDeviceAPI creates the process-wide DeviceAPI: instance creation
// (validation layer gated by VULKAN_ENABLE_VALIDATION_LAYERS, §4.1 step 1),
// physical device enumeration, and per-device DeviceContext initialization
// (§4.1 steps 5-10). Devices with no compute queue family are skipped, not
// fatal. Calling this twice without an intervening Shutdown is a contract
// violation.
func InitDeviceAPI(productName string) (*DeviceAPI, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		fatalf("InitDeviceAPI called while a DeviceAPI singleton is already live")
	}

	if err := InitializeVulkanLoader(); err != nil {
		return nil, fmt.Errorf("load vulkan: %w", err)
	}

	app := &App{
		Name:       productName,
		EngineName: "vkrt",
		APIVersion: versionFromVK(queryInstanceAPIVersion()),
	}
	supportedExts, err := SupportedExtensions()
	if err != nil {
		return nil, err
	}
	if containsExtension(supportedExts, extGetPhysicalDeviceProps2) {
		app.EnableExtension(extGetPhysicalDeviceProps2)
	}

	if envBool(EnvEnableValidationLayers) {
		layers, err := SupportedLayers()
		if err != nil {
			return nil, err
		}
		if layer, ok := preferredValidationLayer(layers); ok {
			app.EnableLayer(layer)
		}
	}

	instance, err := app.CreateInstance()
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	pds, err := instance.PhysicalDevices()
	if err != nil {
		instance.Destroy()
		return nil, err
	}

	instanceHasProperties2 := containsExtension(app.EnabledExtensions, extGetPhysicalDeviceProps2)

	contexts := make([]*DeviceContext, 0, MaxDevices)
	for _, pd := range pds {
		if len(contexts) >= MaxDevices {
			log().Warnw("skipping physical device beyond MaxDevices", "device", pd.DeviceName, "max", MaxDevices)
			break
		}
		dc, ok, err := InitDeviceContext(len(contexts), pd, instanceHasProperties2)
		if err != nil {
			instance.Destroy()
			return nil, fmt.Errorf("init device %q: %w", pd.DeviceName, err)
		}
		if !ok {
			log().Infow("skipping device with no compute queue family", "device", pd.DeviceName)
			continue
		}
		contexts = append(contexts, dc)
		log().Infow("initialized vulkan device", "device", dc.Target.String(), "immediate", dc.UseImmediate())
	}

	api := &DeviceAPI{instance: instance, contexts: contexts}
	singleton = api
	return api, nil
}

// Singleton returns the process-wide DeviceAPI, or nil if InitDeviceAPI has
// not been called (or Shutdown already ran).
func Singleton() *DeviceAPI {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singleton
}

func containsExtension(exts []string, name string) bool {
	for _, e := range exts {
		if e == name {
			return true
		}
	}
	return false
}

// Shutdown tears down every registered module's pipelines, then every
// device, then the instance — the order spec.md §4.8/§9 mandates so the
// driver never sees a destroyed VkDevice still holding live pipelines, and
// vkDestroyInstance runs only after every vkDestroyDevice.
func (a *DeviceAPI) Shutdown() {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	a.mu.Lock()
	for _, m := range a.modules {
		m.Close(a.contexts)
	}
	a.modules = nil
	a.mu.Unlock()

	for _, dc := range a.contexts {
		dc.Device.Destroy()
	}
	a.instance.Destroy()

	if singleton == a {
		singleton = nil
	}
}

// NumDevices returns the number of initialized DeviceContexts.
func (a *DeviceAPI) NumDevices() int { return len(a.contexts) }

// Context returns the DeviceContext at index, or nil if out of range —
// used by GetAttr's kExist query (spec.md §8 seed test 1).
func (a *DeviceAPI) Context(index int) *DeviceContext {
	if index < 0 || index >= len(a.contexts) {
		return nil
	}
	return a.contexts[index]
}

// RegisterModule tracks m so Shutdown tears down its pipelines before the
// devices it was built against are destroyed.
func (a *DeviceAPI) RegisterModule(m *Module) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modules = append(a.modules, m)
}

// AllocDataSpace builds a DeviceBuffer on dc's compute memory type, per
// spec.md §4.2. A zero-byte request is promoted to 1 byte at this call
// site, not deeper in buffer creation (spec.md's supplemented zero-nbytes
// behavior).
func (a *DeviceAPI) AllocDataSpace(dc *DeviceContext, nbytes uint64) (*Buffer, *DeviceMemory, error) {
	if nbytes == 0 {
		nbytes = 1
	}

	usage := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit | vk.BufferUsageStorageBufferBit)
	buffer, err := dc.Device.CreateBufferWithOptions(nbytes, usage, vk.SharingModeExclusive)
	if err != nil {
		return nil, nil, err
	}

	req := buffer.MemoryRequirements()

	var memory *DeviceMemory
	if buffer.RequiresDedicatedAllocation(dc) {
		memory, err = dc.Device.AllocateDedicated(req.Size, dc.ComputeMemoryTypeIndex, buffer.VKBuffer)
	} else {
		memory, err = dc.Device.Allocate(req.Size, dc.ComputeMemoryTypeIndex)
	}
	if err != nil {
		buffer.Destroy()
		return nil, nil, err
	}

	if err := buffer.Bind(memory, 0); err != nil {
		memory.Destroy()
		buffer.Destroy()
		return nil, nil, err
	}
	return buffer, memory, nil
}

// FreeDataSpace synchronizes te's Stream on dc first, to retire any
// in-flight commands referencing buffer, then destroys it (spec.md §4.2).
func (a *DeviceAPI) FreeDataSpace(te *ThreadEntry, dc *DeviceContext, buffer *Buffer, memory *DeviceMemory) error {
	stream, err := te.StreamFor(dc)
	if err != nil {
		return err
	}
	if err := stream.Synchronize(); err != nil {
		return err
	}
	memory.Destroy()
	buffer.Destroy()
	return nil
}

// AllocWorkspace returns device-local scratch memory from te's per-device
// workspace pool for dc, the façade entry point spec.md §2 item 7 lists
// alongside alloc/free/copy/stream-sync/attrs. Delegated through ThreadEntry
// because the workspace pool handle is thread-local state (spec.md §2 item
// 4), matching how the original's AllocWorkspace/FreeWorkspace route through
// the calling thread's pool rather than a per-device one.
func (a *DeviceAPI) AllocWorkspace(te *ThreadEntry, dc *DeviceContext, nbytes uint64) (*HostBuffer, error) {
	return te.workspaceFor(dc).Alloc(nbytes)
}

// FreeWorkspace returns buf to te's workspace pool for dc for reuse by a
// future AllocWorkspace.
func (a *DeviceAPI) FreeWorkspace(te *ThreadEntry, dc *DeviceContext, buf *HostBuffer) {
	te.workspaceFor(dc).Free(buf)
}

// CopyDataFromTo implements the three copy directions of spec.md §4.4. A
// nil srcDC or dstDC means "host" on that side.
func (a *DeviceAPI) CopyDataFromTo(te *ThreadEntry, size uint64, srcDC, dstDC *DeviceContext, src *Buffer, dst *Buffer, hostSrc, hostDst []byte) error {
	switch {
	case srcDC != nil && dstDC != nil:
		return a.copyDeviceToDevice(te, size, srcDC, dstDC, src, dst)
	case srcDC != nil && dstDC == nil:
		return a.copyDeviceToHost(te, size, srcDC, src, hostDst)
	case srcDC == nil && dstDC != nil:
		return a.copyHostToDevice(te, size, dstDC, hostSrc, dst)
	default:
		fatalf("CopyDataFromTo: host-to-host copy is not a runtime responsibility")
		return nil
	}
}

func (a *DeviceAPI) copyDeviceToDevice(te *ThreadEntry, size uint64, srcDC, dstDC *DeviceContext, src, dst *Buffer) error {
	if srcDC.Index != dstDC.Index {
		fatalf("CopyDataFromTo: cross-device copy (src=%d dst=%d) is not supported", srcDC.Index, dstDC.Index)
	}
	stream, err := te.StreamFor(srcDC)
	if err != nil {
		return err
	}
	if err := stream.Launch(func(cmd *CommandBuffer) error {
		cmd.CmdCopyBuffer(src, dst, size)
		cmd.CmdMemoryBarrier(
			vk.PipelineStageTransferBit, vk.PipelineStageTransferBit|vk.PipelineStageComputeShaderBit,
			vk.AccessTransferWriteBit,
			vk.AccessTransferReadBit|vk.AccessTransferWriteBit|vk.AccessShaderReadBit|vk.AccessShaderWriteBit)
		return nil
	}); err != nil {
		return err
	}
	Metrics.BytesCopied.WithLabelValues("device_to_device").Add(float64(size))
	return nil
}

func (a *DeviceAPI) copyDeviceToHost(te *ThreadEntry, size uint64, srcDC *DeviceContext, src *Buffer, hostDst []byte) error {
	staging, err := te.stagingBuffer(srcDC, size)
	if err != nil {
		return err
	}
	stream, err := te.StreamFor(srcDC)
	if err != nil {
		return err
	}
	if err := stream.Launch(func(cmd *CommandBuffer) error {
		cmd.CmdCopyBuffer(src, staging.Buffer, size)
		return nil
	}); err != nil {
		return err
	}
	if err := stream.Synchronize(); err != nil {
		return err
	}
	if err := staging.Memory.CopyOut(hostDst[:size]); err != nil {
		return err
	}
	Metrics.BytesCopied.WithLabelValues("device_to_host").Add(float64(size))
	return nil
}

func (a *DeviceAPI) copyHostToDevice(te *ThreadEntry, size uint64, dstDC *DeviceContext, hostSrc []byte, dst *Buffer) error {
	staging, err := te.stagingBuffer(dstDC, size)
	if err != nil {
		return err
	}
	if err := staging.Memory.CopyIn(hostSrc[:size]); err != nil {
		return err
	}
	stream, err := te.StreamFor(dstDC)
	if err != nil {
		return err
	}
	if err := stream.Launch(func(cmd *CommandBuffer) error {
		cmd.CmdMemoryBarrier(vk.PipelineStageHostBit, vk.PipelineStageTransferBit,
			vk.AccessHostWriteBit, vk.AccessTransferReadBit)
		cmd.CmdCopyBuffer(staging.Buffer, dst, size)
		return nil
	}); err != nil {
		return err
	}
	if err := stream.Synchronize(); err != nil {
		return err
	}
	Metrics.BytesCopied.WithLabelValues("host_to_device").Add(float64(size))
	return nil
}

// SyncStreamFromTo is a no-op: this runtime models exactly one Stream per
// (thread, device), so there is nothing to synchronize across (spec.md §5).
func (a *DeviceAPI) SyncStreamFromTo(srcDC, dstDC *DeviceContext) error {
	return nil
}

// GetAttr answers one attribute query against dc's Target (spec.md §6).
// AttrMaxRegistersPerBlock/AttrMaxClockRate/AttrMultiProcessorCount have no
// Vulkan equivalent and always report (nil, false), matching the original's
// no-op behavior for these three attributes.
func (a *DeviceAPI) GetAttr(dc *DeviceContext, attr DeviceAttr) (interface{}, bool) {
	if dc == nil {
		if attr == AttrExist {
			return int64(0), true
		}
		return nil, false
	}
	t := dc.Target
	switch attr {
	case AttrMaxThreadsPerBlock:
		return int64(t.MaxWorkgroupInvocations), true
	case AttrMaxSharedMemoryPerBlock:
		return int64(t.MaxComputeSharedMemoryBytes), true
	case AttrWarpSize:
		return int64(t.ThreadWarpSize), true
	case AttrComputeVersion:
		return fmt.Sprintf("%d.%d.%d", t.APIVersion.Major, t.APIVersion.Minor, t.APIVersion.Patch), true
	case AttrDeviceName:
		return t.DeviceName, true
	case AttrAPIVersionHeader:
		return int64(t.APIVersion.VKVersion()), true
	case AttrDriverVersion:
		return t.DriverVersion.String(), true
	case AttrMaxThreadDimensions:
		return []uint32{t.MaxWorkgroupSize[0], t.MaxWorkgroupSize[1], t.MaxWorkgroupSize[2]}, true
	case AttrExist:
		return int64(1), true
	case AttrMaxRegistersPerBlock, AttrMaxClockRate, AttrMultiProcessorCount:
		return nil, false
	default:
		return nil, false
	}
}

// GenerateTarget returns dc's capability map, the payload behind the
// registered entry point device_api.vulkan.generate_target (spec.md §6).
func (a *DeviceAPI) GenerateTarget(dc *DeviceContext) *Target {
	return dc.Target
}
