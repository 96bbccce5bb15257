package vkrt

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// InitializeVulkanLoader loads the platform Vulkan loader and the global
// entry points. It must run once, before any other call in this package.
func InitializeVulkanLoader() error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return err
	}
	return vk.Init()
}

// Version is a semantic Vulkan version triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) VKVersion() uint32 {
	return vk.MakeVersion(v.Major, v.Minor, v.Patch)
}

func versionFromVK(v uint32) Version {
	return Version{
		Major: int(vk.Version(v).Major()),
		Minor: int(vk.Version(v).Minor()),
		Patch: int(vk.Version(v).Patch()),
	}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// App carries the identity and requested capabilities of the process that is
// about to create a Vulkan instance. Kept distinct from Instance so callers
// can inspect/adjust layers and extensions before paying for CreateInstance.
type App struct {
	Name       string
	EngineName string
	Version    Version
	APIVersion Version

	EnabledLayers     []string
	EnabledExtensions []string
}

// SupportedLayers lists the instance layers the loader knows about.
func SupportedLayers() ([]string, error) {
	var n uint32
	if err := checkResult("vkEnumerateInstanceLayerProperties",
		vk.EnumerateInstanceLayerProperties(&n, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, n)
	if err := checkResult("vkEnumerateInstanceLayerProperties",
		vk.EnumerateInstanceLayerProperties(&n, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.LayerName[:]))
	}
	return names, nil
}

// SupportedExtensions lists the instance extensions the loader knows about.
func SupportedExtensions() ([]string, error) {
	var n uint32
	if err := checkResult("vkEnumerateInstanceExtensionProperties",
		vk.EnumerateInstanceExtensionProperties("", &n, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, n)
	if err := checkResult("vkEnumerateInstanceExtensionProperties",
		vk.EnumerateInstanceExtensionProperties("", &n, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

// queryInstanceAPIVersion returns the loader's supported Vulkan API version,
// falling back to 1.0 if vkEnumerateInstanceVersion is not present in this
// loader (spec.md §4.1 step 3).
func queryInstanceAPIVersion() uint32 {
	var version uint32
	ret := vk.EnumerateInstanceVersion(&version)
	if ret != vk.Success || version == 0 {
		return vk.MakeVersion(1, 0, 0)
	}
	return version
}

// preferredValidationLayer returns the best available validation layer name
// out of the supported set, preferring the modern Khronos layer over the
// legacy LunarG meta-layers (spec.md §4.1 step 1).
func preferredValidationLayer(supported []string) (string, bool) {
	candidates := []string{
		"VK_LAYER_KHRONOS_validation",
		"VK_LAYER_LUNARG_standard_validation",
		"VK_LAYER_LUNARG_parameter_validation",
	}
	set := make(map[string]bool, len(supported))
	for _, s := range supported {
		set[s] = true
	}
	for _, c := range candidates {
		if set[c] {
			return c, true
		}
	}
	return "", false
}

// EnableExtension records a requested instance extension. Availability is
// verified at CreateInstance time by the caller (deviceapi.go), matching
// spec.md §4.1 step 2's "always requests ... as optional" language: an
// unsupported optional extension is simply dropped, not an error.
func (a *App) EnableExtension(ext string) *App {
	a.EnabledExtensions = append(a.EnabledExtensions, ext)
	return a
}

func (a *App) EnableLayer(layer string) *App {
	a.EnabledLayers = append(a.EnabledLayers, layer)
	return a
}

func (a *App) vkApplicationInfo() vk.ApplicationInfo {
	if a.APIVersion.Major < 1 {
		a.APIVersion.Major = 1
	}
	return vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         a.APIVersion.VKVersion(),
		ApplicationVersion: a.Version.VKVersion(),
		PApplicationName:   safeString(a.Name),
		PEngineName:        safeString(a.EngineName),
	}
}

// CreateInstance creates the Vulkan instance from the app's currently
// enabled layers/extensions.
func (a *App) CreateInstance() (*Instance, error) {
	appInfo := a.vkApplicationInfo()

	extensions := safeStrings(a.EnabledExtensions)
	layers := safeStrings(a.EnabledLayers)

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	var vkInstance vk.Instance
	if err := checkResult("vkCreateInstance", vk.CreateInstance(&createInfo, nil, &vkInstance)); err != nil {
		return nil, err
	}
	vk.InitInstance(vkInstance)

	return &Instance{VKInstance: vkInstance}, nil
}

// Instance is a live Vulkan instance. Its lifetime is owned by the DeviceAPI
// singleton; drivers may crash at process exit if Destroy is never called
// (spec.md §3), so callers must not leak it.
type Instance struct {
	VKInstance vk.Instance
}

func (i *Instance) Destroy() {
	vk.DestroyInstance(i.VKInstance, nil)
}

// PhysicalDevices enumerates the physical devices visible to this instance.
func (i *Instance) PhysicalDevices() ([]*PhysicalDevice, error) {
	var count uint32
	if err := checkResult("vkEnumeratePhysicalDevices",
		vk.EnumeratePhysicalDevices(i.VKInstance, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := checkResult("vkEnumeratePhysicalDevices",
		vk.EnumeratePhysicalDevices(i.VKInstance, &count, devices)); err != nil {
		return nil, err
	}

	ret := make([]*PhysicalDevice, count)
	for idx, dev := range devices {
		pd := &PhysicalDevice{VKPhysicalDevice: dev, Instance: i}
		vk.GetPhysicalDeviceProperties(dev, &pd.VKPhysicalDeviceProperties)
		pd.VKPhysicalDeviceProperties.Deref()
		pd.DeviceName = vk.ToString(pd.VKPhysicalDeviceProperties.DeviceName[:])
		ret[idx] = pd
	}
	return ret, nil
}
