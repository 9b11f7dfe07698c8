package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

const portabilitySubset = "VK_KHR_portability_subset"

type physicalDeviceRequirements struct {
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

// physicalDevice is a candidate adapter with the single queue family the
// renderer uses for graphics, compute, transfer and present.
type physicalDevice struct {
	handle      vk.PhysicalDevice
	properties  vk.PhysicalDeviceProperties
	features    vk.PhysicalDeviceFeatures
	memory      vk.PhysicalDeviceMemoryProperties
	queueFamily uint32
	portability bool
}

func selectPhysicalDevice(instance vk.Instance, surface vk.Surface) (*physicalDevice, error) {
	var count uint32
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &count, devices)); err != nil {
		return nil, err
	}

	requirements := physicalDeviceRequirements{
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		SamplerAnisotropy:    true,
		DiscreteGPU:          runtime.GOOS != "darwin",
	}

	// Prefer a discrete adapter, but take the first suitable one otherwise.
	var fallback *physicalDevice
	for _, d := range devices {
		candidate, ok := physicalDeviceMeetsRequirements(d, surface, requirements)
		if !ok {
			continue
		}
		if candidate.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu || !requirements.DiscreteGPU {
			logDevice(candidate)
			return candidate, nil
		}
		if fallback == nil {
			fallback = candidate
		}
	}
	if fallback != nil {
		logDevice(fallback)
		return fallback, nil
	}
	return nil, errors.New("no physical device meets the requirements")
}

func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, req physicalDeviceRequirements) (*physicalDevice, bool) {
	pd := &physicalDevice{handle: device}
	vk.GetPhysicalDeviceProperties(device, &pd.properties)
	pd.properties.Deref()
	pd.properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(device, &pd.features)
	pd.features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(device, &pd.memory)
	pd.memory.Deref()

	name := cString(pd.properties.DeviceName[:])
	if api := vk.Version(pd.properties.ApiVersion); api.Major() == 1 && api.Minor() < 3 {
		core.LogInfo("device %s only supports Vulkan %d.%d, skipping", name, api.Major(), api.Minor())
		return nil, false
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)

	found := false
	for i := range families {
		families[i].Deref()
		flags := vk.QueueFlagBits(families[i].QueueFlags)
		if flags&vk.QueueGraphicsBit == 0 || flags&vk.QueueComputeBit == 0 {
			continue
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			continue
		}
		if supportsPresent == vk.True {
			pd.queueFamily = uint32(i)
			found = true
			break
		}
	}
	if !found {
		core.LogInfo("device %s has no graphics queue that can present, skipping", name)
		return nil, false
	}

	var extCount uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &extCount, nil); res != vk.Success {
		return nil, false
	}
	available := make([]vk.ExtensionProperties, extCount)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &extCount, available); res != vk.Success {
		return nil, false
	}
	names := make(map[string]bool, extCount)
	for i := range available {
		available[i].Deref()
		names[cString(available[i].ExtensionName[:])] = true
	}
	for _, ext := range req.DeviceExtensionNames {
		if !names[ext] {
			core.LogInfo("required extension not found: %s, skipping device %s", ext, name)
			return nil, false
		}
	}
	pd.portability = names[portabilitySubset]

	if req.SamplerAnisotropy && pd.features.SamplerAnisotropy == vk.False {
		core.LogInfo("device %s does not support samplerAnisotropy, skipping", name)
		return nil, false
	}
	return pd, true
}

func logDevice(pd *physicalDevice) {
	core.LogInfo("selected device: %s", cString(pd.properties.DeviceName[:]))
	switch pd.properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is integrated")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is discrete")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is virtual")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU")
	default:
		core.LogInfo("GPU type is unknown")
	}
	api := vk.Version(pd.properties.ApiVersion)
	core.LogInfo("Vulkan API version: %d.%d.%d", api.Major(), api.Minor(), api.Patch())
	for i := uint32(0); i < pd.memory.MemoryHeapCount; i++ {
		heap := pd.memory.MemoryHeaps[i]
		heap.Deref()
		gib := float64(heap.Size) / 1024 / 1024 / 1024
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("shared system memory: %.2f GiB", gib)
		}
	}
}

// createLogicalDevice enables dynamic rendering, synchronization2 and
// buffer device addresses on top of the swapchain extension.
func createLogicalDevice(pd *physicalDevice, validationLayers []string) (vk.Device, vk.Queue, error) {
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: pd.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if pd.portability {
		core.LogInfo("adding required extension %s", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	sync2 := vk.PhysicalDeviceSynchronization2Features{
		SType:            vk.StructureTypePhysicalDeviceSynchronization2Features,
		Synchronization2: vk.True,
	}
	dynamicRendering := vk.PhysicalDeviceDynamicRenderingFeatures{
		SType:            vk.StructureTypePhysicalDeviceDynamicRenderingFeatures,
		DynamicRendering: vk.True,
	}
	sync2.PNext = unsafe.Pointer(&dynamicRendering)
	vulkan12 := vk.PhysicalDeviceVulkan12Features{
		SType:               vk.StructureTypePhysicalDeviceVulkan12Features,
		BufferDeviceAddress: vk.True,
		DescriptorIndexing:  vk.True,
	}
	dynamicRendering.PNext = unsafe.Pointer(&vulkan12)

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(&sync2),
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{SamplerAnisotropy: vk.True}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(validationLayers)),
		PpEnabledLayerNames:     safeStrings(validationLayers),
	}

	var device vk.Device
	if err := check("vkCreateDevice", vk.CreateDevice(pd.handle, &createInfo, nil, &device)); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", gpu.ErrUnsupportedFeature, err)
	}
	var queue vk.Queue
	vk.GetDeviceQueue(device, pd.queueFamily, 0, &queue)
	core.LogInfo("logical device created")
	return device, queue, nil
}

// findMemoryIndex picks the first memory type allowed by typeFilter that
// has every required property, preferring one that also has preferred.
func (pd *physicalDevice) findMemoryIndex(typeFilter uint32, required, preferred vk.MemoryPropertyFlagBits) (uint32, error) {
	best := -1
	for i := uint32(0); i < pd.memory.MemoryTypeCount; i++ {
		if typeFilter&(1<<i) == 0 {
			continue
		}
		memType := pd.memory.MemoryTypes[i]
		memType.Deref()
		flags := vk.MemoryPropertyFlagBits(memType.PropertyFlags)
		if flags&required != required {
			continue
		}
		if flags&preferred == preferred {
			return i, nil
		}
		if best < 0 {
			best = int(i)
		}
	}
	if best < 0 {
		core.LogWarn("unable to find suitable memory type for filter %#x", typeFilter)
		return 0, gpu.ErrNoSuitableMemory
	}
	return uint32(best), nil
}
