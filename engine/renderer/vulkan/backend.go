// Package vulkan implements gpu.Device on top of goki/vulkan. It targets
// Vulkan 1.3 with dynamic rendering and buffer device addresses, and drives
// a single queue that can do graphics, compute, transfer and present.
package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Surface is the window side of the backend.
type Surface interface {
	RequiredExtensions() []string
	CreateSurface(instance interface{}) (uintptr, error)
}

type Options struct {
	AppName    string
	Validation bool
}

// Device owns the instance, surface and logical device, and maps every
// gpu handle it issues to the Vulkan object behind it.
type Device struct {
	instance vk.Instance
	debug    vk.DebugReportCallback
	surface  vk.Surface
	physical *physicalDevice
	device   vk.Device
	queue    vk.Queue
	layers   []string
	procs    deviceProcs

	getInstanceProcAddr unsafe.Pointer

	locks   *lockPool
	handles handleTables
}

var _ gpu.Device = (*Device)(nil)

func New(window Surface, opts Options) (*Device, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("initialize vulkan loader: %w", err)
	}

	d := &Device{locks: newLockPool(), getInstanceProcAddr: procAddr}
	d.handles.init()
	if err := d.createInstance(window, opts); err != nil {
		return nil, err
	}

	surface, err := window.CreateSurface(d.instance)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create window surface: %w", err)
	}
	d.surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created")

	if d.physical, err = selectPhysicalDevice(d.instance, d.surface); err != nil {
		d.Close()
		return nil, err
	}
	if d.device, d.queue, err = createLogicalDevice(d.physical, d.layers); err != nil {
		d.Close()
		return nil, err
	}
	if d.procs, err = loadDeviceProcs(d.getInstanceProcAddr, d.instance, d.device); err != nil {
		d.Close()
		return nil, err
	}
	core.LogInfo("Vulkan device initialized successfully")
	return d, nil
}

func (d *Device) createInstance(window Surface, opts Options) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 3, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(opts.AppName),
		PEngineName:        safeString("Lantern"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string(nil), window.RequiredExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags = vk.InstanceCreateFlags(vk.InstanceCreateEnumeratePortabilityBit)
	}
	if opts.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if hasLayer(validationLayer) {
			d.layers = []string{validationLayer}
		} else {
			core.LogWarn("validation requested but %s is not available", validationLayer)
		}
	}
	for _, ext := range extensions {
		core.LogDebug("required instance extension: %s", ext)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(d.layers))
	createInfo.PpEnabledLayerNames = safeStrings(d.layers)

	if err := check("vkCreateInstance", vk.CreateInstance(&createInfo, nil, &d.instance)); err != nil {
		return err
	}
	if err := vk.InitInstance(d.instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan instance created")

	if opts.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		if err := check("vkCreateDebugReportCallback", vk.CreateDebugReportCallback(d.instance, &debugCreateInfo, nil, &d.debug)); err != nil {
			core.LogWarn("debug callback unavailable: %s", err)
		}
	}
	return nil
}

func hasLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Device) WaitIdle() error {
	return d.locks.SafeCall(QueueManagement, func() error {
		return check("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.device))
	})
}

// Close destroys the logical device, surface and instance. Every object
// created through the device must already be destroyed.
func (d *Device) Close() {
	if n := d.handles.live(); n > 0 {
		core.LogWarn("closing Vulkan device with %d live objects", n)
	}
	if d.device != nil {
		core.LogDebug("destroying Vulkan device")
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.surface != vk.NullSurface {
		core.LogDebug("destroying Vulkan surface")
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debug, nil)
		d.debug = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		core.LogDebug("destroying Vulkan instance")
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

func (d *Device) Release() error {
	d.Close()
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("performance: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
