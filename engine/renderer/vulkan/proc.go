package vulkan

/*
#include <stdint.h>
#include <stdlib.h>

typedef void (*lanternVoidFunction)(void);
typedef lanternVoidFunction (*lanternGetProcAddr)(void* dispatchable, const char* name);
typedef void (*lanternCmdBeginRendering)(void* commandBuffer, const void* info);
typedef void (*lanternCmdEndRendering)(void* commandBuffer);
typedef uint64_t (*lanternGetBufferDeviceAddress)(void* device, const void* info);

static void* lanternGetProc(void* getProcAddr, void* dispatchable, const char* name) {
	return (void*)((lanternGetProcAddr)getProcAddr)(dispatchable, name);
}

static void lanternCallCmdBeginRendering(void* fn, void* commandBuffer, const void* info) {
	((lanternCmdBeginRendering)fn)(commandBuffer, info);
}

static void lanternCallCmdEndRendering(void* fn, void* commandBuffer) {
	((lanternCmdEndRendering)fn)(commandBuffer);
}

static uint64_t lanternCallGetBufferDeviceAddress(void* fn, void* device, const void* info) {
	return ((lanternGetBufferDeviceAddress)fn)(device, info);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// deviceProcs holds the Vulkan 1.3 entry points the binding does not
// export. They are resolved per device through vkGetDeviceProcAddr.
type deviceProcs struct {
	cmdBeginRendering      unsafe.Pointer
	cmdEndRendering        unsafe.Pointer
	getBufferDeviceAddress unsafe.Pointer
}

var deviceProcNames = []string{
	"vkCmdBeginRendering",
	"vkCmdEndRendering",
	"vkGetBufferDeviceAddress",
}

func getProc(getProcAddr, dispatchable unsafe.Pointer, name string) unsafe.Pointer {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	return C.lanternGetProc(getProcAddr, dispatchable, cName)
}

// loadDeviceProcs resolves vkGetDeviceProcAddr from the instance loader,
// then every entry point in deviceProcNames from the device.
func loadDeviceProcs(getInstanceProcAddr unsafe.Pointer, instance vk.Instance, device vk.Device) (deviceProcs, error) {
	var p deviceProcs
	if getInstanceProcAddr == nil || instance == nil || device == nil {
		return p, fmt.Errorf("%w: no loader to resolve device entry points", gpu.ErrUnsupportedFeature)
	}
	getDeviceProcAddr := getProc(getInstanceProcAddr, unsafe.Pointer(instance), "vkGetDeviceProcAddr")
	if getDeviceProcAddr == nil {
		return p, fmt.Errorf("%w: vkGetDeviceProcAddr", gpu.ErrUnsupportedFeature)
	}
	slots := []*unsafe.Pointer{&p.cmdBeginRendering, &p.cmdEndRendering, &p.getBufferDeviceAddress}
	for i, name := range deviceProcNames {
		*slots[i] = getProc(getDeviceProcAddr, unsafe.Pointer(device), name)
	}
	if missing := p.missing(); len(missing) > 0 {
		return p, fmt.Errorf("%w: %v", gpu.ErrUnsupportedFeature, missing)
	}
	core.LogDebug("resolved %d device entry points", len(deviceProcNames))
	return p, nil
}

// missing lists the entry points that did not resolve.
func (p *deviceProcs) missing() []string {
	var names []string
	for i, fn := range []unsafe.Pointer{p.cmdBeginRendering, p.cmdEndRendering, p.getBufferDeviceAddress} {
		if fn == nil {
			names = append(names, deviceProcNames[i])
		}
	}
	return names
}

func (p *deviceProcs) beginRendering(cmd vk.CommandBuffer, info *vk.RenderingInfo) {
	if p.cmdBeginRendering == nil {
		core.LogError("vkCmdBeginRendering is not loaded")
		return
	}
	ref, allocs := info.PassRef()
	defer allocs.Free()
	C.lanternCallCmdBeginRendering(p.cmdBeginRendering, unsafe.Pointer(cmd), unsafe.Pointer(ref))
}

func (p *deviceProcs) endRendering(cmd vk.CommandBuffer) {
	if p.cmdEndRendering == nil {
		core.LogError("vkCmdEndRendering is not loaded")
		return
	}
	C.lanternCallCmdEndRendering(p.cmdEndRendering, unsafe.Pointer(cmd))
}

// bufferDeviceAddress returns 0 when the entry point is not loaded.
func (p *deviceProcs) bufferDeviceAddress(device vk.Device, info *vk.BufferDeviceAddressInfo) uint64 {
	if p.getBufferDeviceAddress == nil {
		core.LogError("vkGetBufferDeviceAddress is not loaded")
		return 0
	}
	ref, allocs := info.PassRef()
	defer allocs.Free()
	return uint64(C.lanternCallGetBufferDeviceAddress(p.getBufferDeviceAddress, unsafe.Pointer(device), unsafe.Pointer(ref)))
}
