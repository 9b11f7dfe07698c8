package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

func resultString(result vk.Result) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.Incomplete:
		return "VK_INCOMPLETE"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED"
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL"
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	case vk.ErrorNativeWindowInUse:
		return "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR"
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	case vk.ErrorFragmentation:
		return "VK_ERROR_FRAGMENTATION"
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// check turns a VkResult into an error for op. Results the renderer reacts
// to are wrapped around the matching gpu sentinel.
func check(op string, result vk.Result) error {
	var sentinel error
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate:
		sentinel = gpu.ErrOutOfDate
	case vk.Timeout:
		sentinel = gpu.ErrTimeout
	case vk.ErrorOutOfPoolMemory:
		sentinel = gpu.ErrOutOfPoolMemory
	case vk.ErrorFragmentedPool:
		sentinel = gpu.ErrFragmentedPool
	case vk.ErrorDeviceLost:
		sentinel = gpu.ErrDeviceLost
	case vk.ErrorOutOfDeviceMemory:
		sentinel = gpu.ErrOutOfDeviceMemory
	case vk.ErrorOutOfHostMemory:
		sentinel = gpu.ErrOutOfHostMemory
	default:
		return fmt.Errorf("%s failed with %s", op, resultString(result))
	}
	return fmt.Errorf("%s failed with %s: %w", op, resultString(result), sentinel)
}

const end = "\x00"

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// cString reads a fixed size, zero terminated name field.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}
