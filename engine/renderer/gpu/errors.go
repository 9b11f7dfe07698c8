package gpu

import "errors"

var (
	ErrOutOfDate          = errors.New("swapchain out of date")
	ErrTimeout            = errors.New("timeout waiting on device")
	ErrOutOfPoolMemory    = errors.New("descriptor pool out of memory")
	ErrFragmentedPool     = errors.New("descriptor pool fragmented")
	ErrDeviceLost         = errors.New("device lost")
	ErrOutOfDeviceMemory  = errors.New("out of device memory")
	ErrOutOfHostMemory    = errors.New("out of host memory")
	ErrNoSuitableMemory   = errors.New("no suitable memory type")
	ErrUnsupportedFeature = errors.New("unsupported device feature")
)

// IsTransient reports whether err only asks for a swapchain rebuild.
func IsTransient(err error) bool {
	return errors.Is(err, ErrOutOfDate)
}

// IsPoolExhausted reports whether a descriptor allocation may succeed
// from a fresh pool.
func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrOutOfPoolMemory) || errors.Is(err, ErrFragmentedPool)
}
