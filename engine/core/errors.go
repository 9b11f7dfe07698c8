package core

import (
	"errors"
)

var (
	ErrNotInitialized    = errors.New("not initialized")
	ErrAlreadyDestroyed  = errors.New("already destroyed")
	ErrReentrantSubmit   = errors.New("immediate submit called while another is recording")
	ErrFrameNotStarted   = errors.New("frame not started")
	ErrUnknownHandle     = errors.New("unknown handle")
	ErrVulkanUnsupported = errors.New("vulkan is not supported on this system")
)
