package upload

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// ImmediateSubmitter runs one-off command recordings and blocks until the
// device has executed them. It owns a single command buffer and fence, so
// it must not be re-entered.
type ImmediateSubmitter struct {
	dev     gpu.Device
	pool    gpu.CommandPool
	cmd     gpu.CommandBuffer
	fence   gpu.Fence
	timeout time.Duration
	busy    bool
}

func NewImmediateSubmitter(dev gpu.Device, timeout time.Duration) (*ImmediateSubmitter, error) {
	s := &ImmediateSubmitter{dev: dev, timeout: timeout}
	var err error
	if s.pool, err = dev.CreateCommandPool(); err != nil {
		return nil, fmt.Errorf("create immediate command pool: %w", err)
	}
	if s.cmd, err = dev.AllocateCommandBuffer(s.pool); err != nil {
		dev.Destroy(s.pool)
		return nil, fmt.Errorf("allocate immediate command buffer: %w", err)
	}
	if s.fence, err = dev.CreateFence(true); err != nil {
		dev.Destroy(s.pool)
		return nil, fmt.Errorf("create immediate fence: %w", err)
	}
	return s, nil
}

// Submit records fn, submits it and waits for the fence.
func (s *ImmediateSubmitter) Submit(fn func(cmd gpu.CommandBuffer)) error {
	if s.busy {
		return core.ErrReentrantSubmit
	}
	s.busy = true
	defer func() { s.busy = false }()

	if err := s.dev.ResetFence(s.fence); err != nil {
		return fmt.Errorf("reset immediate fence: %w", err)
	}
	if err := s.cmd.Reset(); err != nil {
		return fmt.Errorf("reset immediate command buffer: %w", err)
	}
	if err := s.cmd.Begin(true); err != nil {
		return fmt.Errorf("begin immediate command buffer: %w", err)
	}
	fn(s.cmd)
	if err := s.cmd.End(); err != nil {
		return fmt.Errorf("end immediate command buffer: %w", err)
	}
	if err := s.dev.Submit(gpu.SubmitInfo{Commands: []gpu.CommandBuffer{s.cmd}}, s.fence); err != nil {
		return fmt.Errorf("immediate submit: %w", err)
	}
	if err := s.dev.WaitForFence(s.fence, s.timeout); err != nil {
		return fmt.Errorf("wait for immediate submit: %w", err)
	}
	return nil
}

func (s *ImmediateSubmitter) Destroy() {
	s.dev.Destroy(s.fence, s.pool)
	s.fence = gpu.Null
	s.pool = gpu.Null
}

func (s *ImmediateSubmitter) Release() error {
	s.Destroy()
	return nil
}
