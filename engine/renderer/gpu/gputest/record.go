package gputest

import (
	"time"

	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

// Execute records fn into a throwaway command buffer, submits it and waits
// for completion. The pool and fence are destroyed afterwards.
func (d *Device) Execute(fn func(cmd gpu.CommandBuffer)) error {
	pool, err := d.CreateCommandPool()
	if err != nil {
		return err
	}
	defer d.Destroy(pool)
	f, err := d.CreateFence(false)
	if err != nil {
		return err
	}
	defer d.Destroy(f)

	cmd, err := d.AllocateCommandBuffer(pool)
	if err != nil {
		return err
	}
	if err := cmd.Begin(true); err != nil {
		return err
	}
	fn(cmd)
	if err := cmd.End(); err != nil {
		return err
	}
	if err := d.Submit(gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cmd}}, f); err != nil {
		return err
	}
	return d.WaitForFence(f, time.Second)
}
