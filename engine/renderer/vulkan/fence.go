package vulkan

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// A signaled fence lets the first wait on a frame slot return at once.
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check("vkCreateFence", vk.CreateFence(d.device, &info, nil, &fence)); err != nil {
		return gpu.Null, err
	}
	return gpu.Fence(register(d, d.handles.fences, fence)), nil
}

func (d *Device) WaitForFence(f gpu.Fence, timeout time.Duration) error {
	fence, ok := lookup(d, d.handles.fences, uint64(f))
	if !ok {
		return fmt.Errorf("wait for fence %#x: %w", uint64(f), core.ErrUnknownHandle)
	}
	res := vk.WaitForFences(d.device, 1, []vk.Fence{fence}, vk.True, uint64(timeout.Nanoseconds()))
	if res == vk.Timeout {
		core.LogWarn("fence wait timed out after %s", timeout)
	}
	return check("vkWaitForFences", res)
}

func (d *Device) ResetFence(f gpu.Fence) error {
	fence, ok := lookup(d, d.handles.fences, uint64(f))
	if !ok {
		return fmt.Errorf("reset fence %#x: %w", uint64(f), core.ErrUnknownHandle)
	}
	return check("vkResetFences", vk.ResetFences(d.device, 1, []vk.Fence{fence}))
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if err := check("vkCreateSemaphore", vk.CreateSemaphore(d.device, &info, nil, &sem)); err != nil {
		return gpu.Null, err
	}
	return gpu.Semaphore(register(d, d.handles.semaphores, sem)), nil
}

func (d *Device) semaphore(s gpu.Semaphore) vk.Semaphore {
	sem, _ := lookup(d, d.handles.semaphores, uint64(s))
	return sem
}

func (d *Device) CreateCommandPool() (gpu.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.physical.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	p := &commandPool{}
	if err := check("vkCreateCommandPool", vk.CreateCommandPool(d.device, &info, nil, &p.handle)); err != nil {
		return gpu.Null, err
	}
	return gpu.CommandPool(register(d, d.handles.commandPools, p)), nil
}

func (d *Device) AllocateCommandBuffer(pool gpu.CommandPool) (gpu.CommandBuffer, error) {
	p, ok := lookup(d, d.handles.commandPools, uint64(pool))
	if !ok {
		return nil, fmt.Errorf("allocate command buffer from %#x: %w", uint64(pool), core.ErrUnknownHandle)
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if err := check("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(d.device, &info, handles)); err != nil {
		return nil, err
	}
	cb := &CommandBuffer{dev: d, handle: handles[0]}
	cb.id = register(d, d.handles.commandBuffers, cb)
	p.buffers = append(p.buffers, cb.id)
	return cb, nil
}

func (d *Device) Submit(info gpu.SubmitInfo, f gpu.Fence) error {
	submit := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}
	for _, w := range info.Wait {
		submit.PWaitSemaphores = append(submit.PWaitSemaphores, d.semaphore(w.Semaphore))
		submit.PWaitDstStageMask = append(submit.PWaitDstStageMask, toStage(w.Stage))
	}
	submit.WaitSemaphoreCount = uint32(len(submit.PWaitSemaphores))
	for _, c := range info.Commands {
		cb, ok := c.(*CommandBuffer)
		if !ok {
			return fmt.Errorf("submit of foreign command buffer %T", c)
		}
		submit.PCommandBuffers = append(submit.PCommandBuffers, cb.handle)
	}
	submit.CommandBufferCount = uint32(len(submit.PCommandBuffers))
	for _, s := range info.Signal {
		submit.PSignalSemaphores = append(submit.PSignalSemaphores, d.semaphore(s))
	}
	submit.SignalSemaphoreCount = uint32(len(submit.PSignalSemaphores))

	fence := vk.NullFence
	if f != gpu.Null {
		var ok bool
		if fence, ok = lookup(d, d.handles.fences, uint64(f)); !ok {
			return fmt.Errorf("submit with fence %#x: %w", uint64(f), core.ErrUnknownHandle)
		}
	}
	return d.locks.SafeCall(QueueManagement, func() error {
		return check("vkQueueSubmit", vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, fence))
	})
}
