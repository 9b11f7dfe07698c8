package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/descriptors"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/resources"
	"github.com/spaghettifunk/lantern/engine/renderer/swapchain"
)

// FrameOverlap is the number of frames the CPU may record ahead of the GPU.
const FrameOverlap = 2

// Context holds everything one frame slot records and submits with.
type Context struct {
	CommandPool      gpu.CommandPool
	Commands         gpu.CommandBuffer
	RenderFence      gpu.Fence
	AcquireSemaphore gpu.Semaphore
	Descriptors      descriptors.GrowableAllocator
	// Deletion is flushed the next time this slot begins, once its fence
	// proves the GPU is done with the previous use.
	Deletion *resources.DeletionQueue
}

type Options struct {
	Timeout          time.Duration
	DescriptorSets   uint32
	DescriptorRatios []descriptors.PoolSizeRatio
}

func DefaultOptions() Options {
	return Options{
		Timeout:        time.Second,
		DescriptorSets: 1000,
		DescriptorRatios: []descriptors.PoolSizeRatio{
			{Type: gpu.DescriptorStorageImage, Ratio: 3},
			{Type: gpu.DescriptorStorageBuffer, Ratio: 3},
			{Type: gpu.DescriptorUniformBuffer, Ratio: 3},
			{Type: gpu.DescriptorCombinedImageSampler, Ratio: 4},
		},
	}
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseBegun
	phaseRecording
)

// Controller cycles the frame slots through wait, acquire, record, submit
// and present.
type Controller struct {
	dev       gpu.Device
	swapchain *swapchain.Manager
	opts      Options

	frames      [FrameOverlap]*Context
	frameNumber uint64
	imageIndex  uint32
	phase       phase
}

func NewController(dev gpu.Device, sc *swapchain.Manager, opts Options) (*Controller, error) {
	c := &Controller{dev: dev, swapchain: sc, opts: opts}
	for i := range c.frames {
		ctx, err := c.newContext()
		if err != nil {
			c.Destroy()
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		c.frames[i] = ctx
	}
	return c, nil
}

func (c *Controller) newContext() (*Context, error) {
	ctx := &Context{Deletion: resources.NewDeletionQueue()}
	var err error
	if ctx.CommandPool, err = c.dev.CreateCommandPool(); err != nil {
		return nil, err
	}
	if ctx.Commands, err = c.dev.AllocateCommandBuffer(ctx.CommandPool); err != nil {
		c.dev.Destroy(ctx.CommandPool)
		return nil, err
	}
	// Signaled so the first wait on this slot returns at once.
	if ctx.RenderFence, err = c.dev.CreateFence(true); err != nil {
		c.dev.Destroy(ctx.CommandPool)
		return nil, err
	}
	if ctx.AcquireSemaphore, err = c.dev.CreateSemaphore(); err != nil {
		c.dev.Destroy(ctx.RenderFence, ctx.CommandPool)
		return nil, err
	}
	if err = ctx.Descriptors.Init(c.dev, c.opts.DescriptorSets, c.opts.DescriptorRatios); err != nil {
		c.dev.Destroy(ctx.AcquireSemaphore, ctx.RenderFence, ctx.CommandPool)
		return nil, err
	}
	return ctx, nil
}

// Current is the slot of the frame being built.
func (c *Controller) Current() *Context {
	return c.frames[c.frameNumber%FrameOverlap]
}

func (c *Controller) FrameNumber() uint64 {
	return c.frameNumber
}

// ImageIndex is the swapchain image acquired for the current frame.
func (c *Controller) ImageIndex() uint32 {
	return c.imageIndex
}

// BeginFrame waits until the GPU has retired the previous use of the
// current slot, then releases that use's transient resources.
func (c *Controller) BeginFrame() error {
	ctx := c.Current()
	if err := c.dev.WaitForFence(ctx.RenderFence, c.opts.Timeout); err != nil {
		return fmt.Errorf("wait for frame %d fence: %w", c.frameNumber, err)
	}
	if err := ctx.Deletion.Flush(); err != nil {
		return fmt.Errorf("flush frame deletion queue: %w", err)
	}
	if err := ctx.Descriptors.ClearPools(); err != nil {
		return fmt.Errorf("clear frame descriptor pools: %w", err)
	}
	c.phase = phaseBegun
	return nil
}

// AcquireImage gets the swapchain image to draw into and opens the slot's
// command buffer. It reports false when the swapchain is out of date: the
// frame is dropped, a rebuild is pending and the frame number stays put.
// The slot fence is only reset once an image is in hand, so a dropped
// frame leaves it signaled for the next attempt.
func (c *Controller) AcquireImage() (uint32, bool, error) {
	if c.phase != phaseBegun {
		return 0, false, core.ErrFrameNotStarted
	}
	ctx := c.Current()
	index, err := c.swapchain.AcquireNextImage(ctx.AcquireSemaphore)
	if errors.Is(err, gpu.ErrOutOfDate) {
		core.LogDebug("frame %d dropped: swapchain out of date", c.frameNumber)
		c.phase = phaseIdle
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	if err := c.dev.ResetFence(ctx.RenderFence); err != nil {
		return 0, false, fmt.Errorf("reset frame fence: %w", err)
	}
	if err := ctx.Commands.Reset(); err != nil {
		return 0, false, fmt.Errorf("reset frame command buffer: %w", err)
	}
	if err := ctx.Commands.Begin(true); err != nil {
		return 0, false, fmt.Errorf("begin frame command buffer: %w", err)
	}
	c.imageIndex = index
	c.phase = phaseRecording
	return index, true, nil
}

// Commands is the command buffer open for the current frame.
func (c *Controller) Commands() gpu.CommandBuffer {
	return c.Current().Commands
}

// SubmitAndPresent closes the command buffer and submits it. The GPU waits
// on the acquire semaphore, then signals the present semaphore of the
// acquired image and the slot fence. Presentation waits on the former.
func (c *Controller) SubmitAndPresent() error {
	if c.phase != phaseRecording {
		return core.ErrFrameNotStarted
	}
	ctx := c.Current()
	if err := ctx.Commands.End(); err != nil {
		return fmt.Errorf("end frame command buffer: %w", err)
	}
	submit := gpu.SubmitInfo{
		Wait: []gpu.SemaphoreWait{{
			Semaphore: ctx.AcquireSemaphore,
			Stage:     gpu.StageColorAttachmentOutput,
		}},
		Commands: []gpu.CommandBuffer{ctx.Commands},
		Signal:   []gpu.Semaphore{c.swapchain.PresentSemaphore(c.imageIndex)},
	}
	if err := c.dev.Submit(submit, ctx.RenderFence); err != nil {
		return fmt.Errorf("submit frame %d: %w", c.frameNumber, err)
	}
	if err := c.swapchain.Present(c.imageIndex); err != nil {
		return err
	}
	c.frameNumber++
	c.phase = phaseIdle
	return nil
}

// Destroy releases every slot. The device must be idle.
func (c *Controller) Destroy() {
	for i, ctx := range c.frames {
		if ctx == nil {
			continue
		}
		if err := ctx.Deletion.Flush(); err != nil {
			core.LogError("frame %d deletion queue: %s", i, err)
		}
		ctx.Descriptors.DestroyPools()
		c.dev.Destroy(ctx.AcquireSemaphore, ctx.RenderFence, ctx.CommandPool)
		c.frames[i] = nil
	}
}

func (c *Controller) Release() error {
	c.Destroy()
	return nil
}
