// Package gpu is the narrow device surface the renderer records against.
// The Vulkan backend implements it for real hardware and gputest implements
// it in memory.
package gpu

import "time"

// Device creates device objects and submits work to the single graphics
// queue. Every Create* result must eventually be passed to Destroy.
type Device interface {
	CreateBuffer(desc BufferDesc) (Buffer, error)
	// MapBuffer returns the persistently mapped contents of a host visible
	// buffer. The slice stays valid until the buffer is destroyed.
	MapBuffer(b Buffer) ([]byte, error)
	BufferDeviceAddress(b Buffer) uint64
	CreateImage(desc ImageDesc) (Image, error)
	CreateImageView(desc ImageViewDesc) (ImageView, error)
	CreateSampler(desc SamplerDesc) (Sampler, error)
	CreateShaderModule(code []byte) (ShaderModule, error)

	CreateCommandPool() (CommandPool, error)
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, error)
	CreateFence(signaled bool) (Fence, error)
	WaitForFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error
	CreateSemaphore() (Semaphore, error)
	Submit(info SubmitInfo, fence Fence) error
	WaitIdle() error

	SurfaceCapabilities() (SurfaceCapabilities, error)
	CreateSwapchain(desc SwapchainDesc) (*SwapchainImages, error)
	AcquireNextImage(sc Swapchain, sem Semaphore, timeout time.Duration) (index uint32, suboptimal bool, err error)
	Present(info PresentInfo) (suboptimal bool, err error)

	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	CreateDescriptorPool(desc DescriptorPoolDesc) (DescriptorPool, error)
	ResetDescriptorPool(p DescriptorPool) error
	AllocateDescriptorSet(p DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipelineLayout(desc PipelineLayoutDesc) (PipelineLayout, error)
	CreateComputePipeline(desc ComputePipelineDesc) (Pipeline, error)
	CreateGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error)

	// Destroy releases objects in argument order. Null handles are skipped.
	Destroy(objs ...Object)
}

// CommandBuffer records commands for a later Submit. Buffers are owned by
// their pool and released with it.
type CommandBuffer interface {
	Handle() uint64
	Reset() error
	Begin(oneTimeSubmit bool) error
	End() error

	PipelineBarrier(src, dst PipelineStage, barriers ...ImageBarrier)
	BlitImage(src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, regions []ImageBlit, filter Filter)
	CopyBuffer(src, dst Buffer, regions ...BufferCopy)
	CopyBufferToImage(src Buffer, dst Image, layout ImageLayout, regions ...BufferImageCopy)
	CopyImageToBuffer(src Image, layout ImageLayout, dst Buffer, regions ...BufferImageCopy)

	BindPipeline(bind PipelineBindPoint, p Pipeline)
	BindDescriptorSets(bind PipelineBindPoint, layout PipelineLayout, first uint32, sets ...DescriptorSet)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	Dispatch(x, y, z uint32)

	BeginRendering(info RenderingInfo)
	EndRendering()
	SetViewport(v Viewport)
	SetScissor(r Rect2D)
	BindIndexBuffer(b Buffer, offset uint64, t IndexType)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}
