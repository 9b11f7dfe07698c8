package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

func toFormat(f gpu.Format) vk.Format {
	switch f {
	case gpu.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatR8G8B8A8Srgb:
		return vk.FormatR8g8b8a8Srgb
	case gpu.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatR16G16B16A16Sfloat:
		return vk.FormatR16g16b16a16Sfloat
	case gpu.FormatR32G32B32A32Sfloat:
		return vk.FormatR32g32b32a32Sfloat
	case gpu.FormatD32Sfloat:
		return vk.FormatD32Sfloat
	}
	return vk.FormatUndefined
}

func fromFormat(f vk.Format) gpu.Format {
	switch f {
	case vk.FormatR8g8b8a8Unorm:
		return gpu.FormatR8G8B8A8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return gpu.FormatR8G8B8A8Srgb
	case vk.FormatB8g8r8a8Unorm:
		return gpu.FormatB8G8R8A8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return gpu.FormatB8G8R8A8Srgb
	case vk.FormatR16g16b16a16Sfloat:
		return gpu.FormatR16G16B16A16Sfloat
	case vk.FormatR32g32b32a32Sfloat:
		return gpu.FormatR32G32B32A32Sfloat
	case vk.FormatD32Sfloat:
		return gpu.FormatD32Sfloat
	}
	return gpu.FormatUndefined
}

func toLayout(l gpu.ImageLayout) vk.ImageLayout {
	switch l {
	case gpu.LayoutGeneral:
		return vk.ImageLayoutGeneral
	case gpu.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case gpu.LayoutDepthAttachment:
		return vk.ImageLayoutDepthAttachmentOptimal
	case gpu.LayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case gpu.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case gpu.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case gpu.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toAspect(a gpu.ImageAspect) vk.ImageAspectFlags {
	var flags vk.ImageAspectFlagBits
	if a&gpu.AspectColor != 0 {
		flags |= vk.ImageAspectColorBit
	}
	if a&gpu.AspectDepth != 0 {
		flags |= vk.ImageAspectDepthBit
	}
	return vk.ImageAspectFlags(flags)
}

func toImageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&gpu.ImageUsageTransferSrc != 0 {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if u&gpu.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&gpu.ImageUsageStorage != 0 {
		flags |= vk.ImageUsageStorageBit
	}
	if u&gpu.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.ImageUsageDepthStencilAttachment != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func toBufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&gpu.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if u&gpu.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	if u&gpu.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if u&gpu.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferUsageShaderDeviceAddress != 0 {
		flags |= vk.BufferUsageShaderDeviceAddressBit
	}
	return vk.BufferUsageFlags(flags)
}

// memoryFlags returns the required and preferred property flags for a
// memory usage.
func memoryFlags(m gpu.MemoryUsage) (required, preferred vk.MemoryPropertyFlagBits) {
	switch m {
	case gpu.MemoryCPUOnly:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit, 0
	case gpu.MemoryCPUToGPU:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit, vk.MemoryPropertyDeviceLocalBit
	case gpu.MemoryGPUToCPU:
		return vk.MemoryPropertyHostVisibleBit, vk.MemoryPropertyHostCachedBit
	}
	return vk.MemoryPropertyDeviceLocalBit, 0
}

func toStage(s gpu.PipelineStage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlagBits
	if s&gpu.StageTopOfPipe != 0 {
		flags |= vk.PipelineStageTopOfPipeBit
	}
	if s&gpu.StageVertexShader != 0 {
		flags |= vk.PipelineStageVertexShaderBit
	}
	if s&gpu.StageFragmentShader != 0 {
		flags |= vk.PipelineStageFragmentShaderBit
	}
	if s&gpu.StageColorAttachmentOutput != 0 {
		flags |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&gpu.StageComputeShader != 0 {
		flags |= vk.PipelineStageComputeShaderBit
	}
	if s&gpu.StageTransfer != 0 {
		flags |= vk.PipelineStageTransferBit
	}
	if s&gpu.StageBottomOfPipe != 0 {
		flags |= vk.PipelineStageBottomOfPipeBit
	}
	if s&gpu.StageAllCommands != 0 {
		flags |= vk.PipelineStageAllCommandsBit
	}
	return vk.PipelineStageFlags(flags)
}

func toAccess(a gpu.Access) vk.AccessFlags {
	var flags vk.AccessFlagBits
	if a&gpu.AccessShaderRead != 0 {
		flags |= vk.AccessShaderReadBit
	}
	if a&gpu.AccessShaderWrite != 0 {
		flags |= vk.AccessShaderWriteBit
	}
	if a&gpu.AccessTransferRead != 0 {
		flags |= vk.AccessTransferReadBit
	}
	if a&gpu.AccessTransferWrite != 0 {
		flags |= vk.AccessTransferWriteBit
	}
	if a&gpu.AccessMemoryRead != 0 {
		flags |= vk.AccessMemoryReadBit
	}
	if a&gpu.AccessMemoryWrite != 0 {
		flags |= vk.AccessMemoryWriteBit
	}
	return vk.AccessFlags(flags)
}

func toDescriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorSampler:
		return vk.DescriptorTypeSampler
	case gpu.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	case gpu.DescriptorSampledImage:
		return vk.DescriptorTypeSampledImage
	case gpu.DescriptorStorageImage:
		return vk.DescriptorTypeStorageImage
	case gpu.DescriptorUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	}
	return vk.DescriptorTypeStorageBuffer
}

func toShaderStage(s gpu.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&gpu.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&gpu.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if s&gpu.ShaderStageCompute != 0 {
		flags |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(flags)
}

func toFilter(f gpu.Filter) vk.Filter {
	if f == gpu.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func toBindPoint(b gpu.PipelineBindPoint) vk.PipelineBindPoint {
	if b == gpu.BindPointCompute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}

func toIndexType(t gpu.IndexType) vk.IndexType {
	if t == gpu.IndexTypeUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func toPresentMode(m gpu.PresentMode) vk.PresentMode {
	switch m {
	case gpu.PresentModeMailbox:
		return vk.PresentModeMailbox
	case gpu.PresentModeImmediate:
		return vk.PresentModeImmediate
	}
	return vk.PresentModeFifo
}

func toLoadOp(op gpu.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gpu.LoadOpClear:
		return vk.AttachmentLoadOpClear
	case gpu.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpLoad
}

func toStoreOp(op gpu.StoreOp) vk.AttachmentStoreOp {
	if op == gpu.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func toCompareOp(op gpu.CompareOp) vk.CompareOp {
	switch op {
	case gpu.CompareLessOrEqual:
		return vk.CompareOpLessOrEqual
	case gpu.CompareGreaterOrEqual:
		return vk.CompareOpGreaterOrEqual
	case gpu.CompareAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpNever
}

func toCullMode(c gpu.CullMode) vk.CullModeFlags {
	switch c {
	case gpu.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case gpu.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func toExtent2D(e gpu.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func toExtent3D(e gpu.Extent3D) vk.Extent3D {
	return vk.Extent3D{Width: e.Width, Height: e.Height, Depth: e.Depth}
}

func toOffset3D(o gpu.Offset3D) vk.Offset3D {
	return vk.Offset3D{X: o.X, Y: o.Y, Z: o.Z}
}

func toRect2D(r gpu.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: toExtent2D(r.Extent),
	}
}

func toSubresourceRange(r gpu.ImageSubresourceRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     toAspect(r.Aspect),
		BaseMipLevel:   r.BaseMipLevel,
		LevelCount:     r.LevelCount,
		BaseArrayLayer: r.BaseArrayLayer,
		LayerCount:     r.LayerCount,
	}
}

func toSubresourceLayers(l gpu.ImageSubresourceLayers) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     toAspect(l.Aspect),
		MipLevel:       l.MipLevel,
		BaseArrayLayer: l.BaseArrayLayer,
		LayerCount:     max(l.LayerCount, 1),
	}
}
