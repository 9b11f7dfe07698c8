package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

type commandBufferState uint8

const (
	stateReady commandBufferState = iota
	stateRecording
	stateRecordingEnded
)

// CommandBuffer is a primary command buffer. It is freed with its pool.
type CommandBuffer struct {
	dev    *Device
	id     uint64
	handle vk.CommandBuffer
	state  commandBufferState
}

var _ gpu.CommandBuffer = (*CommandBuffer)(nil)

func (c *CommandBuffer) Handle() uint64 { return c.id }

func (c *CommandBuffer) Reset() error {
	if err := check("vkResetCommandBuffer", vk.ResetCommandBuffer(c.handle, 0)); err != nil {
		return err
	}
	c.state = stateReady
	return nil
}

func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := check("vkBeginCommandBuffer", vk.BeginCommandBuffer(c.handle, &info)); err != nil {
		return err
	}
	c.state = stateRecording
	return nil
}

func (c *CommandBuffer) End() error {
	if err := check("vkEndCommandBuffer", vk.EndCommandBuffer(c.handle)); err != nil {
		return err
	}
	c.state = stateRecordingEnded
	return nil
}

func (c *CommandBuffer) buffer(h gpu.Buffer) vk.Buffer {
	b, ok := lookup(c.dev, c.dev.handles.buffers, uint64(h))
	if !ok {
		return vk.NullBuffer
	}
	return b.handle
}

func (c *CommandBuffer) image(h gpu.Image) vk.Image {
	img, ok := lookup(c.dev, c.dev.handles.images, uint64(h))
	if !ok {
		return vk.NullImage
	}
	return img.handle
}

func (c *CommandBuffer) view(h gpu.ImageView) vk.ImageView {
	v, _ := lookup(c.dev, c.dev.handles.views, uint64(h))
	return v
}

func (c *CommandBuffer) pipelineLayout(h gpu.PipelineLayout) vk.PipelineLayout {
	l, _ := lookup(c.dev, c.dev.handles.pipeLayouts, uint64(h))
	return l
}

func (c *CommandBuffer) PipelineBarrier(src, dst gpu.PipelineStage, barriers ...gpu.ImageBarrier) {
	vkBarriers := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, b := range barriers {
		vkBarriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       toAccess(b.SrcAccess),
			DstAccessMask:       toAccess(b.DstAccess),
			OldLayout:           toLayout(b.OldLayout),
			NewLayout:           toLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               c.image(b.Image),
			SubresourceRange:    toSubresourceRange(b.Range),
		}
	}
	vk.CmdPipelineBarrier(c.handle, toStage(src), toStage(dst), 0, 0, nil, 0, nil, uint32(len(vkBarriers)), vkBarriers)
}

func (c *CommandBuffer) BlitImage(src gpu.Image, srcLayout gpu.ImageLayout, dst gpu.Image, dstLayout gpu.ImageLayout, regions []gpu.ImageBlit, filter gpu.Filter) {
	blits := make([]vk.ImageBlit, len(regions))
	for i, r := range regions {
		blits[i] = vk.ImageBlit{
			SrcSubresource: toSubresourceLayers(r.SrcSubresource),
			SrcOffsets:     [2]vk.Offset3D{toOffset3D(r.SrcOffsets[0]), toOffset3D(r.SrcOffsets[1])},
			DstSubresource: toSubresourceLayers(r.DstSubresource),
			DstOffsets:     [2]vk.Offset3D{toOffset3D(r.DstOffsets[0]), toOffset3D(r.DstOffsets[1])},
		}
	}
	vk.CmdBlitImage(c.handle, c.image(src), toLayout(srcLayout), c.image(dst), toLayout(dstLayout), uint32(len(blits)), blits, toFilter(filter))
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, regions ...gpu.BufferCopy) {
	copies := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(c.handle, c.buffer(src), c.buffer(dst), uint32(len(copies)), copies)
}

func toBufferImageCopies(regions []gpu.BufferImageCopy) []vk.BufferImageCopy {
	copies := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferImageCopy{
			BufferOffset:     vk.DeviceSize(r.BufferOffset),
			ImageSubresource: toSubresourceLayers(r.ImageSubresource),
			ImageOffset:      toOffset3D(r.ImageOffset),
			ImageExtent:      toExtent3D(r.ImageExtent),
		}
	}
	return copies
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, regions ...gpu.BufferImageCopy) {
	copies := toBufferImageCopies(regions)
	vk.CmdCopyBufferToImage(c.handle, c.buffer(src), c.image(dst), toLayout(layout), uint32(len(copies)), copies)
}

func (c *CommandBuffer) CopyImageToBuffer(src gpu.Image, layout gpu.ImageLayout, dst gpu.Buffer, regions ...gpu.BufferImageCopy) {
	copies := toBufferImageCopies(regions)
	vk.CmdCopyImageToBuffer(c.handle, c.image(src), toLayout(layout), c.buffer(dst), uint32(len(copies)), copies)
}

func (c *CommandBuffer) BindPipeline(bind gpu.PipelineBindPoint, p gpu.Pipeline) {
	pipeline, ok := lookup(c.dev, c.dev.handles.pipelines, uint64(p))
	if !ok {
		return
	}
	vk.CmdBindPipeline(c.handle, toBindPoint(bind), pipeline)
}

func (c *CommandBuffer) BindDescriptorSets(bind gpu.PipelineBindPoint, layout gpu.PipelineLayout, first uint32, sets ...gpu.DescriptorSet) {
	vkSets := make([]vk.DescriptorSet, 0, len(sets))
	for _, s := range sets {
		set, ok := lookup(c.dev, c.dev.handles.descSets, uint64(s))
		if !ok {
			return
		}
		vkSets = append(vkSets, set)
	}
	vk.CmdBindDescriptorSets(c.handle, toBindPoint(bind), c.pipelineLayout(layout), first, uint32(len(vkSets)), vkSets, 0, nil)
}

func (c *CommandBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.handle, c.pipelineLayout(layout), toShaderStage(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(c.handle, x, y, z)
}

func (c *CommandBuffer) attachment(a gpu.RenderingAttachment, depth bool) vk.RenderingAttachmentInfo {
	info := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   c.view(a.View),
		ImageLayout: toLayout(a.Layout),
		LoadOp:      toLoadOp(a.LoadOp),
		StoreOp:     toStoreOp(a.StoreOp),
	}
	if depth {
		info.ClearValue = vk.NewClearDepthStencil(a.ClearDepth, 0)
	} else {
		info.ClearValue = vk.NewClearValue(a.ClearColor[:])
	}
	return info
}

func (c *CommandBuffer) BeginRendering(info gpu.RenderingInfo) {
	if c.state != stateRecording {
		core.LogError("begin rendering on command buffer %#x outside recording", c.id)
		return
	}
	colors := make([]vk.RenderingAttachmentInfo, len(info.Color))
	for i, a := range info.Color {
		colors[i] = c.attachment(a, false)
	}
	renderInfo := vk.RenderingInfo{
		SType:                vk.StructureTypeRenderingInfo,
		RenderArea:           toRect2D(info.Area),
		LayerCount:           1,
		ColorAttachmentCount: uint32(len(colors)),
		PColorAttachments:    colors,
	}
	if info.Depth != nil {
		renderInfo.PDepthAttachment = []vk.RenderingAttachmentInfo{c.attachment(*info.Depth, true)}
	}
	c.dev.procs.beginRendering(c.handle, &renderInfo)
}

func (c *CommandBuffer) EndRendering() {
	c.dev.procs.endRendering(c.handle)
}

func (c *CommandBuffer) SetViewport(v gpu.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}})
}

func (c *CommandBuffer) SetScissor(r gpu.Rect2D) {
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{toRect2D(r)})
}

func (c *CommandBuffer) BindIndexBuffer(b gpu.Buffer, offset uint64, t gpu.IndexType) {
	vk.CmdBindIndexBuffer(c.handle, c.buffer(b), vk.DeviceSize(offset), toIndexType(t))
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
