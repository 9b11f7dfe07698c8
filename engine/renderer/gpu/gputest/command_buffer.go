package gputest

import (
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

type commandBufferState uint8

const (
	stateInitial commandBufferState = iota
	stateRecording
	stateExecutable
)

// CommandBuffer records commands as closures over the device and runs them
// when submitted.
type CommandBuffer struct {
	dev     *Device
	id      uint64
	state   commandBufferState
	ops     []func(*Device)
	fence   gpu.Fence
	retired bool
}

func (c *CommandBuffer) Handle() uint64 { return c.id }

func (c *CommandBuffer) Reset() error {
	if !c.retired {
		c.dev.violate("reset of command buffer %d still in flight", c.id)
	}
	c.ops = c.ops[:0]
	c.state = stateInitial
	c.dev.record(Event{Kind: EventCommandReset, Handle: c.id})
	return nil
}

func (c *CommandBuffer) Begin(bool) error {
	if c.state == stateRecording {
		c.dev.violate("begin of command buffer %d while recording", c.id)
	}
	if !c.retired {
		c.dev.violate("begin of command buffer %d still in flight", c.id)
	}
	c.ops = c.ops[:0]
	c.state = stateRecording
	c.dev.record(Event{Kind: EventCommandBegin, Handle: c.id})
	return nil
}

func (c *CommandBuffer) End() error {
	if c.state != stateRecording {
		c.dev.violate("end of command buffer %d outside recording", c.id)
	}
	c.state = stateExecutable
	return nil
}

func (c *CommandBuffer) recording(what string) bool {
	if c.state != stateRecording {
		c.dev.violate("%s recorded on command buffer %d outside recording", what, c.id)
		return false
	}
	return true
}

func (c *CommandBuffer) PipelineBarrier(src, dst gpu.PipelineStage, barriers ...gpu.ImageBarrier) {
	if !c.recording("barrier") {
		return
	}
	bs := append([]gpu.ImageBarrier(nil), barriers...)
	c.dev.record(Event{Kind: EventBarrier, Command: c.id, Barriers: bs})
	c.ops = append(c.ops, func(d *Device) {
		for _, b := range bs {
			d.transition(b)
		}
	})
}

func (c *CommandBuffer) BlitImage(src gpu.Image, srcLayout gpu.ImageLayout, dst gpu.Image, dstLayout gpu.ImageLayout, regions []gpu.ImageBlit, filter gpu.Filter) {
	if !c.recording("blit") {
		return
	}
	rs := append([]gpu.ImageBlit(nil), regions...)
	c.dev.record(Event{Kind: EventBlit, Command: c.id, Src: uint64(src), Dst: uint64(dst), Blits: rs})
	c.ops = append(c.ops, func(d *Device) {
		for _, r := range rs {
			d.expectLayout(src, r.SrcSubresource, srcLayout)
			d.expectLayout(dst, r.DstSubresource, dstLayout)
		}
	})
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, regions ...gpu.BufferCopy) {
	if !c.recording("copy") {
		return
	}
	rs := append([]gpu.BufferCopy(nil), regions...)
	c.dev.record(Event{Kind: EventCopy, Command: c.id, Src: uint64(src), Dst: uint64(dst)})
	c.ops = append(c.ops, func(d *Device) {
		s, okS := d.buffers[src]
		t, okT := d.buffers[dst]
		if !okS || !okT {
			d.violate("buffer copy %d -> %d on destroyed buffer", src, dst)
			return
		}
		for _, r := range rs {
			if r.SrcOffset+r.Size > uint64(len(s.data)) || r.DstOffset+r.Size > uint64(len(t.data)) {
				d.violate("buffer copy %d -> %d out of range", src, dst)
				continue
			}
			copy(t.data[r.DstOffset:r.DstOffset+r.Size], s.data[r.SrcOffset:r.SrcOffset+r.Size])
		}
	})
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, regions ...gpu.BufferImageCopy) {
	if !c.recording("copy") {
		return
	}
	rs := append([]gpu.BufferImageCopy(nil), regions...)
	c.dev.record(Event{Kind: EventCopy, Command: c.id, Src: uint64(src), Dst: uint64(dst)})
	c.ops = append(c.ops, func(d *Device) {
		for _, r := range rs {
			d.expectLayout(dst, r.ImageSubresource, layout)
			d.copyImage(src, dst, r, true)
		}
	})
}

func (c *CommandBuffer) CopyImageToBuffer(src gpu.Image, layout gpu.ImageLayout, dst gpu.Buffer, regions ...gpu.BufferImageCopy) {
	if !c.recording("copy") {
		return
	}
	rs := append([]gpu.BufferImageCopy(nil), regions...)
	c.dev.record(Event{Kind: EventCopy, Command: c.id, Src: uint64(src), Dst: uint64(dst)})
	c.ops = append(c.ops, func(d *Device) {
		for _, r := range rs {
			d.expectLayout(src, r.ImageSubresource, layout)
			d.copyImage(dst, src, r, false)
		}
	})
}

func (c *CommandBuffer) BindPipeline(bind gpu.PipelineBindPoint, p gpu.Pipeline) {
	if c.recording("bind pipeline") {
		c.dev.record(Event{Kind: EventBindPipeline, Command: c.id, Handle: uint64(p)})
	}
}

func (c *CommandBuffer) BindDescriptorSets(bind gpu.PipelineBindPoint, layout gpu.PipelineLayout, first uint32, sets ...gpu.DescriptorSet) {
	if !c.recording("bind descriptor sets") {
		return
	}
	for _, s := range sets {
		if _, ok := c.dev.descSets[s]; !ok {
			c.dev.violate("bind of invalid descriptor set %d", s)
		}
	}
	c.dev.record(Event{Kind: EventBindDescriptorSets, Command: c.id, Handle: uint64(layout), Count: uint32(len(sets))})
}

func (c *CommandBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	if c.recording("push constants") {
		c.dev.record(Event{Kind: EventPushConstants, Command: c.id, Handle: uint64(layout), Data: append([]byte(nil), data...)})
	}
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	if c.recording("dispatch") {
		c.dev.record(Event{Kind: EventDispatch, Command: c.id, Groups: [3]uint32{x, y, z}})
	}
}

func (c *CommandBuffer) BeginRendering(info gpu.RenderingInfo) {
	if !c.recording("begin rendering") {
		return
	}
	c.dev.record(Event{Kind: EventBeginRendering, Command: c.id, Count: uint32(len(info.Color))})
}

func (c *CommandBuffer) EndRendering() {
	if c.recording("end rendering") {
		c.dev.record(Event{Kind: EventEndRendering, Command: c.id})
	}
}

func (c *CommandBuffer) SetViewport(gpu.Viewport) { c.recording("viewport") }
func (c *CommandBuffer) SetScissor(gpu.Rect2D)    { c.recording("scissor") }

func (c *CommandBuffer) BindIndexBuffer(b gpu.Buffer, offset uint64, t gpu.IndexType) {
	if !c.recording("bind index buffer") {
		return
	}
	if _, ok := c.dev.buffers[b]; !ok {
		c.dev.violate("bind of destroyed index buffer %d", b)
	}
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if c.recording("draw") {
		c.dev.record(Event{Kind: EventDraw, Command: c.id, Count: indexCount})
	}
}

func levels(n, base, count uint32) uint32 {
	if count == gpu.RemainingMipLevels {
		return n - base
	}
	return count
}

func (d *Device) transition(b gpu.ImageBarrier) {
	img, ok := d.images[b.Image]
	if !ok {
		d.violate("barrier on destroyed image %d", b.Image)
		return
	}
	mips := levels(img.desc.MipLevels, b.Range.BaseMipLevel, b.Range.LevelCount)
	layers := levels(img.desc.ArrayLayers, b.Range.BaseArrayLayer, b.Range.LayerCount)
	for l := b.Range.BaseArrayLayer; l < b.Range.BaseArrayLayer+layers; l++ {
		for m := b.Range.BaseMipLevel; m < b.Range.BaseMipLevel+mips; m++ {
			key := subresource{layer: l, mip: m}
			if cur := img.layouts[key]; b.OldLayout != gpu.LayoutUndefined && cur != b.OldLayout {
				d.violate("image %d layer %d mip %d: barrier from %s but image is %s", b.Image, l, m, b.OldLayout, cur)
			}
			img.layouts[key] = b.NewLayout
		}
	}
}

func (d *Device) expectLayout(h gpu.Image, sub gpu.ImageSubresourceLayers, want gpu.ImageLayout) {
	img, ok := d.images[h]
	if !ok {
		d.violate("use of destroyed image %d", h)
		return
	}
	for l := sub.BaseArrayLayer; l < sub.BaseArrayLayer+max(sub.LayerCount, 1); l++ {
		if got := img.layouts[subresource{layer: l, mip: sub.MipLevel}]; got != want {
			d.violate("image %d layer %d mip %d used as %s but is %s", h, l, sub.MipLevel, want, got)
		}
	}
}

// copyImage moves a region between a buffer and an image level. toImage
// selects the direction.
func (d *Device) copyImage(bh gpu.Buffer, ih gpu.Image, r gpu.BufferImageCopy, toImage bool) {
	b, okB := d.buffers[bh]
	img, okI := d.images[ih]
	if !okB || !okI {
		d.violate("image copy between destroyed objects %d and %d", bh, ih)
		return
	}
	bpp := uint64(img.desc.Format.BytesPerPixel())
	w := uint64(max(img.desc.Extent.Width>>r.ImageSubresource.MipLevel, 1))
	h := uint64(max(img.desc.Extent.Height>>r.ImageSubresource.MipLevel, 1))
	rowBytes := uint64(r.ImageExtent.Width) * bpp
	off := r.BufferOffset
	for l := r.ImageSubresource.BaseArrayLayer; l < r.ImageSubresource.BaseArrayLayer+max(r.ImageSubresource.LayerCount, 1); l++ {
		key := subresource{layer: l, mip: r.ImageSubresource.MipLevel}
		level, ok := img.data[key]
		if !ok {
			level = make([]byte, w*h*bpp)
			img.data[key] = level
		}
		for y := uint64(0); y < uint64(r.ImageExtent.Height); y++ {
			start := ((y+uint64(r.ImageOffset.Y))*w + uint64(r.ImageOffset.X)) * bpp
			if start+rowBytes > uint64(len(level)) || off+rowBytes > uint64(len(b.data)) {
				d.violate("image copy %d <-> %d out of range", bh, ih)
				return
			}
			if toImage {
				copy(level[start:start+rowBytes], b.data[off:off+rowBytes])
			} else {
				copy(b.data[off:off+rowBytes], level[start:start+rowBytes])
			}
			off += rowBytes
		}
	}
}
