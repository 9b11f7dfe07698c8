package images

import (
	"testing"

	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu/gputest"
)

func TestMipLevels(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{3, 3, 2},
		{256, 256, 9},
		{1700, 900, 11},
		{300, 7, 9},
		{1, 1024, 11},
	}
	for _, tt := range tests {
		if got := MipLevels(gpu.Extent2D{Width: tt.w, Height: tt.h}); got != tt.want {
			t.Fatalf("MipLevels(%dx%d): got %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func newImage(t *testing.T, dev *gputest.Device, size gpu.Extent2D, layers uint32) gpu.Image {
	t.Helper()
	img, err := dev.CreateImage(gpu.ImageDesc{
		Extent:      size.To3D(),
		Format:      gpu.FormatR8G8B8A8Unorm,
		Usage:       gpu.ImageUsageTransferSrc | gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
		MipLevels:   MipLevels(size),
		ArrayLayers: layers,
		Cube:        layers == 6,
	})
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	return img
}

func checkViolations(t *testing.T, dev *gputest.Device) {
	t.Helper()
	if v := dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
}

func checkMipChain(t *testing.T, dev *gputest.Device, size gpu.Extent2D, layers uint32) {
	t.Helper()
	levels := MipLevels(size)
	blits := dev.EventsOf(gputest.EventBlit)
	if want := int(levels-1) * int(layers); len(blits) != want {
		t.Fatalf("blits: got %d, want %d", len(blits), want)
	}

	prev := size
	for i, e := range blits {
		if len(e.Blits) != 1 {
			t.Fatalf("blit %d: got %d regions, want 1", i, len(e.Blits))
		}
		r := e.Blits[0]
		mip := uint32(i) / layers
		face := uint32(i) % layers
		if r.SrcSubresource.MipLevel != mip || r.DstSubresource.MipLevel != mip+1 {
			t.Fatalf("blit %d: mips %d->%d, want %d->%d", i, r.SrcSubresource.MipLevel, r.DstSubresource.MipLevel, mip, mip+1)
		}
		if r.SrcSubresource.BaseArrayLayer != face || r.DstSubresource.BaseArrayLayer != face {
			t.Fatalf("blit %d: face %d, want %d", i, r.SrcSubresource.BaseArrayLayer, face)
		}
		if face == 0 && mip > 0 {
			prev = HalfExtent(prev)
		}
		src := gpu.Extent2D{Width: uint32(r.SrcOffsets[1].X), Height: uint32(r.SrcOffsets[1].Y)}
		dst := gpu.Extent2D{Width: uint32(r.DstOffsets[1].X), Height: uint32(r.DstOffsets[1].Y)}
		if src != prev {
			t.Fatalf("blit %d: src extent %v, want %v", i, src, prev)
		}
		if want := (gpu.Extent2D{Width: max(prev.Width/2, 1), Height: max(prev.Height/2, 1)}); dst != want {
			t.Fatalf("blit %d: dst extent %v, want %v", i, dst, want)
		}
	}

	for layer := uint32(0); layer < layers; layer++ {
		for mip := uint32(0); mip < levels; mip++ {
			if got := dev.ImageLayout(blitsImage(blits), layer, mip); got != gpu.LayoutShaderReadOnly {
				t.Fatalf("layer %d mip %d: layout %s, want shader_read_only", layer, mip, got)
			}
		}
	}
}

func blitsImage(blits []gputest.Event) gpu.Image {
	return gpu.Image(blits[0].Src)
}

func TestGenerateMipmaps(t *testing.T) {
	for _, size := range []gpu.Extent2D{{Width: 64, Height: 64}, {Width: 64, Height: 16}, {Width: 37, Height: 100}} {
		dev := gputest.New()
		img := newImage(t, dev, size, 1)
		err := dev.Execute(func(cmd gpu.CommandBuffer) {
			Transition(cmd, img, gpu.LayoutUndefined, gpu.LayoutTransferDst)
			GenerateMipmaps(cmd, img, size)
		})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		checkViolations(t, dev)
		checkMipChain(t, dev, size, 1)

		// initial transition, one per level, one final
		if got, want := len(dev.EventsOf(gputest.EventBarrier)), int(MipLevels(size))+2; got != want {
			t.Fatalf("%v: barriers %d, want %d", size, got, want)
		}
	}
}

func TestGenerateCubemapMipmaps(t *testing.T) {
	size := gpu.Extent2D{Width: 32, Height: 32}
	dev := gputest.New()
	img := newImage(t, dev, size, 6)
	err := dev.Execute(func(cmd gpu.CommandBuffer) {
		Transition(cmd, img, gpu.LayoutUndefined, gpu.LayoutTransferDst)
		GenerateCubemapMipmaps(cmd, img, size)
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	checkViolations(t, dev)
	checkMipChain(t, dev, size, 6)

	barriers := dev.EventsOf(gputest.EventBarrier)
	for _, e := range barriers[1:] {
		if got := e.Barriers[0].Range.LayerCount; got != 6 {
			t.Fatalf("cubemap barrier covers %d layers, want 6", got)
		}
	}
}

func TestTransitionAspect(t *testing.T) {
	dev := gputest.New()
	depth, _ := dev.CreateImage(gpu.ImageDesc{Extent: gpu.Extent3D{Width: 4, Height: 4, Depth: 1}, Format: gpu.FormatD32Sfloat})
	color, _ := dev.CreateImage(gpu.ImageDesc{Extent: gpu.Extent3D{Width: 4, Height: 4, Depth: 1}, Format: gpu.FormatR16G16B16A16Sfloat})
	err := dev.Execute(func(cmd gpu.CommandBuffer) {
		Transition(cmd, depth, gpu.LayoutUndefined, gpu.LayoutDepthAttachment)
		Transition(cmd, color, gpu.LayoutUndefined, gpu.LayoutGeneral)
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	barriers := dev.EventsOf(gputest.EventBarrier)
	if got := barriers[0].Barriers[0].Range.Aspect; got != gpu.AspectDepth {
		t.Fatalf("depth transition aspect: got %v, want depth", got)
	}
	if got := barriers[1].Barriers[0].Range.Aspect; got != gpu.AspectColor {
		t.Fatalf("color transition aspect: got %v, want color", got)
	}
	for _, e := range barriers {
		b := e.Barriers[0]
		if b.Range.LevelCount != gpu.RemainingMipLevels || b.Range.LayerCount != gpu.RemainingArrayLayers {
			t.Fatalf("transition does not cover the whole image: %+v", b.Range)
		}
	}
	checkViolations(t, dev)
}

func TestCopyBlitsBetweenSizes(t *testing.T) {
	dev := gputest.New()
	src, _ := dev.CreateImage(gpu.ImageDesc{Extent: gpu.Extent3D{Width: 1700, Height: 900, Depth: 1}, Format: gpu.FormatR16G16B16A16Sfloat})
	dst, _ := dev.CreateImage(gpu.ImageDesc{Extent: gpu.Extent3D{Width: 800, Height: 600, Depth: 1}, Format: gpu.FormatB8G8R8A8Unorm})
	err := dev.Execute(func(cmd gpu.CommandBuffer) {
		Transition(cmd, src, gpu.LayoutUndefined, gpu.LayoutTransferSrc)
		Transition(cmd, dst, gpu.LayoutUndefined, gpu.LayoutTransferDst)
		Copy(cmd, src, dst, gpu.Extent2D{Width: 1700, Height: 900}, gpu.Extent2D{Width: 800, Height: 600})
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	checkViolations(t, dev)
	blits := dev.EventsOf(gputest.EventBlit)
	if len(blits) != 1 {
		t.Fatalf("blits: got %d, want 1", len(blits))
	}
	r := blits[0].Blits[0]
	if r.SrcOffsets[1] != (gpu.Offset3D{X: 1700, Y: 900, Z: 1}) || r.DstOffsets[1] != (gpu.Offset3D{X: 800, Y: 600, Z: 1}) {
		t.Fatalf("blit region: %+v", r)
	}
}
