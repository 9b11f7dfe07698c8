package resources

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu/gputest"
)

type recorder struct {
	name  string
	order *[]string
	err   error
}

func (r recorder) Release() error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func TestDeletionQueueFlushIsLIFO(t *testing.T) {
	var order []string
	q := NewDeletionQueue()
	q.Push(recorder{name: "A", order: &order})
	q.Push(recorder{name: "B", order: &order})
	q.Push(recorder{name: "C", order: &order})

	if err := q.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := []string{"C", "B", "A"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("flush order: got %v, want %v", order, want)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty after Flush: %d", q.Len())
	}
}

func TestDeletionQueueFlushContinuesPastErrors(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	q := NewDeletionQueue()
	q.Push(recorder{name: "A", order: &order})
	q.Push(recorder{name: "B", order: &order, err: boom})

	if err := q.Flush(); !errors.Is(err, boom) {
		t.Fatalf("Flush: got %v, want boom", err)
	}
	if len(order) != 2 {
		t.Fatalf("Flush stopped early: %v", order)
	}
}

func TestDeletionQueueDestroysObjectsInReverse(t *testing.T) {
	dev := gputest.New()
	fence, _ := dev.CreateFence(true)
	sem, _ := dev.CreateSemaphore()
	pool, _ := dev.CreateCommandPool()

	q := NewDeletionQueue()
	q.PushObjects(dev, pool)
	q.PushObjects(dev, fence, sem)
	if err := q.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := []gpu.Object{sem, fence, pool}
	got := dev.Destroyed()
	if len(got) != len(want) {
		t.Fatalf("destroyed: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("destroyed[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAllocatorBuffer(t *testing.T) {
	dev := gputest.New()
	a := NewAllocator(dev)

	staging, err := a.CreateBuffer(256, gpu.BufferUsageTransferSrc, gpu.MemoryCPUOnly)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if len(staging.Mapped) != 256 {
		t.Fatalf("mapped: got %d bytes, want 256", len(staging.Mapped))
	}
	if staging.Address != 0 {
		t.Fatalf("staging buffer has device address %#x", staging.Address)
	}

	vertices, err := a.CreateBuffer(1024, gpu.BufferUsageStorage|gpu.BufferUsageShaderDeviceAddress, gpu.MemoryGPUOnly)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if vertices.Mapped != nil {
		t.Fatalf("gpu only buffer is mapped")
	}
	if vertices.Address == 0 {
		t.Fatalf("device address missing")
	}

	if live := a.Live(); len(live) != 2 || live[0].Bytes != 1024 {
		t.Fatalf("Live: got %+v", live)
	}
	if err := staging.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := staging.Release(); !errors.Is(err, core.ErrAlreadyDestroyed) {
		t.Fatalf("second Release: got %v, want ErrAlreadyDestroyed", err)
	}
	if n := a.Release(); n != 1 {
		t.Fatalf("leaks: got %d, want 1", n)
	}
	if v := dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
}

func TestAllocatorImages(t *testing.T) {
	dev := gputest.New()
	a := NewAllocator(dev)

	tex, err := a.CreateImage(gpu.Extent3D{Width: 512, Height: 256}, gpu.FormatR8G8B8A8Unorm, gpu.ImageUsageSampled, true)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if tex.MipLevels != 10 || tex.Layers != 1 || tex.Extent.Depth != 1 {
		t.Fatalf("texture: mips=%d layers=%d depth=%d", tex.MipLevels, tex.Layers, tex.Extent.Depth)
	}

	depth, err := a.CreateImage(gpu.Extent3D{Width: 64, Height: 64, Depth: 1}, gpu.FormatD32Sfloat, gpu.ImageUsageDepthStencilAttachment, false)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if depth.MipLevels != 1 {
		t.Fatalf("depth mips: got %d, want 1", depth.MipLevels)
	}

	sky, err := a.CreateCubemap(gpu.Extent3D{Width: 128, Height: 128, Depth: 1}, gpu.FormatR8G8B8A8Unorm, gpu.ImageUsageSampled, false)
	if err != nil {
		t.Fatalf("CreateCubemap: %v", err)
	}
	desc, _ := dev.ImageDesc(sky.Image)
	if !desc.Cube || desc.ArrayLayers != 6 {
		t.Fatalf("cubemap desc: %+v", desc)
	}

	q := NewDeletionQueue()
	q.Push(tex)
	q.Push(depth)
	q.Push(sky)
	if err := q.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n := len(a.Live()); n != 0 {
		t.Fatalf("live after flush: %d", n)
	}
	if n := dev.LiveCount(gpu.ObjectKindImage, gpu.ObjectKindImageView); n != 0 {
		t.Fatalf("device still holds %d images or views", n)
	}
	// views go before their images
	d := dev.Destroyed()
	if d[0] != sky.View || d[1] != sky.Image {
		t.Fatalf("destroy order: %v", d[:2])
	}
}
