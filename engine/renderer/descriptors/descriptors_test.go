package descriptors

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu/gputest"
)

var sceneRatios = []PoolSizeRatio{
	{Type: gpu.DescriptorUniformBuffer, Ratio: 1},
	{Type: gpu.DescriptorCombinedImageSampler, Ratio: 4},
}

func sceneLayout(t *testing.T, dev gpu.Device) gpu.DescriptorSetLayout {
	t.Helper()
	var b LayoutBuilder
	b.AddBinding(0, gpu.DescriptorUniformBuffer)
	layout, err := b.Build(dev, gpu.ShaderStageAllGraphics)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return layout
}

func TestLayoutBuilderIsReusable(t *testing.T) {
	dev := gputest.New()
	var b LayoutBuilder
	b.AddBinding(0, gpu.DescriptorStorageImage)
	if _, err := b.Build(dev, gpu.ShaderStageCompute); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := b.bindings[0].Stages; got != 0 {
		t.Fatalf("Build mutated builder stages: %v", got)
	}

	// duplicate bindings are rejected by the device
	b.AddBinding(0, gpu.DescriptorUniformBuffer)
	if _, err := b.Build(dev, gpu.ShaderStageCompute); err == nil {
		t.Fatalf("Build with duplicate binding: expected error")
	}

	b.Clear()
	b.AddBinding(0, gpu.DescriptorUniformBuffer).AddBinding(1, gpu.DescriptorCombinedImageSampler)
	if _, err := b.Build(dev, gpu.ShaderStageFragment); err != nil {
		t.Fatalf("Build after Clear: %v", err)
	}
}

func TestFixedAllocatorExhaustsAndClears(t *testing.T) {
	dev := gputest.New()
	layout := sceneLayout(t, dev)

	var a Allocator
	if err := a.InitPool(dev, 2, sceneRatios); err != nil {
		t.Fatalf("InitPool: %v", err)
	}
	first, err := a.Allocate(layout)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := a.Allocate(layout); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := a.Allocate(layout); !errors.Is(err, gpu.ErrOutOfPoolMemory) {
		t.Fatalf("Allocate on full pool: got %v, want ErrOutOfPoolMemory", err)
	}

	if err := a.ClearDescriptors(); err != nil {
		t.Fatalf("ClearDescriptors: %v", err)
	}
	if dev.DescriptorSetValid(first) {
		t.Fatalf("set survived ClearDescriptors")
	}
	if _, err := a.Allocate(layout); err != nil {
		t.Fatalf("Allocate after clear: %v", err)
	}
	a.DestroyPool()
	if n := dev.LiveCount(gpu.ObjectKindDescriptorPool); n != 0 {
		t.Fatalf("pools alive after DestroyPool: %d", n)
	}
}

func TestFixedAllocatorBeforeInitPool(t *testing.T) {
	var a Allocator
	if err := a.ClearDescriptors(); err != nil {
		t.Fatalf("ClearDescriptors: got %v, want nil", err)
	}
	a.DestroyPool()
	if err := a.Release(); err != nil {
		t.Fatalf("Release: got %v, want nil", err)
	}
	if _, err := a.Allocate(gpu.Null); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("Allocate: got %v, want %v", err, core.ErrNotInitialized)
	}
}

func TestGrowableAllocatorGrowsPools(t *testing.T) {
	dev := gputest.New()
	layout := sceneLayout(t, dev)

	var g GrowableAllocator
	if err := g.Init(dev, 4, sceneRatios); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := g.Allocate(layout); err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
	}
	// 4 + 6 sets fit in the first two pools
	created := dev.EventsOf(gputest.EventDescriptorPoolCreate)
	if len(created) != 2 {
		t.Fatalf("pools created: got %d, want 2", len(created))
	}
	if created[0].Count != 4 || created[1].Count != 6 {
		t.Fatalf("pool sizes: got %d, %d, want 4, 6", created[0].Count, created[1].Count)
	}
	if g.setsPerPool != 9 {
		t.Fatalf("next pool size: got %d, want 9", g.setsPerPool)
	}
	if v := dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
}

func TestGrowableAllocatorReusesPoolsAfterClear(t *testing.T) {
	dev := gputest.New()
	layout := sceneLayout(t, dev)

	var g GrowableAllocator
	if err := g.Init(dev, 8, sceneRatios); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var sets []gpu.DescriptorSet
	for i := 0; i < 20; i++ {
		s, err := g.Allocate(layout)
		if err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
		sets = append(sets, s)
	}
	pools := dev.DescriptorPoolsCreated()

	if err := g.ClearPools(); err != nil {
		t.Fatalf("ClearPools: %v", err)
	}
	for _, s := range sets {
		if dev.DescriptorSetValid(s) {
			t.Fatalf("set %d survived ClearPools", s)
		}
	}
	for i := 0; i < 20; i++ {
		if _, err := g.Allocate(layout); err != nil {
			t.Fatalf("Allocate after clear %d: %v", i, err)
		}
	}
	if got := dev.DescriptorPoolsCreated(); got != pools {
		t.Fatalf("pools created after clear: got %d, want %d", got, pools)
	}
	if g.Pools() != pools {
		t.Fatalf("allocator owns %d pools, device created %d", g.Pools(), pools)
	}

	g.DestroyPools()
	if n := dev.LiveCount(gpu.ObjectKindDescriptorPool); n != 0 {
		t.Fatalf("pools alive after DestroyPools: %d", n)
	}
}

func TestGrowableAllocatorCapsPoolSize(t *testing.T) {
	if got := grow(4000); got != maxSetsPerPool {
		t.Fatalf("grow(4000): got %d, want %d", got, maxSetsPerPool)
	}
	if got := grow(100); got != 150 {
		t.Fatalf("grow(100): got %d, want 150", got)
	}
}

func TestWriterBatchesWrites(t *testing.T) {
	dev := gputest.New()
	var b LayoutBuilder
	b.AddBinding(0, gpu.DescriptorUniformBuffer).AddBinding(1, gpu.DescriptorCombinedImageSampler)
	layout, err := b.Build(dev, gpu.ShaderStageAllGraphics)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var a Allocator
	if err := a.InitPool(dev, 1, sceneRatios); err != nil {
		t.Fatalf("InitPool: %v", err)
	}
	set, err := a.Allocate(layout)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	buf, _ := dev.CreateBuffer(gpu.BufferDesc{Size: 64, Usage: gpu.BufferUsageUniform, Memory: gpu.MemoryCPUToGPU})
	img, _ := dev.CreateImage(gpu.ImageDesc{Extent: gpu.Extent3D{Width: 1, Height: 1, Depth: 1}, Format: gpu.FormatR8G8B8A8Unorm})
	view, _ := dev.CreateImageView(gpu.ImageViewDesc{Image: img})
	sampler, _ := dev.CreateSampler(gpu.SamplerDesc{})

	var w Writer
	w.WriteBuffer(0, buf, 64, 0, gpu.DescriptorUniformBuffer)
	for i := 0; i < 32; i++ {
		// grow the batch so any slice backed info would move
		w.WriteImage(1, view, sampler, gpu.LayoutShaderReadOnly, gpu.DescriptorCombinedImageSampler)
	}
	w.UpdateSet(dev, set)

	bw, ok := dev.DescriptorWrite(set, 0)
	if !ok || bw.Buffer.Buffer != buf || bw.Buffer.Range != 64 {
		t.Fatalf("buffer write: %+v", bw)
	}
	iw, ok := dev.DescriptorWrite(set, 1)
	if !ok || iw.Image.View != view || iw.Image.Sampler != sampler || iw.Image.Layout != gpu.LayoutShaderReadOnly {
		t.Fatalf("image write: %+v", iw)
	}
	if updates := dev.EventsOf(gputest.EventDescriptorUpdate); len(updates) != 1 || updates[0].Count != 33 {
		t.Fatalf("expected one batched update of 33 writes, got %+v", updates)
	}

	w.Clear()
	if w.Len() != 0 {
		t.Fatalf("Writer not empty after Clear")
	}
	if v := dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
}
