// Package gputest provides an in-memory gpu.Device. Submitted work executes
// synchronously: copies move bytes, the signal fence is set, and every
// externally visible step is appended to an event log tests can inspect.
package gputest

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

type buffer struct {
	desc    gpu.BufferDesc
	data    []byte
	address uint64
}

type subresource struct {
	layer, mip uint32
}

type image struct {
	desc    gpu.ImageDesc
	data    map[subresource][]byte
	layouts map[subresource]gpu.ImageLayout
	owner   gpu.Swapchain
}

type fence struct {
	signaled bool
}

type descriptorPool struct {
	maxSets   uint32
	sets      uint32
	remaining map[gpu.DescriptorType]uint32
	capacity  map[gpu.DescriptorType]uint32
}

type descriptorSet struct {
	pool   gpu.DescriptorPool
	layout gpu.DescriptorSetLayout
	writes map[uint32]gpu.DescriptorWrite
}

type swapchain struct {
	desc   gpu.SwapchainDesc
	images []gpu.Image
	next   uint32
}

// Device is a gpu.Device backed by host memory.
type Device struct {
	// Caps is returned by SurfaceCapabilities.
	Caps gpu.SurfaceCapabilities

	nextID     uint64
	live       map[uint64]gpu.ObjectKind
	destroyed  []gpu.Object
	violations []string
	events     []Event

	buffers     map[gpu.Buffer]*buffer
	images      map[gpu.Image]*image
	fences      map[gpu.Fence]*fence
	pools       map[gpu.CommandPool][]*CommandBuffer
	layouts     map[gpu.DescriptorSetLayout][]gpu.DescriptorSetLayoutBinding
	descPools   map[gpu.DescriptorPool]*descriptorPool
	descSets    map[gpu.DescriptorSet]*descriptorSet
	swapchains  map[gpu.Swapchain]*swapchain
	poolsMade   int
	submissions int

	acquireFaults []fault
	presentFaults []fault
}

type fault struct {
	err        error
	suboptimal bool
}

func New() *Device {
	return &Device{
		Caps: gpu.SurfaceCapabilities{
			CurrentExtent: gpu.Extent2D{Width: 800, Height: 600},
			MinExtent:     gpu.Extent2D{Width: 1, Height: 1},
			MaxExtent:     gpu.Extent2D{Width: 4096, Height: 4096},
			MinImageCount: 2,
			MaxImageCount: 8,
		},
		live:       make(map[uint64]gpu.ObjectKind),
		buffers:    make(map[gpu.Buffer]*buffer),
		images:     make(map[gpu.Image]*image),
		fences:     make(map[gpu.Fence]*fence),
		pools:      make(map[gpu.CommandPool][]*CommandBuffer),
		layouts:    make(map[gpu.DescriptorSetLayout][]gpu.DescriptorSetLayoutBinding),
		descPools:  make(map[gpu.DescriptorPool]*descriptorPool),
		descSets:   make(map[gpu.DescriptorSet]*descriptorSet),
		swapchains: make(map[gpu.Swapchain]*swapchain),
	}
}

func (d *Device) alloc(kind gpu.ObjectKind) uint64 {
	d.nextID++
	d.live[d.nextID] = kind
	return d.nextID
}

func (d *Device) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) record(e Event) {
	d.events = append(d.events, e)
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return gpu.Null, fmt.Errorf("gputest: zero sized buffer")
	}
	h := gpu.Buffer(d.alloc(gpu.ObjectKindBuffer))
	b := &buffer{desc: desc, data: make([]byte, desc.Size)}
	if desc.Usage&gpu.BufferUsageShaderDeviceAddress != 0 {
		b.address = 0x1000_0000 + uint64(h)<<16
	}
	d.buffers[h] = b
	return h, nil
}

func (d *Device) MapBuffer(h gpu.Buffer) ([]byte, error) {
	b, ok := d.buffers[h]
	if !ok {
		return nil, fmt.Errorf("gputest: map of unknown buffer %d", h)
	}
	if !b.desc.Memory.HostVisible() {
		return nil, fmt.Errorf("gputest: buffer %d is not host visible", h)
	}
	return b.data, nil
}

func (d *Device) BufferDeviceAddress(h gpu.Buffer) uint64 {
	if b, ok := d.buffers[h]; ok {
		return b.address
	}
	return 0
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return gpu.Null, fmt.Errorf("gputest: zero sized image")
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.ArrayLayers == 0 {
		desc.ArrayLayers = 1
	}
	h := gpu.Image(d.alloc(gpu.ObjectKindImage))
	d.images[h] = &image{
		desc:    desc,
		data:    make(map[subresource][]byte),
		layouts: make(map[subresource]gpu.ImageLayout),
	}
	return h, nil
}

func (d *Device) CreateImageView(desc gpu.ImageViewDesc) (gpu.ImageView, error) {
	if _, ok := d.images[desc.Image]; !ok {
		return gpu.Null, fmt.Errorf("gputest: view of unknown image %d", desc.Image)
	}
	return gpu.ImageView(d.alloc(gpu.ObjectKindImageView)), nil
}

func (d *Device) CreateSampler(gpu.SamplerDesc) (gpu.Sampler, error) {
	return gpu.Sampler(d.alloc(gpu.ObjectKindSampler)), nil
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return gpu.Null, fmt.Errorf("gputest: shader code must be a non-empty multiple of 4 bytes")
	}
	return gpu.ShaderModule(d.alloc(gpu.ObjectKindShaderModule)), nil
}

func (d *Device) CreateCommandPool() (gpu.CommandPool, error) {
	h := gpu.CommandPool(d.alloc(gpu.ObjectKindCommandPool))
	d.pools[h] = nil
	return h, nil
}

func (d *Device) AllocateCommandBuffer(pool gpu.CommandPool) (gpu.CommandBuffer, error) {
	if _, ok := d.pools[pool]; !ok {
		return nil, fmt.Errorf("gputest: unknown command pool %d", pool)
	}
	d.nextID++
	cb := &CommandBuffer{dev: d, id: d.nextID, retired: true}
	d.pools[pool] = append(d.pools[pool], cb)
	return cb, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	h := gpu.Fence(d.alloc(gpu.ObjectKindFence))
	d.fences[h] = &fence{signaled: signaled}
	return h, nil
}

// WaitForFence succeeds only for a signaled fence. Work completes at
// submit, so an unsignaled fence never becomes signaled by waiting.
func (d *Device) WaitForFence(h gpu.Fence, timeout time.Duration) error {
	f, ok := d.fences[h]
	if !ok {
		return fmt.Errorf("gputest: wait on unknown fence %d", h)
	}
	d.record(Event{Kind: EventFenceWait, Handle: uint64(h), Signaled: f.signaled})
	if !f.signaled {
		return gpu.ErrTimeout
	}
	d.retire(h)
	return nil
}

func (d *Device) retire(h gpu.Fence) {
	for _, cbs := range d.pools {
		for _, cb := range cbs {
			if cb.fence == h {
				cb.retired = true
			}
		}
	}
}

func (d *Device) ResetFence(h gpu.Fence) error {
	f, ok := d.fences[h]
	if !ok {
		return fmt.Errorf("gputest: reset of unknown fence %d", h)
	}
	f.signaled = false
	d.record(Event{Kind: EventFenceReset, Handle: uint64(h)})
	return nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	return gpu.Semaphore(d.alloc(gpu.ObjectKindSemaphore)), nil
}

func (d *Device) Submit(info gpu.SubmitInfo, h gpu.Fence) error {
	var f *fence
	if h != gpu.Null {
		var ok bool
		if f, ok = d.fences[h]; !ok {
			return fmt.Errorf("gputest: submit with unknown fence %d", h)
		}
		if f.signaled {
			d.violate("submit with already signaled fence %d", h)
		}
	}
	handles := make([]uint64, 0, len(info.Commands))
	for _, c := range info.Commands {
		cb, ok := c.(*CommandBuffer)
		if !ok {
			return fmt.Errorf("gputest: foreign command buffer %T", c)
		}
		if cb.state != stateExecutable {
			d.violate("submit of command buffer %d in state %d", cb.id, cb.state)
		}
		handles = append(handles, cb.id)
	}
	d.submissions++
	d.record(Event{Kind: EventSubmit, Handle: uint64(h), Commands: handles, Wait: info.Wait, Signal: info.Signal})
	for _, c := range info.Commands {
		cb := c.(*CommandBuffer)
		for _, op := range cb.ops {
			op(d)
		}
		cb.fence = h
		cb.retired = h == gpu.Null
	}
	if f != nil {
		f.signaled = true
	}
	return nil
}

func (d *Device) WaitIdle() error {
	d.record(Event{Kind: EventWaitIdle})
	for _, cbs := range d.pools {
		for _, cb := range cbs {
			cb.retired = true
		}
	}
	return nil
}

func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	return d.Caps, nil
}

func (d *Device) CreateSwapchain(desc gpu.SwapchainDesc) (*gpu.SwapchainImages, error) {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return nil, fmt.Errorf("gputest: zero sized swapchain")
	}
	if desc.ImageCount == 0 {
		desc.ImageCount = d.Caps.MinImageCount
	}
	h := gpu.Swapchain(d.alloc(gpu.ObjectKindSwapchain))
	sc := &swapchain{desc: desc}
	out := &gpu.SwapchainImages{Handle: h, Format: desc.Format, Extent: desc.Extent}
	for i := uint32(0); i < desc.ImageCount; i++ {
		d.nextID++
		img := gpu.Image(d.nextID)
		d.images[img] = &image{
			desc: gpu.ImageDesc{
				Extent:      desc.Extent.To3D(),
				Format:      desc.Format,
				Usage:       desc.Usage,
				MipLevels:   1,
				ArrayLayers: 1,
			},
			data:    make(map[subresource][]byte),
			layouts: make(map[subresource]gpu.ImageLayout),
			owner:   h,
		}
		view, _ := d.CreateImageView(gpu.ImageViewDesc{Image: img, Format: desc.Format, Aspect: gpu.AspectColor, MipLevels: 1, Layers: 1})
		sc.images = append(sc.images, img)
		out.Images = append(out.Images, img)
		out.Views = append(out.Views, view)
	}
	d.swapchains[h] = sc
	d.record(Event{Kind: EventSwapchainCreate, Handle: uint64(h)})
	return out, nil
}

// FailNextAcquire makes the next AcquireNextImage return err.
func (d *Device) FailNextAcquire(err error) {
	d.acquireFaults = append(d.acquireFaults, fault{err: err})
}

// SuboptimalNextAcquire makes the next AcquireNextImage succeed but report
// a suboptimal swapchain.
func (d *Device) SuboptimalNextAcquire() {
	d.acquireFaults = append(d.acquireFaults, fault{suboptimal: true})
}

func (d *Device) FailNextPresent(err error) {
	d.presentFaults = append(d.presentFaults, fault{err: err})
}

func (d *Device) SuboptimalNextPresent() {
	d.presentFaults = append(d.presentFaults, fault{suboptimal: true})
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, sem gpu.Semaphore, timeout time.Duration) (uint32, bool, error) {
	sc, ok := d.swapchains[h]
	if !ok {
		return 0, false, fmt.Errorf("gputest: acquire on unknown swapchain %d", h)
	}
	var flt fault
	if len(d.acquireFaults) > 0 {
		flt, d.acquireFaults = d.acquireFaults[0], d.acquireFaults[1:]
	}
	if flt.err != nil {
		d.record(Event{Kind: EventAcquire, Handle: uint64(h), Err: flt.err})
		return 0, false, flt.err
	}
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	d.record(Event{Kind: EventAcquire, Handle: uint64(h), Index: idx, Signal: []gpu.Semaphore{sem}})
	return idx, flt.suboptimal, nil
}

func (d *Device) Present(info gpu.PresentInfo) (bool, error) {
	if _, ok := d.swapchains[info.Swapchain]; !ok {
		return false, fmt.Errorf("gputest: present on unknown swapchain %d", info.Swapchain)
	}
	var flt fault
	if len(d.presentFaults) > 0 {
		flt, d.presentFaults = d.presentFaults[0], d.presentFaults[1:]
	}
	d.record(Event{Kind: EventPresent, Handle: uint64(info.Swapchain), Index: info.ImageIndex, Signal: info.Wait, Err: flt.err})
	return flt.suboptimal, flt.err
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	seen := make(map[uint32]bool, len(bindings))
	for _, b := range bindings {
		if seen[b.Binding] {
			return gpu.Null, fmt.Errorf("gputest: duplicate binding %d", b.Binding)
		}
		seen[b.Binding] = true
	}
	h := gpu.DescriptorSetLayout(d.alloc(gpu.ObjectKindDescriptorSetLayout))
	d.layouts[h] = append([]gpu.DescriptorSetLayoutBinding(nil), bindings...)
	return h, nil
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDesc) (gpu.DescriptorPool, error) {
	h := gpu.DescriptorPool(d.alloc(gpu.ObjectKindDescriptorPool))
	p := &descriptorPool{
		maxSets:   desc.MaxSets,
		remaining: make(map[gpu.DescriptorType]uint32),
		capacity:  make(map[gpu.DescriptorType]uint32),
	}
	for _, s := range desc.Sizes {
		p.capacity[s.Type] += s.Count
		p.remaining[s.Type] += s.Count
	}
	d.descPools[h] = p
	d.poolsMade++
	d.record(Event{Kind: EventDescriptorPoolCreate, Handle: uint64(h), Count: desc.MaxSets})
	return h, nil
}

func (d *Device) ResetDescriptorPool(h gpu.DescriptorPool) error {
	p, ok := d.descPools[h]
	if !ok {
		return fmt.Errorf("gputest: reset of unknown descriptor pool %d", h)
	}
	p.sets = 0
	for t, c := range p.capacity {
		p.remaining[t] = c
	}
	for s, ds := range d.descSets {
		if ds.pool == h {
			delete(d.descSets, s)
		}
	}
	d.record(Event{Kind: EventDescriptorPoolReset, Handle: uint64(h)})
	return nil
}

func (d *Device) AllocateDescriptorSet(h gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	p, ok := d.descPools[h]
	if !ok {
		return gpu.Null, fmt.Errorf("gputest: allocate from unknown descriptor pool %d", h)
	}
	bindings, ok := d.layouts[layout]
	if !ok {
		return gpu.Null, fmt.Errorf("gputest: allocate with unknown layout %d", layout)
	}
	if p.sets >= p.maxSets {
		return gpu.Null, gpu.ErrOutOfPoolMemory
	}
	need := make(map[gpu.DescriptorType]uint32)
	for _, b := range bindings {
		need[b.Type] += max(b.Count, 1)
	}
	for t, n := range need {
		if p.remaining[t] < n {
			return gpu.Null, gpu.ErrOutOfPoolMemory
		}
	}
	for t, n := range need {
		p.remaining[t] -= n
	}
	p.sets++
	d.nextID++
	s := gpu.DescriptorSet(d.nextID)
	d.descSets[s] = &descriptorSet{pool: h, layout: layout, writes: make(map[uint32]gpu.DescriptorWrite)}
	return s, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	for _, w := range writes {
		ds, ok := d.descSets[w.Set]
		if !ok {
			d.violate("write to invalid descriptor set %d", w.Set)
			continue
		}
		if w.Type.IsImage() != (w.Image != nil) || (w.Image == nil) == (w.Buffer == nil) {
			d.violate("malformed write to set %d binding %d", w.Set, w.Binding)
			continue
		}
		// Copy so callers can reuse their info structs after the call.
		cp := w
		if w.Image != nil {
			info := *w.Image
			cp.Image = &info
		}
		if w.Buffer != nil {
			info := *w.Buffer
			cp.Buffer = &info
		}
		ds.writes[w.Binding] = cp
	}
	d.record(Event{Kind: EventDescriptorUpdate, Count: uint32(len(writes))})
}

func (d *Device) CreatePipelineLayout(gpu.PipelineLayoutDesc) (gpu.PipelineLayout, error) {
	return gpu.PipelineLayout(d.alloc(gpu.ObjectKindPipelineLayout)), nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	if d.live[uint64(desc.Shader)] != gpu.ObjectKindShaderModule {
		return gpu.Null, fmt.Errorf("gputest: compute pipeline without shader")
	}
	return gpu.Pipeline(d.alloc(gpu.ObjectKindPipeline)), nil
}

func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	if d.live[uint64(desc.VertexShader)] != gpu.ObjectKindShaderModule ||
		d.live[uint64(desc.FragmentShader)] != gpu.ObjectKindShaderModule {
		return gpu.Null, fmt.Errorf("gputest: graphics pipeline without shaders")
	}
	return gpu.Pipeline(d.alloc(gpu.ObjectKindPipeline)), nil
}

func (d *Device) Destroy(objs ...gpu.Object) {
	for _, o := range objs {
		if o == nil || o.ID() == gpu.Null {
			continue
		}
		kind, ok := d.live[o.ID()]
		if !ok || kind != o.Kind() {
			d.violate("destroy of unknown or already destroyed %s %d", o.Kind(), o.ID())
			continue
		}
		delete(d.live, o.ID())
		d.destroyed = append(d.destroyed, o)
		switch h := o.(type) {
		case gpu.Buffer:
			delete(d.buffers, h)
		case gpu.Image:
			delete(d.images, h)
		case gpu.Fence:
			delete(d.fences, h)
		case gpu.CommandPool:
			delete(d.pools, h)
		case gpu.DescriptorSetLayout:
			delete(d.layouts, h)
		case gpu.DescriptorPool:
			delete(d.descPools, h)
			for s, ds := range d.descSets {
				if ds.pool == h {
					delete(d.descSets, s)
				}
			}
		case gpu.Swapchain:
			for _, img := range d.swapchains[h].images {
				delete(d.images, img)
			}
			delete(d.swapchains, h)
		}
		d.record(Event{Kind: EventDestroy, Handle: o.ID()})
	}
}
