package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

type buffer struct {
	handle  vk.Buffer
	memory  vk.DeviceMemory
	size    uint64
	mapped  []byte
	address uint64
}

type image struct {
	handle vk.Image
	// memory is nil for swapchain images, which the swapchain owns.
	memory vk.DeviceMemory
	desc   gpu.ImageDesc
}

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []uint64
}

type swapchain struct {
	handle vk.Swapchain
	images []uint64
}

type commandPool struct {
	handle  vk.CommandPool
	buffers []uint64
}

// handleTables maps the opaque ids handed out through gpu handles to the
// Vulkan objects behind them, one registry per object kind.
type handleTables struct {
	fences         *core.Registry[vk.Fence]
	semaphores     *core.Registry[vk.Semaphore]
	commandPools   *core.Registry[*commandPool]
	commandBuffers *core.Registry[*CommandBuffer]
	buffers        *core.Registry[*buffer]
	images         *core.Registry[*image]
	views          *core.Registry[vk.ImageView]
	samplers       *core.Registry[vk.Sampler]
	setLayouts     *core.Registry[vk.DescriptorSetLayout]
	descPools      *core.Registry[*descriptorPool]
	descSets       *core.Registry[vk.DescriptorSet]
	pipeLayouts    *core.Registry[vk.PipelineLayout]
	pipelines      *core.Registry[vk.Pipeline]
	shaders        *core.Registry[vk.ShaderModule]
	swapchains     *core.Registry[*swapchain]
}

func (t *handleTables) init() {
	t.fences = core.NewRegistry[vk.Fence](8)
	t.semaphores = core.NewRegistry[vk.Semaphore](16)
	t.commandPools = core.NewRegistry[*commandPool](4)
	t.commandBuffers = core.NewRegistry[*CommandBuffer](4)
	t.buffers = core.NewRegistry[*buffer](64)
	t.images = core.NewRegistry[*image](32)
	t.views = core.NewRegistry[vk.ImageView](32)
	t.samplers = core.NewRegistry[vk.Sampler](4)
	t.setLayouts = core.NewRegistry[vk.DescriptorSetLayout](8)
	t.descPools = core.NewRegistry[*descriptorPool](8)
	t.descSets = core.NewRegistry[vk.DescriptorSet](64)
	t.pipeLayouts = core.NewRegistry[vk.PipelineLayout](8)
	t.pipelines = core.NewRegistry[vk.Pipeline](8)
	t.shaders = core.NewRegistry[vk.ShaderModule](8)
	t.swapchains = core.NewRegistry[*swapchain](2)
}

// live counts objects the caller still has to destroy. Descriptor sets and
// command buffers go with their pools, so they are not counted.
func (t *handleTables) live() int {
	return t.fences.Len() + t.semaphores.Len() + t.commandPools.Len() +
		t.buffers.Len() + t.images.Len() + t.views.Len() + t.samplers.Len() +
		t.setLayouts.Len() + t.descPools.Len() + t.pipeLayouts.Len() +
		t.pipelines.Len() + t.shaders.Len() + t.swapchains.Len()
}

func register[T any](d *Device, r *core.Registry[T], owner T) uint64 {
	l := d.locks.lock(ObjectManagement)
	defer l.Unlock()
	return r.AcquireID(owner)
}

func lookup[T any](d *Device, r *core.Registry[T], id uint64) (T, bool) {
	l := d.locks.lock(ObjectManagement)
	defer l.Unlock()
	owner, ok := r.Get(id)
	if !ok {
		core.LogError("use of unknown handle %#x", id)
	}
	return owner, ok
}

func unregister[T any](d *Device, r *core.Registry[T], id uint64) (T, bool) {
	l := d.locks.lock(ObjectManagement)
	defer l.Unlock()
	owner, err := r.ReleaseID(id)
	if err != nil {
		core.LogWarn("destroy: %s", err)
		return owner, false
	}
	return owner, true
}

// Destroy releases objects in argument order. Unknown or already destroyed
// handles are logged and skipped.
func (d *Device) Destroy(objs ...gpu.Object) {
	for _, o := range objs {
		if o == nil || o.ID() == gpu.Null {
			continue
		}
		d.destroy(o)
	}
}

func (d *Device) destroy(o gpu.Object) {
	t := &d.handles
	id := o.ID()
	switch o.Kind() {
	case gpu.ObjectKindFence:
		if f, ok := unregister(d, t.fences, id); ok {
			vk.DestroyFence(d.device, f, nil)
		}
	case gpu.ObjectKindSemaphore:
		if s, ok := unregister(d, t.semaphores, id); ok {
			vk.DestroySemaphore(d.device, s, nil)
		}
	case gpu.ObjectKindCommandPool:
		if p, ok := unregister(d, t.commandPools, id); ok {
			for _, cb := range p.buffers {
				unregister(d, t.commandBuffers, cb)
			}
			vk.DestroyCommandPool(d.device, p.handle, nil)
		}
	case gpu.ObjectKindBuffer:
		if b, ok := unregister(d, t.buffers, id); ok {
			if b.mapped != nil {
				vk.UnmapMemory(d.device, b.memory)
			}
			vk.DestroyBuffer(d.device, b.handle, nil)
			vk.FreeMemory(d.device, b.memory, nil)
		}
	case gpu.ObjectKindImage:
		img, ok := lookup(d, t.images, id)
		if !ok {
			return
		}
		if img.memory == nil {
			core.LogError("image %#x belongs to a swapchain and cannot be destroyed directly", id)
			return
		}
		unregister(d, t.images, id)
		vk.DestroyImage(d.device, img.handle, nil)
		vk.FreeMemory(d.device, img.memory, nil)
	case gpu.ObjectKindImageView:
		if v, ok := unregister(d, t.views, id); ok {
			vk.DestroyImageView(d.device, v, nil)
		}
	case gpu.ObjectKindSampler:
		if s, ok := unregister(d, t.samplers, id); ok {
			vk.DestroySampler(d.device, s, nil)
		}
	case gpu.ObjectKindDescriptorSetLayout:
		if l, ok := unregister(d, t.setLayouts, id); ok {
			vk.DestroyDescriptorSetLayout(d.device, l, nil)
		}
	case gpu.ObjectKindDescriptorPool:
		if p, ok := unregister(d, t.descPools, id); ok {
			for _, set := range p.sets {
				unregister(d, t.descSets, set)
			}
			vk.DestroyDescriptorPool(d.device, p.handle, nil)
		}
	case gpu.ObjectKindPipelineLayout:
		if l, ok := unregister(d, t.pipeLayouts, id); ok {
			vk.DestroyPipelineLayout(d.device, l, nil)
		}
	case gpu.ObjectKindPipeline:
		if p, ok := unregister(d, t.pipelines, id); ok {
			vk.DestroyPipeline(d.device, p, nil)
		}
	case gpu.ObjectKindShaderModule:
		if s, ok := unregister(d, t.shaders, id); ok {
			vk.DestroyShaderModule(d.device, s, nil)
		}
	case gpu.ObjectKindSwapchain:
		if sc, ok := unregister(d, t.swapchains, id); ok {
			for _, img := range sc.images {
				unregister(d, t.images, img)
			}
			vk.DestroySwapchain(d.device, sc.handle, nil)
		}
	default:
		core.LogWarn("destroy of %s object %#x is not supported", o.Kind(), id)
	}
}
