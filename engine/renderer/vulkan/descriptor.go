package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lantern/engine/core"
	"github.com/spaghettifunk/lantern/engine/renderer/gpu"
)

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toDescriptorType(b.Type),
			DescriptorCount: max(b.Count, 1),
			StageFlags:      toShaderStage(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if err := check("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.device, &info, nil, &layout)); err != nil {
		return gpu.Null, err
	}
	return gpu.DescriptorSetLayout(register(d, d.handles.setLayouts, layout)), nil
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDesc) (gpu.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            toDescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	p := &descriptorPool{}
	if err := check("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.device, &info, nil, &p.handle)); err != nil {
		return gpu.Null, err
	}
	return gpu.DescriptorPool(register(d, d.handles.descPools, p)), nil
}

// ResetDescriptorPool returns every set of the pool at once. Ids of the
// released sets become unknown.
func (d *Device) ResetDescriptorPool(h gpu.DescriptorPool) error {
	p, ok := lookup(d, d.handles.descPools, uint64(h))
	if !ok {
		return fmt.Errorf("reset descriptor pool %#x: %w", uint64(h), core.ErrUnknownHandle)
	}
	for _, set := range p.sets {
		unregister(d, d.handles.descSets, set)
	}
	p.sets = p.sets[:0]
	return d.locks.SafeCall(DescriptorManagement, func() error {
		return check("vkResetDescriptorPool", vk.ResetDescriptorPool(d.device, p.handle, 0))
	})
}

func (d *Device) AllocateDescriptorSet(h gpu.DescriptorPool, l gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	p, ok := lookup(d, d.handles.descPools, uint64(h))
	if !ok {
		return gpu.Null, fmt.Errorf("allocate from descriptor pool %#x: %w", uint64(h), core.ErrUnknownHandle)
	}
	layout, ok := lookup(d, d.handles.setLayouts, uint64(l))
	if !ok {
		return gpu.Null, fmt.Errorf("allocate with layout %#x: %w", uint64(l), core.ErrUnknownHandle)
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if err := d.locks.SafeCall(DescriptorManagement, func() error {
		return check("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(d.device, &info, &set))
	}); err != nil {
		return gpu.Null, err
	}
	id := register(d, d.handles.descSets, set)
	p.sets = append(p.sets, id)
	return gpu.DescriptorSet(id), nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := lookup(d, d.handles.descSets, uint64(w.Set))
		if !ok {
			continue
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  toDescriptorType(w.Type),
		}
		switch {
		case w.Image != nil:
			info := vk.DescriptorImageInfo{
				ImageLayout: toLayout(w.Image.Layout),
			}
			if w.Image.Sampler != gpu.Null {
				info.Sampler, _ = lookup(d, d.handles.samplers, uint64(w.Image.Sampler))
			}
			if w.Image.View != gpu.Null {
				info.ImageView, _ = lookup(d, d.handles.views, uint64(w.Image.View))
			}
			write.PImageInfo = []vk.DescriptorImageInfo{info}
		case w.Buffer != nil:
			b, ok := lookup(d, d.handles.buffers, uint64(w.Buffer.Buffer))
			if !ok {
				continue
			}
			size := vk.DeviceSize(w.Buffer.Range)
			if size == 0 {
				size = vk.DeviceSize(vk.WholeSize)
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: b.handle,
				Offset: vk.DeviceSize(w.Buffer.Offset),
				Range:  size,
			}}
		default:
			core.LogWarn("descriptor write to binding %d carries no resource", w.Binding)
			continue
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.device, uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}
